package dashboard

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"sutradharx/aptos"
	"sutradharx/escrow"
	"sutradharx/transaction"
	"sutradharx/wallet"
)

const (
	FundSuccessNotice = "Your account has been funded with 1 Testnet APT."
	FundFailureNotice = "Failed to fund account."

	recentLimit = 5
)

type BalanceReader interface {
	GetAccountBalance(ctx context.Context, addr string) (float64, error)
}

type Funder interface {
	FundAccount(ctx context.Context, addr string) ([]string, error)
}

type EscrowLister interface {
	List(ctx context.Context, filters escrow.ListFilters) ([]escrow.Record, int, error)
}

type TransactionLister interface {
	List(ctx context.Context, filters transaction.ListFilters) ([]transaction.Record, int, error)
}

// Summary is everything the dashboard landing view shows for one wallet.
type Summary struct {
	Address               string
	ShortAddress          string
	Network               string
	Balance               *float64
	BalanceDisplay        string
	BalanceError          string
	ActiveEscrows         int
	CompletedTransactions int
	Escrows               []escrow.Record
	Transactions          []transaction.Record
}

// FundResult mirrors what the faucet button reports back.
type FundResult struct {
	Success   bool
	Error     string
	Message   string
	TxnHashes []string
}

type Service struct {
	balances     BalanceReader
	funder       Funder
	escrows      EscrowLister
	transactions TransactionLister
	logger       *zap.Logger
}

func NewService(balances BalanceReader, funder Funder, escrows EscrowLister, transactions TransactionLister, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		balances:     balances,
		funder:       funder,
		escrows:      escrows,
		transactions: transactions,
		logger:       logger,
	}
}

// Summary loads the balance and the record tables concurrently. A balance
// failure degrades to "0.00" with BalanceError set; a listing failure fails
// the whole summary.
func (s *Service) Summary(ctx context.Context, session wallet.Session) (Summary, error) {
	out := Summary{
		Address:        session.Address,
		ShortAddress:   aptos.ShortAddress(session.Address),
		Network:        session.Network,
		BalanceDisplay: FormatAPT(nil),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		bal, err := s.balances.GetAccountBalance(gctx, session.Address)
		if err != nil {
			s.logger.Error("dashboard balance unavailable", zap.String("address", session.Address), zap.Error(err))
			out.BalanceError = "Could not fetch balance."
			return nil
		}
		out.Balance = &bal
		out.BalanceDisplay = FormatAPT(&bal)
		return nil
	})
	g.Go(func() error {
		recs, _, err := s.escrows.List(gctx, escrow.ListFilters{WalletAddress: session.Address, PageSize: recentLimit})
		if err != nil {
			return fmt.Errorf("dashboard: escrows: %w", err)
		}
		out.Escrows = recs
		return nil
	})
	g.Go(func() error {
		_, total, err := s.escrows.List(gctx, escrow.ListFilters{WalletAddress: session.Address, Status: escrow.StatusActive, PageSize: 1})
		if err != nil {
			return fmt.Errorf("dashboard: active escrows: %w", err)
		}
		out.ActiveEscrows = total
		return nil
	})
	g.Go(func() error {
		recs, _, err := s.transactions.List(gctx, transaction.ListFilters{WalletAddress: session.Address, PageSize: recentLimit})
		if err != nil {
			return fmt.Errorf("dashboard: transactions: %w", err)
		}
		out.Transactions = recs
		return nil
	})
	g.Go(func() error {
		_, total, err := s.transactions.List(gctx, transaction.ListFilters{WalletAddress: session.Address, Status: transaction.StatusCompleted, PageSize: 1})
		if err != nil {
			return fmt.Errorf("dashboard: completed transactions: %w", err)
		}
		out.CompletedTransactions = total
		return nil
	})

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return out, nil
}

// Fund requests 1 testnet APT for the connected wallet. Failures are reported
// in the result, not as an error.
func (s *Service) Fund(ctx context.Context, session wallet.Session) FundResult {
	hashes, err := s.funder.FundAccount(ctx, session.Address)
	if err != nil {
		msg := FundFailureNotice
		var apiErr *aptos.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			msg = apiErr.Message
		}
		return FundResult{Success: false, Error: msg}
	}
	return FundResult{Success: true, Message: FundSuccessNotice, TxnHashes: hashes}
}

// FormatAPT renders a balance in en-US style with two to four fraction digits.
// An unknown balance renders as 0.00.
func FormatAPT(balance *float64) string {
	v := 0.0
	if balance != nil {
		v = *balance
	}
	p := message.NewPrinter(language.AmericanEnglish)
	return p.Sprint(number.Decimal(v, number.MinFractionDigits(2), number.MaxFractionDigits(4)))
}
