package escrow

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ListFilters narrows an escrow listing to the escrows a wallet takes part in.
type ListFilters struct {
	WalletAddress string
	Status        Status
	Page          int
	PageSize      int
}

func (f *ListFilters) normalize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 || f.PageSize > 100 {
		f.PageSize = 20
	}
	// Keeps (Page-1)*PageSize from overflowing.
	if maxPage := math.MaxInt / f.PageSize; f.Page > maxPage {
		f.Page = maxPage
	}
}

func (f ListFilters) offset() int {
	return (f.Page - 1) * f.PageSize
}

// Repository reads escrow records. Nothing in the application writes them.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Record, int, error)
}

// PGRepository reads the escrows table.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) List(ctx context.Context, filters ListFilters) ([]Record, int, error) {
	filters.normalize()

	const query = `
        SELECT e.id, e.payer_name, e.payer_upi, e.payee_name, e.payee_upi, e.amount::float8, e.status, e.created_at
        FROM escrows e
        WHERE (lower(e.payer_wallet) = lower($1) OR lower(e.payee_wallet) = lower($1))
          AND ($2::text = '' OR e.status = $2::text)
        ORDER BY e.created_at DESC
        LIMIT $3 OFFSET $4
    `

	status := string(filters.Status)
	rows, err := r.pool.Query(ctx, query, filters.WalletAddress, status, filters.PageSize, filters.offset())
	if err != nil {
		return nil, 0, fmt.Errorf("escrow: list: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Payer.Name, &rec.Payer.UPI, &rec.Payee.Name, &rec.Payee.UPI, &rec.Amount, &rec.Status, &rec.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("escrow: scan: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("escrow: iterate: %w", err)
	}

	const countQuery = `
        SELECT COUNT(*) FROM escrows e
        WHERE (lower(e.payer_wallet) = lower($1) OR lower(e.payee_wallet) = lower($1))
          AND ($2::text = '' OR e.status = $2::text)
    `
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, filters.WalletAddress, status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("escrow: count: %w", err)
	}

	return records, total, nil
}

// StaticRecord pairs a placeholder record with the wallets that may see it.
type StaticRecord struct {
	Record
	PayerWallet string
	PayeeWallet string
}

// StaticRepository serves a fixed placeholder collection. The zero value is empty,
// which is what the dashboard renders when no database is configured.
type StaticRepository struct {
	Records []StaticRecord
}

func (r StaticRepository) List(_ context.Context, filters ListFilters) ([]Record, int, error) {
	filters.normalize()

	matched := []Record{}
	for _, rec := range r.Records {
		if filters.Status != "" && rec.Status != filters.Status {
			continue
		}
		if strings.EqualFold(rec.PayerWallet, filters.WalletAddress) || strings.EqualFold(rec.PayeeWallet, filters.WalletAddress) {
			matched = append(matched, rec.Record)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := filters.offset()
	if start >= total {
		return []Record{}, total, nil
	}
	end := start + filters.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}
