package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sutradharx/aptos"
	"sutradharx/config"
	"sutradharx/dashboard"
	"sutradharx/db"
	"sutradharx/dispute"
	"sutradharx/escrow"
	"sutradharx/mediation"
	"sutradharx/metrics"
	"sutradharx/ratelimit"
	"sutradharx/transaction"
	"sutradharx/wallet"
)

const (
	draftIdleTTL   = 30 * time.Minute
	limiterIdleTTL = 10 * time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateServe(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServer(ctx, cfg, logger)
	},
}

func runServer(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	var pool *pgxpool.Pool
	if cfg.Database.URL != "" {
		p, err := db.NewPool(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("bootstrap database pool: %w", err)
		}
		defer p.Close()
		pool = p
	} else {
		logger.Warn("DATABASE_URL not set, record listings will be empty")
	}

	srv, err := newServer(ctx, cfg, logger, pool)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return err
		}
		return nil
	})
	return g.Wait()
}

// newServer wires every collaborator from cfg. pool may be nil.
func newServer(ctx context.Context, cfg config.Config, logger *zap.Logger, pool *pgxpool.Pool) (*Server, error) {
	var m *metrics.Metrics
	if cfg.HTTP.MetricsEnabled {
		m = metrics.New()
	}

	wallets, err := wallet.NewService(wallet.Config{
		Secret:       cfg.Wallet.SessionSecret,
		SessionTTL:   cfg.Wallet.SessionTTL,
		ChallengeTTL: cfg.Wallet.ChallengeTTL,
		Networks:     cfg.Wallet.Networks,
	})
	if err != nil {
		return nil, err
	}

	chain := newAptosClient(cfg, logger).WithObserver(m)

	var completer mediation.Completer
	if cfg.Mediation.APIKey != "" {
		gc, err := mediation.NewGeminiCompleter(ctx, cfg.Mediation.APIKey, cfg.Mediation.Model)
		if err != nil {
			return nil, err
		}
		completer = gc
	} else {
		logger.Warn("GEMINI_API_KEY not set, dispute mediation is unavailable")
	}
	mediator := mediation.NewService(completer, cfg.Mediation.Timeout, logger.Named("mediation")).WithObserver(m)

	var (
		escrowRepo      escrow.Repository      = escrow.StaticRepository{}
		transactionRepo transaction.Repository = transaction.StaticRepository{}
		disputeRepo     dispute.Repository     = dispute.StaticRepository{}
		health          healthProbe
	)
	if pool != nil {
		escrowRepo = escrow.NewPGRepository(pool)
		transactionRepo = transaction.NewPGRepository(pool)
		disputeRepo = dispute.NewPGRepository(pool)
		health = pool
	}

	escrows := escrow.NewService(escrowRepo, escrow.NewLogDeployer(logger.Named("escrow")), escrow.NewStore(draftIdleTTL)).WithObserver(m)
	transactions := transaction.NewService(transactionRepo)

	return &Server{
		logger:             logger,
		metrics:            m,
		walletService:      wallets,
		escrowService:      escrows,
		transactionService: transactions,
		disputeService:     dispute.NewService(disputeRepo),
		dashboardService:   dashboard.NewService(chain, chain, escrows, transactions, logger.Named("dashboard")),
		balances:           chain,
		mediator:           mediator,
		dialogs:            mediation.NewDialogStore(draftIdleTTL),
		fundLimiter:        ratelimit.New(cfg.RateLimit.FundPerMinute, cfg.RateLimit.FundBurst, limiterIdleTTL),
		mediateLimiter:     ratelimit.New(cfg.RateLimit.MediatePerMinute, cfg.RateLimit.MediateBurst, limiterIdleTTL),
		db:                 health,
		allowedOrigins:     cfg.HTTP.AllowedOrigins(),
	}, nil
}

func newAptosClient(cfg config.Config, logger *zap.Logger) *aptos.Client {
	return aptos.NewClient(aptos.Config{
		NodeURL:   cfg.Aptos.NodeURL,
		FaucetURL: cfg.Aptos.FaucetURL,
		Network:   cfg.Aptos.Network,
		Timeout:   cfg.Aptos.Timeout,
	}, logger.Named("aptos"))
}
