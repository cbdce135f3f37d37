package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"sutradharx/dashboard"
	"sutradharx/dispute"
	"sutradharx/escrow"
	"sutradharx/mediation"
	"sutradharx/metrics"
	"sutradharx/ratelimit"
	"sutradharx/transaction"
	"sutradharx/wallet"
)

type walletService interface {
	Challenge() wallet.Challenge
	Connect(ctx context.Context, req wallet.ConnectRequest) (wallet.ConnectResult, error)
	VerifyToken(token string) (wallet.Session, error)
	Disconnect(session wallet.Session)
}

type escrowService interface {
	Start(owner string) escrow.Snapshot
	Get(owner, id string) (escrow.Snapshot, error)
	SetFields(owner, id string, raw map[string]string) (escrow.Snapshot, error)
	Next(owner, id string) (escrow.Snapshot, error)
	Previous(owner, id string) (escrow.Snapshot, error)
	Review(owner, id string) (escrow.ReviewView, error)
	Submit(ctx context.Context, owner, id string) (escrow.Draft, error)
	Discard(owner, id string) error
	List(ctx context.Context, filters escrow.ListFilters) ([]escrow.Record, int, error)
}

type transactionService interface {
	List(ctx context.Context, filters transaction.ListFilters) ([]transaction.Record, int, error)
}

type disputeService interface {
	List(ctx context.Context, filters dispute.ListFilters) ([]dispute.Record, error)
}

type dashboardService interface {
	Summary(ctx context.Context, session wallet.Session) (dashboard.Summary, error)
	Fund(ctx context.Context, session wallet.Session) dashboard.FundResult
}

type balanceReader interface {
	GetAccountBalance(ctx context.Context, addr string) (float64, error)
}

// healthProbe reports whether a backing dependency is reachable.
type healthProbe interface {
	Ping(ctx context.Context) error
}

// Server holds the HTTP handlers and their collaborators. Tests build it
// directly with only the services a handler needs.
type Server struct {
	logger  *zap.Logger
	metrics *metrics.Metrics

	walletService      walletService
	escrowService      escrowService
	transactionService transactionService
	disputeService     disputeService
	dashboardService   dashboardService
	balances           balanceReader
	mediator           mediation.Mediator
	dialogs            *mediation.DialogStore

	fundLimiter    *ratelimit.MapLimiter
	mediateLimiter *ratelimit.MapLimiter

	db             healthProbe
	allowedOrigins []string
	now            func() time.Time
}

// Handler wires the routes and the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	s.route(mux, "/", s.handleLanding, false)
	s.route(mux, "/dashboard", s.handleDashboardPage, true)
	s.route(mux, "/dashboard/create-escrow", s.handleCreateEscrowPage, true)
	s.route(mux, "/dashboard/disputes", s.handleDisputesPage, true)

	s.route(mux, "/api/wallet/challenge", s.handleWalletChallenge, false)
	s.route(mux, "/api/wallet/connect", s.handleWalletConnect, false)
	s.route(mux, "/api/wallet/disconnect", s.handleWalletDisconnect, true)
	s.route(mux, "/api/wallet/balance", s.handleWalletBalance, true)
	s.route(mux, "/api/wallet/fund", s.handleWalletFund, true)

	s.route(mux, "/api/escrows", s.handleEscrows, true)
	s.route(mux, "/api/escrows/wizards", s.handleWizards, true)
	s.route(mux, "/api/escrows/wizards/", s.handleWizardDetail, true)
	s.route(mux, "/api/transactions", s.handleTransactions, true)

	s.route(mux, "/api/disputes", s.handleDisputes, true)
	s.route(mux, "/api/disputes/mediations", s.handleMediations, true)
	s.route(mux, "/api/disputes/mediations/", s.handleMediationDetail, true)

	handler := http.Handler(loggingMiddleware(s.log(), mux))
	if len(s.allowedOrigins) > 0 {
		handler = corsMiddleware(s.allowedOrigins)(handler)
	}
	return handler
}

func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc, protected bool) {
	var handler http.Handler = h
	if protected {
		handler = s.requireWallet(handler)
	}
	mux.Handle(pattern, s.instrument(pattern, handler))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	payload := map[string]any{"status": "ok"}
	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			s.log().Error("health probe failed", zap.Error(err))
			status = http.StatusServiceUnavailable
			payload["status"] = "degraded"
			payload["error"] = err.Error()
		}
	}
	respondJSON(w, status, payload)
}

// requireWallet rejects requests without a valid session token and attaches
// the session to the request context.
func (s *Server) requireWallet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "connect your wallet to continue")
			return
		}
		session, err := s.walletService.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "wallet session is invalid or expired")
			return
		}
		next.ServeHTTP(w, r.WithContext(wallet.WithSession(r.Context(), session)))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.ObserveHTTP(r.Method, route, rec.status, time.Since(start))
	})
}

func loggingMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	normalized := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		normalized[origin] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || (!containsOrigin(normalized, origin) && !containsOrigin(normalized, "*")) {
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func containsOrigin(set map[string]struct{}, origin string) bool {
	_, ok := set[origin]
	return ok
}

func (s *Server) log() *zap.Logger {
	if s.logger == nil {
		return zap.NewNop()
	}
	return s.logger
}

func (s *Server) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
