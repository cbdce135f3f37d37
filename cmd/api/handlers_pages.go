package main

import (
	"net/http"

	"go.uber.org/zap"

	"sutradharx/dashboard"
	"sutradharx/dispute"
	"sutradharx/escrow"
	"sutradharx/mediation"
)

type dashboardPageResponse struct {
	Address               string                `json:"address"`
	ShortAddress          string                `json:"shortAddress"`
	Network               string                `json:"network"`
	Balance               *float64              `json:"balance"`
	BalanceDisplay        string                `json:"balanceDisplay"`
	BalanceError          string                `json:"balanceError,omitempty"`
	ActiveEscrows         int                   `json:"activeEscrows"`
	CompletedTransactions int                   `json:"completedTransactions"`
	Escrows               []escrowResponse      `json:"escrows"`
	Transactions          []transactionResponse `json:"transactions"`
}

type stepResponse struct {
	Index  int      `json:"index"`
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

type createEscrowPageResponse struct {
	Steps []stepResponse `json:"steps"`
}

type mediationFormResponse struct {
	Fields   []string `json:"fields"`
	Endpoint string   `json:"endpoint"`
}

type disputesPageResponse struct {
	Disputes  []disputeResponse     `json:"disputes"`
	Mediation mediationFormResponse `json:"mediation"`
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	respondJSON(w, http.StatusOK, dashboard.LandingContent())
}

func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	sum, err := s.dashboardService.Summary(r.Context(), session)
	if err != nil {
		s.log().Error("failed to build dashboard", zap.Error(err), zap.String("address", session.Address))
		writeError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}

	resp := dashboardPageResponse{
		Address:               sum.Address,
		ShortAddress:          sum.ShortAddress,
		Network:               sum.Network,
		Balance:               sum.Balance,
		BalanceDisplay:        sum.BalanceDisplay,
		BalanceError:          sum.BalanceError,
		ActiveEscrows:         sum.ActiveEscrows,
		CompletedTransactions: sum.CompletedTransactions,
		Escrows:               make([]escrowResponse, 0, len(sum.Escrows)),
		Transactions:          make([]transactionResponse, 0, len(sum.Transactions)),
	}
	for _, rec := range sum.Escrows {
		resp.Escrows = append(resp.Escrows, toEscrowResponse(rec))
	}
	for _, rec := range sum.Transactions {
		resp.Transactions = append(resp.Transactions, toTransactionResponse(rec))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateEscrowPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	var resp createEscrowPageResponse
	for _, step := range escrow.Steps() {
		fields := step.Fields()
		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = string(f)
		}
		resp.Steps = append(resp.Steps, stepResponse{Index: int(step), Name: step.Name(), Fields: names})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDisputesPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	recs, err := s.disputeService.List(r.Context(), dispute.ListFilters{WalletAddress: session.Address})
	if err != nil {
		s.log().Error("failed to list disputes", zap.Error(err), zap.String("address", session.Address))
		writeError(w, http.StatusInternalServerError, "failed to load disputes")
		return
	}

	resp := disputesPageResponse{
		Disputes: make([]disputeResponse, 0, len(recs)),
		Mediation: mediationFormResponse{
			Fields:   []string{mediation.FieldContractTerms, mediation.FieldEvidence},
			Endpoint: "/api/disputes/mediations",
		},
	}
	for _, rec := range recs {
		resp.Disputes = append(resp.Disputes, toDisputeResponse(rec))
	}
	respondJSON(w, http.StatusOK, resp)
}
