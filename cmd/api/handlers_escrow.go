package main

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"sutradharx/escrow"
	"sutradharx/transaction"
)

type partyResponse struct {
	Name          string `json:"name"`
	UPIID         string `json:"upiId"`
	WalletAddress string `json:"walletAddress,omitempty"`
}

type wizardResponse struct {
	ID        string            `json:"id"`
	Step      int               `json:"step"`
	StepName  string            `json:"stepName"`
	Fields    []string          `json:"fields"`
	Values    map[string]string `json:"values"`
	Submitted bool              `json:"submitted"`
	CreatedAt string            `json:"createdAt"`
	UpdatedAt string            `json:"updatedAt"`
}

type reviewResponse struct {
	Payer         partyResponse `json:"payer"`
	Payee         partyResponse `json:"payee"`
	Amount        float64       `json:"amount"`
	AmountDisplay string        `json:"amountDisplay"`
	Terms         string        `json:"terms"`
}

type submitResponse struct {
	Notice string         `json:"notice"`
	Draft  reviewResponse `json:"draft"`
}

type escrowResponse struct {
	ID            string        `json:"id"`
	Payer         partyResponse `json:"payer"`
	Payee         partyResponse `json:"payee"`
	Amount        float64       `json:"amount"`
	AmountDisplay string        `json:"amountDisplay"`
	Status        string        `json:"status"`
	CreatedAt     string        `json:"createdAt"`
}

type transactionResponse struct {
	ID            string  `json:"id"`
	EscrowID      string  `json:"escrowId"`
	Amount        float64 `json:"amount"`
	AmountDisplay string  `json:"amountDisplay"`
	Status        string  `json:"status"`
	Type          string  `json:"type"`
	Timestamp     string  `json:"timestamp"`
}

type listResponse[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

type setFieldsRequest struct {
	Values map[string]string `json:"values"`
}

func (s *Server) handleEscrows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filters := escrow.ListFilters{
		WalletAddress: session.Address,
		Status:        escrow.Status(query.Get("status")),
		Page:          parseInt(query.Get("page"), 1),
		PageSize:      parseInt(query.Get("pageSize"), 20),
	}
	recs, total, err := s.escrowService.List(r.Context(), filters)
	if err != nil {
		s.log().Error("failed to list escrows", zap.Error(err), zap.String("address", session.Address))
		writeError(w, http.StatusInternalServerError, "failed to list escrows")
		return
	}

	resp := listResponse[escrowResponse]{Items: make([]escrowResponse, 0, len(recs)), Total: total, Page: filters.Page, PageSize: filters.PageSize}
	for _, rec := range recs {
		resp.Items = append(resp.Items, toEscrowResponse(rec))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	filters := transaction.ListFilters{
		WalletAddress: session.Address,
		Status:        transaction.Status(query.Get("status")),
		Page:          parseInt(query.Get("page"), 1),
		PageSize:      parseInt(query.Get("pageSize"), 20),
	}
	recs, total, err := s.transactionService.List(r.Context(), filters)
	if err != nil {
		s.log().Error("failed to list transactions", zap.Error(err), zap.String("address", session.Address))
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	resp := listResponse[transactionResponse]{Items: make([]transactionResponse, 0, len(recs)), Total: total, Page: filters.Page, PageSize: filters.PageSize}
	for _, rec := range recs {
		resp.Items = append(resp.Items, toTransactionResponse(rec))
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleWizards creates a new escrow draft for the connected wallet.
func (s *Server) handleWizards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	snap := s.escrowService.Start(session.Address)
	respondJSON(w, http.StatusCreated, toWizardResponse(snap))
}

// handleWizardDetail serves /api/escrows/wizards/{id}[/{action}].
func (s *Server) handleWizardDetail(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/escrows/wizards/"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || len(parts) > 2 {
		writeError(w, http.StatusBadRequest, "wizard ID is required")
		return
	}
	id := parts[0]
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}
	owner := session.Address

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			snap, err := s.escrowService.Get(owner, id)
			if err != nil {
				s.writeEscrowError(w, err, nil)
				return
			}
			respondJSON(w, http.StatusOK, toWizardResponse(snap))
		case http.MethodDelete:
			if err := s.escrowService.Discard(owner, id); err != nil {
				s.writeEscrowError(w, err, nil)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodDelete)
		}
	case "fields":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, http.MethodPut)
			return
		}
		var req setFieldsRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		snap, err := s.escrowService.SetFields(owner, id, req.Values)
		if err != nil {
			s.writeEscrowError(w, err, nil)
			return
		}
		respondJSON(w, http.StatusOK, toWizardResponse(snap))
	case "next":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		snap, err := s.escrowService.Next(owner, id)
		if err != nil {
			s.writeEscrowError(w, err, &snap)
			return
		}
		respondJSON(w, http.StatusOK, toWizardResponse(snap))
	case "previous":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		snap, err := s.escrowService.Previous(owner, id)
		if err != nil {
			s.writeEscrowError(w, err, nil)
			return
		}
		respondJSON(w, http.StatusOK, toWizardResponse(snap))
	case "review":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		view, err := s.escrowService.Review(owner, id)
		if err != nil {
			s.writeEscrowError(w, err, nil)
			return
		}
		respondJSON(w, http.StatusOK, toReviewResponse(view))
	case "submit":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		draft, err := s.escrowService.Submit(r.Context(), owner, id)
		if err != nil {
			s.writeEscrowError(w, err, nil)
			return
		}
		respondJSON(w, http.StatusOK, submitResponse{
			Notice: escrow.DeploymentNotice,
			Draft:  toDraftResponse(draft),
		})
	default:
		writeError(w, http.StatusNotFound, "unknown wizard action")
	}
}

func (s *Server) writeEscrowError(w http.ResponseWriter, err error, snap *escrow.Snapshot) {
	var verr *escrow.ValidationError
	switch {
	case errors.As(err, &verr):
		var extra any
		if snap != nil && snap.ID != "" {
			extra = toWizardResponse(*snap)
		}
		writeValidation(w, verr.Messages(), string(verr.FirstInvalid()), extra)
	case errors.Is(err, escrow.ErrWizardNotFound):
		writeError(w, http.StatusNotFound, "wizard not found")
	case errors.Is(err, escrow.ErrUnknownField):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, escrow.ErrLastStep),
		errors.Is(err, escrow.ErrNotAtReview),
		errors.Is(err, escrow.ErrAlreadySubmitted),
		errors.Is(err, escrow.ErrSubmitting):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, escrow.ErrDeployFailed):
		s.log().Error("escrow deployment failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "Failed to deploy the escrow contract. Please try again.")
	default:
		s.log().Error("escrow wizard failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func toWizardResponse(snap escrow.Snapshot) wizardResponse {
	fields := snap.Step.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	values := make(map[string]string, len(snap.Values))
	for f, v := range snap.Values {
		values[string(f)] = v
	}
	return wizardResponse{
		ID:        snap.ID,
		Step:      int(snap.Step),
		StepName:  snap.Step.Name(),
		Fields:    names,
		Values:    values,
		Submitted: snap.Submitted,
		CreatedAt: formatTime(snap.CreatedAt),
		UpdatedAt: formatTime(snap.UpdatedAt),
	}
}

func toReviewResponse(v escrow.ReviewView) reviewResponse {
	return reviewResponse{
		Payer:         partyResponse{Name: v.Payer.Name, UPIID: v.Payer.UPIID, WalletAddress: v.Payer.WalletAddress},
		Payee:         partyResponse{Name: v.Payee.Name, UPIID: v.Payee.UPIID, WalletAddress: v.Payee.WalletAddress},
		Amount:        v.Amount,
		AmountDisplay: v.AmountDisplay,
		Terms:         v.Terms,
	}
}

func toDraftResponse(d escrow.Draft) reviewResponse {
	return toReviewResponse(escrow.ReviewView{
		Payer:         d.Payer,
		Payee:         d.Payee,
		Amount:        d.Amount,
		AmountDisplay: escrow.FormatINR(d.Amount),
		Terms:         d.Terms,
	})
}

func toEscrowResponse(rec escrow.Record) escrowResponse {
	return escrowResponse{
		ID:            rec.ID,
		Payer:         partyResponse{Name: rec.Payer.Name, UPIID: rec.Payer.UPI},
		Payee:         partyResponse{Name: rec.Payee.Name, UPIID: rec.Payee.UPI},
		Amount:        rec.Amount,
		AmountDisplay: escrow.FormatINR(rec.Amount),
		Status:        string(rec.Status),
		CreatedAt:     formatTime(rec.CreatedAt),
	}
}

func toTransactionResponse(rec transaction.Record) transactionResponse {
	return transactionResponse{
		ID:            rec.ID,
		EscrowID:      rec.EscrowID,
		Amount:        rec.Amount,
		AmountDisplay: escrow.FormatINR(rec.Amount),
		Status:        string(rec.Status),
		Type:          string(rec.Type),
		Timestamp:     formatTime(rec.Timestamp),
	}
}
