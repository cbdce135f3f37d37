package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"sutradharx/dispute"
	"sutradharx/mediation"
)

type disputeResponse struct {
	ID        string `json:"id"`
	EscrowID  string `json:"escrowId"`
	Status    string `json:"status"`
	Parties   string `json:"parties"`
	CreatedAt string `json:"createdAt"`
}

type mediationValidationResponse struct {
	Error  string               `json:"error"`
	Fields map[string]string    `json:"fields"`
	Dialog mediation.DialogView `json:"dialog"`
}

type mediationFailureResponse struct {
	Error  string               `json:"error"`
	Dialog mediation.DialogView `json:"dialog"`
}

func (s *Server) handleDisputes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	recs, err := s.disputeService.List(r.Context(), dispute.ListFilters{
		WalletAddress: session.Address,
		EscrowID:      r.URL.Query().Get("escrowId"),
	})
	if err != nil {
		s.log().Error("failed to list disputes", zap.Error(err), zap.String("address", session.Address))
		writeError(w, http.StatusInternalServerError, "failed to list disputes")
		return
	}

	items := make([]disputeResponse, 0, len(recs))
	for _, rec := range recs {
		items = append(items, toDisputeResponse(rec))
	}
	respondJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleMediations opens a fresh mediation dialog.
func (s *Server) handleMediations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	d := s.dialogs.Open(session.Address, s.clock())
	respondJSON(w, http.StatusCreated, d.View())
}

// handleMediationDetail serves /api/disputes/mediations/{id}[/submit|/reset].
func (s *Server) handleMediationDetail(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/disputes/mediations/"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || len(parts) > 2 {
		writeError(w, http.StatusBadRequest, "dialog ID is required")
		return
	}
	id := parts[0]
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	if action == "" {
		switch r.Method {
		case http.MethodGet:
			d, err := s.dialogs.Get(id, session.Address, s.clock())
			if err != nil {
				writeError(w, http.StatusNotFound, "dialog not found")
				return
			}
			respondJSON(w, http.StatusOK, d.View())
		case http.MethodDelete:
			if err := s.dialogs.Close(id, session.Address); err != nil {
				writeError(w, http.StatusNotFound, "dialog not found")
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodDelete)
		}
		return
	}

	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	d, err := s.dialogs.Get(id, session.Address, s.clock())
	if err != nil {
		writeError(w, http.StatusNotFound, "dialog not found")
		return
	}

	switch action {
	case "reset":
		respondJSON(w, http.StatusOK, d.Reset())
	case "submit":
		s.submitMediation(w, r, session.Address, d)
	default:
		writeError(w, http.StatusNotFound, "unknown dialog action")
	}
}

func (s *Server) submitMediation(w http.ResponseWriter, r *http.Request, address string, d *mediation.Dialog) {
	var req mediation.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Invalid requests are answered without spending a rate-limit token.
	var view mediation.DialogView
	err := req.Validate()
	switch {
	case err != nil:
		view = d.View()
	case !s.mediateLimiter.Allow(address, s.clock()):
		s.metrics.ObserveRateLimited("/api/disputes/mediations")
		writeError(w, http.StatusTooManyRequests, "too many mediation requests, try again shortly")
		return
	default:
		// A client disconnect does not cancel the call; only Reset discards its result.
		view, err = d.Submit(context.WithoutCancel(r.Context()), s.mediator, req)
	}

	var verr *mediation.ValidationError
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, view)
	case errors.As(err, &verr):
		respondJSON(w, http.StatusUnprocessableEntity, mediationValidationResponse{
			Error:  "validation failed",
			Fields: verr.Fields,
			Dialog: view,
		})
	case errors.Is(err, mediation.ErrInFlight):
		respondJSON(w, http.StatusConflict, mediationFailureResponse{Error: "a mediation request is already in progress", Dialog: view})
	case errors.Is(err, mediation.ErrDialogReset):
		respondJSON(w, http.StatusConflict, mediationFailureResponse{Error: "dialog was reset", Dialog: view})
	case errors.Is(err, mediation.ErrMediationFailed):
		s.log().Error("mediation failed", zap.Error(err), zap.String("dialog", d.ID()))
		respondJSON(w, http.StatusBadGateway, mediationFailureResponse{Error: mediation.FailureNotice, Dialog: view})
	default:
		s.log().Error("mediation failed", zap.Error(err), zap.String("dialog", d.ID()))
		respondJSON(w, http.StatusInternalServerError, mediationFailureResponse{Error: mediation.FailureNotice, Dialog: view})
	}
}

func toDisputeResponse(rec dispute.Record) disputeResponse {
	return disputeResponse{
		ID:        rec.ID,
		EscrowID:  rec.EscrowID,
		Status:    string(rec.Status),
		Parties:   rec.Parties,
		CreatedAt: formatTime(rec.CreatedAt),
	}
}
