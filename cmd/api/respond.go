package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sutradharx/wallet"
)

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

func writeValidation(w http.ResponseWriter, fields map[string]string, firstInvalid string, extra any) {
	respondJSON(w, http.StatusUnprocessableEntity, validationResponse{
		Error:        "validation failed",
		Fields:       fields,
		FirstInvalid: firstInvalid,
		Wizard:       extra,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	return nil
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	if v, err := strconv.Atoi(value); err == nil {
		return v
	}
	return fallback
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// sessionFrom returns the wallet attached by requireWallet.
func sessionFrom(w http.ResponseWriter, r *http.Request) (wallet.Session, bool) {
	session, ok := wallet.FromContext(r.Context())
	if !ok || session.Address == "" {
		writeError(w, http.StatusUnauthorized, "connect your wallet to continue")
		return wallet.Session{}, false
	}
	return session, true
}

type errorResponse struct {
	Error string `json:"error"`
}

type validationResponse struct {
	Error        string            `json:"error"`
	Fields       map[string]string `json:"fields"`
	FirstInvalid string            `json:"firstInvalid,omitempty"`
	Wizard       any               `json:"wizard,omitempty"`
}
