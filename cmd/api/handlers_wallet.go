package main

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"sutradharx/aptos"
	"sutradharx/dashboard"
	"sutradharx/wallet"
)

type connectResponse struct {
	Token     string `json:"token"`
	Address   string `json:"address"`
	Short     string `json:"shortAddress"`
	Network   string `json:"network"`
	ExpiresAt string `json:"expiresAt"`
}

type walletStatusResponse struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address,omitempty"`
	Short     string `json:"shortAddress,omitempty"`
	Network   string `json:"network,omitempty"`
}

type balanceResponse struct {
	Address string  `json:"address"`
	Balance float64 `json:"balance"`
	Display string  `json:"display"`
}

type fundResponse struct {
	Success   bool     `json:"success"`
	Error     string   `json:"error,omitempty"`
	Message   string   `json:"message,omitempty"`
	TxnHashes []string `json:"txnHashes,omitempty"`
}

func (s *Server) handleWalletChallenge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	respondJSON(w, http.StatusOK, s.walletService.Challenge())
}

func (s *Server) handleWalletConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req wallet.ConnectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.walletService.Connect(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrUnknownChallenge),
			errors.Is(err, wallet.ErrInvalidSignature),
			errors.Is(err, wallet.ErrAddressMismatch):
			writeError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, wallet.ErrUnsupportedNetwork),
			errors.Is(err, aptos.ErrInvalidAddress):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.log().Error("wallet connect failed", zap.Error(err))
			writeError(w, http.StatusBadRequest, "failed to connect wallet")
		}
		return
	}

	s.log().Info("wallet connected", zap.String("address", res.Session.Address), zap.String("network", res.Session.Network))
	respondJSON(w, http.StatusOK, connectResponse{
		Token:     res.Token,
		Address:   res.Session.Address,
		Short:     res.Session.ShortAddress(),
		Network:   res.Session.Network,
		ExpiresAt: formatTime(res.Session.ExpiresAt),
	})
}

func (s *Server) handleWalletDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	s.walletService.Disconnect(session)
	respondJSON(w, http.StatusOK, walletStatusResponse{Connected: false})
}

func (s *Server) handleWalletBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	bal, err := s.balances.GetAccountBalance(r.Context(), session.Address)
	if err != nil {
		s.log().Error("failed to fetch balance", zap.Error(err), zap.String("address", session.Address))
		writeError(w, http.StatusBadGateway, "failed to fetch balance")
		return
	}
	respondJSON(w, http.StatusOK, balanceResponse{
		Address: session.Address,
		Balance: bal,
		Display: dashboard.FormatAPT(&bal),
	})
}

func (s *Server) handleWalletFund(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	if !s.fundLimiter.Allow(session.Address, s.clock()) {
		s.metrics.ObserveRateLimited("/api/wallet/fund")
		writeError(w, http.StatusTooManyRequests, "too many faucet requests, try again later")
		return
	}

	res := s.dashboardService.Fund(r.Context(), session)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	respondJSON(w, status, fundResponse{
		Success:   res.Success,
		Error:     res.Error,
		Message:   res.Message,
		TxnHashes: res.TxnHashes,
	})
}
