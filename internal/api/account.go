package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/digihome/digihome-core/internal/account"
)

type pushTokenRequest struct {
	Token string `json:"token"`
}

// handleAddPushToken stores a push delivery token for the calling account.
func (s *Server) handleAddPushToken(w http.ResponseWriter, r *http.Request) {
	if s.accounts == nil {
		writeUnavailable(w, "accounts are not available")
		return
	}
	var req pushTokenRequest
	if !decodeBody(w, r, &req) {
		return
	}

	accountID := accountIDFromContext(r.Context())
	err := s.accounts.AddPushToken(r.Context(), accountID, strings.TrimSpace(req.Token))
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]string{"status": "registered"})
	case errors.Is(err, account.ErrInvalidToken):
		writeValidationError(w, "token is required")
	case errors.Is(err, account.ErrAccountNotFound):
		writeNotFound(w, "account not found")
	default:
		s.logger.Error("registering push token", "account_id", accountID, "error", err)
		writeInternalError(w, "failed to register token")
	}
}

// handleBudgetCheck evaluates the calling account's budget immediately.
func (s *Server) handleBudgetCheck(w http.ResponseWriter, r *http.Request) {
	if s.budget == nil {
		writeUnavailable(w, "budget monitor is disabled")
		return
	}
	accountID := accountIDFromContext(r.Context())
	report, err := s.budget.CheckAccount(r.Context(), accountID, time.Now())
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			writeNotFound(w, "account not found")
			return
		}
		s.logger.Error("budget check failed", "account_id", accountID, "error", err)
		writeInternalError(w, "budget check failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
