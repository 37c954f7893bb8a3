package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"realty-backend/internal/domain"
	"realty-backend/internal/logger"
)

type lifecycleResponse struct {
	Success   bool                   `json:"success"`
	Timestamp string                 `json:"timestamp"`
	Results   domain.LifecycleResult `json:"results"`
	Error     string                 `json:"error,omitempty"`
}

// RunAccountLifecycle runs one lifecycle evaluation. Per-organization failures
// are reported in results.errors with a 200; only an escaped panic yields a 500.
func (h *Handler) RunAccountLifecycle(w http.ResponseWriter, r *http.Request) {
	// The batch must finish even if the caller disconnects.
	ctx := context.WithoutCancel(r.Context())
	now := h.now().UTC()

	result := domain.LifecycleResult{Errors: []string{}}
	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("%v", rec)
			}
		}()
		result = h.lifecycle.Run(ctx, now)
		return nil
	}()
	if result.Errors == nil {
		result.Errors = []string{}
	}

	resp := lifecycleResponse{
		Success:   err == nil,
		Timestamp: now.Format(time.RFC3339),
		Results:   result,
	}
	if err != nil {
		logger.Error("Account lifecycle run failed", "error", err)
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	logger.Info("Account lifecycle run finished",
		"expired_trials", result.ExpiredTrials,
		"archived_accounts", result.ArchivedAccounts,
		"card_expiry_warnings", result.CardExpiryWarnings,
		"errors", len(result.Errors))
	writeJSON(w, http.StatusOK, resp)
}
