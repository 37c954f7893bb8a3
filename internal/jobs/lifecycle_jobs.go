package jobs

import (
	"context"

	"realty-backend/internal/domain"
	"realty-backend/internal/logger"
)

// RunAccountLifecycle expires trials, archives accounts whose grace period
// ended and queues card expiry warnings.
func (jr *JobRunner) RunAccountLifecycle() {
	jr.runWithRecovery("AccountLifecycle", func() {
		jr.runAccountLifecycle(context.Background())
	})
}

func (jr *JobRunner) runAccountLifecycle(ctx context.Context) domain.LifecycleResult {
	result := jr.services.Lifecycle.Run(ctx, jr.now().UTC())

	log := logger.WithJob("AccountLifecycle")
	if len(result.Errors) > 0 {
		log.Warn("Account lifecycle completed with errors",
			"expired_trials", result.ExpiredTrials,
			"archived_accounts", result.ArchivedAccounts,
			"card_expiry_warnings", result.CardExpiryWarnings,
			"errors", result.Errors)
		return result
	}

	log.Info("Account lifecycle completed",
		"expired_trials", result.ExpiredTrials,
		"archived_accounts", result.ArchivedAccounts,
		"card_expiry_warnings", result.CardExpiryWarnings)
	return result
}
