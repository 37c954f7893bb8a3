package jobs

import (
	"context"

	"realty-backend/internal/logger"
)

// DispatchDunningEmails delivers queued lifecycle emails through SendGrid
func (jr *JobRunner) DispatchDunningEmails() {
	jr.runWithRecovery("DispatchDunningEmails", func() {
		jr.dispatchDunningEmails(context.Background())
	})
}

func (jr *JobRunner) dispatchDunningEmails(ctx context.Context) (sent, failed int) {
	if jr.services.Email == nil || !jr.config.SendGrid.Enabled() {
		logger.Info("SendGrid not configured, skipping dunning email dispatch")
		return 0, 0
	}

	emails, err := jr.store.DunningEmailRepository.ListUnsent(ctx, jr.config.SendGrid.BatchSize, jr.config.SendGrid.MaxAttempts)
	if err != nil {
		logger.Error("Failed to list unsent dunning emails", "error", err)
		return 0, 0
	}

	for _, email := range emails {
		if err := jr.services.Email.SendDunningEmail(ctx, email); err != nil {
			logger.Error("Failed to send dunning email",
				"email_id", email.ID,
				"org_id", email.OrganizationID,
				"type", email.EmailType,
				"error", err)
			if markErr := jr.store.DunningEmailRepository.MarkFailed(ctx, email.ID, err.Error()); markErr != nil {
				logger.Error("Failed to record dunning email failure", "email_id", email.ID, "error", markErr)
			}
			failed++
			continue
		}

		if err := jr.store.DunningEmailRepository.MarkSent(ctx, email.ID, jr.now()); err != nil {
			logger.Error("Failed to mark dunning email sent", "email_id", email.ID, "error", err)
			continue
		}
		sent++
		logger.Debug("Sent dunning email", "email_id", email.ID, "type", email.EmailType)
	}

	logger.Info("Completed dunning email dispatch",
		"batch", len(emails),
		"sent", sent,
		"failed", failed)
	return sent, failed
}
