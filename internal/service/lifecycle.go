package service

import (
	"context"
	"fmt"
	"time"

	"realty-backend/internal/domain"
	"realty-backend/internal/logger"
	"realty-backend/internal/repository"
)

const (
	readOnlyReasonTrialExpired = "Your free trial has ended. Subscribe to restore full access."
	readOnlyReasonArchived     = "This account was archived after its grace period ended."
)

// LifecycleSettings holds the day-count thresholds of the evaluator
type LifecycleSettings struct {
	GracePeriodDays       int
	CardExpiryHorizonDays int
	CardWarningDedupDays  int
}

type lifecycleService struct {
	orgRepo     repository.OrganizationRepository
	billingRepo repository.BillingProfileRepository
	logRepo     repository.LifecycleLogRepository
	dunningRepo repository.DunningEmailRepository
	settings    LifecycleSettings
}

func NewLifecycleService(
	orgRepo repository.OrganizationRepository,
	billingRepo repository.BillingProfileRepository,
	logRepo repository.LifecycleLogRepository,
	dunningRepo repository.DunningEmailRepository,
	settings LifecycleSettings,
) LifecycleService {
	return &lifecycleService{
		orgRepo:     orgRepo,
		billingRepo: billingRepo,
		logRepo:     logRepo,
		dunningRepo: dunningRepo,
		settings:    settings,
	}
}

// transition is one organization's status change plus the records it leaves behind
type transition struct {
	org       domain.Organization
	from      domain.AccountStatus
	to        domain.AccountStatus
	patch     domain.OrganizationPatch
	reason    string
	emailType domain.DunningEmailType
	metadata  map[string]string
}

func newResult() domain.LifecycleResult {
	return domain.LifecycleResult{Errors: []string{}}
}

// recovered runs fn and turns a panic into an error so one organization cannot abort a batch.
func recovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// apply performs the conditional status write and, only if it took effect,
// the best-effort log and dunning writes. It returns whether the organization
// transitioned and any errors worth reporting.
func (s *lifecycleService) apply(ctx context.Context, t transition) (bool, []string) {
	orgID := t.org.ID

	affected, err := s.orgRepo.TryTransition(ctx, orgID, t.from, t.to, t.patch)
	if err != nil {
		logger.Error("Failed to transition organization", "org_id", orgID, "from", t.from, "to", t.to, "error", err)
		return false, []string{fmt.Sprintf("org %s: failed to transition %s -> %s: %v", orgID, t.from, t.to, err)}
	}
	if affected == 0 {
		logger.Info("Organization status changed concurrently, skipping", "org_id", orgID, "expected", t.from)
		return false, nil
	}

	var errs []string

	entry := &domain.AccountLifecycleLog{
		OrganizationID: orgID,
		PreviousStatus: t.from,
		NewStatus:      t.to,
		Reason:         t.reason,
		TriggeredBy:    domain.TriggerSourceCron,
		Metadata:       t.metadata,
	}
	// The transition has committed; side effects recover individually.
	if err := recovered(func() error { return s.logRepo.Create(ctx, entry) }); err != nil {
		logger.Error("Failed to write lifecycle log", "org_id", orgID, "new_status", t.to, "error", err)
		errs = append(errs, fmt.Sprintf("org %s: failed to write lifecycle log: %v", orgID, err))
	}

	email := &domain.DunningEmail{
		OrganizationID: orgID,
		EmailType:      t.emailType,
		RecipientEmail: t.org.BillingEmail,
		Metadata:       t.metadata,
	}
	if err := recovered(func() error { return s.dunningRepo.Create(ctx, email) }); err != nil {
		logger.Error("Failed to enqueue dunning email", "org_id", orgID, "type", t.emailType, "error", err)
		errs = append(errs, fmt.Sprintf("org %s: failed to enqueue %s email: %v", orgID, t.emailType, err))
	}

	return true, errs
}

func (s *lifecycleService) ExpireTrials(ctx context.Context, now time.Time) domain.LifecycleResult {
	result := newResult()

	orgs, err := s.orgRepo.ListTrialsEndedBefore(ctx, now)
	if err != nil {
		logger.Error("Failed to list expired trials", "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("failed to list expired trials: %v", err))
		return result
	}

	graceEnds := domain.GracePeriodEnd(now, s.settings.GracePeriodDays)
	disabled := false
	reason := readOnlyReasonTrialExpired

	for _, org := range orgs {
		metadata := map[string]string{
			"organization_name":    org.Name,
			"grace_period_ends_at": graceEnds.Format(time.RFC3339),
		}
		if org.TrialEndsAt != nil {
			metadata["trial_ends_at"] = org.TrialEndsAt.Format(time.RFC3339)
		}
		t := transition{
			org:  org,
			from: domain.AccountStatusTrial,
			to:   domain.AccountStatusTrialExpired,
			patch: domain.OrganizationPatch{
				GracePeriodEndsAt:     &graceEnds,
				ReadOnlyReason:        &reason,
				CreditSpendingEnabled: &disabled,
			},
			reason:    "Trial period ended",
			emailType: domain.DunningEmailTrialExpired,
			metadata:  metadata,
		}

		var transitioned bool
		var errs []string
		if err := recovered(func() error {
			transitioned, errs = s.apply(ctx, t)
			return nil
		}); err != nil {
			errs = append(errs, fmt.Sprintf("org %s: %v", org.ID, err))
		}
		if transitioned {
			result.ExpiredTrials++
		}
		result.Errors = append(result.Errors, errs...)
	}

	logger.Info("Expired trials processed", "candidates", len(orgs), "expired", result.ExpiredTrials, "errors", len(result.Errors))
	return result
}

func (s *lifecycleService) ArchiveGraceExpired(ctx context.Context, now time.Time) domain.LifecycleResult {
	result := newResult()
	disabled := false
	reason := readOnlyReasonArchived
	archivedAt := now

	for _, status := range domain.GraceBearingStatuses {
		orgs, err := s.orgRepo.ListGraceEndedBefore(ctx, status, now)
		if err != nil {
			logger.Error("Failed to list grace-expired organizations", "status", status, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("failed to list %s organizations: %v", status, err))
			continue
		}

		for _, org := range orgs {
			metadata := map[string]string{
				"organization_name": org.Name,
				"previous_status":   string(status),
			}
			if org.GracePeriodEndsAt != nil {
				metadata["grace_period_ends_at"] = org.GracePeriodEndsAt.Format(time.RFC3339)
			}
			t := transition{
				org:  org,
				from: status,
				to:   domain.AccountStatusArchived,
				patch: domain.OrganizationPatch{
					ArchivedAt:            &archivedAt,
					ReadOnlyReason:        &reason,
					CreditSpendingEnabled: &disabled,
					IsActive:              &disabled,
				},
				reason:    fmt.Sprintf("Grace period ended while %s", status),
				emailType: domain.DunningEmailAccountArchived,
				metadata:  metadata,
			}

			var transitioned bool
			var errs []string
			if err := recovered(func() error {
				transitioned, errs = s.apply(ctx, t)
				return nil
			}); err != nil {
				errs = append(errs, fmt.Sprintf("org %s: %v", org.ID, err))
			}
			if transitioned {
				result.ArchivedAccounts++
			}
			result.Errors = append(result.Errors, errs...)
		}
	}

	logger.Info("Grace-expired organizations processed", "archived", result.ArchivedAccounts, "errors", len(result.Errors))
	return result
}

func (s *lifecycleService) ScanExpiringCards(ctx context.Context, now time.Time, horizonDays int) domain.LifecycleResult {
	result := newResult()

	horizon := now.AddDate(0, 0, horizonDays)
	profiles, err := s.billingRepo.ListCardsExpiringBetween(ctx, now, horizon)
	if err != nil {
		logger.Error("Failed to list expiring cards", "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("failed to list expiring cards: %v", err))
		return result
	}

	since := now.AddDate(0, 0, -s.settings.CardWarningDedupDays)
	for _, bp := range profiles {
		metadata := map[string]string{}
		if bp.CardExpiresAt != nil {
			metadata["card_expires_at"] = bp.CardExpiresAt.Format(time.RFC3339)
		}
		email := &domain.DunningEmail{
			OrganizationID: bp.OrganizationID,
			EmailType:      domain.DunningEmailCardExpiring,
			RecipientEmail: bp.BillingEmail,
			Metadata:       metadata,
			CreatedAt:      now,
		}

		var inserted bool
		err := recovered(func() error {
			var err error
			inserted, err = s.dunningRepo.CreateUnlessRecent(ctx, email, since)
			return err
		})
		if err != nil {
			logger.Error("Failed to enqueue card expiry warning", "org_id", bp.OrganizationID, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("org %s: failed to enqueue card expiry warning: %v", bp.OrganizationID, err))
			continue
		}
		if inserted {
			result.CardExpiryWarnings++
		} else {
			logger.Debug("Card expiry warning already sent recently", "org_id", bp.OrganizationID)
		}
	}

	logger.Info("Expiring cards scanned", "candidates", len(profiles), "warnings", result.CardExpiryWarnings)
	return result
}

// Run executes the three lifecycle operations in order. A panic in one of them
// is reported as an error and does not prevent the others from running.
func (s *lifecycleService) Run(ctx context.Context, now time.Time) domain.LifecycleResult {
	result := newResult()

	steps := []struct {
		name string
		fn   func() domain.LifecycleResult
	}{
		{"expire_trials", func() domain.LifecycleResult { return s.ExpireTrials(ctx, now) }},
		{"archive_grace_expired", func() domain.LifecycleResult { return s.ArchiveGraceExpired(ctx, now) }},
		{"scan_expiring_cards", func() domain.LifecycleResult {
			return s.ScanExpiringCards(ctx, now, s.settings.CardExpiryHorizonDays)
		}},
	}

	for _, step := range steps {
		var partial domain.LifecycleResult
		if err := recovered(func() error {
			partial = step.fn()
			return nil
		}); err != nil {
			logger.Error("Lifecycle step panicked", "step", step.name, "error", err)
			partial.Errors = append(partial.Errors, fmt.Sprintf("%s: %v", step.name, err))
		}
		result.Merge(partial)
	}

	return result
}
