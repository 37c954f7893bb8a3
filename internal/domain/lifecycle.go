package domain

import (
	"time"

	"github.com/google/uuid"
)

type TriggerSource string

const (
	TriggerSourceCron    TriggerSource = "cron"
	TriggerSourceWebhook TriggerSource = "webhook"
	TriggerSourceManual  TriggerSource = "manual"
)

// AccountLifecycleLog is an append-only record of one status transition.
type AccountLifecycleLog struct {
	ID             uuid.UUID         `json:"id"`
	OrganizationID uuid.UUID         `json:"organization_id"`
	PreviousStatus AccountStatus     `json:"previous_status"`
	NewStatus      AccountStatus     `json:"new_status"`
	Reason         string            `json:"reason"`
	TriggeredBy    TriggerSource     `json:"triggered_by"`
	Metadata       map[string]string `json:"metadata"`
	CreatedAt      time.Time         `json:"created_at"`
}

// LifecycleResult summarizes one evaluator invocation. A non-empty Errors
// list is a soft failure: the batch still ran to completion.
type LifecycleResult struct {
	ExpiredTrials      int      `json:"expired_trials"`
	ArchivedAccounts   int      `json:"archived_accounts"`
	CardExpiryWarnings int      `json:"card_expiry_warnings"`
	Errors             []string `json:"errors"`
}

// Merge adds the counters and errors of other into r.
func (r *LifecycleResult) Merge(other LifecycleResult) {
	r.ExpiredTrials += other.ExpiredTrials
	r.ArchivedAccounts += other.ArchivedAccounts
	r.CardExpiryWarnings += other.CardExpiryWarnings
	r.Errors = append(r.Errors, other.Errors...)
}
