package domain

import (
	"time"

	"github.com/google/uuid"
)

type DunningEmailType string

const (
	DunningEmailTrialExpired    DunningEmailType = "trial_expired"
	DunningEmailAccountArchived DunningEmailType = "account_archived"
	DunningEmailCardExpiring    DunningEmailType = "card_expiring"
)

// DunningEmail is a queued lifecycle notification. Rows are written by the
// lifecycle evaluator and consumed by the dunning dispatcher.
type DunningEmail struct {
	ID             uuid.UUID         `json:"id"`
	OrganizationID uuid.UUID         `json:"organization_id"`
	EmailType      DunningEmailType  `json:"email_type"`
	RecipientEmail string            `json:"recipient_email"`
	Metadata       map[string]string `json:"metadata"`
	CreatedAt      time.Time         `json:"created_at"`
	SentAt         *time.Time        `json:"sent_at"`
	LastError      string            `json:"last_error"`
	Attempts       int               `json:"attempts"`
}
