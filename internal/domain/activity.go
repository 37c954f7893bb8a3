package domain

import (
	"time"

	"github.com/google/uuid"
)

type ActivityType string

const (
	ActivityTypeStageChange     ActivityType = "stage_change"
	ActivityTypeEmailSent       ActivityType = "email_sent"
	ActivityTypeCustomerReplied ActivityType = "customer_replied"
	ActivityTypeNote            ActivityType = "note"
)

// CrmActivity is an append-only timeline event on a profile.
type CrmActivity struct {
	ID             uuid.UUID         `json:"id"`
	OrganizationID uuid.UUID         `json:"organization_id"`
	Profile        ProfileRef        `json:"profile"`
	ActivityType   ActivityType      `json:"activity_type"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	Metadata       map[string]string `json:"metadata"`
	CreatedAt      time.Time         `json:"created_at"`
}
