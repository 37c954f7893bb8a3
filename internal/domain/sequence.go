package domain

import (
	"time"

	"github.com/google/uuid"
)

type EmailSequence struct {
	ID             uuid.UUID   `json:"id"`
	OrganizationID uuid.UUID   `json:"organization_id"`
	Name           string      `json:"name"`
	ProfileType    ProfileType `json:"profile_type"`
	TriggerStage   Stage       `json:"trigger_stage"`
	IsActive       bool        `json:"is_active"`
}

type EmailSequenceStep struct {
	ID          uuid.UUID `json:"id"`
	SequenceID  uuid.UUID `json:"sequence_id"`
	StepNumber  int       `json:"step_number"`
	TemplateKey string    `json:"template_key"`
	DelayHours  int       `json:"delay_hours"`
}

type QueueStatus string

const (
	QueueStatusPending   QueueStatus = "pending"
	QueueStatusSent      QueueStatus = "sent"
	QueueStatusPaused    QueueStatus = "paused"
	QueueStatusCancelled QueueStatus = "cancelled"
)

// EnrolledStatuses mark a profile as currently enrolled in a sequence.
var EnrolledStatuses = []QueueStatus{QueueStatusPending, QueueStatusSent}

const CancelReasonCustomerReplied = "customer_replied"

// ProfileEmailQueueEntry is one scheduled send of one sequence step to one profile.
type ProfileEmailQueueEntry struct {
	ID              uuid.UUID   `json:"id"`
	Profile         ProfileRef  `json:"profile"`
	SequenceID      uuid.UUID   `json:"sequence_id"`
	StepNumber      int         `json:"step_number"`
	TemplateKey     string      `json:"template_key"`
	ScheduledFor    time.Time   `json:"scheduled_for"`
	Status          QueueStatus `json:"status"`
	CancelledReason string      `json:"cancelled_reason"`
	SentAt          *time.Time  `json:"sent_at"`
	CreatedAt       time.Time   `json:"created_at"`
}

// ScheduleSteps builds pending queue entries for steps, which must be ordered
// by step number. By default each step is offset from enrolledAt by its own
// delay; with cumulative set, delays chain so step n fires after step n-1.
func ScheduleSteps(ref ProfileRef, sequenceID uuid.UUID, steps []EmailSequenceStep, enrolledAt time.Time, cumulative bool) []ProfileEmailQueueEntry {
	entries := make([]ProfileEmailQueueEntry, 0, len(steps))
	offset := time.Duration(0)
	for _, step := range steps {
		delay := time.Duration(step.DelayHours) * time.Hour
		if cumulative {
			offset += delay
		} else {
			offset = delay
		}
		entries = append(entries, ProfileEmailQueueEntry{
			ID:           uuid.New(),
			Profile:      ref,
			SequenceID:   sequenceID,
			StepNumber:   step.StepNumber,
			TemplateKey:  step.TemplateKey,
			ScheduledFor: enrolledAt.Add(offset),
			Status:       QueueStatusPending,
			CreatedAt:    enrolledAt,
		})
	}
	return entries
}
