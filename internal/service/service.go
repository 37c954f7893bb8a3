package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"realty-backend/internal/domain"
)

// LifecycleService re-derives organization account status from time thresholds.
// Each operation processes every candidate organization independently and
// reports per-organization failures in the result instead of aborting.
type LifecycleService interface {
	ExpireTrials(ctx context.Context, now time.Time) domain.LifecycleResult
	ArchiveGraceExpired(ctx context.Context, now time.Time) domain.LifecycleResult
	ScanExpiringCards(ctx context.Context, now time.Time, horizonDays int) domain.LifecycleResult
	Run(ctx context.Context, now time.Time) domain.LifecycleResult
}

// PipelineService moves CRM profiles through their stages and manages their
// email sequence enrollment.
type PipelineService interface {
	GetProfile(ctx context.Context, ref domain.ProfileRef) (*domain.Profile, error)
	// ChangeStage updates the stage and returns the active sequences triggered by
	// the new stage. It never enrolls the profile itself.
	ChangeStage(ctx context.Context, ref domain.ProfileRef, stage domain.Stage) ([]domain.EmailSequence, error)
	MatchingSequences(ctx context.Context, orgID uuid.UUID, profileType domain.ProfileType, stage domain.Stage) ([]domain.EmailSequence, error)
	StartSequence(ctx context.Context, ref domain.ProfileRef, sequenceID uuid.UUID) error
	PauseSequence(ctx context.Context, ref domain.ProfileRef) (int64, error)
	StopSequence(ctx context.Context, ref domain.ProfileRef) (int64, error)
	OnInboundReply(ctx context.Context, fromAddress string) (*ReplyOutcome, error)
	ListQueue(ctx context.Context, ref domain.ProfileRef) ([]domain.ProfileEmailQueueEntry, error)
}

// ReplyOutcome describes what an inbound reply matched and cancelled.
type ReplyOutcome struct {
	Matched        bool
	Profile        domain.ProfileRef
	CancelledCount int
}

type EmailService interface {
	SendDunningEmail(ctx context.Context, email domain.DunningEmail) error
}
