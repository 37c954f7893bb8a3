package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"realty-backend/internal/domain"
)

type OrganizationRepository interface {
	// ListTrialsEndedBefore returns organizations still in trial whose trial_ends_at < before.
	ListTrialsEndedBefore(ctx context.Context, before time.Time) ([]domain.Organization, error)
	// ListGraceEndedBefore returns organizations in status whose grace_period_ends_at < before.
	ListGraceEndedBefore(ctx context.Context, status domain.AccountStatus, before time.Time) ([]domain.Organization, error)
	// TryTransition moves the organization from one status to another only if it is
	// still in the expected status at write time. It returns the rows affected:
	// 0 means another writer got there first.
	TryTransition(ctx context.Context, id uuid.UUID, from, to domain.AccountStatus, patch domain.OrganizationPatch) (int64, error)
}

type BillingProfileRepository interface {
	// ListCardsExpiringBetween returns active-subscription billing profiles whose
	// card expires within [from, to].
	ListCardsExpiringBetween(ctx context.Context, from, to time.Time) ([]domain.BillingProfile, error)
}

type LifecycleLogRepository interface {
	Create(ctx context.Context, entry *domain.AccountLifecycleLog) error
}

type DunningEmailRepository interface {
	Create(ctx context.Context, email *domain.DunningEmail) error
	// CreateUnlessRecent inserts the email only if no row of the same type exists
	// for the organization with created_at > since. It reports whether a row was inserted.
	CreateUnlessRecent(ctx context.Context, email *domain.DunningEmail, since time.Time) (bool, error)
	// ListUnsent returns unsent emails with fewer than maxAttempts failures,
	// least-attempted first so repeated failures cannot block newer rows.
	ListUnsent(ctx context.Context, limit, maxAttempts int) ([]domain.DunningEmail, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	// MarkFailed records the error and counts the attempt.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type ProfileRepository interface {
	GetByID(ctx context.Context, ref domain.ProfileRef) (*domain.Profile, error)
	// FindByEmail returns the first profile of the given type with an exact email match.
	FindByEmail(ctx context.Context, profileType domain.ProfileType, email string) (*domain.Profile, error)
	UpdateStage(ctx context.Context, ref domain.ProfileRef, stage domain.Stage, updatedAt time.Time) error
	TouchLastContact(ctx context.Context, ref domain.ProfileRef, at time.Time) error
}

type SequenceRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.EmailSequence, error)
	ListActiveByTrigger(ctx context.Context, orgID uuid.UUID, profileType domain.ProfileType, stage domain.Stage) ([]domain.EmailSequence, error)
	// ListSteps returns the steps of a sequence ordered by step_number.
	ListSteps(ctx context.Context, sequenceID uuid.UUID) ([]domain.EmailSequenceStep, error)
}

type ProfileEmailQueueRepository interface {
	// HasEnrollment reports whether the profile has any queue row in a status of statuses.
	HasEnrollment(ctx context.Context, ref domain.ProfileRef, statuses []domain.QueueStatus) (bool, error)
	// Enroll inserts entries for ref atomically with a re-check that the profile
	// has no pending or sent rows. It returns domain.ErrAlreadyEnrolled when it does.
	Enroll(ctx context.Context, ref domain.ProfileRef, entries []domain.ProfileEmailQueueEntry) error
	UpdateStatus(ctx context.Context, ref domain.ProfileRef, from, to domain.QueueStatus) (int64, error)
	DeleteByStatus(ctx context.Context, ref domain.ProfileRef, statuses []domain.QueueStatus) (int64, error)
	// Cancel flips rows in status to cancelled with reason and returns the rows it changed.
	Cancel(ctx context.Context, ref domain.ProfileRef, status domain.QueueStatus, reason string) ([]domain.ProfileEmailQueueEntry, error)
	ListByProfile(ctx context.Context, ref domain.ProfileRef) ([]domain.ProfileEmailQueueEntry, error)
}

type ActivityRepository interface {
	Create(ctx context.Context, activity *domain.CrmActivity) error
}
