package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"realty-backend/internal/domain"
	"realty-backend/internal/logger"
	"realty-backend/internal/repository"
)

// PipelineSettings carries the sequence behavior toggles.
type PipelineSettings struct {
	// CumulativeDelays chains step delays instead of offsetting each step from enrollment.
	CumulativeDelays bool
	// ReplyCancelStatus is the queue status an inbound reply cancels.
	ReplyCancelStatus domain.QueueStatus
	// SellerFirst checks seller profiles before buyer profiles on inbound replies.
	SellerFirst bool
	Clock       func() time.Time
}

type pipelineService struct {
	profileRepo  repository.ProfileRepository
	sequenceRepo repository.SequenceRepository
	queueRepo    repository.ProfileEmailQueueRepository
	activityRepo repository.ActivityRepository
	settings     PipelineSettings
}

func NewPipelineService(
	profileRepo repository.ProfileRepository,
	sequenceRepo repository.SequenceRepository,
	queueRepo repository.ProfileEmailQueueRepository,
	activityRepo repository.ActivityRepository,
	settings PipelineSettings,
) PipelineService {
	if settings.Clock == nil {
		settings.Clock = time.Now
	}
	if settings.ReplyCancelStatus == "" {
		settings.ReplyCancelStatus = domain.QueueStatusPending
	}
	return &pipelineService{
		profileRepo:  profileRepo,
		sequenceRepo: sequenceRepo,
		queueRepo:    queueRepo,
		activityRepo: activityRepo,
		settings:     settings,
	}
}

func (s *pipelineService) GetProfile(ctx context.Context, ref domain.ProfileRef) (*domain.Profile, error) {
	if !ref.Type.Valid() {
		return nil, domain.ErrInvalidProfileType
	}
	return s.profileRepo.GetByID(ctx, ref)
}

// recordActivity appends a timeline entry. Failures are logged and swallowed.
func (s *pipelineService) recordActivity(ctx context.Context, a *domain.CrmActivity) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.settings.Clock()
	}
	if err := s.activityRepo.Create(ctx, a); err != nil {
		logger.Warn("Failed to record CRM activity", "profile_id", a.Profile.ID, "type", a.ActivityType, "error", err)
	}
}

func (s *pipelineService) ChangeStage(ctx context.Context, ref domain.ProfileRef, stage domain.Stage) ([]domain.EmailSequence, error) {
	logger.EnterMethod("pipelineService.ChangeStage", "profileID", ref.ID, "profileType", ref.Type, "stage", stage)

	if !ref.Type.Valid() {
		return nil, domain.ErrInvalidProfileType
	}
	if !domain.ValidStage(ref.Type, stage) {
		return nil, domain.ErrInvalidStage
	}

	profile, err := s.profileRepo.GetByID(ctx, ref)
	if err != nil {
		logger.ExitMethodWithError("pipelineService.ChangeStage", err, "reason", "profile lookup")
		return nil, err
	}

	now := s.settings.Clock()
	if err := s.profileRepo.UpdateStage(ctx, ref, stage, now); err != nil {
		logger.ExitMethodWithError("pipelineService.ChangeStage", err, "reason", "update stage")
		return nil, err
	}

	s.recordActivity(ctx, &domain.CrmActivity{
		OrganizationID: profile.OrganizationID,
		Profile:        ref,
		ActivityType:   domain.ActivityTypeStageChange,
		Title:          "Stage Changed",
		Description:    fmt.Sprintf("Moved from %s to %s", profile.Stage, stage),
		Metadata: map[string]string{
			"previous_stage": string(profile.Stage),
			"new_stage":      string(stage),
		},
		CreatedAt: now,
	})

	sequences, err := s.MatchingSequences(ctx, profile.OrganizationID, ref.Type, stage)
	if err != nil {
		// The stage change already happened; suggestions are advisory.
		logger.Warn("Failed to load matching sequences", "profile_id", ref.ID, "stage", stage, "error", err)
		sequences = []domain.EmailSequence{}
	}

	logger.ExitMethod("pipelineService.ChangeStage", "profileID", ref.ID, "matchingSequences", len(sequences))
	return sequences, nil
}

func (s *pipelineService) MatchingSequences(ctx context.Context, orgID uuid.UUID, profileType domain.ProfileType, stage domain.Stage) ([]domain.EmailSequence, error) {
	if !profileType.Valid() {
		return nil, domain.ErrInvalidProfileType
	}
	sequences, err := s.sequenceRepo.ListActiveByTrigger(ctx, orgID, profileType, stage)
	if err != nil {
		return nil, err
	}
	if sequences == nil {
		sequences = []domain.EmailSequence{}
	}
	return sequences, nil
}

func (s *pipelineService) StartSequence(ctx context.Context, ref domain.ProfileRef, sequenceID uuid.UUID) error {
	logger.EnterMethod("pipelineService.StartSequence", "profileID", ref.ID, "profileType", ref.Type, "sequenceID", sequenceID)

	if !ref.Type.Valid() {
		return domain.ErrInvalidProfileType
	}

	profile, err := s.profileRepo.GetByID(ctx, ref)
	if err != nil {
		logger.ExitMethodWithError("pipelineService.StartSequence", err, "reason", "profile lookup")
		return err
	}

	enrolled, err := s.queueRepo.HasEnrollment(ctx, ref, domain.EnrolledStatuses)
	if err != nil {
		logger.ExitMethodWithError("pipelineService.StartSequence", err, "reason", "enrollment check")
		return err
	}
	if enrolled {
		logger.ExitMethodWithError("pipelineService.StartSequence", domain.ErrAlreadyEnrolled, "profileID", ref.ID)
		return domain.ErrAlreadyEnrolled
	}

	sequence, err := s.sequenceRepo.GetByID(ctx, sequenceID)
	if err != nil {
		logger.ExitMethodWithError("pipelineService.StartSequence", err, "reason", "sequence lookup")
		return err
	}
	// A sequence owned by another organization is reported as missing.
	if sequence.OrganizationID != profile.OrganizationID {
		logger.ExitMethodWithError("pipelineService.StartSequence", domain.ErrSequenceNotFound, "sequenceID", sequenceID)
		return domain.ErrSequenceNotFound
	}
	if sequence.ProfileType != ref.Type {
		logger.ExitMethodWithError("pipelineService.StartSequence", domain.ErrSequenceTypeMismatch, "sequenceID", sequenceID)
		return domain.ErrSequenceTypeMismatch
	}
	if !sequence.IsActive {
		logger.ExitMethodWithError("pipelineService.StartSequence", domain.ErrSequenceInactive, "sequenceID", sequenceID)
		return domain.ErrSequenceInactive
	}

	steps, err := s.sequenceRepo.ListSteps(ctx, sequenceID)
	if err != nil {
		logger.ExitMethodWithError("pipelineService.StartSequence", err, "reason", "list steps")
		return err
	}
	if len(steps) == 0 {
		logger.ExitMethodWithError("pipelineService.StartSequence", domain.ErrSequenceHasNoSteps, "sequenceID", sequenceID)
		return domain.ErrSequenceHasNoSteps
	}

	now := s.settings.Clock()
	entries := domain.ScheduleSteps(ref, sequenceID, steps, now, s.settings.CumulativeDelays)

	// Enroll re-checks enrollment under a row lock, so a concurrent start loses here.
	if err := s.queueRepo.Enroll(ctx, ref, entries); err != nil {
		logger.ExitMethodWithError("pipelineService.StartSequence", err, "reason", "enroll")
		return err
	}

	s.recordActivity(ctx, &domain.CrmActivity{
		OrganizationID: profile.OrganizationID,
		Profile:        ref,
		ActivityType:   domain.ActivityTypeEmailSent,
		Title:          "Manually Started Email Sequence",
		Description:    fmt.Sprintf("Enrolled in %q with %d scheduled emails", sequence.Name, len(entries)),
		Metadata: map[string]string{
			"sequence_id": sequenceID.String(),
			"steps":       strconv.Itoa(len(entries)),
		},
		CreatedAt: now,
	})

	logger.ExitMethod("pipelineService.StartSequence", "profileID", ref.ID, "scheduled", len(entries))
	return nil
}

func (s *pipelineService) PauseSequence(ctx context.Context, ref domain.ProfileRef) (int64, error) {
	if !ref.Type.Valid() {
		return 0, domain.ErrInvalidProfileType
	}
	profile, err := s.profileRepo.GetByID(ctx, ref)
	if err != nil {
		return 0, err
	}

	paused, err := s.queueRepo.UpdateStatus(ctx, ref, domain.QueueStatusPending, domain.QueueStatusPaused)
	if err != nil {
		logger.Error("Failed to pause sequence", "profile_id", ref.ID, "error", err)
		return 0, err
	}

	s.recordActivity(ctx, &domain.CrmActivity{
		OrganizationID: profile.OrganizationID,
		Profile:        ref,
		ActivityType:   domain.ActivityTypeNote,
		Title:          "Email Sequence Paused",
		Description:    fmt.Sprintf("%d pending emails paused", paused),
		Metadata:       map[string]string{"paused": strconv.FormatInt(paused, 10)},
	})

	logger.Info("Sequence paused", "profile_id", ref.ID, "paused", paused)
	return paused, nil
}

func (s *pipelineService) StopSequence(ctx context.Context, ref domain.ProfileRef) (int64, error) {
	if !ref.Type.Valid() {
		return 0, domain.ErrInvalidProfileType
	}
	profile, err := s.profileRepo.GetByID(ctx, ref)
	if err != nil {
		return 0, err
	}

	removed, err := s.queueRepo.DeleteByStatus(ctx, ref, []domain.QueueStatus{domain.QueueStatusPending, domain.QueueStatusPaused})
	if err != nil {
		logger.Error("Failed to stop sequence", "profile_id", ref.ID, "error", err)
		return 0, err
	}

	s.recordActivity(ctx, &domain.CrmActivity{
		OrganizationID: profile.OrganizationID,
		Profile:        ref,
		ActivityType:   domain.ActivityTypeNote,
		Title:          "Email Sequence Stopped",
		Description:    fmt.Sprintf("%d unsent emails removed", removed),
		Metadata:       map[string]string{"removed": strconv.FormatInt(removed, 10)},
	})

	logger.Info("Sequence stopped", "profile_id", ref.ID, "removed", removed)
	return removed, nil
}

// replyAddress extracts the bare address from a From header value such as
// "Jane Doe <jane@example.com>".
func replyAddress(from string) string {
	from = strings.TrimSpace(from)
	if addr, err := mail.ParseAddress(from); err == nil {
		return addr.Address
	}
	return from
}

func (s *pipelineService) lookupOrder() []domain.ProfileType {
	if s.settings.SellerFirst {
		return []domain.ProfileType{domain.ProfileTypeSeller, domain.ProfileTypeBuyer}
	}
	return []domain.ProfileType{domain.ProfileTypeBuyer, domain.ProfileTypeSeller}
}

func (s *pipelineService) OnInboundReply(ctx context.Context, fromAddress string) (*ReplyOutcome, error) {
	address := replyAddress(fromAddress)
	if address == "" {
		return &ReplyOutcome{}, nil
	}

	var profile *domain.Profile
	for _, t := range s.lookupOrder() {
		p, err := s.profileRepo.FindByEmail(ctx, t, address)
		if errors.Is(err, domain.ErrProfileNotFound) {
			continue
		}
		if err != nil {
			logger.Error("Failed to look up reply sender", "profile_type", t, "error", err)
			return nil, err
		}
		profile = p
		break
	}
	if profile == nil {
		logger.Info("Inbound reply matched no profile")
		return &ReplyOutcome{}, nil
	}

	ref := profile.Ref()
	cancelled, err := s.queueRepo.Cancel(ctx, ref, s.settings.ReplyCancelStatus, domain.CancelReasonCustomerReplied)
	if err != nil {
		logger.Error("Failed to cancel queued emails on reply", "profile_id", ref.ID, "error", err)
		return nil, err
	}

	now := s.settings.Clock()
	for _, entry := range cancelled {
		s.recordActivity(ctx, &domain.CrmActivity{
			OrganizationID: profile.OrganizationID,
			Profile:        ref,
			ActivityType:   domain.ActivityTypeCustomerReplied,
			Title:          "Customer Replied - Sequence Cancelled",
			Description:    fmt.Sprintf("Step %d cancelled after a reply", entry.StepNumber),
			Metadata: map[string]string{
				"queue_id":    entry.ID.String(),
				"sequence_id": entry.SequenceID.String(),
				"step_number": strconv.Itoa(entry.StepNumber),
			},
			CreatedAt: now,
		})
	}

	if err := s.profileRepo.TouchLastContact(ctx, ref, now); err != nil {
		logger.Warn("Failed to update last contact", "profile_id", ref.ID, "error", err)
	}

	logger.Info("Inbound reply processed", "profile_id", ref.ID, "profile_type", ref.Type, "cancelled", len(cancelled))
	return &ReplyOutcome{Matched: true, Profile: ref, CancelledCount: len(cancelled)}, nil
}

func (s *pipelineService) ListQueue(ctx context.Context, ref domain.ProfileRef) ([]domain.ProfileEmailQueueEntry, error) {
	if !ref.Type.Valid() {
		return nil, domain.ErrInvalidProfileType
	}
	entries, err := s.queueRepo.ListByProfile(ctx, ref)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.ProfileEmailQueueEntry{}
	}
	return entries, nil
}
