package http

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"realty-backend/internal/domain"
	"realty-backend/internal/service"
)

// MockLifecycleService
type MockLifecycleService struct {
	mock.Mock
}

func (m *MockLifecycleService) ExpireTrials(ctx context.Context, now time.Time) domain.LifecycleResult {
	return m.Called(ctx, now).Get(0).(domain.LifecycleResult)
}
func (m *MockLifecycleService) ArchiveGraceExpired(ctx context.Context, now time.Time) domain.LifecycleResult {
	return m.Called(ctx, now).Get(0).(domain.LifecycleResult)
}
func (m *MockLifecycleService) ScanExpiringCards(ctx context.Context, now time.Time, horizonDays int) domain.LifecycleResult {
	return m.Called(ctx, now, horizonDays).Get(0).(domain.LifecycleResult)
}
func (m *MockLifecycleService) Run(ctx context.Context, now time.Time) domain.LifecycleResult {
	return m.Called(ctx, now).Get(0).(domain.LifecycleResult)
}

// MockPipelineService
type MockPipelineService struct {
	mock.Mock
}

func (m *MockPipelineService) GetProfile(ctx context.Context, ref domain.ProfileRef) (*domain.Profile, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Profile), args.Error(1)
}
func (m *MockPipelineService) ChangeStage(ctx context.Context, ref domain.ProfileRef, stage domain.Stage) ([]domain.EmailSequence, error) {
	args := m.Called(ctx, ref, stage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.EmailSequence), args.Error(1)
}
func (m *MockPipelineService) MatchingSequences(ctx context.Context, orgID uuid.UUID, profileType domain.ProfileType, stage domain.Stage) ([]domain.EmailSequence, error) {
	args := m.Called(ctx, orgID, profileType, stage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.EmailSequence), args.Error(1)
}
func (m *MockPipelineService) StartSequence(ctx context.Context, ref domain.ProfileRef, sequenceID uuid.UUID) error {
	args := m.Called(ctx, ref, sequenceID)
	return args.Error(0)
}
func (m *MockPipelineService) PauseSequence(ctx context.Context, ref domain.ProfileRef) (int64, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockPipelineService) StopSequence(ctx context.Context, ref domain.ProfileRef) (int64, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockPipelineService) OnInboundReply(ctx context.Context, fromAddress string) (*service.ReplyOutcome, error) {
	args := m.Called(ctx, fromAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReplyOutcome), args.Error(1)
}
func (m *MockPipelineService) ListQueue(ctx context.Context, ref domain.ProfileRef) ([]domain.ProfileEmailQueueEntry, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ProfileEmailQueueEntry), args.Error(1)
}
