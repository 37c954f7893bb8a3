package jobs

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"realty-backend/internal/config"
	"realty-backend/internal/domain"
	"realty-backend/internal/repository/postgres"
)

type MockDunningEmailRepo struct {
	mock.Mock
}

func (m *MockDunningEmailRepo) Create(ctx context.Context, email *domain.DunningEmail) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}
func (m *MockDunningEmailRepo) CreateUnlessRecent(ctx context.Context, email *domain.DunningEmail, since time.Time) (bool, error) {
	args := m.Called(ctx, email, since)
	return args.Bool(0), args.Error(1)
}
func (m *MockDunningEmailRepo) ListUnsent(ctx context.Context, limit, maxAttempts int) ([]domain.DunningEmail, error) {
	args := m.Called(ctx, limit, maxAttempts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DunningEmail), args.Error(1)
}
func (m *MockDunningEmailRepo) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	args := m.Called(ctx, id, sentAt)
	return args.Error(0)
}
func (m *MockDunningEmailRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

// memDunningQueue keeps dunning rows in memory and selects them the way the
// postgres repository does.
type memDunningQueue struct {
	mu   sync.Mutex
	rows []*domain.DunningEmail
}

func (q *memDunningQueue) add(e domain.DunningEmail) {
	q.rows = append(q.rows, &e)
}

func (q *memDunningQueue) Create(ctx context.Context, e *domain.DunningEmail) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.add(*e)
	return nil
}
func (q *memDunningQueue) CreateUnlessRecent(ctx context.Context, e *domain.DunningEmail, since time.Time) (bool, error) {
	return false, errors.New("not used")
}
func (q *memDunningQueue) ListUnsent(ctx context.Context, limit, maxAttempts int) ([]domain.DunningEmail, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []domain.DunningEmail
	for _, r := range q.rows {
		if r.SentAt == nil && r.Attempts < maxAttempts {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Attempts != out[j].Attempts {
			return out[i].Attempts < out[j].Attempts
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
func (q *memDunningQueue) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, r := range q.rows {
		if r.ID == id {
			r.SentAt = &sentAt
			return nil
		}
	}
	return errors.New("not found")
}
func (q *memDunningQueue) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, r := range q.rows {
		if r.ID == id {
			r.LastError = reason
			r.Attempts++
			return nil
		}
	}
	return errors.New("not found")
}

type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendDunningEmail(ctx context.Context, email domain.DunningEmail) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

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

var jobNow = time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)

func newTestRunner(repo *MockDunningEmailRepo, services *Services, cfg *config.Config) *JobRunner {
	jr := NewJobRunner(&postgres.Store{DunningEmailRepository: repo}, services, cfg)
	jr.now = func() time.Time { return jobNow }
	return jr
}

func sendGridConfig() *config.Config {
	return &config.Config{SendGrid: config.SendGridConfig{APIKey: "SG.test", FromEmail: "noreply@realty.test", BatchSize: 25, MaxAttempts: 3}}
}

func TestDispatchDunningEmails(t *testing.T) {
	ctx := context.Background()

	t.Run("Marks delivered and failed emails", func(t *testing.T) {
		repo := new(MockDunningEmailRepo)
		emailSvc := new(MockEmailService)
		jr := newTestRunner(repo, &Services{Email: emailSvc}, sendGridConfig())

		ok := domain.DunningEmail{ID: uuid.New(), EmailType: domain.DunningEmailTrialExpired, RecipientEmail: "a@x.test"}
		bad := domain.DunningEmail{ID: uuid.New(), EmailType: domain.DunningEmailCardExpiring, RecipientEmail: "b@x.test"}

		repo.On("ListUnsent", ctx, 25, 3).Return([]domain.DunningEmail{ok, bad}, nil)
		emailSvc.On("SendDunningEmail", ctx, ok).Return(nil)
		emailSvc.On("SendDunningEmail", ctx, bad).Return(errors.New("sendgrid error: status 400"))
		repo.On("MarkSent", ctx, ok.ID, jobNow).Return(nil)
		repo.On("MarkFailed", ctx, bad.ID, "sendgrid error: status 400").Return(nil)

		sent, failed := jr.dispatchDunningEmails(ctx)

		assert.Equal(t, 1, sent)
		assert.Equal(t, 1, failed)
		repo.AssertExpectations(t)
		emailSvc.AssertExpectations(t)
	})

	t.Run("Failing emails do not block newer ones", func(t *testing.T) {
		queue := &memDunningQueue{}
		emailSvc := new(MockEmailService)
		cfg := &config.Config{SendGrid: config.SendGridConfig{APIKey: "SG.test", FromEmail: "noreply@realty.test", BatchSize: 2, MaxAttempts: 3}}
		jr := NewJobRunner(&postgres.Store{DunningEmailRepository: queue}, &Services{Email: emailSvc}, cfg)
		jr.now = func() time.Time { return jobNow }

		noRecipient1 := domain.DunningEmail{ID: uuid.New(), EmailType: domain.DunningEmailTrialExpired, CreatedAt: jobNow.Add(-3 * time.Hour)}
		noRecipient2 := domain.DunningEmail{ID: uuid.New(), EmailType: domain.DunningEmailTrialExpired, CreatedAt: jobNow.Add(-2 * time.Hour)}
		newer := domain.DunningEmail{ID: uuid.New(), EmailType: domain.DunningEmailAccountArchived, RecipientEmail: "owner@oak.test", CreatedAt: jobNow.Add(-time.Hour)}
		queue.add(noRecipient1)
		queue.add(noRecipient2)
		queue.add(newer)

		hasRecipient := func(e domain.DunningEmail) bool { return e.RecipientEmail != "" }
		emailSvc.On("SendDunningEmail", ctx, mock.MatchedBy(hasRecipient)).Return(nil)
		emailSvc.On("SendDunningEmail", ctx, mock.MatchedBy(func(e domain.DunningEmail) bool { return !hasRecipient(e) })).
			Return(errors.New("recipient email is required"))

		sent, failed := jr.dispatchDunningEmails(ctx)
		assert.Equal(t, 0, sent)
		assert.Equal(t, 2, failed)

		sent, _ = jr.dispatchDunningEmails(ctx)
		assert.Equal(t, 1, sent)

		// The failing rows are retired once they reach the attempt cap.
		for i := 0; i < 3; i++ {
			jr.dispatchDunningEmails(ctx)
		}
		sent, failed = jr.dispatchDunningEmails(ctx)
		assert.Zero(t, sent)
		assert.Zero(t, failed)
		emailSvc.AssertNumberOfCalls(t, "SendDunningEmail", 7)
		for _, row := range queue.rows {
			if row.ID != newer.ID {
				assert.Equal(t, 3, row.Attempts)
				assert.Nil(t, row.SentAt)
			}
		}
	})

	t.Run("List failure sends nothing", func(t *testing.T) {
		repo := new(MockDunningEmailRepo)
		emailSvc := new(MockEmailService)
		jr := newTestRunner(repo, &Services{Email: emailSvc}, sendGridConfig())

		repo.On("ListUnsent", ctx, 25, 3).Return(nil, errors.New("connection refused"))

		sent, failed := jr.dispatchDunningEmails(ctx)

		assert.Zero(t, sent)
		assert.Zero(t, failed)
		emailSvc.AssertNotCalled(t, "SendDunningEmail", mock.Anything, mock.Anything)
	})

	t.Run("Skipped without SendGrid", func(t *testing.T) {
		repo := new(MockDunningEmailRepo)
		jr := newTestRunner(repo, &Services{}, &config.Config{})

		sent, failed := jr.dispatchDunningEmails(ctx)

		assert.Zero(t, sent)
		assert.Zero(t, failed)
		repo.AssertNotCalled(t, "ListUnsent", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRunAccountLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("Runs the evaluator with the current UTC time", func(t *testing.T) {
		lifecycle := new(MockLifecycleService)
		jr := newTestRunner(new(MockDunningEmailRepo), &Services{Lifecycle: lifecycle}, &config.Config{})
		want := domain.LifecycleResult{ExpiredTrials: 2, ArchivedAccounts: 1, Errors: []string{}}

		lifecycle.On("Run", ctx, jobNow).Return(want)

		got := jr.runAccountLifecycle(ctx)

		assert.Equal(t, want, got)
		lifecycle.AssertExpectations(t)
	})

	t.Run("Soft failures are returned", func(t *testing.T) {
		lifecycle := new(MockLifecycleService)
		jr := newTestRunner(new(MockDunningEmailRepo), &Services{Lifecycle: lifecycle}, &config.Config{})
		want := domain.LifecycleResult{ExpiredTrials: 1, Errors: []string{"org x: failed to write lifecycle log"}}

		lifecycle.On("Run", ctx, jobNow).Return(want)

		got := jr.runAccountLifecycle(ctx)

		assert.Equal(t, want.Errors, got.Errors)
	})

	t.Run("Panics are recovered", func(t *testing.T) {
		lifecycle := new(MockLifecycleService)
		jr := newTestRunner(new(MockDunningEmailRepo), &Services{Lifecycle: lifecycle}, &config.Config{})

		lifecycle.On("Run", mock.Anything, jobNow).Run(func(mock.Arguments) {
			panic("database gone")
		}).Return(domain.LifecycleResult{})

		assert.NotPanics(t, jr.RunAccountLifecycle)
	})
}
