package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"realty-backend/internal/domain"
)

// memStore is an in-memory stand-in for the postgres repositories. Each
// repository interface is served by a thin view type because several of them
// share method names.
type memStore struct {
	mu sync.Mutex

	orgs       map[uuid.UUID]*domain.Organization
	billing    []domain.BillingProfile
	logs       []domain.AccountLifecycleLog
	dunning    []domain.DunningEmail
	profiles   map[domain.ProfileRef]*domain.Profile
	sequences  map[uuid.UUID]domain.EmailSequence
	steps      map[uuid.UUID][]domain.EmailSequenceStep
	queue      []domain.ProfileEmailQueueEntry
	activities []domain.CrmActivity

	// beforeTransition runs between the evaluator's read and its conditional write.
	beforeTransition func(id uuid.UUID)
	transitionErr    map[uuid.UUID]error
	logErr           error
	panicOnLog       bool
	dunningErr       error
	activityErr      error
	panicOnTrialList bool
}

func newMemStore() *memStore {
	return &memStore{
		orgs:          map[uuid.UUID]*domain.Organization{},
		profiles:      map[domain.ProfileRef]*domain.Profile{},
		sequences:     map[uuid.UUID]domain.EmailSequence{},
		steps:         map[uuid.UUID][]domain.EmailSequenceStep{},
		transitionErr: map[uuid.UUID]error{},
	}
}

func (s *memStore) addOrg(o domain.Organization) uuid.UUID {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	s.orgs[o.ID] = &o
	return o.ID
}

func (s *memStore) org(id uuid.UUID) domain.Organization {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.orgs[id]
}

func (s *memStore) addProfile(p domain.Profile) domain.ProfileRef {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.profiles[p.Ref()] = &p
	return p.Ref()
}

func (s *memStore) addSequence(seq domain.EmailSequence, delays ...int) uuid.UUID {
	if seq.ID == uuid.Nil {
		seq.ID = uuid.New()
	}
	s.sequences[seq.ID] = seq
	for i, d := range delays {
		s.steps[seq.ID] = append(s.steps[seq.ID], domain.EmailSequenceStep{
			ID:          uuid.New(),
			SequenceID:  seq.ID,
			StepNumber:  i + 1,
			TemplateKey: "step_" + string(rune('a'+i)),
			DelayHours:  d,
		})
	}
	return seq.ID
}

func (s *memStore) addQueueRow(ref domain.ProfileRef, status domain.QueueStatus, step int) uuid.UUID {
	id := uuid.New()
	s.queue = append(s.queue, domain.ProfileEmailQueueEntry{
		ID:         id,
		Profile:    ref,
		SequenceID: uuid.New(),
		StepNumber: step,
		Status:     status,
	})
	return id
}

func (s *memStore) queueFor(ref domain.ProfileRef) []domain.ProfileEmailQueueEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ProfileEmailQueueEntry
	for _, e := range s.queue {
		if e.Profile == ref {
			out = append(out, e)
		}
	}
	return out
}

func (s *memStore) countStatus(ref domain.ProfileRef, status domain.QueueStatus) int {
	n := 0
	for _, e := range s.queueFor(ref) {
		if e.Status == status {
			n++
		}
	}
	return n
}

func (s *memStore) lifecycleService(settings LifecycleSettings) LifecycleService {
	return NewLifecycleService(memOrgRepo{s}, memBillingRepo{s}, memLogRepo{s}, memDunningRepo{s}, settings)
}

func (s *memStore) pipelineService(settings PipelineSettings) PipelineService {
	return NewPipelineService(memProfileRepo{s}, memSequenceRepo{s}, memQueueRepo{s}, memActivityRepo{s}, settings)
}

type memOrgRepo struct{ s *memStore }

func (r memOrgRepo) ListTrialsEndedBefore(ctx context.Context, before time.Time) ([]domain.Organization, error) {
	if r.s.panicOnTrialList {
		panic("trial list exploded")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Organization
	for _, o := range r.s.orgs {
		if o.AccountStatus == domain.AccountStatusTrial && o.TrialEndsAt != nil && o.TrialEndsAt.Before(before) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r memOrgRepo) ListGraceEndedBefore(ctx context.Context, status domain.AccountStatus, before time.Time) ([]domain.Organization, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Organization
	for _, o := range r.s.orgs {
		if o.AccountStatus == status && o.GracePeriodEndsAt != nil && o.GracePeriodEndsAt.Before(before) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r memOrgRepo) TryTransition(ctx context.Context, id uuid.UUID, from, to domain.AccountStatus, patch domain.OrganizationPatch) (int64, error) {
	if r.s.beforeTransition != nil {
		r.s.beforeTransition(id)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.transitionErr[id]; err != nil {
		return 0, err
	}
	o, ok := r.s.orgs[id]
	if !ok || o.AccountStatus != from {
		return 0, nil
	}
	o.AccountStatus = to
	patch.Apply(o)
	return 1, nil
}

type memBillingRepo struct{ s *memStore }

func (r memBillingRepo) ListCardsExpiringBetween(ctx context.Context, from, to time.Time) ([]domain.BillingProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.BillingProfile
	for _, bp := range r.s.billing {
		if bp.SubscriptionStatus != domain.SubscriptionStatusActive || bp.CardExpiresAt == nil {
			continue
		}
		if bp.CardExpiresAt.Before(from) || bp.CardExpiresAt.After(to) {
			continue
		}
		if o, ok := r.s.orgs[bp.OrganizationID]; ok {
			bp.BillingEmail = o.BillingEmail
		}
		out = append(out, bp)
	}
	return out, nil
}

type memLogRepo struct{ s *memStore }

func (r memLogRepo) Create(ctx context.Context, entry *domain.AccountLifecycleLog) error {
	if r.s.panicOnLog {
		panic("log writer crashed")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.logErr != nil {
		return r.s.logErr
	}
	entry.ID = uuid.New()
	r.s.logs = append(r.s.logs, *entry)
	return nil
}

type memDunningRepo struct{ s *memStore }

func (r memDunningRepo) Create(ctx context.Context, e *domain.DunningEmail) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.dunningErr != nil {
		return r.s.dunningErr
	}
	e.ID = uuid.New()
	r.s.dunning = append(r.s.dunning, *e)
	return nil
}

func (r memDunningRepo) CreateUnlessRecent(ctx context.Context, e *domain.DunningEmail, since time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.dunningErr != nil {
		return false, r.s.dunningErr
	}
	for _, existing := range r.s.dunning {
		if existing.OrganizationID == e.OrganizationID && existing.EmailType == e.EmailType && existing.CreatedAt.After(since) {
			return false, nil
		}
	}
	e.ID = uuid.New()
	r.s.dunning = append(r.s.dunning, *e)
	return true, nil
}

func (r memDunningRepo) ListUnsent(ctx context.Context, limit, maxAttempts int) ([]domain.DunningEmail, error) {
	return nil, errors.New("not used")
}

func (r memDunningRepo) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	return errors.New("not used")
}

func (r memDunningRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return errors.New("not used")
}

type memProfileRepo struct{ s *memStore }

func (r memProfileRepo) GetByID(ctx context.Context, ref domain.ProfileRef) (*domain.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[ref]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (r memProfileRepo) FindByEmail(ctx context.Context, profileType domain.ProfileType, email string) (*domain.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var matches []domain.Profile
	for _, p := range r.s.profiles {
		if p.Type == profileType && p.Email == email {
			matches = append(matches, *p)
		}
	}
	if len(matches) == 0 {
		return nil, domain.ErrProfileNotFound
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.Before(matches[j].CreatedAt) })
	return &matches[0], nil
}

func (r memProfileRepo) UpdateStage(ctx context.Context, ref domain.ProfileRef, stage domain.Stage, updatedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[ref]
	if !ok {
		return domain.ErrProfileNotFound
	}
	p.Stage = stage
	p.UpdatedAt = updatedAt
	return nil
}

func (r memProfileRepo) TouchLastContact(ctx context.Context, ref domain.ProfileRef, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[ref]
	if !ok {
		return domain.ErrProfileNotFound
	}
	t := at
	p.LastContactAt = &t
	return nil
}

type memSequenceRepo struct{ s *memStore }

func (r memSequenceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.EmailSequence, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seq, ok := r.s.sequences[id]
	if !ok {
		return nil, domain.ErrSequenceNotFound
	}
	return &seq, nil
}

func (r memSequenceRepo) ListActiveByTrigger(ctx context.Context, orgID uuid.UUID, profileType domain.ProfileType, stage domain.Stage) ([]domain.EmailSequence, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.EmailSequence
	for _, seq := range r.s.sequences {
		if seq.OrganizationID == orgID && seq.ProfileType == profileType && seq.TriggerStage == stage && seq.IsActive {
			out = append(out, seq)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memSequenceRepo) ListSteps(ctx context.Context, sequenceID uuid.UUID) ([]domain.EmailSequenceStep, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]domain.EmailSequenceStep(nil), r.s.steps[sequenceID]...), nil
}

type memQueueRepo struct{ s *memStore }

func hasStatus(status domain.QueueStatus, statuses []domain.QueueStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (r memQueueRepo) hasEnrollmentLocked(ref domain.ProfileRef, statuses []domain.QueueStatus) bool {
	for _, e := range r.s.queue {
		if e.Profile == ref && hasStatus(e.Status, statuses) {
			return true
		}
	}
	return false
}

func (r memQueueRepo) HasEnrollment(ctx context.Context, ref domain.ProfileRef, statuses []domain.QueueStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.hasEnrollmentLocked(ref, statuses), nil
}

func (r memQueueRepo) Enroll(ctx context.Context, ref domain.ProfileRef, entries []domain.ProfileEmailQueueEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if len(entries) == 0 {
		return domain.ErrSequenceHasNoSteps
	}
	if _, ok := r.s.profiles[ref]; !ok {
		return domain.ErrProfileNotFound
	}
	if r.hasEnrollmentLocked(ref, domain.EnrolledStatuses) {
		return domain.ErrAlreadyEnrolled
	}
	r.s.queue = append(r.s.queue, entries...)
	return nil
}

func (r memQueueRepo) UpdateStatus(ctx context.Context, ref domain.ProfileRef, from, to domain.QueueStatus) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for i := range r.s.queue {
		if r.s.queue[i].Profile == ref && r.s.queue[i].Status == from {
			r.s.queue[i].Status = to
			n++
		}
	}
	return n, nil
}

func (r memQueueRepo) DeleteByStatus(ctx context.Context, ref domain.ProfileRef, statuses []domain.QueueStatus) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.queue[:0]
	var n int64
	for _, e := range r.s.queue {
		if e.Profile == ref && hasStatus(e.Status, statuses) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.s.queue = kept
	return n, nil
}

func (r memQueueRepo) Cancel(ctx context.Context, ref domain.ProfileRef, status domain.QueueStatus, reason string) ([]domain.ProfileEmailQueueEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var cancelled []domain.ProfileEmailQueueEntry
	for i := range r.s.queue {
		if r.s.queue[i].Profile == ref && r.s.queue[i].Status == status {
			r.s.queue[i].Status = domain.QueueStatusCancelled
			r.s.queue[i].CancelledReason = reason
			cancelled = append(cancelled, r.s.queue[i])
		}
	}
	return cancelled, nil
}

func (r memQueueRepo) ListByProfile(ctx context.Context, ref domain.ProfileRef) ([]domain.ProfileEmailQueueEntry, error) {
	return r.s.queueFor(ref), nil
}

type memActivityRepo struct{ s *memStore }

func (r memActivityRepo) Create(ctx context.Context, a *domain.CrmActivity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.activityErr != nil {
		return r.s.activityErr
	}
	a.ID = uuid.New()
	r.s.activities = append(r.s.activities, *a)
	return nil
}
