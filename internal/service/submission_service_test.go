package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/review-service/internal/domain"
	"github.com/spec-kit/review-service/internal/events"
	"github.com/spec-kit/review-service/internal/lifecycle"
	"github.com/spec-kit/review-service/internal/observability"
	"github.com/spec-kit/review-service/internal/repository"
)

var testNow = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type submissionFixture struct {
	svc        *SubmissionService
	repo       repository.SubmissionRepository
	history    repository.SubmissionHistoryRepository
	metrics    *observability.Metrics
	dispatcher events.Dispatcher
	published  []events.Event
}

func newSubmissionFixture(t *testing.T) *submissionFixture {
	t.Helper()
	f := &submissionFixture{
		repo:       repository.NewMemorySubmissionRepository(),
		history:    repository.NewMemorySubmissionHistoryRepository(),
		metrics:    observability.NewMetrics(),
		dispatcher: events.NewInMemoryDispatcher(),
	}
	record := func(_ context.Context, e events.Event) error {
		f.published = append(f.published, e)
		return nil
	}
	for _, et := range []events.EventType{
		events.EventSubmissionCreated,
		events.EventSubmissionUpdated,
		events.EventSubmissionTransitioned,
		events.EventSubmissionDeleted,
	} {
		f.dispatcher.Subscribe(et, record)
	}

	engine := lifecycle.NewEngine(lifecycle.WithClock(lifecycle.ClockFunc(func() time.Time { return testNow })))
	f.svc = NewSubmissionService(SubmissionDependencies{
		SubmissionRepo: f.repo,
		HistoryRepo:    f.history,
		Engine:         engine,
		Dispatcher:     f.dispatcher,
		Metrics:        f.metrics,
	})
	return f
}

func testSession(userID string, role domain.Role) *domain.Session {
	return &domain.Session{
		UserID:       userID,
		Token:        domain.IdentityToken("tok-" + userID),
		Role:         role,
		Capabilities: domain.DefaultRoleCapabilities().For(role),
		IssuedAt:     testNow,
		Expiration:   testNow.Add(time.Hour),
	}
}

func TestSubmissionService_FullReviewCycle(t *testing.T) {
	ctx := context.Background()
	f := newSubmissionFixture(t)
	publisher := testSession("pub-1", domain.RolePublisher)
	reviewer := testSession("rev-1", domain.RoleReviewer)
	admin := testSession("adm-1", domain.RoleAdmin)

	sub, err := f.svc.Create(ctx, publisher, "  Paper  ", "first draft")
	require.NoError(t, err)
	assert.Equal(t, "Paper", sub.Name)
	assert.Equal(t, domain.StatusAwaitingSubmission, sub.Status)
	assert.Equal(t, int64(1), sub.Version)

	sub, err = f.svc.Transition(ctx, publisher, sub.ID, nil, "submit")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, sub.Status)

	sub, err = f.svc.Transition(ctx, reviewer, sub.ID, &sub.Version, "request_changes")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingChanges, sub.Status)

	sub, err = f.svc.Edit(ctx, publisher, sub.ID, nil, "Paper v2", "revised")
	require.NoError(t, err)
	assert.Equal(t, "Paper v2", sub.Name)

	for _, step := range []struct {
		session *domain.Session
		event   string
		want    domain.SubmissionStatus
	}{
		{publisher, "resubmit", domain.StatusUnderReview},
		{reviewer, "accept", domain.StatusAccepted},
		{admin, "finalize", domain.StatusFinalized},
	} {
		sub, err = f.svc.Transition(ctx, step.session, sub.ID, nil, step.event)
		require.NoError(t, err, step.event)
		assert.Equal(t, step.want, sub.Status)
	}
	assert.Equal(t, domain.NewCapabilitySet(domain.CapabilityRead), sub.Caps)

	err = f.svc.Delete(ctx, admin, sub.ID, nil)
	assert.ErrorIs(t, err, domain.ErrRecordImmutable)

	history, err := f.svc.History(ctx, reviewer, sub.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, history, 7)
	assert.Equal(t, domain.ActionCreated, history[0].Action)
	assert.Equal(t, "finalize", history[6].Event)
	assert.Equal(t, domain.StatusAccepted, history[6].OldStatus)
	assert.Equal(t, domain.StatusFinalized, history[6].NewStatus)

	require.Len(t, f.published, 7)
	assert.Equal(t, events.EventSubmissionCreated, f.published[0].Type)
	assert.Equal(t, events.EventSubmissionTransitioned, f.published[6].Type)
}

func TestSubmissionService_PublisherCannotReviewOwnSubmission(t *testing.T) {
	ctx := context.Background()
	f := newSubmissionFixture(t)
	publisher := testSession("pub-1", domain.RolePublisher)

	sub, err := f.svc.Create(ctx, publisher, "Paper", "")
	require.NoError(t, err)
	sub, err = f.svc.Transition(ctx, publisher, sub.ID, nil, "submit")
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, publisher, sub.ID, nil, "accept")
	require.ErrorIs(t, err, domain.ErrForbidden)

	stored, err := f.repo.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, stored.Status)
	assert.Equal(t, sub.Version, stored.Version)

	expected := `
# HELP review_transitions_total Lifecycle transitions attempted, by event and outcome.
# TYPE review_transitions_total counter
review_transitions_total{event="accept",outcome="FORBIDDEN"} 1
review_transitions_total{event="submit",outcome="ok"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.metrics.Registry(), strings.NewReader(expected), "review_transitions_total"))
}

func TestSubmissionService_UnknownEventLeavesRecordUntouched(t *testing.T) {
	ctx := context.Background()
	f := newSubmissionFixture(t)
	publisher := testSession("pub-1", domain.RolePublisher)

	sub, err := f.svc.Create(ctx, publisher, "Paper", "")
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, publisher, sub.ID, nil, "publish_now")
	require.ErrorIs(t, err, domain.ErrIllegalTransition)

	stored, err := f.repo.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, *sub, *stored)
}

func TestSubmissionService_StaleVersionIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newSubmissionFixture(t)
	publisher := testSession("pub-1", domain.RolePublisher)

	sub, err := f.svc.Create(ctx, publisher, "Paper", "")
	require.NoError(t, err)
	stale := sub.Version

	_, err = f.svc.Edit(ctx, publisher, sub.ID, &stale, "Paper 2", "")
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, publisher, sub.ID, &stale, "submit")
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)
}

func TestSubmissionService_PublishersOnlySeeTheirOwn(t *testing.T) {
	ctx := context.Background()
	f := newSubmissionFixture(t)
	alice := testSession("alice", domain.RolePublisher)
	bob := testSession("bob", domain.RolePublisher)
	reviewer := testSession("rev", domain.RoleReviewer)

	aliceSub, err := f.svc.Create(ctx, alice, "Alice paper", "")
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, bob, "Bob paper", "")
	require.NoError(t, err)

	views, err := f.svc.List(ctx, alice, SubmissionListFilter{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, aliceSub.ID, views[0].Submission.ID)
	assert.True(t, views[0].CanDelete)
	assert.Equal(t, []lifecycle.Event{lifecycle.EventSubmit}, views[0].Events)

	views, err = f.svc.List(ctx, reviewer, SubmissionListFilter{})
	require.NoError(t, err)
	assert.Len(t, views, 2)

	_, err = f.svc.Get(ctx, bob, aliceSub.ID)
	require.NoError(t, err, "reads are not owner-gated")

	err = f.svc.Delete(ctx, bob, aliceSub.ID, nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Edit(ctx, bob, aliceSub.ID, nil, "hijack", "")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSubmissionService_ListFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	f := newSubmissionFixture(t)
	publisher := testSession("pub-1", domain.RolePublisher)

	first, err := f.svc.Create(ctx, publisher, "one", "")
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, publisher, "two", "")
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, publisher, first.ID, nil, "submit")
	require.NoError(t, err)

	views, err := f.svc.List(ctx, publisher, SubmissionListFilter{Statuses: []domain.SubmissionStatus{domain.StatusUnderReview}})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, first.ID, views[0].Submission.ID)
}

func TestSubmissionService_ReviewerCannotCreateOrDelete(t *testing.T) {
	ctx := context.Background()
	f := newSubmissionFixture(t)
	reviewer := testSession("rev", domain.RoleReviewer)
	publisher := testSession("pub", domain.RolePublisher)

	_, err := f.svc.Create(ctx, reviewer, "x", "")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	sub, err := f.svc.Create(ctx, publisher, "Paper", "")
	require.NoError(t, err)
	err = f.svc.Delete(ctx, reviewer, sub.ID, nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	expected := `
# HELP review_authz_denials_total Operations refused by the capability checks, by action.
# TYPE review_authz_denials_total counter
review_authz_denials_total{action="create"} 1
review_authz_denials_total{action="delete"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.metrics.Registry(), strings.NewReader(expected), "review_authz_denials_total"))
}

func TestSubmissionService_DeleteKeepsHistory(t *testing.T) {
	ctx := context.Background()
	f := newSubmissionFixture(t)
	publisher := testSession("pub", domain.RolePublisher)

	sub, err := f.svc.Create(ctx, publisher, "Paper", "")
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, publisher, sub.ID, nil))

	_, err = f.svc.Get(ctx, publisher, sub.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	entries, err := f.history.ListBySubmission(ctx, sub.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ActionDeleted, entries[1].Action)
}

func TestSubmissionService_ExpiredSessionIsUnauthenticated(t *testing.T) {
	ctx := context.Background()
	f := newSubmissionFixture(t)
	publisher := testSession("pub", domain.RolePublisher)
	sub, err := f.svc.Create(ctx, publisher, "Paper", "")
	require.NoError(t, err)

	expired := testSession("pub", domain.RolePublisher)
	expired.Expiration = testNow

	_, err = f.svc.Get(ctx, expired, sub.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = f.svc.List(ctx, nil, SubmissionListFilter{})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = f.svc.Transition(ctx, expired, sub.ID, nil, "submit")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

type failingHistoryRepository struct {
	err error
}

func (r failingHistoryRepository) Create(context.Context, *domain.SubmissionHistory) error {
	return r.err
}

func (r failingHistoryRepository) ListBySubmission(context.Context, string, int, int) ([]domain.SubmissionHistory, error) {
	return nil, r.err
}

func TestSubmissionService_AuditFailureDoesNotFailCommittedChange(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemorySubmissionRepository()
	svc := NewSubmissionService(SubmissionDependencies{
		SubmissionRepo: repo,
		HistoryRepo:    failingHistoryRepository{err: errors.New("audit store down")},
		Engine:         lifecycle.NewEngine(lifecycle.WithClock(lifecycle.ClockFunc(func() time.Time { return testNow }))),
	})
	publisher := testSession("pub-1", domain.RolePublisher)

	sub, err := svc.Create(ctx, publisher, "Paper", "draft")
	require.NoError(t, err)

	next, err := svc.Transition(ctx, publisher, sub.ID, &sub.Version, "submit")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, next.Status)

	stored, err := repo.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnderReview, stored.Status)
	assert.Equal(t, next.Version, stored.Version)

	draft, err := svc.Create(ctx, publisher, "Notes", "")
	require.NoError(t, err)
	edited, err := svc.Edit(ctx, publisher, draft.ID, &draft.Version, "Notes v2", "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), edited.Version)

	require.NoError(t, svc.Delete(ctx, publisher, draft.ID, &edited.Version))
	_, err = repo.GetByID(ctx, draft.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
