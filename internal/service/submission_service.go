package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/review-service/internal/domain"
	"github.com/spec-kit/review-service/internal/events"
	"github.com/spec-kit/review-service/internal/lifecycle"
	"github.com/spec-kit/review-service/internal/observability"
	"github.com/spec-kit/review-service/internal/repository"
	apperrors "github.com/spec-kit/review-service/pkg/util/errorutil"
)

// SubmissionService loads records, asks the lifecycle engine what is allowed
// and persists the result with a version check.
type SubmissionService struct {
	submissions repository.SubmissionRepository
	history     repository.SubmissionHistoryRepository
	engine      *lifecycle.Engine
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// SubmissionDependencies bundles collaborators for the submission service.
type SubmissionDependencies struct {
	SubmissionRepo repository.SubmissionRepository
	HistoryRepo    repository.SubmissionHistoryRepository
	Engine         *lifecycle.Engine
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
}

// NewSubmissionService constructs the service.
func NewSubmissionService(deps SubmissionDependencies) *SubmissionService {
	engine := deps.Engine
	if engine == nil {
		engine = lifecycle.NewEngine()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		submissions: deps.SubmissionRepo,
		history:     deps.HistoryRepo,
		engine:      engine,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger,
	}
}

// SubmissionView is a record together with what the caller may do to it.
type SubmissionView struct {
	Submission  domain.Submission
	Affordances domain.CapabilitySet
	Events      []lifecycle.Event
	CanDelete   bool
}

// SubmissionListFilter describes listing filters.
type SubmissionListFilter struct {
	Statuses    []domain.SubmissionStatus
	SearchTerm  *string
	UpdatedFrom *time.Time
	UpdatedTo   *time.Time
	Limit       int
	Offset      int
}

// Create opens a new submission owned by the caller.
func (s *SubmissionService) Create(ctx context.Context, session *domain.Session, name, description string) (*domain.Submission, error) {
	sub, err := s.engine.Create(session, name, description)
	if err != nil {
		s.recordDenial("create", err)
		return nil, err
	}
	if err := s.submissions.Create(ctx, &sub); err != nil {
		return nil, err
	}
	s.recordHistory(ctx, session, sub.ID, domain.ActionCreated, "", "", sub.Status)
	s.publishEvent(ctx, events.New(events.EventSubmissionCreated, sub.ID, *session, s.engine.Now(),
		events.SubmissionCreatedPayload{OwnerID: sub.OwnerID, Name: sub.Name}))

	s.logger.Info("submission created", zap.String("submission_id", sub.ID), zap.String("owner_id", sub.OwnerID))
	return &sub, nil
}

// Get returns a readable record with the caller's affordances.
func (s *SubmissionService) Get(ctx context.Context, session *domain.Session, id string) (*SubmissionView, error) {
	sub, err := s.loadReadable(ctx, session, id)
	if err != nil {
		return nil, err
	}
	view := s.view(session, *sub)
	return &view, nil
}

// List returns submissions visible to the caller. Publishers see only their own.
func (s *SubmissionService) List(ctx context.Context, session *domain.Session, filter SubmissionListFilter) ([]SubmissionView, error) {
	if !domain.IsValid(session, s.engine.Now()) {
		return nil, fmt.Errorf("%w: session missing or expired", domain.ErrUnauthenticated)
	}
	repoFilter := repository.SubmissionFilter{
		Statuses:    filter.Statuses,
		SearchTerm:  filter.SearchTerm,
		UpdatedFrom: filter.UpdatedFrom,
		UpdatedTo:   filter.UpdatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	if session.Role == domain.RolePublisher {
		owner := session.UserID
		repoFilter.OwnerID = &owner
	}

	subs, err := s.submissions.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, err
	}
	views := make([]SubmissionView, 0, len(subs))
	for _, sub := range subs {
		if !s.engine.CanPerform(session, sub, domain.CapabilityRead) {
			continue
		}
		views = append(views, s.view(session, sub))
	}
	return views, nil
}

// Edit replaces name and description. A non-nil expectedVersion must match the
// stored version.
func (s *SubmissionService) Edit(ctx context.Context, session *domain.Session, id string, expectedVersion *int64, name, description string) (*domain.Submission, error) {
	current, err := s.load(ctx, session, id, expectedVersion)
	if err != nil {
		return nil, err
	}
	next, err := s.engine.Edit(session, *current, name, description)
	if err != nil {
		s.recordDenial("update", err)
		return nil, err
	}
	if err := s.submissions.Update(ctx, &next); err != nil {
		return nil, err
	}
	s.recordHistory(ctx, session, next.ID, domain.ActionEdited, "", next.Status, next.Status)
	s.publishEvent(ctx, events.New(events.EventSubmissionUpdated, next.ID, *session, s.engine.Now(),
		events.SubmissionUpdatedPayload{Name: next.Name}))
	return &next, nil
}

// Transition fires event on the submission and stores the resulting record.
func (s *SubmissionService) Transition(ctx context.Context, session *domain.Session, id string, expectedVersion *int64, event string) (*domain.Submission, error) {
	current, err := s.load(ctx, session, id, expectedVersion)
	if err != nil {
		s.recordTransition(event, err)
		return nil, err
	}
	next, err := s.engine.Transition(session, *current, event)
	if err != nil {
		s.recordTransition(event, err)
		s.recordDenial("update", err)
		s.logger.Debug("transition refused",
			zap.String("submission_id", id),
			zap.String("event", event),
			zap.String("role", string(session.Role)),
			zap.Error(err))
		return nil, err
	}
	if err := s.submissions.Update(ctx, &next); err != nil {
		s.recordTransition(event, err)
		return nil, err
	}
	s.recordTransition(event, nil)

	s.recordHistory(ctx, session, next.ID, domain.ActionTransition, event, current.Status, next.Status)
	s.publishEvent(ctx, events.New(events.EventSubmissionTransitioned, next.ID, *session, s.engine.Now(),
		events.SubmissionTransitionedPayload{
			Event:     event,
			OldStatus: current.Status,
			NewStatus: next.Status,
			OwnerID:   next.OwnerID,
		}))

	s.logger.Info("submission transitioned",
		zap.String("submission_id", next.ID),
		zap.String("event", event),
		zap.String("from", string(current.Status)),
		zap.String("to", string(next.Status)),
		zap.String("actor_id", session.UserID))
	return &next, nil
}

// Delete removes the submission. History entries are kept.
func (s *SubmissionService) Delete(ctx context.Context, session *domain.Session, id string, expectedVersion *int64) error {
	current, err := s.load(ctx, session, id, expectedVersion)
	if err != nil {
		return err
	}
	if err := s.engine.Delete(session, *current); err != nil {
		s.recordDenial("delete", err)
		return err
	}
	if err := s.submissions.Delete(ctx, current.ID, current.Version); err != nil {
		return err
	}
	s.recordHistory(ctx, session, current.ID, domain.ActionDeleted, "", current.Status, "")
	s.publishEvent(ctx, events.New(events.EventSubmissionDeleted, current.ID, *session, s.engine.Now(),
		events.SubmissionDeletedPayload{Status: current.Status}))

	s.logger.Info("submission deleted", zap.String("submission_id", current.ID), zap.String("actor_id", session.UserID))
	return nil
}

// History returns audit entries for a readable submission.
func (s *SubmissionService) History(ctx context.Context, session *domain.Session, id string, limit, offset int) ([]domain.SubmissionHistory, error) {
	if _, err := s.loadReadable(ctx, session, id); err != nil {
		return nil, err
	}
	if s.history == nil {
		return []domain.SubmissionHistory{}, nil
	}
	return s.history.ListBySubmission(ctx, id, limit, offset)
}

func (s *SubmissionService) load(ctx context.Context, session *domain.Session, id string, expectedVersion *int64) (*domain.Submission, error) {
	if !domain.IsValid(session, s.engine.Now()) {
		return nil, fmt.Errorf("%w: session missing or expired", domain.ErrUnauthenticated)
	}
	sub, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if expectedVersion != nil && *expectedVersion != sub.Version {
		return nil, fmt.Errorf("%w: expected version %d, found %d", domain.ErrConcurrentModification, *expectedVersion, sub.Version)
	}
	return sub, nil
}

func (s *SubmissionService) loadReadable(ctx context.Context, session *domain.Session, id string) (*domain.Submission, error) {
	sub, err := s.load(ctx, session, id, nil)
	if err != nil {
		return nil, err
	}
	if !s.engine.CanPerform(session, *sub, domain.CapabilityRead) {
		s.metrics.RecordDenial("read")
		return nil, fmt.Errorf("%w: read not permitted", domain.ErrForbidden)
	}
	return sub, nil
}

func (s *SubmissionService) view(session *domain.Session, sub domain.Submission) SubmissionView {
	return SubmissionView{
		Submission:  sub,
		Affordances: s.engine.Affordances(session, sub),
		Events:      s.engine.AvailableEvents(session, sub),
		CanDelete:   s.engine.CanDelete(session, sub),
	}
}

// recordHistory appends an audit entry once the record change is committed.
// A failed audit write cannot undo that change, so it is logged and swallowed.
func (s *SubmissionService) recordHistory(ctx context.Context, session *domain.Session, submissionID string, action domain.SubmissionAction, event string, oldStatus, newStatus domain.SubmissionStatus) {
	if s.history == nil {
		return
	}
	entry := &domain.SubmissionHistory{
		SubmissionID: submissionID,
		ActorID:      session.UserID,
		ActorRole:    session.Role,
		Action:       action,
		Event:        event,
		OldStatus:    oldStatus,
		NewStatus:    newStatus,
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Warn("audit entry not recorded",
			zap.String("submission_id", submissionID),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

func (s *SubmissionService) recordTransition(event string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = apperrors.ToDomainError(err).Code
	}
	if !lifecycle.Event(event).Known() {
		event = "unknown"
	}
	s.metrics.RecordTransition(event, outcome)
}

func (s *SubmissionService) recordDenial(action string, err error) {
	if errors.Is(err, domain.ErrForbidden) {
		s.metrics.RecordDenial(action)
	}
}

func (s *SubmissionService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
