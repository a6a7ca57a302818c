// Package lifecycle decides who may do what to a submission and computes the
// resulting record. It holds no state and never touches storage; callers load
// a record, ask the engine, and persist the value it returns.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/review-service/internal/domain"
)

// Engine evaluates capability checks and lifecycle transitions.
type Engine struct {
	clock Clock
	newID func() string
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithIDGenerator overrides how new submission ids are produced.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewEngine builds an engine backed by the system clock and UUID ids.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{clock: SystemClock{}, newID: uuid.NewString}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now exposes the engine clock so collaborators share one notion of time.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// CanPerform reports whether session may perform action on record right now.
// It has no side effects.
func (e *Engine) CanPerform(session *domain.Session, record domain.Submission, action domain.Capability) bool {
	if !domain.IsValid(session, e.clock.Now()) {
		return false
	}
	return session.Capabilities.Intersect(record.Caps).Has(action)
}

// Affordances returns the effective capability set of session on record.
func (e *Engine) Affordances(session *domain.Session, record domain.Submission) domain.CapabilitySet {
	if !domain.IsValid(session, e.clock.Now()) {
		return 0
	}
	return session.Capabilities.Intersect(record.Caps)
}

// AvailableEvents lists the events session could successfully fire on record.
func (e *Engine) AvailableEvents(session *domain.Session, record domain.Submission) []Event {
	var out []Event
	for _, event := range EventsFrom(record.Status) {
		if _, err := e.Transition(session, record, string(event)); err == nil {
			out = append(out, event)
		}
	}
	return out
}

// Create produces a new record owned by the session user.
func (e *Engine) Create(session *domain.Session, name, description string) (domain.Submission, error) {
	now := e.clock.Now()
	if !domain.IsValid(session, now) {
		return domain.Submission{}, fmt.Errorf("%w: session missing or expired", domain.ErrUnauthenticated)
	}
	if !session.Capabilities.Has(domain.CapabilityCreate) {
		return domain.Submission{}, fmt.Errorf("%w: role %s cannot create submissions", domain.ErrForbidden, session.Role)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Submission{}, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	return domain.Submission{
		ID:          e.newID(),
		OwnerID:     session.UserID,
		Status:      domain.StatusAwaitingSubmission,
		Name:        name,
		Description: strings.TrimSpace(description),
		Caps:        CapsFor(domain.StatusAwaitingSubmission),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Edit replaces name and description. Content is only editable while the
// record is with its publisher.
func (e *Engine) Edit(session *domain.Session, record domain.Submission, name, description string) (domain.Submission, error) {
	now := e.clock.Now()
	if !domain.IsValid(session, now) {
		return record, fmt.Errorf("%w: session missing or expired", domain.ErrUnauthenticated)
	}
	if record.Status.Terminal() {
		return record, fmt.Errorf("%w: submission is %s", domain.ErrRecordImmutable, record.Status)
	}
	if !session.Capabilities.Intersect(record.Caps).Has(domain.CapabilityUpdate) {
		return record, fmt.Errorf("%w: update not permitted", domain.ErrForbidden)
	}
	if !actsForOwner(session, record) {
		return record, fmt.Errorf("%w: submission belongs to another publisher", domain.ErrForbidden)
	}
	if record.Status != domain.StatusAwaitingSubmission && record.Status != domain.StatusPendingChanges {
		return record, fmt.Errorf("%w: content is frozen while %s", domain.ErrRecordImmutable, record.Status)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return record, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}

	next := record
	next.Name = name
	next.Description = strings.TrimSpace(description)
	next.UpdatedAt = now
	return next, nil
}

// Transition applies event to record on behalf of session. On failure the
// input record is returned unchanged together with a typed error.
func (e *Engine) Transition(session *domain.Session, record domain.Submission, event string) (domain.Submission, error) {
	now := e.clock.Now()
	if !domain.IsValid(session, now) {
		return record, fmt.Errorf("%w: session missing or expired", domain.ErrUnauthenticated)
	}
	ev := Event(event)
	if !ev.Known() {
		return record, fmt.Errorf("%w: unknown event %q", domain.ErrIllegalTransition, event)
	}
	if record.Status.Terminal() {
		return record, fmt.Errorf("%w: submission is %s", domain.ErrRecordImmutable, record.Status)
	}
	if !session.Capabilities.Intersect(record.Caps).Has(domain.CapabilityUpdate) {
		return record, fmt.Errorf("%w: update not permitted", domain.ErrForbidden)
	}
	rule, ok := Lookup(record.Status, ev)
	if !ok {
		return record, fmt.Errorf("%w: %s is not defined for %s", domain.ErrIllegalTransition, ev, record.Status)
	}
	if !rule.allows(session.Role) {
		return record, fmt.Errorf("%w: %s requires one of %v", domain.ErrForbidden, ev, rule.Roles)
	}
	if !actsForOwner(session, record) {
		return record, fmt.Errorf("%w: submission belongs to another publisher", domain.ErrForbidden)
	}

	next := record
	next.Status = rule.To
	next.Caps = CapsFor(rule.To)
	next.UpdatedAt = now
	return next, nil
}

// CanDelete reports whether Delete would succeed.
func (e *Engine) CanDelete(session *domain.Session, record domain.Submission) bool {
	return e.Delete(session, record) == nil
}

// Delete authorizes removal of record. Finalized records are retained for audit
// regardless of capabilities.
func (e *Engine) Delete(session *domain.Session, record domain.Submission) error {
	if !domain.IsValid(session, e.clock.Now()) {
		return fmt.Errorf("%w: session missing or expired", domain.ErrUnauthenticated)
	}
	if record.Status == domain.StatusFinalized {
		return fmt.Errorf("%w: finalized submissions cannot be deleted", domain.ErrRecordImmutable)
	}
	if !session.Capabilities.Intersect(record.Caps).Has(domain.CapabilityDelete) {
		return fmt.Errorf("%w: delete not permitted", domain.ErrForbidden)
	}
	if !actsForOwner(session, record) {
		return fmt.Errorf("%w: submission belongs to another publisher", domain.ErrForbidden)
	}
	return nil
}

// actsForOwner restricts publishers to their own submissions. A record with
// no owner belongs to no publisher.
func actsForOwner(session *domain.Session, record domain.Submission) bool {
	if session.Role != domain.RolePublisher {
		return true
	}
	return record.OwnerID != "" && record.OwnerID == session.UserID
}
