package events

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/spec-kit/review-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSubmissionCreated      EventType = "submission_created"
	EventSubmissionUpdated      EventType = "submission_updated"
	EventSubmissionTransitioned EventType = "submission_transitioned"
	EventSubmissionDeleted      EventType = "submission_deleted"
)

// Actor identifies who caused an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID           string      `json:"id"`
	Type         EventType   `json:"type"`
	SubmissionID string      `json:"submission_id"`
	Actor        Actor       `json:"actor"`
	Timestamp    time.Time   `json:"timestamp"`
	Payload      interface{} `json:"payload"`
}

// SubmissionCreatedPayload payload.
type SubmissionCreatedPayload struct {
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
}

// SubmissionUpdatedPayload payload.
type SubmissionUpdatedPayload struct {
	Name string `json:"name"`
}

// SubmissionTransitionedPayload payload.
type SubmissionTransitionedPayload struct {
	Event     string                  `json:"event"`
	OldStatus domain.SubmissionStatus `json:"old_status"`
	NewStatus domain.SubmissionStatus `json:"new_status"`
	OwnerID   string                  `json:"owner_id"`
}

// SubmissionDeletedPayload payload.
type SubmissionDeletedPayload struct {
	Status domain.SubmissionStatus `json:"status"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewID returns a sortable event identifier.
func NewID(at time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), entropy).String()
}

// New builds an event stamped at and identified by a fresh ULID.
func New(eventType EventType, submissionID string, session domain.Session, at time.Time, payload interface{}) Event {
	return Event{
		ID:           NewID(at),
		Type:         eventType,
		SubmissionID: submissionID,
		Actor:        Actor{UserID: session.UserID, Role: session.Role},
		Timestamp:    at,
		Payload:      payload,
	}
}
