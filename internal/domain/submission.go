package domain

import "time"

// SubmissionStatus enumerates lifecycle states for submissions.
type SubmissionStatus string

const (
	StatusAwaitingSubmission SubmissionStatus = "AWAITING_SUBMISSION"
	StatusUnderReview        SubmissionStatus = "UNDER_REVIEW"
	StatusPendingChanges     SubmissionStatus = "PENDING_CHANGES"
	StatusRejected           SubmissionStatus = "REJECTED"
	StatusAccepted           SubmissionStatus = "ACCEPTED"
	StatusFinalized          SubmissionStatus = "FINALIZED"
)

// AllStatuses lists every lifecycle state.
var AllStatuses = []SubmissionStatus{
	StatusAwaitingSubmission,
	StatusUnderReview,
	StatusPendingChanges,
	StatusRejected,
	StatusAccepted,
	StatusFinalized,
}

// Valid reports whether s is a known status.
func (s SubmissionStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further writes are permitted in s.
func (s SubmissionStatus) Terminal() bool {
	return s == StatusRejected || s == StatusFinalized
}

// Submission is the record moving through review. Values are replaced, never
// patched: the lifecycle engine returns a new Submission for every change.
type Submission struct {
	ID          string
	OwnerID     string
	Status      SubmissionStatus
	Name        string
	Description string
	Caps        CapabilitySet
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SubmissionAction names an accepted mutation in the audit trail.
type SubmissionAction string

const (
	ActionCreated    SubmissionAction = "CREATED"
	ActionEdited     SubmissionAction = "EDITED"
	ActionTransition SubmissionAction = "TRANSITION"
	ActionDeleted    SubmissionAction = "DELETED"
)

// SubmissionHistory is an immutable audit trail entry.
type SubmissionHistory struct {
	ID           string
	SubmissionID string
	ActorID      string
	ActorRole    Role
	Action       SubmissionAction
	Event        string
	OldStatus    SubmissionStatus
	NewStatus    SubmissionStatus
	CreatedAt    time.Time
}
