package dto

import (
	"time"

	"github.com/spec-kit/review-service/internal/domain"
	"github.com/spec-kit/review-service/internal/lifecycle"
	"github.com/spec-kit/review-service/internal/service"
)

// CreateSubmissionRequest payload for POST /submissions.
type CreateSubmissionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// EditSubmissionRequest payload for PATCH /submissions/:id.
type EditSubmissionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     *int64 `json:"version,omitempty"`
}

// TransitionRequest payload for POST /submissions/:id/transitions.
type TransitionRequest struct {
	Event   string `json:"event"`
	Version *int64 `json:"version,omitempty"`
}

// SubmissionSummary is the wire form of a submission.
type SubmissionSummary struct {
	ID          string                  `json:"id"`
	OwnerID     string                  `json:"owner_id"`
	Status      domain.SubmissionStatus `json:"status"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	Caps        domain.CapabilitySet    `json:"caps"`
	Version     int64                   `json:"version"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// Affordances tells the caller what it may do next.
type Affordances struct {
	Capabilities domain.CapabilitySet `json:"capabilities"`
	Events       []lifecycle.Event    `json:"events"`
	CanDelete    bool                 `json:"can_delete"`
}

// SubmissionDetail is a submission with the caller's affordances.
type SubmissionDetail struct {
	SubmissionSummary
	Affordances Affordances `json:"affordances"`
}

// HistoryEntry is the wire form of an audit entry.
type HistoryEntry struct {
	ID        string                  `json:"id"`
	ActorID   string                  `json:"actor_id"`
	ActorRole domain.Role             `json:"actor_role"`
	Action    domain.SubmissionAction `json:"action"`
	Event     string                  `json:"event,omitempty"`
	OldStatus domain.SubmissionStatus `json:"old_status,omitempty"`
	NewStatus domain.SubmissionStatus `json:"new_status,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

// NewSubmissionSummary maps a submission to its wire form.
func NewSubmissionSummary(sub *domain.Submission) SubmissionSummary {
	return SubmissionSummary{
		ID:          sub.ID,
		OwnerID:     sub.OwnerID,
		Status:      sub.Status,
		Name:        sub.Name,
		Description: sub.Description,
		Caps:        sub.Caps,
		Version:     sub.Version,
		CreatedAt:   sub.CreatedAt,
		UpdatedAt:   sub.UpdatedAt,
	}
}

// NewSubmissionDetail maps a service view to its wire form.
func NewSubmissionDetail(view *service.SubmissionView) SubmissionDetail {
	events := view.Events
	if events == nil {
		events = []lifecycle.Event{}
	}
	return SubmissionDetail{
		SubmissionSummary: NewSubmissionSummary(&view.Submission),
		Affordances: Affordances{
			Capabilities: view.Affordances,
			Events:       events,
			CanDelete:    view.CanDelete,
		},
	}
}

// NewHistoryEntries maps audit entries to their wire form.
func NewHistoryEntries(entries []domain.SubmissionHistory) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntry{
			ID:        e.ID,
			ActorID:   e.ActorID,
			ActorRole: e.ActorRole,
			Action:    e.Action,
			Event:     e.Event,
			OldStatus: e.OldStatus,
			NewStatus: e.NewStatus,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}
