package lifecycle

import "github.com/spec-kit/review-service/internal/domain"

// Event names a requested lifecycle transition.
type Event string

const (
	EventSubmit         Event = "submit"
	EventRequestChanges Event = "request_changes"
	EventAccept         Event = "accept"
	EventReject         Event = "reject"
	EventResubmit       Event = "resubmit"
	EventFinalize       Event = "finalize"
	EventForceReject    Event = "force_reject"
)

// Events lists the full event vocabulary.
var Events = []Event{
	EventSubmit,
	EventRequestChanges,
	EventAccept,
	EventReject,
	EventResubmit,
	EventFinalize,
	EventForceReject,
}

// Known reports whether e belongs to the event vocabulary.
func (e Event) Known() bool {
	for _, known := range Events {
		if e == known {
			return true
		}
	}
	return false
}

type transitionKey struct {
	from  domain.SubmissionStatus
	event Event
}

// Rule is one row of the transition table.
type Rule struct {
	From  domain.SubmissionStatus
	Event Event
	To    domain.SubmissionStatus
	Roles []domain.Role
}

func (r Rule) allows(role domain.Role) bool {
	for _, allowed := range r.Roles {
		if allowed == role {
			return true
		}
	}
	return false
}

var transitionTable = buildTable()

func buildTable() map[transitionKey]Rule {
	rules := []Rule{
		{From: domain.StatusAwaitingSubmission, Event: EventSubmit, To: domain.StatusUnderReview, Roles: []domain.Role{domain.RolePublisher}},
		{From: domain.StatusUnderReview, Event: EventRequestChanges, To: domain.StatusPendingChanges, Roles: []domain.Role{domain.RoleReviewer}},
		{From: domain.StatusUnderReview, Event: EventAccept, To: domain.StatusAccepted, Roles: []domain.Role{domain.RoleReviewer, domain.RoleAdmin}},
		{From: domain.StatusUnderReview, Event: EventReject, To: domain.StatusRejected, Roles: []domain.Role{domain.RoleReviewer, domain.RoleAdmin}},
		{From: domain.StatusPendingChanges, Event: EventResubmit, To: domain.StatusUnderReview, Roles: []domain.Role{domain.RolePublisher}},
		{From: domain.StatusAccepted, Event: EventFinalize, To: domain.StatusFinalized, Roles: []domain.Role{domain.RoleAdmin}},
	}
	// Admin override from every non-terminal state.
	for _, status := range domain.AllStatuses {
		if status.Terminal() {
			continue
		}
		rules = append(rules, Rule{From: status, Event: EventForceReject, To: domain.StatusRejected, Roles: []domain.Role{domain.RoleAdmin}})
	}

	table := make(map[transitionKey]Rule, len(rules))
	for _, rule := range rules {
		table[transitionKey{from: rule.From, event: rule.Event}] = rule
	}
	return table
}

// Lookup returns the rule for (from, event), if one exists.
func Lookup(from domain.SubmissionStatus, event Event) (Rule, bool) {
	rule, ok := transitionTable[transitionKey{from: from, event: event}]
	return rule, ok
}

// EventsFrom returns the events defined for status, in vocabulary order.
func EventsFrom(status domain.SubmissionStatus) []Event {
	var out []Event
	for _, e := range Events {
		if _, ok := Lookup(status, e); ok {
			out = append(out, e)
		}
	}
	return out
}

var statusCaps = map[domain.SubmissionStatus]domain.CapabilitySet{
	domain.StatusAwaitingSubmission: domain.FullCapabilitySet(),
	domain.StatusPendingChanges:     domain.FullCapabilitySet(),
	domain.StatusUnderReview:        domain.NewCapabilitySet(domain.CapabilityCreate, domain.CapabilityRead, domain.CapabilityUpdate),
	domain.StatusAccepted:           domain.NewCapabilitySet(domain.CapabilityRead, domain.CapabilityUpdate),
	domain.StatusRejected:           domain.NewCapabilitySet(domain.CapabilityRead),
	domain.StatusFinalized:          domain.NewCapabilitySet(domain.CapabilityRead),
}

// CapsFor returns what is grantable on a record in status. Unknown statuses grant nothing.
func CapsFor(status domain.SubmissionStatus) domain.CapabilitySet {
	return statusCaps[status]
}
