// Package event defines the domain events emitted after staffing mutations.
package event

import (
	"time"
)

// Type identifies the kind of staffing event.
type Type string

const (
	TypeConsultantCreated Type = "consultant.created"
	TypeConsultantUpdated Type = "consultant.updated"
	TypeConsultantDeleted Type = "consultant.deleted"
	TypeConsultantSummary Type = "consultant.summary"

	TypeAvailabilityCreated Type = "availability.created"
	TypeAvailabilityUpdated Type = "availability.updated"
	TypeAvailabilityDeleted Type = "availability.deleted"
	TypeTimeOffRequested    Type = "time_off.requested"
	TypeTimeOffApproved     Type = "time_off.approved"
	TypeTimeOffRejected     Type = "time_off.rejected"
	TypeTimeOffCancelled    Type = "time_off.cancelled"

	TypeAssignmentCreated          Type = "assignment.created"
	TypeAssignmentUpdated          Type = "assignment.updated"
	TypeAssignmentDeleted          Type = "assignment.deleted"
	TypeAssignmentApprovalRequired Type = "assignment.approval_required"
	TypeAssignmentApproved         Type = "assignment.approved"
	TypeAssignmentRejected         Type = "assignment.rejected"
	TypeAssignmentStarted          Type = "assignment.started"
	TypeAssignmentCompleted        Type = "assignment.completed"
	TypeAssignmentStatusChanged    Type = "assignment.status_changed"
	TypeAssignmentExtended         Type = "assignment.extended"
	TypeTimeLogged                 Type = "assignment.time_logged"
	TypeBudgetThresholdReached     Type = "assignment.budget_threshold"
)

// Entity types carried on events.
const (
	EntityConsultant   = "consultant"
	EntityAvailability = "availability"
	EntityAssignment   = "assignment"
)

// Event is an immutable fact about a committed mutation.
type Event struct {
	ID           string         `json:"id"`
	Type         Type           `json:"type"`
	TenantID     string         `json:"tenant_id"`
	EntityType   string         `json:"entity_type"`
	EntityID     string         `json:"entity_id"`
	ConsultantID string         `json:"consultant_id,omitempty"`
	ActorID      string         `json:"actor_id,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// Filter controls which stored events are returned.
type Filter struct {
	EntityType   string     `json:"entity_type,omitempty"`
	EntityID     string     `json:"entity_id,omitempty"`
	ConsultantID string     `json:"consultant_id,omitempty"`
	Type         Type       `json:"type,omitempty"`
	After        *time.Time `json:"after,omitempty"`
	Before       *time.Time `json:"before,omitempty"`
}

// Matches reports whether ev satisfies the filter.
func (f *Filter) Matches(ev *Event) bool {
	if f.EntityType != "" && ev.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && ev.EntityID != f.EntityID {
		return false
	}
	if f.ConsultantID != "" && ev.ConsultantID != f.ConsultantID {
		return false
	}
	if f.Type != "" && ev.Type != f.Type {
		return false
	}
	if f.After != nil && !ev.OccurredAt.After(*f.After) {
		return false
	}
	if f.Before != nil && !ev.OccurredAt.Before(*f.Before) {
		return false
	}
	return true
}

// Page is a cursor-paginated page of stored events.
type Page struct {
	Events  []Event `json:"events"`
	Cursor  string  `json:"cursor"`
	HasMore bool    `json:"has_more"`
	Total   int     `json:"total"`
}
