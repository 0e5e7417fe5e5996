package messagequeue

import "time"

// EventPayload is the schema for staffing.events.* messages. It mirrors
// event.Event on the wire.
type EventPayload struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	TenantID     string         `json:"tenant_id"`
	EntityType   string         `json:"entity_type"`
	EntityID     string         `json:"entity_id"`
	ConsultantID string         `json:"consultant_id,omitempty"`
	ActorID      string         `json:"actor_id,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}
