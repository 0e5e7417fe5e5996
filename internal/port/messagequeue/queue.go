// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
// The context carries request-scoped values such as the request ID.
// Returning an error asks the queue to redeliver the message.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	// Pending messages are processed; no new messages are accepted.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subject constants for NATS subjects used by StaffForge.
const (
	// SubjectEvents prefixes every staffing event subject:
	// staffing.events.{event type}, e.g. staffing.events.time_off.approved.
	SubjectEvents = "staffing.events"

	// SubjectEventsAll matches every staffing event.
	SubjectEventsAll = SubjectEvents + ".>"
)

// EventSubject returns the subject an event of the given type is published on.
func EventSubject(eventType string) string {
	return SubjectEvents + "." + eventType
}
