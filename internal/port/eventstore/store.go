// Package eventstore defines the port interface for the append-only
// analytics event log.
package eventstore

import (
	"context"

	"github.com/Strob0t/StaffForge/internal/domain/event"
)

// Store is the port interface for appending and reading staffing events.
// Reads are scoped to the tenant in the context.
type Store interface {
	// Append persists a new event. Appending an event ID twice is a no-op,
	// so redelivered queue messages do not duplicate rows.
	Append(ctx context.Context, ev *event.Event) error

	// Load returns a cursor-paginated page of events, newest first.
	Load(ctx context.Context, filter event.Filter, cursor string, limit int) (*event.Page, error)
}
