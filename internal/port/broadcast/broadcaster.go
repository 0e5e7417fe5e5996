// Package broadcast defines the port for broadcasting real-time events to connected clients.
package broadcast

import "context"

// Broadcaster sends real-time events to the connected clients of the tenant
// in ctx.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to the tenant's clients.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
