// Package notifier defines the notification port (interface) and capabilities.
package notifier

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Notification is the payload sent through a Notifier.
type Notification struct {
	Template string         `json:"template"` // e.g. "time_off_approved"
	TenantID string         `json:"tenant_id"`
	To       []string       `json:"to,omitempty"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Level    string         `json:"level"`  // "info", "success", "warning", "error"
	Source   string         `json:"source"` // event type, e.g. "time_off.approved"
	Data     map[string]any `json:"data,omitempty"`
}

// Capabilities declares which features a notifier supports.
type Capabilities struct {
	RichFormatting bool `json:"rich_formatting"`
	Recipients     bool `json:"recipients"`
}

// Notifier is the port interface for sending notifications.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "email", "log").
	Name() string

	// Capabilities returns what this notifier supports.
	Capabilities() Capabilities

	// Send delivers a notification.
	Send(ctx context.Context, notification Notification) error
}
