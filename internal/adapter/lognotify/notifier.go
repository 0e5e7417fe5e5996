// Package lognotify implements a notifier.Notifier that writes
// notifications to the structured log. It is the development default.
package lognotify

import (
	"context"
	"log/slog"

	"github.com/Strob0t/StaffForge/internal/port/notifier"
)

const providerName = "log"

func init() {
	notifier.Register(providerName, func(map[string]string) (notifier.Notifier, error) {
		return New(slog.Default()), nil
	})
}

// Notifier logs every notification at info level.
type Notifier struct {
	log *slog.Logger
}

// New creates a log notifier writing to l.
func New(l *slog.Logger) *Notifier {
	return &Notifier{log: l}
}

func (n *Notifier) Name() string { return providerName }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{Recipients: true}
}

func (n *Notifier) Send(ctx context.Context, nt notifier.Notification) error {
	n.log.InfoContext(ctx, "notification",
		"template", nt.Template,
		"tenant_id", nt.TenantID,
		"to", nt.To,
		"title", nt.Title,
		"message", nt.Message,
		"source", nt.Source,
	)
	return nil
}
