package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	cfotel "github.com/Strob0t/StaffForge/internal/adapter/otel"
	"github.com/Strob0t/StaffForge/internal/domain/event"
	"github.com/Strob0t/StaffForge/internal/port/notifier"
	"github.com/Strob0t/StaffForge/internal/resilience"
)

// NotificationService maps staffing events to notification templates and
// dispatches them to all registered notifiers.
type NotificationService struct {
	notifiers     []notifier.Notifier
	breakers      map[string]*resilience.Breaker
	enabledEvents map[string]bool
	metrics       *cfotel.Metrics
}

// NewNotificationService creates a NotificationService with the given notifiers
// and list of enabled event types (e.g., "time_off.approved").
// If enabledEvents is nil or empty, all events are enabled.
func NewNotificationService(notifiers []notifier.Notifier, enabledEvents []string) *NotificationService {
	enabled := make(map[string]bool, len(enabledEvents))
	for _, e := range enabledEvents {
		enabled[e] = true
	}
	s := &NotificationService{
		notifiers:     notifiers,
		enabledEvents: enabled,
	}
	s.SetBreakerPolicy(5, 30*time.Second)
	return s
}

// SetBreakerPolicy guards every notifier with its own circuit breaker.
func (s *NotificationService) SetBreakerPolicy(maxFailures int, timeout time.Duration) {
	s.breakers = make(map[string]*resilience.Breaker, len(s.notifiers))
	for _, n := range s.notifiers {
		s.breakers[n.Name()] = resilience.NewBreaker(n.Name(), maxFailures, timeout)
	}
}

// SetMetrics attaches the metric instruments.
func (s *NotificationService) SetMetrics(m *cfotel.Metrics) { s.metrics = m }

// Name implements EventSink.
func (s *NotificationService) Name() string { return "notification" }

// Notify sends a notification to all registered notifiers.
// Errors are logged but do not interrupt delivery to other notifiers.
func (s *NotificationService) Notify(ctx context.Context, n notifier.Notification) {
	if len(s.enabledEvents) > 0 && !s.enabledEvents[n.Source] {
		return
	}

	for _, provider := range s.notifiers {
		send := func(ctx context.Context) error { return provider.Send(ctx, n) }
		var err error
		if b := s.breakers[provider.Name()]; b != nil {
			err = b.Execute(ctx, send)
		} else {
			err = send(ctx)
		}
		if err != nil {
			slog.WarnContext(ctx, "notification send failed",
				"provider", provider.Name(),
				"template", n.Template,
				"error", err,
			)
			s.metrics.SideEffectFailure(ctx, "notify."+provider.Name())
			continue
		}
		slog.DebugContext(ctx, "notification sent", "provider", provider.Name(), "template", n.Template)
	}
}

// HandleEvent implements EventSink. Events without a template are ignored;
// delivery failures are logged, never returned, so one broken notifier does
// not make the queue redeliver the event to every other sink.
func (s *NotificationService) HandleEvent(ctx context.Context, ev event.Event) error {
	n, ok := NotificationFor(ev)
	if !ok {
		return nil
	}
	s.Notify(ctx, n)
	return nil
}

// NotifierCount returns the number of registered notifiers.
func (s *NotificationService) NotifierCount() int {
	return len(s.notifiers)
}

type notificationTemplate struct {
	name  string
	title string
	level string
	// recipients names the data keys holding recipient identities.
	recipients []string
}

var templates = map[event.Type]notificationTemplate{
	event.TypeTimeOffRequested:           {"time_off_requested", "Time off requested", "info", []string{"manager_id"}},
	event.TypeTimeOffApproved:            {"time_off_approved", "Time off approved", "success", []string{"consultant_email"}},
	event.TypeTimeOffRejected:            {"time_off_rejected", "Time off rejected", "warning", []string{"consultant_email"}},
	event.TypeAssignmentApprovalRequired: {"assignment_approval_required", "Assignment approval required", "info", []string{"recipients"}},
	event.TypeAssignmentApproved:         {"assignment_approved", "Assignment approved", "success", []string{"recipients", "consultant_email"}},
	event.TypeAssignmentRejected:         {"assignment_rejected", "Assignment rejected", "warning", []string{"recipients"}},
	event.TypeAssignmentStarted:          {"assignment_started", "Assignment started", "info", []string{"consultant_email", "created_by"}},
	event.TypeBudgetThresholdReached:     {"budget_threshold_reached", "Budget threshold reached", "warning", []string{"recipients"}},
}

// NotificationFor maps an event to its notification. The second result is
// false for events that have no template.
func NotificationFor(ev event.Event) (notifier.Notification, bool) {
	t, ok := templates[ev.Type]
	if !ok {
		return notifier.Notification{}, false
	}
	// An intermediate approval hands over to the next level instead.
	if ev.Type == event.TypeAssignmentApproved {
		if final, ok := ev.Data["final"].(bool); ok && !final {
			return notifier.Notification{}, false
		}
	}
	return notifier.Notification{
		Template: t.name,
		TenantID: ev.TenantID,
		To:       recipients(ev.Data, t.recipients),
		Title:    t.title,
		Message:  message(ev),
		Level:    t.level,
		Source:   string(ev.Type),
		Data:     ev.Data,
	}, true
}

// recipients collects the identities stored under keys. Values decoded from
// the queue arrive as []any.
func recipients(data map[string]any, keys []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(v string) {
		if v != "" && v != "system" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, k := range keys {
		switch v := data[k].(type) {
		case string:
			add(v)
		case []string:
			for _, s := range v {
				add(s)
			}
		case []any:
			for _, s := range v {
				if str, ok := s.(string); ok {
					add(str)
				}
			}
		}
	}
	return out
}

func message(ev event.Event) string {
	str := func(k string) string {
		if v, ok := ev.Data[k]; ok {
			return fmt.Sprint(v)
		}
		return ""
	}
	subject := str("consultant_name")
	if subject == "" {
		subject = ev.ConsultantID
	}
	ref := str("code")
	switch ev.Type {
	case event.TypeTimeOffRequested:
		return fmt.Sprintf("%s requested %s days of %s time off (%s).", subject, str("days_requested"), str("reason"), ref)
	case event.TypeTimeOffApproved:
		return fmt.Sprintf("Time off %s for %s was approved.", ref, subject)
	case event.TypeTimeOffRejected:
		return strings.TrimSpace(fmt.Sprintf("Time off %s for %s was rejected. %s", ref, subject, str("rejection_reason")))
	case event.TypeAssignmentApprovalRequired:
		return fmt.Sprintf("Assignment %s of %s as %s needs approval at level %s.", ref, subject, str("role"), str("level_name"))
	case event.TypeAssignmentApproved:
		return fmt.Sprintf("Assignment %s of %s was approved.", ref, subject)
	case event.TypeAssignmentRejected:
		return fmt.Sprintf("Assignment %s of %s was rejected: %s", ref, subject, str("reason"))
	case event.TypeAssignmentStarted:
		return fmt.Sprintf("Assignment %s of %s has started.", ref, subject)
	case event.TypeBudgetThresholdReached:
		return fmt.Sprintf("Assignment %s used %s%% of its budget (%s of %s).", ref, str("threshold"), str("used"), str("total"))
	}
	return string(ev.Type)
}
