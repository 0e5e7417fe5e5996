package service

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Strob0t/StaffForge/internal/domain/event"
	"github.com/Strob0t/StaffForge/internal/port/notifier"
)

func TestNotificationService_Notify(t *testing.T) {
	m1 := &mockNotifier{name: "mock1"}
	m2 := &mockNotifier{name: "mock2"}
	svc := NewNotificationService([]notifier.Notifier{m1, m2}, nil)

	svc.Notify(context.Background(), notifier.Notification{
		Title:   "Test",
		Message: "Hello",
		Level:   "info",
		Source:  "time_off.approved",
	})

	if len(m1.sent) != 1 {
		t.Fatalf("expected 1 notification on mock1, got %d", len(m1.sent))
	}
	if len(m2.sent) != 1 {
		t.Fatalf("expected 1 notification on mock2, got %d", len(m2.sent))
	}
}

func TestNotificationService_FilterEvents(t *testing.T) {
	m := &mockNotifier{name: "mock"}
	svc := NewNotificationService([]notifier.Notifier{m}, []string{"time_off.rejected"})

	svc.Notify(context.Background(), notifier.Notification{Title: "Test", Source: "time_off.approved"})
	if len(m.sent) != 0 {
		t.Fatalf("expected 0 notifications (filtered), got %d", len(m.sent))
	}

	svc.Notify(context.Background(), notifier.Notification{Title: "Test", Source: "time_off.rejected"})
	if len(m.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(m.sent))
	}
}

func TestNotificationService_ErrorContinues(t *testing.T) {
	failer := &mockNotifier{name: "fail", sendErr: errors.New("connection refused")}
	success := &mockNotifier{name: "ok"}
	svc := NewNotificationService([]notifier.Notifier{failer, success}, nil)

	err := svc.HandleEvent(context.Background(), event.Event{
		Type: event.TypeTimeOffApproved,
		Data: map[string]any{"consultant_email": "ada@example.com"},
	})
	if err != nil {
		t.Fatalf("HandleEvent must swallow notifier errors, got %v", err)
	}
	if len(success.sent) != 1 {
		t.Fatalf("expected 1 notification on success notifier, got %d", len(success.sent))
	}
}

type countingNotifier struct {
	calls atomic.Int32
}

func (c *countingNotifier) Name() string                        { return "counting" }
func (c *countingNotifier) Capabilities() notifier.Capabilities { return notifier.Capabilities{} }
func (c *countingNotifier) Send(context.Context, notifier.Notification) error {
	c.calls.Add(1)
	return errors.New("smtp down")
}

func TestNotificationService_BreakerStopsCalls(t *testing.T) {
	n := &countingNotifier{}
	svc := NewNotificationService([]notifier.Notifier{n}, nil)
	svc.SetBreakerPolicy(2, time.Minute)

	for range 5 {
		svc.Notify(context.Background(), notifier.Notification{Source: "time_off.approved"})
	}
	if got := n.calls.Load(); got != 2 {
		t.Fatalf("expected the breaker to stop after 2 failures, got %d calls", got)
	}
}

func TestNotificationFor(t *testing.T) {
	tests := []struct {
		name     string
		ev       event.Event
		ok       bool
		template string
		to       []string
	}{
		{
			name: "time off requested goes to the manager",
			ev: event.Event{Type: event.TypeTimeOffRequested, Data: map[string]any{
				"manager_id": "boss", "consultant_name": "Ada Lovelace", "days_requested": 3, "reason": "vacation", "code": "AVL-1",
			}},
			ok: true, template: "time_off_requested", to: []string{"boss"},
		},
		{
			name: "approval required from decoded recipients",
			ev: event.Event{Type: event.TypeAssignmentApprovalRequired, Data: map[string]any{
				"recipients": []any{"m1", "m2", "m1"},
			}},
			ok: true, template: "assignment_approval_required", to: []string{"m1", "m2"},
		},
		{
			name: "final approval",
			ev: event.Event{Type: event.TypeAssignmentApproved, Data: map[string]any{
				"final": true, "recipients": []string{"u1", "system"}, "consultant_email": "ada@example.com",
			}},
			ok: true, template: "assignment_approved", to: []string{"u1", "ada@example.com"},
		},
		{
			name: "intermediate approval is skipped",
			ev:   event.Event{Type: event.TypeAssignmentApproved, Data: map[string]any{"final": false}},
		},
		{
			name: "event without template",
			ev:   event.Event{Type: event.TypeAvailabilityCreated},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := NotificationFor(tt.ev)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if n.Template != tt.template {
				t.Fatalf("template = %q, want %q", n.Template, tt.template)
			}
			if !slices.Equal(n.To, tt.to) {
				t.Fatalf("recipients = %v, want %v", n.To, tt.to)
			}
			if n.Message == "" || n.Source != string(tt.ev.Type) {
				t.Fatalf("incomplete notification: %+v", n)
			}
		})
	}
}

func TestNotificationService_Count(t *testing.T) {
	svc := NewNotificationService([]notifier.Notifier{
		&mockNotifier{name: "a"},
		&mockNotifier{name: "b"},
	}, nil)
	if svc.NotifierCount() != 2 {
		t.Fatalf("expected 2, got %d", svc.NotifierCount())
	}
}
