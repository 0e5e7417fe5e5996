package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Strob0t/StaffForge/internal/adapter/memory"
	"github.com/Strob0t/StaffForge/internal/domain/allocation"
	"github.com/Strob0t/StaffForge/internal/domain/assignment"
	"github.com/Strob0t/StaffForge/internal/domain/availability"
	"github.com/Strob0t/StaffForge/internal/domain/consultant"
	"github.com/Strob0t/StaffForge/internal/middleware"
	"github.com/Strob0t/StaffForge/internal/port/notifier"
)

// testNow is a Monday.
var testNow = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func fixedClock() clock { return clock{nowFn: func() time.Time { return testNow }} }

func day(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)
}

type testEnv struct {
	store        *memory.Store
	eventLog     *memory.EventStore
	dispatcher   *EventDispatcher
	projector    *ProjectorService
	consultants  *ConsultantService
	availability *AvailabilityService
	capacity     *CapacityService
	assignments  *AssignmentService
	notifier     *mockNotifier
	hub          *mockBroadcaster
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		store:    memory.NewStore(),
		eventLog: memory.NewEventStore(),
		notifier: &mockNotifier{name: "mock"},
		hub:      &mockBroadcaster{},
	}
	notifications := NewNotificationService([]notifier.Notifier{e.notifier}, nil)
	e.dispatcher = NewEventDispatcher(nil, NewAnalyticsService(e.eventLog), notifications)

	e.projector = NewProjectorService(e.store, 5*time.Second, 4)
	e.projector.clock = fixedClock()
	e.projector.SetBroadcaster(e.hub)

	e.consultants = NewConsultantService(e.store, e.dispatcher)
	e.consultants.clock = fixedClock()

	e.availability = NewAvailabilityService(e.store, e.dispatcher, e.projector, availability.Policy{
		AutoApproveDays:   2,
		AdvanceNoticeDays: 14,
		MaxDaysPerRequest: 30,
		SeniorRoles:       []string{"manager"},
	})
	e.availability.clock = fixedClock()

	e.capacity = NewCapacityService(e.store, allocation.Defaults{HoursPerDay: 8, UtilizationTarget: 80})

	e.assignments = NewAssignmentService(e.store, e.dispatcher, e.projector, AssignmentPolicy{
		Rules: allocation.Rules{
			MaxAllocation:    100,
			WarningThreshold: 90,
			MaxConcurrent:    3,
		},
		AutoApproval: assignment.AutoApprovalRule{
			MaxDays:       30,
			RateCeiling:   decimal.NewFromInt(150),
			MaxPercentage: 80,
		},
		DefaultHoursPerWeek: 40,
		DefaultHoursPerDay:  8,
	})
	e.assignments.clock = fixedClock()

	t.Cleanup(e.settle)
	return e
}

// settle waits for background events and projections.
func (e *testEnv) settle() {
	e.dispatcher.Wait()
	e.projector.Wait()
	e.dispatcher.Wait()
}

func tenantCtx(tenantID, actor string, roles ...string) context.Context {
	ctx := middleware.WithTenantID(context.Background(), tenantID)
	if actor != "" {
		ctx = middleware.WithActor(ctx, middleware.Actor{ID: actor, Roles: roles})
	}
	return ctx
}

func (e *testEnv) newConsultant(t *testing.T, ctx context.Context, email string) *consultant.Consultant {
	t.Helper()
	c, err := e.consultants.Create(ctx, &consultant.CreateRequest{
		Profile:      consultant.Profile{FirstName: "Ada", LastName: "Lovelace", Email: email},
		HoursPerWeek: 40,
		WorkDays:     5,
	}, Options{})
	if err != nil {
		t.Fatalf("create consultant: %v", err)
	}
	return c
}

// mockNotifier implements notifier.Notifier for testing.
type mockNotifier struct {
	mu      sync.Mutex
	name    string
	sent    []notifier.Notification
	sendErr error
}

func (m *mockNotifier) Name() string                        { return m.name }
func (m *mockNotifier) Capabilities() notifier.Capabilities { return notifier.Capabilities{} }
func (m *mockNotifier) Send(_ context.Context, n notifier.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, n)
	return nil
}

func (m *mockNotifier) templates() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, n := range m.sent {
		out = append(out, n.Template)
	}
	return out
}

type broadcastCall struct {
	tenantID  string
	eventType string
	payload   any
}

type mockBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (b *mockBroadcaster) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, broadcastCall{middleware.TenantIDFromContext(ctx), eventType, payload})
}

func (b *mockBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}
