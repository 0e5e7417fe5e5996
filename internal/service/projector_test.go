package service

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/StaffForge/internal/domain/assignment"
	"github.com/Strob0t/StaffForge/internal/domain/availability"
	"github.com/Strob0t/StaffForge/internal/domain/consultant"
	"github.com/Strob0t/StaffForge/internal/domain/period"
)

func TestProjectorService_AvailabilitySnapshot(t *testing.T) {
	pct := 30.0
	tests := []struct {
		name    string
		req     func(consultantID string) *availability.CreateRequest
		roles   []string
		status  consultant.AvailabilityStatus
		percent float64
	}{
		{
			name: "approved time off",
			req: func(id string) *availability.CreateRequest {
				return timeOff(id, period.New(day(3, 1), day(3, 5)))
			},
			roles:  []string{"manager"},
			status: consultant.OnLeave,
		},
		{
			name: "pending time off",
			req: func(id string) *availability.CreateRequest {
				return timeOff(id, period.New(day(3, 1), day(3, 5)))
			},
			status:  consultant.Available,
			percent: 100,
		},
		{
			name: "blackout today",
			req: func(id string) *availability.CreateRequest {
				return blackout(id, period.New(day(3, 2), day(3, 4)))
			},
			status: consultant.Unavailable,
		},
		{
			name: "blackout in the future",
			req: func(id string) *availability.CreateRequest {
				return blackout(id, period.New(day(3, 10), day(3, 12)))
			},
			status:  consultant.Available,
			percent: 100,
		},
		{
			name: "partial without percentage",
			req: func(id string) *availability.CreateRequest {
				return &availability.CreateRequest{
					ConsultantID: id,
					Type:         availability.TypeException,
					Period:       period.New(day(3, 3), day(3, 3)),
					Capacity:     availability.Capacity{HoursAvailable: 4, Status: availability.MarkerPartiallyAvailable},
				}
			},
			status:  consultant.PartiallyAvailable,
			percent: 50,
		},
		{
			name: "partial with percentage",
			req: func(id string) *availability.CreateRequest {
				return &availability.CreateRequest{
					ConsultantID: id,
					Type:         availability.TypeException,
					Period:       period.New(day(3, 1), day(3, 7)),
					Capacity:     availability.Capacity{Percentage: &pct, Status: availability.MarkerPartiallyAvailable},
				}
			},
			status:  consultant.PartiallyAvailable,
			percent: 30,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			ctx := tenantCtx("acme", "u1", tt.roles...)
			c := e.newConsultant(t, ctx, "ada@example.com")
			if _, err := e.availability.Create(ctx, tt.req(c.ID), Options{}); err != nil {
				t.Fatal(err)
			}
			e.settle()

			got, err := e.store.GetConsultant(ctx, c.ID)
			if err != nil {
				t.Fatal(err)
			}
			if got.Availability.Status != tt.status || got.Availability.CapacityPercentage != tt.percent {
				t.Fatalf("snapshot = %s/%v, want %s/%v",
					got.Availability.Status, got.Availability.CapacityPercentage, tt.status, tt.percent)
			}
		})
	}
}

func TestProjectorService_AssignmentSnapshot(t *testing.T) {
	e := newTestEnv(t)
	ctx := tenantCtx("acme", "u1")
	c := e.newConsultant(t, ctx, "ada@example.com")

	if _, err := e.assignments.Create(ctx, booking(c.ID, "p1", 50, 3, 1, 3, 20), Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.assignments.Create(ctx, booking(c.ID, "p2", 20, 2, 1, 2, 20), Options{}); err != nil {
		t.Fatal(err)
	}
	pending := booking(c.ID, "p3", 90, 3, 1, 3, 20)
	pending.ApprovalLevels = []assignment.Level{{Name: "manager", Approvers: []string{"m1"}}}
	if _, err := e.assignments.Create(ctx, pending, Options{SkipConflictCheck: true}); err != nil {
		t.Fatal(err)
	}
	e.settle()

	got, err := e.store.GetConsultant(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	as := got.Assignments
	if as.Total != 3 || as.Active != 1 || as.CurrentUtilization != 50 {
		t.Fatalf("unexpected snapshot: total=%d active=%d utilization=%v", as.Total, as.Active, as.CurrentUtilization)
	}
	if len(as.Current) != 1 || as.Current[0].ProjectID != "p1" {
		t.Fatalf("unexpected current assignments: %+v", as.Current)
	}
	if got.Version != c.Version {
		t.Fatalf("projection must not bump the version: %d -> %d", c.Version, got.Version)
	}
}

func TestProjectorService_RecomputeIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	ctx := tenantCtx("acme", "u1")
	c := e.newConsultant(t, ctx, "ada@example.com")
	if _, err := e.availability.Create(ctx, blackout(c.ID, period.New(day(3, 1), day(3, 5))), Options{}); err != nil {
		t.Fatal(err)
	}
	e.settle()

	if n := e.hub.count(); n != 1 {
		t.Fatalf("expected one broadcast after the change, got %d", n)
	}
	call := e.hub.calls[0]
	if call.tenantID != "acme" || call.eventType != "consultant.summary" {
		t.Fatalf("unexpected broadcast: %+v", call)
	}
	if p, ok := call.payload.(SummaryPayload); !ok || p.Availability.Status != consultant.Unavailable {
		t.Fatalf("unexpected payload: %#v", call.payload)
	}

	before, _ := e.store.GetConsultant(ctx, c.ID)
	if err := e.projector.Recompute(context.Background(), c.ID); err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	after, _ := e.store.GetConsultant(ctx, c.ID)
	if after.Availability.Status != before.Availability.Status || after.Assignments.Total != before.Assignments.Total {
		t.Fatalf("second projection changed the snapshot: %+v -> %+v", before.Availability, after.Availability)
	}
	if n := e.hub.count(); n != 1 {
		t.Fatalf("unchanged projection must not broadcast, got %d broadcasts", n)
	}
}

func TestProjectorService_InvalidatesCache(t *testing.T) {
	e := newTestEnv(t)
	mc := newMapCache()
	e.consultants.SetCache(mc, time.Minute)
	e.projector.SetCache(mc)
	ctx := tenantCtx("acme", "u1")
	c := e.newConsultant(t, ctx, "ada@example.com")

	if _, err := e.consultants.Get(ctx, c.ID, Options{}); err != nil {
		t.Fatal(err)
	}
	if !mc.has(consultantCacheKey(c.ID)) {
		t.Fatal("expected consultant to be cached")
	}
	if err := e.projector.Recompute(ctx, c.ID); err != nil {
		t.Fatal(err)
	}
	if mc.has(consultantCacheKey(c.ID)) {
		t.Fatal("projection must invalidate the cached consultant")
	}
}

func TestProjectorService_RecomputeAll(t *testing.T) {
	e := newTestEnv(t)
	ctx := tenantCtx("acme", "u1")
	a := e.newConsultant(t, ctx, "ada@example.com")
	e.newConsultant(t, ctx, "grace@example.com")
	e.newConsultant(t, tenantCtx("globex", "u2"), "linus@example.com")

	// Write a record without triggering a projection.
	if _, err := e.availability.Create(ctx, blackout(a.ID, period.New(day(3, 1), day(3, 5))), Options{}); err != nil {
		t.Fatal(err)
	}
	e.settle()
	if err := e.store.UpdateConsultantSummary(ctx, a.ID, consultant.Availability{Status: consultant.Available, CapacityPercentage: 100}, consultant.Assignments{}); err != nil {
		t.Fatal(err)
	}

	res, err := e.projector.RecomputeAll(ctx)
	if err != nil {
		t.Fatalf("RecomputeAll: %v", err)
	}
	if res.Total != 2 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	got, _ := e.store.GetConsultant(ctx, a.ID)
	if got.Availability.Status != consultant.Unavailable {
		t.Fatalf("expected repaired snapshot, got %s", got.Availability.Status)
	}
}

func TestProjectorService_TriggerOnMissingConsultant(t *testing.T) {
	e := newTestEnv(t)
	e.projector.Trigger(tenantCtx("acme", "u1"), "missing")
	e.projector.Wait()
	if n := e.hub.count(); n != 0 {
		t.Fatalf("failed projection must not broadcast, got %d", n)
	}
}
