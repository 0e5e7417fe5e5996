package service

import (
	"errors"
	"slices"
	"testing"

	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/domain/availability"
	"github.com/Strob0t/StaffForge/internal/domain/period"
)

func blackout(consultantID string, p period.Period) *availability.CreateRequest {
	return &availability.CreateRequest{
		ConsultantID: consultantID,
		Type:         availability.TypeBlackout,
		Period:       p,
		Capacity:     availability.Capacity{Status: availability.MarkerUnavailable},
	}
}

func TestAvailabilityService_OverlapConflicts(t *testing.T) {
	e := newTestEnv(t)
	ctx := tenantCtx("acme", "u1")
	c := e.newConsultant(t, ctx, "ada@example.com")

	first, err := e.availability.Create(ctx, blackout(c.ID, period.New(day(1, 1), day(1, 5))), Options{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		name     string
		req      *availability.CreateRequest
		opts     Options
		conflict bool
	}{
		{"touching end is free", blackout(c.ID, period.New(day(1, 5), day(1, 10))), Options{}, false},
		{"overlap of another type", &availability.CreateRequest{
			ConsultantID: c.ID,
			Type:         availability.TypeTraining,
			Period:       period.New(day(1, 4), day(1, 6)),
		}, Options{}, true},
		{"overlap with check skipped", blackout(c.ID, period.New(day(1, 2), day(1, 3))), Options{SkipConflictCheck: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.availability.Create(ctx, tt.req, tt.opts)
			if !tt.conflict {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var cerr *domain.ConflictError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected ConflictError, got %v", err)
			}
			if !slices.ContainsFunc(cerr.Conflicts, func(c domain.Conflict) bool { return c.ID == first.ID }) {
				t.Fatalf("conflict list misses %s: %+v", first.ID, cerr.Conflicts)
			}
		})
	}
}

func TestAvailabilityService_UpdateExcludesSelf(t *testing.T) {
	e := newTestEnv(t)
	ctx := tenantCtx("acme", "u1")
	c := e.newConsultant(t, ctx, "ada@example.com")

	r, err := e.availability.Create(ctx, blackout(c.ID, period.New(day(1, 1), day(1, 5))), Options{})
	if err != nil {
		t.Fatal(err)
	}
	p := period.New(day(1, 2), day(1, 8))
	got, err := e.availability.Update(ctx, r.Code, &availability.UpdateRequest{Period: &p}, Options{})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !got.Period.End.Equal(day(1, 8)) || got.Version != 2 {
		t.Fatalf("unexpected record after update: %+v", got)
	}
}

func TestAvailabilityService_ReactivationChecksOverlap(t *testing.T) {
	e := newTestEnv(t)
	ctx := tenantCtx("acme", "u1")
	c := e.newConsultant(t, ctx, "ada@example.com")

	cancelled := availability.StatusCancelled
	active := availability.StatusActive

	a, err := e.availability.Create(ctx, blackout(c.ID, period.New(day(1, 1), day(1, 5))), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.availability.Update(ctx, a.ID, &availability.UpdateRequest{Status: &cancelled}, Options{}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	b, err := e.availability.Create(ctx, blackout(c.ID, period.New(day(1, 2), day(1, 4))), Options{})
	if err != nil {
		t.Fatalf("create over a cancelled record: %v", err)
	}

	_, err = e.availability.Update(ctx, a.ID, &availability.UpdateRequest{Status: &active}, Options{})
	var cerr *domain.ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError on reactivation, got %v", err)
	}
	if !slices.ContainsFunc(cerr.Conflicts, func(c domain.Conflict) bool { return c.ID == b.ID }) {
		t.Fatalf("conflict list misses %s: %+v", b.ID, cerr.Conflicts)
	}
	got, err := e.availability.Get(ctx, a.ID, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != availability.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}

	if err := e.availability.Delete(ctx, b.ID, Options{}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, err = e.availability.Update(ctx, a.ID, &availability.UpdateRequest{Status: &active}, Options{}); err != nil || got.Status != active {
		t.Fatalf("reactivation without overlap: %+v %v", got, err)
	}
}

func TestAvailabilityService_TimeOffStatusNotEditable(t *testing.T) {
	e := newTestEnv(t)
	ctx := tenantCtx("acme", "u1")
	c := e.newConsultant(t, ctx, "ada@example.com")

	r, err := e.availability.Create(ctx, &availability.CreateRequest{
		ConsultantID: c.ID,
		Type:         availability.TypeTimeOff,
		Period:       period.New(day(4, 7), day(4, 8)),
		TimeOff:      &availability.TimeOffInput{Reason: "vacation"},
	}, Options{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	cancelled := availability.StatusCancelled
	if _, err := e.availability.Update(ctx, r.ID, &availability.UpdateRequest{Status: &cancelled}, Options{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for a time-off status edit, got %v", err)
	}
}

// Soft-deleted records are invisible to overlap checks and lists but stay
// retrievable by id.
func TestAvailabilityService_SoftDeletedRecord(t *testing.T) {
	e := newTestEnv(t)
	ctx := tenantCtx("acme", "u1")
	c := e.newConsultant(t, ctx, "ada@example.com")

	r, err := e.availability.Create(ctx, blackout(c.ID, period.New(day(4, 1), day(4, 10))), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.availability.Delete(ctx, r.ID, Options{}); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := e.availability.Create(ctx, blackout(c.ID, period.New(day(4, 5), day(4, 6))), Options{}); err != nil {
		t.Fatalf("deleted record must not conflict: %v", err)
	}
	if _, err := e.availability.Get(ctx, r.ID, Options{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	stored, err := e.store.GetAvailability(ctx, r.ID)
	if err != nil || !stored.Deleted || stored.DeletedBy != "u1" {
		t.Fatalf("store must return the deleted record, got %+v %v", stored, err)
	}
	b, err := e.capacity.Calculate(ctx, c.ID, day(4, 1), day(4, 30), false, Options{})
	if err != nil || b.BlackoutHours != 16 {
		t.Fatalf("only the live blackout must be deducted, got %v %v", b.BlackoutHours, err)
	}
	page, err := e.availability.List(ctx, availability.Filter{ConsultantID: c.ID}, Options{})
	if err != nil || page.Pagination.Total != 1 {
		t.Fatalf("expected only the live record listed, got %+v %v", page.Pagination, err)
	}
	page, err = e.availability.List(ctx, availability.Filter{ConsultantID: c.ID}, Options{IncludeDeleted: true})
	if err != nil || page.Pagination.Total != 2 {
		t.Fatalf("expected both records with IncludeDeleted, got %+v %v", page.Pagination, err)
	}
}

func TestAvailabilityService_RequestTimeOff(t *testing.T) {
	tests := []struct {
		name    string
		start   int // days after testNow
		days    int
		roles   []string
		wantErr bool
		status  availability.ApprovalStatus
	}{
		{name: "short request auto-approved", start: 1, days: 2, status: availability.ApprovalAutoApproved},
		{name: "long request with notice stays pending", start: 20, days: 5, status: availability.ApprovalPending},
		{name: "senior role auto-approved", start: 20, days: 5, roles: []string{"manager"}, status: availability.ApprovalAutoApproved},
		{name: "three days from tomorrow lacks notice", start: 1, days: 3, wantErr: true},
		{name: "start in the past", start: -1, days: 1, wantErr: true},
		{name: "over the maximum length", start: 30, days: 31, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			ctx := tenantCtx("acme", "u1", tt.roles...)
			c := e.newConsultant(t, ctx, "ada@example.com")
			start := testNow.AddDate(0, 0, tt.start)
			end := start.AddDate(0, 0, tt.days-1)

			r, err := e.availability.RequestTimeOff(ctx, &availability.TimeOffRequest{
				ConsultantID: c.ID, Start: start, End: end, Reason: availability.ReasonVacation,
			}, Options{})
			if tt.wantErr {
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("RequestTimeOff: %v", err)
			}
			if r.TimeOff.ApprovalStatus != tt.status {
				t.Fatalf("expected %s, got %s", tt.status, r.TimeOff.ApprovalStatus)
			}
			if r.TimeOff.DaysRequested != tt.days {
				t.Fatalf("expected %d days requested, got %d", tt.days, r.TimeOff.DaysRequested)
			}
		})
	}
}

func TestAvailabilityService_TimeOffDecisions(t *testing.T) {
	e := newTestEnv(t)
	ctx := tenantCtx("acme", "u1")
	approver := tenantCtx("acme", "mgr", "manager")
	c := e.newConsultant(t, ctx, "ada@example.com")

	request := func(from int) *availability.Record {
		t.Helper()
		r, err := e.availability.RequestTimeOff(ctx, &availability.TimeOffRequest{
			ConsultantID: c.ID, Start: day(4, from), End: day(4, from+4), Reason: availability.ReasonVacation,
		}, Options{})
		if err != nil {
			t.Fatalf("RequestTimeOff: %v", err)
		}
		return r
	}

	r := request(1)
	approved, err := e.availability.ApproveTimeOff(approver, r.ID, Options{})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.TimeOff.ApprovalStatus != availability.ApprovalApproved || approved.TimeOff.ApprovedBy != "mgr" {
		t.Fatalf("unexpected time off: %+v", approved.TimeOff)
	}
	if _, err := e.availability.ApproveTimeOff(approver, r.ID, Options{}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("deciding twice must fail with conflict, got %v", err)
	}
	p := period.New(day(4, 2), day(4, 6))
	if _, err := e.availability.Update(ctx, r.ID, &availability.UpdateRequest{Period: &p}, Options{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("approved time off must not be rescheduled, got %v", err)
	}
	cancelled, err := e.availability.CancelTimeOff(ctx, r.ID, "plans changed", Options{})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != availability.StatusCancelled {
		t.Fatalf("expected cancelled record, got %s", cancelled.Status)
	}

	r2 := request(10)
	if _, err := e.availability.RejectTimeOff(approver, r2.ID, "", Options{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("rejection without reason must fail, got %v", err)
	}
	rejected, err := e.availability.RejectTimeOff(approver, r2.ID, "busy quarter", Options{})
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.TimeOff.ApprovalStatus != availability.ApprovalRejected {
		t.Fatalf("expected rejected, got %s", rejected.TimeOff.ApprovalStatus)
	}

	e.settle()
	got := e.notifier.templates()
	for _, want := range []string{"time_off_requested", "time_off_approved", "time_off_rejected"} {
		if !slices.Contains(got, want) {
			t.Errorf("missing %s notification in %v", want, got)
		}
	}
}

func TestAvailabilityService_BulkCreate(t *testing.T) {
	e := newTestEnv(t)
	ctx := tenantCtx("acme", "u1")
	c := e.newConsultant(t, ctx, "ada@example.com")

	res, err := e.availability.BulkCreate(ctx, []availability.CreateRequest{
		*blackout(c.ID, period.New(day(5, 1), day(5, 3))),
		*blackout(c.ID, period.New(day(5, 2), day(5, 4))),
		*blackout(c.ID, period.New(day(5, 9), day(5, 1))),
		*blackout(c.ID, period.New(day(5, 10), day(5, 12))),
	}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Created) != 2 || len(res.Skipped) != 1 || len(res.Failed) != 1 {
		t.Fatalf("unexpected result: created=%d skipped=%d failed=%d", len(res.Created), len(res.Skipped), len(res.Failed))
	}
	if res.Skipped[0].Index != 1 || res.Failed[0].Index != 2 {
		t.Fatalf("unexpected indices: %+v %+v", res.Skipped, res.Failed)
	}
}

func TestAvailabilityService_CheckConflicts(t *testing.T) {
	e := newTestEnv(t)
	ctx := tenantCtx("acme", "u1")
	c := e.newConsultant(t, ctx, "ada@example.com")
	r, err := e.availability.Create(ctx, blackout(c.ID, period.New(day(6, 1), day(6, 5))), Options{})
	if err != nil {
		t.Fatal(err)
	}

	got, err := e.availability.CheckConflicts(ctx, c.ID, period.New(day(6, 4), day(6, 10)), "", Options{})
	if err != nil || len(got) != 1 || got[0].ID != r.ID {
		t.Fatalf("expected one conflict with %s, got %+v %v", r.ID, got, err)
	}
	got, err = e.availability.CheckConflicts(ctx, c.ID, period.New(day(6, 4), day(6, 10)), r.ID, Options{})
	if err != nil || len(got) != 0 {
		t.Fatalf("excluded record must not conflict, got %+v %v", got, err)
	}
	if _, err := e.availability.CheckConflicts(ctx, "missing", period.New(day(6, 4), day(6, 10)), "", Options{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown consultant, got %v", err)
	}
}
