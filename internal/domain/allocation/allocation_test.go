package allocation

import (
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/domain/assignment"
	"github.com/Strob0t/StaffForge/internal/domain/availability"
	"github.com/Strob0t/StaffForge/internal/domain/consultant"
	"github.com/Strob0t/StaffForge/internal/domain/period"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var defaults = Defaults{HoursPerDay: 8, UtilizationTarget: 80}

func rec(id string, typ availability.Type, start, end time.Time, approval availability.ApprovalStatus) *availability.Record {
	r := &availability.Record{
		ID:           id,
		Code:         "AVL-" + id,
		ConsultantID: "c1",
		Type:         typ,
		Period:       period.New(start, end),
		Status:       availability.StatusActive,
	}
	if typ == availability.TypeTimeOff {
		r.TimeOff = &availability.TimeOff{ApprovalStatus: approval}
	}
	return r
}

func TestCalculateApprovedTimeOff(t *testing.T) {
	c := &consultant.Consultant{ID: "c1"}
	records := []*availability.Record{
		rec("1", availability.TypeTimeOff, date(2025, 3, 10), date(2025, 3, 14), availability.ApprovalApproved),
	}
	b := Calculate(c, records, date(2025, 3, 1), date(2025, 3, 31), false, defaults)
	if b.WorkingDays != 21 || b.TotalCapacityHours != 168 {
		t.Fatalf("working days %d total %v, want 21/168", b.WorkingDays, b.TotalCapacityHours)
	}
	if b.TimeOffHours != 40 {
		t.Fatalf("TimeOffHours = %v, want 40", b.TimeOffHours)
	}
	if b.AvailableHours != 128 || b.CapacityPercentage != 76 {
		t.Fatalf("available %v pct %v, want 128/76", b.AvailableHours, b.CapacityPercentage)
	}
	if b.BillableTargetHours != 102.4 {
		t.Fatalf("BillableTargetHours = %v, want 102.4", b.BillableTargetHours)
	}
}

func TestCalculateCategories(t *testing.T) {
	c := &consultant.Consultant{ID: "c1", Availability: consultant.Availability{HoursPerWeek: 30, WorkDaysPerWeek: 5}}
	deleted := rec("5", availability.TypeBlackout, date(2025, 3, 3), date(2025, 3, 3), "")
	deleted.Deleted = true
	cancelled := rec("6", availability.TypeBlackout, date(2025, 3, 4), date(2025, 3, 4), "")
	cancelled.Status = availability.StatusCancelled
	other := rec("7", availability.TypeBlackout, date(2025, 3, 5), date(2025, 3, 6), "")
	other.ConsultantID = "c2"

	records := []*availability.Record{
		rec("1", availability.TypeTimeOff, date(2025, 3, 10), date(2025, 3, 11), availability.ApprovalPending),
		rec("2", availability.TypeTimeOff, date(2025, 3, 12), date(2025, 3, 12), availability.ApprovalRejected),
		rec("3", availability.TypeBlackout, date(2025, 3, 17), date(2025, 3, 18), ""),
		rec("4", availability.TypeTraining, date(2025, 3, 20), date(2025, 3, 21), ""),
		deleted, cancelled, other,
	}

	tests := []struct {
		name           string
		excludeTimeOff bool
		wantTimeOff    float64
	}{
		{"pending counted", false, 12},
		{"pending excluded", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Calculate(c, records, date(2025, 3, 1), date(2025, 3, 31), tt.excludeTimeOff, defaults)
			if b.HoursPerDay != 6 {
				t.Fatalf("HoursPerDay = %v, want 6", b.HoursPerDay)
			}
			if b.TimeOffHours != tt.wantTimeOff {
				t.Fatalf("TimeOffHours = %v, want %v", b.TimeOffHours, tt.wantTimeOff)
			}
			if b.BlackoutHours != 12 || b.TrainingHours != 12 {
				t.Fatalf("blackout %v training %v, want 12/12", b.BlackoutHours, b.TrainingHours)
			}
		})
	}
}

func TestCalculateNeverNegative(t *testing.T) {
	c := &consultant.Consultant{ID: "c1"}
	records := []*availability.Record{
		rec("1", availability.TypeBlackout, date(2025, 2, 1), date(2025, 4, 30), ""),
	}
	b := Calculate(c, records, date(2025, 3, 1), date(2025, 3, 31), false, defaults)
	if b.AvailableHours != 0 || b.CapacityPercentage != 0 {
		t.Fatalf("available %v pct %v, want 0/0", b.AvailableHours, b.CapacityPercentage)
	}
	if b.AvailableHours > b.TotalCapacityHours {
		t.Fatal("available must not exceed total")
	}
}

func TestCalculateBoundaryDays(t *testing.T) {
	c := &consultant.Consultant{ID: "c1"}
	tests := []struct {
		name          string
		recStart      time.Time
		recEnd        time.Time
		winStart      time.Time
		winEnd        time.Time
		wantBlackout  float64
		wantAvailable float64
	}{
		{"single-day record and window", date(2026, 3, 12), date(2026, 3, 12), date(2026, 3, 12), date(2026, 3, 12), 8, 0},
		{"record starts on window end", date(2026, 3, 12), date(2026, 3, 14), date(2026, 3, 1), date(2026, 3, 12), 8, 64},
		{"record ends on window start", date(2026, 2, 20), date(2026, 3, 2), date(2026, 3, 2), date(2026, 3, 6), 8, 32},
		{"record after window", date(2026, 3, 13), date(2026, 3, 13), date(2026, 3, 1), date(2026, 3, 12), 0, 72},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := []*availability.Record{rec("1", availability.TypeBlackout, tt.recStart, tt.recEnd, "")}
			b := Calculate(c, records, tt.winStart, tt.winEnd, false, defaults)
			if b.BlackoutHours != tt.wantBlackout || b.AvailableHours != tt.wantAvailable {
				t.Fatalf("blackout %v available %v, want %v/%v", b.BlackoutHours, b.AvailableHours, tt.wantBlackout, tt.wantAvailable)
			}
		})
	}
}

func TestCalculateWeekendOnly(t *testing.T) {
	c := &consultant.Consultant{ID: "c1"}
	b := Calculate(c, nil, date(2025, 3, 1), date(2025, 3, 2), false, defaults)
	if b.TotalCapacityHours != 0 || b.CapacityPercentage != 0 {
		t.Fatalf("weekend window: total %v pct %v", b.TotalCapacityHours, b.CapacityPercentage)
	}
}

func TestAvailabilityConflicts(t *testing.T) {
	deleted := rec("2", availability.TypeBlackout, date(2025, 1, 1), date(2025, 1, 10), "")
	deleted.Deleted = true
	records := []*availability.Record{
		rec("1", availability.TypeRegular, date(2025, 1, 1), date(2025, 1, 5), ""),
		deleted,
	}

	if got := AvailabilityConflicts(records, "c1", period.New(date(2025, 1, 5), date(2025, 1, 10)), ""); len(got) != 0 {
		t.Fatalf("touching periods must not conflict: %+v", got)
	}
	got := AvailabilityConflicts(records, "c1", period.New(date(2025, 1, 4), date(2025, 1, 10)), "")
	if len(got) != 1 || got[0].ID != "1" || got[0].Type != "regular" {
		t.Fatalf("expected one conflict with record 1, got %+v", got)
	}
	if got := AvailabilityConflicts(records, "c1", period.New(date(2025, 1, 2), date(2025, 1, 3)), "1"); len(got) != 0 {
		t.Fatalf("excluded record must not conflict: %+v", got)
	}
	err := CheckAvailability(records, "c1", period.New(date(2025, 1, 2), date(2025, 1, 3)), "")
	var ce *domain.ConflictError
	if !errors.As(err, &ce) || !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func asg(id string, status assignment.Status, pct float64, start, end time.Time) *assignment.Assignment {
	return &assignment.Assignment{
		ID:           id,
		ConsultantID: "c1",
		ProjectID:    "p" + id,
		Status:       status,
		Allocation:   assignment.Allocation{Percentage: pct},
		Timeline:     assignment.Timeline{ProposedStart: start, ProposedEnd: end},
	}
}

var rules = Rules{MaxAllocation: 100, WarningThreshold: 120, MaxConcurrent: 3}

func TestCheckAssignmentCapacityOverallocation(t *testing.T) {
	existing := []*assignment.Assignment{
		asg("1", assignment.StatusActive, 60, date(2025, 6, 1), date(2025, 6, 30)),
		asg("2", assignment.StatusDraft, 80, date(2025, 6, 1), date(2025, 6, 30)),
	}
	check, err := CheckAssignmentCapacity(existing, "c1", period.New(date(2025, 6, 15), date(2025, 7, 15)), 50, "", rules)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if check.Total != 110 || ve.Details["total_allocation"] != 110.0 || ve.Details["max_allocation"] != 100.0 {
		t.Fatalf("unexpected details %+v", ve.Details)
	}

	allow := rules
	allow.AllowOverallocation = true
	if _, err := CheckAssignmentCapacity(existing, "c1", period.New(date(2025, 6, 15), date(2025, 7, 15)), 50, "", allow); err != nil {
		t.Fatalf("overallocation allowed: %v", err)
	}
	check, _ = CheckAssignmentCapacity(existing, "c1", period.New(date(2025, 6, 15), date(2025, 7, 15)), 70, "", allow)
	if !check.Warning {
		t.Fatal("130% must raise the warning flag")
	}
}

func TestCheckAssignmentCapacityConcurrent(t *testing.T) {
	existing := []*assignment.Assignment{
		asg("1", assignment.StatusActive, 20, date(2025, 6, 1), date(2025, 6, 30)),
		asg("2", assignment.StatusConfirmed, 20, date(2025, 6, 1), date(2025, 6, 30)),
		asg("3", assignment.StatusConfirmed, 20, date(2025, 6, 1), date(2025, 6, 30)),
	}
	if _, err := CheckAssignmentCapacity(existing, "c1", period.New(date(2025, 6, 10), date(2025, 6, 20)), 10, "", rules); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("fourth concurrent assignment must fail, got %v", err)
	}
	if _, err := CheckAssignmentCapacity(existing, "c1", period.New(date(2025, 6, 10), date(2025, 6, 20)), 10, "3", rules); err != nil {
		t.Fatalf("updating one of three must pass: %v", err)
	}
}

func TestFindDuplicate(t *testing.T) {
	cancelled := asg("2", assignment.StatusCancelled, 10, date(2024, 1, 1), date(2024, 1, 31))
	cancelled.ProjectID = "p9"
	existing := []*assignment.Assignment{
		asg("1", assignment.StatusDraft, 10, date(2024, 1, 1), date(2024, 1, 31)),
		cancelled,
	}
	dup := FindDuplicate(existing, "c1", "p1", "", "")
	if dup == nil || dup.ID != "1" {
		t.Fatalf("expected duplicate of 1, got %+v", dup)
	}
	if FindDuplicate(existing, "c1", "p9", "", "") != nil {
		t.Fatal("cancelled assignment must not count as duplicate")
	}
	if FindDuplicate(existing, "c2", "p1", "", "") != nil {
		t.Fatal("other consultant must not count as duplicate")
	}
	if !errors.Is(DuplicateError(dup), domain.ErrConflict) {
		t.Fatal("duplicate must be a conflict")
	}
}
