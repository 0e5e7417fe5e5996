package summary

import (
	"testing"
	"time"

	"github.com/Strob0t/StaffForge/internal/domain/assignment"
	"github.com/Strob0t/StaffForge/internal/domain/availability"
	"github.com/Strob0t/StaffForge/internal/domain/consultant"
	"github.com/Strob0t/StaffForge/internal/domain/period"
)

var now = time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func record(typ availability.Type, start, end time.Time) *availability.Record {
	return &availability.Record{
		Type:   typ,
		Period: period.New(start, end),
		Status: availability.StatusActive,
	}
}

func timeOff(start, end time.Time, s availability.ApprovalStatus) *availability.Record {
	r := record(availability.TypeTimeOff, start, end)
	r.TimeOff = &availability.TimeOff{ApprovalStatus: s}
	return r
}

func partial(start, end time.Time, pct *float64) *availability.Record {
	r := record(availability.TypeException, start, end)
	r.Capacity = availability.Capacity{Status: availability.MarkerPartiallyAvailable, Percentage: pct}
	return r
}

func ptr(f float64) *float64 { return &f }

func TestProjectAvailability(t *testing.T) {
	past := timeOff(date(2025, 3, 1), date(2025, 3, 5), availability.ApprovalApproved)
	deleted := record(availability.TypeBlackout, date(2025, 3, 10), date(2025, 3, 14))
	deleted.Deleted = true
	cancelled := timeOff(date(2025, 3, 10), date(2025, 3, 14), availability.ApprovalCancelled)
	cancelled.Status = availability.StatusCancelled

	tests := []struct {
		name    string
		records []*availability.Record
		want    Availability
	}{
		{"no records", nil, Availability{consultant.Available, 100}},
		{"past time off ignored", []*availability.Record{past}, Availability{consultant.Available, 100}},
		{"deleted and cancelled ignored", []*availability.Record{deleted, cancelled}, Availability{consultant.Available, 100}},
		{"future time off not active yet", []*availability.Record{
			timeOff(date(2025, 4, 1), date(2025, 4, 5), availability.ApprovalApproved),
		}, Availability{consultant.Available, 100}},
		{"pending time off does not count", []*availability.Record{
			timeOff(date(2025, 3, 10), date(2025, 3, 14), availability.ApprovalPending),
		}, Availability{consultant.Available, 100}},
		{"approved time off", []*availability.Record{
			timeOff(date(2025, 3, 10), date(2025, 3, 14), availability.ApprovalApproved),
		}, Availability{consultant.OnLeave, 0}},
		{"auto approved time off", []*availability.Record{
			timeOff(date(2025, 3, 12), date(2025, 3, 12), availability.ApprovalAutoApproved),
		}, Availability{consultant.OnLeave, 0}},
		{"time off beats blackout", []*availability.Record{
			record(availability.TypeBlackout, date(2025, 3, 1), date(2025, 3, 31)),
			timeOff(date(2025, 3, 10), date(2025, 3, 14), availability.ApprovalApproved),
		}, Availability{consultant.OnLeave, 0}},
		{"blackout beats partial", []*availability.Record{
			partial(date(2025, 3, 1), date(2025, 3, 31), ptr(30)),
			record(availability.TypeBlackout, date(2025, 3, 12), date(2025, 3, 13)),
		}, Availability{consultant.Unavailable, 0}},
		{"partial takes minimum", []*availability.Record{
			partial(date(2025, 3, 1), date(2025, 3, 31), ptr(60)),
			partial(date(2025, 3, 10), date(2025, 3, 20), ptr(40)),
		}, Availability{consultant.PartiallyAvailable, 40}},
		{"partial without percentage", []*availability.Record{
			partial(date(2025, 3, 1), date(2025, 3, 31), nil),
		}, Availability{consultant.PartiallyAvailable, 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProjectAvailability(tt.records, now); got != tt.want {
				t.Fatalf("ProjectAvailability() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestProjectAssignments(t *testing.T) {
	mk := func(id string, s assignment.Status, pct float64, end time.Time) *assignment.Assignment {
		return &assignment.Assignment{
			ID:         id,
			Status:     s,
			Allocation: assignment.Allocation{Percentage: pct},
			Timeline:   assignment.Timeline{ProposedStart: date(2025, 1, 1), ProposedEnd: end},
		}
	}
	deleted := mk("5", assignment.StatusActive, 50, date(2025, 12, 31))
	deleted.Deleted = true
	list := []*assignment.Assignment{
		mk("1", assignment.StatusActive, 40, date(2025, 6, 30)),
		mk("2", assignment.StatusConfirmed, 30, date(2025, 3, 12)),
		mk("3", assignment.StatusActive, 20, date(2025, 3, 11)),
		mk("4", assignment.StatusCompleted, 100, date(2025, 2, 1)),
		deleted,
	}
	got := ProjectAssignments(list, now)
	if got.Total != 4 || got.Active != 2 || got.CurrentUtilization != 70 || len(got.Current) != 2 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestApplyReportsChange(t *testing.T) {
	c := &consultant.Consultant{}
	av := Availability{consultant.Available, 100}
	as := ProjectAssignments(nil, now)
	if !Apply(c, av, as, now) {
		t.Fatal("first projection must report a change")
	}
	if Apply(c, av, as, now) {
		t.Fatal("repeated projection must be idempotent")
	}
}
