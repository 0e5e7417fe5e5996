// Package allocation computes consultant capacity over a date window and
// detects overlapping availability records and over-allocated assignments.
package allocation

import (
	"math"
	"time"

	"github.com/Strob0t/StaffForge/internal/domain/availability"
	"github.com/Strob0t/StaffForge/internal/domain/consultant"
	"github.com/Strob0t/StaffForge/internal/domain/period"
)

// Defaults are the deployment-wide fallbacks for consultants without their
// own working time settings.
type Defaults struct {
	HoursPerDay       float64
	UtilizationTarget float64
}

// Breakdown is the capacity of a consultant over a window.
type Breakdown struct {
	ConsultantID        string    `json:"consultant_id"`
	Start               time.Time `json:"start_date"`
	End                 time.Time `json:"end_date"`
	WorkingDays         int       `json:"working_days"`
	HoursPerDay         float64   `json:"hours_per_day"`
	TotalCapacityHours  float64   `json:"total_capacity_hours"`
	TimeOffHours        float64   `json:"time_off_hours"`
	BlackoutHours       float64   `json:"blackout_hours"`
	TrainingHours       float64   `json:"training_hours"`
	AvailableHours      float64   `json:"available_hours"`
	CapacityPercentage  float64   `json:"capacity_percentage"`
	UtilizationTarget   float64   `json:"utilization_target"`
	BillableTargetHours float64   `json:"billable_target_hours"`
}

// Calculate derives the capacity breakdown of c over [start, end] from its
// availability records. Pending time off is deducted unless excludeTimeOff
// is set; approved time off always is.
func Calculate(c *consultant.Consultant, records []*availability.Record, start, end time.Time, excludeTimeOff bool, d Defaults) Breakdown {
	hpd := c.Availability.HoursPerDay(d.HoursPerDay)
	target := c.Availability.UtilizationTarget
	if target <= 0 {
		target = d.UtilizationTarget
	}
	window := period.New(start, end)
	b := Breakdown{
		ConsultantID:      c.ID,
		Start:             start,
		End:               end,
		WorkingDays:       period.WorkingDays(start, end),
		HoursPerDay:       hpd,
		UtilizationTarget: target,
	}
	b.TotalCapacityHours = float64(b.WorkingDays) * hpd

	for _, r := range records {
		if r.ConsultantID != c.ID || !r.Live() {
			continue
		}
		overlap, ok := period.Intersect(r.Period, window)
		if !ok {
			continue
		}
		hours := float64(period.InclusiveDays(overlap.Start, overlap.End)) * hpd
		switch r.Type {
		case availability.TypeTimeOff:
			if r.TimeOff == nil {
				continue
			}
			switch {
			case r.TimeOff.ApprovalStatus.IsApproved():
				b.TimeOffHours += hours
			case r.TimeOff.ApprovalStatus == availability.ApprovalPending && !excludeTimeOff:
				b.TimeOffHours += hours
			}
		case availability.TypeBlackout:
			b.BlackoutHours += hours
		case availability.TypeTraining, availability.TypeInternal:
			b.TrainingHours += hours
		}
	}

	b.AvailableHours = math.Max(0, b.TotalCapacityHours-b.TimeOffHours-b.BlackoutHours-b.TrainingHours)
	if b.TotalCapacityHours > 0 {
		b.CapacityPercentage = math.Round(b.AvailableHours / b.TotalCapacityHours * 100)
	}
	b.BillableTargetHours = b.AvailableHours * target / 100
	return b
}
