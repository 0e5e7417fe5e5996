// Package summary derives the denormalized availability and assignment
// snapshots stored on a consultant from its records.
package summary

import (
	"math"
	"time"

	"github.com/Strob0t/StaffForge/internal/domain/assignment"
	"github.com/Strob0t/StaffForge/internal/domain/availability"
	"github.com/Strob0t/StaffForge/internal/domain/consultant"
	"github.com/Strob0t/StaffForge/internal/domain/period"
)

// DefaultPartialPercentage is used for partially available records that do
// not state a percentage.
const DefaultPartialPercentage = 50

// Availability is the projected availability status and capacity.
type Availability struct {
	Status             consultant.AvailabilityStatus `json:"status"`
	CapacityPercentage float64                       `json:"capacity_percentage"`
}

// activeOn reports whether the record covers the calendar day of now.
func activeOn(p period.Period, now time.Time) bool {
	today := period.Truncate(now)
	return !period.Truncate(p.Start).After(today) && !period.Truncate(p.End).Before(today)
}

// ProjectAvailability derives the availability snapshot from the live
// records that cover now or lie in the future. Approved time off wins over
// blackouts, which win over partial availability.
func ProjectAvailability(records []*availability.Record, now time.Time) Availability {
	today := period.Truncate(now)
	var (
		blackout   bool
		partial    bool
		partialPct = math.Inf(1)
	)
	for _, r := range records {
		if !r.Live() || period.Truncate(r.Period.End).Before(today) {
			continue
		}
		if !activeOn(r.Period, now) {
			continue
		}
		if r.ApprovedTimeOff() {
			return Availability{Status: consultant.OnLeave, CapacityPercentage: 0}
		}
		if r.Type == availability.TypeBlackout {
			blackout = true
			continue
		}
		if r.Capacity.Status == availability.MarkerPartiallyAvailable {
			partial = true
			partialPct = math.Min(partialPct, availability.CapacityOf(r, DefaultPartialPercentage))
		}
	}
	switch {
	case blackout:
		return Availability{Status: consultant.Unavailable, CapacityPercentage: 0}
	case partial:
		return Availability{Status: consultant.PartiallyAvailable, CapacityPercentage: partialPct}
	default:
		return Availability{Status: consultant.Available, CapacityPercentage: 100}
	}
}

// ProjectAssignments derives the assignment snapshot. Current assignments
// are active or confirmed ones whose end date has not passed; the total
// counts every non-deleted assignment.
func ProjectAssignments(assignments []*assignment.Assignment, now time.Time) consultant.Assignments {
	today := period.Truncate(now)
	out := consultant.Assignments{Current: []consultant.AssignmentRef{}, LastUpdated: now}
	for _, a := range assignments {
		if a.Deleted {
			continue
		}
		out.Total++
		if !a.Status.Allocates() || period.Truncate(a.Timeline.ProposedEnd).Before(today) {
			continue
		}
		out.Active++
		out.CurrentUtilization += a.Allocation.Percentage
		out.Current = append(out.Current, consultant.AssignmentRef{
			ID:         a.ID,
			Code:       a.Code,
			ClientID:   a.ClientID,
			ProjectID:  a.ProjectID,
			Role:       a.Role,
			Status:     string(a.Status),
			Percentage: a.Allocation.Percentage,
			Start:      a.Timeline.ProposedStart,
			End:        a.Timeline.ProposedEnd,
		})
	}
	return out
}

// Apply writes both snapshots onto c. It reports whether anything changed.
func Apply(c *consultant.Consultant, av Availability, as consultant.Assignments, now time.Time) bool {
	changed := c.Availability.Status != av.Status ||
		c.Availability.CapacityPercentage != av.CapacityPercentage ||
		c.Assignments.Total != as.Total ||
		c.Assignments.Active != as.Active ||
		c.Assignments.CurrentUtilization != as.CurrentUtilization ||
		len(c.Assignments.Current) != len(as.Current)
	c.Availability.Status = av.Status
	c.Availability.CapacityPercentage = av.CapacityPercentage
	c.Availability.LastUpdated = now
	c.Assignments = as
	return changed
}
