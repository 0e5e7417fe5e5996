package allocation

import (
	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/domain/assignment"
	"github.com/Strob0t/StaffForge/internal/domain/availability"
	"github.com/Strob0t/StaffForge/internal/domain/period"
)

// Rules bound how much a consultant may be booked.
type Rules struct {
	MaxAllocation       float64
	WarningThreshold    float64
	MaxConcurrent       int
	AllowOverallocation bool
}

// AvailabilityConflicts returns every live record of the consultant that
// overlaps p. excludeID skips the record being updated. Record type is not
// a filter: any overlap collides.
func AvailabilityConflicts(records []*availability.Record, consultantID string, p period.Period, excludeID string) []domain.Conflict {
	var out []domain.Conflict
	for _, r := range records {
		if r.ID == excludeID || r.ConsultantID != consultantID || !r.Live() {
			continue
		}
		if period.Overlaps(r.Period, p) {
			out = append(out, domain.Conflict{
				ID:    r.ID,
				Code:  r.Code,
				Type:  string(r.Type),
				Start: r.Period.Start,
				End:   r.Period.End,
			})
		}
	}
	return out
}

// CheckAvailability returns a ConflictError when p collides with a live
// record of the consultant.
func CheckAvailability(records []*availability.Record, consultantID string, p period.Period, excludeID string) error {
	conflicts := AvailabilityConflicts(records, consultantID, p, excludeID)
	if len(conflicts) == 0 {
		return nil
	}
	return &domain.ConflictError{Message: "availability overlaps existing records", Conflicts: conflicts}
}

// Check is the outcome of an allocation check.
type Check struct {
	Existing    float64           `json:"existing_allocation"`
	Requested   float64           `json:"requested_allocation"`
	Total       float64           `json:"total_allocation"`
	Max         float64           `json:"max_allocation"`
	Concurrent  int               `json:"concurrent_assignments"`
	Overlapping []domain.Conflict `json:"overlapping"`
	Warning     bool              `json:"warning"`
}

// CheckAssignmentCapacity sums the allocation of allocating assignments of
// the consultant overlapping p and compares the result with the rules. The
// returned Check is filled in even when err is non-nil.
func CheckAssignmentCapacity(existing []*assignment.Assignment, consultantID string, p period.Period, requested float64, excludeID string, rules Rules) (Check, error) {
	c := Check{Requested: requested, Max: rules.MaxAllocation}
	for _, a := range existing {
		if a.ID == excludeID || a.ConsultantID != consultantID || !a.Allocating() {
			continue
		}
		if !period.Overlaps(a.Period(), p) {
			continue
		}
		c.Existing += a.Allocation.Percentage
		c.Overlapping = append(c.Overlapping, domain.Conflict{
			ID:         a.ID,
			Code:       a.Code,
			Type:       string(a.Status),
			Start:      a.Timeline.ProposedStart,
			End:        a.Timeline.ProposedEnd,
			Percentage: a.Allocation.Percentage,
		})
	}
	c.Concurrent = len(c.Overlapping)
	c.Total = c.Existing + requested
	c.Warning = rules.WarningThreshold > 0 && c.Total > rules.WarningThreshold

	if c.Total > rules.MaxAllocation && !rules.AllowOverallocation {
		return c, domain.Validationf("allocation of %.0f%% exceeds the maximum of %.0f%%", c.Total, rules.MaxAllocation).
			WithDetails(map[string]any{
				"existing_allocation":  c.Existing,
				"requested_allocation": requested,
				"total_allocation":     c.Total,
				"max_allocation":       rules.MaxAllocation,
				"conflicts":            c.Overlapping,
			})
	}
	if rules.MaxConcurrent > 0 && c.Concurrent+1 > rules.MaxConcurrent {
		return c, domain.Validationf("consultant would have %d concurrent assignments, maximum is %d", c.Concurrent+1, rules.MaxConcurrent).
			WithDetails(map[string]any{
				"concurrent_assignments": c.Concurrent + 1,
				"max_concurrent":         rules.MaxConcurrent,
			})
	}
	return c, nil
}

// FindDuplicate returns an open assignment of the consultant on the same
// project or engagement, regardless of dates.
func FindDuplicate(existing []*assignment.Assignment, consultantID, projectID, engagementID, excludeID string) *assignment.Assignment {
	for _, a := range existing {
		if a.ID == excludeID || !a.Open() {
			continue
		}
		if a.SameTarget(consultantID, projectID, engagementID) {
			return a
		}
	}
	return nil
}

// DuplicateError builds the conflict returned for a duplicate booking.
func DuplicateError(dup *assignment.Assignment) error {
	return &domain.ConflictError{
		Message: "consultant is already assigned to this project or engagement",
		Conflicts: []domain.Conflict{{
			ID:         dup.ID,
			Code:       dup.Code,
			Type:       string(dup.Status),
			Start:      dup.Timeline.ProposedStart,
			End:        dup.Timeline.ProposedEnd,
			Percentage: dup.Allocation.Percentage,
		}},
	}
}
