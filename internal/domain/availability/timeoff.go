package availability

import (
	"fmt"
	"slices"
	"time"

	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/domain/period"
)

// Policy holds the time-off rules of a deployment.
type Policy struct {
	AutoApproveDays   int
	AdvanceNoticeDays int
	MaxDaysPerRequest int
	SeniorRoles       []string
}

var timeOffTransitions = map[ApprovalStatus][]ApprovalStatus{
	ApprovalPending:      {ApprovalApproved, ApprovalAutoApproved, ApprovalRejected, ApprovalCancelled},
	ApprovalApproved:     {ApprovalCancelled},
	ApprovalAutoApproved: {ApprovalCancelled},
}

// CanTransition reports whether a time-off request may move from one
// approval status to another.
func CanTransition(from, to ApprovalStatus) bool {
	return slices.Contains(timeOffTransitions[from], to)
}

// Transition returns an IllegalTransitionError when from -> to is not allowed.
func Transition(from, to ApprovalStatus) error {
	if !CanTransition(from, to) {
		return &domain.IllegalTransitionError{Entity: "time_off", From: string(from), To: string(to)}
	}
	return nil
}

// DaysRequested is the inclusive calendar day count of a request.
func DaysRequested(start, end time.Time) int {
	return period.InclusiveDays(start, end)
}

// ValidateTimeOffRequest checks a request against the policy as of now.
func ValidateTimeOffRequest(p Policy, start, end, now time.Time) error {
	if end.Before(start) {
		return domain.NewValidation("invalid time-off request",
			domain.FieldError{Field: "end_date", Message: "must not be before start_date"})
	}
	today := period.Truncate(now)
	if period.Truncate(start).Before(today) {
		return domain.NewValidation("invalid time-off request",
			domain.FieldError{Field: "start_date", Message: "must not be in the past"})
	}
	days := DaysRequested(start, end)
	if p.MaxDaysPerRequest > 0 && days > p.MaxDaysPerRequest {
		return domain.Validationf("time-off request of %d days exceeds the maximum of %d", days, p.MaxDaysPerRequest).
			WithDetails(map[string]any{"days_requested": days, "max_days": p.MaxDaysPerRequest})
	}
	if days > p.AutoApproveDays {
		notice := int(period.Truncate(start).Sub(today).Hours() / 24)
		if notice < p.AdvanceNoticeDays {
			return domain.Validationf("time-off of %d days requires %d days notice, got %d", days, p.AdvanceNoticeDays, notice).
				WithDetails(map[string]any{"days_requested": days, "notice_days": notice, "required_notice_days": p.AdvanceNoticeDays})
		}
	}
	return nil
}

// ShouldAutoApprove reports whether a request of the given length by an actor
// holding roles is approved without a decision.
func ShouldAutoApprove(p Policy, days int, roles []string) bool {
	if days <= p.AutoApproveDays {
		return true
	}
	for _, r := range roles {
		if slices.Contains(p.SeniorRoles, r) {
			return true
		}
	}
	return false
}

// requireUndecided rejects a second decision on the same request.
func (r *Record) requireUndecided() error {
	if r.TimeOff.ApprovalStatus == ApprovalPending {
		return nil
	}
	return &domain.ConflictError{Message: fmt.Sprintf("time-off request %s is already %s", r.ID, r.TimeOff.ApprovalStatus)}
}

// Approve moves a pending request to approved.
func (r *Record) Approve(actor string, now time.Time) error {
	if err := r.requireTimeOff(); err != nil {
		return err
	}
	if err := r.requireUndecided(); err != nil {
		return err
	}
	if err := Transition(r.TimeOff.ApprovalStatus, ApprovalApproved); err != nil {
		return err
	}
	r.TimeOff.ApprovalStatus = ApprovalApproved
	r.TimeOff.ApprovedBy = actor
	r.TimeOff.ApprovedAt = &now
	r.touch(actor, now)
	return nil
}

// AutoApprove marks a new request as approved by policy.
func (r *Record) AutoApprove(now time.Time) error {
	if err := r.requireTimeOff(); err != nil {
		return err
	}
	if err := Transition(r.TimeOff.ApprovalStatus, ApprovalAutoApproved); err != nil {
		return err
	}
	r.TimeOff.ApprovalStatus = ApprovalAutoApproved
	r.TimeOff.ApprovedBy = "system"
	r.TimeOff.ApprovedAt = &now
	return nil
}

// Reject moves a pending request to rejected.
func (r *Record) Reject(actor, reason string, now time.Time) error {
	if err := r.requireTimeOff(); err != nil {
		return err
	}
	if reason == "" {
		return domain.NewValidation("invalid rejection", domain.FieldError{Field: "reason", Message: "is required"})
	}
	if err := r.requireUndecided(); err != nil {
		return err
	}
	if err := Transition(r.TimeOff.ApprovalStatus, ApprovalRejected); err != nil {
		return err
	}
	r.TimeOff.ApprovalStatus = ApprovalRejected
	r.TimeOff.RejectionReason = reason
	r.touch(actor, now)
	return nil
}

// Cancel withdraws a pending or approved request and cancels the record.
func (r *Record) Cancel(actor, reason string, now time.Time) error {
	if err := r.requireTimeOff(); err != nil {
		return err
	}
	if err := Transition(r.TimeOff.ApprovalStatus, ApprovalCancelled); err != nil {
		return err
	}
	r.TimeOff.ApprovalStatus = ApprovalCancelled
	r.TimeOff.CancelledBy = actor
	r.TimeOff.CancelledAt = &now
	r.TimeOff.CancelReason = reason
	r.Status = StatusCancelled
	r.touch(actor, now)
	return nil
}

func (r *Record) requireTimeOff() error {
	if !r.IsTimeOff() {
		return domain.Validationf("availability %s is not a time-off request", r.ID)
	}
	return nil
}

func (r *Record) touch(actor string, now time.Time) {
	r.UpdatedBy = actor
	r.UpdatedAt = now
}
