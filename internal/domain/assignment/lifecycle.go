package assignment

import (
	"slices"
	"time"

	"github.com/Strob0t/StaffForge/internal/domain"
)

var transitions = map[Status][]Status{
	StatusDraft:           {StatusProposed, StatusPendingApproval, StatusConfirmed, StatusCancelled},
	StatusProposed:        {StatusPendingApproval, StatusConfirmed, StatusActive, StatusDraft, StatusCancelled},
	StatusPendingApproval: {StatusConfirmed, StatusDraft, StatusCancelled},
	StatusConfirmed:       {StatusActive, StatusCancelled, StatusTerminated, StatusDraft},
	StatusActive:          {StatusOnHold, StatusCompleted, StatusCancelled, StatusTerminated},
	StatusOnHold:          {StatusActive, StatusCancelled, StatusTerminated},
}

// CanTransition reports whether an assignment may move from one status to
// another.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// Transition moves the assignment to status to and appends the change to
// the history.
func (a *Assignment) Transition(to Status, actor, reason string, now time.Time) error {
	if !CanTransition(a.Status, to) {
		return &domain.IllegalTransitionError{Entity: "assignment", From: string(a.Status), To: string(to)}
	}
	a.setStatus(to, actor, reason, now)
	return nil
}

func (a *Assignment) setStatus(to Status, actor, reason string, now time.Time) {
	a.Status = to
	a.History = append(a.History, StatusChange{Status: to, ChangedAt: now, ChangedBy: actor, Reason: reason})
	a.touch(actor, now)
}

func (a *Assignment) touch(actor string, now time.Time) {
	a.UpdatedBy = actor
	a.UpdatedAt = now
}

// Start activates a confirmed or proposed assignment and records the actual
// start.
func (a *Assignment) Start(actor string, now time.Time) error {
	if a.Status != StatusConfirmed && a.Status != StatusProposed {
		return domain.Validationf("assignment %s cannot start from status %s", a.ID, a.Status)
	}
	if a.Approval.Required && !a.Approval.Status.IsApproved() {
		return domain.Validationf("assignment %s requires approval before it can start", a.ID)
	}
	if err := a.Transition(StatusActive, actor, "started", now); err != nil {
		return err
	}
	a.Timeline.ActualStart = &now
	return nil
}

// Complete finishes an active assignment and records the actual end.
func (a *Assignment) Complete(actor string, now time.Time) error {
	if a.Status != StatusActive {
		return domain.Validationf("assignment %s is not active", a.ID)
	}
	if err := a.Transition(StatusCompleted, actor, "completed", now); err != nil {
		return err
	}
	a.Timeline.ActualEnd = &now
	return nil
}

// Hold pauses an active assignment.
func (a *Assignment) Hold(actor, reason string, now time.Time) error {
	if a.Status != StatusActive {
		return domain.Validationf("assignment %s is not active", a.ID)
	}
	return a.Transition(StatusOnHold, actor, reason, now)
}

// Resume reactivates an assignment on hold.
func (a *Assignment) Resume(actor string, now time.Time) error {
	if a.Status != StatusOnHold {
		return domain.Validationf("assignment %s is not on hold", a.ID)
	}
	return a.Transition(StatusActive, actor, "resumed", now)
}

// Cancel cancels the assignment.
func (a *Assignment) Cancel(actor, reason string, now time.Time) error {
	return a.Transition(StatusCancelled, actor, reason, now)
}

// Terminate ends a confirmed, active or held assignment early.
func (a *Assignment) Terminate(actor, reason string, now time.Time) error {
	if reason == "" {
		return domain.NewValidation("invalid termination", domain.FieldError{Field: "reason", Message: "is required"})
	}
	if err := a.Transition(StatusTerminated, actor, reason, now); err != nil {
		return err
	}
	a.Timeline.ActualEnd = &now
	return nil
}

// DatesLocked reports whether dates may only change through Extend.
func (a *Assignment) DatesLocked() bool {
	switch a.Status {
	case StatusConfirmed, StatusActive, StatusOnHold, StatusCompleted, StatusTerminated:
		return true
	}
	return a.Approval.Status == ApprovalApproved
}

// Extend moves the end date forward and records the extension. It returns
// the start of the newly booked window.
func (a *Assignment) Extend(newEnd time.Time, reason, actor string, now time.Time) (time.Time, error) {
	if a.Status.IsTerminal() {
		return time.Time{}, domain.Validationf("assignment %s is %s and cannot be extended", a.ID, a.Status)
	}
	prev := a.Timeline.ProposedEnd
	if !newEnd.After(prev) {
		return time.Time{}, domain.NewValidation("invalid extension",
			domain.FieldError{Field: "end_date", Message: "must be after the current end date"})
	}
	a.Timeline.Extensions = append(a.Timeline.Extensions, Extension{
		PreviousEnd: prev,
		NewEnd:      newEnd,
		Reason:      reason,
		ExtendedBy:  actor,
		ExtendedAt:  now,
	})
	a.Timeline.ProposedEnd = newEnd
	a.touch(actor, now)
	return prev, nil
}
