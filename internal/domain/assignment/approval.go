package assignment

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/domain/period"
)

// ApprovalStatus is the approval state of an assignment.
type ApprovalStatus string

const (
	ApprovalPending      ApprovalStatus = "pending"
	ApprovalApproved     ApprovalStatus = "approved"
	ApprovalAutoApproved ApprovalStatus = "auto_approved"
	ApprovalRejected     ApprovalStatus = "rejected"
)

// IsApproved reports whether the status lets the assignment start.
func (s ApprovalStatus) IsApproved() bool {
	return s == ApprovalApproved || s == ApprovalAutoApproved
}

// Level is one approval step with the identities allowed to decide it.
type Level struct {
	Name      string   `json:"name" validate:"required"`
	Approvers []string `json:"approvers" validate:"required,min=1"`
}

// Decision is one entry of the approval history.
type Decision struct {
	Level     int       `json:"level"`
	Approver  string    `json:"approver"`
	Decision  string    `json:"decision"`
	Comments  string    `json:"comments,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

// Approval is the multi-level approval workflow state.
type Approval struct {
	Required        bool           `json:"required"`
	Status          ApprovalStatus `json:"status"`
	CurrentLevel    int            `json:"current_level"`
	Levels          []Level        `json:"levels"`
	History         []Decision     `json:"history"`
	FinalApprovedBy string         `json:"final_approved_by,omitempty"`
	FinalApprovedAt *time.Time     `json:"final_approved_at,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
}

// AutoApprovalRule decides when a new assignment skips approval.
type AutoApprovalRule struct {
	MaxDays       int
	RateCeiling   decimal.Decimal
	MaxPercentage float64
}

// Allows reports whether an assignment of the given length, rate and
// allocation is approved without a decision.
func (r AutoApprovalRule) Allows(start, end time.Time, rate decimal.Decimal, percentage float64) bool {
	return period.InclusiveDays(start, end) <= r.MaxDays &&
		rate.LessThanOrEqual(r.RateCeiling) &&
		percentage <= r.MaxPercentage
}

// RequireApproval puts the assignment into pending_approval with the given
// ordered levels.
func (a *Assignment) RequireApproval(levels []Level, actor string, now time.Time) error {
	if len(levels) == 0 {
		return domain.NewValidation("approval required",
			domain.FieldError{Field: "approval_levels", Message: "no approvers could be resolved"})
	}
	a.Approval = Approval{
		Required: true,
		Status:   ApprovalPending,
		Levels:   levels,
		History:  []Decision{},
	}
	return a.Transition(StatusPendingApproval, actor, "approval required", now)
}

// AutoApprove confirms the assignment without an approval decision.
func (a *Assignment) AutoApprove(actor string, now time.Time) error {
	a.Approval = Approval{
		Required:        false,
		Status:          ApprovalAutoApproved,
		Levels:          []Level{},
		History:         []Decision{},
		FinalApprovedBy: "system",
		FinalApprovedAt: &now,
	}
	return a.Transition(StatusConfirmed, actor, "auto-approved", now)
}

// Authorized reports whether actor may decide the current approval level.
func (a *Assignment) Authorized(actor string) bool {
	lvl := a.Approval.CurrentLevel
	if lvl < 0 || lvl >= len(a.Approval.Levels) {
		return false
	}
	return slices.Contains(a.Approval.Levels[lvl].Approvers, actor)
}

func (a *Assignment) requirePendingApproval(actor string) error {
	if !a.Approval.Required {
		return domain.Validationf("assignment %s has no pending approval", a.ID)
	}
	if a.Approval.Status != ApprovalPending {
		return &domain.ConflictError{Message: fmt.Sprintf("approval of assignment %s is already %s", a.ID, a.Approval.Status)}
	}
	if !a.Authorized(actor) {
		return domain.Forbiddenf("user %s is not an approver for level %d of assignment %s", actor, a.Approval.CurrentLevel, a.ID)
	}
	return nil
}

// Approve records an approval at the current level. A non-final approval
// advances to the next level; the final one confirms the assignment. The
// returned bool reports whether this was the final approval.
func (a *Assignment) Approve(actor, comments string, now time.Time) (bool, error) {
	if err := a.requirePendingApproval(actor); err != nil {
		return false, err
	}
	a.Approval.History = append(a.Approval.History, Decision{
		Level:     a.Approval.CurrentLevel,
		Approver:  actor,
		Decision:  string(ApprovalApproved),
		Comments:  comments,
		DecidedAt: now,
	})
	if a.Approval.CurrentLevel < len(a.Approval.Levels)-1 {
		a.Approval.CurrentLevel++
		a.touch(actor, now)
		return false, nil
	}
	if err := a.Transition(StatusConfirmed, actor, "approved", now); err != nil {
		return false, err
	}
	a.Approval.Status = ApprovalApproved
	a.Approval.FinalApprovedBy = actor
	a.Approval.FinalApprovedAt = &now
	return true, nil
}

// Reject rejects the assignment at the current level and sends it back to
// draft.
func (a *Assignment) Reject(actor, reason string, now time.Time) error {
	if reason == "" {
		return domain.NewValidation("invalid rejection", domain.FieldError{Field: "reason", Message: "is required"})
	}
	if err := a.requirePendingApproval(actor); err != nil {
		return err
	}
	if err := a.Transition(StatusDraft, actor, reason, now); err != nil {
		return err
	}
	a.Approval.History = append(a.Approval.History, Decision{
		Level:     a.Approval.CurrentLevel,
		Approver:  actor,
		Decision:  string(ApprovalRejected),
		Comments:  reason,
		DecidedAt: now,
	})
	a.Approval.Status = ApprovalRejected
	a.Approval.RejectionReason = reason
	return nil
}
