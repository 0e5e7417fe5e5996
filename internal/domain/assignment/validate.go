package assignment

import (
	"time"

	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/domain/period"
	"github.com/Strob0t/StaffForge/internal/domain/validate"
)

// ValidateCreate validates a CreateRequest.
func ValidateCreate(req *CreateRequest) error {
	if err := validate.Struct("invalid assignment", req); err != nil {
		return err
	}
	if err := period.New(req.Start, req.End).Validate(); err != nil {
		return err
	}
	return validateBilling(&req.Billing)
}

// ValidateUpdate validates an UpdateRequest against the current assignment.
func ValidateUpdate(current *Assignment, req *UpdateRequest) error {
	if err := validate.Struct("invalid assignment update", req); err != nil {
		return err
	}
	if current.Status.IsTerminal() {
		return domain.Validationf("assignment %s is %s and cannot be updated", current.ID, current.Status)
	}
	if (req.Start != nil || req.End != nil) && current.DatesLocked() {
		return domain.NewValidation("assignment dates are locked",
			domain.FieldError{Field: "end_date", Message: "cannot change once confirmed; use extend or cancel"})
	}
	start, end := current.Timeline.ProposedStart, current.Timeline.ProposedEnd
	if req.Start != nil {
		start = *req.Start
	}
	if req.End != nil {
		end = *req.End
	}
	if err := period.New(start, end).Validate(); err != nil {
		return err
	}
	if req.Billing != nil {
		return validateBilling(req.Billing)
	}
	return nil
}

func validateBilling(b *BillingInput) error {
	var fields []domain.FieldError
	if b.Rate.IsNegative() {
		fields = append(fields, domain.FieldError{Field: "billing.rate", Message: "must not be negative"})
	}
	if b.ClientRate.IsNegative() {
		fields = append(fields, domain.FieldError{Field: "billing.client_rate", Message: "must not be negative"})
	}
	if len(fields) > 0 {
		return domain.NewValidation("invalid billing", fields...)
	}
	return nil
}

// New builds a draft (or proposed) assignment from a validated request.
// weeklyHours is the consultant's weekly working time.
func New(req *CreateRequest, id, code, tenantID, actor string, weeklyHours float64, now time.Time) *Assignment {
	status := req.Status
	if status == "" {
		status = StatusDraft
	}
	a := &Assignment{
		ID:           id,
		Code:         code,
		TenantID:     tenantID,
		ConsultantID: req.ConsultantID,
		ClientID:     req.ClientID,
		ProjectID:    req.ProjectID,
		EngagementID: req.EngagementID,
		Role:         req.Role,
		Description:  req.Description,
		Timeline: Timeline{
			ProposedStart: req.Start,
			ProposedEnd:   req.End,
			Extensions:    []Extension{},
		},
		Allocation: Allocation{
			Percentage:   req.Percentage,
			HoursPerWeek: HoursPerWeek(req.Percentage, weeklyHours),
		},
		Billing:   NewBilling(req.Billing, req.Budget),
		Approval:  Approval{Levels: []Level{}, History: []Decision{}},
		Version:   1,
		CreatedBy: actor,
		CreatedAt: now,
	}
	a.setStatus(status, actor, "created", now)
	return a
}

// HoursPerWeek derives booked weekly hours from an allocation percentage.
func HoursPerWeek(percentage, weeklyHours float64) float64 {
	return percentage / 100 * weeklyHours
}

// Apply copies the non-nil fields of req onto a.
func (a *Assignment) Apply(req *UpdateRequest, weeklyHours float64, actor string, now time.Time) {
	if req.Role != nil {
		a.Role = *req.Role
	}
	if req.Description != nil {
		a.Description = *req.Description
	}
	if req.Start != nil {
		a.Timeline.ProposedStart = *req.Start
	}
	if req.End != nil {
		a.Timeline.ProposedEnd = *req.End
	}
	if req.Percentage != nil {
		a.Allocation.Percentage = *req.Percentage
		a.Allocation.HoursPerWeek = HoursPerWeek(*req.Percentage, weeklyHours)
	}
	if req.Billing != nil {
		a.ApplyBilling(*req.Billing)
	}
	a.touch(actor, now)
}
