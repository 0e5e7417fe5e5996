package consultant

import (
	"strings"
	"time"

	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/domain/validate"
)

// ValidateCreate validates a CreateRequest.
func ValidateCreate(req *CreateRequest) error {
	req.Profile.Email = strings.ToLower(strings.TrimSpace(req.Profile.Email))
	req.Profile.FirstName = strings.TrimSpace(req.Profile.FirstName)
	req.Profile.LastName = strings.TrimSpace(req.Profile.LastName)
	if err := validate.Struct("invalid consultant", req); err != nil {
		return err
	}
	return validateBilling(req.Billing)
}

// ValidateUpdate validates an UpdateRequest.
func ValidateUpdate(req *UpdateRequest) error {
	if err := validate.Struct("invalid consultant update", req); err != nil {
		return err
	}
	if req.Status != nil {
		if err := ValidateStatus(*req.Status); err != nil {
			return err
		}
	}
	if req.Billing != nil {
		return validateBilling(*req.Billing)
	}
	return nil
}

// ValidateStatus checks if a consultant status value is valid.
func ValidateStatus(s Status) error {
	switch s {
	case StatusPending, StatusActive, StatusInactive, StatusTerminated:
		return nil
	default:
		return domain.Validationf("invalid consultant status: %s", s)
	}
}

func validateBilling(b Billing) error {
	if b.DefaultRate.IsNegative() {
		return domain.NewValidation("invalid billing", domain.FieldError{Field: "billing.default_rate", Message: "must not be negative"})
	}
	return nil
}

// New builds a consultant from a validated request.
func New(req *CreateRequest, id, code, tenantID, actor string, now time.Time) *Consultant {
	c := &Consultant{
		ID:             id,
		Code:           code,
		TenantID:       tenantID,
		OrganizationID: req.OrganizationID,
		UserID:         req.UserID,
		Profile:        req.Profile,
		Professional:   req.Professional,
		Availability: Availability{
			Status:             Available,
			CapacityPercentage: 100,
			HoursPerWeek:       req.HoursPerWeek,
			WorkDaysPerWeek:    req.WorkDays,
			UtilizationTarget:  req.Utilization,
			LastUpdated:        now,
		},
		Assignments:    Assignments{Current: []AssignmentRef{}, LastUpdated: now},
		Billing:        req.Billing,
		Skills:         orEmpty(req.Skills),
		Certifications: orEmpty(req.Certifications),
		Education:      orEmpty(req.Education),
		Performance: Performance{
			Reviews:      []Review{},
			Feedback:     []Feedback{},
			Achievements: []Achievement{},
		},
		Compliance: req.Compliance,
		Status:     StatusActive,
		Version:    1,
		CreatedBy:  actor,
		UpdatedBy:  actor,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return c
}

// Apply copies the non-nil fields of req onto c.
func (c *Consultant) Apply(req *UpdateRequest) {
	if req.Profile != nil {
		c.Profile = *req.Profile
	}
	if req.Professional != nil {
		c.Professional = *req.Professional
	}
	if req.HoursPerWeek != nil {
		c.Availability.HoursPerWeek = *req.HoursPerWeek
	}
	if req.WorkDays != nil {
		c.Availability.WorkDaysPerWeek = *req.WorkDays
	}
	if req.Utilization != nil {
		c.Availability.UtilizationTarget = *req.Utilization
	}
	if req.Billing != nil {
		c.Billing = *req.Billing
	}
	if req.Compliance != nil {
		c.Compliance = *req.Compliance
	}
	if req.Status != nil {
		c.Status = *req.Status
	}
}

// UpsertSkill replaces the skill with the same name (case-insensitive) or
// appends it, keeping list order.
func (c *Consultant) UpsertSkill(s Skill) {
	for i := range c.Skills {
		if strings.EqualFold(c.Skills[i].Name, s.Name) {
			c.Skills[i] = s
			return
		}
	}
	c.Skills = append(c.Skills, s)
}

// RemoveSkill drops the named skill. It reports whether a skill was removed.
func (c *Consultant) RemoveSkill(name string) bool {
	for i := range c.Skills {
		if strings.EqualFold(c.Skills[i].Name, name) {
			c.Skills = append(c.Skills[:i], c.Skills[i+1:]...)
			return true
		}
	}
	return false
}

// HasSkill reports whether the consultant lists the named skill.
func (c *Consultant) HasSkill(name string) bool {
	for i := range c.Skills {
		if strings.EqualFold(c.Skills[i].Name, name) {
			return true
		}
	}
	return false
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
