// Package tenant defines the staffing organisations that own consultants,
// availability records and assignments.
package tenant

import (
	"regexp"
	"time"

	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/domain/validate"
)

// Tenant is an isolated staffing organisation. Requests select it by ID or
// slug through the tenant header.
type Tenant struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Slug      string            `json:"slug"`
	Enabled   bool              `json:"enabled"`
	Settings  map[string]string `json:"settings,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// CreateRequest registers a tenant.
type CreateRequest struct {
	Name string `json:"name" validate:"required,max=200"`
	Slug string `json:"slug" validate:"required"`
}

// UpdateRequest renames or disables a tenant.
type UpdateRequest struct {
	Name    string `json:"name,omitempty" validate:"omitempty,max=200"`
	Enabled *bool  `json:"enabled,omitempty"`
}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}[a-z0-9]$`)

// Validate checks the request fields and the slug format.
func (r CreateRequest) Validate() error {
	if err := validate.Struct("invalid tenant", &r); err != nil {
		return err
	}
	if !slugPattern.MatchString(r.Slug) {
		return domain.NewValidation("invalid tenant",
			domain.FieldError{Field: "slug", Message: "must be 3-64 lowercase alphanumeric characters or hyphens"})
	}
	return nil
}

// Validate checks the update fields.
func (r UpdateRequest) Validate() error {
	return validate.Struct("invalid tenant update", &r)
}
