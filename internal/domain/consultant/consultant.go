// Package consultant defines the consultant aggregate together with its
// denormalized availability and assignment snapshots.
package consultant

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a consultant.
type Status string

const (
	StatusPending    Status = "pending"
	StatusActive     Status = "active"
	StatusInactive   Status = "inactive"
	StatusTerminated Status = "terminated"
)

// AvailabilityStatus is the projected availability of a consultant.
type AvailabilityStatus string

const (
	Available          AvailabilityStatus = "available"
	PartiallyAvailable AvailabilityStatus = "partially_available"
	Unavailable        AvailabilityStatus = "unavailable"
	OnLeave            AvailabilityStatus = "on_leave"
)

// Consultant is a bookable professional belonging to one tenant.
type Consultant struct {
	ID             string `json:"id"`
	Code           string `json:"code"`
	TenantID       string `json:"tenant_id"`
	OrganizationID string `json:"organization_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`

	Profile        Profile         `json:"profile"`
	Professional   Professional    `json:"professional"`
	Availability   Availability    `json:"availability"`
	Assignments    Assignments     `json:"assignments"`
	Billing        Billing         `json:"billing"`
	Skills         []Skill         `json:"skills"`
	Certifications []Certification `json:"certifications"`
	Education      []Education     `json:"education"`
	Performance    Performance     `json:"performance"`
	Compliance     Compliance      `json:"compliance"`

	Status    Status     `json:"status"`
	Deleted   bool       `json:"deleted,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	Version   int        `json:"version"`
	CreatedBy string     `json:"created_by,omitempty"`
	UpdatedBy string     `json:"updated_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Profile holds contact and personal details.
type Profile struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone,omitempty" validate:"omitempty,max=40"`
	Title     string `json:"title,omitempty" validate:"omitempty,max=200"`
	Bio       string `json:"bio,omitempty" validate:"omitempty,max=5000"`
	Location  string `json:"location,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
}

// FullName joins first and last name.
func (p Profile) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Professional holds level, employment and reporting line.
type Professional struct {
	Level          string     `json:"level,omitempty" validate:"omitempty,oneof=junior mid senior lead principal partner"`
	EmploymentType string     `json:"employment_type,omitempty" validate:"omitempty,oneof=full_time part_time contractor freelance"`
	ManagerID      string     `json:"manager_id,omitempty"`
	Department     string     `json:"department,omitempty"`
	HireDate       *time.Time `json:"hire_date,omitempty"`
}

// Availability is the denormalized availability snapshot plus the working
// time settings the capacity calculation is based on.
type Availability struct {
	Status             AvailabilityStatus `json:"status"`
	CapacityPercentage float64            `json:"capacity_percentage"`
	HoursPerWeek       float64            `json:"hours_per_week,omitempty" validate:"gte=0,lte=168"`
	WorkDaysPerWeek    int                `json:"work_days_per_week,omitempty" validate:"gte=0,lte=7"`
	UtilizationTarget  float64            `json:"utilization_target,omitempty" validate:"gte=0,lte=100"`
	LastUpdated        time.Time          `json:"last_updated"`
}

// HoursPerDay derives the base hours per working day, falling back to the
// given default when the consultant has no working time configured.
func (a Availability) HoursPerDay(fallback float64) float64 {
	if a.HoursPerWeek > 0 && a.WorkDaysPerWeek > 0 {
		return a.HoursPerWeek / float64(a.WorkDaysPerWeek)
	}
	return fallback
}

// Assignments is the denormalized assignment snapshot.
type Assignments struct {
	Total              int             `json:"total"`
	Active             int             `json:"active"`
	CurrentUtilization float64         `json:"current_utilization"`
	Current            []AssignmentRef `json:"current"`
	LastUpdated        time.Time       `json:"last_updated"`
}

// AssignmentRef summarizes a current assignment on the consultant record.
type AssignmentRef struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	ClientID   string    `json:"client_id"`
	ProjectID  string    `json:"project_id,omitempty"`
	Role       string    `json:"role"`
	Status     string    `json:"status"`
	Percentage float64   `json:"percentage"`
	Start      time.Time `json:"start_date"`
	End        time.Time `json:"end_date"`
}

// Billing holds the default commercial terms of a consultant.
type Billing struct {
	DefaultRate decimal.Decimal `json:"default_rate"`
	Currency    string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	RateType    string          `json:"rate_type,omitempty" validate:"omitempty,oneof=hourly daily fixed"`
}

// Skill is one entry of the ordered skill list.
type Skill struct {
	Name        string     `json:"name" validate:"required,max=100"`
	Category    string     `json:"category,omitempty"`
	Proficiency int        `json:"proficiency" validate:"min=1,max=5"`
	Years       float64    `json:"years,omitempty" validate:"gte=0"`
	LastUsed    *time.Time `json:"last_used,omitempty"`
}

// Certification is a professional certification.
type Certification struct {
	Name      string     `json:"name" validate:"required"`
	Issuer    string     `json:"issuer,omitempty"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Reference string     `json:"reference,omitempty"`
}

// Education is a completed or ongoing degree.
type Education struct {
	Institution string `json:"institution" validate:"required"`
	Degree      string `json:"degree,omitempty"`
	Field       string `json:"field,omitempty"`
	Year        int    `json:"year,omitempty"`
}

// Performance groups reviews, feedback and achievements.
type Performance struct {
	Reviews       []Review      `json:"reviews"`
	Feedback      []Feedback    `json:"feedback"`
	Achievements  []Achievement `json:"achievements"`
	OverallRating float64       `json:"overall_rating"`
}

// Review is a periodic performance review.
type Review struct {
	Period     string    `json:"period" validate:"required"`
	Rating     float64   `json:"rating" validate:"gte=1,lte=5"`
	ReviewerID string    `json:"reviewer_id"`
	Comments   string    `json:"comments,omitempty"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

// Feedback is a free-form note from a client or colleague.
type Feedback struct {
	From      string    `json:"from"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Achievement records a notable accomplishment.
type Achievement struct {
	Title      string    `json:"title"`
	AchievedAt time.Time `json:"achieved_at"`
}

// Compliance holds the onboarding and legal flags.
type Compliance struct {
	BackgroundCheck   bool       `json:"background_check"`
	NDASigned         bool       `json:"nda_signed"`
	WorkAuthorization bool       `json:"work_authorization"`
	LastVerifiedAt    *time.Time `json:"last_verified_at,omitempty"`
}

// RecomputeRating sets OverallRating to the mean of all review ratings.
func (p *Performance) RecomputeRating() {
	if len(p.Reviews) == 0 {
		p.OverallRating = 0
		return
	}
	var sum float64
	for _, r := range p.Reviews {
		sum += r.Rating
	}
	p.OverallRating = sum / float64(len(p.Reviews))
}

// CreateRequest holds the fields required to create a consultant.
type CreateRequest struct {
	OrganizationID string          `json:"organization_id,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	Profile        Profile         `json:"profile"`
	Professional   Professional    `json:"professional"`
	HoursPerWeek   float64         `json:"hours_per_week,omitempty" validate:"gte=0,lte=168"`
	WorkDays       int             `json:"work_days_per_week,omitempty" validate:"gte=0,lte=7"`
	Utilization    float64         `json:"utilization_target,omitempty" validate:"gte=0,lte=100"`
	Billing        Billing         `json:"billing"`
	Skills         []Skill         `json:"skills,omitempty" validate:"dive"`
	Certifications []Certification `json:"certifications,omitempty" validate:"dive"`
	Education      []Education     `json:"education,omitempty" validate:"dive"`
	Compliance     Compliance      `json:"compliance"`
}

// UpdateRequest holds the fields that can be changed on a consultant. Nil
// fields are left untouched.
type UpdateRequest struct {
	Profile      *Profile      `json:"profile,omitempty"`
	Professional *Professional `json:"professional,omitempty"`
	HoursPerWeek *float64      `json:"hours_per_week,omitempty" validate:"omitempty,gte=0,lte=168"`
	WorkDays     *int          `json:"work_days_per_week,omitempty" validate:"omitempty,gte=0,lte=7"`
	Utilization  *float64      `json:"utilization_target,omitempty" validate:"omitempty,gte=0,lte=100"`
	Billing      *Billing      `json:"billing,omitempty"`
	Compliance   *Compliance   `json:"compliance,omitempty"`
	Status       *Status       `json:"status,omitempty"`
}

// Filter narrows consultant list queries.
type Filter struct {
	Status             Status             `json:"status,omitempty"`
	Level              string             `json:"level,omitempty"`
	AvailabilityStatus AvailabilityStatus `json:"availability_status,omitempty"`
	Skill              string             `json:"skill,omitempty"`
	Search             string             `json:"search,omitempty"`
	IncludeDeleted     bool               `json:"include_deleted,omitempty"`
}

// SortColumns lists the accepted sort keys for consultant lists.
var SortColumns = []string{"created_at", "updated_at", "code", "last_name", "capacity"}

// Matches reports whether c satisfies the filter. Search matches name,
// email, title and code case-insensitively.
func (f Filter) Matches(c *Consultant) bool {
	if c.Deleted && !f.IncludeDeleted {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Level != "" && c.Professional.Level != f.Level {
		return false
	}
	if f.AvailabilityStatus != "" && c.Availability.Status != f.AvailabilityStatus {
		return false
	}
	if f.Skill != "" && !c.HasSkill(f.Skill) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		hay := strings.ToLower(strings.Join([]string{
			c.Profile.FirstName, c.Profile.LastName, c.Profile.Email, c.Profile.Title, c.Code,
		}, " "))
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}
