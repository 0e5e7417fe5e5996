// Package assignment defines consultant assignments, their lifecycle state
// machine, billing and multi-level approval.
package assignment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Strob0t/StaffForge/internal/domain/period"
)

// Status is the lifecycle state of an assignment.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusProposed        Status = "proposed"
	StatusPendingApproval Status = "pending_approval"
	StatusConfirmed       Status = "confirmed"
	StatusActive          Status = "active"
	StatusOnHold          Status = "on_hold"
	StatusCompleted       Status = "completed"
	StatusCancelled       Status = "cancelled"
	StatusTerminated      Status = "terminated"
)

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusTerminated
}

// Allocates reports whether an assignment in this status consumes capacity.
func (s Status) Allocates() bool {
	return s == StatusActive || s == StatusConfirmed
}

// RateType is how a rate is charged.
type RateType string

const (
	RateHourly RateType = "hourly"
	RateDaily  RateType = "daily"
	RateFixed  RateType = "fixed"
)

// Assignment books a consultant onto a client project or engagement.
type Assignment struct {
	ID           string `json:"id"`
	Code         string `json:"code"`
	TenantID     string `json:"tenant_id"`
	ConsultantID string `json:"consultant_id"`
	ClientID     string `json:"client_id"`
	ProjectID    string `json:"project_id,omitempty"`
	EngagementID string `json:"engagement_id,omitempty"`
	Role         string `json:"role"`
	Description  string `json:"description,omitempty"`

	Timeline     Timeline       `json:"timeline"`
	Allocation   Allocation     `json:"allocation"`
	Billing      Billing        `json:"billing"`
	TimeTracking TimeTracking   `json:"time_tracking"`
	Approval     Approval       `json:"approval"`
	Status       Status         `json:"status"`
	History      []StatusChange `json:"status_history"`

	Deleted   bool       `json:"deleted,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy string     `json:"deleted_by,omitempty"`
	Version   int        `json:"version"`
	CreatedBy string     `json:"created_by,omitempty"`
	UpdatedBy string     `json:"updated_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Timeline holds proposed and actual dates plus extension history.
type Timeline struct {
	ProposedStart time.Time   `json:"proposed_start"`
	ProposedEnd   time.Time   `json:"proposed_end"`
	ActualStart   *time.Time  `json:"actual_start,omitempty"`
	ActualEnd     *time.Time  `json:"actual_end,omitempty"`
	Extensions    []Extension `json:"extensions"`
}

// Extension records one prolongation of the end date.
type Extension struct {
	PreviousEnd time.Time `json:"previous_end"`
	NewEnd      time.Time `json:"new_end"`
	Reason      string    `json:"reason,omitempty"`
	ExtendedBy  string    `json:"extended_by"`
	ExtendedAt  time.Time `json:"extended_at"`
}

// Allocation is the share of the consultant's time the assignment books.
type Allocation struct {
	Percentage   float64 `json:"percentage"`
	HoursPerWeek float64 `json:"hours_per_week"`
}

// Billing holds commercial terms.
type Billing struct {
	Rate       decimal.Decimal `json:"rate"`
	RateType   RateType        `json:"rate_type"`
	ClientRate decimal.Decimal `json:"client_rate"`
	Margin     decimal.Decimal `json:"margin_percentage"`
	Currency   string          `json:"currency,omitempty"`
	Billable   bool            `json:"billable"`
	Budget     *Budget         `json:"budget,omitempty"`
}

// Budget tracks spend against an optional cap.
type Budget struct {
	Total           decimal.Decimal `json:"total"`
	Used            decimal.Decimal `json:"used"`
	Remaining       decimal.Decimal `json:"remaining"`
	AlertThresholds []int           `json:"alert_thresholds"`
	Alerted         []int           `json:"alerted"`
}

// TimeTracking accumulates logged hours.
type TimeTracking struct {
	HoursLogged      float64    `json:"hours_logged"`
	BillableHours    float64    `json:"billable_hours"`
	NonBillableHours float64    `json:"non_billable_hours"`
	LastLoggedAt     *time.Time `json:"last_logged_at,omitempty"`
}

// StatusChange is one entry of the append-only status history.
type StatusChange struct {
	Status    Status    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
	ChangedBy string    `json:"changed_by"`
	Reason    string    `json:"reason,omitempty"`
}

// Period returns the booked date range.
func (a *Assignment) Period() period.Period {
	return period.New(a.Timeline.ProposedStart, a.Timeline.ProposedEnd)
}

// Allocating reports whether the assignment consumes capacity in overlap
// and allocation checks.
func (a *Assignment) Allocating() bool {
	return !a.Deleted && a.Status.Allocates()
}

// Open reports whether the assignment still blocks a duplicate booking of
// the same consultant onto the same project or engagement.
func (a *Assignment) Open() bool {
	return !a.Deleted && a.Status != StatusCancelled && a.Status != StatusTerminated
}

// SameTarget reports whether both assignments book the same consultant onto
// the same project or engagement.
func (a *Assignment) SameTarget(consultantID, projectID, engagementID string) bool {
	if a.ConsultantID != consultantID {
		return false
	}
	if projectID != "" && a.ProjectID == projectID {
		return true
	}
	return engagementID != "" && a.EngagementID == engagementID
}

// CreateRequest holds the fields required to create an assignment.
type CreateRequest struct {
	ConsultantID   string       `json:"consultant_id" validate:"required"`
	ClientID       string       `json:"client_id" validate:"required"`
	ProjectID      string       `json:"project_id,omitempty" validate:"required_without=EngagementID,excluded_with=EngagementID"`
	EngagementID   string       `json:"engagement_id,omitempty"`
	Role           string       `json:"role" validate:"required,max=200"`
	Description    string       `json:"description,omitempty" validate:"max=5000"`
	Start          time.Time    `json:"start_date" validate:"required"`
	End            time.Time    `json:"end_date" validate:"required"`
	Percentage     float64      `json:"percentage" validate:"gt=0,lte=100"`
	Billing        BillingInput `json:"billing"`
	ApprovalLevels []Level      `json:"approval_levels,omitempty" validate:"dive"`
	Status         Status       `json:"status,omitempty" validate:"omitempty,oneof=draft proposed"`
	Budget         *BudgetInput `json:"budget,omitempty"`
}

// BillingInput is the requested commercial terms.
type BillingInput struct {
	Rate       decimal.Decimal `json:"rate"`
	RateType   RateType        `json:"rate_type" validate:"omitempty,oneof=hourly daily fixed"`
	ClientRate decimal.Decimal `json:"client_rate"`
	Currency   string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	Billable   *bool           `json:"billable,omitempty"`
}

// BudgetInput sets a budget cap and the percentages that raise alerts.
type BudgetInput struct {
	Total           decimal.Decimal `json:"total"`
	AlertThresholds []int           `json:"alert_thresholds,omitempty" validate:"dive,gt=0,lte=100"`
}

// UpdateRequest holds the fields that can be changed on an assignment. Nil
// fields are left untouched.
type UpdateRequest struct {
	Role        *string       `json:"role,omitempty" validate:"omitempty,max=200"`
	Description *string       `json:"description,omitempty" validate:"omitempty,max=5000"`
	Start       *time.Time    `json:"start_date,omitempty"`
	End         *time.Time    `json:"end_date,omitempty"`
	Percentage  *float64      `json:"percentage,omitempty" validate:"omitempty,gt=0,lte=100"`
	Billing     *BillingInput `json:"billing,omitempty"`
}

// TouchesSchedule reports whether the update changes dates or allocation.
func (u *UpdateRequest) TouchesSchedule() bool {
	return u.Start != nil || u.End != nil || u.Percentage != nil
}

// Filter narrows assignment list queries.
type Filter struct {
	ConsultantID   string `json:"consultant_id,omitempty"`
	ClientID       string `json:"client_id,omitempty"`
	ProjectID      string `json:"project_id,omitempty"`
	Status         Status `json:"status,omitempty"`
	IncludeDeleted bool   `json:"include_deleted,omitempty"`
}

// Matches reports whether a satisfies the filter.
func (f Filter) Matches(a *Assignment) bool {
	if a.Deleted && !f.IncludeDeleted {
		return false
	}
	if f.ConsultantID != "" && a.ConsultantID != f.ConsultantID {
		return false
	}
	if f.ClientID != "" && a.ClientID != f.ClientID {
		return false
	}
	if f.ProjectID != "" && a.ProjectID != f.ProjectID {
		return false
	}
	return f.Status == "" || a.Status == f.Status
}

// SortColumns lists the accepted sort keys for assignment lists.
var SortColumns = []string{"start_date", "end_date", "created_at", "updated_at", "status", "percentage"}

// TimeEntry is one time log submission.
type TimeEntry struct {
	Hours    float64   `json:"hours" validate:"gt=0,lte=24"`
	Billable bool      `json:"billable"`
	Date     time.Time `json:"date"`
	Notes    string    `json:"notes,omitempty"`
}
