// Package availability defines availability records, time-off requests and
// the time-off approval state machine.
package availability

import (
	"time"

	"github.com/Strob0t/StaffForge/internal/domain/period"
)

// Type classifies an availability record.
type Type string

const (
	TypeRegular   Type = "regular"
	TypeException Type = "exception"
	TypeTimeOff   Type = "time_off"
	TypeHoliday   Type = "holiday"
	TypeBlackout  Type = "blackout"
	TypeOverride  Type = "override"
	TypeTraining  Type = "training"
	TypeInternal  Type = "internal"
)

// ValidTypes lists all accepted record types.
var ValidTypes = []Type{
	TypeRegular, TypeException, TypeTimeOff, TypeHoliday,
	TypeBlackout, TypeOverride, TypeTraining, TypeInternal,
}

// Status is the record status.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
)

// Marker is the optional availability marker a record sets for its period.
type Marker string

const (
	MarkerAvailable          Marker = "available"
	MarkerPartiallyAvailable Marker = "partially_available"
	MarkerUnavailable        Marker = "unavailable"
)

// Reason is why time off was requested.
type Reason string

const (
	ReasonVacation    Reason = "vacation"
	ReasonSick        Reason = "sick"
	ReasonPersonal    Reason = "personal"
	ReasonParental    Reason = "parental"
	ReasonBereavement Reason = "bereavement"
	ReasonOther       Reason = "other"
)

// ApprovalStatus is the time-off approval state.
type ApprovalStatus string

const (
	ApprovalPending      ApprovalStatus = "pending"
	ApprovalApproved     ApprovalStatus = "approved"
	ApprovalAutoApproved ApprovalStatus = "auto_approved"
	ApprovalRejected     ApprovalStatus = "rejected"
	ApprovalCancelled    ApprovalStatus = "cancelled"
)

// IsApproved reports whether the status counts as approved for capacity and
// summaries. Auto-approval counts the same as a manual approval.
func (s ApprovalStatus) IsApproved() bool {
	return s == ApprovalApproved || s == ApprovalAutoApproved
}

// Capacity is what a record says about the consultant's capacity.
type Capacity struct {
	HoursAvailable float64  `json:"hours_available" validate:"gte=0"`
	Percentage     *float64 `json:"percentage,omitempty" validate:"omitempty,gte=0,lte=100"`
	Status         Marker   `json:"status,omitempty" validate:"omitempty,oneof=available partially_available unavailable"`
}

// TimeOff is present only on records of type time_off.
type TimeOff struct {
	Reason          Reason         `json:"reason"`
	Paid            bool           `json:"paid"`
	ApprovalStatus  ApprovalStatus `json:"approval_status"`
	RequestedBy     string         `json:"requested_by,omitempty"`
	ApprovedBy      string         `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	CancelledBy     string         `json:"cancelled_by,omitempty"`
	CancelledAt     *time.Time     `json:"cancelled_at,omitempty"`
	CancelReason    string         `json:"cancel_reason,omitempty"`
	DaysRequested   int            `json:"days_requested"`
}

// Record is a dated availability statement for one consultant.
type Record struct {
	ID           string        `json:"id"`
	Code         string        `json:"code"`
	TenantID     string        `json:"tenant_id"`
	ConsultantID string        `json:"consultant_id"`
	Type         Type          `json:"type"`
	Period       period.Period `json:"period"`
	Capacity     Capacity      `json:"capacity"`
	TimeOff      *TimeOff      `json:"time_off,omitempty"`
	Notes        string        `json:"notes,omitempty"`
	Status       Status        `json:"status"`
	Deleted      bool          `json:"deleted,omitempty"`
	DeletedAt    *time.Time    `json:"deleted_at,omitempty"`
	DeletedBy    string        `json:"deleted_by,omitempty"`
	Version      int           `json:"version"`
	CreatedBy    string        `json:"created_by,omitempty"`
	UpdatedBy    string        `json:"updated_by,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Live reports whether the record takes part in overlap, capacity and
// summary calculations.
func (r *Record) Live() bool {
	return !r.Deleted && r.Status != StatusCancelled
}

// IsTimeOff reports whether the record carries a time-off request.
func (r *Record) IsTimeOff() bool {
	return r.Type == TypeTimeOff && r.TimeOff != nil
}

// ApprovedTimeOff reports whether the record is time off that has been
// approved, manually or automatically.
func (r *Record) ApprovedTimeOff() bool {
	return r.IsTimeOff() && r.TimeOff.ApprovalStatus.IsApproved()
}

// CreateRequest holds the fields required to create an availability record.
type CreateRequest struct {
	ConsultantID string        `json:"consultant_id" validate:"required"`
	Type         Type          `json:"type" validate:"required"`
	Period       period.Period `json:"period"`
	Capacity     Capacity      `json:"capacity"`
	TimeOff      *TimeOffInput `json:"time_off,omitempty"`
	Notes        string        `json:"notes,omitempty" validate:"max=2000"`
}

// TimeOffInput is the requester-controlled part of a time-off block.
type TimeOffInput struct {
	Reason Reason `json:"reason" validate:"required,oneof=vacation sick personal parental bereavement other"`
	Paid   bool   `json:"paid"`
}

// UpdateRequest holds the fields that can be changed on a record. Nil fields
// are left untouched.
type UpdateRequest struct {
	Period   *period.Period `json:"period,omitempty"`
	Capacity *Capacity      `json:"capacity,omitempty"`
	Notes    *string        `json:"notes,omitempty" validate:"omitempty,max=2000"`
	Status   *Status        `json:"status,omitempty"`
}

// TimeOffRequest is the input of a dedicated time-off request.
type TimeOffRequest struct {
	ConsultantID string    `json:"consultant_id" validate:"required"`
	Start        time.Time `json:"start_date" validate:"required"`
	End          time.Time `json:"end_date" validate:"required"`
	Reason       Reason    `json:"reason" validate:"required,oneof=vacation sick personal parental bereavement other"`
	Paid         bool      `json:"paid"`
	Notes        string    `json:"notes,omitempty" validate:"max=2000"`
}

// Filter narrows availability list queries.
type Filter struct {
	ConsultantID   string         `json:"consultant_id,omitempty"`
	Type           Type           `json:"type,omitempty"`
	From           *time.Time     `json:"from,omitempty"`
	To             *time.Time     `json:"to,omitempty"`
	ApprovalStatus ApprovalStatus `json:"approval_status,omitempty"`
	IncludeDeleted bool           `json:"include_deleted,omitempty"`
}

// Matches reports whether r satisfies the filter.
func (f Filter) Matches(r *Record) bool {
	if r.Deleted && !f.IncludeDeleted {
		return false
	}
	if f.ConsultantID != "" && r.ConsultantID != f.ConsultantID {
		return false
	}
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.From != nil && r.Period.End.Before(*f.From) {
		return false
	}
	if f.To != nil && r.Period.Start.After(*f.To) {
		return false
	}
	if f.ApprovalStatus != "" && (r.TimeOff == nil || r.TimeOff.ApprovalStatus != f.ApprovalStatus) {
		return false
	}
	return true
}

// SortColumns lists the accepted sort keys for availability lists.
var SortColumns = []string{"start_date", "end_date", "created_at", "updated_at", "type"}

// BulkResult reports the outcome of a bulk create.
type BulkResult struct {
	Created []*Record     `json:"created"`
	Failed  []BulkFailure `json:"failed"`
	Skipped []BulkFailure `json:"skipped"`
}

// BulkFailure is one rejected entry of a bulk create.
type BulkFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// CapacityOf returns the effective percentage of a partially available
// record, or fallback when none was set.
func CapacityOf(r *Record, fallback float64) float64 {
	if r.Capacity.Percentage != nil {
		return *r.Capacity.Percentage
	}
	return fallback
}
