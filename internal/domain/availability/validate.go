package availability

import (
	"slices"
	"time"

	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/domain/period"
	"github.com/Strob0t/StaffForge/internal/domain/validate"
)

// ValidateType checks if a record type is known.
func ValidateType(t Type) error {
	if !slices.Contains(ValidTypes, t) {
		return domain.NewValidation("invalid availability",
			domain.FieldError{Field: "type", Message: "unknown availability type " + string(t)})
	}
	return nil
}

// ValidateCreate validates a CreateRequest.
func ValidateCreate(req *CreateRequest) error {
	if err := validate.Struct("invalid availability", req); err != nil {
		return err
	}
	if err := ValidateType(req.Type); err != nil {
		return err
	}
	if err := req.Period.Validate(); err != nil {
		return err
	}
	if req.Type == TypeTimeOff && req.TimeOff == nil {
		return domain.NewValidation("invalid availability",
			domain.FieldError{Field: "time_off", Message: "is required for time_off records"})
	}
	if req.Type != TypeTimeOff && req.TimeOff != nil {
		return domain.NewValidation("invalid availability",
			domain.FieldError{Field: "time_off", Message: "is only allowed on time_off records"})
	}
	return nil
}

// ValidateUpdate validates an UpdateRequest against the current record.
func ValidateUpdate(current *Record, req *UpdateRequest) error {
	if err := validate.Struct("invalid availability update", req); err != nil {
		return err
	}
	if req.Period != nil {
		if err := req.Period.Validate(); err != nil {
			return err
		}
		if current.ApprovedTimeOff() && !samePeriod(current.Period, *req.Period) {
			return domain.NewValidation("approved time off cannot be rescheduled",
				domain.FieldError{Field: "period", Message: "is immutable once approved; cancel and re-request instead"})
		}
	}
	if req.Status != nil && *req.Status != StatusActive && *req.Status != StatusCancelled {
		return domain.NewValidation("invalid availability update",
			domain.FieldError{Field: "status", Message: "must be one of: active cancelled"})
	}
	if req.Status != nil && *req.Status != current.Status && current.IsTimeOff() {
		return domain.NewValidation("invalid availability update",
			domain.FieldError{Field: "status", Message: "time off changes status through request, approval and cancellation"})
	}
	return nil
}

// Reactivates reports whether req brings a cancelled record back to active.
func (req *UpdateRequest) Reactivates(current *Record) bool {
	return req.Status != nil && *req.Status == StatusActive && current.Status == StatusCancelled
}

func samePeriod(a, b period.Period) bool {
	return a.Start.Equal(b.Start) && a.End.Equal(b.End)
}

// New builds a record from a validated request. Time-off blocks start
// pending with the requested day count.
func New(req *CreateRequest, id, code, tenantID, actor string, now time.Time) *Record {
	r := &Record{
		ID:           id,
		Code:         code,
		TenantID:     tenantID,
		ConsultantID: req.ConsultantID,
		Type:         req.Type,
		Period:       req.Period,
		Capacity:     req.Capacity,
		Notes:        req.Notes,
		Status:       StatusActive,
		Version:      1,
		CreatedBy:    actor,
		UpdatedBy:    actor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.TimeOff != nil {
		r.TimeOff = &TimeOff{
			Reason:         req.TimeOff.Reason,
			Paid:           req.TimeOff.Paid,
			ApprovalStatus: ApprovalPending,
			RequestedBy:    actor,
			DaysRequested:  DaysRequested(req.Period.Start, req.Period.End),
		}
	}
	return r
}

// Apply copies the non-nil fields of req onto r.
func (r *Record) Apply(req *UpdateRequest, actor string, now time.Time) {
	if req.Period != nil {
		r.Period = *req.Period
		if r.TimeOff != nil {
			r.TimeOff.DaysRequested = DaysRequested(r.Period.Start, r.Period.End)
		}
	}
	if req.Capacity != nil {
		r.Capacity = *req.Capacity
	}
	if req.Notes != nil {
		r.Notes = *req.Notes
	}
	if req.Status != nil {
		r.Status = *req.Status
	}
	r.touch(actor, now)
}

// FromTimeOffRequest converts a dedicated time-off request into a create
// request for a time_off record.
func FromTimeOffRequest(req *TimeOffRequest) *CreateRequest {
	return &CreateRequest{
		ConsultantID: req.ConsultantID,
		Type:         TypeTimeOff,
		Period:       period.New(req.Start, req.End),
		Capacity:     Capacity{HoursAvailable: 0, Status: MarkerUnavailable},
		TimeOff:      &TimeOffInput{Reason: req.Reason, Paid: req.Paid},
		Notes:        req.Notes,
	}
}
