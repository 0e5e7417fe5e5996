package service

import (
	"context"
	"errors"
	"fmt"

	cfotel "github.com/Strob0t/StaffForge/internal/adapter/otel"
	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/domain/allocation"
	"github.com/Strob0t/StaffForge/internal/domain/availability"
	"github.com/Strob0t/StaffForge/internal/domain/consultant"
	"github.com/Strob0t/StaffForge/internal/domain/event"
	"github.com/Strob0t/StaffForge/internal/domain/ident"
	"github.com/Strob0t/StaffForge/internal/domain/period"
	"github.com/Strob0t/StaffForge/internal/domain/validate"
	"github.com/Strob0t/StaffForge/internal/middleware"
	"github.com/Strob0t/StaffForge/internal/port/database"
)

// AvailabilityService manages availability records and time-off requests.
type AvailabilityService struct {
	clock
	store     database.Store
	events    *EventDispatcher
	projector *ProjectorService
	metrics   *cfotel.Metrics
	policy    availability.Policy
}

// NewAvailabilityService creates an AvailabilityService.
func NewAvailabilityService(store database.Store, events *EventDispatcher, projector *ProjectorService, policy availability.Policy) *AvailabilityService {
	return &AvailabilityService{
		clock:     newClock(),
		store:     store,
		events:    events,
		projector: projector,
		policy:    policy,
	}
}

// SetMetrics attaches the metric instruments.
func (s *AvailabilityService) SetMetrics(m *cfotel.Metrics) { s.metrics = m }

// loadConsultant returns a live consultant of the caller's tenant.
func loadConsultant(ctx context.Context, store database.Store, id string, opts Options) (*consultant.Consultant, error) {
	c, err := store.GetConsultant(ctx, id)
	if err != nil {
		return nil, err
	}
	// Bookings never target deleted consultants, whatever the caller asks.
	opts.IncludeDeleted = false
	if err := authorize(ctx, event.EntityConsultant, id, c.TenantID, c.Deleted, opts); err != nil {
		return nil, err
	}
	return c, nil
}

// Create stores a new record after checking it against the consultant's
// live records. Time-off records are auto-approved when the policy allows.
func (s *AvailabilityService) Create(ctx context.Context, req *availability.CreateRequest, opts Options) (_ *availability.Record, err error) {
	tenantID := middleware.TenantIDFromContext(ctx)
	ctx, span := cfotel.StartServiceSpan(ctx, "availability.create", tenantID)
	defer func() { cfotel.EndSpan(span, err) }()

	if err := availability.ValidateCreate(req); err != nil {
		return nil, err
	}
	c, err := loadConsultant(ctx, s.store, req.ConsultantID, opts)
	if err != nil {
		return nil, err
	}
	req.ConsultantID = c.ID

	actor := middleware.ActorID(ctx)
	now := s.now()
	var r *availability.Record
	err = s.store.InConsultantTx(ctx, c.ID, func(tx database.Store) error {
		if !opts.SkipConflictCheck {
			existing, err := tx.ConsultantAvailability(ctx, c.ID)
			if err != nil {
				return fmt.Errorf("load availability of %s: %w", c.ID, err)
			}
			if err := allocation.CheckAvailability(existing, c.ID, req.Period, ""); err != nil {
				s.metrics.Conflict(ctx, event.EntityAvailability, "overlap")
				return err
			}
		}
		r = availability.New(req, ident.NewID(), ident.NewCode(ident.PrefixAvailability), tenantID, actor, now)
		if r.IsTimeOff() && availability.ShouldAutoApprove(s.policy, r.TimeOff.DaysRequested, middleware.RolesFromContext(ctx)) {
			if err := r.AutoApprove(now); err != nil {
				return err
			}
		}
		return tx.CreateAvailability(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Booking(ctx, event.EntityAvailability)
	data := recordData(r, c)
	s.events.Emit(ctx, event.TypeAvailabilityCreated, event.EntityAvailability, r.ID, c.ID, data)
	if r.IsTimeOff() {
		s.events.Emit(ctx, event.TypeTimeOffRequested, event.EntityAvailability, r.ID, c.ID, data)
		if r.TimeOff.ApprovalStatus.IsApproved() {
			s.metrics.Approval(ctx, event.EntityAvailability, string(r.TimeOff.ApprovalStatus))
			s.events.Emit(ctx, event.TypeTimeOffApproved, event.EntityAvailability, r.ID, c.ID, data)
		}
	}
	s.projector.Trigger(ctx, c.ID)
	return r, nil
}

// recordData is the event payload of an availability record.
func recordData(r *availability.Record, c *consultant.Consultant) map[string]any {
	data := map[string]any{
		"code":       r.Code,
		"type":       string(r.Type),
		"start_date": r.Period.Start,
		"end_date":   r.Period.End,
	}
	if c != nil {
		data["consultant_name"] = c.Profile.FullName()
		data["consultant_email"] = c.Profile.Email
		if c.Professional.ManagerID != "" {
			data["manager_id"] = c.Professional.ManagerID
		}
	}
	if r.TimeOff != nil {
		data["reason"] = string(r.TimeOff.Reason)
		data["approval_status"] = string(r.TimeOff.ApprovalStatus)
		data["days_requested"] = r.TimeOff.DaysRequested
		if r.TimeOff.RejectionReason != "" {
			data["rejection_reason"] = r.TimeOff.RejectionReason
		}
	}
	return data
}

// BulkCreate creates the records one by one. Overlapping entries are
// skipped, invalid ones reported as failed; neither stops the batch.
func (s *AvailabilityService) BulkCreate(ctx context.Context, reqs []availability.CreateRequest, opts Options) (*availability.BulkResult, error) {
	res := &availability.BulkResult{
		Created: []*availability.Record{},
		Failed:  []availability.BulkFailure{},
		Skipped: []availability.BulkFailure{},
	}
	for i := range reqs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		r, err := s.Create(ctx, &reqs[i], opts)
		switch {
		case err == nil:
			res.Created = append(res.Created, r)
		case errors.Is(err, domain.ErrConflict):
			res.Skipped = append(res.Skipped, availability.BulkFailure{Index: i, Error: err.Error()})
		default:
			res.Failed = append(res.Failed, availability.BulkFailure{Index: i, Error: err.Error()})
		}
	}
	return res, nil
}

// Get returns a record by id or code.
func (s *AvailabilityService) Get(ctx context.Context, idOrCode string, opts Options) (*availability.Record, error) {
	r, err := s.store.GetAvailability(ctx, idOrCode)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, event.EntityAvailability, idOrCode, r.TenantID, r.Deleted, opts); err != nil {
		return nil, err
	}
	return r, nil
}

// List returns a page of the tenant's records.
func (s *AvailabilityService) List(ctx context.Context, f availability.Filter, opts Options) (domain.Page[availability.Record], error) {
	f.IncludeDeleted = f.IncludeDeleted || opts.IncludeDeleted
	p := opts.List.Normalize("start_date", availability.SortColumns...)
	items, total, err := s.store.ListAvailability(ctx, f, p)
	if err != nil {
		return domain.Page[availability.Record]{}, fmt.Errorf("list availability: %w", err)
	}
	return domain.NewPage(items, total, p), nil
}

// Update applies the non-nil fields of req. A changed period or a
// reactivated record is checked against the consultant's other live records.
func (s *AvailabilityService) Update(ctx context.Context, idOrCode string, req *availability.UpdateRequest, opts Options) (*availability.Record, error) {
	return s.mutate(ctx, "availability.update", idOrCode, opts, event.TypeAvailabilityUpdated,
		func(tx database.Store, r *availability.Record, actor string) error {
			if err := availability.ValidateUpdate(r, req); err != nil {
				return err
			}
			p, status := r.Period, r.Status
			if req.Period != nil {
				p = *req.Period
			}
			if req.Status != nil {
				status = *req.Status
			}
			liveAfter := !r.Deleted && status != availability.StatusCancelled
			if liveAfter && (req.Period != nil || req.Reactivates(r)) && !opts.SkipConflictCheck {
				existing, err := tx.ConsultantAvailability(ctx, r.ConsultantID)
				if err != nil {
					return fmt.Errorf("load availability of %s: %w", r.ConsultantID, err)
				}
				if err := allocation.CheckAvailability(existing, r.ConsultantID, p, r.ID); err != nil {
					s.metrics.Conflict(ctx, event.EntityAvailability, "overlap")
					return err
				}
			}
			r.Apply(req, actor, s.now())
			return nil
		})
}

// Delete soft-deletes the record, or removes it with HardDelete.
func (s *AvailabilityService) Delete(ctx context.Context, idOrCode string, opts Options) error {
	_, err := s.mutate(ctx, "availability.delete", idOrCode, opts, event.TypeAvailabilityDeleted,
		func(_ database.Store, r *availability.Record, actor string) error {
			if opts.HardDelete {
				return nil
			}
			now := s.now()
			r.Deleted = true
			r.DeletedAt = &now
			r.DeletedBy = actor
			r.UpdatedBy = actor
			r.UpdatedAt = now
			return nil
		})
	return err
}

// RequestTimeOff validates a time-off request against the policy and stores
// it as a time_off record.
func (s *AvailabilityService) RequestTimeOff(ctx context.Context, req *availability.TimeOffRequest, opts Options) (*availability.Record, error) {
	if err := validate.Struct("invalid time-off request", req); err != nil {
		return nil, err
	}
	if err := availability.ValidateTimeOffRequest(s.policy, req.Start, req.End, s.now()); err != nil {
		return nil, err
	}
	return s.Create(ctx, availability.FromTimeOffRequest(req), opts)
}

// ApproveTimeOff approves a pending time-off request.
func (s *AvailabilityService) ApproveTimeOff(ctx context.Context, idOrCode string, opts Options) (*availability.Record, error) {
	r, err := s.mutate(ctx, "time_off.approve", idOrCode, opts, event.TypeTimeOffApproved,
		func(_ database.Store, r *availability.Record, actor string) error {
			return r.Approve(actor, s.now())
		})
	if err == nil {
		s.metrics.Approval(ctx, event.EntityAvailability, string(availability.ApprovalApproved))
	}
	return r, err
}

// RejectTimeOff rejects a pending time-off request. reason is required.
func (s *AvailabilityService) RejectTimeOff(ctx context.Context, idOrCode, reason string, opts Options) (*availability.Record, error) {
	r, err := s.mutate(ctx, "time_off.reject", idOrCode, opts, event.TypeTimeOffRejected,
		func(_ database.Store, r *availability.Record, actor string) error {
			return r.Reject(actor, reason, s.now())
		})
	if err == nil {
		s.metrics.Approval(ctx, event.EntityAvailability, string(availability.ApprovalRejected))
	}
	return r, err
}

// CancelTimeOff withdraws a pending or approved time-off request.
func (s *AvailabilityService) CancelTimeOff(ctx context.Context, idOrCode, reason string, opts Options) (*availability.Record, error) {
	return s.mutate(ctx, "time_off.cancel", idOrCode, opts, event.TypeTimeOffCancelled,
		func(_ database.Store, r *availability.Record, actor string) error {
			return r.Cancel(actor, reason, s.now())
		})
}

// CheckConflicts lists the live records of the consultant overlapping p
// without writing anything. excludeID skips one record.
func (s *AvailabilityService) CheckConflicts(ctx context.Context, consultantID string, p period.Period, excludeID string, opts Options) ([]domain.Conflict, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	c, err := loadConsultant(ctx, s.store, consultantID, opts)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.ConsultantAvailability(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("load availability of %s: %w", c.ID, err)
	}
	conflicts := allocation.AvailabilityConflicts(existing, c.ID, p, excludeID)
	if conflicts == nil {
		conflicts = []domain.Conflict{}
	}
	return conflicts, nil
}

// mutate loads a record, runs fn under the consultant lock and persists the
// result. fn receives the acting identity.
func (s *AvailabilityService) mutate(ctx context.Context, op, idOrCode string, opts Options, typ event.Type,
	fn func(tx database.Store, r *availability.Record, actor string) error,
) (_ *availability.Record, err error) {
	ctx, span := cfotel.StartServiceSpan(ctx, op, middleware.TenantIDFromContext(ctx))
	defer func() { cfotel.EndSpan(span, err) }()

	head, err := s.store.GetAvailability(ctx, idOrCode)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, event.EntityAvailability, idOrCode, head.TenantID, head.Deleted, opts); err != nil {
		return nil, err
	}

	actor := middleware.ActorID(ctx)
	var r *availability.Record
	err = s.store.InConsultantTx(ctx, head.ConsultantID, func(tx database.Store) error {
		cur, err := tx.GetAvailability(ctx, head.ID)
		if err != nil {
			return err
		}
		if err := authorize(ctx, event.EntityAvailability, idOrCode, cur.TenantID, cur.Deleted, opts); err != nil {
			return err
		}
		if err := fn(tx, cur, actor); err != nil {
			return err
		}
		r = cur
		if opts.HardDelete && typ == event.TypeAvailabilityDeleted {
			return tx.DeleteAvailability(ctx, cur.ID)
		}
		return tx.UpdateAvailability(ctx, cur)
	})
	if err != nil {
		return nil, err
	}

	var c *consultant.Consultant
	if cc, err := s.store.GetConsultant(ctx, r.ConsultantID); err == nil {
		c = cc
	}
	data := recordData(r, c)
	data["operation"] = op
	s.events.Emit(ctx, typ, event.EntityAvailability, r.ID, r.ConsultantID, data)
	s.projector.Trigger(ctx, r.ConsultantID)
	return r, nil
}
