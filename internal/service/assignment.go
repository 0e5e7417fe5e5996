package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	cfotel "github.com/Strob0t/StaffForge/internal/adapter/otel"
	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/domain/allocation"
	"github.com/Strob0t/StaffForge/internal/domain/assignment"
	"github.com/Strob0t/StaffForge/internal/domain/consultant"
	"github.com/Strob0t/StaffForge/internal/domain/event"
	"github.com/Strob0t/StaffForge/internal/domain/ident"
	"github.com/Strob0t/StaffForge/internal/domain/period"
	"github.com/Strob0t/StaffForge/internal/domain/validate"
	"github.com/Strob0t/StaffForge/internal/middleware"
	"github.com/Strob0t/StaffForge/internal/port/database"
)

// AssignmentPolicy bundles the booking and approval rules.
type AssignmentPolicy struct {
	Rules               allocation.Rules
	AutoApproval        assignment.AutoApprovalRule
	DefaultApprovers    []string
	DefaultHoursPerWeek float64
	DefaultHoursPerDay  float64
}

// AssignmentService manages assignments, their lifecycle and approval.
type AssignmentService struct {
	clock
	store     database.Store
	events    *EventDispatcher
	projector *ProjectorService
	metrics   *cfotel.Metrics
	policy    AssignmentPolicy
}

// NewAssignmentService creates an AssignmentService.
func NewAssignmentService(store database.Store, events *EventDispatcher, projector *ProjectorService, policy AssignmentPolicy) *AssignmentService {
	return &AssignmentService{
		clock:     newClock(),
		store:     store,
		events:    events,
		projector: projector,
		policy:    policy,
	}
}

// SetMetrics attaches the metric instruments.
func (s *AssignmentService) SetMetrics(m *cfotel.Metrics) { s.metrics = m }

func (s *AssignmentService) weeklyHours(c *consultant.Consultant) float64 {
	if c.Availability.HoursPerWeek > 0 {
		return c.Availability.HoursPerWeek
	}
	return s.policy.DefaultHoursPerWeek
}

// approvalLevels resolves who approves a new assignment: the levels of the
// request, else the consultant's manager, else the configured approvers.
func (s *AssignmentService) approvalLevels(req []assignment.Level, c *consultant.Consultant) []assignment.Level {
	if len(req) > 0 {
		return req
	}
	if c.Professional.ManagerID != "" {
		return []assignment.Level{{Name: "manager", Approvers: []string{c.Professional.ManagerID}}}
	}
	if len(s.policy.DefaultApprovers) > 0 {
		return []assignment.Level{{Name: "default", Approvers: s.policy.DefaultApprovers}}
	}
	return nil
}

// checkCapacity runs the allocation rules for p and logs a warning above
// the warning threshold.
func (s *AssignmentService) checkCapacity(ctx context.Context, existing []*assignment.Assignment, consultantID string, p period.Period, pct float64, excludeID string) error {
	check, err := allocation.CheckAssignmentCapacity(existing, consultantID, p, pct, excludeID, s.policy.Rules)
	if err != nil {
		kind := "allocation"
		if check.Total <= s.policy.Rules.MaxAllocation || s.policy.Rules.AllowOverallocation {
			kind = "concurrency"
		}
		s.metrics.Conflict(ctx, event.EntityAssignment, kind)
		return err
	}
	if check.Warning {
		slog.WarnContext(ctx, "consultant allocation above warning threshold",
			"consultant_id", consultantID, "total_allocation", check.Total, "threshold", s.policy.Rules.WarningThreshold)
	}
	return nil
}

// Create books a consultant. The duplicate guard, the allocation check and
// the write run under the consultant lock. The new assignment is confirmed
// when the auto-approval rule allows it and waits for approval otherwise.
func (s *AssignmentService) Create(ctx context.Context, req *assignment.CreateRequest, opts Options) (_ *assignment.Assignment, err error) {
	tenantID := middleware.TenantIDFromContext(ctx)
	ctx, span := cfotel.StartServiceSpan(ctx, "assignment.create", tenantID,
		attribute.String("consultant.id", req.ConsultantID))
	defer func() { cfotel.EndSpan(span, err) }()

	if err := assignment.ValidateCreate(req); err != nil {
		return nil, err
	}
	c, err := loadConsultant(ctx, s.store, req.ConsultantID, opts)
	if err != nil {
		return nil, err
	}
	req.ConsultantID = c.ID

	actor := middleware.ActorID(ctx)
	now := s.now()
	var a *assignment.Assignment
	err = s.store.InConsultantTx(ctx, c.ID, func(tx database.Store) error {
		existing, err := tx.ConsultantAssignments(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("load assignments of %s: %w", c.ID, err)
		}
		if dup := allocation.FindDuplicate(existing, c.ID, req.ProjectID, req.EngagementID, ""); dup != nil {
			s.metrics.Conflict(ctx, event.EntityAssignment, "duplicate")
			return allocation.DuplicateError(dup)
		}
		if !opts.SkipConflictCheck {
			if err := s.checkCapacity(ctx, existing, c.ID, period.New(req.Start, req.End), req.Percentage, ""); err != nil {
				return err
			}
		}

		a = assignment.New(req, ident.NewID(), ident.NewCode(ident.PrefixAssignment), tenantID, actor, s.weeklyHours(c), now)
		if s.policy.AutoApproval.Allows(req.Start, req.End, a.Billing.Rate, req.Percentage) {
			if err := a.AutoApprove(actor, now); err != nil {
				return err
			}
		} else if err := a.RequireApproval(s.approvalLevels(req.ApprovalLevels, c), actor, now); err != nil {
			return err
		}
		return tx.CreateAssignment(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Booking(ctx, event.EntityAssignment)
	data := assignmentData(a, c)
	s.events.Emit(ctx, event.TypeAssignmentCreated, event.EntityAssignment, a.ID, c.ID, data)
	if a.Approval.Required {
		s.emitApprovalRequired(ctx, a, c)
	} else {
		s.metrics.Approval(ctx, event.EntityAssignment, string(assignment.ApprovalAutoApproved))
	}
	s.projector.Trigger(ctx, c.ID)
	return a, nil
}

func (s *AssignmentService) emitApprovalRequired(ctx context.Context, a *assignment.Assignment, c *consultant.Consultant) {
	data := assignmentData(a, c)
	lvl := a.Approval.Levels[a.Approval.CurrentLevel]
	data["level"] = a.Approval.CurrentLevel
	data["level_name"] = lvl.Name
	data["recipients"] = lvl.Approvers
	s.events.Emit(ctx, event.TypeAssignmentApprovalRequired, event.EntityAssignment, a.ID, a.ConsultantID, data)
}

// assignmentData is the event payload of an assignment.
func assignmentData(a *assignment.Assignment, c *consultant.Consultant) map[string]any {
	data := map[string]any{
		"code":            a.Code,
		"client_id":       a.ClientID,
		"role":            a.Role,
		"status":          string(a.Status),
		"approval_status": string(a.Approval.Status),
		"percentage":      a.Allocation.Percentage,
		"start_date":      a.Timeline.ProposedStart,
		"end_date":        a.Timeline.ProposedEnd,
		"created_by":      a.CreatedBy,
	}
	if a.ProjectID != "" {
		data["project_id"] = a.ProjectID
	}
	if a.EngagementID != "" {
		data["engagement_id"] = a.EngagementID
	}
	if c != nil {
		data["consultant_name"] = c.Profile.FullName()
		data["consultant_email"] = c.Profile.Email
	}
	return data
}

// Get returns an assignment by id or code.
func (s *AssignmentService) Get(ctx context.Context, idOrCode string, opts Options) (*assignment.Assignment, error) {
	a, err := s.store.GetAssignment(ctx, idOrCode)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, event.EntityAssignment, idOrCode, a.TenantID, a.Deleted, opts); err != nil {
		return nil, err
	}
	return a, nil
}

// List returns a page of the tenant's assignments.
func (s *AssignmentService) List(ctx context.Context, f assignment.Filter, opts Options) (domain.Page[assignment.Assignment], error) {
	f.IncludeDeleted = f.IncludeDeleted || opts.IncludeDeleted
	p := opts.List.Normalize("start_date", assignment.SortColumns...)
	items, total, err := s.store.ListAssignments(ctx, f, p)
	if err != nil {
		return domain.Page[assignment.Assignment]{}, fmt.Errorf("list assignments: %w", err)
	}
	return domain.NewPage(items, total, p), nil
}

// Update applies the non-nil fields of req. Schedule changes re-run the
// allocation check; confirmed dates only move through Extend.
func (s *AssignmentService) Update(ctx context.Context, idOrCode string, req *assignment.UpdateRequest, opts Options) (*assignment.Assignment, error) {
	return s.mutate(ctx, "assignment.update", idOrCode, opts, event.TypeAssignmentUpdated,
		func(tx database.Store, a *assignment.Assignment, c *consultant.Consultant, actor string) (map[string]any, error) {
			if err := assignment.ValidateUpdate(a, req); err != nil {
				return nil, err
			}
			if req.TouchesSchedule() && !opts.SkipConflictCheck {
				start, end, pct := a.Timeline.ProposedStart, a.Timeline.ProposedEnd, a.Allocation.Percentage
				if req.Start != nil {
					start = *req.Start
				}
				if req.End != nil {
					end = *req.End
				}
				if req.Percentage != nil {
					pct = *req.Percentage
				}
				existing, err := tx.ConsultantAssignments(ctx, a.ConsultantID)
				if err != nil {
					return nil, fmt.Errorf("load assignments of %s: %w", a.ConsultantID, err)
				}
				if err := s.checkCapacity(ctx, existing, a.ConsultantID, period.New(start, end), pct, a.ID); err != nil {
					return nil, err
				}
			}
			a.Apply(req, s.weeklyHours(c), actor, s.now())
			return nil, nil
		})
}

// Delete soft-deletes the assignment, or removes it with HardDelete.
func (s *AssignmentService) Delete(ctx context.Context, idOrCode string, opts Options) error {
	_, err := s.mutate(ctx, "assignment.delete", idOrCode, opts, event.TypeAssignmentDeleted,
		func(_ database.Store, a *assignment.Assignment, _ *consultant.Consultant, actor string) (map[string]any, error) {
			if opts.HardDelete {
				return map[string]any{"hard": true}, nil
			}
			now := s.now()
			a.Deleted = true
			a.DeletedAt = &now
			a.DeletedBy = actor
			a.UpdatedBy = actor
			a.UpdatedAt = now
			return nil, nil
		})
	return err
}

// Approve records the acting identity's approval at the current level.
// The final level confirms the assignment; earlier levels hand over to the
// next level's approvers.
func (s *AssignmentService) Approve(ctx context.Context, idOrCode, comments string, opts Options) (*assignment.Assignment, error) {
	var final bool
	a, err := s.mutate(ctx, "assignment.approve", idOrCode, opts, event.TypeAssignmentApproved,
		func(_ database.Store, a *assignment.Assignment, _ *consultant.Consultant, actor string) (map[string]any, error) {
			level := a.Approval.CurrentLevel
			var err error
			if final, err = a.Approve(actor, comments, s.now()); err != nil {
				return nil, err
			}
			return map[string]any{"level": level, "final": final, "recipients": []string{a.CreatedBy}}, nil
		})
	if err != nil {
		return nil, err
	}
	s.metrics.Approval(ctx, event.EntityAssignment, string(assignment.ApprovalApproved))
	if !final {
		c, _ := s.store.GetConsultant(ctx, a.ConsultantID)
		s.emitApprovalRequired(ctx, a, c)
	}
	return a, nil
}

// Reject rejects the assignment at the current level and returns it to draft.
func (s *AssignmentService) Reject(ctx context.Context, idOrCode, reason string, opts Options) (*assignment.Assignment, error) {
	a, err := s.mutate(ctx, "assignment.reject", idOrCode, opts, event.TypeAssignmentRejected,
		func(_ database.Store, a *assignment.Assignment, _ *consultant.Consultant, actor string) (map[string]any, error) {
			level := a.Approval.CurrentLevel
			if err := a.Reject(actor, reason, s.now()); err != nil {
				return nil, err
			}
			return map[string]any{"level": level, "reason": reason, "recipients": []string{a.CreatedBy}}, nil
		})
	if err == nil {
		s.metrics.Approval(ctx, event.EntityAssignment, string(assignment.ApprovalRejected))
	}
	return a, err
}

// Start activates a confirmed or proposed assignment.
func (s *AssignmentService) Start(ctx context.Context, idOrCode string, opts Options) (*assignment.Assignment, error) {
	return s.transition(ctx, "assignment.start", idOrCode, opts, event.TypeAssignmentStarted,
		func(a *assignment.Assignment, actor string, now time.Time) error { return a.Start(actor, now) })
}

// Complete finishes an active assignment.
func (s *AssignmentService) Complete(ctx context.Context, idOrCode string, opts Options) (*assignment.Assignment, error) {
	return s.transition(ctx, "assignment.complete", idOrCode, opts, event.TypeAssignmentCompleted,
		func(a *assignment.Assignment, actor string, now time.Time) error { return a.Complete(actor, now) })
}

// Hold pauses an active assignment.
func (s *AssignmentService) Hold(ctx context.Context, idOrCode, reason string, opts Options) (*assignment.Assignment, error) {
	return s.transition(ctx, "assignment.hold", idOrCode, opts, event.TypeAssignmentStatusChanged,
		func(a *assignment.Assignment, actor string, now time.Time) error { return a.Hold(actor, reason, now) })
}

// Resume reactivates an assignment on hold.
func (s *AssignmentService) Resume(ctx context.Context, idOrCode string, opts Options) (*assignment.Assignment, error) {
	return s.transition(ctx, "assignment.resume", idOrCode, opts, event.TypeAssignmentStatusChanged,
		func(a *assignment.Assignment, actor string, now time.Time) error { return a.Resume(actor, now) })
}

// Cancel cancels the assignment.
func (s *AssignmentService) Cancel(ctx context.Context, idOrCode, reason string, opts Options) (*assignment.Assignment, error) {
	return s.transition(ctx, "assignment.cancel", idOrCode, opts, event.TypeAssignmentStatusChanged,
		func(a *assignment.Assignment, actor string, now time.Time) error { return a.Cancel(actor, reason, now) })
}

// Terminate ends a running assignment early. reason is required.
func (s *AssignmentService) Terminate(ctx context.Context, idOrCode, reason string, opts Options) (*assignment.Assignment, error) {
	return s.transition(ctx, "assignment.terminate", idOrCode, opts, event.TypeAssignmentStatusChanged,
		func(a *assignment.Assignment, actor string, now time.Time) error {
			return a.Terminate(actor, reason, now)
		})
}

func (s *AssignmentService) transition(ctx context.Context, op, idOrCode string, opts Options, typ event.Type,
	fn func(a *assignment.Assignment, actor string, now time.Time) error,
) (*assignment.Assignment, error) {
	return s.mutate(ctx, op, idOrCode, opts, typ,
		func(_ database.Store, a *assignment.Assignment, _ *consultant.Consultant, actor string) (map[string]any, error) {
			from := a.Status
			if err := fn(a, actor, s.now()); err != nil {
				return nil, err
			}
			return map[string]any{"from": string(from), "to": string(a.Status)}, nil
		})
}

// Extend moves the end date forward after checking the added window against
// the consultant's other allocating assignments.
func (s *AssignmentService) Extend(ctx context.Context, idOrCode string, newEnd time.Time, reason string, opts Options) (*assignment.Assignment, error) {
	return s.mutate(ctx, "assignment.extend", idOrCode, opts, event.TypeAssignmentExtended,
		func(tx database.Store, a *assignment.Assignment, _ *consultant.Consultant, actor string) (map[string]any, error) {
			prevEnd, err := a.Extend(newEnd, reason, actor, s.now())
			if err != nil {
				return nil, err
			}
			if !opts.SkipConflictCheck {
				existing, err := tx.ConsultantAssignments(ctx, a.ConsultantID)
				if err != nil {
					return nil, fmt.Errorf("load assignments of %s: %w", a.ConsultantID, err)
				}
				if err := s.checkCapacity(ctx, existing, a.ConsultantID, period.New(prevEnd, newEnd), a.Allocation.Percentage, a.ID); err != nil {
					return nil, err
				}
			}
			return map[string]any{"previous_end": prevEnd, "new_end": newEnd, "reason": reason}, nil
		})
}

// LogTime records hours on an active assignment and charges the budget.
// Each newly crossed budget threshold emits its own event.
func (s *AssignmentService) LogTime(ctx context.Context, idOrCode string, entry assignment.TimeEntry, opts Options) (*assignment.Assignment, error) {
	if err := validate.Struct("invalid time entry", &entry); err != nil {
		return nil, err
	}
	var crossed []int
	a, err := s.mutate(ctx, "assignment.log_time", idOrCode, opts, event.TypeTimeLogged,
		func(_ database.Store, a *assignment.Assignment, c *consultant.Consultant, actor string) (map[string]any, error) {
			hpd := c.Availability.HoursPerDay(s.policy.DefaultHoursPerDay)
			var err error
			if crossed, err = a.LogTime(entry, hpd, actor, s.now()); err != nil {
				return nil, err
			}
			return map[string]any{"hours": entry.Hours, "billable": entry.Billable}, nil
		})
	if err != nil {
		return nil, err
	}
	for _, t := range crossed {
		data := map[string]any{
			"code":       a.Code,
			"threshold":  t,
			"used":       a.Billing.Budget.Used.String(),
			"total":      a.Billing.Budget.Total.String(),
			"recipients": []string{a.CreatedBy},
		}
		s.events.Emit(ctx, event.TypeBudgetThresholdReached, event.EntityAssignment, a.ID, a.ConsultantID, data)
	}
	return a, nil
}

// AllocationCheck is the outcome of a dry-run allocation check.
type AllocationCheck struct {
	allocation.Check
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// CheckAllocation reports whether booking pct of the consultant over
// [start, end] would pass the allocation rules, without writing anything.
func (s *AssignmentService) CheckAllocation(ctx context.Context, consultantID string, start, end time.Time, pct float64, excludeID string, opts Options) (*AllocationCheck, error) {
	p := period.New(start, end)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if pct <= 0 || pct > 100 {
		return nil, domain.NewValidation("invalid allocation check",
			domain.FieldError{Field: "percentage", Message: "must be greater than 0 and at most 100"})
	}
	c, err := loadConsultant(ctx, s.store, consultantID, opts)
	if err != nil {
		return nil, err
	}
	existing, err := s.store.ConsultantAssignments(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("load assignments of %s: %w", c.ID, err)
	}
	check, err := allocation.CheckAssignmentCapacity(existing, c.ID, p, pct, excludeID, s.policy.Rules)
	res := &AllocationCheck{Check: check, Allowed: err == nil}
	if check.Overlapping == nil {
		res.Overlapping = []domain.Conflict{}
	}
	if err != nil {
		res.Reason = err.Error()
	}
	return res, nil
}

// checkActivation re-runs the allocation rules for an assignment that
// starts consuming capacity through approval, start or resume.
func (s *AssignmentService) checkActivation(ctx context.Context, tx database.Store, a *assignment.Assignment) error {
	existing, err := tx.ConsultantAssignments(ctx, a.ConsultantID)
	if err != nil {
		return fmt.Errorf("load assignments of %s: %w", a.ConsultantID, err)
	}
	return s.checkCapacity(ctx, existing, a.ConsultantID, a.Period(), a.Allocation.Percentage, a.ID)
}

// mutate loads an assignment and its consultant, runs fn under the
// consultant lock and persists the result. An assignment that becomes
// allocating is checked against the consultant's other bookings first. The map fn returns is merged
// into the emitted event's data.
func (s *AssignmentService) mutate(ctx context.Context, op, idOrCode string, opts Options, typ event.Type,
	fn func(tx database.Store, a *assignment.Assignment, c *consultant.Consultant, actor string) (map[string]any, error),
) (_ *assignment.Assignment, err error) {
	ctx, span := cfotel.StartServiceSpan(ctx, op, middleware.TenantIDFromContext(ctx))
	defer func() { cfotel.EndSpan(span, err) }()

	head, err := s.store.GetAssignment(ctx, idOrCode)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, event.EntityAssignment, idOrCode, head.TenantID, head.Deleted, opts); err != nil {
		return nil, err
	}
	c, err := s.store.GetConsultant(ctx, head.ConsultantID)
	if err != nil {
		return nil, fmt.Errorf("load consultant of assignment %s: %w", head.ID, err)
	}

	actor := middleware.ActorID(ctx)
	var (
		a     *assignment.Assignment
		extra map[string]any
	)
	err = s.store.InConsultantTx(ctx, head.ConsultantID, func(tx database.Store) error {
		cur, err := tx.GetAssignment(ctx, head.ID)
		if err != nil {
			return err
		}
		if err := authorize(ctx, event.EntityAssignment, idOrCode, cur.TenantID, cur.Deleted, opts); err != nil {
			return err
		}
		wasAllocating := cur.Allocating()
		if extra, err = fn(tx, cur, c, actor); err != nil {
			return err
		}
		if !wasAllocating && cur.Allocating() && !opts.SkipConflictCheck {
			if err := s.checkActivation(ctx, tx, cur); err != nil {
				return err
			}
		}
		a = cur
		if opts.HardDelete && typ == event.TypeAssignmentDeleted {
			return tx.DeleteAssignment(ctx, cur.ID)
		}
		return tx.UpdateAssignment(ctx, cur)
	})
	if err != nil {
		return nil, err
	}

	data := assignmentData(a, c)
	data["operation"] = op
	for k, v := range extra {
		data[k] = v
	}
	s.events.Emit(ctx, typ, event.EntityAssignment, a.ID, a.ConsultantID, data)
	s.projector.Trigger(ctx, a.ConsultantID)
	return a, nil
}
