package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	cfotel "github.com/Strob0t/StaffForge/internal/adapter/otel"
	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/domain/consultant"
	"github.com/Strob0t/StaffForge/internal/domain/event"
	"github.com/Strob0t/StaffForge/internal/domain/ident"
	"github.com/Strob0t/StaffForge/internal/domain/validate"
	"github.com/Strob0t/StaffForge/internal/middleware"
	"github.com/Strob0t/StaffForge/internal/port/cache"
	"github.com/Strob0t/StaffForge/internal/port/database"
)

// ConsultantService manages consultant profiles.
type ConsultantService struct {
	clock
	store     database.Store
	events    *EventDispatcher
	readCache cache.Cache
	cacheTTL  time.Duration
}

// NewConsultantService creates a ConsultantService.
func NewConsultantService(store database.Store, events *EventDispatcher) *ConsultantService {
	return &ConsultantService{clock: newClock(), store: store, events: events}
}

// SetCache enables the read-through cache for by-id lookups.
func (s *ConsultantService) SetCache(c cache.Cache, ttl time.Duration) {
	s.readCache = c
	s.cacheTTL = ttl
}

func consultantCacheKey(idOrCode string) string {
	return cache.Key(event.EntityConsultant, idOrCode)
}

// invalidateConsultant drops both cache keys of a consultant.
func invalidateConsultant(ctx context.Context, c cache.Cache, id, code string) {
	if c == nil {
		return
	}
	for _, k := range []string{id, code} {
		if k == "" {
			continue
		}
		if err := c.Delete(ctx, consultantCacheKey(k)); err != nil {
			slog.WarnContext(ctx, "consultant cache invalidation failed", "key", k, "error", err)
		}
	}
}

// Create validates and stores a new consultant in the tenant of ctx.
func (s *ConsultantService) Create(ctx context.Context, req *consultant.CreateRequest, _ Options) (_ *consultant.Consultant, err error) {
	tenantID := middleware.TenantIDFromContext(ctx)
	ctx, span := cfotel.StartServiceSpan(ctx, "consultant.create", tenantID)
	defer func() { cfotel.EndSpan(span, err) }()

	if err := consultant.ValidateCreate(req); err != nil {
		return nil, err
	}
	c := consultant.New(req, ident.NewID(), ident.NewCode(ident.PrefixConsultant), tenantID, middleware.ActorID(ctx), s.now())
	if err := s.store.CreateConsultant(ctx, c); err != nil {
		return nil, fmt.Errorf("create consultant: %w", err)
	}
	s.events.Emit(ctx, event.TypeConsultantCreated, event.EntityConsultant, c.ID, c.ID, map[string]any{
		"code":  c.Code,
		"email": c.Profile.Email,
	})
	return c, nil
}

// Get returns a consultant by id or code.
func (s *ConsultantService) Get(ctx context.Context, idOrCode string, opts Options) (*consultant.Consultant, error) {
	if s.readCache != nil {
		var c consultant.Consultant
		if ok, _ := cache.GetJSON(ctx, s.readCache, consultantCacheKey(idOrCode), &c); ok {
			if err := authorize(ctx, event.EntityConsultant, idOrCode, c.TenantID, c.Deleted, opts); err != nil {
				return nil, err
			}
			return &c, nil
		}
	}

	c, err := s.store.GetConsultant(ctx, idOrCode)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, event.EntityConsultant, idOrCode, c.TenantID, c.Deleted, opts); err != nil {
		return nil, err
	}
	if s.readCache != nil {
		if err := cache.SetJSON(ctx, s.readCache, consultantCacheKey(idOrCode), c, s.cacheTTL); err != nil {
			slog.WarnContext(ctx, "consultant cache write failed", "consultant_id", c.ID, "error", err)
		}
	}
	return c, nil
}

// List returns a page of the tenant's consultants.
func (s *ConsultantService) List(ctx context.Context, f consultant.Filter, opts Options) (domain.Page[consultant.Consultant], error) {
	f.IncludeDeleted = f.IncludeDeleted || opts.IncludeDeleted
	p := opts.List.Normalize("created_at", consultant.SortColumns...)
	items, total, err := s.store.ListConsultants(ctx, f, p)
	if err != nil {
		return domain.Page[consultant.Consultant]{}, fmt.Errorf("list consultants: %w", err)
	}
	return domain.NewPage(items, total, p), nil
}

// Update applies the non-nil fields of req.
func (s *ConsultantService) Update(ctx context.Context, idOrCode string, req *consultant.UpdateRequest, opts Options) (*consultant.Consultant, error) {
	if err := consultant.ValidateUpdate(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "consultant.update", idOrCode, opts, func(c *consultant.Consultant) error {
		c.Apply(req)
		return nil
	})
}

// AddSkill adds a skill or replaces the one with the same name.
func (s *ConsultantService) AddSkill(ctx context.Context, idOrCode string, skill consultant.Skill, opts Options) (*consultant.Consultant, error) {
	if err := validate.Struct("invalid skill", &skill); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "consultant.add_skill", idOrCode, opts, func(c *consultant.Consultant) error {
		c.UpsertSkill(skill)
		return nil
	})
}

// RemoveSkill removes the named skill.
func (s *ConsultantService) RemoveSkill(ctx context.Context, idOrCode, name string, opts Options) (*consultant.Consultant, error) {
	return s.mutate(ctx, "consultant.remove_skill", idOrCode, opts, func(c *consultant.Consultant) error {
		if !c.RemoveSkill(name) {
			return domain.NotFoundf("skill %q on consultant %s", name, c.ID)
		}
		return nil
	})
}

// AddCertification appends a certification.
func (s *ConsultantService) AddCertification(ctx context.Context, idOrCode string, cert consultant.Certification, opts Options) (*consultant.Consultant, error) {
	if err := validate.Struct("invalid certification", &cert); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "consultant.add_certification", idOrCode, opts, func(c *consultant.Consultant) error {
		c.Certifications = append(c.Certifications, cert)
		return nil
	})
}

// AddReview appends a performance review and recomputes the overall rating.
func (s *ConsultantService) AddReview(ctx context.Context, idOrCode string, review consultant.Review, opts Options) (*consultant.Consultant, error) {
	if err := validate.Struct("invalid review", &review); err != nil {
		return nil, err
	}
	if review.ReviewerID == "" {
		review.ReviewerID = middleware.ActorID(ctx)
	}
	return s.mutate(ctx, "consultant.add_review", idOrCode, opts, func(c *consultant.Consultant) error {
		if review.ReviewedAt.IsZero() {
			review.ReviewedAt = s.now()
		}
		c.Performance.Reviews = append(c.Performance.Reviews, review)
		c.Performance.RecomputeRating()
		return nil
	})
}

// Delete soft-deletes the consultant, or removes it with HardDelete.
func (s *ConsultantService) Delete(ctx context.Context, idOrCode string, opts Options) (err error) {
	ctx, span := cfotel.StartServiceSpan(ctx, "consultant.delete", middleware.TenantIDFromContext(ctx),
		attribute.Bool("hard", opts.HardDelete))
	defer func() { cfotel.EndSpan(span, err) }()

	c, err := s.store.GetConsultant(ctx, idOrCode)
	if err != nil {
		return err
	}
	if err := authorize(ctx, event.EntityConsultant, idOrCode, c.TenantID, c.Deleted, opts); err != nil {
		return err
	}
	if opts.HardDelete {
		err = s.store.DeleteConsultant(ctx, c.ID)
	} else {
		now := s.now()
		c.Deleted = true
		c.DeletedAt = &now
		c.UpdatedBy = middleware.ActorID(ctx)
		c.UpdatedAt = now
		err = s.store.UpdateConsultant(ctx, c)
	}
	if err != nil {
		return fmt.Errorf("delete consultant %s: %w", c.ID, err)
	}
	invalidateConsultant(ctx, s.readCache, c.ID, c.Code)
	s.events.Emit(ctx, event.TypeConsultantDeleted, event.EntityConsultant, c.ID, c.ID, map[string]any{
		"hard": opts.HardDelete,
	})
	return nil
}

// mutate loads the consultant, applies fn and persists the result under
// optimistic locking.
func (s *ConsultantService) mutate(ctx context.Context, op, idOrCode string, opts Options, fn func(*consultant.Consultant) error) (_ *consultant.Consultant, err error) {
	ctx, span := cfotel.StartServiceSpan(ctx, op, middleware.TenantIDFromContext(ctx))
	defer func() { cfotel.EndSpan(span, err) }()

	c, err := s.store.GetConsultant(ctx, idOrCode)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, event.EntityConsultant, idOrCode, c.TenantID, c.Deleted, opts); err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	c.UpdatedBy = middleware.ActorID(ctx)
	c.UpdatedAt = s.now()
	if err := s.store.UpdateConsultant(ctx, c); err != nil {
		return nil, fmt.Errorf("update consultant %s: %w", c.ID, err)
	}
	invalidateConsultant(ctx, s.readCache, c.ID, c.Code)
	s.events.Emit(ctx, event.TypeConsultantUpdated, event.EntityConsultant, c.ID, c.ID, map[string]any{
		"operation": op,
		"version":   c.Version,
	})
	return c, nil
}
