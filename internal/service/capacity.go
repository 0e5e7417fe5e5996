package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	cfotel "github.com/Strob0t/StaffForge/internal/adapter/otel"
	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/domain/allocation"
	"github.com/Strob0t/StaffForge/internal/middleware"
	"github.com/Strob0t/StaffForge/internal/port/database"
)

// CapacityService computes consultant capacity over a date window.
type CapacityService struct {
	store    database.Store
	defaults allocation.Defaults
}

// NewCapacityService creates a CapacityService.
func NewCapacityService(store database.Store, defaults allocation.Defaults) *CapacityService {
	return &CapacityService{store: store, defaults: defaults}
}

// Calculate returns the capacity breakdown of the consultant over
// [start, end]. Pending time off is ignored when excludeTimeOff is set.
func (s *CapacityService) Calculate(ctx context.Context, consultantID string, start, end time.Time, excludeTimeOff bool, opts Options) (_ *allocation.Breakdown, err error) {
	ctx, span := cfotel.StartServiceSpan(ctx, "capacity.calculate", middleware.TenantIDFromContext(ctx),
		attribute.String("consultant.id", consultantID))
	defer func() { cfotel.EndSpan(span, err) }()

	if start.IsZero() || end.IsZero() {
		return nil, domain.NewValidation("invalid capacity window",
			domain.FieldError{Field: "start_date", Message: "start_date and end_date are required"})
	}
	if end.Before(start) {
		return nil, domain.NewValidation("invalid capacity window",
			domain.FieldError{Field: "end_date", Message: "must not be before start_date"})
	}
	c, err := loadConsultant(ctx, s.store, consultantID, opts)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ConsultantAvailability(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("load availability of %s: %w", c.ID, err)
	}
	b := allocation.Calculate(c, records, start, end, excludeTimeOff, s.defaults)
	return &b, nil
}
