package service

import (
	"context"
	"fmt"

	"github.com/Strob0t/StaffForge/internal/domain/event"
	"github.com/Strob0t/StaffForge/internal/port/eventstore"
)

// AnalyticsService records every staffing event in the append-only event log.
type AnalyticsService struct {
	store eventstore.Store
}

// NewAnalyticsService creates an AnalyticsService.
func NewAnalyticsService(store eventstore.Store) *AnalyticsService {
	return &AnalyticsService{store: store}
}

// Name implements EventSink.
func (s *AnalyticsService) Name() string { return "analytics" }

// HandleEvent implements EventSink. Appending is idempotent on the event ID.
func (s *AnalyticsService) HandleEvent(ctx context.Context, ev event.Event) error {
	if err := s.store.Append(ctx, &ev); err != nil {
		return fmt.Errorf("append event %s: %w", ev.ID, err)
	}
	return nil
}

// List returns a page of the tenant's events, newest first.
func (s *AnalyticsService) List(ctx context.Context, f event.Filter, cursor string, limit int) (*event.Page, error) {
	return s.store.Load(ctx, f, cursor, limit)
}

// ListEntityEvents returns the event history of one record.
func (s *AnalyticsService) ListEntityEvents(ctx context.Context, entityType, entityID, cursor string, limit int) (*event.Page, error) {
	return s.store.Load(ctx, event.Filter{EntityType: entityType, EntityID: entityID}, cursor, limit)
}
