package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	cfotel "github.com/Strob0t/StaffForge/internal/adapter/otel"
	"github.com/Strob0t/StaffForge/internal/domain/event"
	"github.com/Strob0t/StaffForge/internal/domain/summary"
	"github.com/Strob0t/StaffForge/internal/middleware"
	"github.com/Strob0t/StaffForge/internal/port/broadcast"
	"github.com/Strob0t/StaffForge/internal/port/cache"
	"github.com/Strob0t/StaffForge/internal/port/database"
)

// ProjectorService keeps the denormalized availability and assignment
// snapshots on consultant records in sync with their records.
type ProjectorService struct {
	clock
	store       database.Store
	readCache   cache.Cache
	hub         broadcast.Broadcaster
	metrics     *cfotel.Metrics
	timeout     time.Duration
	concurrency int
	wg          sync.WaitGroup
}

// NewProjectorService creates a ProjectorService. timeout bounds each
// triggered projection; concurrency bounds RecomputeAll.
func NewProjectorService(store database.Store, timeout time.Duration, concurrency int) *ProjectorService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ProjectorService{
		clock:       newClock(),
		store:       store,
		timeout:     timeout,
		concurrency: concurrency,
	}
}

// SetCache sets the consultant cache invalidated after each projection.
func (s *ProjectorService) SetCache(c cache.Cache) { s.readCache = c }

// SetBroadcaster sets the WebSocket broadcaster for summary updates.
func (s *ProjectorService) SetBroadcaster(b broadcast.Broadcaster) { s.hub = b }

// SetMetrics attaches the metric instruments.
func (s *ProjectorService) SetMetrics(m *cfotel.Metrics) { s.metrics = m }

// SummaryPayload is broadcast after a consultant summary changed.
type SummaryPayload struct {
	ConsultantID string                 `json:"consultant_id"`
	Availability summary.Availability   `json:"availability"`
	Assignments  summaryAssignmentsView `json:"assignments"`
}

type summaryAssignmentsView struct {
	Total              int     `json:"total"`
	Active             int     `json:"active"`
	CurrentUtilization float64 `json:"current_utilization"`
}

// Recompute rebuilds both snapshots of one consultant. Running it twice
// yields the same result.
func (s *ProjectorService) Recompute(ctx context.Context, consultantID string) (err error) {
	start := time.Now()
	ctx, span := cfotel.StartProjectionSpan(ctx, consultantID)
	defer func() {
		cfotel.EndSpan(span, err)
		s.metrics.Projection(ctx, time.Since(start), err != nil)
	}()

	c, err := s.store.GetConsultant(ctx, consultantID)
	if err != nil {
		return err
	}
	records, err := s.store.ConsultantAvailability(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("load availability of %s: %w", c.ID, err)
	}
	assignments, err := s.store.ConsultantAssignments(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("load assignments of %s: %w", c.ID, err)
	}

	now := s.now()
	av := summary.ProjectAvailability(records, now)
	as := summary.ProjectAssignments(assignments, now)
	changed := summary.Apply(c, av, as, now)

	if err := s.store.UpdateConsultantSummary(ctx, c.ID, c.Availability, c.Assignments); err != nil {
		return fmt.Errorf("store summary of %s: %w", c.ID, err)
	}
	invalidateConsultant(ctx, s.readCache, c.ID, c.Code)

	if changed && s.hub != nil {
		s.hub.BroadcastEvent(middleware.WithTenantID(ctx, c.TenantID), string(event.TypeConsultantSummary), SummaryPayload{
			ConsultantID: c.ID,
			Availability: av,
			Assignments: summaryAssignmentsView{
				Total:              as.Total,
				Active:             as.Active,
				CurrentUtilization: as.CurrentUtilization,
			},
		})
	}
	return nil
}

// Trigger recomputes the consultant in the background on a context detached
// from the caller. Failures are logged and dropped.
func (s *ProjectorService) Trigger(ctx context.Context, consultantID string) {
	if s == nil || consultantID == "" {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		if err := s.Recompute(pctx, consultantID); err != nil {
			slog.WarnContext(pctx, "summary projection failed", "consultant_id", consultantID, "error", err)
		}
	}()
}

// Wait blocks until every triggered projection finished.
func (s *ProjectorService) Wait() {
	if s != nil {
		s.wg.Wait()
	}
}

// RecomputeResult reports a RecomputeAll run.
type RecomputeResult struct {
	Total  int `json:"total"`
	Failed int `json:"failed"`
}

// RecomputeAll re-projects every consultant of the tenant in ctx. Single
// failures are logged and counted; only cancellation aborts the run.
func (s *ProjectorService) RecomputeAll(ctx context.Context) (RecomputeResult, error) {
	ids, err := s.store.ListConsultantIDs(ctx)
	if err != nil {
		return RecomputeResult{}, fmt.Errorf("list consultants: %w", err)
	}

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := s.Recompute(gctx, id); err != nil {
				failed.Add(1)
				slog.WarnContext(gctx, "summary projection failed", "consultant_id", id, "error", err)
			}
			return nil
		})
	}
	err = g.Wait()
	res := RecomputeResult{Total: len(ids), Failed: int(failed.Load())}
	slog.InfoContext(ctx, "summary projection finished", "total", res.Total, "failed", res.Failed)
	return res, err
}
