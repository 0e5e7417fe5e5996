package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "staffforge"

// Metrics holds all StaffForge metric instruments. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Bookings           metric.Int64Counter
	Conflicts          metric.Int64Counter
	Approvals          metric.Int64Counter
	Projections        metric.Int64Counter
	ProjectionDuration metric.Float64Histogram
	SideEffectFailures metric.Int64Counter
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Bookings, err = meter.Int64Counter("staffforge.bookings",
		metric.WithDescription("Availability records and assignments created"))
	if err != nil {
		return nil, err
	}

	m.Conflicts, err = meter.Int64Counter("staffforge.conflicts",
		metric.WithDescription("Bookings rejected by overlap, allocation or duplicate checks"))
	if err != nil {
		return nil, err
	}

	m.Approvals, err = meter.Int64Counter("staffforge.approvals",
		metric.WithDescription("Approval decisions on time off and assignments"))
	if err != nil {
		return nil, err
	}

	m.Projections, err = meter.Int64Counter("staffforge.projections",
		metric.WithDescription("Consultant summary projections"))
	if err != nil {
		return nil, err
	}

	m.ProjectionDuration, err = meter.Float64Histogram("staffforge.projection.duration_seconds",
		metric.WithDescription("Consultant summary projection duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.SideEffectFailures, err = meter.Int64Counter("staffforge.side_effect.failures",
		metric.WithDescription("Failed notifications, analytics writes and event publishes"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Booking counts a created booking of the given entity type.
func (m *Metrics) Booking(ctx context.Context, entity string) {
	if m == nil {
		return
	}
	m.Bookings.Add(ctx, 1, metric.WithAttributes(attribute.String("entity", entity)))
}

// Conflict counts a rejected booking; kind is "overlap", "allocation",
// "concurrency" or "duplicate".
func (m *Metrics) Conflict(ctx context.Context, entity, kind string) {
	if m == nil {
		return
	}
	m.Conflicts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity), attribute.String("kind", kind)))
}

// Approval counts an approval decision.
func (m *Metrics) Approval(ctx context.Context, entity, decision string) {
	if m == nil {
		return
	}
	m.Approvals.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity), attribute.String("decision", decision)))
}

// Projection records one summary projection and its duration.
func (m *Metrics) Projection(ctx context.Context, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("failed", failed))
	m.Projections.Add(ctx, 1, attrs)
	m.ProjectionDuration.Record(ctx, d.Seconds(), attrs)
}

// SideEffectFailure counts a swallowed side-effect failure.
func (m *Metrics) SideEffectFailure(ctx context.Context, sink string) {
	if m == nil {
		return
	}
	m.SideEffectFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("sink", sink)))
}
