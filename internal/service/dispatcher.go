package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cfotel "github.com/Strob0t/StaffForge/internal/adapter/otel"
	"github.com/Strob0t/StaffForge/internal/domain/event"
	"github.com/Strob0t/StaffForge/internal/domain/ident"
	"github.com/Strob0t/StaffForge/internal/logger"
	"github.com/Strob0t/StaffForge/internal/middleware"
	"github.com/Strob0t/StaffForge/internal/port/messagequeue"
)

// EventSink consumes staffing events after they left the dispatcher.
type EventSink interface {
	Name() string
	HandleEvent(ctx context.Context, ev event.Event) error
}

// EventDispatcher emits domain events after committed writes. With a queue
// the event is published to staffing.events.<type> and sinks run in the
// queue consumer; without one the sinks run in-process. Emitting never
// fails the write that triggered it.
type EventDispatcher struct {
	queue   messagequeue.Queue
	sinks   []EventSink
	metrics *cfotel.Metrics
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewEventDispatcher creates a dispatcher. queue may be nil.
func NewEventDispatcher(queue messagequeue.Queue, sinks ...EventSink) *EventDispatcher {
	return &EventDispatcher{queue: queue, sinks: sinks, timeout: 10 * time.Second}
}

// SetMetrics attaches the metric instruments.
func (d *EventDispatcher) SetMetrics(m *cfotel.Metrics) { d.metrics = m }

// SetTimeout bounds how long one delivery may take.
func (d *EventDispatcher) SetTimeout(t time.Duration) {
	if t > 0 {
		d.timeout = t
	}
}

// Emit records an event for the tenant, actor and request in ctx and
// delivers it in the background. A nil dispatcher drops the event.
func (d *EventDispatcher) Emit(ctx context.Context, typ event.Type, entityType, entityID, consultantID string, data map[string]any) {
	if d == nil {
		return
	}
	ev := event.Event{
		ID:           ident.NewID(),
		Type:         typ,
		TenantID:     middleware.TenantIDFromContext(ctx),
		EntityType:   entityType,
		EntityID:     entityID,
		ConsultantID: consultantID,
		ActorID:      middleware.ActorID(ctx),
		RequestID:    logger.RequestID(ctx),
		Data:         data,
		OccurredAt:   time.Now().UTC(),
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		d.deliver(dctx, ev)
	}()
}

func (d *EventDispatcher) deliver(ctx context.Context, ev event.Event) {
	if d.queue != nil {
		data, err := json.Marshal(ev)
		if err == nil {
			err = d.queue.Publish(ctx, messagequeue.EventSubject(string(ev.Type)), data)
		}
		if err != nil {
			slog.WarnContext(ctx, "event publish failed", "event", ev.Type, "entity_id", ev.EntityID, "error", err)
			d.metrics.SideEffectFailure(ctx, "queue")
		}
		return
	}
	_ = d.runSinks(ctx, ev)
}

// runSinks hands ev to every sink and joins their errors.
func (d *EventDispatcher) runSinks(ctx context.Context, ev event.Event) error {
	var errs []error
	for _, s := range d.sinks {
		if err := s.HandleEvent(ctx, ev); err != nil {
			slog.WarnContext(ctx, "event sink failed", "sink", s.Name(), "event", ev.Type, "entity_id", ev.EntityID, "error", err)
			d.metrics.SideEffectFailure(ctx, s.Name())
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Consume subscribes the sinks to every staffing event on the queue. A sink
// error makes the queue redeliver the message.
func (d *EventDispatcher) Consume(ctx context.Context) (func(), error) {
	if d.queue == nil {
		return func() {}, nil
	}
	return d.queue.Subscribe(ctx, messagequeue.SubjectEventsAll, func(mctx context.Context, _ string, data []byte) error {
		var ev event.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		mctx = middleware.WithTenantID(mctx, ev.TenantID)
		if ev.ActorID != "" {
			mctx = middleware.WithActor(mctx, middleware.Actor{ID: ev.ActorID})
		}
		return d.runSinks(mctx, ev)
	})
}

// Wait blocks until every in-flight delivery finished.
func (d *EventDispatcher) Wait() {
	if d != nil {
		d.wg.Wait()
	}
}
