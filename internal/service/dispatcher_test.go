package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Strob0t/StaffForge/internal/adapter/memory"
	"github.com/Strob0t/StaffForge/internal/domain/event"
	"github.com/Strob0t/StaffForge/internal/logger"
	"github.com/Strob0t/StaffForge/internal/middleware"
	"github.com/Strob0t/StaffForge/internal/port/messagequeue"
)

type sinkCall struct {
	ev       event.Event
	tenantID string
	actorID  string
}

type recordingSink struct {
	mu    sync.Mutex
	calls []sinkCall
	err   error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) HandleEvent(ctx context.Context, ev event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sinkCall{ev, middleware.TenantIDFromContext(ctx), middleware.ActorID(ctx)})
	return s.err
}

func (s *recordingSink) snapshot() []sinkCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkCall(nil), s.calls...)
}

// fakeQueue delivers published messages synchronously to matching
// subscribers and records handler errors.
type fakeQueue struct {
	mu        sync.Mutex
	published []string
	handlers  map[string]messagequeue.Handler
	errs      []error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{handlers: make(map[string]messagequeue.Handler)}
}

func (q *fakeQueue) Publish(ctx context.Context, subject string, data []byte) error {
	q.mu.Lock()
	q.published = append(q.published, subject)
	var hs []messagequeue.Handler
	for pattern, h := range q.handlers {
		if strings.HasSuffix(pattern, ".>") && strings.HasPrefix(subject, strings.TrimSuffix(pattern, ">")) {
			hs = append(hs, h)
		}
	}
	q.mu.Unlock()
	for _, h := range hs {
		if err := h(context.WithoutCancel(ctx), subject, data); err != nil {
			q.mu.Lock()
			q.errs = append(q.errs, err)
			q.mu.Unlock()
		}
	}
	return nil
}

func (q *fakeQueue) Subscribe(_ context.Context, subject string, h messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[subject] = h
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.handlers, subject)
	}, nil
}

func (q *fakeQueue) Drain() error      { return nil }
func (q *fakeQueue) Close() error      { return nil }
func (q *fakeQueue) IsConnected() bool { return true }

func TestEventDispatcher_InProcess(t *testing.T) {
	sink := &recordingSink{}
	d := NewEventDispatcher(nil, sink)

	ctx := logger.WithRequestID(tenantCtx("acme", "u1"), "req-1")
	d.Emit(ctx, event.TypeConsultantCreated, event.EntityConsultant, "c1", "c1", map[string]any{"code": "CON-1"})
	d.Wait()

	calls := sink.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(calls))
	}
	ev := calls[0].ev
	if ev.ID == "" || ev.TenantID != "acme" || ev.ActorID != "u1" || ev.RequestID != "req-1" {
		t.Fatalf("event metadata not captured: %+v", ev)
	}
	if calls[0].tenantID != "acme" {
		t.Fatalf("sink ran without tenant context: %+v", calls[0])
	}
}

func TestEventDispatcher_SinkFailureIsSwallowed(t *testing.T) {
	failing := &recordingSink{err: errors.New("boom")}
	ok := &recordingSink{}
	d := NewEventDispatcher(nil, failing, ok)

	d.Emit(tenantCtx("acme", "u1"), event.TypeConsultantCreated, event.EntityConsultant, "c1", "c1", nil)
	d.Wait()
	if len(ok.snapshot()) != 1 {
		t.Fatal("a failing sink must not stop the others")
	}
}

func TestEventDispatcher_ThroughQueue(t *testing.T) {
	q := newFakeQueue()
	sink := &recordingSink{}
	log := memory.NewEventStore()
	d := NewEventDispatcher(q, sink, NewAnalyticsService(log))

	cancel, err := d.Consume(context.Background())
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	defer cancel()

	d.Emit(tenantCtx("acme", "u1"), event.TypeTimeOffApproved, event.EntityAvailability, "a1", "c1", map[string]any{"code": "AVL-1"})
	d.Wait()

	if len(q.published) != 1 || q.published[0] != "staffing.events.time_off.approved" {
		t.Fatalf("unexpected subjects: %v", q.published)
	}
	calls := sink.snapshot()
	if len(calls) != 1 {
		t.Fatalf("expected 1 consumed event, got %d", len(calls))
	}
	if calls[0].tenantID != "acme" || calls[0].actorID != "u1" {
		t.Fatalf("consumer context lost tenant or actor: %+v", calls[0])
	}
	if calls[0].ev.Data["code"] != "AVL-1" {
		t.Fatalf("event data lost on the wire: %+v", calls[0].ev.Data)
	}

	page, err := log.Load(tenantCtx("acme", ""), event.Filter{EntityID: "a1"}, "", 10)
	if err != nil || page.Total != 1 {
		t.Fatalf("expected the event in the analytics log, got %+v %v", page, err)
	}
}

func TestEventDispatcher_ConsumerReportsSinkErrors(t *testing.T) {
	q := newFakeQueue()
	d := NewEventDispatcher(q, &recordingSink{err: errors.New("db down")})
	cancel, err := d.Consume(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	d.Emit(tenantCtx("acme", "u1"), event.TypeConsultantCreated, event.EntityConsultant, "c1", "c1", nil)
	d.Wait()
	if len(q.errs) != 1 {
		t.Fatalf("expected the handler error to reach the queue for redelivery, got %v", q.errs)
	}
}

func TestEventDispatcher_Nil(t *testing.T) {
	var d *EventDispatcher
	d.Emit(context.Background(), event.TypeConsultantCreated, event.EntityConsultant, "c1", "c1", nil)
	d.Wait()
}
