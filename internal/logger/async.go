package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Closer allows flushing and stopping the async handler.
type Closer interface {
	Close()
}

// nopCloser is a no-op Closer for synchronous mode.
type nopCloser struct{}

func (nopCloser) Close() {}

// queued is a record bound to the handler that accepted it, so attributes
// and groups added with WithAttrs and WithGroup survive the hand-off.
type queued struct {
	h   slog.Handler
	rec slog.Record
}

// AsyncHandler writes records on a worker pool. Records below
// BlockLevel are dropped when the buffer is full; records at or above it
// wait for room.
type AsyncHandler struct {
	inner   slog.Handler
	shared  *asyncShared
	blockAt slog.Level
}

type asyncShared struct {
	ch      chan queued
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// NewAsyncHandler creates an AsyncHandler with the given channel capacity and
// worker count. Warnings and errors are never dropped.
func NewAsyncHandler(inner slog.Handler, chanSize, workers int) *AsyncHandler {
	if workers < 1 {
		workers = 1
	}
	sh := &asyncShared{ch: make(chan queued, chanSize)}
	for range workers {
		sh.wg.Add(1)
		go sh.drain()
	}
	return &AsyncHandler{inner: inner, shared: sh, blockAt: slog.LevelWarn}
}

func (s *asyncShared) drain() {
	defer s.wg.Done()
	for q := range s.ch {
		_ = q.h.Handle(context.Background(), q.rec)
	}
}

// Enabled delegates to the inner handler.
func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle enqueues the record.
func (h *AsyncHandler) Handle(_ context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	q := queued{h: h.inner, rec: rec.Clone()}
	if rec.Level >= h.blockAt {
		h.shared.ch <- q
		return nil
	}
	select {
	case h.shared.ch <- q:
	default:
		h.shared.dropped.Add(1)
	}
	return nil
}

// WithAttrs returns a handler sharing the same workers.
func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), shared: h.shared, blockAt: h.blockAt}
}

// WithGroup returns a handler sharing the same workers.
func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), shared: h.shared, blockAt: h.blockAt}
}

// DroppedCount returns the number of dropped records.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.shared.dropped.Load()
}

// Close stops accepting records and waits until the workers drained the buffer.
func (h *AsyncHandler) Close() {
	close(h.shared.ch)
	h.shared.wg.Wait()
}
