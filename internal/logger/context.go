package logger

import (
	"context"
	"log/slog"
	"time"
)

// contextKey is a private type to prevent collisions with other context keys.
type contextKey int

const (
	requestIDKey contextKey = iota
	fieldsKey
)

// WithRequestID returns a new context with the given request ID stored.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID extracts the request ID from the context.
// Returns an empty string if no request ID is set.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithFields returns a context carrying additional key/value pairs that are
// attached to every record logged with it (tenant_id, actor_id, ...).
// Later values for the same key win.
func WithFields(ctx context.Context, args ...any) context.Context {
	prev, _ := ctx.Value(fieldsKey).([]slog.Attr)
	r := slog.NewRecord(time.Time{}, 0, "", 0)
	r.Add(args...)
	next := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		next = append(next, a)
		return true
	})
	merged := make([]slog.Attr, 0, len(prev)+len(next))
	for _, a := range prev {
		if !hasKey(next, a.Key) {
			merged = append(merged, a)
		}
	}
	merged = append(merged, next...)
	return context.WithValue(ctx, fieldsKey, merged)
}

// Fields returns the attributes stored with WithFields.
func Fields(ctx context.Context) []slog.Attr {
	attrs, _ := ctx.Value(fieldsKey).([]slog.Attr)
	return attrs
}

// FromContext returns logger enriched with the request-scoped attributes of
// ctx. Useful for goroutines that outlive the request but keep its identity.
func FromContext(ctx context.Context, l *slog.Logger) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	args := make([]any, 0, 4)
	if id := RequestID(ctx); id != "" {
		args = append(args, slog.String("request_id", id))
	}
	for _, a := range Fields(ctx) {
		args = append(args, a)
	}
	if len(args) == 0 {
		return l
	}
	return l.With(args...)
}

func hasKey(attrs []slog.Attr, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}

// contextHandler copies request-scoped attributes from the context into the
// record before passing it on. It must sit in front of AsyncHandler, which
// drops the context.
type contextHandler struct {
	inner slog.Handler
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	if ctx != nil {
		if id := RequestID(ctx); id != "" {
			rec.AddAttrs(slog.String("request_id", id))
		}
		if attrs := Fields(ctx); len(attrs) > 0 {
			rec.AddAttrs(attrs...)
		}
	}
	return h.inner.Handle(ctx, rec)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{inner: h.inner.WithGroup(name)}
}
