package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Strob0t/StaffForge/internal/logger"
)

// Identity headers set by the upstream gateway after authentication.
const (
	headerUserID    = "X-User-ID"
	headerUserRoles = "X-User-Roles"
)

// SystemActor is the actor recorded for automatic decisions and background jobs.
const SystemActor = "system"

// Actor is the authenticated caller of a request.
type Actor struct {
	ID    string
	Roles []string
}

// HasRole reports whether the actor holds any of the given roles.
func (a Actor) HasRole(roles ...string) bool {
	for _, have := range a.Roles {
		for _, want := range roles {
			if strings.EqualFold(have, want) {
				return true
			}
		}
	}
	return false
}

type actorCtxKey struct{}

// Identity is middleware that reads the caller identity from X-User-ID and
// the comma-separated X-User-Roles header. Requests without X-User-ID carry
// no actor; RequireRole rejects them.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerUserID))
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := WithActor(r.Context(), Actor{ID: id, Roles: splitRoles(r.Header.Get(headerUserRoles))})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithActor stores the actor in ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	ctx = context.WithValue(ctx, actorCtxKey{}, a)
	return logger.WithFields(ctx, "actor_id", a.ID)
}

// ActorFromContext returns the actor stored in ctx and whether one was set.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorCtxKey{}).(Actor)
	return a, ok
}

// ActorID returns the acting identity in ctx, or SystemActor when none is set.
func ActorID(ctx context.Context) string {
	if a, ok := ActorFromContext(ctx); ok && a.ID != "" {
		return a.ID
	}
	return SystemActor
}

// RolesFromContext returns the roles of the actor in ctx.
func RolesFromContext(ctx context.Context) []string {
	a, _ := ActorFromContext(ctx)
	return a.Roles
}

func splitRoles(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
