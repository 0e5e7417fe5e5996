// Package middleware provides the HTTP middleware of the staffing API:
// request and tenant scoping, caller identity, role gates, rate limiting
// and idempotent replays.
package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/Strob0t/StaffForge/internal/logger"
)

const headerRequestID = "X-Request-ID"

// Request IDs end up in logs and in the analytics event log.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// RequestID propagates X-Request-ID, replacing a missing or malformed value
// with a fresh UUID. The ID is stored in the context and echoed on the
// response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if !requestIDPattern.MatchString(id) {
			id = uuid.NewString()
		}

		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
