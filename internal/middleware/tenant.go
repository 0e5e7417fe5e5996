package middleware

import (
	"context"
	"net/http"

	"github.com/Strob0t/StaffForge/internal/logger"
)

// DefaultTenantID is the tenant used when no X-Tenant-ID header is set.
const DefaultTenantID = "default"

const headerTenantID = "X-Tenant-ID"

type tenantCtxKey struct{}

// TenantID is middleware that extracts the tenant ID from the X-Tenant-ID header
// and stores it in the request context. Falls back to DefaultTenantID if absent.
func TenantID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tid := r.Header.Get(headerTenantID)
		if tid == "" {
			tid = DefaultTenantID
		}
		ctx := WithTenantID(r.Context(), tid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithTenantID stores a tenant ID in ctx. Used by the admin CLI and the
// event consumers, which have no HTTP request to take it from.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	ctx = context.WithValue(ctx, tenantCtxKey{}, tenantID)
	return logger.WithFields(ctx, "tenant_id", tenantID)
}

// TenantIDFromContext returns the tenant ID stored in ctx, or DefaultTenantID if absent.
func TenantIDFromContext(ctx context.Context) string {
	if tid, ok := ctx.Value(tenantCtxKey{}).(string); ok {
		return tid
	}
	return DefaultTenantID
}
