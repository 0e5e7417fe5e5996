package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Strob0t/StaffForge/internal/middleware"
)

func TestRequireRole(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := middleware.Identity(middleware.RequireRole("admin", "resource_manager")(inner))

	tests := []struct {
		name   string
		user   string
		roles  string
		status int
	}{
		{"no identity", "", "", http.StatusUnauthorized},
		{"wrong role", "u-1", "consultant", http.StatusForbidden},
		{"no roles", "u-1", "", http.StatusForbidden},
		{"allowed role", "u-2", "viewer, Resource_Manager", http.StatusOK},
		{"admin", "u-3", "admin", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/tenants", http.NoBody)
			if tt.user != "" {
				req.Header.Set("X-User-ID", tt.user)
			}
			if tt.roles != "" {
				req.Header.Set("X-User-Roles", tt.roles)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}
