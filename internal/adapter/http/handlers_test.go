package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	cfhttp "github.com/Strob0t/StaffForge/internal/adapter/http"
	"github.com/Strob0t/StaffForge/internal/adapter/memory"
	"github.com/Strob0t/StaffForge/internal/domain/allocation"
	"github.com/Strob0t/StaffForge/internal/domain/assignment"
	"github.com/Strob0t/StaffForge/internal/domain/availability"
	"github.com/Strob0t/StaffForge/internal/middleware"
	"github.com/Strob0t/StaffForge/internal/service"
)

type testServer struct {
	router     chi.Router
	dispatcher *service.EventDispatcher
	projector  *service.ProjectorService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	dispatcher := service.NewEventDispatcher(nil, service.NewAnalyticsService(memory.NewEventStore()))
	projector := service.NewProjectorService(store, 5*time.Second, 2)

	h := &cfhttp.Handlers{
		Consultants: service.NewConsultantService(store, dispatcher),
		Availability: service.NewAvailabilityService(store, dispatcher, projector, availability.Policy{
			AutoApproveDays:   2,
			AdvanceNoticeDays: 14,
			MaxDaysPerRequest: 30,
		}),
		Capacity: service.NewCapacityService(store, allocation.Defaults{HoursPerDay: 8, UtilizationTarget: 80}),
		Assignments: service.NewAssignmentService(store, dispatcher, projector, service.AssignmentPolicy{
			Rules: allocation.Rules{MaxAllocation: 100, WarningThreshold: 90, MaxConcurrent: 3},
			AutoApproval: assignment.AutoApprovalRule{
				MaxDays:       60,
				RateCeiling:   decimal.NewFromInt(150),
				MaxPercentage: 80,
			},
			DefaultHoursPerWeek: 40,
			DefaultHoursPerDay:  8,
		}),
		Projector: projector,
		Tenants:   service.NewTenantService(store),
		Analytics: service.NewAnalyticsService(memory.NewEventStore()),
		Store:     store,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.TenantID, middleware.Identity)
	cfhttp.MountRoutes(r, h, cfhttp.RouteConfig{ApproverRoles: []string{"manager"}}, nil)

	ts := &testServer{router: r, dispatcher: dispatcher, projector: projector}
	t.Cleanup(func() {
		dispatcher.Wait()
		projector.Wait()
	})
	return ts
}

type call struct {
	method string
	path   string
	body   any
	tenant string
	user   string
	roles  string
}

func (s *testServer) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if c.body != nil {
		if err := json.NewEncoder(&body).Encode(c.body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(c.method, c.path, &body)
	req.Header.Set("Content-Type", "application/json")
	tenant := c.tenant
	if tenant == "" {
		tenant = "acme"
	}
	req.Header.Set("X-Tenant-ID", tenant)
	if c.user != "" {
		req.Header.Set("X-User-ID", c.user)
		req.Header.Set("X-User-Roles", c.roles)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, w.Body.String())
	}
	return v
}

type consultantResponse struct {
	ID           string `json:"id"`
	Code         string `json:"code"`
	Availability struct {
		Status string `json:"status"`
	} `json:"availability"`
}

func (s *testServer) createConsultant(t *testing.T, email string) consultantResponse {
	t.Helper()
	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/consultants", user: "u1", body: map[string]any{
		"profile":            map[string]string{"first_name": "Ada", "last_name": "Lovelace", "email": email},
		"hours_per_week":     40,
		"work_days_per_week": 5,
	}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create consultant: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return decode[consultantResponse](t, w)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, call{method: http.MethodGet, path: "/health"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestConsultantEndpoints(t *testing.T) {
	s := newTestServer(t)
	c := s.createConsultant(t, "ada@example.com")

	w := s.do(t, call{method: http.MethodGet, path: "/api/v1/consultants/" + c.Code})
	if w.Code != http.StatusOK {
		t.Fatalf("get by code: expected 200, got %d", w.Code)
	}
	if got := decode[consultantResponse](t, w); got.ID != c.ID {
		t.Fatalf("expected %s, got %s", c.ID, got.ID)
	}

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/consultants?search=lovelace&limit=5"})
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	page := decode[struct {
		Data       []consultantResponse `json:"data"`
		Pagination struct {
			Total   int  `json:"total"`
			Limit   int  `json:"limit"`
			HasMore bool `json:"hasMore"`
		} `json:"pagination"`
	}](t, w)
	if page.Pagination.Total != 1 || page.Pagination.Limit != 5 || page.Pagination.HasMore || len(page.Data) != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/consultants/" + c.ID, tenant: "globex"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("cross-tenant get: expected 403, got %d", w.Code)
	}

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/consultants/CON-MISSING"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing consultant: expected 404, got %d", w.Code)
	}

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/consultants/" + c.ID + "/skills", user: "u1",
		body: map[string]any{"name": "Go", "proficiency": 4}})
	if w.Code != http.StatusOK {
		t.Fatalf("add skill: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = s.do(t, call{method: http.MethodGet, path: "/api/v1/consultants/" + c.ID + "/capacity?start_date=2026-03-01&end_date=2026-03-31"})
	if w.Code != http.StatusOK {
		t.Fatalf("capacity: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	b := decode[allocation.Breakdown](t, w)
	if b.WorkingDays != 22 || b.TotalCapacityHours != 176 {
		t.Fatalf("unexpected capacity: %+v", b)
	}
}

func TestValidationErrorBody(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/consultants", body: map[string]any{
		"profile": map[string]string{"first_name": "Ada"},
	}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	body := decode[struct {
		Error  string `json:"error"`
		Errors []struct {
			Field string `json:"field"`
		} `json:"errors"`
	}](t, w)
	if body.Error == "" || len(body.Errors) == 0 {
		t.Fatalf("expected field errors, got %+v", body)
	}

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/consultants", body: "not an object"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: expected 400, got %d", w.Code)
	}
}

func TestOverAllocationIsRejected(t *testing.T) {
	s := newTestServer(t)
	c := s.createConsultant(t, "grace@example.com")

	next := time.Now().UTC().AddDate(0, 1, 0)
	start := time.Date(next.Year(), next.Month(), 1, 0, 0, 0, 0, time.UTC)
	booking := func(pct float64, from, to time.Time) map[string]any {
		return map[string]any{
			"consultant_id": c.ID,
			"client_id":     "client-1",
			"project_id":    "project-1",
			"role":          "Engineer",
			"start_date":    from,
			"end_date":      to,
			"percentage":    pct,
			"billing":       map[string]any{"rate": "100", "client_rate": "125", "rate_type": "hourly"},
		}
	}

	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/assignments", user: "u1",
		body: booking(60, start, start.AddDate(0, 0, 29))})
	if w.Code != http.StatusCreated {
		t.Fatalf("first booking: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	first := decode[struct {
		Status string `json:"status"`
	}](t, w)
	if first.Status != string(assignment.StatusConfirmed) {
		t.Fatalf("expected an auto-approved confirmed booking, got %s", first.Status)
	}

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/assignments", user: "u1",
		body: booking(50, start.AddDate(0, 0, 14), start.AddDate(0, 0, 44))})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("over-allocation: expected 400, got %d: %s", w.Code, w.Body.String())
	}
	body := decode[struct {
		Details map[string]any `json:"details"`
	}](t, w)
	if body.Details["total_allocation"] != 110.0 {
		t.Fatalf("expected total_allocation 110, got %v", body.Details)
	}

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/assignments/check-allocation", body: map[string]any{
		"consultant_id": c.ID, "start_date": start, "end_date": start.AddDate(0, 0, 10), "percentage": 40,
	}})
	if w.Code != http.StatusOK {
		t.Fatalf("check allocation: expected 200, got %d", w.Code)
	}
	check := decode[struct {
		Allowed bool `json:"allowed"`
	}](t, w)
	if !check.Allowed {
		t.Fatal("40% on top of 60% must be allowed")
	}
}

func TestTimeOffApprovalRequiresRole(t *testing.T) {
	s := newTestServer(t)
	c := s.createConsultant(t, "linus@example.com")

	start := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, 30)
	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/time-off", user: "u1", body: map[string]any{
		"consultant_id": c.ID, "start_date": start, "end_date": start.AddDate(0, 0, 4), "reason": "vacation",
	}})
	if w.Code != http.StatusCreated {
		t.Fatalf("request time off: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	rec := decode[struct {
		ID      string `json:"id"`
		TimeOff struct {
			ApprovalStatus string `json:"approval_status"`
		} `json:"time_off"`
	}](t, w)
	if rec.TimeOff.ApprovalStatus != string(availability.ApprovalPending) {
		t.Fatalf("expected pending, got %s", rec.TimeOff.ApprovalStatus)
	}

	tests := []struct {
		name  string
		user  string
		roles string
		want  int
	}{
		{name: "anonymous", want: http.StatusUnauthorized},
		{name: "plain employee", user: "u1", roles: "employee", want: http.StatusForbidden},
		{name: "manager", user: "boss", roles: "manager", want: http.StatusOK},
		{name: "already decided", user: "boss", roles: "manager", want: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, call{method: http.MethodPost, path: "/api/v1/time-off/" + rec.ID + "/approve", user: tt.user, roles: tt.roles})
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestTenantRoutesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	body := map[string]string{"name": "Globex", "slug": "globex"}

	w := s.do(t, call{method: http.MethodPost, path: "/api/v1/tenants", user: "u1", roles: "manager", body: body})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/tenants", user: "root", roles: "admin", body: body})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/tenants", user: "root", roles: "admin", body: body})
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate slug: expected 409, got %d", w.Code)
	}

	w = s.do(t, call{method: http.MethodPost, path: "/api/v1/admin/reproject", user: "root", roles: "admin"})
	if w.Code != http.StatusOK {
		t.Fatalf("reproject: expected 200, got %d", w.Code)
	}
}
