package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Strob0t/StaffForge/internal/domain/assignment"
	"github.com/Strob0t/StaffForge/internal/domain/availability"
	"github.com/Strob0t/StaffForge/internal/domain/consultant"
	"github.com/Strob0t/StaffForge/internal/domain/event"
	"github.com/Strob0t/StaffForge/internal/domain/period"
	"github.com/Strob0t/StaffForge/internal/domain/tenant"
	"github.com/Strob0t/StaffForge/internal/service"
)

const defaultBodyLimit = 1 << 20 // 1 MB

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the HTTP handlers for the StaffForge API.
type Handlers struct {
	Consultants  *service.ConsultantService
	Availability *service.AvailabilityService
	Capacity     *service.CapacityService
	Assignments  *service.AssignmentService
	Projector    *service.ProjectorService
	Tenants      *service.TenantService
	Analytics    *service.AnalyticsService
	Store        Pinger
	// BodyLimit caps request bodies; zero means 1 MB.
	BodyLimit int64
}

func (h *Handlers) bodyLimit() int64 {
	if h.BodyLimit > 0 {
		return h.BodyLimit
	}
	return defaultBodyLimit
}

// Health reports liveness plus store reachability.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "store": "ok"}
	code := http.StatusOK
	if h.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.Store.Ping(ctx); err != nil {
			status["status"], status["store"] = "degraded", err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, status)
}

// --- Consultants ---

func consultantFilter(r *http.Request) (consultant.Filter, error) {
	q := r.URL.Query()
	return consultant.Filter{
		Status:             consultant.Status(q.Get("status")),
		Level:              q.Get("level"),
		AvailabilityStatus: consultant.AvailabilityStatus(q.Get("availability_status")),
		Skill:              q.Get("skill"),
		Search:             q.Get("search"),
		IncludeDeleted:     queryBool(r, "include_deleted"),
	}, nil
}

// AddSkill adds or replaces a skill on a consultant.
func (h *Handlers) AddSkill(w http.ResponseWriter, r *http.Request) {
	skill, ok := readJSON[consultant.Skill](w, r, h.bodyLimit())
	if !ok {
		return
	}
	c, err := h.Consultants.AddSkill(r.Context(), urlParam(r, "id"), skill, options(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// RemoveSkill removes a skill by name.
func (h *Handlers) RemoveSkill(w http.ResponseWriter, r *http.Request) {
	c, err := h.Consultants.RemoveSkill(r.Context(), urlParam(r, "id"), urlParam(r, "name"), options(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// AddCertification appends a certification.
func (h *Handlers) AddCertification(w http.ResponseWriter, r *http.Request) {
	cert, ok := readJSON[consultant.Certification](w, r, h.bodyLimit())
	if !ok {
		return
	}
	c, err := h.Consultants.AddCertification(r.Context(), urlParam(r, "id"), cert, options(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// AddReview appends a performance review.
func (h *Handlers) AddReview(w http.ResponseWriter, r *http.Request) {
	review, ok := readJSON[consultant.Review](w, r, h.bodyLimit())
	if !ok {
		return
	}
	c, err := h.Consultants.AddReview(r.Context(), urlParam(r, "id"), review, options(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ConsultantCapacity returns the capacity breakdown of a consultant for
// ?start_date&end_date, defaulting to the current month.
func (h *Handlers) ConsultantCapacity(w http.ResponseWriter, r *http.Request) {
	start, err := queryDate(r, "start_date")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	end, err := queryDate(r, "end_date")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if start.IsZero() && end.IsZero() {
		now := time.Now().UTC()
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, -1)
	}
	b, err := h.Capacity.Calculate(r.Context(), urlParam(r, "id"), start, end, queryBool(r, "exclude_time_off"), options(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ConsultantEvents lists the analytics events of a consultant.
func (h *Handlers) ConsultantEvents(w http.ResponseWriter, r *http.Request) {
	c, err := h.Consultants.Get(r.Context(), urlParam(r, "id"), options(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, err := h.Analytics.List(r.Context(), event.Filter{ConsultantID: c.ID}, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Recompute re-projects the summary of one consultant synchronously.
func (h *Handlers) Recompute(w http.ResponseWriter, r *http.Request) {
	c, err := h.Consultants.Get(r.Context(), urlParam(r, "id"), options(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.Projector.Recompute(r.Context(), c.ID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	c, err = h.Consultants.Get(r.Context(), c.ID, options(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// --- Availability ---

func availabilityFilter(r *http.Request) (availability.Filter, error) {
	q := r.URL.Query()
	f := availability.Filter{
		ConsultantID:   q.Get("consultant_id"),
		Type:           availability.Type(q.Get("type")),
		ApprovalStatus: availability.ApprovalStatus(q.Get("approval_status")),
		IncludeDeleted: queryBool(r, "include_deleted"),
	}
	from, err := queryDate(r, "from")
	if err != nil {
		return f, err
	}
	to, err := queryDate(r, "to")
	if err != nil {
		return f, err
	}
	if !from.IsZero() {
		f.From = &from
	}
	if !to.IsZero() {
		f.To = &to
	}
	return f, nil
}

// BulkCreateAvailability creates records one by one and reports the outcome
// of each.
func (h *Handlers) BulkCreateAvailability(w http.ResponseWriter, r *http.Request) {
	reqs, ok := readJSON[[]availability.CreateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	res, err := h.Availability.BulkCreate(r.Context(), reqs, options(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type conflictCheckRequest struct {
	ConsultantID string        `json:"consultant_id"`
	Period       period.Period `json:"period"`
	ExcludeID    string        `json:"exclude_id,omitempty"`
}

// CheckAvailabilityConflicts lists the records overlapping a proposed period.
func (h *Handlers) CheckAvailabilityConflicts(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[conflictCheckRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	conflicts, err := h.Availability.CheckConflicts(r.Context(), req.ConsultantID, req.Period, req.ExcludeID, options(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"has_conflicts": len(conflicts) > 0,
		"conflicts":     conflicts,
	})
}

// --- Assignments ---

func assignmentFilter(r *http.Request) (assignment.Filter, error) {
	q := r.URL.Query()
	return assignment.Filter{
		ConsultantID:   q.Get("consultant_id"),
		ClientID:       q.Get("client_id"),
		ProjectID:      q.Get("project_id"),
		Status:         assignment.Status(q.Get("status")),
		IncludeDeleted: queryBool(r, "include_deleted"),
	}, nil
}

type extendRequest struct {
	End    time.Time `json:"end_date"`
	Reason string    `json:"reason"`
}

// ExtendAssignment moves the end date of an assignment forward.
func (h *Handlers) ExtendAssignment(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[extendRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	a, err := h.Assignments.Extend(r.Context(), urlParam(r, "id"), req.End, req.Reason, options(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// LogTime records hours against an active assignment.
func (h *Handlers) LogTime(w http.ResponseWriter, r *http.Request) {
	entry, ok := readJSON[assignment.TimeEntry](w, r, h.bodyLimit())
	if !ok {
		return
	}
	a, err := h.Assignments.LogTime(r.Context(), urlParam(r, "id"), entry, options(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type allocationCheckRequest struct {
	ConsultantID string    `json:"consultant_id"`
	Start        time.Time `json:"start_date"`
	End          time.Time `json:"end_date"`
	Percentage   float64   `json:"percentage"`
	ExcludeID    string    `json:"exclude_id,omitempty"`
}

// CheckAllocation evaluates a proposed booking without writing it.
func (h *Handlers) CheckAllocation(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[allocationCheckRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	res, err := h.Assignments.CheckAllocation(r.Context(), req.ConsultantID, req.Start, req.End, req.Percentage, req.ExcludeID, options(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- Analytics ---

// ListEvents returns a cursor page of analytics events of the tenant.
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := event.Filter{
		EntityType:   q.Get("entity_type"),
		EntityID:     q.Get("entity_id"),
		ConsultantID: q.Get("consultant_id"),
		Type:         event.Type(q.Get("type")),
	}
	after, err := queryDate(r, "after")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	before, err := queryDate(r, "before")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !after.IsZero() {
		f.After = &after
	}
	if !before.IsZero() {
		f.Before = &before
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	page, err := h.Analytics.List(r.Context(), f, q.Get("cursor"), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// --- Admin ---

// ListTenants lists all tenants.
func (h *Handlers) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.Tenants.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tenants)
}

// CreateTenant registers a tenant.
func (h *Handlers) CreateTenant(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[tenant.CreateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	t, err := h.Tenants.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// GetTenant returns a tenant by id or slug.
func (h *Handlers) GetTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tenants.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// UpdateTenant renames or enables/disables a tenant.
func (h *Handlers) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[tenant.UpdateRequest](w, r, h.bodyLimit())
	if !ok {
		return
	}
	t, err := h.Tenants.Update(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ReprojectTenant re-projects every consultant summary of the tenant.
func (h *Handlers) ReprojectTenant(w http.ResponseWriter, r *http.Request) {
	res, err := h.Projector.RecomputeAll(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// entityEvents lists the analytics events of one record by URL param "id".
func (h *Handlers) entityEvents(entityType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		page, err := h.Analytics.ListEntityEvents(r.Context(), entityType, urlParam(r, "id"), r.URL.Query().Get("cursor"), limit)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}
