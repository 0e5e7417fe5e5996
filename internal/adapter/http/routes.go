package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/StaffForge/internal/domain/event"
	"github.com/Strob0t/StaffForge/internal/middleware"
)

// RouteConfig carries the role requirements of the protected routes.
type RouteConfig struct {
	// ApproverRoles may approve or reject time-off requests.
	ApproverRoles []string
	// AdminRoles may manage tenants and re-project summaries.
	AdminRoles []string
}

// MountRoutes registers all API routes on the given chi router. ws, when
// non-nil, is served at /ws.
func MountRoutes(r chi.Router, h *Handlers, rc RouteConfig, ws http.HandlerFunc) {
	if len(rc.AdminRoles) == 0 {
		rc.AdminRoles = []string{roleAdmin}
	}
	if len(rc.ApproverRoles) == 0 {
		rc.ApproverRoles = rc.AdminRoles
	}
	requireAdmin := middleware.RequireRole(rc.AdminRoles...)
	requireApprover := middleware.RequireRole(append(append([]string{}, rc.ApproverRoles...), rc.AdminRoles...)...)
	limit := h.bodyLimit()

	r.Get("/health", h.Health)
	if ws != nil {
		r.Get("/ws", ws)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Consultants
		r.Get("/consultants", handleList(consultantFilter, h.Consultants.List))
		r.Post("/consultants", handleCreate(limit, h.Consultants.Create))
		r.Get("/consultants/{id}", handleGet(h.Consultants.Get))
		r.Put("/consultants/{id}", handleUpdate(limit, h.Consultants.Update))
		r.Delete("/consultants/{id}", handleDelete(h.Consultants.Delete))
		r.Post("/consultants/{id}/skills", h.AddSkill)
		r.Delete("/consultants/{id}/skills/{name}", h.RemoveSkill)
		r.Post("/consultants/{id}/certifications", h.AddCertification)
		r.Post("/consultants/{id}/reviews", h.AddReview)
		r.Get("/consultants/{id}/capacity", h.ConsultantCapacity)
		r.Get("/consultants/{id}/events", h.ConsultantEvents)
		r.With(requireAdmin).Post("/consultants/{id}/recompute", h.Recompute)

		// Availability
		r.Get("/availability", handleList(availabilityFilter, h.Availability.List))
		r.Post("/availability", handleCreate(limit, h.Availability.Create))
		r.Post("/availability/bulk", h.BulkCreateAvailability)
		r.Post("/availability/conflicts", h.CheckAvailabilityConflicts)
		r.Get("/availability/{id}", handleGet(h.Availability.Get))
		r.Put("/availability/{id}", handleUpdate(limit, h.Availability.Update))
		r.Delete("/availability/{id}", handleDelete(h.Availability.Delete))
		r.Get("/availability/{id}/events", h.entityEvents(event.EntityAvailability))

		// Time off
		r.Post("/time-off", handleCreate(limit, h.Availability.RequestTimeOff))
		r.With(requireApprover).Post("/time-off/{id}/approve", handleAction(h.Availability.ApproveTimeOff))
		r.With(requireApprover).Post("/time-off/{id}/reject", handleReasonAction(limit, h.Availability.RejectTimeOff))
		r.Post("/time-off/{id}/cancel", handleReasonAction(limit, h.Availability.CancelTimeOff))

		// Assignments
		r.Get("/assignments", handleList(assignmentFilter, h.Assignments.List))
		r.Post("/assignments", handleCreate(limit, h.Assignments.Create))
		r.Post("/assignments/check-allocation", h.CheckAllocation)
		r.Get("/assignments/{id}", handleGet(h.Assignments.Get))
		r.Put("/assignments/{id}", handleUpdate(limit, h.Assignments.Update))
		r.Delete("/assignments/{id}", handleDelete(h.Assignments.Delete))
		r.Post("/assignments/{id}/approve", handleReasonAction(limit, h.Assignments.Approve))
		r.Post("/assignments/{id}/reject", handleReasonAction(limit, h.Assignments.Reject))
		r.Post("/assignments/{id}/start", handleAction(h.Assignments.Start))
		r.Post("/assignments/{id}/complete", handleAction(h.Assignments.Complete))
		r.Post("/assignments/{id}/hold", handleReasonAction(limit, h.Assignments.Hold))
		r.Post("/assignments/{id}/resume", handleAction(h.Assignments.Resume))
		r.Post("/assignments/{id}/cancel", handleReasonAction(limit, h.Assignments.Cancel))
		r.Post("/assignments/{id}/terminate", handleReasonAction(limit, h.Assignments.Terminate))
		r.Post("/assignments/{id}/extend", h.ExtendAssignment)
		r.Post("/assignments/{id}/time-entries", h.LogTime)
		r.Get("/assignments/{id}/events", h.entityEvents(event.EntityAssignment))

		// Analytics
		r.Get("/events", h.ListEvents)

		// Administration
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/tenants", h.ListTenants)
			r.Post("/tenants", h.CreateTenant)
			r.Get("/tenants/{id}", h.GetTenant)
			r.Put("/tenants/{id}", h.UpdateTenant)
			r.Post("/admin/reproject", h.ReprojectTenant)
		})
	})
}
