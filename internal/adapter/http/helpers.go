package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/middleware"
	"github.com/Strob0t/StaffForge/internal/service"
)

// Roles that may bypass conflict checks or hard-delete records.
const roleAdmin = "admin"

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// options builds the service options of a request. Conflict bypass and hard
// delete are reserved to admins.
func options(r *http.Request) service.Options {
	q := r.URL.Query()
	opts := service.Options{
		IncludeDeleted: queryBool(r, "include_deleted"),
		List:           listParams(r),
	}
	if a, ok := middleware.ActorFromContext(r.Context()); ok && a.HasRole(roleAdmin) {
		opts.SkipConflictCheck = queryBool(r, "force")
		opts.HardDelete = q.Get("hard") == "true"
	}
	return opts
}

// listParams reads limit, skip, sort_by and sort_order.
func listParams(r *http.Request) domain.ListParams {
	q := r.URL.Query()
	p := domain.ListParams{
		SortBy:    q.Get("sort_by"),
		SortOrder: domain.SortOrder(strings.ToLower(q.Get("sort_order"))),
	}
	p.Limit, _ = strconv.Atoi(q.Get("limit"))
	p.Skip, _ = strconv.Atoi(q.Get("skip"))
	return p
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// queryDate parses a YYYY-MM-DD or RFC 3339 query parameter. A missing
// parameter yields the zero time and ok.
func queryDate(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, domain.NewValidation("invalid query parameter",
			domain.FieldError{Field: name, Message: "must be YYYY-MM-DD or RFC 3339"})
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

type errorResponse struct {
	Error     string              `json:"error"`
	Errors    []domain.FieldError `json:"errors,omitempty"`
	Details   map[string]any      `json:"details,omitempty"`
	Conflicts []domain.Conflict   `json:"conflicts,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError maps service errors onto status codes. Typed errors
// carry their field errors, details and conflicts into the body.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	var cerr *domain.ConflictError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Message, Errors: verr.Errors, Details: verr.Details})
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": "))
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &cerr):
		writeJSON(w, http.StatusConflict, errorResponse{Error: cerr.Message, Conflicts: cerr.Conflicts})
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "resource was modified by another request")
	default:
		writeInternalError(w, r, err)
	}
}

// writeInternalError logs the actual error server-side and returns a generic message to the client.
func writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
