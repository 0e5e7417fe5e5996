package http

import (
	"context"
	"net/http"

	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/service"
)

// ---------------------------------------------------------------------------
// Generic CRUD handler factories
// ---------------------------------------------------------------------------

// handleList creates a handler that returns a paginated envelope.
func handleList[T any, F any](filter func(r *http.Request) (F, error), listFn func(ctx context.Context, f F, opts service.Options) (domain.Page[T], error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := filter(r)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		page, err := listFn(r.Context(), f, options(r))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

// handleGet creates a handler that retrieves a single resource by URL param "id".
func handleGet[T any](getFn func(ctx context.Context, id string, opts service.Options) (*T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := getFn(r.Context(), urlParam(r, "id"), options(r))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

// handleCreate creates a handler that decodes a JSON body and creates a resource.
func handleCreate[Req any, Res any](bodyLimit int64, createFn func(ctx context.Context, req *Req, opts service.Options) (*Res, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := readJSON[Req](w, r, bodyLimit)
		if !ok {
			return
		}
		res, err := createFn(r.Context(), &req, options(r))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

// handleUpdate creates a handler that decodes a JSON body and updates a resource by URL param "id".
func handleUpdate[Req any, Res any](bodyLimit int64, updateFn func(ctx context.Context, id string, req *Req, opts service.Options) (*Res, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := readJSON[Req](w, r, bodyLimit)
		if !ok {
			return
		}
		res, err := updateFn(r.Context(), urlParam(r, "id"), &req, options(r))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// handleDelete creates a handler that deletes a resource by URL param "id".
func handleDelete(deleteFn func(ctx context.Context, id string, opts service.Options) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deleteFn(r.Context(), urlParam(r, "id"), options(r)); err != nil {
			writeDomainError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleAction creates a handler for a lifecycle action taking no body.
func handleAction[Res any](actionFn func(ctx context.Context, id string, opts service.Options) (*Res, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := actionFn(r.Context(), urlParam(r, "id"), options(r))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// reasonRequest is the body of actions that take a reason or comment.
type reasonRequest struct {
	Reason   string `json:"reason"`
	Comments string `json:"comments"`
}

// handleReasonAction creates a handler for a lifecycle action with a reason body.
func handleReasonAction[Res any](bodyLimit int64, actionFn func(ctx context.Context, id, reason string, opts service.Options) (*Res, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := readJSON[reasonRequest](w, r, bodyLimit)
		if !ok {
			return
		}
		reason := req.Reason
		if reason == "" {
			reason = req.Comments
		}
		res, err := actionFn(r.Context(), urlParam(r, "id"), reason, options(r))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
