package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestTypedErrorsUnwrapToSentinels(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"validation", NewValidation("bad input", FieldError{Field: "name", Message: "is required"}), ErrValidation},
		{"validationf", Validationf("end %s before start", "x"), ErrValidation},
		{"conflict", &ConflictError{Message: "overlap"}, ErrConflict},
		{"transition", &IllegalTransitionError{Entity: "assignment", From: "completed", To: "active"}, ErrValidation},
		{"forbidden", Forbiddenf("tenant mismatch"), ErrForbidden},
		{"not found", NotFoundf("get consultant %s", "c1"), ErrNotFound},
		{"wrapped", fmt.Errorf("create: %w", &ConflictError{Message: "dup"}), ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Fatalf("errors.Is(%v, %v) = false", tt.err, tt.want)
			}
		})
	}
}

func TestValidationErrorAs(t *testing.T) {
	err := fmt.Errorf("create: %w", NewValidation("invalid", FieldError{Field: "a", Message: "bad"}))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatal("expected ValidationError")
	}
	if len(ve.Errors) != 1 || ve.Errors[0].Field != "a" {
		t.Fatalf("unexpected field errors: %+v", ve.Errors)
	}
}

func TestListParamsNormalize(t *testing.T) {
	p := ListParams{Limit: 500, Skip: -3, SortBy: "drop table", SortOrder: "sideways"}.
		Normalize("created_at", "created_at", "code")
	if p.Limit != MaxLimit {
		t.Errorf("limit = %d, want %d", p.Limit, MaxLimit)
	}
	if p.Skip != 0 {
		t.Errorf("skip = %d, want 0", p.Skip)
	}
	if p.SortBy != "created_at" {
		t.Errorf("sort_by = %q, want created_at", p.SortBy)
	}
	if p.SortOrder != SortDesc {
		t.Errorf("sort_order = %q, want desc", p.SortOrder)
	}
}

func TestNewPageHasMore(t *testing.T) {
	p := ListParams{Limit: 2, Skip: 0}
	page := NewPage([]int{1, 2}, 5, p)
	if !page.Pagination.HasMore {
		t.Fatal("expected hasMore")
	}
	last := NewPage([]int{5}, 5, ListParams{Limit: 2, Skip: 4})
	if last.Pagination.HasMore {
		t.Fatal("expected no more pages")
	}
	empty := NewPage[int](nil, 0, p)
	if empty.Data == nil {
		t.Fatal("expected empty slice, got nil")
	}
}
