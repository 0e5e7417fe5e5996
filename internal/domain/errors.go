// Package domain provides shared domain-level sentinel errors and the typed
// errors built on top of them.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound indicates the requested entity does not exist or is soft-deleted.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates an overlapping booking, a duplicate record or a
// concurrent modification (optimistic locking).
var ErrConflict = errors.New("conflict")

// ErrValidation indicates malformed input or an illegal state transition.
var ErrValidation = errors.New("validation failed")

// ErrForbidden indicates a tenant mismatch or an actor that is not allowed
// to perform the operation.
var ErrForbidden = errors.New("forbidden")

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries a human-readable message and, for multi-field
// failures, the individual field errors.
type ValidationError struct {
	Message string         `json:"message"`
	Errors  []FieldError   `json:"errors,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// NewValidation builds a ValidationError.
func NewValidation(msg string, fields ...FieldError) *ValidationError {
	return &ValidationError{Message: msg, Errors: fields}
}

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// WithDetails attaches structured details and returns the same error.
func (e *ValidationError) WithDetails(details map[string]any) *ValidationError {
	e.Details = details
	return e
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return ErrValidation.Error() + ": " + e.Message
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+" "+fe.Message)
	}
	return ErrValidation.Error() + ": " + e.Message + " (" + strings.Join(parts, "; ") + ")"
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Conflict describes one existing record that collides with a proposed one.
type Conflict struct {
	ID         string    `json:"id"`
	Code       string    `json:"code,omitempty"`
	Type       string    `json:"type,omitempty"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Percentage float64   `json:"percentage,omitempty"`
}

// ConflictError reports the records a proposed write collides with.
type ConflictError struct {
	Message   string     `json:"message"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 0 {
		return ErrConflict.Error() + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s (%d conflicting)", ErrConflict.Error(), e.Message, len(e.Conflicts))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// IllegalTransitionError is returned when a status change is not allowed by
// the transition table of the entity.
type IllegalTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s: illegal %s transition %s -> %s", ErrValidation.Error(), e.Entity, e.From, e.To)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrValidation }

// Forbiddenf wraps ErrForbidden with a formatted reason.
func Forbiddenf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with a formatted reason.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}
