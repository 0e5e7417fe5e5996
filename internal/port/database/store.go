// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/domain/assignment"
	"github.com/Strob0t/StaffForge/internal/domain/availability"
	"github.com/Strob0t/StaffForge/internal/domain/consultant"
	"github.com/Strob0t/StaffForge/internal/domain/tenant"
)

// Store is the port interface for database operations.
//
// List operations are scoped to the tenant in the context. By-id lookups
// accept a UUID or a code, are not tenant-filtered and return soft-deleted
// records; tenant checks and the deleted filter belong to the services.
// Updates use optimistic locking on Version and fail with domain.ErrConflict
// when the stored version differs; on success Version is incremented.
type Store interface {
	// Tenants
	CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error)
	GetTenant(ctx context.Context, id string) (*tenant.Tenant, error)
	ListTenants(ctx context.Context) ([]tenant.Tenant, error)
	UpdateTenant(ctx context.Context, id string, req tenant.UpdateRequest) (*tenant.Tenant, error)

	// Consultants
	CreateConsultant(ctx context.Context, c *consultant.Consultant) error
	GetConsultant(ctx context.Context, idOrCode string) (*consultant.Consultant, error)
	ListConsultants(ctx context.Context, f consultant.Filter, p domain.ListParams) ([]consultant.Consultant, int, error)
	ListConsultantIDs(ctx context.Context) ([]string, error)
	UpdateConsultant(ctx context.Context, c *consultant.Consultant) error
	// UpdateConsultantSummary overwrites the denormalized snapshots without
	// touching Version, so projections never collide with user edits.
	UpdateConsultantSummary(ctx context.Context, id string, av consultant.Availability, as consultant.Assignments) error
	DeleteConsultant(ctx context.Context, id string) error

	// Availability
	CreateAvailability(ctx context.Context, r *availability.Record) error
	GetAvailability(ctx context.Context, idOrCode string) (*availability.Record, error)
	ListAvailability(ctx context.Context, f availability.Filter, p domain.ListParams) ([]availability.Record, int, error)
	// ConsultantAvailability returns every record of the consultant,
	// including deleted and cancelled ones, ordered by start date.
	ConsultantAvailability(ctx context.Context, consultantID string) ([]*availability.Record, error)
	UpdateAvailability(ctx context.Context, r *availability.Record) error
	DeleteAvailability(ctx context.Context, id string) error

	// Assignments
	CreateAssignment(ctx context.Context, a *assignment.Assignment) error
	GetAssignment(ctx context.Context, idOrCode string) (*assignment.Assignment, error)
	ListAssignments(ctx context.Context, f assignment.Filter, p domain.ListParams) ([]assignment.Assignment, int, error)
	// ConsultantAssignments returns every assignment of the consultant,
	// including deleted ones, ordered by start date.
	ConsultantAssignments(ctx context.Context, consultantID string) ([]*assignment.Assignment, error)
	UpdateAssignment(ctx context.Context, a *assignment.Assignment) error
	DeleteAssignment(ctx context.Context, id string) error

	// InConsultantTx runs fn while holding an exclusive lock on the
	// consultant, so a conflict check and the write it guards cannot
	// interleave with another booking of the same consultant. Writes made
	// through tx commit together or not at all.
	InConsultantTx(ctx context.Context, consultantID string, fn func(tx Store) error) error

	// Ping reports whether the backing database is reachable.
	Ping(ctx context.Context) error
}
