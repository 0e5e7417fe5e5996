// Package service contains application services.
package service

import (
	"context"
	"time"

	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/middleware"
)

// Options tunes a single service call.
type Options struct {
	// SkipTenantCheck allows by-id access to records of another tenant.
	SkipTenantCheck bool
	// SkipConflictCheck bypasses overlap and allocation checks. The
	// duplicate-assignment guard still runs.
	SkipConflictCheck bool
	// HardDelete removes the record instead of flagging it deleted.
	HardDelete bool
	// IncludeDeleted returns soft-deleted records from by-id lookups and lists.
	IncludeDeleted bool
	// List carries pagination and sorting for list operations.
	List domain.ListParams
}

// authorize applies the tenant and soft-delete rules to a record loaded by id.
func authorize(ctx context.Context, entity, id, tenantID string, deleted bool, opts Options) error {
	if !opts.SkipTenantCheck && tenantID != middleware.TenantIDFromContext(ctx) {
		return domain.Forbiddenf("%s %s belongs to another tenant", entity, id)
	}
	if deleted && !opts.IncludeDeleted {
		return domain.NotFoundf("%s %s", entity, id)
	}
	return nil
}

// clock is embedded by services that stamp records.
type clock struct {
	nowFn func() time.Time
}

func newClock() clock { return clock{nowFn: time.Now} }

func (c clock) now() time.Time { return c.nowFn().UTC() }
