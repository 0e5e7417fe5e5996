package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/domain/consultant"
)

type consultantRow struct {
	c *consultant.Consultant
}

func (s *Store) CreateConsultant(_ context.Context, c *consultant.Consultant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.consultants {
		if row.c.TenantID == c.TenantID && !row.c.Deleted && row.c.Profile.Email == c.Profile.Email {
			return fmt.Errorf("create consultant %s: email already in use: %w", c.Code, domain.ErrConflict)
		}
	}
	if c.Version == 0 {
		c.Version = 1
	}
	s.consultants[c.ID] = &consultantRow{c: clone(c)}
	return nil
}

func (s *Store) GetConsultant(_ context.Context, idOrCode string) (*consultant.Consultant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.findConsultant(idOrCode)
	if row == nil {
		return nil, fmt.Errorf("get consultant %s: %w", idOrCode, domain.ErrNotFound)
	}
	return clone(row.c), nil
}

func (s *Store) findConsultant(idOrCode string) *consultantRow {
	if row, ok := s.consultants[idOrCode]; ok {
		return row
	}
	for _, row := range s.consultants {
		if matchesKey(idOrCode, row.c.ID, row.c.Code) {
			return row
		}
	}
	return nil
}

func (s *Store) ListConsultants(ctx context.Context, f consultant.Filter, p domain.ListParams) ([]consultant.Consultant, int, error) {
	p = p.Normalize("created_at", consultant.SortColumns...)
	tid := tenantFromCtx(ctx)

	s.mu.RLock()
	items := make([]consultant.Consultant, 0)
	for _, row := range s.consultants {
		if row.c.TenantID == tid && f.Matches(row.c) {
			items = append(items, *clone(row.c))
		}
	}
	s.mu.RUnlock()

	out, total := page(items, p, consultantLess(p.SortBy))
	return out, total, nil
}

func consultantLess(col string) func(a, b *consultant.Consultant) bool {
	switch col {
	case "updated_at":
		return func(a, b *consultant.Consultant) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	case "code":
		return func(a, b *consultant.Consultant) bool { return a.Code < b.Code }
	case "last_name":
		return func(a, b *consultant.Consultant) bool { return a.Profile.LastName < b.Profile.LastName }
	case "capacity":
		return func(a, b *consultant.Consultant) bool {
			return a.Availability.CapacityPercentage < b.Availability.CapacityPercentage
		}
	default:
		return func(a, b *consultant.Consultant) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
}

func (s *Store) ListConsultantIDs(ctx context.Context) ([]string, error) {
	tid := tenantFromCtx(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0)
	for _, row := range s.consultants {
		if row.c.TenantID == tid && !row.c.Deleted {
			ids = append(ids, row.c.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) UpdateConsultant(_ context.Context, c *consultant.Consultant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.consultants[c.ID]
	if !ok {
		return fmt.Errorf("update consultant %s: %w", c.ID, domain.ErrNotFound)
	}
	if row.c.Version != c.Version {
		return fmt.Errorf("update consultant %s: version %d is stale: %w", c.ID, c.Version, domain.ErrConflict)
	}
	c.Version++
	next := clone(c)
	// Snapshots are owned by the projector.
	next.Availability.Status = row.c.Availability.Status
	next.Availability.CapacityPercentage = row.c.Availability.CapacityPercentage
	next.Availability.LastUpdated = row.c.Availability.LastUpdated
	next.Assignments = row.c.Assignments
	row.c = next
	return nil
}

func (s *Store) UpdateConsultantSummary(_ context.Context, id string, av consultant.Availability, as consultant.Assignments) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.consultants[id]
	if !ok {
		return fmt.Errorf("update consultant summary %s: %w", id, domain.ErrNotFound)
	}
	row.c.Availability.Status = av.Status
	row.c.Availability.CapacityPercentage = av.CapacityPercentage
	row.c.Availability.LastUpdated = av.LastUpdated
	as.Current = append([]consultant.AssignmentRef(nil), as.Current...)
	row.c.Assignments = as
	row.c.UpdatedAt = maxTime(row.c.UpdatedAt, av.LastUpdated)
	return nil
}

func (s *Store) DeleteConsultant(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.consultants[id]; !ok {
		return fmt.Errorf("delete consultant %s: %w", id, domain.ErrNotFound)
	}
	delete(s.consultants, id)
	return nil
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
