package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/domain/availability"
)

type availabilityRow struct {
	r *availability.Record
}

func (s *Store) CreateAvailability(_ context.Context, r *availability.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.availability[r.ID]; ok {
		return fmt.Errorf("create availability %s: %w", r.ID, domain.ErrConflict)
	}
	if r.Version == 0 {
		r.Version = 1
	}
	s.availability[r.ID] = &availabilityRow{r: clone(r)}
	return nil
}

func (s *Store) GetAvailability(_ context.Context, idOrCode string) (*availability.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if row, ok := s.availability[idOrCode]; ok {
		return clone(row.r), nil
	}
	for _, row := range s.availability {
		if matchesKey(idOrCode, row.r.ID, row.r.Code) {
			return clone(row.r), nil
		}
	}
	return nil, fmt.Errorf("get availability %s: %w", idOrCode, domain.ErrNotFound)
}

func (s *Store) ListAvailability(ctx context.Context, f availability.Filter, p domain.ListParams) ([]availability.Record, int, error) {
	p = p.Normalize("start_date", availability.SortColumns...)
	tid := tenantFromCtx(ctx)

	s.mu.RLock()
	items := make([]availability.Record, 0)
	for _, row := range s.availability {
		if row.r.TenantID == tid && f.Matches(row.r) {
			items = append(items, *clone(row.r))
		}
	}
	s.mu.RUnlock()

	out, total := page(items, p, availabilityLess(p.SortBy))
	return out, total, nil
}

func availabilityLess(col string) func(a, b *availability.Record) bool {
	switch col {
	case "end_date":
		return func(a, b *availability.Record) bool { return a.Period.End.Before(b.Period.End) }
	case "created_at":
		return func(a, b *availability.Record) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "updated_at":
		return func(a, b *availability.Record) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	case "type":
		return func(a, b *availability.Record) bool { return a.Type < b.Type }
	default:
		return func(a, b *availability.Record) bool { return a.Period.Start.Before(b.Period.Start) }
	}
}

func (s *Store) ConsultantAvailability(_ context.Context, consultantID string) ([]*availability.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*availability.Record, 0)
	for _, row := range s.availability {
		if row.r.ConsultantID == consultantID {
			out = append(out, clone(row.r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Start.Before(out[j].Period.Start) })
	return out, nil
}

func (s *Store) UpdateAvailability(_ context.Context, r *availability.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.availability[r.ID]
	if !ok {
		return fmt.Errorf("update availability %s: %w", r.ID, domain.ErrNotFound)
	}
	if row.r.Version != r.Version {
		return fmt.Errorf("update availability %s: version %d is stale: %w", r.ID, r.Version, domain.ErrConflict)
	}
	r.Version++
	row.r = clone(r)
	return nil
}

func (s *Store) DeleteAvailability(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.availability[id]; !ok {
		return fmt.Errorf("delete availability %s: %w", id, domain.ErrNotFound)
	}
	delete(s.availability, id)
	return nil
}
