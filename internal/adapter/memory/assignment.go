package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/domain/assignment"
)

type assignmentRow struct {
	a *assignment.Assignment
}

func (s *Store) CreateAssignment(_ context.Context, a *assignment.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[a.ID]; ok {
		return fmt.Errorf("create assignment %s: %w", a.ID, domain.ErrConflict)
	}
	if a.Version == 0 {
		a.Version = 1
	}
	s.assignments[a.ID] = &assignmentRow{a: clone(a)}
	return nil
}

func (s *Store) GetAssignment(_ context.Context, idOrCode string) (*assignment.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if row, ok := s.assignments[idOrCode]; ok {
		return clone(row.a), nil
	}
	for _, row := range s.assignments {
		if matchesKey(idOrCode, row.a.ID, row.a.Code) {
			return clone(row.a), nil
		}
	}
	return nil, fmt.Errorf("get assignment %s: %w", idOrCode, domain.ErrNotFound)
}

func (s *Store) ListAssignments(ctx context.Context, f assignment.Filter, p domain.ListParams) ([]assignment.Assignment, int, error) {
	p = p.Normalize("start_date", assignment.SortColumns...)
	tid := tenantFromCtx(ctx)

	s.mu.RLock()
	items := make([]assignment.Assignment, 0)
	for _, row := range s.assignments {
		if row.a.TenantID == tid && f.Matches(row.a) {
			items = append(items, *clone(row.a))
		}
	}
	s.mu.RUnlock()

	out, total := page(items, p, assignmentLess(p.SortBy))
	return out, total, nil
}

func assignmentLess(col string) func(a, b *assignment.Assignment) bool {
	switch col {
	case "end_date":
		return func(a, b *assignment.Assignment) bool { return a.Timeline.ProposedEnd.Before(b.Timeline.ProposedEnd) }
	case "created_at":
		return func(a, b *assignment.Assignment) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "updated_at":
		return func(a, b *assignment.Assignment) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	case "status":
		return func(a, b *assignment.Assignment) bool { return a.Status < b.Status }
	case "percentage":
		return func(a, b *assignment.Assignment) bool { return a.Allocation.Percentage < b.Allocation.Percentage }
	default:
		return func(a, b *assignment.Assignment) bool {
			return a.Timeline.ProposedStart.Before(b.Timeline.ProposedStart)
		}
	}
}

func (s *Store) ConsultantAssignments(_ context.Context, consultantID string) ([]*assignment.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*assignment.Assignment, 0)
	for _, row := range s.assignments {
		if row.a.ConsultantID == consultantID {
			out = append(out, clone(row.a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timeline.ProposedStart.Before(out[j].Timeline.ProposedStart)
	})
	return out, nil
}

func (s *Store) UpdateAssignment(_ context.Context, a *assignment.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.assignments[a.ID]
	if !ok {
		return fmt.Errorf("update assignment %s: %w", a.ID, domain.ErrNotFound)
	}
	if row.a.Version != a.Version {
		return fmt.Errorf("update assignment %s: version %d is stale: %w", a.ID, a.Version, domain.ErrConflict)
	}
	a.Version++
	row.a = clone(a)
	return nil
}

func (s *Store) DeleteAssignment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assignments[id]; !ok {
		return fmt.Errorf("delete assignment %s: %w", id, domain.ErrNotFound)
	}
	delete(s.assignments, id)
	return nil
}
