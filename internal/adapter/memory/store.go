// Package memory provides an in-process implementation of database.Store.
// It backs the "memory" store driver and the service and HTTP tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/domain/tenant"
	"github.com/Strob0t/StaffForge/internal/middleware"
	"github.com/Strob0t/StaffForge/internal/port/database"
)

var _ database.Store = (*Store)(nil)

// Store keeps all records in maps guarded by one RWMutex. Records are deep
// copied on the way in and out so callers never share state with the store.
type Store struct {
	mu           sync.RWMutex
	tenants      map[string]*tenant.Tenant
	consultants  map[string]*consultantRow
	availability map[string]*availabilityRow
	assignments  map[string]*assignmentRow

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	now func() time.Time
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		tenants:      make(map[string]*tenant.Tenant),
		consultants:  make(map[string]*consultantRow),
		availability: make(map[string]*availabilityRow),
		assignments:  make(map[string]*assignmentRow),
		locks:        make(map[string]*sync.Mutex),
		now:          time.Now,
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// InConsultantTx serializes fn with every other InConsultantTx call for the
// same consultant. Writes made by fn are applied immediately and are not
// rolled back when fn fails.
func (s *Store) InConsultantTx(ctx context.Context, consultantID string, fn func(tx database.Store) error) error {
	l := s.consultantLock(consultantID)
	l.Lock()
	defer l.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(s)
}

func (s *Store) consultantLock(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// --- Tenants ---

func (s *Store) CreateTenant(_ context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		if t.Slug == req.Slug {
			return nil, fmt.Errorf("create tenant %s: %w", req.Slug, domain.ErrConflict)
		}
	}
	now := s.now().UTC()
	t := &tenant.Tenant{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Slug:      req.Slug,
		Enabled:   true,
		Settings:  map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.tenants[t.ID] = t
	return clone(t), nil
}

func (s *Store) GetTenant(_ context.Context, id string) (*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if t.ID == id || t.Slug == id {
			return clone(t), nil
		}
	}
	return nil, fmt.Errorf("get tenant %s: %w", id, domain.ErrNotFound)
}

func (s *Store) ListTenants(context.Context) ([]tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tenant.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, *clone(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateTenant(_ context.Context, id string, req tenant.UpdateRequest) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, fmt.Errorf("update tenant %s: %w", id, domain.ErrNotFound)
	}
	if req.Name != "" {
		t.Name = req.Name
	}
	if req.Enabled != nil {
		t.Enabled = *req.Enabled
	}
	t.UpdatedAt = s.now().UTC()
	return clone(t), nil
}

// --- helpers ---

func tenantFromCtx(ctx context.Context) string {
	return middleware.TenantIDFromContext(ctx)
}

// clone deep-copies v through its JSON form, which every domain type
// round-trips losslessly.
func clone[T any](v *T) *T {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("memory: clone %T: %v", v, err))
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		panic(fmt.Sprintf("memory: clone %T: %v", v, err))
	}
	return out
}

// page sorts items with less, honoring the sort order, and returns the
// requested window together with the total count.
func page[T any](items []T, p domain.ListParams, less func(a, b *T) bool) ([]T, int) {
	sort.SliceStable(items, func(i, j int) bool {
		if p.SortOrder == domain.SortAsc {
			return less(&items[i], &items[j])
		}
		return less(&items[j], &items[i])
	})
	total := len(items)
	if p.Skip >= total {
		return []T{}, total
	}
	end := p.Skip + p.Limit
	if end > total {
		end = total
	}
	return items[p.Skip:end], total
}

// matchesKey reports whether key addresses a record by ID or by code.
func matchesKey(key, id, code string) bool {
	return key == id || strings.EqualFold(key, code)
}
