package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/Strob0t/StaffForge/internal/domain/event"
	"github.com/Strob0t/StaffForge/internal/port/eventstore"
)

var _ eventstore.Store = (*EventStore)(nil)

// EventStore is an in-process analytics event log.
type EventStore struct {
	mu     sync.RWMutex
	events []event.Event
	seen   map[string]bool
}

// NewEventStore returns an empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{seen: make(map[string]bool)}
}

func (s *EventStore) Append(_ context.Context, ev *event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[ev.ID] {
		return nil
	}
	s.seen[ev.ID] = true
	s.events = append(s.events, *ev)
	return nil
}

func (s *EventStore) Load(ctx context.Context, filter event.Filter, cursor string, limit int) (*event.Page, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	tid := tenantFromCtx(ctx)

	s.mu.RLock()
	matched := make([]event.Event, 0)
	for i := range s.events {
		if s.events[i].TenantID == tid && filter.Matches(&s.events[i]) {
			matched = append(matched, s.events[i])
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.After(matched[j].OccurredAt)
	})

	start := 0
	if cursor != "" {
		for i := range matched {
			if matched[i].ID == cursor {
				start = i + 1
				break
			}
		}
	}
	rest := matched[start:]
	pg := &event.Page{Total: len(matched), Events: []event.Event{}}
	if len(rest) > limit {
		pg.HasMore = true
		rest = rest[:limit]
	}
	pg.Events = append(pg.Events, rest...)
	if len(pg.Events) > 0 {
		pg.Cursor = pg.Events[len(pg.Events)-1].ID
	}
	return pg, nil
}
