package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/StaffForge/internal/domain/event"
	"github.com/Strob0t/StaffForge/internal/port/eventstore"
)

var _ eventstore.Store = (*EventStore)(nil)

// EventStore implements eventstore.Store using PostgreSQL (append-only).
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Append inserts ev into analytics_events. Replays of a stored event ID
// are ignored.
func (s *EventStore) Append(ctx context.Context, ev *event.Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	tid := ev.TenantID
	if tid == "" {
		tid = tenantFromCtx(ctx)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO analytics_events (id, tenant_id, event_type, entity_type, entity_id, consultant_id, actor_id, request_id, data, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO NOTHING`,
		ev.ID, tid, string(ev.Type), ev.EntityType, ev.EntityID, ev.ConsultantID, ev.ActorID, ev.RequestID, data, ev.OccurredAt)
	if err != nil {
		return fmt.Errorf("append event %s: %w", ev.ID, err)
	}
	return nil
}

// Load returns a cursor-paginated page of events, newest first. The cursor
// is the ID of the last event of the previous page.
func (s *EventStore) Load(ctx context.Context, filter event.Filter, cursor string, limit int) (*event.Page, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	w := &where{}
	w.add("tenant_id = ?", tenantFromCtx(ctx))
	if filter.EntityType != "" {
		w.add("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != "" {
		w.add("entity_id = ?", filter.EntityID)
	}
	if filter.ConsultantID != "" {
		w.add("consultant_id = ?", filter.ConsultantID)
	}
	if filter.Type != "" {
		w.add("event_type = ?", string(filter.Type))
	}
	if filter.After != nil {
		w.add("occurred_at > ?", *filter.After)
	}
	if filter.Before != nil {
		w.add("occurred_at < ?", *filter.Before)
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM analytics_events WHERE `+w.String(), w.args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	if cursor != "" {
		w.add("(occurred_at, seq) < (SELECT occurred_at, seq FROM analytics_events WHERE id = ?)", cursor)
	}
	// Fetch limit+1 to detect hasMore.
	limitArg := w.next(limit + 1)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT id, tenant_id, event_type, entity_type, entity_id, consultant_id, actor_id, request_id, data, occurred_at
		 FROM analytics_events WHERE %s ORDER BY occurred_at DESC, seq DESC LIMIT %s`, w, limitArg), w.args...)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	events := make([]event.Event, 0)
	for rows.Next() {
		var ev event.Event
		var typ string
		var data []byte
		if err := rows.Scan(&ev.ID, &ev.TenantID, &typ, &ev.EntityType, &ev.EntityID, &ev.ConsultantID,
			&ev.ActorID, &ev.RequestID, &data, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = event.Type(typ)
		if len(data) > 0 {
			if err := json.Unmarshal(data, &ev.Data); err != nil {
				return nil, fmt.Errorf("decode event %s: %w", ev.ID, err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pg := &event.Page{Total: total}
	if len(events) > limit {
		pg.HasMore = true
		events = events[:limit]
	}
	pg.Events = events
	if len(events) > 0 {
		pg.Cursor = events[len(events)-1].ID
	}
	return pg, nil
}
