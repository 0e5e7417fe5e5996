package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/StaffForge/internal/port/database"
)

var _ database.Store = (*Store)(nil)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements database.Store using PostgreSQL. Records live in a
// JSONB doc column next to the scalar columns used for filtering, sorting
// and locking.
type Store struct {
	pool *pgxpool.Pool
	db   querier
	inTx bool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InConsultantTx runs fn inside a transaction that holds a row lock on the
// consultant. Nested calls reuse the outer transaction.
func (s *Store) InConsultantTx(ctx context.Context, consultantID string, fn func(tx database.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `SELECT id FROM consultants WHERE id = $1 FOR UPDATE`, consultantID).Scan(&id)
		if err != nil {
			return notFoundWrap(err, "lock consultant %s", consultantID)
		}
		return fn(&Store{pool: s.pool, db: tx, inTx: true})
	})
}

// selectColumns is the column list each table's decoder expects.
var selectColumns = map[string]string{
	"consultants":          "doc, availability_summary, assignment_summary, version",
	"availability_records": "doc, version",
	"assignments":          "doc, version",
}

func lookupSQL(table string) string {
	return fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 OR lower(code) = lower($1) LIMIT 1`, selectColumns[table], table)
}
