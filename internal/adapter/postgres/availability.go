package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/domain/availability"
)

var availabilitySort = map[string]string{
	"start_date": "start_date",
	"end_date":   "end_date",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"type":       "type",
}

func (s *Store) CreateAvailability(ctx context.Context, r *availability.Record) error {
	if r.Version == 0 {
		r.Version = 1
	}
	doc, err := marshalDoc(r)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO availability_records (id, code, tenant_id, consultant_id, type, status, approval_status,
			start_date, end_date, deleted, deleted_at, version, created_at, updated_at, doc)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		r.ID, r.Code, r.TenantID, r.ConsultantID, r.Type, r.Status, approvalStatus(r),
		r.Period.Start, r.Period.End, r.Deleted, nullTime(r.DeletedAt), r.Version,
		r.CreatedAt, updatedAt(r.CreatedAt, r.UpdatedAt), doc)
	if err != nil {
		return conflictWrap(err, "create availability %s", r.Code)
	}
	return nil
}

func (s *Store) GetAvailability(ctx context.Context, idOrCode string) (*availability.Record, error) {
	r, err := scanAvailability(s.db.QueryRow(ctx, lookupSQL("availability_records"), idOrCode))
	if err != nil {
		return nil, notFoundWrap(err, "get availability %s", idOrCode)
	}
	return r, nil
}

func (s *Store) ListAvailability(ctx context.Context, f availability.Filter, p domain.ListParams) ([]availability.Record, int, error) {
	p = p.Normalize("start_date", availability.SortColumns...)
	w := &where{}
	w.add("tenant_id = ?", tenantFromCtx(ctx))
	if !f.IncludeDeleted {
		w.raw("NOT deleted")
	}
	if f.ConsultantID != "" {
		w.add("consultant_id = ?", f.ConsultantID)
	}
	if f.Type != "" {
		w.add("type = ?", f.Type)
	}
	if f.From != nil {
		w.add("end_date >= ?", *f.From)
	}
	if f.To != nil {
		w.add("start_date <= ?", *f.To)
	}
	if f.ApprovalStatus != "" {
		w.add("approval_status = ?", f.ApprovalStatus)
	}
	return listDocs(ctx, s.db, "availability_records", w, p, availabilitySort, scanAvailability)
}

func (s *Store) ConsultantAvailability(ctx context.Context, consultantID string) ([]*availability.Record, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+selectColumns["availability_records"]+` FROM availability_records
		 WHERE consultant_id = $1 ORDER BY start_date ASC, id ASC`, consultantID)
	if err != nil {
		return nil, fmt.Errorf("load availability of %s: %w", consultantID, err)
	}
	defer rows.Close()

	out := make([]*availability.Record, 0)
	for rows.Next() {
		r, err := scanAvailability(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpdateAvailability(ctx context.Context, r *availability.Record) error {
	doc, err := marshalDoc(r)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE availability_records SET type = $3, status = $4, approval_status = $5, start_date = $6, end_date = $7,
			deleted = $8, deleted_at = $9, updated_at = $10, doc = $11, version = version + 1
		 WHERE id = $1 AND version = $2`,
		r.ID, r.Version, r.Type, r.Status, approvalStatus(r), r.Period.Start, r.Period.End,
		r.Deleted, nullTime(r.DeletedAt), updatedAt(r.CreatedAt, r.UpdatedAt), doc)
	if err != nil {
		return fmt.Errorf("update availability %s: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return checkVersion(ctx, s.db, "availability_records", r.ID, r.Version)
	}
	r.Version++
	return nil
}

func (s *Store) DeleteAvailability(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM availability_records WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete availability %s", id)
}

func scanAvailability(row scannable) (*availability.Record, error) {
	var doc []byte
	var version int
	if err := row.Scan(&doc, &version); err != nil {
		return nil, err
	}
	var r availability.Record
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, fmt.Errorf("decode availability: %w", err)
	}
	r.Version = version
	return &r, nil
}

func approvalStatus(r *availability.Record) string {
	if r.TimeOff == nil {
		return ""
	}
	return string(r.TimeOff.ApprovalStatus)
}
