package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/domain/assignment"
)

var assignmentSort = map[string]string{
	"start_date": "start_date",
	"end_date":   "end_date",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"status":     "status",
	"percentage": "percentage",
}

func (s *Store) CreateAssignment(ctx context.Context, a *assignment.Assignment) error {
	if a.Version == 0 {
		a.Version = 1
	}
	doc, err := marshalDoc(a)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO assignments (id, code, tenant_id, consultant_id, client_id, project_id, status, percentage,
			start_date, end_date, deleted, deleted_at, version, created_at, updated_at, doc)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		a.ID, a.Code, a.TenantID, a.ConsultantID, a.ClientID, a.ProjectID, a.Status, a.Allocation.Percentage,
		a.Timeline.ProposedStart, a.Timeline.ProposedEnd, a.Deleted, nullTime(a.DeletedAt), a.Version,
		a.CreatedAt, updatedAt(a.CreatedAt, a.UpdatedAt), doc)
	if err != nil {
		return conflictWrap(err, "create assignment %s", a.Code)
	}
	return nil
}

func (s *Store) GetAssignment(ctx context.Context, idOrCode string) (*assignment.Assignment, error) {
	a, err := scanAssignment(s.db.QueryRow(ctx, lookupSQL("assignments"), idOrCode))
	if err != nil {
		return nil, notFoundWrap(err, "get assignment %s", idOrCode)
	}
	return a, nil
}

func (s *Store) ListAssignments(ctx context.Context, f assignment.Filter, p domain.ListParams) ([]assignment.Assignment, int, error) {
	p = p.Normalize("start_date", assignment.SortColumns...)
	w := &where{}
	w.add("tenant_id = ?", tenantFromCtx(ctx))
	if !f.IncludeDeleted {
		w.raw("NOT deleted")
	}
	if f.ConsultantID != "" {
		w.add("consultant_id = ?", f.ConsultantID)
	}
	if f.ClientID != "" {
		w.add("client_id = ?", f.ClientID)
	}
	if f.ProjectID != "" {
		w.add("project_id = ?", f.ProjectID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	return listDocs(ctx, s.db, "assignments", w, p, assignmentSort, scanAssignment)
}

func (s *Store) ConsultantAssignments(ctx context.Context, consultantID string) ([]*assignment.Assignment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+selectColumns["assignments"]+` FROM assignments
		 WHERE consultant_id = $1 ORDER BY start_date ASC, id ASC`, consultantID)
	if err != nil {
		return nil, fmt.Errorf("load assignments of %s: %w", consultantID, err)
	}
	defer rows.Close()

	out := make([]*assignment.Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateAssignment(ctx context.Context, a *assignment.Assignment) error {
	doc, err := marshalDoc(a)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE assignments SET client_id = $3, project_id = $4, status = $5, percentage = $6,
			start_date = $7, end_date = $8, deleted = $9, deleted_at = $10, updated_at = $11, doc = $12,
			version = version + 1
		 WHERE id = $1 AND version = $2`,
		a.ID, a.Version, a.ClientID, a.ProjectID, a.Status, a.Allocation.Percentage,
		a.Timeline.ProposedStart, a.Timeline.ProposedEnd, a.Deleted, nullTime(a.DeletedAt),
		updatedAt(a.CreatedAt, a.UpdatedAt), doc)
	if err != nil {
		return fmt.Errorf("update assignment %s: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return checkVersion(ctx, s.db, "assignments", a.ID, a.Version)
	}
	a.Version++
	return nil
}

func (s *Store) DeleteAssignment(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete assignment %s", id)
}

func scanAssignment(row scannable) (*assignment.Assignment, error) {
	var doc []byte
	var version int
	if err := row.Scan(&doc, &version); err != nil {
		return nil, err
	}
	var a assignment.Assignment
	if err := json.Unmarshal(doc, &a); err != nil {
		return nil, fmt.Errorf("decode assignment: %w", err)
	}
	a.Version = version
	return &a, nil
}
