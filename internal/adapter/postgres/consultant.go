package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Strob0t/StaffForge/internal/domain"
	"github.com/Strob0t/StaffForge/internal/domain/consultant"
)

var consultantSort = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"code":       "code",
	"last_name":  "last_name",
	"capacity":   "capacity_percentage",
}

func (s *Store) CreateConsultant(ctx context.Context, c *consultant.Consultant) error {
	if c.Version == 0 {
		c.Version = 1
	}
	doc, err := marshalDoc(c)
	if err != nil {
		return err
	}
	av, as, err := marshalSummaries(c.Availability, c.Assignments)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO consultants (id, code, tenant_id, email, status, level, availability_status, capacity_percentage,
			last_name, search_text, skills, deleted, version, created_at, updated_at, doc, availability_summary, assignment_summary)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		c.ID, c.Code, c.TenantID, strings.ToLower(c.Profile.Email), c.Status, c.Professional.Level,
		c.Availability.Status, c.Availability.CapacityPercentage, c.Profile.LastName, searchText(c),
		pgTextArray(skillNames(c)), c.Deleted, c.Version, c.CreatedAt, updatedAt(c.CreatedAt, c.UpdatedAt),
		doc, av, as)
	if err != nil {
		return conflictWrap(err, "create consultant %s", c.Code)
	}
	return nil
}

func (s *Store) GetConsultant(ctx context.Context, idOrCode string) (*consultant.Consultant, error) {
	c, err := scanConsultant(s.db.QueryRow(ctx, lookupSQL("consultants"), idOrCode))
	if err != nil {
		return nil, notFoundWrap(err, "get consultant %s", idOrCode)
	}
	return c, nil
}

func (s *Store) ListConsultants(ctx context.Context, f consultant.Filter, p domain.ListParams) ([]consultant.Consultant, int, error) {
	p = p.Normalize("created_at", consultant.SortColumns...)
	w := &where{}
	w.add("tenant_id = ?", tenantFromCtx(ctx))
	if !f.IncludeDeleted {
		w.raw("NOT deleted")
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.Level != "" {
		w.add("level = ?", f.Level)
	}
	if f.AvailabilityStatus != "" {
		w.add("availability_status = ?", f.AvailabilityStatus)
	}
	if f.Skill != "" {
		w.add("? = ANY(skills)", strings.ToLower(f.Skill))
	}
	if f.Search != "" {
		w.add("search_text LIKE ?", "%"+escapeLike(strings.ToLower(f.Search))+"%")
	}
	return listDocs(ctx, s.db, "consultants", w, p, consultantSort, scanConsultant)
}

func (s *Store) ListConsultantIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id FROM consultants WHERE tenant_id = $1 AND NOT deleted ORDER BY id`, tenantFromCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("list consultant ids: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan consultant id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateConsultant writes c when its version matches. The availability and
// assignment snapshots are left as stored.
func (s *Store) UpdateConsultant(ctx context.Context, c *consultant.Consultant) error {
	doc, err := marshalDoc(c)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE consultants SET code = $3, email = $4, status = $5, level = $6, last_name = $7, search_text = $8,
			skills = $9, deleted = $10, updated_at = $11, doc = $12, version = version + 1
		 WHERE id = $1 AND version = $2`,
		c.ID, c.Version, c.Code, strings.ToLower(c.Profile.Email), c.Status, c.Professional.Level,
		c.Profile.LastName, searchText(c), pgTextArray(skillNames(c)), c.Deleted,
		updatedAt(c.CreatedAt, c.UpdatedAt), doc)
	if err != nil {
		return conflictWrap(err, "update consultant %s", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return checkVersion(ctx, s.db, "consultants", c.ID, c.Version)
	}
	c.Version++
	return nil
}

func (s *Store) UpdateConsultantSummary(ctx context.Context, id string, av consultant.Availability, as consultant.Assignments) error {
	avDoc, asDoc, err := marshalSummaries(av, as)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE consultants SET availability_status = $2, capacity_percentage = $3,
			availability_summary = $4, assignment_summary = $5, updated_at = GREATEST(updated_at, $6)
		 WHERE id = $1`,
		id, av.Status, av.CapacityPercentage, avDoc, asDoc, av.LastUpdated)
	return execExpectOne(tag, err, "update consultant summary %s", id)
}

func (s *Store) DeleteConsultant(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM consultants WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete consultant %s", id)
}

func scanConsultant(row scannable) (*consultant.Consultant, error) {
	var doc, avDoc, asDoc []byte
	var version int
	if err := row.Scan(&doc, &avDoc, &asDoc, &version); err != nil {
		return nil, err
	}
	var c consultant.Consultant
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, fmt.Errorf("decode consultant: %w", err)
	}
	if len(avDoc) > 0 {
		var snap consultant.Availability
		if err := json.Unmarshal(avDoc, &snap); err != nil {
			return nil, fmt.Errorf("decode availability summary: %w", err)
		}
		c.Availability.Status = snap.Status
		c.Availability.CapacityPercentage = snap.CapacityPercentage
		c.Availability.LastUpdated = snap.LastUpdated
	}
	if len(asDoc) > 0 {
		c.Assignments = consultant.Assignments{}
		if err := json.Unmarshal(asDoc, &c.Assignments); err != nil {
			return nil, fmt.Errorf("decode assignment summary: %w", err)
		}
	}
	if c.Assignments.Current == nil {
		c.Assignments.Current = []consultant.AssignmentRef{}
	}
	c.Version = version
	return &c, nil
}

func marshalSummaries(av consultant.Availability, as consultant.Assignments) ([]byte, []byte, error) {
	avDoc, err := marshalDoc(consultant.Availability{
		Status:             av.Status,
		CapacityPercentage: av.CapacityPercentage,
		LastUpdated:        av.LastUpdated,
	})
	if err != nil {
		return nil, nil, err
	}
	if as.Current == nil {
		as.Current = []consultant.AssignmentRef{}
	}
	asDoc, err := marshalDoc(as)
	if err != nil {
		return nil, nil, err
	}
	return avDoc, asDoc, nil
}

func searchText(c *consultant.Consultant) string {
	return strings.ToLower(strings.Join([]string{
		c.Profile.FirstName, c.Profile.LastName, c.Profile.Email, c.Profile.Title, c.Code,
	}, " "))
}

func skillNames(c *consultant.Consultant) []string {
	names := make([]string, 0, len(c.Skills))
	for i := range c.Skills {
		names = append(names, strings.ToLower(c.Skills[i].Name))
	}
	return names
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
