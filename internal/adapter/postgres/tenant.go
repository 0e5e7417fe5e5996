package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/StaffForge/internal/domain/tenant"
)

const tenantColumns = `id, name, slug, enabled, settings, created_at, updated_at`

func (s *Store) CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	row := s.db.QueryRow(ctx,
		`INSERT INTO tenants (id, name, slug) VALUES ($1, $2, $3)
		 RETURNING `+tenantColumns,
		uuid.New().String(), req.Name, req.Slug)
	t, err := scanTenant(row)
	if err != nil {
		return nil, conflictWrap(err, "create tenant %s", req.Slug)
	}
	return t, nil
}

func (s *Store) GetTenant(ctx context.Context, id string) (*tenant.Tenant, error) {
	t, err := scanTenant(s.db.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id::text = $1 OR slug = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get tenant %s", id)
	}
	return t, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]tenant.Tenant, error) {
	rows, err := s.db.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	tenants := make([]tenant.Tenant, 0)
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, *t)
	}
	return tenants, rows.Err()
}

func (s *Store) UpdateTenant(ctx context.Context, id string, req tenant.UpdateRequest) (*tenant.Tenant, error) {
	t, err := scanTenant(s.db.QueryRow(ctx,
		`UPDATE tenants SET
			name = COALESCE(NULLIF($2, ''), name),
			enabled = COALESCE($3, enabled),
			updated_at = $4
		 WHERE id::text = $1
		 RETURNING `+tenantColumns,
		id, req.Name, req.Enabled, time.Now().UTC()))
	if err != nil {
		return nil, notFoundWrap(err, "update tenant %s", id)
	}
	return t, nil
}

func scanTenant(row scannable) (*tenant.Tenant, error) {
	var t tenant.Tenant
	var settings []byte
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Enabled, &settings, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Settings = map[string]string{}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &t.Settings); err != nil {
			return nil, fmt.Errorf("decode tenant settings: %w", err)
		}
	}
	return &t, nil
}
