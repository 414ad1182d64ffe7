package repositoryimpl

import (
	"context"
	"database/sql"
	"strings"

	"github.com/atelierhub/portal/internal/organization"
	"github.com/atelierhub/portal/pkg/cerr"
)

type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Create(ctx context.Context, o *organization.Organization) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO organizations (id, name, slug, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		o.ID, o.Name, o.Slug, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return cerr.NewError(cerr.AlreadyExists, "organization already exists", err)
		}
		return cerr.WrapExecError("organization", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, id string) (*organization.Organization, error) {
	return scanOrg(r.db.QueryRowContext(ctx,
		`SELECT id, name, slug, created_at, updated_at FROM organizations WHERE id = ?`, id))
}

func (r *SQLRepository) GetBySlug(ctx context.Context, slug string) (*organization.Organization, error) {
	return scanOrg(r.db.QueryRowContext(ctx,
		`SELECT id, name, slug, created_at, updated_at FROM organizations WHERE slug = ?`, slug))
}

func (r *SQLRepository) List(ctx context.Context, limit, offset int) ([]*organization.Organization, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations`).Scan(&total); err != nil {
		return nil, 0, cerr.WrapQueryError("organizations", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, slug, created_at, updated_at FROM organizations
		 ORDER BY created_at LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, cerr.WrapQueryError("organizations", err)
	}
	defer rows.Close()

	var orgs []*organization.Organization
	for rows.Next() {
		var o organization.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, 0, cerr.WrapQueryError("organization", err)
		}
		orgs = append(orgs, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, cerr.WrapQueryError("organizations", err)
	}
	return orgs, total, nil
}

func (r *SQLRepository) Update(ctx context.Context, o *organization.Organization) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE organizations SET name = ?, updated_at = ? WHERE id = ?`,
		o.Name, o.UpdatedAt, o.ID)
	if err != nil {
		return cerr.WrapExecError("organization", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return cerr.NewError(cerr.NotFound, "organization not found", nil)
	}
	return nil
}

func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM organizations WHERE id = ?`, id)
	if err != nil {
		return cerr.WrapExecError("organization", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return cerr.NewError(cerr.NotFound, "organization not found", nil)
	}
	return nil
}

func scanOrg(row *sql.Row) (*organization.Organization, error) {
	var o organization.Organization
	if err := row.Scan(&o.ID, &o.Name, &o.Slug, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, cerr.WrapQueryError("organization", err)
	}
	return &o, nil
}
