package repositoryimpl

import (
	"context"
	"database/sql"

	"github.com/atelierhub/portal/internal/project"
	"github.com/atelierhub/portal/pkg/cerr"
)

type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Create(ctx context.Context, p *project.Project) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (id, org_id, name, description, archived, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrgID, p.Name, p.Description, p.Archived, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return cerr.WrapExecError("project", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, id string) (*project.Project, error) {
	var p project.Project
	err := r.db.QueryRowContext(ctx,
		`SELECT id, org_id, name, description, archived, created_at, updated_at
		 FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.OrgID, &p.Name, &p.Description, &p.Archived, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, cerr.WrapQueryError("project", err)
	}
	return &p, nil
}

func (r *SQLRepository) List(ctx context.Context, orgID string, includeArchived bool, limit, offset int) ([]*project.Project, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	if orgID != "" {
		where += " AND org_id = ?"
		args = append(args, orgID)
	}
	if !includeArchived {
		where += " AND archived = 0"
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM projects"+where, args...).Scan(&total); err != nil {
		return nil, 0, cerr.WrapQueryError("projects", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, org_id, name, description, archived, created_at, updated_at
		 FROM projects`+where+` ORDER BY created_at LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, cerr.WrapQueryError("projects", err)
	}
	defer rows.Close()

	var projects []*project.Project
	for rows.Next() {
		var p project.Project
		if err := rows.Scan(&p.ID, &p.OrgID, &p.Name, &p.Description, &p.Archived, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, cerr.WrapQueryError("project", err)
		}
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, cerr.WrapQueryError("projects", err)
	}
	return projects, total, nil
}

func (r *SQLRepository) Update(ctx context.Context, p *project.Project) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, description = ?, archived = ?, updated_at = ? WHERE id = ?`,
		p.Name, p.Description, p.Archived, p.UpdatedAt, p.ID)
	if err != nil {
		return cerr.WrapExecError("project", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return cerr.NewError(cerr.NotFound, "project not found", nil)
	}
	return nil
}

func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return cerr.WrapExecError("project", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return cerr.NewError(cerr.NotFound, "project not found", nil)
	}
	return nil
}
