package repositoryimpl

import (
	"context"
	"database/sql"

	"github.com/atelierhub/portal/internal/file"
	"github.com/atelierhub/portal/pkg/cerr"
)

type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Create(ctx context.Context, f *file.File) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO files (id, org_id, project_id, name, size, content_type, uploader_id, storage_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.OrgID, f.ProjectID, f.Name, f.Size, f.ContentType, f.UploaderID, f.StorageKey, f.CreatedAt)
	if err != nil {
		return cerr.WrapExecError("file", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, id string) (*file.File, error) {
	var f file.File
	err := r.db.QueryRowContext(ctx,
		`SELECT id, org_id, project_id, name, size, content_type, uploader_id, storage_key, created_at
		 FROM files WHERE id = ?`, id).
		Scan(&f.ID, &f.OrgID, &f.ProjectID, &f.Name, &f.Size, &f.ContentType, &f.UploaderID, &f.StorageKey, &f.CreatedAt)
	if err != nil {
		return nil, cerr.WrapQueryError("file", err)
	}
	return &f, nil
}

func (r *SQLRepository) List(ctx context.Context, orgID, projectID string, limit, offset int) ([]*file.File, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	if orgID != "" {
		where += " AND org_id = ?"
		args = append(args, orgID)
	}
	if projectID != "" {
		where += " AND project_id = ?"
		args = append(args, projectID)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files"+where, args...).Scan(&total); err != nil {
		return nil, 0, cerr.WrapQueryError("files", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, org_id, project_id, name, size, content_type, uploader_id, storage_key, created_at
		 FROM files`+where+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, cerr.WrapQueryError("files", err)
	}
	defer rows.Close()

	var files []*file.File
	for rows.Next() {
		var f file.File
		if err := rows.Scan(&f.ID, &f.OrgID, &f.ProjectID, &f.Name, &f.Size, &f.ContentType,
			&f.UploaderID, &f.StorageKey, &f.CreatedAt); err != nil {
			return nil, 0, cerr.WrapQueryError("file", err)
		}
		files = append(files, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, cerr.WrapQueryError("files", err)
	}
	return files, total, nil
}

func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return cerr.WrapExecError("file", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return cerr.NewError(cerr.NotFound, "file not found", nil)
	}
	return nil
}
