package repositoryimpl

import (
	"context"
	"database/sql"

	"github.com/atelierhub/portal/internal/comment"
	"github.com/atelierhub/portal/pkg/cerr"
)

type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Create(ctx context.Context, c *comment.Comment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO comments (id, project_id, task_id, author_id, body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.ProjectID, c.TaskID, c.AuthorID, c.Body, c.CreatedAt)
	if err != nil {
		return cerr.WrapExecError("comment", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, id string) (*comment.Comment, error) {
	var c comment.Comment
	err := r.db.QueryRowContext(ctx,
		`SELECT id, project_id, task_id, author_id, body, created_at FROM comments WHERE id = ?`, id).
		Scan(&c.ID, &c.ProjectID, &c.TaskID, &c.AuthorID, &c.Body, &c.CreatedAt)
	if err != nil {
		return nil, cerr.WrapQueryError("comment", err)
	}
	return &c, nil
}

func (r *SQLRepository) List(ctx context.Context, projectID, taskID string, limit, offset int) ([]*comment.Comment, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	if projectID != "" {
		where += " AND project_id = ?"
		args = append(args, projectID)
	}
	if taskID != "" {
		where += " AND task_id = ?"
		args = append(args, taskID)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM comments"+where, args...).Scan(&total); err != nil {
		return nil, 0, cerr.WrapQueryError("comments", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, project_id, task_id, author_id, body, created_at
		 FROM comments`+where+` ORDER BY created_at LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, cerr.WrapQueryError("comments", err)
	}
	defer rows.Close()

	var comments []*comment.Comment
	for rows.Next() {
		var c comment.Comment
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.TaskID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, 0, cerr.WrapQueryError("comment", err)
		}
		comments = append(comments, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, cerr.WrapQueryError("comments", err)
	}
	return comments, total, nil
}

func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return cerr.WrapExecError("comment", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return cerr.NewError(cerr.NotFound, "comment not found", nil)
	}
	return nil
}
