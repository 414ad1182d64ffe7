package repositoryimpl

import (
	"context"
	"database/sql"

	"github.com/atelierhub/portal/internal/task"
	"github.com/atelierhub/portal/pkg/cerr"
)

type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Create(ctx context.Context, t *task.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, org_id, project_id, title, description, status, assignee_id, due_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OrgID, t.ProjectID, t.Title, t.Description, string(t.Status),
		t.AssigneeID, t.DueAt, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return cerr.WrapExecError("task", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, id string) (*task.Task, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, org_id, project_id, title, description, status, assignee_id, due_at, created_at, updated_at
		 FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		return nil, cerr.WrapQueryError("task", err)
	}
	return t, nil
}

func (r *SQLRepository) List(ctx context.Context, orgID, projectID string, status task.Status, limit, offset int) ([]*task.Task, int, error) {
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
	if status != "" {
		where += " AND status = ?"
		args = append(args, string(status))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks"+where, args...).Scan(&total); err != nil {
		return nil, 0, cerr.WrapQueryError("tasks", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, org_id, project_id, title, description, status, assignee_id, due_at, created_at, updated_at
		 FROM tasks`+where+` ORDER BY created_at LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, cerr.WrapQueryError("tasks", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, cerr.WrapQueryError("task", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, cerr.WrapQueryError("tasks", err)
	}
	return tasks, total, nil
}

func (r *SQLRepository) Update(ctx context.Context, t *task.Task) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET title = ?, description = ?, status = ?, assignee_id = ?, due_at = ?, updated_at = ?
		 WHERE id = ?`,
		t.Title, t.Description, string(t.Status), t.AssigneeID, t.DueAt, t.UpdatedAt, t.ID)
	if err != nil {
		return cerr.WrapExecError("task", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	return nil
}

func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return cerr.WrapExecError("task", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return cerr.NewError(cerr.NotFound, "task not found", nil)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*task.Task, error) {
	var (
		t      task.Task
		status string
	)
	if err := row.Scan(&t.ID, &t.OrgID, &t.ProjectID, &t.Title, &t.Description, &status,
		&t.AssigneeID, &t.DueAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = task.Status(status)
	return &t, nil
}
