package repositoryimpl

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/atelierhub/portal/internal/activity"
	"github.com/atelierhub/portal/pkg/cerr"
)

type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Create(ctx context.Context, a *activity.Activity) error {
	metadata, err := json.Marshal(a.Metadata)
	if err != nil {
		return cerr.NewError(cerr.Internal, "failed to encode metadata", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO activities (id, type, user_id, entity_type, entity_id, project_id, description, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Type, a.UserID, a.EntityType, a.EntityID, a.ProjectID, a.Description, string(metadata), a.CreatedAt)
	if err != nil {
		return cerr.WrapExecError("activity", err)
	}
	return nil
}

func (r *SQLRepository) List(ctx context.Context, projectID string, limit, offset int) ([]*activity.Activity, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	if projectID != "" {
		where += " AND project_id = ?"
		args = append(args, projectID)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM activities"+where, args...).Scan(&total); err != nil {
		return nil, 0, cerr.WrapQueryError("activities", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, type, user_id, entity_type, entity_id, project_id, description, metadata, created_at
		 FROM activities`+where+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, cerr.WrapQueryError("activities", err)
	}
	defer rows.Close()

	var activities []*activity.Activity
	for rows.Next() {
		var (
			a        activity.Activity
			metadata string
		)
		if err := rows.Scan(&a.ID, &a.Type, &a.UserID, &a.EntityType, &a.EntityID,
			&a.ProjectID, &a.Description, &metadata, &a.CreatedAt); err != nil {
			return nil, 0, cerr.WrapQueryError("activity", err)
		}
		if err := json.Unmarshal([]byte(metadata), &a.Metadata); err != nil {
			return nil, 0, cerr.WrapQueryError("activity", err)
		}
		activities = append(activities, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, cerr.WrapQueryError("activities", err)
	}
	return activities, total, nil
}
