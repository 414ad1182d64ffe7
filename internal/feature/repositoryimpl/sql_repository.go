package repositoryimpl

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/atelierhub/portal/internal/feature"
	"github.com/atelierhub/portal/pkg/cerr"
)

type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Get(ctx context.Context, name string) (*feature.Flag, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT name, enabled, enabled_for, created_at, updated_at FROM features WHERE name = ?`, name)
	f, err := scanFlag(row)
	if err != nil {
		return nil, cerr.WrapQueryError("feature", err)
	}
	return f, nil
}

func (r *SQLRepository) List(ctx context.Context) ([]*feature.Flag, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, enabled, enabled_for, created_at, updated_at FROM features ORDER BY name`)
	if err != nil {
		return nil, cerr.WrapQueryError("features", err)
	}
	defer rows.Close()

	var flags []*feature.Flag
	for rows.Next() {
		f, err := scanFlag(rows)
		if err != nil {
			return nil, cerr.WrapQueryError("feature", err)
		}
		flags = append(flags, f)
	}
	if err := rows.Err(); err != nil {
		return nil, cerr.WrapQueryError("features", err)
	}
	return flags, nil
}

func (r *SQLRepository) Upsert(ctx context.Context, f *feature.Flag) error {
	enabledFor, err := json.Marshal(f.EnabledFor)
	if err != nil {
		return cerr.NewError(cerr.Internal, "failed to encode enabled_for", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO features (name, enabled, enabled_for, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET enabled = excluded.enabled,
		   enabled_for = excluded.enabled_for, updated_at = excluded.updated_at`,
		f.Name, f.Enabled, string(enabledFor), f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return cerr.WrapExecError("feature", err)
	}
	return nil
}

func (r *SQLRepository) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM features WHERE name = ?`, name)
	if err != nil {
		return cerr.WrapExecError("feature", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return cerr.NewError(cerr.NotFound, "feature not found", nil)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlag(row rowScanner) (*feature.Flag, error) {
	var (
		f          feature.Flag
		enabledFor string
	)
	if err := row.Scan(&f.Name, &f.Enabled, &enabledFor, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(enabledFor), &f.EnabledFor); err != nil {
		return nil, err
	}
	return &f, nil
}
