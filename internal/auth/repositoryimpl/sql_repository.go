package repositoryimpl

import (
	"context"
	"database/sql"
	"strings"

	"github.com/atelierhub/portal/internal/auth"
	"github.com/atelierhub/portal/internal/rbac"
	"github.com/atelierhub/portal/pkg/cerr"
)

type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Create(ctx context.Context, u *auth.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, org_id, email, name, role, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.OrgID, u.Email, u.Name, string(u.Role), u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return cerr.NewError(cerr.AlreadyExists, "user already exists", err)
		}
		return cerr.WrapExecError("user", err)
	}
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, id string) (*auth.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, org_id, email, name, role, password_hash, created_at, updated_at
		 FROM users WHERE id = ?`, id))
}

func (r *SQLRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, org_id, email, name, role, password_hash, created_at, updated_at
		 FROM users WHERE email = ?`, email))
}

func (r *SQLRepository) List(ctx context.Context, orgID string, limit, offset int) ([]*auth.User, int, error) {
	where, args := "", []any{}
	if orgID != "" {
		where = " WHERE org_id = ?"
		args = append(args, orgID)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+where, args...).Scan(&total); err != nil {
		return nil, 0, cerr.WrapQueryError("users", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, org_id, email, name, role, password_hash, created_at, updated_at
		 FROM users`+where+` ORDER BY created_at LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, cerr.WrapQueryError("users", err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, cerr.WrapQueryError("users", err)
	}
	return users, total, nil
}

func (r *SQLRepository) Update(ctx context.Context, u *auth.User) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = ?, role = ?, password_hash = ?, updated_at = ? WHERE id = ?`,
		u.Name, string(u.Role), u.PasswordHash, u.UpdatedAt, u.ID)
	if err != nil {
		return cerr.WrapExecError("user", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return cerr.NewError(cerr.NotFound, "user not found", nil)
	}
	return nil
}

func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return cerr.WrapExecError("user", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return cerr.NewError(cerr.NotFound, "user not found", nil)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) scanOne(row *sql.Row) (*auth.User, error) {
	u, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func scanUser(row rowScanner) (*auth.User, error) {
	var u auth.User
	var role string
	if err := row.Scan(&u.ID, &u.OrgID, &u.Email, &u.Name, &role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, cerr.WrapQueryError("user", err)
	}
	u.Role = rbac.Role(role)
	return &u, nil
}
