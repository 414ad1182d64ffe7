package repositoryimpl

import (
	"context"
	"database/sql"
	"strings"

	"github.com/atelierhub/portal/internal/pushsubscription"
	"github.com/atelierhub/portal/pkg/cerr"
)

type SQLRepository struct {
	db *sql.DB
}

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Create(ctx context.Context, s *pushsubscription.Subscription) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh_key, auth_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Endpoint, s.P256dhKey, s.AuthKey, s.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return cerr.NewError(cerr.AlreadyExists, "subscription already exists", err)
		}
		return cerr.WrapExecError("push subscription", err)
	}
	return nil
}

func (r *SQLRepository) List(ctx context.Context) ([]*pushsubscription.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, endpoint, p256dh_key, auth_key, created_at
		 FROM push_subscriptions ORDER BY created_at`)
	if err != nil {
		return nil, cerr.WrapQueryError("push subscriptions", err)
	}
	defer rows.Close()

	var subs []*pushsubscription.Subscription
	for rows.Next() {
		var s pushsubscription.Subscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256dhKey, &s.AuthKey, &s.CreatedAt); err != nil {
			return nil, cerr.WrapQueryError("push subscription", err)
		}
		subs = append(subs, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, cerr.WrapQueryError("push subscriptions", err)
	}
	return subs, nil
}

func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE id = ?`, id)
	if err != nil {
		return cerr.WrapExecError("push subscription", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return cerr.NewError(cerr.NotFound, "subscription not found", nil)
	}
	return nil
}

func (r *SQLRepository) FindByEndpoint(ctx context.Context, endpoint string) (*pushsubscription.Subscription, error) {
	var s pushsubscription.Subscription
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, endpoint, p256dh_key, auth_key, created_at
		 FROM push_subscriptions WHERE endpoint = ?`, endpoint).
		Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256dhKey, &s.AuthKey, &s.CreatedAt)
	if err != nil {
		return nil, cerr.WrapQueryError("push subscription", err)
	}
	return &s, nil
}

func (r *SQLRepository) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return cerr.WrapExecError("push subscription", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return cerr.NewError(cerr.NotFound, "subscription not found", nil)
	}
	return nil
}
