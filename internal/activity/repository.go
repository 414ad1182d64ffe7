package activity

import "context"

type Repository interface {
	Create(ctx context.Context, a *Activity) error
	List(ctx context.Context, projectID string, limit, offset int) ([]*Activity, int, error)
}
