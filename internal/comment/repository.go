package comment

import "context"

type Repository interface {
	Create(ctx context.Context, c *Comment) error
	Get(ctx context.Context, id string) (*Comment, error)
	List(ctx context.Context, projectID, taskID string, limit, offset int) ([]*Comment, int, error)
	Delete(ctx context.Context, id string) error
}
