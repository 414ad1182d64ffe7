package file

import "context"

type Repository interface {
	Create(ctx context.Context, f *File) error
	Get(ctx context.Context, id string) (*File, error)
	List(ctx context.Context, orgID, projectID string, limit, offset int) ([]*File, int, error)
	Delete(ctx context.Context, id string) error
}
