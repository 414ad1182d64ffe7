package organization

import "context"

type Repository interface {
	Create(ctx context.Context, o *Organization) error
	Get(ctx context.Context, id string) (*Organization, error)
	GetBySlug(ctx context.Context, slug string) (*Organization, error)
	List(ctx context.Context, limit, offset int) ([]*Organization, int, error)
	Update(ctx context.Context, o *Organization) error
	Delete(ctx context.Context, id string) error
}
