package feature

import "context"

type Repository interface {
	Get(ctx context.Context, name string) (*Flag, error)
	List(ctx context.Context) ([]*Flag, error)
	Upsert(ctx context.Context, f *Flag) error
	Delete(ctx context.Context, name string) error
}
