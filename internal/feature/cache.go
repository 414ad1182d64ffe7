package feature

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "feature:"

// CachedRepository is a read-through redis cache in front of another
// Repository. Flag reads are hot (every evaluation hits one) while writes
// are rare, so cached entries live for a short TTL and writes invalidate
// eagerly. Redis being down degrades to direct reads, never to an error.
type CachedRepository struct {
	inner  Repository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedRepository(inner Repository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedRepository {
	return &CachedRepository{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (r *CachedRepository) Get(ctx context.Context, name string) (*Flag, error) {
	key := cacheKeyPrefix + name
	raw, err := r.client.Get(ctx, key).Bytes()
	if err == nil {
		var f Flag
		if err := json.Unmarshal(raw, &f); err == nil {
			return &f, nil
		}
		// Corrupt entry: drop it and fall through to the store.
		r.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		r.logger.WarnContext(ctx, "feature cache read failed",
			slog.String("flag", name), slog.String("error", err.Error()))
	}

	f, err := r.inner.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(f); err == nil {
		if err := r.client.Set(ctx, key, raw, r.ttl).Err(); err != nil {
			r.logger.WarnContext(ctx, "feature cache write failed",
				slog.String("flag", name), slog.String("error", err.Error()))
		}
	}
	return f, nil
}

func (r *CachedRepository) List(ctx context.Context) ([]*Flag, error) {
	return r.inner.List(ctx)
}

func (r *CachedRepository) Upsert(ctx context.Context, f *Flag) error {
	if err := r.inner.Upsert(ctx, f); err != nil {
		return err
	}
	r.invalidate(ctx, f.Name)
	return nil
}

func (r *CachedRepository) Delete(ctx context.Context, name string) error {
	if err := r.inner.Delete(ctx, name); err != nil {
		return err
	}
	r.invalidate(ctx, name)
	return nil
}

func (r *CachedRepository) invalidate(ctx context.Context, name string) {
	if err := r.client.Del(ctx, cacheKeyPrefix+name).Err(); err != nil {
		r.logger.WarnContext(ctx, "feature cache invalidation failed",
			slog.String("flag", name), slog.String("error", err.Error()))
	}
}
