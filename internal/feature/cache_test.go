package feature_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhub/portal/internal/feature"
	"github.com/atelierhub/portal/pkg/cerr"
)

type fakeFlagRepository struct {
	flags map[string]*feature.Flag
	gets  int
}

func newFakeFlagRepository(flags ...*feature.Flag) *fakeFlagRepository {
	r := &fakeFlagRepository{flags: map[string]*feature.Flag{}}
	for _, f := range flags {
		r.flags[f.Name] = f
	}
	return r
}

func (r *fakeFlagRepository) Get(_ context.Context, name string) (*feature.Flag, error) {
	r.gets++
	f, ok := r.flags[name]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "flag not found", nil)
	}
	copied := *f
	return &copied, nil
}

func (r *fakeFlagRepository) List(_ context.Context) ([]*feature.Flag, error) {
	var out []*feature.Flag
	for _, f := range r.flags {
		out = append(out, f)
	}
	return out, nil
}

func (r *fakeFlagRepository) Upsert(_ context.Context, f *feature.Flag) error {
	copied := *f
	r.flags[f.Name] = &copied
	return nil
}

func (r *fakeFlagRepository) Delete(_ context.Context, name string) error {
	if _, ok := r.flags[name]; !ok {
		return cerr.NewError(cerr.NotFound, "flag not found", nil)
	}
	delete(r.flags, name)
	return nil
}

func newCachedRepository(t *testing.T, inner feature.Repository) (*feature.CachedRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return feature.NewCachedRepository(inner, client, 30*time.Second, slog.Default()), mr
}

func betaFlag() *feature.Flag {
	now := time.Now().UTC().Truncate(time.Second)
	return &feature.Flag{Name: "beta-reports", Enabled: true, CreatedAt: now, UpdatedAt: now}
}

func TestCachedGetServesFromCache(t *testing.T) {
	inner := newFakeFlagRepository(betaFlag())
	cached, _ := newCachedRepository(t, inner)
	ctx := context.Background()

	first, err := cached.Get(ctx, "beta-reports")
	require.NoError(t, err)
	assert.True(t, first.Enabled)
	require.Equal(t, 1, inner.gets)

	// The second read is a cache hit and never reaches the store.
	second, err := cached.Get(ctx, "beta-reports")
	require.NoError(t, err)
	assert.True(t, second.Enabled)
	assert.Equal(t, 1, inner.gets)
}

func TestCachedUpsertInvalidates(t *testing.T) {
	inner := newFakeFlagRepository(betaFlag())
	cached, _ := newCachedRepository(t, inner)
	ctx := context.Background()

	_, err := cached.Get(ctx, "beta-reports")
	require.NoError(t, err)

	updated := betaFlag()
	updated.Enabled = false
	require.NoError(t, cached.Upsert(ctx, updated))

	got, err := cached.Get(ctx, "beta-reports")
	require.NoError(t, err)
	assert.False(t, got.Enabled, "stale cached value should be invalidated by the write")
}

func TestCachedDeleteInvalidates(t *testing.T) {
	inner := newFakeFlagRepository(betaFlag())
	cached, _ := newCachedRepository(t, inner)
	ctx := context.Background()

	_, err := cached.Get(ctx, "beta-reports")
	require.NoError(t, err)

	require.NoError(t, cached.Delete(ctx, "beta-reports"))

	_, err = cached.Get(ctx, "beta-reports")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestCachedGetDegradesWhenRedisDown(t *testing.T) {
	inner := newFakeFlagRepository(betaFlag())
	cached, mr := newCachedRepository(t, inner)
	ctx := context.Background()

	mr.Close()

	got, err := cached.Get(ctx, "beta-reports")
	require.NoError(t, err, "redis outage should degrade to direct reads")
	assert.True(t, got.Enabled)
}

func TestCachedGetDropsCorruptEntry(t *testing.T) {
	inner := newFakeFlagRepository(betaFlag())
	cached, mr := newCachedRepository(t, inner)
	ctx := context.Background()

	require.NoError(t, mr.Set("feature:beta-reports", "not json"))

	got, err := cached.Get(ctx, "beta-reports")
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	require.Equal(t, 1, inner.gets, "corrupt entry should fall through to the store")
}
