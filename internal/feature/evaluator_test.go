package feature_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atelierhub/portal/internal/feature"
	"github.com/atelierhub/portal/pkg/cerr"
)

type fakeRepository struct {
	flags map[string]*feature.Flag
	err   error
}

func (r *fakeRepository) Get(_ context.Context, name string) (*feature.Flag, error) {
	if r.err != nil {
		return nil, r.err
	}
	f, ok := r.flags[name]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "feature not found", nil)
	}
	return f, nil
}

func (r *fakeRepository) List(_ context.Context) ([]*feature.Flag, error) {
	var out []*feature.Flag
	for _, f := range r.flags {
		out = append(out, f)
	}
	return out, nil
}

func (r *fakeRepository) Upsert(_ context.Context, f *feature.Flag) error {
	r.flags[f.Name] = f
	return nil
}

func (r *fakeRepository) Delete(_ context.Context, name string) error {
	delete(r.flags, name)
	return nil
}

func newEvaluator(repo feature.Repository) *feature.Evaluator {
	return feature.NewEvaluator(repo, slog.Default())
}

func TestIsEnabledMissingFlag(t *testing.T) {
	e := newEvaluator(&fakeRepository{flags: map[string]*feature.Flag{}})
	assert.False(t, e.IsEnabled(context.Background(), "betaFeatures", "u1"))
}

func TestIsEnabledGlobally(t *testing.T) {
	e := newEvaluator(&fakeRepository{flags: map[string]*feature.Flag{
		"betaFeatures": {Name: "betaFeatures", Enabled: true},
	}})
	assert.True(t, e.IsEnabled(context.Background(), "betaFeatures", "u1"))
	assert.True(t, e.IsEnabled(context.Background(), "betaFeatures", "anyone"))
}

func TestIsEnabledAllowList(t *testing.T) {
	e := newEvaluator(&fakeRepository{flags: map[string]*feature.Flag{
		"betaFeatures": {Name: "betaFeatures", Enabled: false, EnabledFor: []string{"u1"}},
	}})
	assert.True(t, e.IsEnabled(context.Background(), "betaFeatures", "u1"))
	assert.False(t, e.IsEnabled(context.Background(), "betaFeatures", "u2"))
	assert.False(t, e.IsEnabled(context.Background(), "betaFeatures", ""))
}

func TestIsEnabledStoreFailure(t *testing.T) {
	e := newEvaluator(&fakeRepository{err: cerr.NewError(cerr.Unavailable, "store down", nil)})
	assert.False(t, e.IsEnabled(context.Background(), "betaFeatures", "u1"))
}

func TestFlagAppliesTo(t *testing.T) {
	f := &feature.Flag{Name: "clientPortalV2", Enabled: false, EnabledFor: []string{"u1", "u2"}}
	assert.True(t, f.AppliesTo("u1"))
	assert.True(t, f.AppliesTo("u2"))
	assert.False(t, f.AppliesTo("u3"))

	f.Enabled = true
	assert.True(t, f.AppliesTo("u3"))
}
