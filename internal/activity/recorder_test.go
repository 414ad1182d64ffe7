package activity_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhub/portal/internal/activity"
	"github.com/atelierhub/portal/internal/eventbus"
)

type fakeRepository struct {
	mu       sync.Mutex
	entries  []*activity.Activity
	failNext bool
}

func (r *fakeRepository) Create(_ context.Context, a *activity.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext {
		r.failNext = false
		return errors.New("store down")
	}
	r.entries = append(r.entries, a)
	return nil
}

func (r *fakeRepository) List(_ context.Context, _ string, _, _ int) ([]*activity.Activity, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries, len(r.entries), nil
}

func (r *fakeRepository) recorded() []*activity.Activity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*activity.Activity(nil), r.entries...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRecorderPersistsEvents(t *testing.T) {
	repo := &fakeRepository{}
	bus := eventbus.New()
	rec := activity.NewRecorder(repo, bus, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	// Give the recorder a moment to subscribe before publishing.
	time.Sleep(10 * time.Millisecond)

	bus.PublishNew(eventbus.EventTaskStatusChanged, "u-team", "task", "t1", "p1",
		"status changed from not_started to in_progress",
		map[string]string{"from": "not_started", "to": "in_progress"})

	waitFor(t, func() bool { return len(repo.recorded()) == 1 })

	got := repo.recorded()[0]
	assert.Equal(t, string(eventbus.EventTaskStatusChanged), got.Type)
	assert.Equal(t, "u-team", got.UserID)
	assert.Equal(t, "task", got.EntityType)
	assert.Equal(t, "t1", got.EntityID)
	assert.Equal(t, "p1", got.ProjectID)
	assert.Equal(t, "in_progress", got.Metadata["to"])
	require.NotEmpty(t, got.ID)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestRecorderSurvivesStoreFailure(t *testing.T) {
	repo := &fakeRepository{failNext: true}
	bus := eventbus.New()
	rec := activity.NewRecorder(repo, bus, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rec.Run(ctx)

	time.Sleep(10 * time.Millisecond)

	bus.PublishNew(eventbus.EventTaskCreated, "u1", "task", "t1", "p1", "task created", nil)
	bus.PublishNew(eventbus.EventTaskDeleted, "u1", "task", "t1", "p1", "task deleted", nil)

	// The first write fails and is dropped; the second still lands.
	waitFor(t, func() bool { return len(repo.recorded()) == 1 })
	assert.Equal(t, string(eventbus.EventTaskDeleted), repo.recorded()[0].Type)
}

func TestRecorderStopsOnCancel(t *testing.T) {
	repo := &fakeRepository{}
	bus := eventbus.New()
	rec := activity.NewRecorder(repo, bus, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("recorder did not stop")
	}
}
