package pushnotification_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/atelierhub/portal/internal/eventbus"
	"github.com/atelierhub/portal/internal/pushnotification"
)

type fakeNotifier struct {
	mu       sync.Mutex
	payloads []*pushnotification.NotificationPayload
}

func (n *fakeNotifier) SendToAll(_ context.Context, p *pushnotification.NotificationPayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, p)
}

func (n *fakeNotifier) sent() []*pushnotification.NotificationPayload {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*pushnotification.NotificationPayload(nil), n.payloads...)
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

func TestDispatcherForwardsStatusChange(t *testing.T) {
	bus := eventbus.New()
	notifier := &fakeNotifier{}
	d := pushnotification.NewDispatcher(bus, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	// Give the dispatcher time to subscribe before publishing.
	time.Sleep(20 * time.Millisecond)

	bus.PublishNew(eventbus.EventTaskStatusChanged, "u1", "task", "t1", "p1",
		"status changed from not_started to in_progress",
		map[string]string{"from": "not_started", "to": "in_progress"})

	waitFor(t, func() bool { return len(notifier.sent()) == 1 })
	got := notifier.sent()[0]
	assert.Equal(t, "Task status updated", got.Title)
	assert.Equal(t, "status changed from not_started to in_progress", got.Body)
	assert.Equal(t, "/projects/p1", got.URL)
	assert.Equal(t, "t1", got.Tag)
}

func TestDispatcherForwardsComments(t *testing.T) {
	bus := eventbus.New()
	notifier := &fakeNotifier{}
	d := pushnotification.NewDispatcher(bus, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	bus.PublishNew(eventbus.EventCommentCreated, "u1", "comment", "c1", "p1",
		"commented on a task", nil)

	waitFor(t, func() bool { return len(notifier.sent()) == 1 })
	assert.Equal(t, "New comment", notifier.sent()[0].Title)
}

func TestDispatcherIgnoresOtherEvents(t *testing.T) {
	bus := eventbus.New()
	notifier := &fakeNotifier{}
	d := pushnotification.NewDispatcher(bus, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	bus.PublishNew(eventbus.EventFileUploaded, "u1", "file", "f1", "p1", "file uploaded", nil)
	bus.PublishNew(eventbus.EventTaskStatusChanged, "u1", "task", "t1", "p1", "status changed", nil)

	waitFor(t, func() bool { return len(notifier.sent()) == 1 })
	assert.Equal(t, "Task status updated", notifier.sent()[0].Title)
}
