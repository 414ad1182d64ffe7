package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(8)
	defer bus.Unsubscribe(id)

	bus.PublishNew(EventTaskStatusChanged, "user-1", "task", "task-1", "proj-1",
		"status changed", map[string]string{"from": "not_started", "to": "in_progress"})

	select {
	case ev := <-ch:
		assert.Equal(t, EventTaskStatusChanged, ev.Type)
		assert.Equal(t, "user-1", ev.ActorID)
		assert.Equal(t, "task-1", ev.EntityID)
		assert.Equal(t, "proj-1", ev.ProjectID)
		assert.Equal(t, "in_progress", ev.Metadata["to"])
		assert.NotEmpty(t, ev.ID)
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(1)
	defer bus.Unsubscribe(id)

	// Second publish must not block even though nobody drains the channel.
	done := make(chan struct{})
	go func() {
		bus.PublishNew(EventTaskCreated, "u", "task", "t1", "p", "", nil)
		bus.PublishNew(EventTaskCreated, "u", "task", "t2", "p", "", nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on full subscriber buffer")
	}

	ev := <-ch
	assert.Equal(t, "t1", ev.EntityID)
	select {
	case ev := <-ch:
		t.Fatalf("expected second event to be dropped, got %v", ev)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(1)
	bus.Unsubscribe(id)

	_, ok := <-ch
	require.False(t, ok, "channel should be closed after unsubscribe")
}

func TestMultipleSubscribers(t *testing.T) {
	bus := New()
	id1, ch1 := bus.Subscribe(4)
	id2, ch2 := bus.Subscribe(4)
	defer bus.Unsubscribe(id1)
	defer bus.Unsubscribe(id2)

	bus.PublishNew(EventCommentCreated, "u", "comment", "c1", "p", "", nil)

	for _, ch := range []<-chan *Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, EventCommentCreated, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}
