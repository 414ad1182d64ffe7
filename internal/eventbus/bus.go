package eventbus

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type EventType string

const (
	EventTaskCreated       EventType = "task.created"
	EventTaskUpdated       EventType = "task.updated"
	EventTaskStatusChanged EventType = "task.status_changed"
	EventTaskDeleted       EventType = "task.deleted"
	EventProjectCreated    EventType = "project.created"
	EventProjectUpdated    EventType = "project.updated"
	EventCommentCreated    EventType = "comment.created"
	EventFileUploaded      EventType = "file.uploaded"
	EventFileDeleted       EventType = "file.deleted"
	EventFlagChanged       EventType = "feature.flag_changed"
	EventUserCreated       EventType = "user.created"
)

// Event describes a state-changing action taken by a user. Subscribers
// (the activity recorder among them) consume events off the bus without
// blocking the publishing request.
type Event struct {
	ID          string
	Type        EventType
	ActorID     string
	EntityType  string
	EntityID    string
	ProjectID   string
	Description string
	Metadata    map[string]string
	CreatedAt   time.Time
}

type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan *Event
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[string]chan *Event),
	}
}

func (b *Bus) Subscribe(bufSize int) (string, <-chan *Event) {
	id := ulid.Make().String()
	ch := make(chan *Event, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// buffer full, drop event for this subscriber
		}
	}
}

func (b *Bus) PublishNew(eventType EventType, actorID, entityType, entityID, projectID, description string, metadata map[string]string) {
	b.Publish(&Event{
		ID:          ulid.Make().String(),
		Type:        eventType,
		ActorID:     actorID,
		EntityType:  entityType,
		EntityID:    entityID,
		ProjectID:   projectID,
		Description: description,
		Metadata:    metadata,
		CreatedAt:   time.Now(),
	})
}
