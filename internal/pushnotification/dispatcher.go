package pushnotification

import (
	"context"
	"fmt"

	"github.com/atelierhub/portal/internal/eventbus"
)

// Dispatcher turns bus events into push notifications. Only events worth
// interrupting someone for are forwarded; everything else on the bus is
// ignored.
type Dispatcher struct {
	bus      *eventbus.Bus
	notifier Notifier
}

func NewDispatcher(bus *eventbus.Bus, notifier Notifier) *Dispatcher {
	return &Dispatcher{bus: bus, notifier: notifier}
}

// Run consumes events until ctx is canceled. Call it from its own goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	id, events := d.bus.Subscribe(64)
	defer d.bus.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			d.dispatch(ctx, ev)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev *eventbus.Event) {
	var title string
	switch ev.Type {
	case eventbus.EventTaskStatusChanged:
		title = "Task status updated"
	case eventbus.EventCommentCreated:
		title = "New comment"
	default:
		return
	}

	payload := &NotificationPayload{
		Title: title,
		Body:  ev.Description,
		Tag:   ev.EntityID,
	}
	if ev.ProjectID != "" {
		payload.URL = fmt.Sprintf("/projects/%s", ev.ProjectID)
	}
	d.notifier.SendToAll(ctx, payload)
}
