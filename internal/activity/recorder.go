package activity

import (
	"context"
	"log/slog"

	"github.com/atelierhub/portal/internal/eventbus"
)

// Recorder subscribes to the event bus and persists one Activity per event.
// Recording is best-effort: a failed write is logged and dropped, never
// surfaced to the request that published the event.
type Recorder struct {
	repo   Repository
	bus    *eventbus.Bus
	logger *slog.Logger
}

func NewRecorder(repo Repository, bus *eventbus.Bus, logger *slog.Logger) *Recorder {
	return &Recorder{repo: repo, bus: bus, logger: logger}
}

// Run consumes events until ctx is canceled. Call it from its own goroutine.
func (r *Recorder) Run(ctx context.Context) {
	id, events := r.bus.Subscribe(64)
	defer r.bus.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			r.record(ctx, ev)
		}
	}
}

func (r *Recorder) record(ctx context.Context, ev *eventbus.Event) {
	a := &Activity{
		ID:          ev.ID,
		Type:        string(ev.Type),
		UserID:      ev.ActorID,
		EntityType:  ev.EntityType,
		EntityID:    ev.EntityID,
		ProjectID:   ev.ProjectID,
		Description: ev.Description,
		Metadata:    ev.Metadata,
		CreatedAt:   ev.CreatedAt,
	}
	if err := r.repo.Create(ctx, a); err != nil {
		r.logger.WarnContext(ctx, "failed to record activity",
			slog.String("activity_id", a.ID),
			slog.String("type", a.Type),
			slog.String("error", err.Error()))
	}
}
