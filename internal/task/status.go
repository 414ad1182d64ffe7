package task

import (
	"fmt"

	"github.com/atelierhub/portal/pkg/cerr"
)

// Status is a task's position in its lifecycle.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusCompleted  Status = "completed"
	StatusOnHold     Status = "on_hold"
)

// Statuses lists every declared status.
var Statuses = []Status{
	StatusNotStarted,
	StatusInProgress,
	StatusInReview,
	StatusCompleted,
	StatusOnHold,
}

// ParseStatus converts an untyped string from an I/O boundary into a
// Status. Unrecognized values are rejected before any table lookup.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusNotStarted, StatusInProgress, StatusInReview, StatusCompleted, StatusOnHold:
		return Status(s), nil
	}
	return "", cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("unknown status %q", s), nil)
}

// Transitions maps each status to the statuses reachable from it in one
// step. A Transitions table is built once at startup and read-only
// afterwards; guards take it as an explicit dependency so tests can
// substitute alternate tables.
type Transitions struct {
	edges map[Status][]Status
}

func NewTransitions(edges map[Status][]Status) *Transitions {
	copied := make(map[Status][]Status, len(edges))
	for from, tos := range edges {
		copied[from] = append([]Status(nil), tos...)
	}
	return &Transitions{edges: copied}
}

// DefaultTransitions returns the product lifecycle table.
//
// Reopening a completed task resumes active work (completed → in_progress);
// it never returns to not_started. No status lists itself, so a
// same-status request is rejected by the strict lookup.
func DefaultTransitions() *Transitions {
	return NewTransitions(map[Status][]Status{
		StatusNotStarted: {StatusInProgress, StatusOnHold},
		StatusInProgress: {StatusInReview, StatusOnHold},
		StatusInReview:   {StatusInProgress, StatusCompleted},
		StatusCompleted:  {StatusInProgress},
		StatusOnHold:     {StatusInProgress, StatusNotStarted},
	})
}

// CanTransition reports whether to is reachable from from in one step.
// The check is a strict table lookup: a status not listed as its own
// successor cannot "transition" to itself.
func (t *Transitions) CanTransition(from, to Status) bool {
	for _, next := range t.edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// From returns the statuses reachable from the given status.
func (t *Transitions) From(from Status) []Status {
	return append([]Status(nil), t.edges[from]...)
}

// Validate checks referential closure: every source and every target in
// the table must be a declared status.
func (t *Transitions) Validate() error {
	declared := make(map[Status]struct{}, len(Statuses))
	for _, s := range Statuses {
		declared[s] = struct{}{}
	}
	for from, tos := range t.edges {
		if _, ok := declared[from]; !ok {
			return fmt.Errorf("transition table keys undeclared status %q", from)
		}
		for _, to := range tos {
			if _, ok := declared[to]; !ok {
				return fmt.Errorf("transition table maps %q to undeclared status %q", from, to)
			}
		}
	}
	return nil
}
