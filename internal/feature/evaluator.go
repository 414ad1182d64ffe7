package feature

import (
	"context"
	"log/slog"

	"github.com/atelierhub/portal/pkg/cerr"
)

// Evaluator answers "is this feature on for this user". Every failure mode
// evaluates to false: a missing flag, a storage outage, or an unknown user
// all leave the feature off rather than exposing it by accident.
type Evaluator struct {
	repo   Repository
	logger *slog.Logger
}

func NewEvaluator(repo Repository, logger *slog.Logger) *Evaluator {
	return &Evaluator{repo: repo, logger: logger}
}

// IsEnabled never returns an error: callers branch on the boolean and the
// cause of a false stays in the logs.
func (e *Evaluator) IsEnabled(ctx context.Context, name, userID string) bool {
	f, err := e.repo.Get(ctx, name)
	if err != nil {
		if !cerr.IsCode(err, cerr.NotFound) {
			e.logger.WarnContext(ctx, "feature flag lookup failed",
				slog.String("flag", name), slog.String("error", err.Error()))
		}
		return false
	}
	return f.AppliesTo(userID)
}
