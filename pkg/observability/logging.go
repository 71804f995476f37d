package observability

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aretw0/bale/pkg/domain"
)

// BuildOutcome classifies a finished build for metrics and logs.
func BuildOutcome(r *domain.BuildResult) string {
	switch {
	case r.Succeeded():
		return "succeeded"
	case errors.Is(r.Err(), domain.ErrBuildCancelled):
		return "cancelled"
	default:
		return "failed"
	}
}

// LogHooks logs stage changes and per-module results at debug level.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStage: func(ctx context.Context, e *domain.StageEvent) {
			logger.DebugContext(ctx, "stage", "build", e.BuildID, "from", e.From, "to", e.To)
		},
		OnModuleTransformed: func(ctx context.Context, e *domain.ModuleEvent) {
			if e.Err != nil {
				logger.DebugContext(ctx, "module failed", "module", e.Module, "err", e.Err)
				return
			}
			logger.DebugContext(ctx, "module transformed", "module", e.Module, "cached", e.Cached, "duration", e.Duration)
		},
	}
}
