package domain

import (
	"context"
	"time"
)

// StageEvent is published whenever the build moves to a new stage.
type StageEvent struct {
	BuildID   string    `json:"build_id"`
	From      Stage     `json:"from"`
	To        Stage     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// ModuleEvent is published after a module went through the transform pipeline.
type ModuleEvent struct {
	BuildID  string        `json:"build_id"`
	Module   ModuleID      `json:"module"`
	Cached   bool          `json:"cached"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// LifecycleHooks are optional callbacks used for observability.
// Nil fields are skipped.
type LifecycleHooks struct {
	OnStage             func(context.Context, *StageEvent)
	OnModuleTransformed func(context.Context, *ModuleEvent)
	OnBuildDone         func(context.Context, *BuildResult)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStage: func(ctx context.Context, e *StageEvent) {
			if h.OnStage != nil {
				h.OnStage(ctx, e)
			}
			if other.OnStage != nil {
				other.OnStage(ctx, e)
			}
		},
		OnModuleTransformed: func(ctx context.Context, e *ModuleEvent) {
			if h.OnModuleTransformed != nil {
				h.OnModuleTransformed(ctx, e)
			}
			if other.OnModuleTransformed != nil {
				other.OnModuleTransformed(ctx, e)
			}
		},
		OnBuildDone: func(ctx context.Context, r *BuildResult) {
			if h.OnBuildDone != nil {
				h.OnBuildDone(ctx, r)
			}
			if other.OnBuildDone != nil {
				other.OnBuildDone(ctx, r)
			}
		},
	}
}
