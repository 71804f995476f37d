package domain

import "fmt"

// Stage is the current step of a build.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageResolving    Stage = "resolving"
	StageTransforming Stage = "transforming"
	StageLinking      Stage = "linking"
	StageEmitting     Stage = "emitting"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

var allowedStages = map[Stage][]Stage{
	StageIdle:         {StageResolving},
	StageResolving:    {StageTransforming, StageFailed},
	StageTransforming: {StageLinking, StageFailed},
	StageLinking:      {StageEmitting, StageFailed},
	StageEmitting:     {StageDone, StageFailed},
	StageDone:         {StageIdle, StageResolving},
	StageFailed:       {StageIdle, StageResolving},
}

// Transition validates a move from s to next.
func (s Stage) Transition(next Stage) error {
	for _, allowed := range allowedStages[s] {
		if allowed == next {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
}

// Terminal reports whether the stage ends a build.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}
