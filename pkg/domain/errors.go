package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a module or file does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateModule is returned when a module id is inserted twice into a graph.
	ErrDuplicateModule = errors.New("duplicate module")

	// ErrNoEntries is returned when a build is started without entry points.
	ErrNoEntries = errors.New("no entry points configured")

	// ErrBuildCancelled is returned when a build is cancelled before it completes.
	ErrBuildCancelled = errors.New("build cancelled")

	// ErrCycle marks a circular import. It never fails a build on its own.
	ErrCycle = errors.New("circular dependency")

	// ErrInvalidTransition is returned by Stage.Transition for an illegal move.
	ErrInvalidTransition = errors.New("invalid stage transition")
)

// ResolutionError reports a specifier that matched no candidate on disk.
type ResolutionError struct {
	Specifier string
	Importer  ModuleID
	Tried     []string
}

func (e *ResolutionError) Error() string {
	if e.Importer == "" {
		return fmt.Sprintf("cannot resolve entry %q (tried %s)", e.Specifier, strings.Join(e.Tried, ", "))
	}
	return fmt.Sprintf("cannot resolve %q from %s (tried %s)", e.Specifier, e.Importer, strings.Join(e.Tried, ", "))
}

func (e *ResolutionError) Unwrap() error { return ErrNotFound }

// CycleWarning describes one circular import chain.
// Path starts and ends with the same module.
type CycleWarning struct {
	Path []ModuleID
}

func (w CycleWarning) Error() string {
	parts := make([]string, len(w.Path))
	for i, id := range w.Path {
		parts[i] = string(id)
	}
	return fmt.Sprintf("circular dependency: %s", strings.Join(parts, " -> "))
}

func (w CycleWarning) Unwrap() error { return ErrCycle }

// TransformError wraps a plugin failure for one module.
type TransformError struct {
	Module ModuleID
	Plugin string
	Cause  error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("plugin %s failed on %s: %v", e.Plugin, e.Module, e.Cause)
}

func (e *TransformError) Unwrap() error { return e.Cause }

// TimeoutError reports an operation on one module that overran its budget.
// Op names the operation: "read" or "plugin <name>".
type TimeoutError struct {
	Module ModuleID
	Op     string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s on %s timed out after %s", e.Op, e.Module, e.After)
}

// EmitError reports an artifact that could not be written after all retries.
type EmitError struct {
	File     string
	Attempts int
	Cause    error
}

func (e *EmitError) Error() string {
	return fmt.Sprintf("emit %s failed after %d attempt(s): %v", e.File, e.Attempts, e.Cause)
}

func (e *EmitError) Unwrap() error { return e.Cause }

// ModuleError attaches a module id to a read or parse failure.
type ModuleError struct {
	Module ModuleID
	Op     string
	Err    error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Module, e.Err)
}

func (e *ModuleError) Unwrap() error { return e.Err }
