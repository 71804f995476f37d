package domain

import (
	"errors"
	"time"
)

// BuildStats are the counters of one build.
type BuildStats struct {
	Modules      int           `json:"modules"`
	Transformed  int           `json:"transformed"`
	CacheHits    int           `json:"cache_hits"`
	Chunks       int           `json:"chunks"`
	AssetsInline int           `json:"assets_inline"`
	AssetsFiles  int           `json:"assets_files"`
	BytesWritten int           `json:"bytes_written"`
	Duration     time.Duration `json:"duration"`
}

// Artifact is a file written by the emitter.
type Artifact struct {
	Name  string `json:"name"`
	Bytes int    `json:"bytes"`
	Hash  string `json:"hash,omitempty"`
}

// BuildResult is the outcome of one build.
//
// Errors holds every failure collected during the build; a build with no
// errors succeeded even if Warnings is not empty.
type BuildResult struct {
	BuildID   string     `json:"build_id"`
	Stage     Stage      `json:"stage"`
	Started   time.Time  `json:"started"`
	Errors    []error    `json:"-"`
	Warnings  []error    `json:"-"`
	Chunks    []*Chunk   `json:"chunks"`
	Assets    []ModuleID `json:"assets"`
	Artifacts []Artifact `json:"artifacts"`
	Stats     BuildStats `json:"stats"`
	Graph     *Graph     `json:"-"`
	Rebuilt   []ModuleID `json:"rebuilt,omitempty"`
}

// Succeeded reports whether the build finished without errors.
func (r *BuildResult) Succeeded() bool {
	return r != nil && r.Stage == StageDone && len(r.Errors) == 0
}

// Err joins all collected errors, or returns nil.
func (r *BuildResult) Err() error {
	if r == nil {
		return nil
	}
	return errors.Join(r.Errors...)
}

// ErrorStrings renders errors for serialization.
func (r *BuildResult) ErrorStrings() []string {
	return errStrings(r.Errors)
}

// WarningStrings renders warnings for serialization.
func (r *BuildResult) WarningStrings() []string {
	return errStrings(r.Warnings)
}

func errStrings(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}
