// Package graph discovers the module graph of a build.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/aretw0/bale/internal/logging"
	"github.com/aretw0/bale/pkg/domain"
	"github.com/aretw0/bale/pkg/ports"
	"golang.org/x/sync/semaphore"
)

// Resolver maps a specifier seen from importer to a module id.
type Resolver interface {
	Resolve(specifier string, importer domain.ModuleID) (domain.ModuleID, error)
}

// Class is the classification of a module by path.
type Class struct {
	Kind  domain.ModuleKind
	Lang  string
	Limit int
}

// Classifier decides kind, language and inline limit of a module.
type Classifier func(id domain.ModuleID) Class

// DefaultClassifier treats .js/.mjs/.cjs and .json as code and everything
// else as an asset that is never inlined.
func DefaultClassifier(id domain.ModuleID) Class {
	switch id.Ext() {
	case ".js", ".mjs", ".cjs":
		return Class{Kind: domain.KindCode, Lang: domain.LangJS}
	case ".json":
		return Class{Kind: domain.KindCode, Lang: domain.LangJSON}
	}
	return Class{Kind: domain.KindAsset}
}

// Builder walks imports from the entries and produces a Graph.
type Builder struct {
	fs          ports.FileSystem
	resolver    Resolver
	extractor   ports.SyntaxExtractor
	classify    Classifier
	concurrency int64
	timeout     time.Duration
	logger      *slog.Logger
}

type Option func(*Builder)

func WithClassifier(c Classifier) Option {
	return func(b *Builder) {
		b.classify = c
	}
}

// WithConcurrency bounds how many modules are loaded at once.
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = int64(n)
		}
	}
}

// WithTimeout bounds each file read. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(b *Builder) {
		b.timeout = d
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// New creates a Builder.
func New(fs ports.FileSystem, r Resolver, x ports.SyntaxExtractor, opts ...Option) *Builder {
	b := &Builder{
		fs:          fs,
		resolver:    r,
		extractor:   x,
		classify:    DefaultClassifier,
		concurrency: int64(runtime.NumCPU()),
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Result is the outcome of a discovery pass.
type Result struct {
	Graph *domain.Graph
	// Errors are fatal: unresolved imports, unreadable or unparsable modules.
	Errors []error
	// Warnings are optional imports that did not resolve.
	Warnings []error
	// Loaded lists the modules read from the filesystem in this pass.
	Loaded []domain.ModuleID
	// Entries holds the id of each entry specifier, "" when it did not resolve.
	Entries []domain.ModuleID
}

// Build discovers the graph reachable from entries (specifiers relative to the root).
func (b *Builder) Build(ctx context.Context, entries []string) *Result {
	return b.Rebuild(ctx, entries, nil, nil)
}

// Rebuild is Build reusing the modules of prev that are not in dirty.
// Reused modules keep their dependencies and transformed source.
func (b *Builder) Rebuild(ctx context.Context, entries []string, prev *domain.Graph, dirty map[domain.ModuleID]bool) *Result {
	w := &walk{
		b:       b,
		prev:    prev,
		dirty:   dirty,
		claimed: make(map[domain.ModuleID]bool),
		sem:     semaphore.NewWeighted(b.concurrency),
	}

	var ids []domain.ModuleID
	seen := make(map[domain.ModuleID]bool)
	resolved := make([]domain.ModuleID, len(entries))
	for i, spec := range entries {
		id, err := b.resolver.Resolve(spec, "")
		if err != nil {
			w.fail(err)
			continue
		}
		resolved[i] = id
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(entries) == 0 {
		w.fail(domain.ErrNoEntries)
	}

	w.graph = domain.NewGraph(ids...)
	for _, id := range ids {
		w.claim(ctx, id)
	}
	w.wg.Wait()

	w.graph.Cycles = FindCycles(w.graph)
	for _, c := range w.graph.Cycles {
		b.logger.Warn("circular dependency", "path", c.Error())
	}
	return &Result{Graph: w.graph, Errors: w.errs, Warnings: w.warns, Loaded: w.loaded, Entries: resolved}
}

// walk is the state of one discovery pass.
type walk struct {
	b     *Builder
	prev  *domain.Graph
	dirty map[domain.ModuleID]bool
	graph *domain.Graph
	sem   *semaphore.Weighted
	wg    sync.WaitGroup

	mu        sync.Mutex
	claimed   map[domain.ModuleID]bool
	errs      []error
	warns     []error
	loaded    []domain.ModuleID
	cancelled bool
}

func (w *walk) fail(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errs = append(w.errs, err)
}

func (w *walk) warn(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.warns = append(w.warns, err)
}

// claim schedules id unless some goroutine already did.
func (w *walk) claim(ctx context.Context, id domain.ModuleID) {
	w.mu.Lock()
	if w.claimed[id] {
		w.mu.Unlock()
		return
	}
	w.claimed[id] = true
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.visit(ctx, id)
	}()
}

func (w *walk) visit(ctx context.Context, id domain.ModuleID) {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		w.mu.Lock()
		if !w.cancelled {
			w.cancelled = true
			w.errs = append(w.errs, fmt.Errorf("%w: %v", domain.ErrBuildCancelled, err))
		}
		w.mu.Unlock()
		return
	}
	mod := w.load(ctx, id)
	w.sem.Release(1)

	if mod == nil {
		return
	}
	if err := w.graph.Add(mod); err != nil {
		w.fail(err)
		return
	}
	for _, dep := range mod.Dependencies {
		if dep.Resolved != "" {
			w.claim(ctx, dep.Resolved)
		}
	}
}

// load returns the module for id, reusing the previous graph when allowed.
func (w *walk) load(ctx context.Context, id domain.ModuleID) *domain.Module {
	if w.prev != nil && !w.dirty[id] {
		if old, ok := w.prev.Get(id); ok && reusable(old) {
			cp := *old
			return &cp
		}
	}

	b := w.b
	raw, err := b.read(ctx, id)
	if err != nil {
		w.fail(err)
		return nil
	}
	w.mu.Lock()
	w.loaded = append(w.loaded, id)
	w.mu.Unlock()

	class := b.classify(id)
	mod := &domain.Module{
		ID:          id,
		Kind:        class.Kind,
		Lang:        class.Lang,
		RawSource:   raw,
		SourceHash:  SourceHash(raw),
		InlineLimit: class.Limit,
	}
	if class.Kind != domain.KindCode {
		return mod
	}

	imports, _, err := b.extractor.Extract(raw, class.Lang)
	if err != nil {
		w.fail(&domain.ModuleError{Module: id, Op: "parse", Err: err})
		mod.Broken = true
		return mod
	}
	for _, imp := range imports {
		dep := domain.Dependency{Specifier: imp.Specifier, Kind: imp.Kind, Optional: imp.Optional}
		resolved, err := b.resolver.Resolve(imp.Specifier, id)
		switch {
		case err == nil:
			dep.Resolved = resolved
		case imp.Optional:
			w.warn(err)
			b.logger.Debug("optional import not found", "module", id, "specifier", imp.Specifier)
		default:
			w.fail(err)
		}
		mod.Dependencies = append(mod.Dependencies, dep)
	}
	return mod
}

// reusable reports whether a module of an earlier graph can stand in for a
// fresh load. Modules whose errors were recorded by that earlier walk are
// loaded again so the errors are reported again.
func reusable(m *domain.Module) bool {
	if m.Broken {
		return false
	}
	for _, dep := range m.Dependencies {
		if dep.Resolved == "" && !dep.Optional {
			return false
		}
	}
	return true
}

func (b *Builder) read(ctx context.Context, id domain.ModuleID) ([]byte, error) {
	if b.timeout <= 0 {
		data, err := b.fs.ReadFile(ctx, id.Path())
		if err != nil {
			return nil, &domain.ModuleError{Module: id, Op: "read", Err: err}
		}
		return data, nil
	}

	rctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := b.fs.ReadFile(rctx, id.Path())
		done <- result{data, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, &domain.TimeoutError{Module: id, Op: "read", After: b.timeout}
			}
			return nil, &domain.ModuleError{Module: id, Op: "read", Err: r.err}
		}
		return r.data, nil
	case <-rctx.Done():
		if ctx.Err() != nil {
			return nil, &domain.ModuleError{Module: id, Op: "read", Err: ctx.Err()}
		}
		return nil, &domain.TimeoutError{Module: id, Op: "read", After: b.timeout}
	}
}
