// Package runtime drives builds through their stages and keeps the state
// incremental rebuilds start from.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/bale/internal/asset"
	"github.com/aretw0/bale/internal/graph"
	"github.com/aretw0/bale/internal/keylock"
	"github.com/aretw0/bale/internal/linker"
	"github.com/aretw0/bale/internal/logging"
	"github.com/aretw0/bale/internal/pipeline"
	"github.com/aretw0/bale/pkg/config"
	"github.com/aretw0/bale/pkg/domain"
	"github.com/aretw0/bale/pkg/ports"
	"github.com/google/uuid"
)

// Entry is a named entry point; Spec is resolved from the project root.
type Entry struct {
	Name string
	Spec string
}

// Engine runs builds. Builds are serialized; the graph of the previous build
// is kept so a change only re-transforms the changed modules and their
// dependents.
type Engine struct {
	root     string
	fs       ports.FileSystem
	builder  *graph.Builder
	pipeline *pipeline.Pipeline
	linker   *linker.Linker

	entries    []Entry
	outDir     string
	manifest   bool
	policy     string
	retries    int
	backoff    time.Duration
	supersede  bool
	assets     *asset.Emitter
	assetNamer func(domain.ModuleID) *asset.Emitter
	emitters   []ports.Emitter
	locker     ports.DistributedLocker
	lockTTL    time.Duration
	locks      *keylock.Map
	hooks      domain.LifecycleHooks
	logger     *slog.Logger

	mu      sync.Mutex
	stage   domain.Stage
	graph   *domain.Graph
	// partial is set when graph comes from a resolution that failed or was
	// cancelled; the next build resolves from scratch.
	partial bool
	last    *domain.BuildResult
	good    *domain.BuildResult
	outputs map[string][]byte
	pending map[string]bool
	full    bool
	wake    chan struct{}
}

type Option func(*Engine)

func WithEntries(entries ...Entry) Option {
	return func(e *Engine) {
		e.entries = append(e.entries, entries...)
	}
}

// WithOutputDir sets the absolute directory files are written to.
func WithOutputDir(dir string) Option {
	return func(e *Engine) {
		e.outDir = dir
	}
}

// WithManifest toggles writing manifest.json after the chunks.
func WithManifest(enabled bool) Option {
	return func(e *Engine) {
		e.manifest = enabled
	}
}

// WithErrorPolicy sets what a failing transform does: config.OnErrorFail
// stops the build, config.OnErrorSkip keeps the raw source with a warning.
func WithErrorPolicy(policy string) Option {
	return func(e *Engine) {
		e.policy = policy
	}
}

// WithEmitRetry bounds write attempts. The delay doubles after each failure.
func WithEmitRetry(retries int, backoff time.Duration) Option {
	return func(e *Engine) {
		e.retries = retries
		e.backoff = backoff
	}
}

// WithSupersede makes a change arriving during a watched build cancel it.
func WithSupersede(enabled bool) Option {
	return func(e *Engine) {
		e.supersede = enabled
	}
}

// WithAssetEmitter sets how asset modules are named; namer may pick a
// different emitter per module and returns nil to use the default.
func WithAssetEmitter(def *asset.Emitter, namer func(domain.ModuleID) *asset.Emitter) Option {
	return func(e *Engine) {
		if def != nil {
			e.assets = def
		}
		e.assetNamer = namer
	}
}

// WithPlugins registers the emit hooks among plugins.
func WithPlugins(plugins []ports.Plugin) Option {
	return func(e *Engine) {
		for _, p := range plugins {
			if em, ok := p.(ports.Emitter); ok {
				e.emitters = append(e.emitters, em)
			}
		}
	}
}

// WithLocker serializes builds of the same output dir across processes.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(e *Engine) {
		e.locker = locker
		e.lockTTL = ttl
	}
}

func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an Engine. The transform error policy has no default.
func New(root string, fs ports.FileSystem, b *graph.Builder, p *pipeline.Pipeline, l *linker.Linker, opts ...Option) (*Engine, error) {
	e := &Engine{
		root:     root,
		fs:       fs,
		builder:  b,
		pipeline: p,
		linker:   l,
		outDir:   path.Join(root, "dist"),
		manifest: true,
		retries:  3,
		backoff:  50 * time.Millisecond,
		assets:   asset.New(),
		logger:   logging.NewNop(),
		stage:    domain.StageIdle,
		pending:  make(map[string]bool),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	lockOpts := []keylock.Option{keylock.WithLogger(e.logger)}
	if e.locker != nil {
		lockOpts = append(lockOpts, keylock.WithLocker(e.locker, e.lockTTL))
	}
	e.locks = keylock.New(lockOpts...)

	switch e.policy {
	case config.OnErrorFail, config.OnErrorSkip:
	case "":
		return nil, config.ErrMissingErrorPolicy
	default:
		return nil, fmt.Errorf("%w: unknown transform error policy %q", config.ErrInvalidConfig, e.policy)
	}
	if len(e.entries) == 0 {
		return nil, domain.ErrNoEntries
	}
	return e, nil
}

// Stage returns the current build stage.
func (e *Engine) Stage() domain.Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stage
}

// Graph returns the graph of the latest build, or nil before the first one.
func (e *Engine) Graph() *domain.Graph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph
}

// Last returns the result of the latest build, failed or not.
func (e *Engine) Last() *domain.BuildResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// LastSuccessful returns the latest build that finished without errors.
func (e *Engine) LastSuccessful() *domain.BuildResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.good
}

// Output returns a file of the latest successful build by its output name.
func (e *Engine) Output(name string) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	data, ok := e.outputs[name]
	return data, ok
}

// OutputNames lists the files of the latest successful build.
func (e *Engine) OutputNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.outputs))
	for n := range e.outputs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// OnChange marks an absolute slash path as changed. The next Build, or the
// running Run loop, rebuilds what depends on it.
func (e *Engine) OnChange(p string) {
	e.mark(p)
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) mark(p string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending[path.Clean(p)] = true
}

// takePending hands the queued changes to a build.
func (e *Engine) takePending() ([]string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	paths := make([]string, 0, len(e.pending))
	for p := range e.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	full := e.full
	e.pending = make(map[string]bool)
	e.full = false
	return paths, full
}

// requeue gives the changes of a cancelled build back to the queue.
func (e *Engine) requeue(paths []string, full bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range paths {
		e.pending[p] = true
	}
	e.full = e.full || full
}

func (e *Engine) hasPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending) > 0 || e.full
}

// Build runs one build with every change queued so far. The returned error
// is BuildResult.Err(), or the reason the build could not start.
func (e *Engine) Build(ctx context.Context) (*domain.BuildResult, error) {
	paths, full := e.takePending()
	res, err := e.build(ctx, paths, full)
	if err != nil {
		e.requeue(paths, full)
		return nil, err
	}
	return res, res.Err()
}

func (e *Engine) build(ctx context.Context, paths []string, full bool) (*domain.BuildResult, error) {
	var res *domain.BuildResult
	err := e.locks.WithLock(ctx, "build:"+e.outDir, func(ctx context.Context) error {
		res = e.run(ctx, paths, full)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) setStage(ctx context.Context, r *domain.BuildResult, next domain.Stage) error {
	e.mu.Lock()
	from := e.stage
	if err := from.Transition(next); err != nil {
		e.mu.Unlock()
		return err
	}
	e.stage = next
	e.mu.Unlock()

	r.Stage = next
	if e.hooks.OnStage != nil {
		e.hooks.OnStage(ctx, &domain.StageEvent{BuildID: r.BuildID, From: from, To: next, Timestamp: time.Now()})
	}
	return nil
}

// run executes the stages of one build. Only the caller holding the build
// lock may call it.
func (e *Engine) run(ctx context.Context, paths []string, full bool) *domain.BuildResult {
	r := &domain.BuildResult{
		BuildID: uuid.NewString(),
		Stage:   e.Stage(),
		Started: time.Now(),
	}
	logger := e.logger.With("build", r.BuildID)

	fail := func(errs ...error) *domain.BuildResult {
		r.Errors = append(r.Errors, errs...)
		if err := e.setStage(ctx, r, domain.StageFailed); err != nil {
			logger.Error("invalid stage transition", "err", err)
		}
		return e.finish(ctx, r, logger)
	}
	cancelled := func() *domain.BuildResult {
		return fail(fmt.Errorf("%w: %v", domain.ErrBuildCancelled, context.Cause(ctx)))
	}

	if err := e.setStage(ctx, r, domain.StageResolving); err != nil {
		r.Errors = append(r.Errors, err)
		return r
	}

	prev, dirty := e.invalidate(paths, full)
	if prev == nil {
		logger.Debug("full resolution", "changed", len(paths))
	} else {
		logger.Debug("incremental resolution", "changed", len(paths), "dirty", len(dirty))
	}

	specs := make([]string, len(e.entries))
	for i, en := range e.entries {
		specs[i] = en.Spec
	}
	found := e.builder.Rebuild(ctx, specs, prev, dirty)
	g := found.Graph
	r.Graph = g
	r.Warnings = append(r.Warnings, found.Warnings...)
	for _, c := range g.Cycles {
		r.Warnings = append(r.Warnings, c)
	}
	r.Stats.Modules = g.Len()

	e.mu.Lock()
	e.graph = g
	e.partial = len(found.Errors) > 0 || ctx.Err() != nil
	e.mu.Unlock()

	if ctx.Err() != nil {
		return cancelled()
	}
	if len(found.Errors) > 0 {
		return fail(found.Errors...)
	}

	if err := e.setStage(ctx, r, domain.StageTransforming); err != nil {
		return fail(err)
	}
	if errs := e.transform(ctx, r, g, dirty, logger); len(errs) > 0 {
		return fail(errs...)
	}
	if ctx.Err() != nil {
		return cancelled()
	}

	if err := e.setStage(ctx, r, domain.StageLinking); err != nil {
		return fail(err)
	}
	if err := e.recordAssets(r, g); err != nil {
		return fail(err)
	}
	for i, en := range e.entries {
		chunk, err := e.linker.Link(g, en.Name, found.Entries[i])
		if err != nil {
			r.Errors = append(r.Errors, err)
			continue
		}
		r.Chunks = append(r.Chunks, chunk)
	}
	r.Stats.Chunks = len(r.Chunks)
	if len(r.Errors) > 0 {
		return fail()
	}
	if ctx.Err() != nil {
		return cancelled()
	}

	if err := e.setStage(ctx, r, domain.StageEmitting); err != nil {
		return fail(err)
	}
	outputs, err := e.emit(ctx, r, g)
	if err != nil {
		return fail(err)
	}

	if err := e.setStage(ctx, r, domain.StageDone); err != nil {
		return fail(err)
	}
	e.mu.Lock()
	e.good = r
	e.outputs = outputs
	e.mu.Unlock()
	return e.finish(ctx, r, logger)
}

func (e *Engine) finish(ctx context.Context, r *domain.BuildResult, logger *slog.Logger) *domain.BuildResult {
	r.Stats.Duration = time.Since(r.Started)
	e.mu.Lock()
	e.last = r
	e.mu.Unlock()

	if r.Succeeded() {
		logger.Info("build finished",
			"modules", r.Stats.Modules,
			"transformed", r.Stats.Transformed,
			"cache_hits", r.Stats.CacheHits,
			"chunks", r.Stats.Chunks,
			"duration", r.Stats.Duration)
	} else {
		logger.Error("build failed", "errors", len(r.Errors), "err", r.Err())
	}
	if e.hooks.OnBuildDone != nil {
		e.hooks.OnBuildDone(ctx, r)
	}
	return r
}

// invalidate picks the graph to start from and the modules to reload.
// A changed path that no module has is a new file that may satisfy an import
// that failed before, so it forces full resolution. So does a previous
// resolution that did not complete.
func (e *Engine) invalidate(paths []string, full bool) (*domain.Graph, map[domain.ModuleID]bool) {
	e.mu.Lock()
	prev, partial := e.graph, e.partial
	e.mu.Unlock()
	if prev == nil || partial || full {
		return nil, nil
	}

	byPath := make(map[string][]domain.ModuleID)
	for _, id := range prev.IDs() {
		byPath[id.Path()] = append(byPath[id.Path()], id)
	}
	var changed []domain.ModuleID
	for _, p := range paths {
		ids, ok := byPath[p]
		if !ok {
			return nil, nil
		}
		changed = append(changed, ids...)
	}
	return prev, prev.Ancestors(changed...)
}

// transform runs the pipeline over modules without output and modules that
// were invalidated, storing the results in g.
func (e *Engine) transform(ctx context.Context, r *domain.BuildResult, g *domain.Graph, dirty map[domain.ModuleID]bool, logger *slog.Logger) []error {
	var ids []domain.ModuleID
	for _, id := range g.IDs() {
		mod, _ := g.Get(id)
		if mod.Kind != domain.KindCode {
			continue
		}
		if !mod.Transformed() || dirty[id] {
			ids = append(ids, id)
		}
	}
	r.Rebuilt = ids

	outcomes, skipped := e.pipeline.TransformAll(ctx, g, ids, dirty)
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].ID < outcomes[j].ID })

	var errs []error
	for _, o := range outcomes {
		if e.hooks.OnModuleTransformed != nil {
			e.hooks.OnModuleTransformed(ctx, &domain.ModuleEvent{
				BuildID:  r.BuildID,
				Module:   o.ID,
				Cached:   o.Result.Cached,
				Duration: o.Result.Duration,
				Err:      o.Err,
			})
		}

		if o.Err == nil {
			if o.Result.Cached {
				r.Stats.CacheHits++
			} else {
				r.Stats.Transformed++
			}
			mod := o.Result.Module
			if err := g.Replace(&mod); err != nil {
				errs = append(errs, err)
			}
			continue
		}

		var timeout *domain.TimeoutError
		switch {
		case (errors.Is(o.Err, context.Canceled) || errors.Is(o.Err, context.DeadlineExceeded)) && ctx.Err() != nil:
			// reported once as a cancelled build
		case errors.As(o.Err, &timeout):
			errs = append(errs, o.Err)
		case e.policy == config.OnErrorSkip:
			// TransformedSource stays nil: the raw source is linked and the
			// module is attempted again by the next build.
			logger.Warn("transform failed, keeping raw source", "module", o.ID, "err", o.Err)
			r.Warnings = append(r.Warnings, o.Err)
			if mod, ok := g.Get(o.ID); ok && mod.Transformed() {
				raw := *mod
				raw.TransformedSource = nil
				if err := g.Replace(&raw); err != nil {
					errs = append(errs, err)
				}
			}
		default:
			errs = append(errs, o.Err)
		}
	}
	if len(skipped) > 0 {
		logger.Debug("transforms not started", "count", len(skipped))
	}
	return errs
}

// recordAssets names every asset module, inlining the small ones.
func (e *Engine) recordAssets(r *domain.BuildResult, g *domain.Graph) error {
	for _, id := range g.IDs() {
		mod, _ := g.Get(id)
		if mod.Kind != domain.KindAsset {
			continue
		}
		em := e.assets
		if e.assetNamer != nil {
			if custom := e.assetNamer(id); custom != nil {
				em = custom
			}
		}
		rec := em.EmitNamed(mod.RawSource, asset.BaseName(id.Path()), path.Ext(id.Path()), mod.InlineLimit)

		cp := *mod
		cp.Asset = &rec
		if err := g.Replace(&cp); err != nil {
			return err
		}
		r.Assets = append(r.Assets, id)
		if rec.Inline {
			r.Stats.AssetsInline++
		} else {
			r.Stats.AssetsFiles++
		}
	}
	return nil
}
