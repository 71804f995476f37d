package bale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/bale/internal/asset"
	"github.com/aretw0/bale/internal/graph"
	"github.com/aretw0/bale/internal/linker"
	"github.com/aretw0/bale/internal/logging"
	"github.com/aretw0/bale/internal/pipeline"
	"github.com/aretw0/bale/internal/resolver"
	"github.com/aretw0/bale/internal/runtime"
	"github.com/aretw0/bale/pkg/adapters/memory"
	"github.com/aretw0/bale/pkg/adapters/osfs"
	redisadapter "github.com/aretw0/bale/pkg/adapters/redis"
	"github.com/aretw0/bale/pkg/adapters/watch"
	"github.com/aretw0/bale/pkg/config"
	"github.com/aretw0/bale/pkg/domain"
	"github.com/aretw0/bale/pkg/plugins"
	"github.com/aretw0/bale/pkg/ports"
	"github.com/aretw0/bale/pkg/registry"
	"github.com/aretw0/bale/pkg/syntax"
)

// Bundler is the high-level entry point of the library.
// It wires the resolver, graph builder, transform pipeline, linker and
// emitter from a Config and drives them through the build engine.
type Bundler struct {
	engine  *runtime.Engine
	builder *graph.Builder
	cfg     *config.Config
	root    string

	fs       ports.FileSystem
	cache    ports.TransformCache
	locker   ports.DistributedLocker
	lockTTL  time.Duration
	watcher  ports.Watchable
	registry *registry.Registry
	extra    []ports.Plugin
	plugins  []ports.Plugin
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	closers  []func() error
}

// Option configures a Bundler.
type Option func(*Bundler)

// WithConfig uses cfg instead of the config file found in the root.
func WithConfig(cfg *config.Config) Option {
	return func(b *Bundler) {
		b.cfg = cfg
	}
}

// WithFileSystem replaces the OS filesystem, e.g. with memory.NewFS.
func WithFileSystem(fs ports.FileSystem) Option {
	return func(b *Bundler) {
		b.fs = fs
	}
}

// WithCache overrides the transform cache selected by cache.type.
func WithCache(c ports.TransformCache) Option {
	return func(b *Bundler) {
		b.cache = c
	}
}

// WithLocker serializes builds across processes.
func WithLocker(l ports.DistributedLocker, ttl time.Duration) Option {
	return func(b *Bundler) {
		b.locker = l
		b.lockTTL = ttl
	}
}

// WithWatcher replaces the fsnotify watcher used by Run.
func WithWatcher(w ports.Watchable) Option {
	return func(b *Bundler) {
		b.watcher = w
	}
}

// WithRegistry sets the registry plugin configs are built from.
func WithRegistry(r *registry.Registry) Option {
	return func(b *Bundler) {
		b.registry = r
	}
}

// WithPlugins adds ready-made plugins after the configured ones.
func WithPlugins(p ...ports.Plugin) Option {
	return func(b *Bundler) {
		b.extra = append(b.extra, p...)
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(b *Bundler) {
		b.hooks = b.hooks.Merge(hooks)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bundler) {
		b.logger = logger
	}
}

// New creates a Bundler for the project at root.
// Without WithConfig, the first of bale.yaml, bale.yml, bale.json and
// bale.toml in root is loaded.
func New(root string, opts ...Option) (*Bundler, error) {
	b := &Bundler{}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logging.NewNop()
	}

	if b.cfg == nil {
		file, err := config.Find(root)
		if err != nil {
			return nil, err
		}
		if b.cfg, err = config.Load(file); err != nil {
			return nil, err
		}
	} else {
		b.cfg.ApplyDefaults()
		if err := b.cfg.Validate(); err != nil {
			return nil, err
		}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root: %w", err)
	}
	if b.cfg.Root != "" {
		if filepath.IsAbs(b.cfg.Root) {
			abs = b.cfg.Root
		} else {
			abs = filepath.Join(abs, b.cfg.Root)
		}
	}
	b.root = filepath.ToSlash(filepath.Clean(abs))
	b.logger = b.logger.With("project", path.Base(b.root))

	if err := b.wire(); err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Bundler) wire() error {
	cfg := b.cfg

	if b.fs == nil {
		fs, err := osfs.New(b.root)
		if err != nil {
			return err
		}
		b.fs = fs
	}

	if b.cache == nil {
		switch cfg.Cache.Type {
		case config.CacheRedis:
			rc := redisadapter.New(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB,
				redisadapter.WithPrefix(cfg.Cache.Prefix),
				redisadapter.WithTTL(cfg.Cache.TTL.Duration()))
			b.closers = append(b.closers, rc.Close)
			b.cache = rc
			if cfg.Cache.Lock && b.locker == nil {
				b.locker = redisadapter.NewLocker(rc.Client(), cfg.Cache.Prefix)
			}
		case config.CacheNone:
		default:
			b.cache = memory.NewCache()
		}
	}

	if b.registry == nil {
		b.registry = plugins.NewRegistry()
	}
	built, err := b.registry.Build(cfg.Plugins, b.logger)
	if err != nil {
		return err
	}
	b.plugins = append(built, b.extra...)

	res := resolver.New(b.fs, b.root,
		resolver.WithExtensions(cfg.Resolve.Extensions...),
		resolver.WithModules(cfg.Resolve.Modules...),
		resolver.WithAlias(cfg.Resolve.Alias))

	b.builder = graph.New(b.fs, res, syntax.NewExtractor(),
		graph.WithClassifier(b.classify),
		graph.WithConcurrency(cfg.Transform.Concurrency),
		graph.WithTimeout(cfg.Transform.Timeout.Duration()),
		graph.WithLogger(b.logger))

	pipeOpts := []pipeline.Option{
		pipeline.WithTimeout(cfg.Transform.Timeout.Duration()),
		pipeline.WithConcurrency(cfg.Transform.Concurrency),
		pipeline.WithLogger(b.logger),
	}
	if b.cache != nil {
		pipeOpts = append(pipeOpts, pipeline.WithCache(b.cache))
	}
	pipe := pipeline.New(b.plugins, pipeOpts...)

	link := linker.New(b.root,
		linker.WithFilename(cfg.Output.Filename),
		linker.WithBanner(cfg.Banner),
		linker.WithDefines(cfg.Defines()),
		linker.WithLogger(b.logger))

	var entries []runtime.Entry
	for _, name := range cfg.EntryNames() {
		entries = append(entries, runtime.Entry{Name: name, Spec: cfg.Entry[name]})
	}

	engineOpts := []runtime.Option{
		runtime.WithEntries(entries...),
		runtime.WithOutputDir(b.OutputDir()),
		runtime.WithManifest(cfg.Output.Manifest),
		runtime.WithErrorPolicy(cfg.Transform.OnError),
		runtime.WithEmitRetry(cfg.Emit.Retries, cfg.Emit.Backoff.Duration()),
		runtime.WithSupersede(cfg.Watch.Supersede),
		runtime.WithAssetEmitter(b.assetEmitter(cfg.Output.AssetFilename), b.ruleEmitter),
		runtime.WithPlugins(b.plugins),
		runtime.WithLifecycleHooks(b.hooks),
		runtime.WithLogger(b.logger),
	}
	if b.locker != nil {
		engineOpts = append(engineOpts, runtime.WithLocker(b.locker, b.lockTTL))
	}
	b.engine, err = runtime.New(b.root, b.fs, b.builder, pipe, link, engineOpts...)
	return err
}

// classify applies the first matching rule, falling back to the extension.
func (b *Bundler) classify(id domain.ModuleID) graph.Class {
	rule, ok := b.cfg.Classify(id.Path())
	if !ok {
		return graph.DefaultClassifier(id)
	}
	if rule.Kind == "asset" {
		return graph.Class{Kind: domain.KindAsset, Limit: rule.Limit}
	}
	lang := domain.LangJS
	if id.Ext() == ".json" {
		lang = domain.LangJSON
	}
	return graph.Class{Kind: domain.KindCode, Lang: lang}
}

func (b *Bundler) assetEmitter(tmpl string) *asset.Emitter {
	return asset.New(asset.WithFilename(tmpl), asset.WithPublicPath(b.cfg.Output.PublicPath))
}

// ruleEmitter honours a per-rule asset filename template.
func (b *Bundler) ruleEmitter(id domain.ModuleID) *asset.Emitter {
	if rule, ok := b.cfg.Classify(id.Path()); ok && rule.Filename != "" {
		return b.assetEmitter(rule.Filename)
	}
	return nil
}

// Build runs one build with every change reported so far.
// The error joins every failure of the build; the result is returned even
// when the build failed.
func (b *Bundler) Build(ctx context.Context) (*domain.BuildResult, error) {
	return b.engine.Build(ctx)
}

// OnChange reports a changed file. Relative paths are taken from the root.
func (b *Bundler) OnChange(p string) {
	p = filepath.ToSlash(p)
	if !path.IsAbs(p) && !filepath.IsAbs(p) {
		p = path.Join(b.root, p)
	}
	b.engine.OnChange(p)
}

// Watch returns the change notifications of the project tree.
// The output directory is ignored so builds do not trigger themselves.
func (b *Bundler) Watch(ctx context.Context) (<-chan string, error) {
	if b.watcher == nil {
		ignore := append([]string(nil), b.cfg.Watch.Ignore...)
		if out := strings.TrimPrefix(b.OutputDir(), b.root+"/"); out != b.OutputDir() {
			ignore = append(ignore, out, out+"/**")
		}
		b.watcher = watch.New(b.root,
			watch.WithIgnore(ignore...),
			watch.WithDebounce(b.cfg.Watch.Debounce.Duration()),
			watch.WithLogger(b.logger))
	}
	return b.watcher.Watch(ctx)
}

// Run builds, then rebuilds on every change until ctx is done.
func (b *Bundler) Run(ctx context.Context) error {
	events, err := b.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", b.root, err)
	}
	err = b.engine.Run(ctx, events)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Check resolves the graph without transforming or writing anything.
func (b *Bundler) Check(ctx context.Context) *graph.Result {
	specs := make([]string, 0, len(b.cfg.Entry))
	for _, name := range b.cfg.EntryNames() {
		specs = append(specs, b.cfg.Entry[name])
	}
	return b.builder.Build(ctx, specs)
}

// Graph returns the module graph of the latest build.
func (b *Bundler) Graph() *domain.Graph { return b.engine.Graph() }

// Result returns the latest build result, failed or not.
func (b *Bundler) Result() *domain.BuildResult { return b.engine.Last() }

// LastSuccessful returns the latest build without errors.
func (b *Bundler) LastSuccessful() *domain.BuildResult { return b.engine.LastSuccessful() }

// Output returns a file of the latest successful build by output name.
func (b *Bundler) Output(name string) ([]byte, bool) { return b.engine.Output(name) }

// OutputNames lists the files of the latest successful build.
func (b *Bundler) OutputNames() []string { return b.engine.OutputNames() }

// Stage returns the current build stage.
func (b *Bundler) Stage() domain.Stage { return b.engine.Stage() }

// Config returns the effective configuration.
func (b *Bundler) Config() *config.Config { return b.cfg }

// Root returns the absolute slash-separated project root.
func (b *Bundler) Root() string { return b.root }

// OutputDir returns the absolute slash-separated output directory.
func (b *Bundler) OutputDir() string { return b.cfg.OutputDir(b.root) }

// Plugins returns the plugins in pipeline order.
func (b *Bundler) Plugins() []ports.Plugin { return b.plugins }

// Close releases the cache connection, if any.
func (b *Bundler) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c())
	}
	b.closers = nil
	return errors.Join(errs...)
}
