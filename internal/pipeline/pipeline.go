// Package pipeline runs transform plugins over modules.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/aretw0/bale/internal/keylock"
	"github.com/aretw0/bale/internal/logging"
	"github.com/aretw0/bale/pkg/domain"
	"github.com/aretw0/bale/pkg/ports"
	"github.com/aretw0/bale/pkg/syntax"
	"github.com/cespare/xxhash/v2"
)

// Pipeline applies the transform hooks of its plugins, in order, to one
// module at a time. It is safe for concurrent use on different modules;
// calls for the same ModuleID are serialized.
type Pipeline struct {
	transformers []ports.Transformer
	extractor    ports.SyntaxExtractor
	cache        ports.TransformCache
	locks        *keylock.Map
	timeout      time.Duration
	concurrency  int
	fingerprint  string
	logger       *slog.Logger
}

type Option func(*Pipeline)

// WithCache stores results between builds. Without it every call transforms.
func WithCache(c ports.TransformCache) Option {
	return func(p *Pipeline) {
		p.cache = c
	}
}

// WithTimeout bounds each hook call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.timeout = d
	}
}

// WithConcurrency bounds TransformAll.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithExtractor(x ports.SyntaxExtractor) Option {
	return func(p *Pipeline) {
		p.extractor = x
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// New builds a pipeline from the transform hooks among plugins.
// Plugins without a transform hook are ignored.
func New(plugins []ports.Plugin, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:   syntax.NewExtractor(),
		locks:       keylock.New(),
		concurrency: runtime.NumCPU(),
		logger:      logging.NewNop(),
	}
	for _, pl := range plugins {
		if t, ok := pl.(ports.Transformer); ok {
			p.transformers = append(p.transformers, t)
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	p.fingerprint = Fingerprint(p.transformers)
	return p
}

// Fingerprint identifies an ordered plugin list with its versions and options.
func Fingerprint(transformers []ports.Transformer) string {
	parts := make([]string, 0, len(transformers))
	for _, t := range transformers {
		part := t.Name() + "@" + t.Version()
		if c, ok := t.(ports.Configurable); ok {
			part += "{" + c.Fingerprint() + "}"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "|")
}

// CacheKey derives the cache key of a module under this pipeline.
func (p *Pipeline) CacheKey(mod domain.Module) string {
	h := xxhash.New()
	_, _ = h.WriteString(mod.ID.String())
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(mod.SourceHash)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(p.fingerprint)
	return fmt.Sprintf("%016x", h.Sum64())
}

// Result is the outcome of transforming one module.
type Result struct {
	Module   domain.Module
	Cached   bool
	Duration time.Duration
}

// Transform runs the plugins over mod, serving from the cache when possible.
func (p *Pipeline) Transform(ctx context.Context, mod domain.Module) (domain.Module, error) {
	res, err := p.Apply(ctx, mod, false)
	return res.Module, err
}

// Apply transforms mod. force skips the cache lookup but still stores the result.
func (p *Pipeline) Apply(ctx context.Context, mod domain.Module, force bool) (Result, error) {
	start := time.Now()
	var res Result
	err := p.locks.WithLock(ctx, mod.ID.String(), func(ctx context.Context) error {
		key := p.CacheKey(mod)
		if !force && p.cache != nil {
			data, err := p.cache.Get(ctx, key)
			switch {
			case err == nil:
				res = Result{Module: mod.WithSource(data), Cached: true}
				return nil
			case !errors.Is(err, domain.ErrNotFound):
				p.logger.Warn("transform cache read failed", "module", mod.ID, "err", err)
			}
		}

		out, err := p.run(ctx, mod)
		if err != nil {
			return err
		}
		res = Result{Module: out}

		if p.cache != nil {
			// a detached context so a cancelled build still records finished work
			if err := p.cache.Put(context.WithoutCancel(ctx), key, out.TransformedSource); err != nil {
				p.logger.Warn("transform cache write failed", "module", mod.ID, "err", err)
			}
		}
		return nil
	})
	res.Duration = time.Since(start)
	return res, err
}

func (p *Pipeline) run(ctx context.Context, mod domain.Module) (domain.Module, error) {
	cur := mod
	cur.TransformedSource = nil
	for _, t := range p.transformers {
		var tree *syntax.Tree
		if cur.Kind == domain.KindCode {
			_, parsed, err := p.extractor.Extract(cur.Code(), cur.Lang)
			if err != nil {
				return mod, &domain.TransformError{Module: mod.ID, Plugin: t.Name(), Cause: err}
			}
			tree = parsed
		}

		next, err := p.call(ctx, t, cur, tree)
		if err != nil {
			return mod, &domain.TransformError{Module: mod.ID, Plugin: t.Name(), Cause: err}
		}
		if next.ID != mod.ID {
			return mod, &domain.TransformError{
				Module: mod.ID,
				Plugin: t.Name(),
				Cause:  fmt.Errorf("plugin changed the module id to %s", next.ID),
			}
		}
		if next.TransformedSource != nil {
			cur.TransformedSource = next.TransformedSource
		}
	}
	if cur.TransformedSource == nil {
		cur = cur.WithSource(cur.RawSource)
	}
	return cur, nil
}

// call runs one hook with its own deadline. The hook context does not
// inherit build cancellation, so a superseded build lets hooks finish.
func (p *Pipeline) call(ctx context.Context, t ports.Transformer, mod domain.Module, tree *syntax.Tree) (domain.Module, error) {
	hctx := context.WithoutCancel(ctx)
	if p.timeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(hctx, p.timeout)
		defer cancel()
	}

	type result struct {
		mod domain.Module
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		out, err := t.Transform(hctx, mod, tree)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		return r.mod, r.err
	case <-hctx.Done():
		return mod, &domain.TimeoutError{Module: mod.ID, Op: "plugin " + t.Name(), After: p.timeout}
	}
}
