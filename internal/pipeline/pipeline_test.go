package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/bale/internal/pipeline"
	"github.com/aretw0/bale/pkg/adapters/memory"
	"github.com/aretw0/bale/pkg/domain"
	"github.com/aretw0/bale/pkg/ports"
	"github.com/aretw0/bale/pkg/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// appendPlugin appends a marker comment and counts its calls.
type appendPlugin struct {
	name   string
	marker string
	calls  atomic.Int32
	delay  time.Duration
	err    error
}

func (p *appendPlugin) Name() string        { return p.name }
func (p *appendPlugin) Version() string     { return "1" }
func (p *appendPlugin) Fingerprint() string { return p.marker }

func (p *appendPlugin) Transform(ctx context.Context, mod domain.Module, tree *syntax.Tree) (domain.Module, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.err != nil {
		return mod, p.err
	}
	return mod.WithSource(append(append([]byte(nil), mod.Code()...), []byte("/*"+p.marker+"*/")...)), nil
}

func jsModule(id, src string) domain.Module {
	return domain.Module{
		ID:         domain.ModuleID(id),
		Kind:       domain.KindCode,
		Lang:       domain.LangJS,
		RawSource:  []byte(src),
		SourceHash: src,
	}
}

func TestTransform_OrderAndIdempotence(t *testing.T) {
	a := &appendPlugin{name: "a", marker: "A"}
	b := &appendPlugin{name: "b", marker: "B"}
	p := pipeline.New([]ports.Plugin{a, b})

	mod := jsModule("/p/x.js", "x;")
	first, err := p.Transform(context.Background(), mod)
	require.NoError(t, err)
	second, err := p.Transform(context.Background(), mod)
	require.NoError(t, err)

	assert.Equal(t, "x;/*A*//*B*/", string(first.TransformedSource))
	assert.Equal(t, first.TransformedSource, second.TransformedSource)
	assert.Equal(t, "x;", string(mod.RawSource), "input is not mutated")
}

func TestTransform_NoPluginsCopiesSource(t *testing.T) {
	out, err := pipeline.New(nil).Transform(context.Background(), jsModule("/p/x.js", "x;"))
	require.NoError(t, err)
	assert.Equal(t, "x;", string(out.TransformedSource))
}

func TestTransform_PluginError(t *testing.T) {
	boom := errors.New("boom")
	p := pipeline.New([]ports.Plugin{
		&appendPlugin{name: "ok", marker: "A"},
		&appendPlugin{name: "broken", err: boom},
	})
	_, err := p.Transform(context.Background(), jsModule("/p/x.js", "x;"))

	var te *domain.TransformError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "broken", te.Plugin)
	assert.Equal(t, domain.ModuleID("/p/x.js"), te.Module)
	assert.ErrorIs(t, err, boom)
}

type panicPlugin struct{}

func (panicPlugin) Name() string    { return "panicky" }
func (panicPlugin) Version() string { return "1" }
func (panicPlugin) Transform(context.Context, domain.Module, *syntax.Tree) (domain.Module, error) {
	panic("nil map")
}

func TestTransform_PanicBecomesError(t *testing.T) {
	_, err := pipeline.New([]ports.Plugin{panicPlugin{}}).Transform(context.Background(), jsModule("/p/x.js", "x;"))
	var te *domain.TransformError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Error(), "panic: nil map")
}

func TestTransform_Timeout(t *testing.T) {
	slow := &appendPlugin{name: "slow", marker: "S", delay: 200 * time.Millisecond}
	p := pipeline.New([]ports.Plugin{slow}, pipeline.WithTimeout(20*time.Millisecond))

	_, err := p.Transform(context.Background(), jsModule("/p/x.js", "x;"))
	var to *domain.TimeoutError
	require.ErrorAs(t, err, &to)
	assert.Equal(t, "plugin slow", to.Op)
	assert.Equal(t, 20*time.Millisecond, to.After)
}

func TestApply_CacheHitsAndInvalidation(t *testing.T) {
	cache := memory.NewCache()
	plugin := &appendPlugin{name: "a", marker: "A"}
	p := pipeline.New([]ports.Plugin{plugin}, pipeline.WithCache(cache))
	ctx := context.Background()
	mod := jsModule("/p/x.js", "x;")

	res, err := p.Apply(ctx, mod, false)
	require.NoError(t, err)
	assert.False(t, res.Cached)

	res, err = p.Apply(ctx, mod, false)
	require.NoError(t, err)
	assert.True(t, res.Cached)
	assert.Equal(t, "x;/*A*/", string(res.Module.TransformedSource))
	assert.Equal(t, int32(1), plugin.calls.Load())

	// forced modules skip the lookup
	_, err = p.Apply(ctx, mod, true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), plugin.calls.Load())

	// new source hash misses
	_, err = p.Apply(ctx, jsModule("/p/x.js", "y;"), false)
	require.NoError(t, err)
	assert.Equal(t, int32(3), plugin.calls.Load())

	// a plugin with other options misses too
	other := pipeline.New([]ports.Plugin{&appendPlugin{name: "a", marker: "Z"}}, pipeline.WithCache(cache))
	assert.NotEqual(t, p.CacheKey(mod), other.CacheKey(mod))
}

type failingCache struct{ *memory.Cache }

func (failingCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("connection refused")
}

func TestApply_CacheFailureFallsBack(t *testing.T) {
	p := pipeline.New([]ports.Plugin{&appendPlugin{name: "a", marker: "A"}}, pipeline.WithCache(failingCache{memory.NewCache()}))
	res, err := p.Apply(context.Background(), jsModule("/p/x.js", "x;"), false)
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.True(t, strings.HasSuffix(string(res.Module.TransformedSource), "/*A*/"))
}

func TestTransformAll_StopsSchedulingOnCancel(t *testing.T) {
	g := domain.NewGraph()
	var ids []domain.ModuleID
	for _, id := range []string{"/p/a.js", "/p/b.js", "/p/c.js"} {
		m := jsModule(id, id)
		require.NoError(t, g.Add(&m))
		ids = append(ids, m.ID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcomes, skipped := pipeline.New(nil).TransformAll(ctx, g, ids, nil)
	assert.Empty(t, outcomes)
	assert.Equal(t, ids, skipped)

	outcomes, skipped = pipeline.New(nil, pipeline.WithConcurrency(2)).TransformAll(context.Background(), g, ids, nil)
	assert.Len(t, outcomes, 3)
	assert.Empty(t, skipped)
}
