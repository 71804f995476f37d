package graph_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/bale/internal/graph"
	"github.com/aretw0/bale/internal/resolver"
	"github.com/aretw0/bale/pkg/adapters/memory"
	"github.com/aretw0/bale/pkg/domain"
	"github.com/aretw0/bale/pkg/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuilder(fs *memory.FS, opts ...graph.Option) *graph.Builder {
	return graph.New(fs, resolver.New(fs, "/p"), syntax.NewExtractor(), opts...)
}

func TestBuild_DependencyOrderAndDedup(t *testing.T) {
	fs := memory.NewFS(map[string]string{
		"/p/a.js":      `import b from './b'; import c from './c'; import './b.js';`,
		"/p/b.js":      `import d from './d.json'; export default d;`,
		"/p/c.js":      `const d = require('./d.json');`,
		"/p/d.json":    `{"x": 1}`,
		"/p/logo.png":  "png",
		"/p/unused.js": "",
	})
	res := newBuilder(fs).Build(context.Background(), []string{"./a.js"})
	require.Empty(t, res.Errors)

	g := res.Graph
	assert.Equal(t, []domain.ModuleID{"/p/a.js"}, g.Entries)
	assert.Equal(t, []domain.ModuleID{"/p/a.js", "/p/b.js", "/p/c.js", "/p/d.json"}, g.IDs())

	a, _ := g.Get("/p/a.js")
	specs := []string{}
	for _, d := range a.Dependencies {
		specs = append(specs, d.Specifier)
	}
	assert.Equal(t, []string{"./b", "./c", "./b.js"}, specs, "declaration order is kept")

	d, _ := g.Get("/p/d.json")
	assert.Equal(t, domain.KindCode, d.Kind)
	assert.Equal(t, domain.LangJSON, d.Lang)
	assert.Empty(t, g.Cycles)
}

func TestBuild_CycleReportedOnce(t *testing.T) {
	fs := memory.NewFS(map[string]string{
		"/p/a.js": `import './b';`,
		"/p/b.js": `import './a';`,
	})

	done := make(chan *graph.Result, 1)
	go func() { done <- newBuilder(fs).Build(context.Background(), []string{"./a"}) }()

	select {
	case res := <-done:
		require.Empty(t, res.Errors)
		require.Len(t, res.Graph.Cycles, 1)
		assert.Equal(t, []domain.ModuleID{"/p/a.js", "/p/b.js", "/p/a.js"}, res.Graph.Cycles[0].Path)
		assert.Equal(t, 2, res.Graph.Len())
	case <-time.After(5 * time.Second):
		t.Fatal("build did not finish")
	}
}

func TestBuild_CollectsSiblingErrors(t *testing.T) {
	fs := memory.NewFS(map[string]string{
		"/p/a.js": `import './b'; import './c'; import './missing-1';`,
		"/p/b.js": `import './missing-2';`,
		"/p/c.js": `const s = "unterminated`,
	})
	res := newBuilder(fs).Build(context.Background(), []string{"./a.js"})

	var resolution, parse int
	for _, err := range res.Errors {
		var re *domain.ResolutionError
		var me *domain.ModuleError
		switch {
		case errors.As(err, &re):
			resolution++
		case errors.As(err, &me):
			assert.Equal(t, domain.ModuleID("/p/c.js"), me.Module)
			parse++
		}
	}
	assert.Equal(t, 2, resolution)
	assert.Equal(t, 1, parse)
	assert.True(t, res.Graph.Has("/p/b.js"), "siblings keep loading")
}

func TestBuild_OptionalImport(t *testing.T) {
	fs := memory.NewFS(map[string]string{
		"/p/a.js": `import x from /* @optional */ './nope';`,
	})
	res := newBuilder(fs).Build(context.Background(), []string{"./a.js"})
	assert.Empty(t, res.Errors)
	require.Len(t, res.Warnings, 1)

	a, _ := res.Graph.Get("/p/a.js")
	require.Len(t, a.Dependencies, 1)
	assert.Empty(t, a.Dependencies[0].Resolved)
	assert.True(t, a.Dependencies[0].Optional)
}

func TestBuild_MissingEntry(t *testing.T) {
	res := newBuilder(memory.NewFS(nil)).Build(context.Background(), []string{"./src/app.js"})
	require.Len(t, res.Errors, 1)
	var re *domain.ResolutionError
	assert.ErrorAs(t, res.Errors[0], &re)

	res = newBuilder(memory.NewFS(nil)).Build(context.Background(), nil)
	assert.ErrorIs(t, res.Errors[0], domain.ErrNoEntries)
}

func TestRebuild_ReusesCleanModules(t *testing.T) {
	fs := memory.NewFS(map[string]string{
		"/p/a.js": `import './b'; import './c';`,
		"/p/b.js": `export default 1;`,
		"/p/c.js": `export default 2;`,
	})
	b := newBuilder(fs)
	first := b.Build(context.Background(), []string{"./a.js"})
	require.Empty(t, first.Errors)
	assert.Len(t, first.Loaded, 3)

	require.NoError(t, fs.WriteFile(context.Background(), "/p/b.js", []byte(`export default 10;`)))
	dirty := first.Graph.Ancestors("/p/b.js")

	second := b.Rebuild(context.Background(), []string{"./a.js"}, first.Graph, dirty)
	require.Empty(t, second.Errors)
	assert.ElementsMatch(t, []domain.ModuleID{"/p/a.js", "/p/b.js"}, second.Loaded)

	bMod, _ := second.Graph.Get("/p/b.js")
	assert.Equal(t, "export default 10;", string(bMod.RawSource))
}

func TestRebuild_ReloadsModulesWithErrors(t *testing.T) {
	fs := memory.NewFS(map[string]string{
		"/p/a.js": `import './b'; import './c';`,
		"/p/b.js": `import './missing';`,
		"/p/c.js": "const s = 'open\n",
	})
	b := newBuilder(fs)
	first := b.Build(context.Background(), []string{"./a.js"})
	require.Len(t, first.Errors, 2)

	second := b.Rebuild(context.Background(), []string{"./a.js"}, first.Graph, map[domain.ModuleID]bool{})
	require.Len(t, second.Errors, 2, "errors of reused modules are reported again")
	assert.ElementsMatch(t, []domain.ModuleID{"/p/b.js", "/p/c.js"}, second.Loaded)

	var rerr *domain.ResolutionError
	assert.True(t, errors.As(errors.Join(second.Errors...), &rerr))
	c, ok := second.Graph.Get("/p/c.js")
	require.True(t, ok)
	assert.True(t, c.Broken)
}

// slowFS blocks reads of one path until released.
type slowFS struct {
	*memory.FS
	block string
}

func (s *slowFS) ReadFile(ctx context.Context, p string) ([]byte, error) {
	if p == s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.FS.ReadFile(ctx, p)
}

func TestBuild_ReadTimeout(t *testing.T) {
	mem := memory.NewFS(map[string]string{
		"/p/a.js":    `import './slow';`,
		"/p/slow.js": ``,
	})
	fs := &slowFS{FS: mem, block: "/p/slow.js"}
	b := graph.New(fs, resolver.New(fs, "/p"), syntax.NewExtractor(), graph.WithTimeout(20*time.Millisecond))

	res := b.Build(context.Background(), []string{"./a.js"})
	require.Len(t, res.Errors, 1)
	var te *domain.TimeoutError
	require.ErrorAs(t, res.Errors[0], &te)
	assert.Equal(t, domain.ModuleID("/p/slow.js"), te.Module)
	assert.Equal(t, "read", te.Op)
}

func TestBuild_Cancelled(t *testing.T) {
	fs := memory.NewFS(map[string]string{"/p/a.js": ``})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newBuilder(fs).Build(ctx, []string{"./a.js"})
	require.NotEmpty(t, res.Errors)
	assert.ErrorIs(t, res.Errors[0], domain.ErrBuildCancelled)
}
