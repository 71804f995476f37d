package mcp

import (
	"context"
	"testing"

	"github.com/aretw0/bale"
	"github.com/aretw0/bale/pkg/adapters/memory"
	"github.com/aretw0/bale/pkg/config"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, files map[string]string) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Transform.OnError = config.OnErrorFail
	cfg.Entry = map[string]string{"main": "./src/a.js"}

	b, err := bale.New("/app", bale.WithConfig(cfg), bale.WithFileSystem(memory.NewFS(files)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return NewServer(b, nil)
}

func TestServer_BuildAndInspect(t *testing.T) {
	s := newServer(t, map[string]string{
		"/app/src/a.js":    "import b from './b';\nimport('./lazy');\nconsole.log(b);\n",
		"/app/src/b.js":    "export default 1;\n",
		"/app/src/lazy.js": "export const x = 2;\n",
	})
	ctx := context.Background()

	_, err := s.handleInspect(ctx, mcp.CallToolRequest{}, map[string]interface{}{})
	assert.ErrorContains(t, err, "no graph yet")

	res, err := s.handleBuild(ctx, mcp.CallToolRequest{}, nil)
	require.NoError(t, err)
	assert.True(t, res.Succeeded)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "main.js", res.Chunks[0].File)
	assert.Equal(t, []string{"src/b.js", "src/lazy.js", "src/a.js"}, res.Chunks[0].Modules)

	g, err := s.handleInspect(ctx, mcp.CallToolRequest{}, map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.js"}, g.Entries)
	assert.Len(t, g.Modules, 3)

	one, err := s.handleInspect(ctx, mcp.CallToolRequest{}, map[string]interface{}{"module": "./src/b.js"})
	require.NoError(t, err)
	require.Len(t, one.Modules, 1)
	assert.Equal(t, "src/b.js", one.Modules[0].ID)
	assert.Equal(t, []string{"src/a.js"}, one.Modules[0].Dependents)

	_, err = s.handleInspect(ctx, mcp.CallToolRequest{}, map[string]interface{}{"module": "src/nope.js"})
	assert.ErrorContains(t, err, "not in the graph")
}

func TestServer_BuildFailureIsReported(t *testing.T) {
	s := newServer(t, map[string]string{
		"/app/src/a.js": "import g from './ghost';\n",
	})

	res, err := s.handleBuild(context.Background(), mcp.CallToolRequest{}, nil)
	require.NoError(t, err)
	assert.False(t, res.Succeeded)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "./ghost")
	assert.Empty(t, res.Chunks)
}
