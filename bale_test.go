package bale_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/bale"
	"github.com/aretw0/bale/internal/testutils"
	"github.com/aretw0/bale/pkg/adapters/memory"
	"github.com/aretw0/bale/pkg/config"
	"github.com/aretw0/bale/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBundler(t *testing.T, files map[string]string, mutate func(*config.Config)) (*bale.Bundler, *memory.FS) {
	t.Helper()
	fs := memory.NewFS(files)
	cfg := config.Default()
	cfg.Transform.OnError = config.OnErrorFail
	cfg.Entry = map[string]string{"main": "./src/a.js"}
	if mutate != nil {
		mutate(cfg)
	}
	b, err := bale.New("/app", bale.WithConfig(cfg), bale.WithFileSystem(fs))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b, fs
}

func TestBundler_ChangingDependencyMovesOnlyItsSegment(t *testing.T) {
	b, fs := newBundler(t, map[string]string{
		"/app/src/a.js": "import b from './b';\nconsole.log(b);\n",
		"/app/src/b.js": "export default 'one';\n",
	}, nil)
	ctx := context.Background()

	first, err := b.Build(ctx)
	require.NoError(t, err)
	require.Len(t, first.Chunks, 1)
	chunk := first.Chunks[0]
	assert.Equal(t, []domain.ModuleID{"/app/src/b.js", "/app/src/a.js"}, chunk.Modules)

	require.NoError(t, fs.WriteFile(ctx, "/app/src/b.js", []byte("export default 'two';\n")))
	b.OnChange("src/b.js")
	second, err := b.Build(ctx)
	require.NoError(t, err)
	next := second.Chunks[0]

	assert.NotEqual(t, chunk.Segments[0].Hash, next.Segments[0].Hash)
	assert.Equal(t, chunk.Segments[1].Hash, next.Segments[1].Hash)
	assert.NotEqual(t, chunk.Hash, next.Hash)

	code, ok := b.Output("main.js")
	require.True(t, ok)
	assert.Contains(t, string(code), "'two'")
}

func TestBundler_PluginsFromConfig(t *testing.T) {
	b, fs := newBundler(t, map[string]string{
		"/app/src/a.js": "const a = 1;\nlet b = 2;\nconsole.log(a, b);\n",
	}, func(c *config.Config) {
		c.Plugins = []config.PluginConfig{
			{Name: "declaration-kind", Options: map[string]any{"from": []any{"const", "let"}}},
			{Name: "trace"},
			{Name: "stats", Options: map[string]any{"filename": "report/stats.json"}},
		}
	})

	res, err := b.Build(context.Background())
	require.NoError(t, err)
	code := string(res.Chunks[0].Code)
	assert.Contains(t, code, "var a = 1;\nvar b = 2;")
	assert.Len(t, b.Plugins(), 3)

	stats, err := fs.ReadFile(context.Background(), "/app/dist/report/stats.json")
	require.NoError(t, err)
	assert.Contains(t, string(stats), `"name": "main"`)
}

func TestBundler_UnknownPlugin(t *testing.T) {
	cfg := config.Default()
	cfg.Transform.OnError = config.OnErrorFail
	cfg.Plugins = []config.PluginConfig{{Name: "nope"}}
	_, err := bale.New("/app", bale.WithConfig(cfg), bale.WithFileSystem(memory.NewFS(nil)))
	assert.ErrorContains(t, err, "plugin not found: nope")
}

func TestBundler_RequiresErrorPolicy(t *testing.T) {
	_, err := bale.New("/app", bale.WithConfig(config.Default()), bale.WithFileSystem(memory.NewFS(nil)))
	assert.ErrorIs(t, err, config.ErrMissingErrorPolicy)
}

func TestBundler_ModeAndDefines(t *testing.T) {
	b, _ := newBundler(t, map[string]string{
		"/app/src/a.js": "if (process.env.NODE_ENV === 'production' && FEATURE) {}\n",
	}, func(c *config.Config) {
		c.Mode = config.ModeProduction
		c.Define = map[string]string{"FEATURE": "true"}
		c.Banner = "built by bale"
		c.Output.Filename = "[name].[hash].js"
	})

	res, err := b.Build(context.Background())
	require.NoError(t, err)
	c := res.Chunks[0]
	assert.Contains(t, string(c.Code), `if ("production" === 'production' && true) {}`)
	assert.True(t, strings.HasPrefix(string(c.Code), "/*! built by bale */"))
	assert.Equal(t, "main."+c.Hash+".js", c.OutputFilename)
}

func TestBundler_AssetRules(t *testing.T) {
	b, fs := newBundler(t, map[string]string{
		"/app/src/a.js":     "import icon from './icon.svg';\nimport font from './f.woff2';\n",
		"/app/src/icon.svg": "<svg/>",
		"/app/src/f.woff2":  "font-bytes",
	}, func(c *config.Config) {
		c.Output.PublicPath = "/assets/"
		c.Rules = append(c.Rules, config.Rule{Test: `\.woff2$`, Kind: "asset", Filename: "fonts/[name][ext]?[hash]"})
		c.Rules[1], c.Rules[2] = c.Rules[2], c.Rules[1]
	})

	res, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.AssetsInline)
	assert.Equal(t, 1, res.Stats.AssetsFiles)

	font, ok := res.Graph.Get("/app/src/f.woff2")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(font.Asset.URL, "/assets/fonts/f.woff2?"))

	data, err := fs.ReadFile(context.Background(), "/app/dist/fonts/f.woff2")
	require.NoError(t, err)
	assert.Equal(t, "font-bytes", string(data))
	assert.Contains(t, string(res.Chunks[0].Code), "data:image/svg+xml;base64,")
}

func TestBundler_MultipleEntries(t *testing.T) {
	b, _ := newBundler(t, map[string]string{
		"/app/src/a.js":      "import './shared';\n",
		"/app/src/admin.js":  "import './shared';\n",
		"/app/src/shared.js": "export const x = 1;\n",
	}, func(c *config.Config) {
		c.Entry = map[string]string{"main": "./src/a.js", "admin": "./src/admin.js"}
	})

	res, err := b.Build(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Chunks, 2)
	assert.Equal(t, "admin.js", res.Chunks[0].OutputFilename)
	assert.Equal(t, "main.js", res.Chunks[1].OutputFilename)
	assert.Equal(t, 3, res.Stats.Modules)
}

func TestBundler_Check(t *testing.T) {
	b, _ := newBundler(t, map[string]string{
		"/app/src/a.js": "import './gone';\nimport /* @optional */ './maybe';\n",
	}, nil)

	res := b.Check(context.Background())
	require.Len(t, res.Errors, 1)
	var rerr *domain.ResolutionError
	assert.ErrorAs(t, res.Errors[0], &rerr)
	assert.Equal(t, "./gone", rerr.Specifier)
	assert.Len(t, res.Warnings, 1)
	assert.Nil(t, b.Result(), "check does not build")
}

func TestBundler_ConfigFileOnDisk(t *testing.T) {
	dir := testutils.SetupProject(t, map[string]string{
		"bale.yaml":     "entry:\n  app: ./src/main.js\ntransform:\n  on_error: skip\noutput:\n  dir: build\n",
		"src/main.js":   "import data from './data.json';\nconsole.log(data.name);\n",
		"src/data.json": `{"name": "bale"}`,
	})

	b, err := bale.New(dir)
	require.NoError(t, err)
	defer b.Close()

	_, err = b.Build(context.Background())
	require.NoError(t, err)

	out, err := os.ReadFile(filepath.Join(dir, "build", "app.js"))
	require.NoError(t, err)
	assert.Contains(t, string(out), `module.exports = {"name": "bale"};`)
	_, err = os.Stat(filepath.Join(dir, "build", "manifest.json"))
	assert.NoError(t, err)
}
