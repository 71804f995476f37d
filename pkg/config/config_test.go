package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/bale/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlConfig = `
mode: production
entry:
  main: ./src/app.js
output:
  dir: dist
  asset_filename: "[name][ext]?[hash]"
  public_path: ./dist/
rules:
  - test: '\.(png|jpe?g|gif)$'
    kind: asset
    limit: 20000
plugins:
  - name: declaration-kind
    options:
      from: const
      to: var
  - name: trace
    enabled: false
define:
  TWO: "1+1"
transform:
  on_error: skip
  timeout: 2s
watch:
  debounce: 150ms
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestLoad_YAML(t *testing.T) {
	p := writeFile(t, "bale.yaml", yamlConfig)
	cfg, err := config.Load(p)
	require.NoError(t, err)

	assert.Equal(t, filepath.Dir(p), cfg.Root)
	assert.Equal(t, map[string]string{"main": "./src/app.js"}, cfg.Entry)
	assert.Equal(t, "[name].js", cfg.Output.Filename, "defaults fill unset fields")
	assert.Equal(t, config.OnErrorSkip, cfg.Transform.OnError)
	assert.Equal(t, 2*time.Second, cfg.Transform.Timeout.Duration())
	assert.Equal(t, 150*time.Millisecond, cfg.Watch.Debounce.Duration())
	assert.Equal(t, []string{".js", ".json"}, cfg.Resolve.Extensions)

	require.Len(t, cfg.Plugins, 2)
	assert.True(t, cfg.Plugins[0].IsEnabled())
	assert.False(t, cfg.Plugins[1].IsEnabled())
	assert.Equal(t, "var", cfg.Plugins[0].Options["to"])

	rule, ok := cfg.Classify("/p/images/1.jpeg")
	require.True(t, ok)
	assert.Equal(t, 20000, rule.Limit)
	_, ok = cfg.Classify("/p/src/app.js")
	assert.False(t, ok)

	defs := cfg.Defines()
	assert.Equal(t, `"production"`, defs["process.env.NODE_ENV"])
	assert.Equal(t, "1+1", defs["TWO"])
}

func TestLoad_TOMLAndJSON(t *testing.T) {
	toml := writeFile(t, "bale.toml", `
[entry]
main = "./src/app.js"

[transform]
on_error = "fail"
timeout = "500ms"

[[plugins]]
name = "declaration-kind"
[plugins.options]
to = "let"
`)
	cfg, err := config.Load(toml)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.Transform.Timeout.Duration())
	assert.Equal(t, "let", cfg.Plugins[0].Options["to"])

	js := writeFile(t, "bale.json", `{"entry": {"a": "./a.js"}, "transform": {"on_error": "fail", "timeout": "1s"}}`)
	cfg, err = config.Load(js)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, cfg.EntryNames())
}

func TestValidate_ErrorPolicyIsRequired(t *testing.T) {
	cfg := config.Default()
	err := cfg.Validate()
	assert.ErrorIs(t, err, config.ErrMissingErrorPolicy)

	cfg.Transform.OnError = "explode"
	assert.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)

	cfg.Transform.OnError = config.OnErrorFail
	assert.NoError(t, cfg.Validate())
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := config.Default()
	cfg.Transform.OnError = config.OnErrorFail
	cfg.Rules = []config.Rule{{Test: "(", Kind: "asset"}, {Test: ".", Kind: "image"}}
	cfg.Cache.Type = config.CacheRedis

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rules[0].test")
	assert.Contains(t, err.Error(), "rules[1].kind")
	assert.Contains(t, err.Error(), "cache.addr")
}

func TestLoad_UnknownField(t *testing.T) {
	p := writeFile(t, "bale.yaml", "entri:\n  main: ./a.js\n")
	_, err := config.Load(p)
	assert.Error(t, err)
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	_, err := config.Find(dir)
	assert.ErrorIs(t, err, config.ErrNoConfigFile)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bale.toml"), nil, 0644))
	p, err := config.Find(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "bale.toml"), p)
}
