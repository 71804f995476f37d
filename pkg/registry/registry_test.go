package registry_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/bale/internal/logging"
	"github.com/aretw0/bale/pkg/config"
	"github.com/aretw0/bale/pkg/ports"
	"github.com/aretw0/bale/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type named struct{ name string }

func (n named) Name() string    { return n.name }
func (n named) Version() string { return "1" }

func factory(name string) registry.Factory {
	return func(map[string]any, *slog.Logger) (ports.Plugin, error) {
		return named{name}, nil
	}
}

func TestRegistry_BuildKeepsOrderAndSkipsDisabled(t *testing.T) {
	r := registry.New()
	r.Register("a", factory("a"))
	r.Register("b", factory("b"))
	r.Register("c", factory("c"))

	off := false
	plugins, err := r.Build([]config.PluginConfig{
		{Name: "c"},
		{Name: "b", Enabled: &off},
		{Name: "a"},
	}, logging.NewNop())
	require.NoError(t, err)
	require.Len(t, plugins, 2)
	assert.Equal(t, "c", plugins[0].Name())
	assert.Equal(t, "a", plugins[1].Name())
	assert.Equal(t, []string{"a", "b", "c"}, r.Names())
}

func TestRegistry_Errors(t *testing.T) {
	r := registry.New()
	r.Register("bad", func(map[string]any, *slog.Logger) (ports.Plugin, error) {
		return nil, errors.New("nope")
	})

	_, err := r.Build([]config.PluginConfig{{Name: "missing"}}, logging.NewNop())
	assert.ErrorContains(t, err, "plugin not found: missing")

	_, err = r.Build([]config.PluginConfig{{Name: "bad"}}, logging.NewNop())
	assert.ErrorContains(t, err, "plugin bad: nope")
}

func TestDecode(t *testing.T) {
	var opts struct {
		To      string        `mapstructure:"to"`
		Limit   int           `mapstructure:"limit"`
		Timeout time.Duration `mapstructure:"timeout"`
	}
	err := registry.Decode(map[string]any{"to": "var", "limit": "42", "timeout": "2s"}, &opts)
	require.NoError(t, err)
	assert.Equal(t, "var", opts.To)
	assert.Equal(t, 42, opts.Limit)
	assert.Equal(t, 2*time.Second, opts.Timeout)

	assert.Error(t, registry.Decode(map[string]any{"typo": 1}, &opts))
}
