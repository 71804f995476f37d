// Package registry maps plugin names from the configuration to factories.
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/bale/pkg/config"
	"github.com/aretw0/bale/pkg/ports"
	"github.com/mitchellh/mapstructure"
)

// Factory builds a plugin from its opaque options map.
type Factory func(options map[string]any, logger *slog.Logger) (ports.Plugin, error)

// Registry manages the available plugin factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory. A factory with the same name is overwritten.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Names lists the registered plugin names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build instantiates the enabled plugins in configuration order.
func (r *Registry) Build(configs []config.PluginConfig, logger *slog.Logger) ([]ports.Plugin, error) {
	var plugins []ports.Plugin
	for _, pc := range configs {
		if !pc.IsEnabled() {
			continue
		}
		r.mu.RLock()
		f, ok := r.factories[pc.Name]
		r.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("plugin not found: %s", pc.Name)
		}
		p, err := f(pc.Options, logger.With("plugin", pc.Name))
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", pc.Name, err)
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}

// Decode copies an options map into out, a pointer to a struct with
// mapstructure tags. Unknown keys are an error.
func Decode(options map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(options); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}
