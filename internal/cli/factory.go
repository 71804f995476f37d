package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/bale"
	"github.com/aretw0/bale/pkg/config"
	"github.com/aretw0/bale/pkg/observability"
)

// Options are the flags shared by every command.
type Options struct {
	Dir    string
	Config string
	Mode   string
	Debug  bool
}

// LoadConfig reads the config file named by opts, or the first one found in
// opts.Dir. The returned root is absolute.
func LoadConfig(opts Options) (*config.Config, error) {
	file := opts.Config
	if file == "" {
		found, err := config.Find(opts.Dir)
		if err != nil {
			return nil, err
		}
		file = found
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}
	cfg, err := config.Load(abs)
	if err != nil {
		return nil, err
	}
	if opts.Mode != "" {
		cfg.Mode = opts.Mode
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// newBundler creates a bundler with the standard CLI conventions: debug
// logging of every stage and module when opts.Debug is set.
func newBundler(cfg *config.Config, opts Options, logger *slog.Logger, extra ...bale.Option) (*bale.Bundler, error) {
	bopts := []bale.Option{
		bale.WithConfig(cfg),
		bale.WithLogger(logger),
	}
	if opts.Debug {
		bopts = append(bopts, bale.WithLifecycleHooks(observability.LogHooks(logger)))
	}
	bopts = append(bopts, extra...)

	b, err := bale.New(opts.Dir, bopts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing bundler: %w", err)
	}
	return b, nil
}

// projectRoot is the slash-separated root a config resolves to.
func projectRoot(cfg *config.Config) string {
	return filepath.ToSlash(filepath.Clean(cfg.Root))
}
