package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/aretw0/bale/pkg/adapters/process"
	"github.com/aretw0/bale/pkg/domain"
	"github.com/aretw0/bale/pkg/ports"
	"github.com/aretw0/bale/pkg/registry"
	"github.com/aretw0/bale/pkg/syntax"
)

const ExecName = "exec"

// ExecOptions names the command a module is piped through.
type ExecOptions struct {
	process.Command `mapstructure:",squash"`
	// Test selects modules by path; default all .js/.mjs/.cjs files.
	Test    string        `mapstructure:"test"`
	Dir     string        `mapstructure:"dir"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Exec replaces the source of matching modules with the stdout of an
// external command fed the source on stdin. The command sees the module path
// and language as BALE_MODULE and BALE_LANG.
type Exec struct {
	opts   ExecOptions
	test   *regexp.Regexp
	runner *process.Runner
	logger *slog.Logger
}

func NewExec(options map[string]any, logger *slog.Logger) (ports.Plugin, error) {
	opts := ExecOptions{Test: `\.[mc]?js$`, Timeout: 30 * time.Second}
	if err := registry.Decode(options, &opts); err != nil {
		return nil, err
	}
	if opts.Command.Command == "" {
		return nil, fmt.Errorf("option command is required")
	}
	re, err := regexp.Compile(opts.Test)
	if err != nil {
		return nil, fmt.Errorf("option test: %w", err)
	}

	runner := process.NewRunner(process.WithBaseDir(opts.Dir), process.WithTimeout(opts.Timeout))
	runner.Register(ExecName, opts.Command)
	return &Exec{opts: opts, test: re, runner: runner, logger: logger}, nil
}

func (e *Exec) Name() string    { return ExecName }
func (e *Exec) Version() string { return "1.0.0" }

func (e *Exec) Fingerprint() string {
	return fmt.Sprintf("cmd=%s;test=%s", e.opts.Command, e.opts.Test)
}

func (e *Exec) Transform(ctx context.Context, mod domain.Module, tree *syntax.Tree) (domain.Module, error) {
	if mod.Kind != domain.KindCode || !e.test.MatchString(mod.ID.Path()) {
		return mod, nil
	}
	out, err := e.runner.Run(ctx, ExecName, mod.Code(), map[string]string{
		"module": mod.ID.Path(),
		"lang":   mod.Lang,
	})
	if err != nil {
		return mod, err
	}
	e.logger.DebugContext(ctx, "exec", "module", mod.ID, "in", len(mod.Code()), "out", len(out))
	return mod.WithSource(out), nil
}
