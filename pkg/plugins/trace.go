package plugins

import (
	"context"
	"log/slog"

	"github.com/aretw0/bale/pkg/domain"
	"github.com/aretw0/bale/pkg/ports"
	"github.com/aretw0/bale/pkg/registry"
	"github.com/aretw0/bale/pkg/syntax"
)

const TraceName = "trace"

type TraceOptions struct {
	// Tokens also logs the token count of code modules.
	Tokens bool `mapstructure:"tokens"`
}

// Trace logs every module passing through the pipeline and changes nothing.
type Trace struct {
	opts   TraceOptions
	logger *slog.Logger
}

func NewTrace(options map[string]any, logger *slog.Logger) (ports.Plugin, error) {
	var opts TraceOptions
	if err := registry.Decode(options, &opts); err != nil {
		return nil, err
	}
	return &Trace{opts: opts, logger: logger}, nil
}

func (t *Trace) Name() string    { return TraceName }
func (t *Trace) Version() string { return "1.0.0" }

func (t *Trace) Transform(ctx context.Context, mod domain.Module, tree *syntax.Tree) (domain.Module, error) {
	attrs := []any{"module", mod.ID, "kind", mod.Kind, "bytes", len(mod.Code()), "deps", len(mod.Dependencies)}
	if t.opts.Tokens && tree != nil {
		attrs = append(attrs, "tokens", len(tree.Tokens))
	}
	t.logger.DebugContext(ctx, "transform", attrs...)
	return mod, nil
}
