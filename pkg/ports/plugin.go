package ports

import (
	"context"

	"github.com/aretw0/bale/pkg/domain"
	"github.com/aretw0/bale/pkg/syntax"
)

// Plugin is a named, versioned capability registered once per bundler.
// Plugins are shared across builds and must not keep per-build state.
type Plugin interface {
	Name() string
	Version() string
}

// Configurable plugins expose their decoded options so the transform cache
// can tell configurations apart.
type Configurable interface {
	Fingerprint() string
}

// Transformer is a plugin with a transform hook.
type Transformer interface {
	Plugin
	// Transform returns mod with new TransformedSource. tree is a fresh parse
	// of mod.Code() the plugin may edit, or nil for JSON and assets.
	// The output must depend only on mod, tree and the plugin options.
	Transform(ctx context.Context, mod domain.Module, tree *syntax.Tree) (domain.Module, error)
}

// EmitContext is what an emit hook sees of a finished build.
type EmitContext struct {
	BuildID string
	Chunks  []*domain.Chunk
	Assets  []*domain.Module
	// AddArtifact schedules an extra output file relative to the output dir.
	AddArtifact func(name string, data []byte)
}

// Emitter is a plugin with an emit hook, called once per build after linking.
type Emitter interface {
	Plugin
	Emit(ctx context.Context, ec EmitContext) error
}
