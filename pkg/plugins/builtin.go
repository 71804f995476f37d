package plugins

import "github.com/aretw0/bale/pkg/registry"

// Register adds the built-in plugins to r.
func Register(r *registry.Registry) {
	r.Register(DeclarationKindName, NewDeclarationKind)
	r.Register(TraceName, NewTrace)
	r.Register(StatsName, NewStats)
	r.Register(ExecName, NewExec)
}

// NewRegistry returns a registry holding the built-in plugins.
func NewRegistry() *registry.Registry {
	r := registry.New()
	Register(r)
	return r
}
