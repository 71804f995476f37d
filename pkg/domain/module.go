package domain

import (
	"path"
	"strings"
)

// ModuleID is the canonical identity of a module: an absolute, slash-separated
// path optionally followed by a query suffix ("?inline", "?v=2").
// It is the unique key of a module in the Graph.
type ModuleID string

// NewModuleID builds a ModuleID from a path and an optional query.
// The query may be given with or without its leading '?'.
func NewModuleID(p, query string) ModuleID {
	p = path.Clean(p)
	query = strings.TrimPrefix(query, "?")
	if query == "" {
		return ModuleID(p)
	}
	return ModuleID(p + "?" + query)
}

// Path returns the filesystem part of the id.
func (id ModuleID) Path() string {
	s := string(id)
	if i := strings.IndexByte(s, '?'); i >= 0 {
		return s[:i]
	}
	return s
}

// Query returns the query suffix without the leading '?'.
func (id ModuleID) Query() string {
	s := string(id)
	if i := strings.IndexByte(s, '?'); i >= 0 {
		return s[i+1:]
	}
	return ""
}

// Ext returns the lowercase extension of the path part, including the dot.
func (id ModuleID) Ext() string {
	return strings.ToLower(path.Ext(id.Path()))
}

// Dir returns the directory containing the module.
func (id ModuleID) Dir() string {
	return path.Dir(id.Path())
}

// Rel returns the id relative to root, used for stable output keys.
func (id ModuleID) Rel(root string) string {
	p := id.Path()
	root = strings.TrimSuffix(path.Clean(root), "/")
	if root != "" && root != "." && strings.HasPrefix(p, root+"/") {
		p = strings.TrimPrefix(p, root+"/")
	} else {
		p = strings.TrimPrefix(p, "/")
	}
	if q := id.Query(); q != "" {
		return p + "?" + q
	}
	return p
}

func (id ModuleID) String() string { return string(id) }

// ModuleKind separates executable code from binary assets.
type ModuleKind string

const (
	KindCode  ModuleKind = "code"
	KindAsset ModuleKind = "asset"
)

// Language hints handed to the syntax extractor.
const (
	LangJS   = "js"
	LangJSON = "json"
)

// ImportKind records how a dependency was declared in source.
type ImportKind string

const (
	ImportStatic     ImportKind = "import"         // import x from "a"
	ImportSideEffect ImportKind = "import-effect"  // import "a"
	ImportDynamic    ImportKind = "dynamic-import" // import("a")
	ImportRequire    ImportKind = "require"        // require("a")
	ImportReexport   ImportKind = "reexport"       // export ... from "a"
)

// Import is a specifier found by the syntax extractor, in source order.
type Import struct {
	Specifier string     `json:"specifier"`
	Kind      ImportKind `json:"kind"`
	// Optional is set when the importer marked the dependency with an
	// "@optional" comment right before the specifier.
	Optional bool `json:"optional,omitempty"`
}

// Dependency is an Import after resolution.
// Resolved is empty when an optional import could not be resolved.
type Dependency struct {
	Specifier string     `json:"specifier"`
	Resolved  ModuleID   `json:"resolved,omitempty"`
	Kind      ImportKind `json:"kind"`
	Optional  bool       `json:"optional,omitempty"`
}

// Module is one unit of source code or asset with a resolvable identity.
//
// A Module is created on first resolution, gets TransformedSource from the
// transform pipeline and is treated as immutable once linked into a chunk.
type Module struct {
	ID           ModuleID     `json:"id"`
	Kind         ModuleKind   `json:"kind"`
	Lang         string       `json:"lang,omitempty"`
	RawSource    []byte       `json:"-"`
	SourceHash   string       `json:"source_hash"`
	Dependencies []Dependency `json:"dependencies,omitempty"`

	// TransformedSource is nil until the pipeline has run.
	TransformedSource []byte `json:"-"`

	// Asset is set for KindAsset modules once the emitter has seen them.
	Asset *AssetRecord `json:"asset,omitempty"`

	// InlineLimit is the size limit of the rule that classified an asset.
	InlineLimit int `json:"-"`

	// Broken is set when the source could not be parsed. The module stays in
	// the graph without dependencies.
	Broken bool `json:"broken,omitempty"`
}

// Code returns the transformed source if present, the raw source otherwise.
func (m Module) Code() []byte {
	if m.TransformedSource != nil {
		return m.TransformedSource
	}
	return m.RawSource
}

// Transformed reports whether the pipeline has produced output for the module.
func (m Module) Transformed() bool { return m.TransformedSource != nil }

// WithSource returns a copy of the module with TransformedSource replaced.
// Plugins use it to hand their result back to the pipeline.
func (m Module) WithSource(src []byte) Module {
	out := m
	out.TransformedSource = append([]byte(nil), src...)
	return out
}

// DependencyIDs returns the resolved dependency ids in declaration order,
// skipping unresolved optional imports.
func (m Module) DependencyIDs() []ModuleID {
	ids := make([]ModuleID, 0, len(m.Dependencies))
	for _, d := range m.Dependencies {
		if d.Resolved != "" {
			ids = append(ids, d.Resolved)
		}
	}
	return ids
}
