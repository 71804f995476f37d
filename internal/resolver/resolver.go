// Package resolver maps import specifiers to module ids.
package resolver

import (
	"path"
	"sort"
	"strings"

	"github.com/aretw0/bale/pkg/domain"
)

// Exister is the part of ports.FileSystem the resolver needs.
type Exister interface {
	Exists(path string) bool
}

// Resolver turns (specifier, importer) into a canonical ModuleID.
// It is pure: the result depends only on its inputs and the files present.
type Resolver struct {
	fs         Exister
	root       string
	extensions []string
	modules    []string
	alias      map[string]string
	aliasKeys  []string
}

type Option func(*Resolver)

// WithExtensions sets the suffixes tried after the exact path.
func WithExtensions(exts ...string) Option {
	return func(r *Resolver) {
		r.extensions = exts
	}
}

// WithModules sets the directories searched for bare specifiers, relative to root.
func WithModules(dirs ...string) Option {
	return func(r *Resolver) {
		r.modules = dirs
	}
}

// WithAlias maps specifier prefixes to paths (relative to root or absolute).
func WithAlias(alias map[string]string) Option {
	return func(r *Resolver) {
		r.alias = alias
	}
}

// New creates a resolver for the project at root (absolute, slash separated).
func New(fs Exister, root string, opts ...Option) *Resolver {
	r := &Resolver{
		fs:         fs,
		root:       path.Clean(root),
		extensions: []string{".js", ".json"},
		modules:    []string{"node_modules"},
	}
	for _, opt := range opts {
		opt(r)
	}
	for k := range r.alias {
		r.aliasKeys = append(r.aliasKeys, k)
	}
	// longest alias wins
	sort.Slice(r.aliasKeys, func(i, j int) bool {
		if len(r.aliasKeys[i]) != len(r.aliasKeys[j]) {
			return len(r.aliasKeys[i]) > len(r.aliasKeys[j])
		}
		return r.aliasKeys[i] < r.aliasKeys[j]
	})
	return r
}

// Root returns the project root.
func (r *Resolver) Root() string { return r.root }

// Resolve finds the module named by specifier as seen from importer.
// An empty importer resolves relative to the project root.
func (r *Resolver) Resolve(specifier string, importer domain.ModuleID) (domain.ModuleID, error) {
	spec, query := splitQuery(specifier)

	var bases []string
	switch {
	case spec == "":
		return "", r.fail(specifier, importer, nil)
	case strings.HasPrefix(spec, "./"), strings.HasPrefix(spec, "../"), spec == ".", spec == "..":
		dir := r.root
		if importer != "" {
			dir = importer.Dir()
		}
		bases = []string{path.Join(dir, spec)}
	case path.IsAbs(spec):
		bases = []string{path.Clean(spec)}
	default:
		if target, ok := r.aliased(spec); ok {
			bases = []string{target}
			break
		}
		for _, dir := range r.moduleDirs(importer) {
			bases = append(bases, path.Join(dir, spec))
		}
	}

	var tried []string
	for _, base := range bases {
		for _, candidate := range r.candidates(base) {
			tried = append(tried, candidate)
			if r.fs.Exists(candidate) {
				return domain.NewModuleID(candidate, query), nil
			}
		}
	}
	return "", r.fail(specifier, importer, tried)
}

func (r *Resolver) fail(specifier string, importer domain.ModuleID, tried []string) error {
	return &domain.ResolutionError{Specifier: specifier, Importer: importer, Tried: tried}
}

// candidates lists, in order: the exact file, file + extension, dir/index + extension.
func (r *Resolver) candidates(base string) []string {
	out := make([]string, 0, 1+2*len(r.extensions))
	out = append(out, base)
	for _, ext := range r.extensions {
		out = append(out, base+ext)
	}
	for _, ext := range r.extensions {
		out = append(out, path.Join(base, "index"+ext))
	}
	return out
}

func (r *Resolver) aliased(spec string) (string, bool) {
	for _, key := range r.aliasKeys {
		if spec != key && !strings.HasPrefix(spec, key+"/") {
			continue
		}
		target := r.alias[key]
		if !path.IsAbs(target) {
			target = path.Join(r.root, target)
		}
		return path.Join(target, strings.TrimPrefix(spec, key)), true
	}
	return "", false
}

// moduleDirs lists module directories from the importer's directory up to
// the root, nearest first, followed by absolute module directories.
func (r *Resolver) moduleDirs(importer domain.ModuleID) []string {
	var out []string
	for _, m := range r.modules {
		if path.IsAbs(m) {
			continue
		}
		dir := r.root
		if importer != "" && strings.HasPrefix(importer.Path(), r.root+"/") {
			dir = importer.Dir()
		}
		for {
			if path.Base(dir) != m {
				out = append(out, path.Join(dir, m))
			}
			if dir == r.root || dir == "/" || dir == "." {
				break
			}
			dir = path.Dir(dir)
		}
	}
	for _, m := range r.modules {
		if path.IsAbs(m) {
			out = append(out, m)
		}
	}
	return out
}

func splitQuery(spec string) (string, string) {
	if i := strings.IndexByte(spec, '?'); i >= 0 {
		return spec[:i], spec[i+1:]
	}
	return spec, ""
}
