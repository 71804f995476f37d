// Package linker orders the modules of an entry and concatenates them into
// a self-contained chunk.
package linker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/bale/internal/asset"
	"github.com/aretw0/bale/internal/logging"
	"github.com/aretw0/bale/pkg/domain"
	"github.com/aretw0/bale/pkg/syntax"
)

// DefaultFilename names chunks after their entry.
const DefaultFilename = "[name].js"

// Linker turns an entry of a graph into a Chunk.
type Linker struct {
	root     string
	filename string
	banner   string
	defines  *defineTable
	logger   *slog.Logger
}

type Option func(*Linker)

// WithFilename sets the chunk name template: [name], [hash], [ext].
func WithFilename(tmpl string) Option {
	return func(l *Linker) {
		if tmpl != "" {
			l.filename = tmpl
		}
	}
}

// WithBanner prepends a comment to every chunk.
func WithBanner(text string) Option {
	return func(l *Linker) {
		l.banner = text
	}
}

// WithDefines sets compile-time replacements (dotted path -> JS source).
func WithDefines(defines map[string]string) Option {
	return func(l *Linker) {
		l.defines = newDefineTable(defines)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Linker) {
		l.logger = logger
	}
}

// New creates a Linker. Segment keys are module paths relative to root.
func New(root string, opts ...Option) *Linker {
	l := &Linker{
		root:     root,
		filename: DefaultFilename,
		defines:  newDefineTable(nil),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Order returns the modules reachable from entry in dependency-first order.
// Dependencies are visited in declaration order and an edge closing a cycle
// is skipped, so every module appears exactly once.
func Order(g *domain.Graph, entry domain.ModuleID) ([]domain.ModuleID, error) {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[domain.ModuleID]int)
	var order []domain.ModuleID

	var visit func(id domain.ModuleID) error
	visit = func(id domain.ModuleID) error {
		switch state[id] {
		case visiting, done:
			return nil
		}
		mod, ok := g.Get(id)
		if !ok {
			return fmt.Errorf("%w: module %s", domain.ErrNotFound, id)
		}
		state[id] = visiting
		for _, dep := range mod.DependencyIDs() {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[id] = done
		order = append(order, id)
		return nil
	}
	if err := visit(entry); err != nil {
		return nil, err
	}
	return order, nil
}

// Link builds the chunk called name for entry.
// Every module must be transformed and every asset emitted beforehand.
func (l *Linker) Link(g *domain.Graph, name string, entry domain.ModuleID) (*domain.Chunk, error) {
	order, err := Order(g, entry)
	if err != nil {
		return nil, err
	}

	chunk := &domain.Chunk{
		Name:    name,
		Entry:   entry,
		Modules: order,
	}
	keys := make([]string, len(order))
	texts := make([][]byte, len(order))
	for i, id := range order {
		mod, _ := g.Get(id)
		seg, text, err := l.segment(g, mod)
		if err != nil {
			return nil, &domain.ModuleError{Module: id, Op: "link", Err: err}
		}
		chunk.Segments = append(chunk.Segments, seg)
		keys[i] = syntax.Quote(seg.Key)
		texts[i] = text
	}

	var buf bytes.Buffer
	if l.banner != "" {
		buf.WriteString("/*! " + strings.ReplaceAll(l.banner, "*/", "* /") + " */\n")
	}
	buf.WriteString(runtimeHead)
	for i, text := range texts {
		if i > 0 {
			buf.WriteString(",\n")
		}
		buf.Write(text)
	}
	buf.WriteString("\n}, [" + strings.Join(keys, ", ") + "]);\n")

	chunk.Code = buf.Bytes()
	chunk.Hash = asset.Hash(chunk.Code)
	chunk.OutputFilename = strings.NewReplacer("[name]", name, "[hash]", chunk.Hash, "[ext]", ".js").Replace(l.filename)

	l.logger.Debug("linked chunk", "chunk", name, "modules", len(order), "hash", chunk.Hash)
	return chunk, nil
}

// segment renders the wrapper of one module with its require map.
func (l *Linker) segment(g *domain.Graph, mod *domain.Module) (domain.Segment, []byte, error) {
	key := mod.ID.Rel(l.root)

	body, err := l.body(mod)
	if err != nil {
		return domain.Segment{}, nil, err
	}
	if body, err = l.defines.apply(body); err != nil {
		return domain.Segment{}, nil, err
	}

	var b strings.Builder
	b.WriteString("/* " + strings.ReplaceAll(key, "*/", "* /") + " */\n")
	b.WriteString(syntax.Quote(key))
	b.WriteString(wrapperHead)
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString("}, {")
	seen := make(map[string]bool)
	first := true
	for _, dep := range mod.Dependencies {
		if seen[dep.Specifier] {
			continue
		}
		seen[dep.Specifier] = true
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(syntax.Quote(dep.Specifier) + ": ")
		if dep.Resolved == "" {
			b.WriteString("null")
			continue
		}
		if !g.Has(dep.Resolved) {
			return domain.Segment{}, nil, fmt.Errorf("%w: dependency %s", domain.ErrNotFound, dep.Resolved)
		}
		b.WriteString(syntax.Quote(dep.Resolved.Rel(l.root)))
	}
	b.WriteString("}]")

	text := []byte(b.String())
	return domain.Segment{Module: mod.ID, Key: key, Hash: asset.Hash(text), Bytes: len(text)}, text, nil
}

func (l *Linker) body(mod *domain.Module) (string, error) {
	switch {
	case mod.Kind == domain.KindAsset:
		if mod.Asset == nil {
			return "", fmt.Errorf("asset was not emitted")
		}
		ref := mod.Asset.URL
		if mod.Asset.Inline {
			ref = mod.Asset.DataURI
		}
		return "module.exports = " + syntax.Quote(ref) + ";", nil

	case mod.Lang == domain.LangJSON:
		src := bytes.TrimSpace(mod.Code())
		if !json.Valid(src) {
			return "", fmt.Errorf("invalid JSON")
		}
		return "module.exports = " + string(src) + ";", nil
	}
	return lowerModule(mod.Code())
}
