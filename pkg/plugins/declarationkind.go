package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aretw0/bale/pkg/domain"
	"github.com/aretw0/bale/pkg/ports"
	"github.com/aretw0/bale/pkg/registry"
	"github.com/aretw0/bale/pkg/syntax"
)

const DeclarationKindName = "declaration-kind"

var declarationKeywords = map[string]bool{"const": true, "let": true, "var": true}

// DeclarationKindOptions selects which declaration keywords are rewritten.
type DeclarationKindOptions struct {
	From []string `mapstructure:"from"`
	To   string   `mapstructure:"to"`
}

// DeclarationKind rewrites variable declaration keywords, const to var by default.
type DeclarationKind struct {
	from map[string]bool
	to   string
}

// NewDeclarationKind is the registry factory.
func NewDeclarationKind(options map[string]any, _ *slog.Logger) (ports.Plugin, error) {
	opts := DeclarationKindOptions{From: []string{"const"}, To: "var"}
	if err := registry.Decode(options, &opts); err != nil {
		return nil, err
	}
	if !declarationKeywords[opts.To] {
		return nil, fmt.Errorf("option to: %q is not a declaration keyword", opts.To)
	}
	d := &DeclarationKind{from: make(map[string]bool), to: opts.To}
	for _, f := range opts.From {
		if !declarationKeywords[f] {
			return nil, fmt.Errorf("option from: %q is not a declaration keyword", f)
		}
		if f != opts.To {
			d.from[f] = true
		}
	}
	return d, nil
}

func (d *DeclarationKind) Name() string    { return DeclarationKindName }
func (d *DeclarationKind) Version() string { return "1.0.0" }

func (d *DeclarationKind) Fingerprint() string {
	from := make([]string, 0, len(d.from))
	for f := range d.from {
		from = append(from, f)
	}
	sort.Strings(from)
	return "from=" + strings.Join(from, ",") + ";to=" + d.to
}

// Transform edits declaration keywords in place. A keyword counts as a
// declaration when it is followed by a binding: a name or a destructuring pattern.
func (d *DeclarationKind) Transform(ctx context.Context, mod domain.Module, tree *syntax.Tree) (domain.Module, error) {
	if tree == nil {
		return mod, nil
	}
	changed := false
	for i := tree.Next(-1); i >= 0; i = tree.Next(i) {
		tok := tree.Tokens[i]
		if tok.Kind != syntax.Ident || !d.from[tok.Text] || tree.MemberAccess(i) {
			continue
		}
		next := tree.At(tree.Next(i))
		if next.Kind != syntax.Ident && !next.Is("{") && !next.Is("[") {
			continue
		}
		tree.Tokens[i].Text = d.to
		changed = true
	}
	if !changed {
		return mod, nil
	}
	return mod.WithSource(tree.Bytes()), nil
}
