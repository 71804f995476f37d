// Package validator checks a discovered module graph without building it.
package validator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/bale/internal/graph"
	"github.com/aretw0/bale/pkg/domain"
)

// Report is the outcome of a check. Only Errors make it fail.
type Report struct {
	Modules  int
	Errors   []string
	Warnings []string
}

// Err returns nil when the graph is buildable.
func (r *Report) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return fmt.Errorf("found %d errors:\n- %s", len(r.Errors), strings.Join(r.Errors, "\n- "))
}

// ValidateGraph inspects a discovery result: unresolved imports and unreadable
// modules, entries that are not code, and JSON modules that do not parse.
// Cycles and missing optional imports are reported as warnings.
func ValidateGraph(res *graph.Result, root string) *Report {
	rep := &Report{}
	for _, err := range res.Errors {
		rep.Errors = append(rep.Errors, relative(err.Error(), root))
	}
	for _, err := range res.Warnings {
		rep.Warnings = append(rep.Warnings, relative(err.Error(), root))
	}

	g := res.Graph
	if g == nil {
		return rep
	}
	rep.Modules = g.Len()

	for _, id := range g.Entries {
		mod, ok := g.Get(id)
		if ok && mod.Kind != domain.KindCode {
			rep.Errors = append(rep.Errors, fmt.Sprintf("entry '%s' is an asset, not a code module", id.Rel(root)))
		}
	}

	for _, id := range g.IDs() {
		mod, _ := g.Get(id)
		if mod.Lang == domain.LangJSON && !json.Valid(mod.RawSource) {
			rep.Errors = append(rep.Errors, fmt.Sprintf("invalid JSON in '%s'", id.Rel(root)))
		}
	}

	for _, c := range g.Cycles {
		parts := make([]string, len(c.Path))
		for i, id := range c.Path {
			parts[i] = id.Rel(root)
		}
		rep.Warnings = append(rep.Warnings, "circular dependency: "+strings.Join(parts, " -> "))
	}
	return rep
}

// relative shortens absolute module paths in messages.
func relative(msg, root string) string {
	root = strings.TrimSuffix(root, "/")
	if root == "" {
		return msg
	}
	return strings.ReplaceAll(msg, root+"/", "")
}
