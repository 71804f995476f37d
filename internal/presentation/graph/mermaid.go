package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/bale/pkg/domain"
)

// Overlay holds build state to highlight on the graph.
type Overlay struct {
	// Rebuilt modules are the ones the last build re-transformed.
	Rebuilt []domain.ModuleID
	// Cycles are drawn with their edges marked.
	Cycles []domain.CycleWarning
}

// GenerateMermaid renders g as a Mermaid flowchart with ids relative to root.
// Shapes:
// - Entry: ((Circle))
// - Asset: [/Parallelogram/]
// - JSON: [(Database)]
// - Default: [Rectangle]
// Dynamic imports use dotted arrows; optional imports carry a label.
func GenerateMermaid(g *domain.Graph, root string, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	entries := make(map[domain.ModuleID]bool, len(g.Entries))
	for _, id := range g.Entries {
		entries[id] = true
	}

	for _, id := range g.IDs() {
		mod, _ := g.Get(id)
		safeID := sanitizeMermaidID(id.Rel(root))

		opener, closer := "[", "]"
		switch {
		case entries[id]:
			opener, closer = "((", "))"
		case mod.Kind == domain.KindAsset:
			opener, closer = "[/", "/]"
		case mod.Lang == domain.LangJSON:
			opener, closer = "[(", ")]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, id.Rel(root), closer)

		for _, dep := range mod.Dependencies {
			if dep.Resolved == "" {
				continue
			}
			safeTo := sanitizeMermaidID(dep.Resolved.Rel(root))
			dynamic := dep.Kind == domain.ImportDynamic

			arrow := "-->"
			if dynamic {
				arrow = "-.->"
			}
			if dep.Optional {
				arrow = "-- \"optional\" -->"
				if dynamic {
					arrow = "-. \"optional\" .->"
				}
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", safeID, arrow, safeTo)
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef rebuilt fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef cycle fill:#ffebee,stroke:#c62828,stroke-width:3px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Rebuilt {
			safeID := sanitizeMermaidID(id.Rel(root))
			if !seen[safeID] && g.Has(id) {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s rebuilt;\n", safeID)
			}
		}

		inCycle := make(map[string]bool)
		for _, c := range overlay.Cycles {
			for _, id := range c.Path {
				safeID := sanitizeMermaidID(id.Rel(root))
				if !inCycle[safeID] && g.Has(id) {
					inCycle[safeID] = true
					fmt.Fprintf(&sb, "    class %s cycle;\n", safeID)
				}
			}
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", "?", "_", "=", "_", "@", "_")
	return r.Replace(id)
}
