package tui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aretw0/bale/pkg/domain"
	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Report renders the markdown summary of a build. Module ids are shown
// relative to root.
func Report(r *domain.BuildResult, root string) string {
	var sb strings.Builder

	status := "succeeded"
	if !r.Succeeded() {
		status = "failed"
	}
	fmt.Fprintf(&sb, "# Build %s\n\n", status)
	fmt.Fprintf(&sb, "Build `%s` finished at stage **%s** in %s.\n\n",
		r.BuildID, r.Stage, r.Stats.Duration.Round(time.Millisecond))

	if len(r.Chunks) > 0 {
		sb.WriteString("## Chunks\n\n| Chunk | File | Modules | Hash |\n|---|---|---|---|\n")
		for _, c := range r.Chunks {
			fmt.Fprintf(&sb, "| %s | %s | %d | `%s` |\n", c.Name, c.OutputFilename, len(c.Modules), c.Hash)
		}
		sb.WriteString("\n")
	}

	if len(r.Artifacts) > 0 {
		sb.WriteString("## Files\n\n")
		for _, a := range r.Artifacts {
			fmt.Fprintf(&sb, "- %s (%d bytes)\n", a.Name, a.Bytes)
		}
		sb.WriteString("\n")
	}

	s := r.Stats
	sb.WriteString("## Stats\n\n")
	fmt.Fprintf(&sb, "- modules: %d\n- transformed: %d\n- cache hits: %d\n- assets: %d files, %d inline\n- bytes written: %d\n\n",
		s.Modules, s.Transformed, s.CacheHits, s.AssetsFiles, s.AssetsInline, s.BytesWritten)

	if len(r.Rebuilt) > 0 {
		sb.WriteString("## Rebuilt\n\n")
		for _, id := range r.Rebuilt {
			fmt.Fprintf(&sb, "- %s\n", id.Rel(root))
		}
		sb.WriteString("\n")
	}

	section(&sb, "Errors", r.ErrorStrings(), root)
	section(&sb, "Warnings", r.WarningStrings(), root)
	return sb.String()
}

func section(sb *strings.Builder, title string, items []string, root string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "## %s\n\n", title)
	prefix := strings.TrimSuffix(root, "/") + "/"
	for _, it := range items {
		fmt.Fprintf(sb, "- %s\n", strings.ReplaceAll(it, prefix, ""))
	}
	sb.WriteString("\n")
}
