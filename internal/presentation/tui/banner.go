package tui

import (
	"fmt"
	"io"
	"time"

	"github.com/aretw0/bale/pkg/domain"
	"github.com/muesli/termenv"
)

// PrintBanner writes the bale logo.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"  _           _     ", "#fbbf24"},
		{" | |__   __ _| | ___", "#f59e0b"},
		{" | '_ \\ / _` | |/ _ \\", "#d97706"},
		{" | |_) | (_| | |  __/", "#b45309"},
		{" |_.__/ \\__,_|_|\\___|", "#92400e"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}

// Status is the one-line summary printed after each build.
func Status(r *domain.BuildResult) string {
	p := termenv.ColorProfile()
	if r == nil {
		return "no build yet"
	}

	took := r.Stats.Duration.Round(time.Millisecond)
	switch {
	case r.Succeeded() && len(r.Warnings) > 0:
		return termenv.String(fmt.Sprintf("built %d modules in %s with %d warnings",
			r.Stats.Modules, took, len(r.Warnings))).Foreground(p.Color("#f59e0b")).String()
	case r.Succeeded():
		return termenv.String(fmt.Sprintf("built %d modules in %s (%d transformed, %d cached)",
			r.Stats.Modules, took, r.Stats.Transformed, r.Stats.CacheHits)).Foreground(p.Color("#22c55e")).String()
	default:
		return termenv.String(fmt.Sprintf("build failed at %s with %d errors",
			r.Stage, len(r.Errors))).Foreground(p.Color("#ef4444")).Bold().String()
	}
}
