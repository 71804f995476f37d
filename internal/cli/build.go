package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	presentation "github.com/aretw0/bale/internal/presentation/graph"
	"github.com/aretw0/bale/internal/presentation/tui"
	"github.com/aretw0/bale/internal/validator"
)

// Build runs one build and prints its status. The full report is printed
// when report is set or the build failed.
func Build(ctx context.Context, opts Options, report bool, out io.Writer) error {
	logger := createLogger(opts.Debug)
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	b, err := newBundler(cfg, opts, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	res, err := b.Build(ctx)
	fmt.Fprintln(out, tui.Status(res))
	if res != nil && (report || err != nil) {
		printReport(out, res, b.Root())
	}
	return err
}

// Check resolves the graph and reports problems without writing output.
func Check(ctx context.Context, opts Options, out io.Writer) error {
	logger := createLogger(opts.Debug)
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	b, err := newBundler(cfg, opts, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	rep := validator.ValidateGraph(b.Check(ctx), b.Root())
	for _, w := range rep.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	if err := rep.Err(); err != nil {
		return err
	}
	printSystemMessage(out, "%d modules OK.", rep.Modules)
	return nil
}

// Graph prints the Mermaid flowchart of the module graph. The chart is
// printed even when some imports failed to resolve.
func Graph(ctx context.Context, opts Options, out io.Writer) error {
	logger := createLogger(opts.Debug)
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	b, err := newBundler(cfg, opts, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	res := b.Check(ctx)
	g := res.Graph
	fmt.Fprint(out, presentation.GenerateMermaid(g, b.Root(), &presentation.Overlay{Cycles: g.Cycles}))
	return errors.Join(res.Errors...)
}
