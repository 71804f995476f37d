package cli

import (
	"context"
	"io"

	"github.com/aretw0/bale"
	"github.com/aretw0/bale/internal/presentation/tui"
)

// Watch builds the project, then rebuilds on every change until ctx is done.
// With diff set, each rebuild prints a unified diff of the chunks that changed.
func Watch(ctx context.Context, opts Options, diff bool, out io.Writer) error {
	logger := createLogger(opts.Debug)
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}

	tui.PrintBanner(out)
	printer := newBuildPrinter(out, projectRoot(cfg), diff)
	b, err := newBundler(cfg, opts, logger, bale.WithLifecycleHooks(printer.Hooks()))
	if err != nil {
		return err
	}
	defer b.Close()

	logger.Info("starting watcher", "root", b.Root())
	printSystemMessage(out, "Watching '%s'.", b.Root())
	if err := b.Run(ctx); err != nil {
		return err
	}
	printSystemMessage(out, "Stopped.")
	return nil
}
