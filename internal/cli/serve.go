package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aretw0/bale"
	httpadapter "github.com/aretw0/bale/pkg/adapters/http"
	"github.com/aretw0/bale/pkg/adapters/mcp"
	"github.com/aretw0/bale/pkg/observability"
	"golang.org/x/sync/errgroup"
)

// Serve watches the project and serves the last successful build from
// memory on port. Zero uses server.port from the config.
func Serve(ctx context.Context, opts Options, port int, out io.Writer) error {
	logger := createLogger(opts.Debug)
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}
	if port == 0 {
		port = cfg.Server.Port
	}

	metrics := observability.NewMetrics()
	events := httpadapter.NewEvents(projectRoot(cfg), logger)
	printer := newBuildPrinter(out, projectRoot(cfg), false)

	b, err := newBundler(cfg, opts, logger,
		bale.WithLifecycleHooks(metrics.Hooks()),
		bale.WithLifecycleHooks(events.Hooks()),
		bale.WithLifecycleHooks(printer.Hooks()),
	)
	if err != nil {
		return err
	}
	defer b.Close()

	handler := httpadapter.NewHandler(b,
		httpadapter.WithMetrics(metrics.Handler()),
		httpadapter.WithEvents(events),
		httpadapter.WithLogger(logger),
	)

	addr := fmt.Sprintf(":%d", port)
	printSystemMessage(out, "Serving '%s' on http://localhost%s", b.Root(), addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(gctx)
	})
	g.Go(func() error {
		return httpadapter.ListenAndServe(gctx, addr, handler, 5*time.Second, logger)
	})
	return g.Wait()
}

// ServeMCP exposes the bundler over the Model Context Protocol.
// Logs always go to stderr so they cannot corrupt the stdio transport.
func ServeMCP(ctx context.Context, opts Options, transport string, port int) error {
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

	srv := mcp.NewServer(b, logger)
	switch transport {
	case "stdio":
		logger.Info("starting mcp server (stdio)")
		return srv.ServeStdio()
	case "sse":
		return srv.ServeSSE(ctx, port)
	default:
		return fmt.Errorf("unknown transport: %s. Supported: stdio, sse", transport)
	}
}
