package main

import (
	"context"
	"os"

	"github.com/aretw0/bale/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [dir]",
	Short: "Watch the project and serve the output over HTTP",
	Long: `Rebuilds on every change and serves the last successful build from memory.
Build status is at /__bale/status, live build events at /__bale/events and
Prometheus metrics at /metrics.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		return cli.Serve(sigCtx, options(cmd, args), port, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (default: server.port from the config)")
}
