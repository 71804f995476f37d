package main

import (
	"context"
	"os"

	"github.com/aretw0/bale/internal/cli"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build [dir]",
	Short: "Bundle the project",
	Long: `Builds every entry of the project into the output directory.
With --watch, bale keeps running and rebuilds only what changed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := options(cmd, args)
		watch, _ := cmd.Flags().GetBool("watch")
		diff, _ := cmd.Flags().GetBool("diff")
		report, _ := cmd.Flags().GetBool("report")

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		if watch {
			return cli.Watch(sigCtx, opts, diff, os.Stdout)
		}
		return cli.Build(sigCtx, opts, report, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().BoolP("watch", "w", false, "Rebuild on file changes")
	buildCmd.Flags().Bool("diff", false, "In watch mode, print a diff of every chunk that changed")
	buildCmd.Flags().Bool("report", false, "Print the full build report")
}
