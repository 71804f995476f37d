package main

import (
	"context"
	"os"

	"github.com/aretw0/bale/internal/cli"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph [dir]",
	Short: "Export the module graph visualization",
	Long:  `Resolves the project and outputs a Mermaid diagram (graph TD) of its module graph.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Graph(context.Background(), options(cmd, args), os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
