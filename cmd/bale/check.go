package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/bale/internal/cli"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check [dir]",
	Short: "Check the module graph for consistency",
	Long:  `Resolves every import reachable from the entries and reports broken imports, invalid JSON and cycles without writing output.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cli.Check(context.Background(), options(cmd, args), os.Stdout); err != nil {
			return fmt.Errorf("check failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
