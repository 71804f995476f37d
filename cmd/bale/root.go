package main

import (
	"fmt"
	"os"

	"github.com/aretw0/bale/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bale",
	Short: "bale bundles JavaScript modules and assets",
	Long: `bale walks the import graph from your entry points, transforms every module
through a plugin pipeline and links each entry into a single chunk.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("dir", ".", "Project directory")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default: first of bale.yaml, bale.yml, bale.json, bale.toml in --dir)")
	rootCmd.PersistentFlags().String("mode", "", "Override the config mode: development or production")
	rootCmd.PersistentFlags().Bool("debug", false, "Log every stage and module to stderr")
}

// options reads the persistent flags. A positional argument replaces --dir
// when the flag was not set.
func options(cmd *cobra.Command, args []string) cli.Options {
	dir, _ := cmd.Flags().GetString("dir")
	if !cmd.Flags().Changed("dir") && len(args) > 0 {
		dir = args[0]
	}
	configFile, _ := cmd.Flags().GetString("config")
	mode, _ := cmd.Flags().GetString("mode")
	debug, _ := cmd.Flags().GetBool("debug")
	return cli.Options{Dir: dir, Config: configFile, Mode: mode, Debug: debug}
}
