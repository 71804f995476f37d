package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/bale"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of bale",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bale version %s\n", strings.TrimSpace(bale.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
