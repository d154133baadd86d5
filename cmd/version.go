package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Overridden at build time via -ldflags "-X github.com/blobmux/blobmux/cmd.version=..."
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the blobmux version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("blobmux " + version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
