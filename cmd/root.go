// Root of command-line argument parsing.
// This file was based off the standard cobra template, see
// https://github.com/spf13/cobra
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blobmux/blobmux/pkg/providermgr"
)

var cfgFile string

var manager *providermgr.Manager

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "blobmux",
	Short: "A blob storage capability provider",
	Long: `blobmux serves object storage operations to linked sources over a
multiplexed invocation transport, backed by S3-compatible storage.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		mgrArgs := map[string]interface{}{}
		if cfgFile != "" {
			mgrArgs["config-file"] = cfgFile
		}

		var err error
		manager, err = providermgr.NewManager(mgrArgs)
		if err != nil {
			fmt.Printf("Failed to initialize provider manager: %v\n", err)
			os.Exit(1)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by blobmux.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if manager == nil || manager.Logger == nil {
			fmt.Printf("%v\n", err)
		} else {
			manager.Logger.Error(err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is configs/blobmux.yaml)")
}
