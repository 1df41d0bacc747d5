// Package cmd implements the avfailoverd CLI commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/avfailover/internal/version"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "avfailoverd",
	Short:   "Realtime audio/video failover compositor",
	Version: version.Short(),
	Long: `avfailoverd composites a single primary live source with a local
looping fallback file into one continuous, fixed-rate output stream,
switching seamlessly between the two as the primary connects, stalls,
and reconnects.`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format override (json, text)")
}
