package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/avfailover/internal/app"
	"github.com/jmylchreest/avfailover/internal/config"
	"github.com/jmylchreest/avfailover/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve [primary_url] [fallback_path]",
	Short: "Run the failover compositor",
	Long: `serve runs one failover compositor session until interrupted.

Configuration is read from --config if given, otherwise from
./avfailover.yaml or /etc/avfailover/avfailover.yaml and
AVFAILOVER_-prefixed environment variables. Alternatively, the legacy
positional form accepts a bare primary URL and an optional fallback
file path, with every other setting defaulted.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadServeConfig(cmd, args)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	applyLoggingOverrides(cmd, cfg)

	logger := observability.NewLogger(cfg.Logging)

	// The container output and the status event stream are distinct byte
	// streams: the muxed MPEG-TS container goes to stdout, the
	// line-delimited JSON event stream goes to stderr, alongside the
	// debug logger.
	return app.Run(cfg, logger, os.Stdout, os.Stderr)
}

func loadServeConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	if len(args) > 0 {
		fallbackPath := ""
		if len(args) > 1 {
			fallbackPath = args[1]
		}
		return config.FromPositional(args[0], fallbackPath)
	}
	return config.Load(cfgFile)
}

// applyLoggingOverrides lets --log-level/--log-format win over whatever
// the config file or environment set, since they're given directly on
// this invocation.
func applyLoggingOverrides(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Logging.Format = v
	}
}
