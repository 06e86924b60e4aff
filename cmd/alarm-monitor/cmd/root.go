package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/studio-control/internal/config"
	"github.com/oshokin/studio-control/internal/logger"
	"github.com/oshokin/studio-control/internal/service/monitor"
	"github.com/oshokin/studio-control/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// thresholdsFile overrides alarms.thresholds_file.
	thresholdsFile string
	// logLevel is the minimum level written to the log.
	logLevel string

	// rootCmd represents the base command for the alarm monitor.
	rootCmd = &cobra.Command{
		Use:   "alarm-monitor",
		Short: "Classify transmitter telemetry into ranked alarms.",
		Long: `Subscribes to transmitter telemetry on the MQTT broker and publishes a ranked
alarm report every refresh interval.

Per-transmitter thresholds are read from a YAML file and reloaded when it changes.
Operator acknowledgements published on the ack topic are kept across refreshes.`,
		Args: cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return logger.ApplyLevel(logLevel)
		},
		RunE: func(*cobra.Command, []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			defer logger.Sync()

			return monitor.Run(ctx, &monitor.Options{
				ConfigPath:     configPath,
				ThresholdsFile: thresholdsFile,
			})
		},
	}
)

// Execute runs the alarm-monitor CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&thresholdsFile, "thresholds", "t", "", "path to thresholds YAML (overrides alarms.thresholds_file)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}
