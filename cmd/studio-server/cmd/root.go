package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/studio-control/internal/config"
	"github.com/oshokin/studio-control/internal/logger"
	"github.com/oshokin/studio-control/internal/service/server"
	"github.com/oshokin/studio-control/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// stateFile path where timer records are persisted.
	stateFile string
	// logLevel is the minimum level written to the log.
	logLevel string

	// rootCmd represents the base command for running the studio server.
	rootCmd = &cobra.Command{
		Use:   "studio-server [listen-address]",
		Short: "Run the studio control server.",
		Long: `Starts the gRPC server that stores the authoritative timer and signal records
of every studio and runs their call-line boards.

Only the port from server_addr is used for listening (e.g., :7070).
Listen address can be provided as argument to override config (e.g., :9090, 0.0.0.0:7070).
Timer records are persisted to a JSON file and restored on restart.
Call-line changes are published on the MQTT broker when it is reachable.`,
		Args: cobra.MaximumNArgs(1),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return logger.ApplyLevel(logLevel)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			defer logger.Sync()

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return server.Run(ctx, &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				StateFile:     stateFile,
			})
		},
	}
)

// Execute runs the studio-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().
		StringVarP(&stateFile, "state-file", "s", "", "path to persist timer records (overrides state_file)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}
