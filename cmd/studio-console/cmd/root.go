package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/studio-control/internal/config"
	"github.com/oshokin/studio-control/internal/domain/operator"
	"github.com/oshokin/studio-control/internal/logger"
	"github.com/oshokin/studio-control/internal/service/console"
	"github.com/oshokin/studio-control/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// role selects producer or talent.
	role string
	// studio is the studio to control or follow.
	studio string
	// logLevel is the minimum level written to the log.
	logLevel string

	// rootCmd represents the base command for an operator console.
	rootCmd = &cobra.Command{
		Use:   "studio-console [server-address]",
		Short: "Run a producer or talent console for one studio.",
		Long: `Runs an operator console connected to the studio server.

A producer console controls the studio timer and sends buzzer and chat signals.
Commands are read from standard input, one per line:
  start | pause | reset | set <seconds> | status
  buzz | chat <text>
  call|incoming <line> [contact] [number]
  answer|reject|hold|resume|air|off|hangup|save <line>
  lines

A talent console follows the studio timer and signals and shows a local
countdown between updates. Use "studio <id>" to follow another studio.

Server address can be provided as argument or loaded from configuration file.`,
		Args: cobra.MaximumNArgs(1),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return logger.ApplyLevel(logLevel)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			defer logger.Sync()

			// Use server address argument if provided, otherwise rely on config.
			var serverAddress string
			if len(args) > 0 {
				serverAddress = args[0]
			}

			return console.Run(ctx, &console.Options{
				ConfigPath:    cfgPath,
				ServerAddress: serverAddress,
				Role:          operator.Role(role),
				Studio:        studio,
			})
		},
	}
)

// Execute runs the studio-console CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&role, "role", "r", string(operator.RoleTalent), "console role: producer or talent")
	rootCmd.Flags().StringVar(&studio, "studio", "", "studio id (defaults to the first configured studio)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}
