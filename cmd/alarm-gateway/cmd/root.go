package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-gateway/internal/logger"
	"github.com/oshokin/alarm-gateway/internal/service/gateway"
	"github.com/oshokin/alarm-gateway/internal/version"
)

var (
	// configPath to the optional configuration YAML file.
	configPath string
	// listenAddress overrides the configured REST listen address.
	listenAddress string

	// rootCmd represents the base command for running the gateway.
	rootCmd = &cobra.Command{
		Use:   "alarm-gateway",
		Short: "Serve a REST API that arms and disarms an Elmo alarm system.",
		Long: `Starts the REST gateway in front of the Elmo alarm system API.

The remote system is configured with ELMO_BASE_URL (https only) and ELMO_VENDOR,
or with base_url and vendor in the optional configuration file.
The listen address comes from --listen, ALARM_GATEWAY_LISTEN_ADDR, the
configuration file or PORT, in that order, and defaults to :8080.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			options := &gateway.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
			}

			return gateway.Run(cmd.Context(), options)
		},
	}
)

// Execute runs the alarm-gateway CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(newAppYAMLCommand(), newHealthcheckCommand())

	// Setup graceful shutdown handling for every subcommand.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.ErrorKV(ctx, "Alarm gateway failed", "error", err)
		stop()
		os.Exit(1) //nolint:gocritic // stop is called explicitly before exiting.
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to optional configuration file")
	rootCmd.Flags().StringVarP(&listenAddress, "listen", "l", "", "listen address override, e.g. :8080")
}
