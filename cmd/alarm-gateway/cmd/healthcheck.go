package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-gateway/internal/config"
	"github.com/oshokin/alarm-gateway/internal/service/healthcheck"
)

func newHealthcheckCommand() *cobra.Command {
	options := &healthcheck.Options{}

	command := &cobra.Command{
		Use:   "healthcheck [health-address]",
		Short: "Query the gRPC health service of a running gateway.",
		Long: `Calls the standard gRPC health service of the gateway and exits non-zero
unless it reports SERVING. The address defaults to health_addr from the
configuration. With --interval the command keeps polling and logs status changes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				options.Address = args[0]
			}

			return healthcheck.Run(cmd.Context(), options)
		},
	}

	command.Flags().StringVarP(&options.ConfigPath, "config", "c", "", "path to optional configuration file")
	command.Flags().DurationVarP(&options.Interval, "interval", "i", 0, "poll interval; zero checks once")
	command.Flags().DurationVarP(&options.Timeout, "timeout", "t", config.DefaultTimeout, "timeout of each check")

	return command
}
