package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-gateway/internal/service/manifest"
)

func newAppYAMLCommand() *cobra.Command {
	options := &manifest.Options{}

	command := &cobra.Command{
		Use:   "app-yaml BASE_URL VENDOR",
		Short: "Generate app.yaml for App Engine deployments.",
		Long: `Writes an App Engine descriptor that sets ELMO_BASE_URL and ELMO_VENDOR
for the gateway and redirects plain HTTP to HTTPS.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			options.BaseURL = args[0]
			options.Vendor = args[1]
			options.Stdout = cmd.OutOrStdout()

			return manifest.Run(cmd.Context(), options)
		},
	}

	command.Flags().StringVarP(&options.Output, "output", "o", manifest.DefaultFilename, "path of the descriptor to write")
	command.Flags().StringVar(&options.Runtime, "runtime", manifest.DefaultRuntime, "App Engine runtime")

	return command
}
