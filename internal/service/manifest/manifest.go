package manifest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/alarm-gateway/internal/config"
	"github.com/oshokin/alarm-gateway/internal/logger"
)

const (
	// DefaultRuntime is the App Engine runtime used when none is given.
	DefaultRuntime = "go122"
	// DefaultFilename is the conventional descriptor name.
	DefaultFilename = "app.yaml"

	// filePermissions is readable by the deployment tooling.
	filePermissions = 0o644
	// redirectPermanent forces HTTPS with a 301.
	redirectPermanent = "301"
)

// AppConfig is the subset of the App Engine descriptor the gateway needs.
type AppConfig struct {
	Runtime      string            `yaml:"runtime"`
	EnvVariables map[string]string `yaml:"env_variables"`
	Handlers     []Handler         `yaml:"handlers"`
}

// Handler is one URL handler entry.
type Handler struct {
	URL                      string `yaml:"url"`
	Script                   string `yaml:"script"`
	Secure                   string `yaml:"secure"`
	RedirectHTTPResponseCode string `yaml:"redirect_http_response_code"`
}

// Options controls descriptor generation.
type Options struct {
	// BaseURL becomes ELMO_BASE_URL.
	BaseURL string
	// Vendor becomes ELMO_VENDOR.
	Vendor string
	// Runtime is the App Engine runtime identifier.
	Runtime string
	// Output is the file to write.
	Output string
	// Stdout receives the rendered descriptor and deploy hint; nil discards it.
	Stdout io.Writer
}

// Build validates the remote settings and returns the descriptor.
func Build(baseURL, vendor, runtime string) (*AppConfig, error) {
	if err := config.ValidateRemote(baseURL, vendor); err != nil {
		return nil, err
	}

	if runtime == "" {
		runtime = DefaultRuntime
	}

	return &AppConfig{
		Runtime: runtime,
		EnvVariables: map[string]string{
			config.EnvBaseURL: baseURL,
			config.EnvVendor:  vendor,
		},
		Handlers: []Handler{
			{
				URL:                      "/.*",
				Script:                   "auto",
				Secure:                   "always",
				RedirectHTTPResponseCode: redirectPermanent,
			},
		},
	}, nil
}

// Render encodes the descriptor as YAML.
func Render(app *AppConfig) ([]byte, error) {
	var buf bytes.Buffer

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(app); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	return buf.Bytes(), nil
}

// Run builds, prints and writes the descriptor.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "app-yaml")

	app, err := Build(opts.BaseURL, opts.Vendor, opts.Runtime)
	if err != nil {
		return fmt.Errorf("build manifest: %w", err)
	}

	data, err := Render(app)
	if err != nil {
		return err
	}

	output := opts.Output
	if output == "" {
		output = DefaultFilename
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = io.Discard
	}

	_, _ = fmt.Fprintf(stdout, "Writing the following deployment config to %s:\n%s\n", output, data)

	if err = os.WriteFile(filepath.Clean(output), data, filePermissions); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	logger.InfoKV(ctx, "Deployment manifest written", "path", output, "runtime", app.Runtime)

	_, _ = fmt.Fprintln(stdout, "Done! You can deploy the service with `gcloud app deploy`")

	return nil
}
