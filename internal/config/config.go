package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/alarm-gateway/internal/telemetry"
)

// Config holds the settings of the alarm gateway.
type Config struct {
	// BaseURL is the HTTPS root of the remote alarm system API.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// Vendor identifies the vendor deployment on the remote system.
	Vendor string `yaml:"vendor" mapstructure:"vendor"`
	// ListenAddress is where the REST API listens.
	ListenAddress string `yaml:"listen_addr" mapstructure:"listen_addr"`
	// HealthAddress is where the gRPC health service listens; empty disables it.
	HealthAddress string `yaml:"health_addr,omitempty" mapstructure:"health_addr"`
	// Timeout bounds every call to the remote alarm system.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// LogLevel is the minimum level of emitted log lines.
	LogLevel string `yaml:"log_level,omitempty" mapstructure:"log_level"`
	// LogFormat is "console" or "json".
	LogFormat string `yaml:"log_format,omitempty" mapstructure:"log_format"`
	// OTLPEndpoint is the OpenTelemetry collector receiving spans; empty disables export.
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty" mapstructure:"otlp_endpoint"`
}

const (
	// DefaultListenAddress is used when no listen address is configured.
	DefaultListenAddress = ":8080"

	// DefaultTimeout is the default duration for remote calls.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is the default file permission for written files.
	DefaultFilePermissions = 0o600

	// EnvPrefix prefixes the gateway-specific environment variables.
	EnvPrefix = "ALARM_GATEWAY"
)

// Environment variables naming the remote alarm system.
const (
	EnvBaseURL = "ELMO_BASE_URL"
	EnvVendor  = "ELMO_VENDOR"
	// EnvPort is set by hosting platforms such as App Engine.
	EnvPort = "PORT"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// ErrBaseURLRequired is returned when the base URL is missing.
	ErrBaseURLRequired = errors.New("base URL must be provided (" + EnvBaseURL + ")")
	// ErrVendorRequired is returned when the vendor is missing.
	ErrVendorRequired = errors.New("vendor must be provided (" + EnvVendor + ")")
	// ErrBaseURLNotHTTPS is returned when the base URL is not an absolute HTTPS URL.
	ErrBaseURLNotHTTPS = errors.New("base URL must be an https URL")
)

// Load reads settings from the optional YAML file at path and the environment,
// then validates them.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("listen_addr", "")
	v.SetDefault("health_addr", "")
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("otlp_endpoint", "")

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	// The remote system settings keep their historical names.
	if err := v.BindEnv("base_url", EnvBaseURL); err != nil {
		return nil, fmt.Errorf("bind %s: %w", EnvBaseURL, err)
	}

	if err := v.BindEnv("vendor", EnvVendor); err != nil {
		return nil, fmt.Errorf("bind %s: %w", EnvVendor, err)
	}

	if path != "" {
		v.SetConfigFile(filepath.Clean(path))
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if cfg.ListenAddress == "" {
		if port := strings.TrimSpace(os.Getenv(EnvPort)); port != "" {
			cfg.ListenAddress = ":" + port
		}
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the settings to the provided path in YAML format.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills in defaults.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if err := ValidateRemote(settings.BaseURL, settings.Vendor); err != nil {
		return err
	}

	if settings.ListenAddress == "" {
		settings.ListenAddress = DefaultListenAddress
	}

	if _, _, err := net.SplitHostPort(settings.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", settings.ListenAddress, err)
	}

	if settings.HealthAddress != "" {
		if _, _, err := net.SplitHostPort(settings.HealthAddress); err != nil {
			return fmt.Errorf("invalid health address %q: %w", settings.HealthAddress, err)
		}
	}

	if err := telemetry.ValidateEndpoint(settings.OTLPEndpoint); err != nil {
		return err
	}

	// Set default timeout if not specified.
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	return nil
}

// ValidateRemote checks the remote alarm system settings.
func ValidateRemote(baseURL, vendor string) error {
	if strings.TrimSpace(baseURL) == "" {
		return ErrBaseURLRequired
	}

	if strings.TrimSpace(vendor) == "" {
		return ErrVendorRequired
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBaseURLNotHTTPS, err)
	}

	if !strings.EqualFold(u.Scheme, "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrBaseURLNotHTTPS, baseURL)
	}

	return nil
}
