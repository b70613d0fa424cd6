package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/alarm-gateway/internal/config"
	"github.com/oshokin/alarm-gateway/internal/logger"
)

// Options controls the health check.
type Options struct {
	// ConfigPath specifies the path to the optional settings YAML file.
	ConfigPath string
	// Address overrides the configured health address.
	Address string
	// Interval switches to watch mode when positive.
	Interval time.Duration
	// Timeout specifies the per-RPC timeout duration.
	Timeout time.Duration
}

var (
	// ErrNoHealthAddress is returned when no health listener is configured.
	ErrNoHealthAddress = errors.New("no health address configured")
	// ErrNotServing is returned when the gateway reports anything but SERVING.
	ErrNotServing = errors.New("gateway is not serving")
)

// Run checks the health service once, or keeps polling when an interval is set.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "healthcheck")

	address, err := resolveAddress(opts)
	if err != nil {
		return err
	}

	client, err := Dial(address, WithCallTimeout(opts.Timeout))
	if err != nil {
		return err
	}

	// Ensure connection cleanup on function exit.
	defer func() {
		_ = client.Close()
	}()

	if opts.Interval <= 0 {
		return checkOnce(ctx, client)
	}

	return watch(ctx, client, address, opts.Interval)
}

// resolveAddress prefers the explicit address over the configured one.
func resolveAddress(opts *Options) (string, error) {
	if opts.Address != "" {
		return opts.Address, nil
	}

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}

	if settings.HealthAddress == "" {
		return "", ErrNoHealthAddress
	}

	return settings.HealthAddress, nil
}

func checkOnce(ctx context.Context, client *Client) error {
	status, err := client.Check(ctx)
	if err != nil {
		return err
	}

	if status != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: %s", ErrNotServing, status)
	}

	logger.DebugKV(ctx, "Gateway is serving")

	return nil
}

// watch logs every status change until ctx is canceled.
func watch(ctx context.Context, client *Client, address string, interval time.Duration) error {
	ctx = logger.WithKV(ctx, "health_address", address)
	logger.InfoKV(ctx, "Watching gateway health", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := healthpb.HealthCheckResponse_SERVICE_UNKNOWN

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
			status, err := client.Check(ctx)
			if err != nil {
				logger.ErrorKV(ctx, "Health check failed", "error", err)

				status = healthpb.HealthCheckResponse_UNKNOWN
			}

			if status != last {
				logger.InfoKV(ctx, "Gateway health changed", "from", last.String(), "to", status.String())
				last = status
			}
		}
	}
}
