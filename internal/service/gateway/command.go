package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	httpapi "github.com/oshokin/alarm-gateway/internal/api/http/alarm"
	"github.com/oshokin/alarm-gateway/internal/config"
	"github.com/oshokin/alarm-gateway/internal/elmo"
	"github.com/oshokin/alarm-gateway/internal/logger"
	"github.com/oshokin/alarm-gateway/internal/metrics"
	"github.com/oshokin/alarm-gateway/internal/service/alarms"
	"github.com/oshokin/alarm-gateway/internal/telemetry"
	"github.com/oshokin/alarm-gateway/internal/version"
)

// Options controls the alarm-gateway process and configuration.
type Options struct {
	// ConfigPath specifies the path to an optional settings YAML file.
	ConfigPath string
	// ListenAddress overrides the configured REST listen address.
	ListenAddress string
	// LogOutput receives the log lines; nil means stdout.
	LogOutput io.Writer
}

const (
	// readHeaderTimeout bounds slow clients sending headers.
	readHeaderTimeout = 10 * time.Second
	// shutdownTimeout bounds the graceful shutdown of the REST server.
	shutdownTimeout = 15 * time.Second
	// operationName names the server span created for every request.
	operationName = "alarm-gateway"
)

// Run loads the settings, starts the servers and blocks until ctx is canceled
// or a server fails. Invalid settings prevent the process from starting.
func Run(ctx context.Context, opts *Options) error {
	if opts == nil {
		opts = new(Options)
	}

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.ListenAddress != "" {
		settings.ListenAddress = opts.ListenAddress
	}

	logOutput := opts.LogOutput
	if logOutput == nil {
		logOutput = os.Stdout
	}

	if err = logger.ConfigureWriter(logOutput, settings.LogLevel, settings.LogFormat); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}

	// Set context with logger name for tracking. Must follow ConfigureWriter.
	ctx = logger.WithName(ctx, "alarm-gateway")

	tracing, err := telemetry.Setup(ctx, settings.OTLPEndpoint, version.Short())
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.WarnKV(ctx, "Telemetry shutdown failed", "error", err)
		}
	}()

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", settings.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.ListenAddress, err)
	}

	// A failing REST server must also stop the health server.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if settings.HealthAddress != "" {
		healthLis, err := lc.Listen(ctx, "tcp", settings.HealthAddress)
		if err != nil {
			_ = lis.Close()

			return fmt.Errorf("listen on %s: %w", settings.HealthAddress, err)
		}

		health := newHealthServer()
		healthDone := make(chan error, 1)

		go func() {
			healthDone <- health.Serve(ctx, healthLis)
		}()

		defer func() {
			cancel()

			if err := <-healthDone; err != nil {
				logger.ErrorKV(ctx, "Health server failed", "error", err)
			}
		}()

		logger.InfoKV(ctx, "Health server listening", "listen_address", healthLis.Addr().String())
	}

	logger.InfoKV(ctx, "Alarm gateway listening",
		"listen_address", lis.Addr().String(),
		"base_url", settings.BaseURL,
		"vendor", settings.Vendor,
		"timeout", settings.Timeout,
		"version", version.Short(),
	)

	return serve(ctx, lis, NewHandler(settings))
}

// NewHandler assembles the instrumented REST API for the given settings.
// Extra options are applied to every vendor client.
func NewHandler(settings *config.Config, options ...elmo.Option) http.Handler {
	registry := metrics.New()
	options = append([]elmo.Option{elmo.WithTimeout(settings.Timeout)}, options...)
	remote := alarms.NewElmoRemote(settings.BaseURL, settings.Vendor, options...)
	service := alarms.NewService(remote, alarms.WithMetrics(registry))
	api := httpapi.NewServer(service, httpapi.WithMetrics(registry))

	return otelhttp.NewHandler(api, operationName)
}

// serve runs the HTTP server on lis until ctx is canceled, then shuts it down
// gracefully, letting in-flight requests finish.
func serve(ctx context.Context, lis net.Listener, handler http.Handler) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		// Requests inherit the process logger but not its cancellation.
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	// Done channel is closed after Shutdown finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})
	stop := make(chan struct{})

	go func() {
		defer close(done)

		select {
		case <-ctx.Done():
		case <-stop:
			return
		}

		logger.Info(ctx, "Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.ErrorKV(ctx, "HTTP server shutdown failed", "error", err)
		}
	}()

	err := server.Serve(lis)
	if !errors.Is(err, http.ErrServerClosed) {
		close(stop)
		<-done

		return fmt.Errorf("serve HTTP: %w", err)
	}

	<-done
	logger.Info(ctx, "HTTP server stopped")

	return nil
}
