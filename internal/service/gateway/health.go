package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/alarm-gateway/internal/logger"
)

// healthServer exposes the standard gRPC health service.
type healthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
}

func newHealthServer() *healthServer {
	grpcServer := grpc.NewServer()
	status := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, status)

	return &healthServer{
		grpcServer: grpcServer,
		health:     status,
	}
}

// Serve reports SERVING until ctx is canceled, then NOT_SERVING, and stops.
func (h *healthServer) Serve(ctx context.Context, lis net.Listener) error {
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC health server")
		h.health.Shutdown()
		h.grpcServer.GracefulStop()
		close(done)
	}()

	if err := h.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done

	return nil
}
