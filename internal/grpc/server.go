package grpc

import (
	"context"
	"errors"
	"log"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"matchmaking-service/internal/observability"
)

// ServiceName is the health service name reported alongside the overall status.
const ServiceName = "matchmaking.v1.Matchmaking"

// Server exposes the standard gRPC health service for the matchmaking process.
type Server struct {
	server *gogrpc.Server
	health *health.Server
}

// NewServer builds a gRPC server instrumented with Prometheus and OpenTelemetry.
func NewServer() *Server {
	server := gogrpc.NewServer(
		gogrpc.StatsHandler(otelgrpc.NewServerHandler()),
		gogrpc.UnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	return &Server{server: server, health: healthServer}
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.server.GracefulStop()
	}()

	log.Printf("grpc listening addr=%s", lis.Addr())
	if err := s.server.Serve(lis); err != nil && !errors.Is(err, gogrpc.ErrServerStopped) {
		return err
	}
	return nil
}
