package grpc

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthv1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/edoardo-nicoli03/stock-market-project/internal/logger"
)

// Server wraps the gRPC server with the auth interceptor and the standard
// health service wired in.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	log        *logger.Logger
	port       int
}

// NewServer creates a new gRPC server instance
func NewServer(verifier TokenVerifier, log *logger.Logger, port int) *Server {
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(AuthInterceptor(verifier)),
	)

	healthServer := health.NewServer()
	healthv1.RegisterHealthServer(grpcServer, healthServer)

	return &Server{
		grpcServer: grpcServer,
		health:     healthServer,
		log:        log,
		port:       port,
	}
}

// Registrar exposes the underlying registrar so callers can attach
// additional services before Serve.
func (s *Server) Registrar() grpc.ServiceRegistrar {
	return s.grpcServer
}

// Serve listens on the configured port and blocks until the server stops.
func (s *Server) Serve() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}

	s.health.SetServingStatus("", healthv1.HealthCheckResponse_SERVING)
	s.log.Info("gRPC server listening", logger.NewField("port", s.port))

	return s.grpcServer.Serve(lis)
}

// GracefulStop marks the server not-serving and drains in-flight RPCs.
func (s *Server) GracefulStop() {
	s.health.SetServingStatus("", healthv1.HealthCheckResponse_NOT_SERVING)
	s.grpcServer.GracefulStop()
}
