package grpc

import (
	"catalog/pkg/config"
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

type Server struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
}

func NewServer(cfg *config.AppConfig) (*Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	return NewServerWithListener(lis), nil
}

func NewServerWithListener(lis net.Listener) *Server {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			loggingInterceptor,
			recoveryInterceptor,
		),
	)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	return &Server{
		server:   grpcServer,
		health:   healthServer,
		listener: lis,
	}
}

func (s *Server) GetGRPCServer() grpc.ServiceRegistrar {
	return s.server
}

// RegisterCatalog exposes svc and reports it serving to health checks.
func (s *Server) RegisterCatalog(svc CatalogServiceServer) {
	RegisterCatalogServiceServer(s.server, svc)
	s.health.SetServingStatus(CatalogServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
}

func (s *Server) Start() error {
	zap.L().Info("gRPC server started successfully",
		zap.String("address", s.listener.Addr().String()))
	return s.server.Serve(s.listener)
}

func (s *Server) GetListener() net.Listener {
	return s.listener
}

func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
