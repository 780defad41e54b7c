package grpc

import (
	"context"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/turtacn/mfagate/pkg/logger"
)

// ServiceName is the health service name reported next to the overall ("") status.
const ServiceName = "mfagate.v1.Verification"

// HealthServer serves the standard gRPC health protocol, driven by the same dependency checks as /ready.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	checkers map[string]func(context.Context) error
	interval time.Duration
	log      logger.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

// NewHealthServer creates a gRPC server exposing grpc.health.v1.Health.
// Statuses start as NOT_SERVING until the first refresh.
func NewHealthServer(log logger.Logger, checkers map[string]func(context.Context) error, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	chain := NewInterceptorChain(log)
	server := grpc.NewServer(chain.ChainUnaryInterceptors())
	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &HealthServer{
		server:   server,
		health:   hs,
		checkers: checkers,
		interval: interval,
		log:      log.WithComponent("grpc_health"),
		stop:     make(chan struct{}),
	}
}

// Refresh runs every check once and publishes the aggregate status.
func (s *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for name, check := range s.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := check(checkCtx)
		cancel()
		if err != nil {
			s.log.Warn(ctx, "Dependency check failed", logger.String("dependency", name), logger.Any("error", err.Error()))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Serve refreshes the status periodically and serves on lis until Stop is called.
func (s *HealthServer) Serve(lis net.Listener) error {
	s.Refresh(context.Background())
	go s.refreshLoop()

	s.log.Info(context.Background(), "Starting gRPC server", logger.String("address", lis.Addr().String()))
	return s.server.Serve(lis)
}

// Start listens on addr and serves.
func (s *HealthServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

func (s *HealthServer) refreshLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Refresh(context.Background())
		}
	}
}

// Stop marks every service NOT_SERVING and drains in-flight calls.
func (s *HealthServer) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.health.Shutdown()
		s.server.GracefulStop()
	})
}

//Personal.AI order the ending
