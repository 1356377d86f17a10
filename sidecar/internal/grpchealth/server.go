package grpchealth

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/obsidianstack/sidecar/pkg/types"
	"github.com/obsidianstack/sidecar/sidecar/internal/auth"
	"github.com/obsidianstack/sidecar/sidecar/internal/config"
)

// ServiceName is the named service reported alongside the overall status.
const ServiceName = "logstash.sidecar"

// Server is a gRPC server carrying only the health service.
type Server struct {
	hs   *health.Server
	grpc *grpc.Server

	mu   sync.Mutex
	last healthpb.HealthCheckResponse_ServingStatus
}

// New builds the server with API key interceptors from cfg. Until the first
// Update both services report NOT_SERVING.
func New(cfg config.ServerAuthConfig) *Server {
	s := &Server{
		hs: health.NewServer(),
		grpc: grpc.NewServer(
			grpc.UnaryInterceptor(auth.APIKeyInterceptor(cfg)),
			grpc.StreamInterceptor(auth.APIKeyStreamInterceptor(cfg)),
		),
		last: healthpb.HealthCheckResponse_NOT_SERVING,
	}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s.grpc, s.hs)
	return s
}

// ServingStatus maps a health classification to a gRPC serving status.
func ServingStatus(h types.HealthStatus) healthpb.HealthCheckResponse_ServingStatus {
	switch h {
	case types.StatusHealthy, types.StatusDegraded:
		return healthpb.HealthCheckResponse_SERVING
	default:
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
}

// Update applies the health of snap. It is meant to be registered with
// store.Subscribe.
func (s *Server) Update(snap types.StatsSnapshot) {
	st := ServingStatus(snap.Health.Status)
	s.mu.Lock()
	defer s.mu.Unlock()
	if st != s.last {
		slog.Info("grpchealth: serving status changed", "from", s.last, "to", st, "health", snap.Health.Status)
		s.last = st
	}
	s.set(st)
}

func (s *Server) set(st healthpb.HealthCheckResponse_ServingStatus) {
	s.hs.SetServingStatus("", st)
	s.hs.SetServingStatus(ServiceName, st)
}

// Serve listens on port and serves until ctx is cancelled, then stops
// gracefully.
func (s *Server) Serve(ctx context.Context, port int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("grpchealth: listen on port %d: %w", port, err)
	}
	return s.ServeListener(ctx, lis)
}

// ServeListener serves on lis until ctx is cancelled.
func (s *Server) ServeListener(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("grpchealth: listening", "addr", lis.Addr().String())
		errCh <- s.grpc.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		s.hs.Shutdown()
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("grpchealth: serve: %w", err)
		}
		return nil
	}
}
