// Package health exposes the controller process's liveness/readiness over
// the stock gRPC health-checking protocol (grpc.health.v1), the same
// service the teacher wires with no custom codegen of its own — just the
// health package's generated server registered on a plain grpc.Server.
package health

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server serves the standard gRPC health check service and lets the rest
// of the application flip the reported status as components come up or go
// down.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
}

// New creates a Server, initially reporting NOT_SERVING for the empty
// service name (the whole-process status) until SetServing is called.
func New() *Server {
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, h)

	return &Server{grpcServer: gs, health: h}
}

// SetServing flips the whole-process health status, e.g. once the
// controller has finished wiring its queue and worker pool.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

// Serve listens on addr and blocks serving health checks until ctx is
// canceled, at which point it gracefully stops.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("health: listen %s: %w", addr, err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.grpcServer.Serve(lis) }()

	select {
	case <-ctx.Done():
		s.grpcServer.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Stop force-stops the health server immediately, for use outside the
// Serve/ctx lifecycle (e.g. a failed startup unwinding early).
func (s *Server) Stop() {
	s.grpcServer.Stop()
}
