package grpc

import (
	"context"
	"errors"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported for the update endpoint.
const ServiceName = "jupdate53.Update"

// NewHealthServer returns a health server whose overall and per-service
// status follow ready.
func NewHealthServer(ready bool) *health.Server {
	hs := health.NewServer()
	SetReady(hs, ready)
	return hs
}

// SetReady updates the serving status of the overall server and ServiceName.
func SetReady(hs *health.Server, ready bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus(ServiceName, status)
}

// NewServer builds a gRPC server exposing hs and reflection.
func NewServer(hs *health.Server) *grpc.Server {
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)
	return s
}

// RunGRPCServer starts a gRPC server on the given address and
// shuts it down gracefully when the context is canceled.
// An empty addr disables the server.
func RunGRPCServer(ctx context.Context, addr string, hs *health.Server, log zerolog.Logger) error {
	if addr == "" {
		log.Info().Msg("gRPC server disabled")
		return nil
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s := NewServer(hs)

	// Stop the server once the context is done (SIGTERM, timeout, etc.).
	go func() {
		<-ctx.Done()
		hs.Shutdown()
		s.GracefulStop()
	}()

	log.Info().Str("addr", lis.Addr().String()).Msg("gRPC server listening")
	if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
