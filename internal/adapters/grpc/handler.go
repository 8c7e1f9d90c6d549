package grpc

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// ServiceName is the health-checked service; "" reports the same status
const ServiceName = "budwatch.Ingestor"

// HealthHandler serves grpc.health.v1 for the ingestion loop
// This implements the ports.StatusReporter interface
type HealthHandler struct {
	server *health.Server
}

// NewHealthHandler creates a handler that reports NOT_SERVING until told otherwise
func NewHealthHandler() *HealthHandler {
	h := &HealthHandler{server: health.NewServer()}
	h.SetServing(false)
	return h
}

// SetServing updates the status of both the overall server and ServiceName
func (h *HealthHandler) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.server.SetServingStatus("", st)
	h.server.SetServingStatus(ServiceName, st)
}

// Shutdown sets every service to NOT_SERVING and ignores later updates
func (h *HealthHandler) Shutdown() {
	h.server.Shutdown()
}

// NewServer creates a gRPC server exposing health and reflection.
// tlsCfg may be nil for plaintext (dev mode).
func NewServer(h *HealthHandler, tlsCfg *tls.Config) *grpc.Server {
	opts := []grpc.ServerOption{grpc.ChainUnaryInterceptor(logUnary)}
	if tlsCfg != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}

	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, h.server)

	// Enable gRPC reflection for grpcurl testing
	reflection.Register(srv)

	return srv
}

func logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	log.Debug().
		Str("method", info.FullMethod).
		Str("code", status.Code(err).String()).
		Dur("took", time.Since(start)).
		Msg("grpc call")

	return resp, err
}
