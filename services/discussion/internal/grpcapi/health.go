package grpcapi

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the name reported through grpc.health.v1 alongside the
// empty overall service.
const ServiceName = "discussion.v1.Discussion"

// Health mirrors store readiness into the standard gRPC health service.
type Health struct {
	*health.Server
	ready func(ctx context.Context) error
	log   *zap.Logger
}

func NewHealth(ready func(ctx context.Context) error, log *zap.Logger) *Health {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Health{Server: health.NewServer(), ready: ready, log: log}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Refresh probes readiness once and publishes the result.
func (h *Health) Refresh(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if h.ready != nil {
		if err := h.ready(ctx); err != nil {
			h.log.Warn("grpc health: not ready", zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.set(status)
}

// Run refreshes every interval until ctx is done, then marks every service
// as not serving.
func (h *Health) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	h.Refresh(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.Shutdown()
			return
		case <-t.C:
			probeCtx, cancel := context.WithTimeout(ctx, interval)
			h.Refresh(probeCtx)
			cancel()
		}
	}
}

func (h *Health) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.SetServingStatus("", status)
	h.SetServingStatus(ServiceName, status)
}

// NewServer builds the gRPC server with health and reflection registered.
func NewServer(h *Health, opts ...grpc.ServerOption) *grpc.Server {
	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, h.Server)
	reflection.Register(srv)
	return srv
}
