package app

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported next to the overall "" status.
const ServiceName = "cropsense.Advisor"

// HealthReporter mirrors the probe results on the standard gRPC health service.
type HealthReporter struct {
	srv    *health.Server
	probes Probes
	logger *zap.Logger
	last   healthpb.HealthCheckResponse_ServingStatus
}

func NewHealthReporter(p Probes, logger *zap.Logger) *HealthReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthReporter{srv: health.NewServer(), probes: p, logger: logger}
}

func (h *HealthReporter) Server() *health.Server { return h.srv }

// Update runs the probes once and publishes the result.
func (h *HealthReporter) Update() healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if h.probes.Check().Ready {
		st = healthpb.HealthCheckResponse_SERVING
	}
	if st != h.last {
		h.logger.Info("grpc health status", zap.String("status", st.String()))
		h.last = st
	}
	h.srv.SetServingStatus("", st)
	h.srv.SetServingStatus(ServiceName, st)
	return st
}

// Run refreshes the status every interval until ctx is done, then shuts the
// health server down so watchers see NOT_SERVING.
func (h *HealthReporter) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = 5 * time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	h.Update()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-t.C:
			h.Update()
		}
	}
}

// NewGRPCServer returns a server exposing the health service.
func NewGRPCServer(h *HealthReporter, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, h.srv)
	return s
}
