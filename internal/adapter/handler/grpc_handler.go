package handler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/cartstore/internal/port"
)

// CartServiceName is the service name reported through gRPC health checks.
const CartServiceName = "cartstore.CartService"

// HealthHandler exposes the standard gRPC health service. The status of the
// cart service follows periodic probes of its collaborators.
type HealthHandler struct {
	server *health.Server
	probes map[string]port.Pinger
	logger *zap.Logger

	mu   sync.Mutex
	last map[string]error
}

func NewHealthHandler(probes map[string]port.Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		server: health.NewServer(),
		probes: probes,
		logger: logger.Named("health"),
		last:   make(map[string]error),
	}
}

func (h *HealthHandler) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

// Check probes every collaborator once and updates the serving status.
func (h *HealthHandler) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING

	for name, probe := range h.probes {
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := probe.Ping(probeCtx)
		cancel()

		h.logTransition(name, err)
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(CartServiceName, status)
	return status
}

// Run probes on every tick until ctx is done, then marks everything as not
// serving.
func (h *HealthHandler) Run(ctx context.Context, interval time.Duration) {
	h.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}

func (h *HealthHandler) logTransition(name string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev, seen := h.last[name]
	h.last[name] = err
	if seen && (prev == nil) == (err == nil) {
		return
	}

	if err != nil {
		h.logger.Warn("dependency unhealthy", zap.String("dependency", name), zap.Error(err))
	} else {
		h.logger.Info("dependency healthy", zap.String("dependency", name))
	}
}
