// Package transport exposes the exporter's gRPC surface.
package transport

import (
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthHandler serves grpc.health.v1 for every pipeline component. The empty
// service name reports SERVING only while all registered components are serving.
type HealthHandler struct {
	server *health.Server
	logger *zap.Logger

	mu         sync.Mutex
	components map[string]bool
}

// NewHealthHandler registers components as NOT_SERVING until they report in.
func NewHealthHandler(logger *zap.Logger, components ...string) *HealthHandler {
	h := &HealthHandler{
		server:     health.NewServer(),
		logger:     logger,
		components: make(map[string]bool, len(components)),
	}
	for _, component := range components {
		h.components[component] = false
		h.server.SetServingStatus(component, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	h.server.SetServingStatus("", h.overallLocked())
	return h
}

func (h *HealthHandler) Register(grpcServer *grpc.Server) {
	healthpb.RegisterHealthServer(grpcServer, h.server)
}

func (h *HealthHandler) SetServing(component string) {
	h.set(component, true)
}

func (h *HealthHandler) SetNotServing(component string) {
	h.set(component, false)
}

// Shutdown flips every status to NOT_SERVING and ignores later updates.
func (h *HealthHandler) Shutdown() {
	h.server.Shutdown()
}

func (h *HealthHandler) set(component string, serving bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.components[component]; ok && prev == serving {
		return
	}
	h.components[component] = serving

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.logger.Info("component health changed",
		zap.String("component", component),
		zap.String("status", status.String()),
	)
	h.server.SetServingStatus(component, status)
	h.server.SetServingStatus("", h.overallLocked())
}

func (h *HealthHandler) overallLocked() healthpb.HealthCheckResponse_ServingStatus {
	if len(h.components) == 0 {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	for _, serving := range h.components {
		if !serving {
			return healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	return healthpb.HealthCheckResponse_SERVING
}
