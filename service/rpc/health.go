package rpc

import (
	"net"

	"PPRelay/logger"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Services reported by the health server besides the overall "" entry.
const (
	ServiceChat      = "pprelay.Chat"
	ServiceSignaling = "pprelay.Signaling"
)

// HealthServer exposes grpc.health.v1 for load balancers and orchestrators.
type HealthServer struct {
	gs     *grpc.Server
	health *health.Server
}

func NewHealthServer() *HealthServer {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	for _, svc := range []string{"", ServiceChat, ServiceSignaling} {
		hs.SetServingStatus(svc, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return &HealthServer{gs: gs, health: hs}
}

// SetServing flips every reported service between SERVING and NOT_SERVING.
func (h *HealthServer) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	for _, svc := range []string{"", ServiceChat, ServiceSignaling} {
		h.health.SetServingStatus(svc, st)
	}
}

// Listen binds addr and serves until Stop. It returns once the listener is up.
func (h *HealthServer) Listen(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	h.Serve(lis)
	return nil
}

// Serve runs the gRPC server on lis in the background.
func (h *HealthServer) Serve(lis net.Listener) {
	logger.Info("[gRPC] health listening", zap.String("addr", lis.Addr().String()))
	go func() {
		if err := h.gs.Serve(lis); err != nil {
			logger.Warn("[gRPC] health server stopped", zap.Error(err))
		}
	}()
}

// Stop marks everything NOT_SERVING and stops the server.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.gs.GracefulStop()
}
