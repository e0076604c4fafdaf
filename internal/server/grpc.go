package server

import (
	"context"

	"github.com/alfredjeanlab/chainreg/internal/events"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the name the health service reports for the registry.
const ServiceName = "chainreg"

// NewGRPCServer creates a gRPC server with standard interceptors, registers
// the health service and reflection, and returns the server ready to serve.
func NewGRPCServer(hs *health.Server) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			LoggingInterceptor,
		),
	)

	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return srv
}

// HealthReporter mirrors reconcile outcomes into the gRPC health service.
// It is an events.Publisher; register it next to the other publishers.
type HealthReporter struct {
	hs *health.Server
}

// NewHealthReporter returns a reporter that starts out serving.
func NewHealthReporter(hs *health.Server) *HealthReporter {
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return &HealthReporter{hs: hs}
}

// Publish marks the registry not serving after a failed reconcile and
// serving again after a successful one. Other topics are ignored.
func (r *HealthReporter) Publish(_ context.Context, topic string, event any) error {
	if topic != events.TopicReconcileCompleted {
		return nil
	}
	done, ok := event.(events.ReconcileCompleted)
	if !ok {
		return nil
	}
	st := healthpb.HealthCheckResponse_SERVING
	if done.Error != "" {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	r.hs.SetServingStatus(ServiceName, st)
	return nil
}

// Close marks every service not serving.
func (r *HealthReporter) Close() error {
	r.hs.Shutdown()
	return nil
}
