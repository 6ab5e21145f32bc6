package vaultd

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"stakevault/native/vault"
)

// HealthService is the gRPC health endpoint. The vault service reports
// SERVING once the engine can read its state.
const HealthService = "stakevault.Vault"

// NewGRPCServer returns a gRPC server exposing grpc.health.v1.Health.
func NewGRPCServer() (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(otelgrpc.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(otelgrpc.StreamServerInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)
	return srv, hs
}

// UpdateHealth sets the vault service status from a state probe.
func UpdateHealth(hs *health.Server, engine *vault.Engine) {
	status := healthpb.HealthCheckResponse_SERVING
	if _, err := engine.VaultBalance(); err != nil && !vault.IsState(err) {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus(HealthService, status)
}
