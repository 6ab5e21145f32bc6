package vaultd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc/health"

	"stakevault/config"
	"stakevault/core/events"
	"stakevault/observability/logging"
	telemetry "stakevault/observability/otel"
	"stakevault/services/vaultd/audit"
)

// Main initialises and runs the vault daemon.
func Main() error {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/vaultd/config.yaml", "path to vaultd configuration")
	flag.Parse()

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv("VAULT_ENV"))
	logger := logging.SetupWithOptions("vaultd", env, logging.Options{
		Level: logging.ParseLevel(cfg.Observability.LogLevel),
		File:  cfg.Observability.LogFile,
	})

	telemetryCfg := telemetry.Config{
		ServiceName:    "vaultd",
		ServiceVersion: strings.TrimSpace(os.Getenv("VAULT_VERSION")),
		Environment:    env,
		Endpoint:       cfg.Observability.OTLPEndpoint,
		Insecure:       cfg.Observability.OTLPInsecure,
		Metrics:        cfg.Observability.Metrics,
		Traces:         cfg.Observability.Traces,
		SampleRatio:    cfg.Observability.SampleRatio,
	}.ApplyEnv(os.Getenv)
	if telemetryCfg.Enabled() {
		shutdownTelemetry, err := telemetry.Init(context.Background(), telemetryCfg)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			_ = shutdownTelemetry(context.Background())
		}()
	}

	nodeCfg, err := config.Load(cfg.NodeConfigPath)
	if err != nil {
		return fmt.Errorf("load node config: %w", err)
	}

	hub := NewHub()
	defer hub.Close()
	emitter := events.MultiEmitter{hub}
	if cfg.Audit.DSN != "" {
		db, err := audit.Open(cfg.Audit.DSN)
		if err != nil {
			return err
		}
		journal, err := audit.NewJournal(db, logger)
		if err != nil {
			return err
		}
		emitter = append(emitter, journal)
		logger.Info("audit journal enabled", logging.MaskField("dsn", cfg.Audit.DSN))
	}

	node, err := OpenNode(nodeCfg, emitter, logger)
	if err != nil {
		return err
	}
	defer node.Close()

	serverCfg := ServerConfig{
		Engine:        node.Engine,
		Hub:           hub,
		Auth:          NewAuthenticator(cfg.Auth, logger),
		Limiter:       NewRateLimiter(cfg.RateLimit),
		AssetID:       nodeCfg.AssetID,
		VestingPeriod: nodeCfg.VestingPeriodSeconds,
		Logger:        logger,
	}
	if cfg.Faucet.Enabled {
		serverCfg.Funder = node.State
		serverCfg.FaucetMax = cfg.Faucet.MaxAmount
		logger.Warn("development faucet enabled", "max_amount", cfg.Faucet.MaxAmount)
	}
	srv, err := NewServer(serverCfg)
	if err != nil {
		return err
	}

	grpcServer, healthServer := NewGRPCServer()
	UpdateHealth(healthServer, node.Engine)
	grpcListener, err := net.Listen("tcp", cfg.GRPCListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.GRPCListenAddress, err)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 2)
	go func() {
		logger.Info("vaultd listening", "address", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("serve http: %w", err)
		}
	}()
	go func() {
		logger.Info("vaultd health listening", "address", cfg.GRPCListenAddress)
		if err := grpcServer.Serve(grpcListener); err != nil {
			serverErr <- fmt.Errorf("serve grpc: %w", err)
		}
	}()
	go maintain(ctx, healthServer, srv, node)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-serverErr:
	}

	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Duration)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}
	return runErr
}

// maintain refreshes health and gauges and prunes idle rate limiter entries.
func maintain(ctx context.Context, hs *health.Server, srv *Server, node *Node) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			UpdateHealth(hs, node.Engine)
			srv.refreshGauges()
			srv.limiter.Prune(10 * time.Minute)
		}
	}
}
