// textcam recognizer - serves a local OCR backend over gRPC for remote engines
package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/GriffinCanCode/textcam/internal/config"
	"github.com/GriffinCanCode/textcam/internal/engine"
	"github.com/GriffinCanCode/textcam/internal/trace"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if cfg.Engine == engine.BackendRemote {
		slog.Error("recognizer cannot forward to another remote engine", "engine", cfg.Engine)
		os.Exit(1)
	}
	backend, err := engine.NewBackend(cfg)
	if err != nil {
		slog.Error("invalid engine configuration", "engine", cfg.Engine, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lis, err := net.Listen("tcp", cfg.RecognizerAddr)
	if err != nil {
		slog.Error("listen failed", "addr", cfg.RecognizerAddr, "error", err)
		os.Exit(1)
	}

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(trace.UnaryServerInterceptor()),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             engine.DefaultKeepaliveTime / 2,
			PermitWithoutStream: true,
		}),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(engine.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	eng := engine.New(backend, cfg.Languages)
	engine.RegisterRecognizerServer(srv, engine.NewBackendServer(eng))

	// Clients treat NOT_SERVING as "engine still loading".
	go func() {
		if err := eng.Initialize(ctx); err == nil {
			hs.SetServingStatus(engine.ServiceName, healthpb.HealthCheckResponse_SERVING)
		}
	}()

	go func() {
		slog.Info("recognizer starting", "grpc", cfg.RecognizerAddr, "engine", eng.Name())
		if err := srv.Serve(lis); err != nil {
			slog.Error("grpc server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()
	hs.Shutdown()

	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		srv.Stop()
	}

	if err := eng.Close(); err != nil {
		slog.Error("backend close error", "error", err)
	}
	slog.Info("shutdown complete")
}
