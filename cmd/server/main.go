// textcam server - owns the camera, runs recognition and serves the control surface
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/textcam/internal/camera"
	"github.com/GriffinCanCode/textcam/internal/config"
	"github.com/GriffinCanCode/textcam/internal/engine"
	"github.com/GriffinCanCode/textcam/internal/orchestrator"
	"github.com/GriffinCanCode/textcam/internal/server"
)

func main() {
	cfg := config.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	eng, err := engine.NewFromConfig(cfg)
	if err != nil {
		slog.Error("invalid engine configuration", "engine", cfg.Engine, "error", err)
		os.Exit(1)
	}

	facing, err := camera.ParseFacing(cfg.CameraFacing)
	if err != nil {
		slog.Error("invalid camera facing", "facing", cfg.CameraFacing, "error", err)
		os.Exit(1)
	}
	source, err := camera.NewSource(cfg.CameraBackend, camera.Settings{
		EnvironmentDevice: cfg.EnvironmentDevice,
		UserDevice:        cfg.UserDevice,
		Width:             cfg.FrameWidth,
		Height:            cfg.FrameHeight,
		File:              cfg.CameraFile,
	})
	if err != nil {
		slog.Error("invalid camera configuration", "backend", cfg.CameraBackend, "error", err)
		os.Exit(1)
	}
	cam := camera.NewManager(source, facing)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Engine loading can be slow; captures are refused until it is ready.
	go func() { _ = eng.Initialize(ctx) }()

	orch := orchestrator.New(cfg, cam, eng)
	if err := orch.Start(ctx); err != nil {
		slog.Error("orchestrator error", "error", err)
		os.Exit(1)
	}

	srv := server.New(orch)

	// A manual capture holds its request open until recognition finishes.
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RecognizeTimeout + 10*time.Second,
	}

	go func() {
		slog.Info("textcam server starting", "http", cfg.HTTPAddr, "engine", cfg.Engine, "camera", cfg.CameraBackend)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	orch.Stop()
	if err := eng.Close(); err != nil {
		slog.Error("engine close error", "error", err)
	}
	slog.Info("shutdown complete")
}
