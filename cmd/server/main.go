// Command server runs the Huddle HTTP and websocket API.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"huddle/internal/bootstrap"
	"huddle/internal/config"
	"huddle/internal/observability"

	gfshutdown "github.com/gelmium/graceful-shutdown"
)

// @title Huddle API
// @version 1.0
// @description Community feed API with posts, likes and realtime room events.

// @host localhost:8375
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.InitLogger(cfg.Env, os.Stdout)

	ctx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	shutdownTracer, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:  observability.ServiceName,
		Environment:  cfg.Env,
		Exporter:     cfg.OTelExporter,
		OTLPEndpoint: cfg.OTelEndpoint,
		SamplerRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	rt, err := bootstrap.InitRuntime(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	if err := rt.StartBackground(ctx); err != nil {
		log.Fatalf("Failed to start background workers: %v", err)
	}

	go func() {
		if err := rt.Server.Start(); err != nil {
			logger.Error("server_stopped", slog.String("error", err.Error()))
		}
	}()

	timeout := time.Duration(cfg.ShutdownTimeoutS) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	// Operations run concurrently, so the ordered part of the teardown lives
	// in one of them: stop accepting requests, close every websocket with a
	// going-away frame, then stop the relay subscriber and reconciler.
	wait := gfshutdown.GracefulShutdown(context.Background(), timeout, map[string]gfshutdown.Operation{
		"server": func(ctx context.Context) error {
			logger.Info("shutdown_started")
			if err := rt.Server.Shutdown(ctx); err != nil {
				logger.Error("http_shutdown_failed", slog.String("error", err.Error()))
			}
			if err := rt.Hub.Shutdown(ctx); err != nil {
				logger.Error("hub_shutdown_failed", slog.String("error", err.Error()))
			}
			stopBackground()
			return nil
		},
		"tracer": func(ctx context.Context) error {
			return shutdownTracer(ctx)
		},
	})

	exitCode := <-wait
	if err := rt.Close(); err != nil {
		logger.Error("resource_close_failed", slog.String("error", err.Error()))
		exitCode = 1
	}
	logger.Info("server_exited", slog.Int("code", exitCode))
	os.Exit(exitCode)
}
