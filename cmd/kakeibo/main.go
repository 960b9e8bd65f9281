package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"kakeibo/internal/auth"
	"kakeibo/internal/backend"
	"kakeibo/internal/cli"
	"kakeibo/internal/config"
	apphttp "kakeibo/internal/http"
	"kakeibo/internal/log"
	"kakeibo/internal/services"
	"kakeibo/internal/session"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	clock := clockwork.NewRealClock()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.Logger, clock).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	// The provider loads in the background; sign-in answers 503 until it is ready.
	ready := auth.NewReady()
	loader := auth.LoadProvider(context.Background(), cfg, ready)
	sessions := session.NewStore(loader, cfg.SessionIdleTimeout, clock)

	var queue *services.WriteQueue
	if cfg.AllocationMode == config.AllocationSerialized {
		queue = services.NewWriteQueue(cfg.WriteQueueSize)
		if err := queue.Start(context.Background()); err != nil {
			logger.Error("Failed to start write queue", log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("Serializing ledger writes", "queue_size", cfg.WriteQueueSize)
	}

	deps := apphttp.Deps{
		Config:    cfg,
		Auth:      loader,
		Sessions:  sessions,
		Workbooks: res.Workbooks,
		Queue:     queue,
		Recorder:  res.Recorder,
		Publisher: res.Publisher,
		Checks:    res.Checks,
		Clock:     clock,
		Logger:    logger,
	}
	srv, err := apphttp.NewServer(":"+cfg.Port, deps)
	if err != nil {
		logger.Error("Failed to create server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if queue != nil {
			if err := queue.Stop(ctx); err != nil {
				logger.Error("Write queue shutdown error", log.FieldError, err)
			}
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting kakeibo server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"allocation", cfg.AllocationMode,
		"base_url", cfg.BaseURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
