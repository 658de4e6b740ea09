package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"smartbudget/internal/backend"
	"smartbudget/internal/cache"
	"smartbudget/internal/cli"
	apphttp "smartbudget/internal/http"
	"smartbudget/internal/log"
	"smartbudget/internal/services"
)

const (
	shutdownTimeout      = 30 * time.Second
	cacheCleanupInterval = 5 * time.Minute
)

func main() {
	cli.LoadEnvFile()

	// The level is only known after config is loaded; bootstrap from the
	// raw env so config errors are logged at the requested level.
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel)

	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	ledger, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", log.FieldError, err, "backend", backendCfg.Type)
		os.Exit(1)
	}

	adviceClient, err := backend.NewAdviceClient(ctx, cfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to create advice client", log.FieldError, err)
		ledger.Close()
		os.Exit(1)
	}

	sessions, err := services.NewSessions(services.Deps{
		Store:         ledger.Store,
		Advice:        adviceClient,
		Logger:        logger,
		AdviceTimeout: cfg.AdviceTimeout,
		HistoryWindow: cfg.HistoryPromptWindow,
	}, cfg.SessionCacheSize, cfg.SessionTTL)
	if err != nil {
		logger.Error("Failed to create session registry", log.FieldError, err)
		ledger.Close()
		os.Exit(1)
	}

	cacheManager := cache.NewManager(logger.Logger)
	cacheManager.Register(sessions.Cache())
	cacheManager.StartCleanup(cacheCleanupInterval)

	opts := apphttp.Options{
		Addr:               ":" + cfg.Port,
		Sessions:           sessions,
		Ready:              ledger.Ready,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}
	// Assigning a nil *amqp.Client would make the publisher interface non-nil.
	amqpClient := backend.ConnectAMQP(cfg, logger.Logger)
	if amqpClient != nil {
		opts.Publisher = amqpClient
	}
	srv := apphttp.NewServer(opts)

	shutdownCtx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		sessions.Wait()
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", log.FieldError, err)
			}
		}
		if closer, ok := adviceClient.(io.Closer); ok {
			closer.Close()
		}
		ledger.Close()
	})

	logger.Info("Starting smartbudget server",
		"addr", opts.Addr,
		"backend", backendCfg.Type.String(),
		"async_advice", amqpClient != nil)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
