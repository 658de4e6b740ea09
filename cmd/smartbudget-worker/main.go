package main

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"smartbudget/internal/amqp"
	"smartbudget/internal/backend"
	"smartbudget/internal/cli"
	"smartbudget/internal/log"
	"smartbudget/internal/services"
	"smartbudget/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentWorker)

	if !cfg.AsyncAdviceEnabled() {
		logger.Error("AMQP_URL is required for the advice worker")
		os.Exit(1)
	}

	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	if backendCfg.Type == backend.MemoryBackend {
		logger.Warn("Worker is using the memory backend; records are not shared with the API server")
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

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP broker", log.FieldError, err)
		ledger.Close()
		os.Exit(1)
	}

	runCtx, stopConsuming := context.WithCancel(ctx)
	consumerDone := make(chan struct{})

	adviceWorker := worker.NewAdviceWorker(sessions, logger.Logger)
	go func() {
		defer close(consumerDone)
		if err := adviceWorker.Run(runCtx, amqpClient); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Advice consumer stopped", log.FieldError, err)
		}
	}()

	shutdownCtx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		stopConsuming()
		select {
		case <-consumerDone:
		case <-ctx.Done():
		}
		sessions.Wait()
		if err := amqpClient.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", log.FieldError, err)
		}
		if closer, ok := adviceClient.(io.Closer); ok {
			closer.Close()
		}
		ledger.Close()
	})

	logger.Info("Advice worker started",
		"queue", cfg.AMQPQueue,
		"exchange", cfg.AMQPExchange,
		"backend", backendCfg.Type.String())

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Advice worker stopped")
}
