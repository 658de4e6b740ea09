package backend

import (
	"context"
	"fmt"
	"log/slog"

	"smartbudget/internal/advice"
	"smartbudget/internal/amqp"
	"smartbudget/internal/config"
	"smartbudget/internal/storage"
	"smartbudget/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	version, dirty, err := storage.SchemaVersion(config.SQLiteDBPath)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		repo.Close()
		return nil, fmt.Errorf("sqlite schema version %d is dirty", version)
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"schema_version", version)

	return &BackendResult{
		Store:   repo,
		Ready:   repo.Ping,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Info("Initialized memory backend")

	return &BackendResult{
		Store: memory.New(),
		Ready: func(context.Context) error { return nil },
	}, nil
}

// NewAdviceClient returns the Gemini adapter when an API key is configured
// and advice.Offline otherwise.
func NewAdviceClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (advice.Client, error) {
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, advice requests will use fallback answers")
		return advice.Offline, nil
	}
	client, err := advice.NewGemini(ctx, advice.GeminiConfig{
		APIKey:   cfg.GeminiAPIKey,
		Model:    cfg.GeminiModel,
		Endpoint: cfg.GeminiEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize advice client: %w", err)
	}
	logger.Info("Initialized Gemini advice client", "model", cfg.GeminiModel)
	return client, nil
}

// ConnectAMQP dials the broker when AMQP_URL is set. A failed dial is
// logged and yields nil so the API keeps serving synchronous requests.
func ConnectAMQP(cfg *config.Config, logger *slog.Logger) *amqp.Client {
	if !cfg.AsyncAdviceEnabled() {
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without async advice", "error", err)
		return nil
	}
	logger.Info("Initialized AMQP client",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	return client
}
