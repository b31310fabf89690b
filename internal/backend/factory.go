package backend

import (
	"context"
	"fmt"
	"log/slog"

	"haybase/internal/event"
	"haybase/internal/log"
	"haybase/internal/storage"
	"haybase/internal/storage/memory"
)

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger.With(log.FieldComponent, log.ComponentBackend)}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case SQLite:
		return f.createSQLiteBackend(config)
	case Memory:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	events, err := f.connectEvents(config)
	if err != nil {
		repo.Close()
		return nil, err
	}

	f.logger.Info("Initialized SQLite backend",
		"path", config.SQLiteDBPath,
		"amqp", events != nil)

	return &Result{
		Store:  repo,
		Events: events,
		Ready: func(ctx context.Context) error {
			return repo.DB().PingContext(ctx)
		},
		Cleanup: func() error {
			if events != nil {
				if err := events.Close(); err != nil {
					f.logger.Warn("Failed to close AMQP client", "error", err)
				}
			}
			return repo.Close()
		},
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*Result, error) {
	store := memory.NewStore()

	events, err := f.connectEvents(config)
	if err != nil {
		return nil, err
	}

	f.logger.Info("Initialized memory backend", "amqp", events != nil)

	return &Result{
		Store:  store,
		Events: events,
		Cleanup: func() error {
			if events != nil {
				return events.Close()
			}
			return nil
		},
	}, nil
}

// connectEvents dials AMQP when a URL is configured. Publishing is
// optional: without it mutations simply skip the ledger-changed event.
func (f *DefaultFactory) connectEvents(config Config) (*event.Client, error) {
	if config.AMQPURL == "" {
		return nil, nil
	}
	client, err := event.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
	}
	return client, nil
}
