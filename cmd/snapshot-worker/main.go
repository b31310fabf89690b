package main

import (
	"context"
	"errors"
	"os"
	"time"

	"haybase/internal/cli"
	"haybase/internal/event"
	"haybase/internal/ledger"
	"haybase/internal/storage"
	"haybase/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("snapshot-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	logger.Info("Starting snapshot-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the snapshot worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	client, err := event.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	// The worker only reads and writes snapshots, so it publishes no
	// events of its own.
	service := ledger.NewService(repo, nil)
	snapshots := worker.NewSnapshotWorker(service, cfg.SnapshotDebounce)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		snapshots.Flush()
	})

	if err := client.ConsumeLedgerChanges(ctx, func(msg *event.LedgerChangedMessage) error {
		return snapshots.HandleChangeMessage(ctx, msg)
	}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	<-done
	logger.Info("Worker stopped gracefully")
}
