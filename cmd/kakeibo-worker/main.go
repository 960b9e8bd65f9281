package main

import (
	"context"
	"errors"
	"os"
	"time"

	"kakeibo/internal/amqp"
	"kakeibo/internal/cli"
	"kakeibo/internal/log"
	"kakeibo/internal/storage"
	"kakeibo/internal/worker"
)

const recentDuplicates = 20

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.SQLiteDBPath == "" || cfg.AMQPURL == "" {
		logger.Error("The journal worker needs SQLITE_DB_PATH and AMQP_URL")
		os.Exit(1)
	}

	logger.Info("Starting kakeibo-worker")

	journal, err := storage.NewJournalRepository(cfg.SQLiteDBPath, nil)
	if err != nil {
		logger.Error("Failed to initialize entry journal", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer journal.Close()

	client, err := amqp.NewClient(context.Background(), cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, func(context.Context) {
		if err := client.Close(); err != nil {
			logger.Error("AMQP close error", log.FieldError, err)
		}
	})

	// Report what earlier runs found so reused identifiers are not missed.
	if dups, err := journal.ListDuplicates(ctx, recentDuplicates); err != nil {
		logger.Error("Failed to read duplicate identifiers", log.FieldError, err)
	} else {
		for _, d := range dups {
			logger.Warn("Known duplicate entry id",
				"document_id", d.DocumentID,
				"region", d.Region,
				"entry_id", d.EntryID,
				"detected_at", d.DetectedAt)
		}
	}

	w := worker.NewJournalWorker(journal)
	if err := client.ConsumeEntryAppended(ctx, w.HandleEntryAppended); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		_ = client.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
