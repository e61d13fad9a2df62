package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/hongyan1215/money/internal/amqp"
	"github.com/hongyan1215/money/internal/bot"
	"github.com/hongyan1215/money/internal/cache"
	"github.com/hongyan1215/money/internal/config"
	"github.com/hongyan1215/money/internal/export"
	"github.com/hongyan1215/money/internal/intent"
	applog "github.com/hongyan1215/money/internal/log"
	"github.com/hongyan1215/money/internal/services"
	"github.com/hongyan1215/money/internal/storage"
	"github.com/hongyan1215/money/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	logger.Info("Starting money-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository",
			"error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange,
		cfg.EventQueue, cfg.ReplyQueue, cfg.ExportQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	dispatcher := bot.NewDispatcher(
		services.NewLedgerService(repo, client),
		services.NewMatcherService(repo),
		services.NewMutationService(repo),
		services.NewEraserService(repo),
		services.NewStatsService(repo),
		services.NewBudgetService(repo),
	)

	parser := intent.NewOpenAIParser(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	dedup := cache.NewDedupCache(cfg.DedupCacheSize, cfg.DedupTTL)
	eventWorker := worker.NewEventWorker(dedup, parser, dispatcher, client)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return client.ConsumeInboundEvents(ctx, eventWorker.HandleInboundEvent)
	})

	// Spreadsheet backup is optional; without a spreadsheet the export
	// queue is left to accumulate for a later operator decision.
	if cfg.GoogleSpreadsheetID != "" {
		exporter, err := export.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize sheets exporter", "error", err)
			os.Exit(1)
		}
		exportWorker := worker.NewExportWorker(repo, exporter, cfg.ExportBatchSize)

		if err := exportWorker.StartupCheck(ctx); err != nil {
			logger.Error("Startup export check failed", "error", err)
		}

		g.Go(func() error {
			return client.ConsumeExportRequests(ctx, exportWorker.HandleExportRequest)
		})

		g.Go(func() error {
			ticker := time.NewTicker(cfg.ExportInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					if err := exportWorker.ProcessPending(ctx); err != nil {
						logger.Error("Pending export scan failed", "error", err)
					}
				}
			}
		})
	} else {
		logger.Info("Spreadsheet export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	logger.Info("Worker running",
		"event_queue", cfg.EventQueue, "export_queue", cfg.ExportQueue)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
