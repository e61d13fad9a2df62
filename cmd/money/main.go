package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hongyan1215/money/internal/amqp"
	"github.com/hongyan1215/money/internal/bot"
	"github.com/hongyan1215/money/internal/config"
	apphttp "github.com/hongyan1215/money/internal/http"
	"github.com/hongyan1215/money/internal/intent"
	applog "github.com/hongyan1215/money/internal/log"
	"github.com/hongyan1215/money/internal/services"
	"github.com/hongyan1215/money/internal/storage"
)

func main() {
	// Load .env for local development; ignore errors in production.
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository",
			"error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// AMQP is optional: without it the webhook dispatches inline and
	// saved records skip the spreadsheet backup queue.
	var (
		events  apphttp.EventPublisher
		exports services.ExportPublisher
	)
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange,
			cfg.EventQueue, cfg.ReplyQueue, cfg.ExportQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		events = client
		exports = client
		logger.Info("AMQP connected", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - webhook runs in inline mode")
	}

	dispatcher := bot.NewDispatcher(
		services.NewLedgerService(repo, exports),
		services.NewMatcherService(repo),
		services.NewMutationService(repo),
		services.NewEraserService(repo),
		services.NewStatsService(repo),
		services.NewBudgetService(repo),
	)

	parser := intent.NewOpenAIParser(cfg.OpenAIAPIKey, cfg.OpenAIModel)

	srv := apphttp.NewServer(":"+cfg.Port, logger, events, parser, dispatcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting money server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
