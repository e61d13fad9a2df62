package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hongyan1215/money/internal/amqp"
	"github.com/hongyan1215/money/internal/core"
	"github.com/hongyan1215/money/internal/storage"
)

// SheetAppender writes one transaction row to the backup spreadsheet.
type SheetAppender interface {
	Append(ctx context.Context, tx core.Transaction) error
}

// ExportWorker copies saved transactions to the spreadsheet backup. It
// consumes export requests and, as a recovery path for lost messages,
// scans for records still marked pending.
type ExportWorker struct {
	store     *storage.SQLiteRepository
	sheets    SheetAppender
	batchSize int
}

func NewExportWorker(store *storage.SQLiteRepository, sheets SheetAppender, batchSize int) *ExportWorker {
	return &ExportWorker{
		store:     store,
		sheets:    sheets,
		batchSize: batchSize,
	}
}

// HandleExportRequest exports the transaction named by one AMQP message.
// A record that no longer exists is acked and dropped: it was deleted
// between save and export, and there is nothing left to back up.
func (w *ExportWorker) HandleExportRequest(ctx context.Context, msg *amqp.ExportRequestMessage) error {
	tx, err := w.store.GetTransactionByID(ctx, msg.TransactionID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Export target vanished, dropping request",
			"transaction_id", msg.TransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load transaction for export: %w", err)
	}

	return w.export(ctx, tx)
}

// ProcessPending exports up to one batch of records still marked
// pending. Called periodically as a safety net for lost messages.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.store.PendingExports(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("scan pending exports: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	for _, tx := range pending {
		if err := w.export(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Failed to export pending record",
				"transaction_id", tx.ID, "error", err)
		}
	}
	return nil
}

// StartupCheck drains a larger pending backlog once at worker start,
// recovering from downtime while the API kept accepting records.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.store.PendingExports(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("scan pending exports on startup: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending exports on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending exports on startup", "count", len(pending))

	exported, failed := 0, 0
	for _, tx := range pending {
		if err := w.export(ctx, tx); err != nil {
			slog.ErrorContext(ctx, "Startup export failed",
				"transaction_id", tx.ID, "error", err)
			failed++
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Startup export check completed",
		"total", len(pending), "exported", exported, "failed", failed)
	return nil
}

func (w *ExportWorker) export(ctx context.Context, tx core.Transaction) error {
	if err := w.sheets.Append(ctx, tx); err != nil {
		if markErr := w.store.MarkExportFailed(ctx, tx.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark export failed",
				"transaction_id", tx.ID, "error", markErr)
		}
		return fmt.Errorf("append to sheet: %w", err)
	}

	if err := w.store.MarkExported(ctx, tx.ID); err != nil {
		// The row is in the sheet; a stale pending flag is recoverable
		// and must not trigger a duplicate append via requeue.
		slog.ErrorContext(ctx, "Failed to mark as exported",
			"transaction_id", tx.ID, "error", err)
	}

	slog.InfoContext(ctx, "Transaction exported",
		"transaction_id", tx.ID, "item", tx.Item)
	return nil
}
