package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hongyan1215/money/internal/core"
	"github.com/hongyan1215/money/internal/storage"

	"github.com/google/uuid"
)

// DuplicateWindow is the trailing window inside which an identical
// submission is treated as a redelivery rather than a new event.
const DuplicateWindow = 5 * time.Minute

// ExportPublisher enqueues a saved record for the spreadsheet backup.
type ExportPublisher interface {
	PublishExportRequest(ctx context.Context, transactionID string) error
}

// LedgerService owns the write path: it validates entry drafts, runs the
// duplicate guard per candidate, and persists what survives.
type LedgerService struct {
	store   *storage.SQLiteRepository
	exports ExportPublisher
	now     func() time.Time
}

// RecordResult reports a batch insert: what was saved and which entries
// were suppressed as duplicates, by item label, so the user hears about
// them rather than having them silently dropped.
type RecordResult struct {
	Saved      []core.Transaction
	Duplicates []string
}

func NewLedgerService(store *storage.SQLiteRepository, exports ExportPublisher) *LedgerService {
	return &LedgerService{
		store:   store,
		exports: exports,
		now:     time.Now,
	}
}

// IsDuplicate reports whether an equivalent record (same owner, item,
// amount, category and kind, exact and case-sensitive) already exists
// within the trailing duplicate window ending now.
func (s *LedgerService) IsDuplicate(ctx context.Context, owner string, e core.EntryDraft) (bool, error) {
	now := s.now()
	n, err := s.store.CountEquivalentSince(ctx, owner, e.Item, e.Amount, e.Category, e.Kind, now.Add(-DuplicateWindow), now)
	if err != nil {
		return false, fmt.Errorf("duplicate check: %w", err)
	}
	return n > 0, nil
}

// Record persists a batch of entry drafts. The duplicate guard runs per
// candidate so one duplicate does not block its siblings. Validation
// failures reject the whole batch before any store write.
func (s *LedgerService) Record(ctx context.Context, owner string, entries []core.EntryDraft) (*RecordResult, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("record: %w", core.ErrEmptyItem)
	}

	now := s.now()
	drafts := make([]core.Transaction, 0, len(entries))
	for _, e := range entries {
		occurred := e.OccurredAt
		if occurred.IsZero() {
			occurred = now
		}
		tx := core.Transaction{
			ID:         uuid.NewString(),
			Owner:      owner,
			Kind:       e.Kind,
			Amount:     e.Amount,
			Category:   e.Category,
			Item:       e.Item,
			OccurredAt: occurred,
			CreatedAt:  now,
		}
		if err := tx.Validate(); err != nil {
			return nil, fmt.Errorf("record %q: %w", e.Item, err)
		}
		drafts = append(drafts, tx)
	}

	result := &RecordResult{}
	for _, tx := range drafts {
		dup, err := s.IsDuplicate(ctx, owner, core.EntryDraft{
			Item: tx.Item, Amount: tx.Amount, Category: tx.Category, Kind: tx.Kind,
		})
		if err != nil {
			return nil, err
		}
		if dup {
			result.Duplicates = append(result.Duplicates, tx.Item)
			slog.InfoContext(ctx, "Duplicate entry suppressed",
				"owner", owner, "item", tx.Item, "amount", tx.Amount)
			continue
		}

		if err := s.store.CreateTransaction(ctx, tx); err != nil {
			return nil, fmt.Errorf("save transaction: %w", err)
		}
		result.Saved = append(result.Saved, tx)

		s.publishExport(ctx, tx.ID)
	}

	return result, nil
}

func (s *LedgerService) publishExport(ctx context.Context, id string) {
	if s.exports == nil {
		return
	}
	// Export is best-effort: a saved record must never fail because the
	// backup queue is down. The pending scan picks it up later.
	if err := s.exports.PublishExportRequest(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish export request",
			"transaction_id", id, "error", err)
	}
}
