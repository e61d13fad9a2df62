package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hongyan1215/money/internal/core"
	"github.com/hongyan1215/money/internal/storage"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "money.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

// seed writes a transaction directly to the store, bypassing the
// duplicate guard, with full control over both timestamps.
func seed(t *testing.T, repo *storage.SQLiteRepository, owner, item string, amount float64, category core.Category, kind core.Kind, occurred, created time.Time) core.Transaction {
	t.Helper()
	tx := core.Transaction{
		ID:         uuid.NewString(),
		Owner:      owner,
		Kind:       kind,
		Amount:     amount,
		Category:   category,
		Item:       item,
		OccurredAt: occurred,
		CreatedAt:  created,
	}
	if err := repo.CreateTransaction(context.Background(), tx); err != nil {
		t.Fatalf("seed %q: %v", item, err)
	}
	return tx
}

func seedExpense(t *testing.T, repo *storage.SQLiteRepository, owner, item string, amount float64, category core.Category, at time.Time) core.Transaction {
	t.Helper()
	return seed(t, repo, owner, item, amount, category, core.Expense, at, at)
}
