package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hongyan1215/money/internal/core"
)

func TestEraseRange_RequiresBothBounds(t *testing.T) {
	repo := newTestStore(t)
	svc := NewEraserService(repo)
	ctx := context.Background()

	day := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	seedExpense(t, repo, "u1", "lunch", 150, core.Food, day)

	tests := []struct {
		name string
		rng  core.DateRange
	}{
		{"missing both", core.DateRange{}},
		{"missing end", core.DateRange{Start: day}},
		{"missing start", core.DateRange{End: day}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.EraseRange(ctx, "u1", tt.rng); !errors.Is(err, core.ErrMissingRangeBound) {
				t.Errorf("EraseRange: err = %v, want ErrMissingRangeBound", err)
			}
		})
	}

	// The half-specified ranges never reached the store.
	txs, err := repo.ListRange(ctx, core.TransactionFilter{Owner: "u1"})
	if err != nil {
		t.Fatalf("ListRange: %v", err)
	}
	if len(txs) != 1 {
		t.Errorf("ledger has %d records after rejected erasures, want 1", len(txs))
	}
}

func TestEraseRange_InclusiveBoundaries(t *testing.T) {
	repo := newTestStore(t)
	svc := NewEraserService(repo)
	ctx := context.Background()

	before := time.Date(2026, 8, 9, 12, 0, 0, 0, time.UTC)
	onStart := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	inside := time.Date(2026, 8, 12, 9, 30, 0, 0, time.UTC)
	onEnd := time.Date(2026, 8, 15, 23, 0, 0, 0, time.UTC)
	after := time.Date(2026, 8, 16, 8, 0, 0, 0, time.UTC)

	seedExpense(t, repo, "u1", "before", 10, core.Other, before)
	seedExpense(t, repo, "u1", "on start", 20, core.Other, onStart)
	seedExpense(t, repo, "u1", "inside", 30, core.Other, inside)
	seedExpense(t, repo, "u1", "on end day", 40, core.Other, onEnd)
	seedExpense(t, repo, "u1", "after", 50, core.Other, after)
	seedExpense(t, repo, "u2", "other owner", 60, core.Other, inside)

	rng := core.NewDateRange(
		time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
	)
	n, err := svc.EraseRange(ctx, "u1", rng)
	if err != nil {
		t.Fatalf("EraseRange: %v", err)
	}
	if n != 3 {
		t.Errorf("deleted %d, want 3 (both boundary days included)", n)
	}

	remaining, err := repo.ListRange(ctx, core.TransactionFilter{Owner: "u1"})
	if err != nil {
		t.Fatalf("ListRange: %v", err)
	}
	for _, tx := range remaining {
		if tx.Item != "before" && tx.Item != "after" {
			t.Errorf("record %q survived erasure", tx.Item)
		}
	}

	// Other owners untouched.
	others, err := repo.ListRange(ctx, core.TransactionFilter{Owner: "u2"})
	if err != nil {
		t.Fatalf("ListRange u2: %v", err)
	}
	if len(others) != 1 {
		t.Errorf("u2 has %d records, want 1", len(others))
	}
}

func TestEraseRange_EmptyRangeIsNotAnError(t *testing.T) {
	repo := newTestStore(t)
	svc := NewEraserService(repo)

	rng := core.NewDateRange(
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
	)
	n, err := svc.EraseRange(context.Background(), "u1", rng)
	if err != nil {
		t.Fatalf("EraseRange: %v", err)
	}
	if n != 0 {
		t.Errorf("deleted %d from empty range, want 0", n)
	}
}
