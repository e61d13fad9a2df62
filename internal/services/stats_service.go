package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/hongyan1215/money/internal/core"
	"github.com/hongyan1215/money/internal/storage"
)

// listCap bounds human-readable listings; it is a display cap, not an
// export mechanism.
const listCap = 20

type (
	// CategoryTotal is one row of an expense breakdown.
	CategoryTotal struct {
		Category core.Category
		Total    float64
	}

	// Stats summarizes one filtered snapshot of the ledger. Breakdown
	// covers expenses only and its totals sum to exactly TotalExpense.
	Stats struct {
		TotalExpense float64
		TotalIncome  float64
		Count        int
		Breakdown    []CategoryTotal
	}

	// TopExpense holds the top category by summed amount and the top
	// single record by amount. They are computed independently: the top
	// record need not belong to the top category.
	TopExpense struct {
		TopCategory *CategoryTotal
		TopRecord   *core.Transaction
	}
)

// StatsService performs read-only aggregation over the ledger.
type StatsService struct {
	store *storage.SQLiteRepository
}

func NewStatsService(store *storage.SQLiteRepository) *StatsService {
	return &StatsService{store: store}
}

// Compute filters the owner's records to the range (and category, if
// given) and aggregates them. The kind totals and the expense category
// breakdown walk the same fetched slice, so they can never summarize
// different record sets.
func (s *StatsService) Compute(ctx context.Context, owner string, rng core.DateRange, category core.Category) (*Stats, error) {
	txs, err := s.store.ListRange(ctx, core.TransactionFilter{
		Owner:    owner,
		Range:    rng,
		Category: category,
	})
	if err != nil {
		return nil, fmt.Errorf("compute stats: %w", err)
	}

	stats := &Stats{Count: len(txs)}
	byCategory := make(map[core.Category]float64)
	for _, tx := range txs {
		switch tx.Kind {
		case core.Expense:
			stats.TotalExpense += tx.Amount
			byCategory[tx.Category] += tx.Amount
		case core.Income:
			stats.TotalIncome += tx.Amount
		}
	}

	stats.Breakdown = sortedBreakdown(byCategory)
	return stats, nil
}

// List returns the newest transactions in range, capped for display.
func (s *StatsService) List(ctx context.Context, owner string, rng core.DateRange) ([]core.Transaction, error) {
	txs, err := s.store.ListRange(ctx, core.TransactionFilter{
		Owner: owner,
		Range: rng,
		Limit: listCap,
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// Top finds the top expense category and the top individual expense
// record in range. Nil fields mean no expenses in range.
func (s *StatsService) Top(ctx context.Context, owner string, rng core.DateRange) (*TopExpense, error) {
	txs, err := s.store.ListRange(ctx, core.TransactionFilter{
		Owner: owner,
		Range: rng,
	})
	if err != nil {
		return nil, fmt.Errorf("top expense: %w", err)
	}

	byCategory := make(map[core.Category]float64)
	var topRecord *core.Transaction
	for i := range txs {
		tx := txs[i]
		if tx.Kind != core.Expense {
			continue
		}
		byCategory[tx.Category] += tx.Amount
		if topRecord == nil || tx.Amount > topRecord.Amount {
			topRecord = &txs[i]
		}
	}

	result := &TopExpense{TopRecord: topRecord}
	if breakdown := sortedBreakdown(byCategory); len(breakdown) > 0 {
		result.TopCategory = &breakdown[0]
	}
	return result, nil
}

func sortedBreakdown(byCategory map[core.Category]float64) []CategoryTotal {
	breakdown := make([]CategoryTotal, 0, len(byCategory))
	for cat, total := range byCategory {
		breakdown = append(breakdown, CategoryTotal{Category: cat, Total: total})
	}
	// Descending by total; category name breaks ties so output is stable.
	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].Total != breakdown[j].Total {
			return breakdown[i].Total > breakdown[j].Total
		}
		return breakdown[i].Category < breakdown[j].Category
	})
	return breakdown
}
