package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hongyan1215/money/internal/core"
	"github.com/hongyan1215/money/internal/storage"
)

// Alert thresholds, in percent of the monthly limit.
const (
	alertExceededPct    = 100
	alertApproachingPct = 80
)

type (
	// BudgetStatus is one budget's current-month standing.
	BudgetStatus struct {
		Category core.Category
		Limit    float64
		Spent    float64
		Percent  int
		Over     bool
	}

	// Alert is raised when a freshly recorded expense pushes a budget
	// past a threshold. Exceeded distinguishes ≥100% from the 80–100%
	// approaching band.
	Alert struct {
		Category core.Category
		Limit    float64
		Spent    float64
		Percent  int
		Exceeded bool
	}
)

// BudgetService maintains monthly limits and evaluates spend against them.
type BudgetService struct {
	store *storage.SQLiteRepository
	now   func() time.Time
}

func NewBudgetService(store *storage.SQLiteRepository) *BudgetService {
	return &BudgetService{store: store, now: time.Now}
}

// SetBudget upserts the monthly limit for a category (or Total).
func (s *BudgetService) SetBudget(ctx context.Context, owner string, category core.Category, amount float64) error {
	b := core.Budget{Owner: owner, Category: category, Limit: amount}
	if err := b.Validate(); err != nil {
		return err
	}
	if err := s.store.UpsertBudget(ctx, b); err != nil {
		return fmt.Errorf("set budget: %w", err)
	}
	return nil
}

// Status computes current-month spend for every budget the owner has
// defined. Total budgets sum all expense records this month; category
// budgets sum only their own.
func (s *BudgetService) Status(ctx context.Context, owner string) ([]BudgetStatus, error) {
	budgets, err := s.store.ListBudgets(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("budget status: %w", err)
	}

	month := core.MonthOf(s.now())
	statuses := make([]BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		spent, err := s.store.MonthExpenseTotal(ctx, owner, b.Category, month)
		if err != nil {
			return nil, fmt.Errorf("budget status for %s: %w", b.Category, err)
		}
		statuses = append(statuses, BudgetStatus{
			Category: b.Category,
			Limit:    b.Limit,
			Spent:    spent,
			Percent:  percentOf(spent, b.Limit),
			Over:     spent > b.Limit,
		})
	}
	return statuses, nil
}

// CheckAlerts evaluates the just-touched category's budget and the Total
// budget against current-month spend, which already includes the new
// record. An empty slice means nothing to say; callers must not render it
// as an empty message.
func (s *BudgetService) CheckAlerts(ctx context.Context, owner string, category core.Category) ([]Alert, error) {
	month := core.MonthOf(s.now())

	var alerts []Alert
	for _, cat := range []core.Category{category, core.TotalBudget} {
		b, err := s.store.GetBudget(ctx, owner, cat)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("check alert for %s: %w", cat, err)
		}

		spent, err := s.store.MonthExpenseTotal(ctx, owner, cat, month)
		if err != nil {
			return nil, fmt.Errorf("check alert for %s: %w", cat, err)
		}

		ratio := spent / b.Limit * 100
		if ratio < alertApproachingPct {
			continue
		}
		alerts = append(alerts, Alert{
			Category: cat,
			Limit:    b.Limit,
			Spent:    spent,
			Percent:  percentOf(spent, b.Limit),
			Exceeded: ratio >= alertExceededPct,
		})
	}
	return alerts, nil
}

func percentOf(spent, limit float64) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Round(spent / limit * 100))
}
