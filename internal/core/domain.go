package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Expense Kind = "expense"
	Income  Kind = "income"
)

const (
	Food          Category = "Food"
	Transport     Category = "Transport"
	Entertainment Category = "Entertainment"
	Shopping      Category = "Shopping"
	Bills         Category = "Bills"
	Salary        Category = "Salary"
	Other         Category = "Other"

	// TotalBudget is the budget-only sentinel meaning "all categories".
	TotalBudget Category = "Total"
)

type (
	Kind     string
	Category string

	// Transaction is one recorded financial event. OccurredAt is the date
	// the event happened; CreatedAt is when the record was written.
	Transaction struct {
		ID         string
		Owner      string
		Kind       Kind
		Amount     float64
		Category   Category
		Item       string
		OccurredAt time.Time
		CreatedAt  time.Time
	}

	// Budget is a monthly spending limit for one category, or for
	// TotalBudget meaning the aggregate across all categories.
	// At most one budget exists per (owner, category).
	Budget struct {
		Owner    string
		Category Category
		Limit    float64
	}
)

var (
	ErrMissingOwner      = errors.New("missing owner")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrEmptyItem         = errors.New("empty item label")
	ErrInvalidKind       = errors.New("invalid transaction kind")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrEmptyPatch        = errors.New("no fields to update")
	ErrMissingRangeBound = errors.New("both start and end dates are required")
	ErrNotFound          = errors.New("record not found")
)

// Categories lists the fixed transaction category set, excluding the
// budget-only TotalBudget sentinel.
func Categories() []Category {
	return []Category{Food, Transport, Entertainment, Shopping, Bills, Salary, Other}
}

// ParseCategory maps a free-form category string onto the fixed set.
// Unknown values map to Other rather than failing: the language model
// occasionally invents categories and a record is more useful than an error.
func ParseCategory(s string) Category {
	for _, c := range Categories() {
		if strings.EqualFold(s, string(c)) {
			return c
		}
	}
	return Other
}

// ParseBudgetCategory is the strict variant used by SET_BUDGET: it accepts
// only the fixed set plus the Total sentinel.
func ParseBudgetCategory(s string) (Category, error) {
	if strings.EqualFold(s, string(TotalBudget)) {
		return TotalBudget, nil
	}
	for _, c := range Categories() {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

func (k Kind) Valid() bool {
	return k == Expense || k == Income
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Owner) == "" {
		return ErrMissingOwner
	}
	if !t.Kind.Valid() {
		return ErrInvalidKind
	}
	if t.Amount <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Item) == "" {
		return ErrEmptyItem
	}
	if t.Category == "" || t.Category == TotalBudget {
		return ErrInvalidCategory
	}
	if t.OccurredAt.IsZero() {
		return errors.New("occurrence date cannot be zero")
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Owner) == "" {
		return ErrMissingOwner
	}
	if b.Category == "" {
		return ErrInvalidCategory
	}
	if b.Limit <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
