package core

import "time"

// Intent is the closed sum of operations the language-understanding
// collaborator can request. Dispatch switches over every variant; there
// is no string-tagged fallthrough.
type Intent interface{ isIntent() }

type (
	// EntryDraft is one transaction candidate inside a RECORD intent,
	// before the duplicate guard and validation have seen it.
	EntryDraft struct {
		Item       string
		Amount     float64
		Category   Category
		Kind       Kind
		OccurredAt time.Time
	}

	// RecordIntent asks to persist one or more new transactions.
	RecordIntent struct {
		Entries []EntryDraft
	}

	// QueryIntent asks for spend/income totals and a category breakdown.
	QueryIntent struct {
		Range    DateRange
		Category Category // empty = all categories
	}

	// ListIntent asks for the newest transactions in a range.
	ListIntent struct {
		Range DateRange
	}

	// TopExpenseIntent asks for the top category and top single record.
	TopExpenseIntent struct {
		Range DateRange
	}

	// MutateIntent asks to delete or update one existing transaction,
	// identified by a natural-language descriptor.
	MutateIntent struct {
		Descriptor MatchDescriptor
		Action     MutationAction
		Patch      MutationPatch
	}

	// BulkDeleteIntent asks to erase every record in an explicit range.
	BulkDeleteIntent struct {
		Range DateRange
	}

	// SetBudgetIntent upserts a monthly limit for a category or Total.
	SetBudgetIntent struct {
		Category Category
		Amount   float64
	}

	// CheckBudgetIntent asks for the status of every configured budget.
	CheckBudgetIntent struct{}
)

func (RecordIntent) isIntent()      {}
func (QueryIntent) isIntent()       {}
func (ListIntent) isIntent()        {}
func (TopExpenseIntent) isIntent()  {}
func (MutateIntent) isIntent()      {}
func (BulkDeleteIntent) isIntent()  {}
func (SetBudgetIntent) isIntent()   {}
func (CheckBudgetIntent) isIntent() {}
