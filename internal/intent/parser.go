package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hongyan1215/money/internal/core"
)

// Parser turns free-form user input into a typed intent. Implementations
// own the language understanding; callers only ever see the closed
// core.Intent sum.
type Parser interface {
	ParseText(ctx context.Context, text string) (core.Intent, error)
	ParseReceipt(ctx context.Context, image []byte) (core.Intent, error)
}

// wireIntent is the JSON shape the model is instructed to emit. One flat
// struct covers every kind; irrelevant fields stay at their zero value.
type wireIntent struct {
	Kind         string      `json:"kind"`
	Entries      []wireEntry `json:"entries,omitempty"`
	StartDate    string      `json:"startDate,omitempty"`
	EndDate      string      `json:"endDate,omitempty"`
	Category     string      `json:"category,omitempty"`
	TargetItem   string      `json:"targetItem,omitempty"`
	TargetAmount *float64    `json:"targetAmount,omitempty"`
	IndexOffset  int         `json:"indexOffset,omitempty"`
	NewItem      string      `json:"newItem,omitempty"`
	NewAmount    *float64    `json:"newAmount,omitempty"`
	NewCategory  string      `json:"newCategory,omitempty"`
	Amount       float64     `json:"amount,omitempty"`
}

type wireEntry struct {
	Item     string  `json:"item"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
	Kind     string  `json:"kind"`
	Date     string  `json:"date,omitempty"`
}

// dateLayouts are tried in order for occurrence dates and range bounds.
// The month-day forms inherit the current year.
var dateLayouts = []string{"2006-01-02", "2006/01/02", "2006.01.02", "01-02", "1/2"}

// toIntent converts the model's wire shape into the closed intent sum.
// An unknown kind is an error; every other irregularity (bad dates,
// unknown categories) is normalized here so downstream code never sees
// free-form strings.
func toIntent(ctx context.Context, w wireIntent, now time.Time) (core.Intent, error) {
	switch strings.ToUpper(w.Kind) {
	case "RECORD":
		if len(w.Entries) == 0 {
			return nil, fmt.Errorf("record intent carries no entries")
		}
		entries := make([]core.EntryDraft, 0, len(w.Entries))
		for _, e := range w.Entries {
			entries = append(entries, core.EntryDraft{
				Item:       e.Item,
				Amount:     e.Amount,
				Category:   core.ParseCategory(e.Category),
				Kind:       core.Kind(strings.ToLower(e.Kind)),
				OccurredAt: parseOccurrence(ctx, e.Date, now),
			})
		}
		return core.RecordIntent{Entries: entries}, nil

	case "QUERY":
		var category core.Category
		if w.Category != "" {
			category = core.ParseCategory(w.Category)
		}
		return core.QueryIntent{Range: queryRange(ctx, w, now), Category: category}, nil

	case "LIST":
		return core.ListIntent{Range: queryRange(ctx, w, now)}, nil

	case "TOP_EXPENSE":
		return core.TopExpenseIntent{Range: queryRange(ctx, w, now)}, nil

	case "DELETE":
		return core.MutateIntent{
			Descriptor: descriptor(w),
			Action:     core.ActionDelete,
		}, nil

	case "MODIFY":
		patch := core.MutationPatch{Item: w.NewItem, Amount: w.NewAmount}
		if w.NewCategory != "" {
			patch.Category = core.ParseCategory(w.NewCategory)
		}
		return core.MutateIntent{
			Descriptor: descriptor(w),
			Action:     core.ActionUpdate,
			Patch:      patch,
		}, nil

	case "BULK_DELETE":
		// No month defaulting here: the eraser refuses half-specified
		// ranges, and an inferred "this month" must never widen a delete.
		return core.BulkDeleteIntent{Range: core.NewDateRange(
			parseBound(ctx, w.StartDate, now),
			parseBound(ctx, w.EndDate, now),
		)}, nil

	case "SET_BUDGET":
		category, err := core.ParseBudgetCategory(w.Category)
		if err != nil {
			return nil, err
		}
		return core.SetBudgetIntent{Category: category, Amount: w.Amount}, nil

	case "CHECK_BUDGET":
		return core.CheckBudgetIntent{}, nil

	default:
		return nil, fmt.Errorf("unknown intent kind %q", w.Kind)
	}
}

func descriptor(w wireIntent) core.MatchDescriptor {
	return core.MatchDescriptor{
		TargetItem:   w.TargetItem,
		TargetAmount: w.TargetAmount,
		IndexOffset:  w.IndexOffset,
	}
}

// queryRange resolves the range of a read intent. A fully absent range
// defaults to the current calendar month; a half-specified one is kept
// as given, since read paths tolerate open bounds.
func queryRange(ctx context.Context, w wireIntent, now time.Time) core.DateRange {
	if w.StartDate == "" && w.EndDate == "" {
		return core.MonthOf(now)
	}
	return core.NewDateRange(
		parseBound(ctx, w.StartDate, now),
		parseBound(ctx, w.EndDate, now),
	)
}

// parseBound parses a range boundary; empty or unparsable stays zero so
// the caller's bound checks see it as absent.
func parseBound(ctx context.Context, raw string, now time.Time) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, ok := parseDate(raw, now)
	if !ok {
		slog.WarnContext(ctx, "Unparsable range boundary dropped", "raw", raw)
		return time.Time{}
	}
	return t
}

// parseOccurrence parses an entry's occurrence date, falling back to now.
// The fallback is logged but never surfaced as a user error.
func parseOccurrence(ctx context.Context, raw string, now time.Time) time.Time {
	if raw == "" {
		return now
	}
	t, ok := parseDate(raw, now)
	if !ok {
		slog.WarnContext(ctx, "Unparsable occurrence date, using now", "raw", raw)
		return now
	}
	return t
}

func parseDate(raw string, now time.Time) (time.Time, bool) {
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		year := t.Year()
		if year == 0 {
			year = now.Year()
		}
		return time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, now.Location()), true
	}
	return time.Time{}, false
}
