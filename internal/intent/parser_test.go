package intent

import (
	"context"
	"testing"
	"time"

	"github.com/hongyan1215/money/internal/core"
)

var testNow = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

func TestToIntent_Record(t *testing.T) {
	w := wireIntent{
		Kind: "RECORD",
		Entries: []wireEntry{
			{Item: "lunch", Amount: 150, Category: "Food", Kind: "expense", Date: "2026-08-10"},
			{Item: "salary", Amount: 5000, Category: "Salary", Kind: "income"},
		},
	}
	got, err := toIntent(context.Background(), w, testNow)
	if err != nil {
		t.Fatalf("toIntent: %v", err)
	}
	rec, ok := got.(core.RecordIntent)
	if !ok {
		t.Fatalf("toIntent = %T, want RecordIntent", got)
	}
	if len(rec.Entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(rec.Entries))
	}

	first := rec.Entries[0]
	if first.Item != "lunch" || first.Amount != 150 || first.Category != core.Food || first.Kind != core.Expense {
		t.Errorf("first entry = %+v", first)
	}
	want := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	if !first.OccurredAt.Equal(want) {
		t.Errorf("OccurredAt = %v, want %v", first.OccurredAt, want)
	}

	// No date given: falls back to now.
	if !rec.Entries[1].OccurredAt.Equal(testNow) {
		t.Errorf("dateless entry OccurredAt = %v, want now", rec.Entries[1].OccurredAt)
	}
}

func TestToIntent_RecordUnknownCategoryNormalizesToOther(t *testing.T) {
	w := wireIntent{
		Kind:    "RECORD",
		Entries: []wireEntry{{Item: "mystery", Amount: 10, Category: "Gadgets", Kind: "expense"}},
	}
	got, err := toIntent(context.Background(), w, testNow)
	if err != nil {
		t.Fatalf("toIntent: %v", err)
	}
	if cat := got.(core.RecordIntent).Entries[0].Category; cat != core.Other {
		t.Errorf("category = %s, want Other", cat)
	}
}

func TestToIntent_RecordWithoutEntriesFails(t *testing.T) {
	if _, err := toIntent(context.Background(), wireIntent{Kind: "RECORD"}, testNow); err == nil {
		t.Error("toIntent accepted a RECORD with no entries")
	}
}

func TestToIntent_QueryDefaultsToCurrentMonth(t *testing.T) {
	got, err := toIntent(context.Background(), wireIntent{Kind: "QUERY"}, testNow)
	if err != nil {
		t.Fatalf("toIntent: %v", err)
	}
	q := got.(core.QueryIntent)
	wantStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if !q.Range.Start.Equal(wantStart) {
		t.Errorf("Range.Start = %v, want %v", q.Range.Start, wantStart)
	}
	if !q.Range.Contains(time.Date(2026, 8, 31, 23, 0, 0, 0, time.UTC)) {
		t.Error("default range should cover the whole current month")
	}
	if q.Category != "" {
		t.Errorf("Category = %q, want empty", q.Category)
	}
}

func TestToIntent_QueryExplicitRangeAndCategory(t *testing.T) {
	w := wireIntent{Kind: "QUERY", StartDate: "2026-07-01", EndDate: "2026-07-31", Category: "Food"}
	got, err := toIntent(context.Background(), w, testNow)
	if err != nil {
		t.Fatalf("toIntent: %v", err)
	}
	q := got.(core.QueryIntent)
	if q.Category != core.Food {
		t.Errorf("Category = %s, want Food", q.Category)
	}
	// End bound covers the whole final day.
	if !q.Range.Contains(time.Date(2026, 7, 31, 22, 0, 0, 0, time.UTC)) {
		t.Error("end boundary day should be inclusive")
	}
	if q.Range.Contains(time.Date(2026, 8, 1, 1, 0, 0, 0, time.UTC)) {
		t.Error("range leaked past endDate")
	}
}

func TestToIntent_BulkDeleteNeverDefaultsRange(t *testing.T) {
	got, err := toIntent(context.Background(), wireIntent{Kind: "BULK_DELETE", EndDate: "2026-08-10"}, testNow)
	if err != nil {
		t.Fatalf("toIntent: %v", err)
	}
	bd := got.(core.BulkDeleteIntent)
	if !bd.Range.Start.IsZero() {
		t.Errorf("Start = %v, want zero (missing boundary must stay missing)", bd.Range.Start)
	}
	if bd.Range.Bounded() {
		t.Error("half-specified bulk delete range reported as bounded")
	}
}

func TestToIntent_DeleteAndModify(t *testing.T) {
	amount := 150.0
	newAmount := 180.0

	got, err := toIntent(context.Background(), wireIntent{Kind: "DELETE", TargetAmount: &amount}, testNow)
	if err != nil {
		t.Fatalf("toIntent delete: %v", err)
	}
	del := got.(core.MutateIntent)
	if del.Action != core.ActionDelete {
		t.Errorf("delete action = %s", del.Action)
	}
	if del.Descriptor.TargetAmount == nil || *del.Descriptor.TargetAmount != 150 {
		t.Errorf("descriptor = %+v", del.Descriptor)
	}

	got, err = toIntent(context.Background(), wireIntent{
		Kind: "MODIFY", TargetItem: "lunch", NewAmount: &newAmount, NewCategory: "Food",
	}, testNow)
	if err != nil {
		t.Fatalf("toIntent modify: %v", err)
	}
	mod := got.(core.MutateIntent)
	if mod.Action != core.ActionUpdate {
		t.Errorf("modify action = %s", mod.Action)
	}
	if mod.Patch.Amount == nil || *mod.Patch.Amount != 180 || mod.Patch.Category != core.Food || mod.Patch.Item != "" {
		t.Errorf("patch = %+v", mod.Patch)
	}
}

func TestToIntent_SetBudget(t *testing.T) {
	got, err := toIntent(context.Background(), wireIntent{Kind: "SET_BUDGET", Category: "Total", Amount: 5000}, testNow)
	if err != nil {
		t.Fatalf("toIntent: %v", err)
	}
	sb := got.(core.SetBudgetIntent)
	if sb.Category != core.TotalBudget || sb.Amount != 5000 {
		t.Errorf("SetBudgetIntent = %+v", sb)
	}

	// Budgets are strict about categories: no normalizing typos to Other.
	if _, err := toIntent(context.Background(), wireIntent{Kind: "SET_BUDGET", Category: "Gadgets", Amount: 100}, testNow); err == nil {
		t.Error("toIntent accepted an unknown budget category")
	}
}

func TestToIntent_UnknownKind(t *testing.T) {
	if _, err := toIntent(context.Background(), wireIntent{Kind: "FORECAST"}, testNow); err == nil {
		t.Error("toIntent accepted an unknown kind")
	}
}

func TestParseDate_Layouts(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{"2026-08-10", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), true},
		{"2026/08/10", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), true},
		{"2026.08.10", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), true},
		{"08-10", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), true}, // year from now
		{"8/10", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), true},
		{"yesterday", time.Time{}, false},
		{"10-08-2026", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := parseDate(tt.raw, testNow)
			if ok != tt.ok {
				t.Fatalf("parseDate(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("parseDate(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseOccurrence_FallsBackToNow(t *testing.T) {
	got := parseOccurrence(context.Background(), "last tuesday", testNow)
	if !got.Equal(testNow) {
		t.Errorf("parseOccurrence = %v, want now fallback", got)
	}
}
