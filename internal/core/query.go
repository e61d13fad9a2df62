package core

import "time"

// DateRange is an inclusive occurrence-date range. A zero Start or End
// means the boundary was not given; operations that refuse unbounded
// ranges check Bounded before touching the store.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange builds a range covering [start, end] whole days: the end
// boundary is pushed to the end of its day so same-day ranges match.
func NewDateRange(start, end time.Time) DateRange {
	if !end.IsZero() {
		end = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), end.Location())
	}
	return DateRange{Start: start, End: end}
}

// MonthOf returns the range covering the calendar month containing t.
func MonthOf(t time.Time) DateRange {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return DateRange{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Nanosecond)}
}

func (r DateRange) Bounded() bool {
	return !r.Start.IsZero() && !r.End.IsZero()
}

func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// TransactionFilter selects an owner's transactions for range queries and
// aggregation. Category empty means all categories; Limit zero means no cap.
type TransactionFilter struct {
	Owner    string
	Range    DateRange
	Category Category
	Limit    int
}

// MatchDescriptor identifies which transaction a DELETE/MODIFY intent
// targets. At most one selector applies, in priority order: TargetItem,
// then TargetAmount, then IndexOffset (0 = most recently created).
type MatchDescriptor struct {
	TargetItem   string
	TargetAmount *float64
	IndexOffset  int
}

// MutationAction says what to do with a resolved transaction.
type MutationAction string

const (
	ActionDelete MutationAction = "DELETE"
	ActionUpdate MutationAction = "UPDATE"
)

// MutationPatch carries the fields an UPDATE may change. Occurrence date
// and kind are deliberately absent: positional and content references are
// too ambiguous to anchor a change of either safely.
type MutationPatch struct {
	Item     string
	Amount   *float64
	Category Category
}

func (p MutationPatch) IsEmpty() bool {
	return p.Item == "" && p.Amount == nil && p.Category == ""
}

// MatchResult is the closed outcome set of a matcher resolution.
type MatchResult interface{ isMatchResult() }

// SingleMatch means exactly one transaction satisfied the descriptor.
type SingleMatch struct {
	Transaction Transaction
}

// AmbiguousMatch carries up to five candidates for the caller to
// re-prompt the user with. Only content-based selectors produce it.
type AmbiguousMatch struct {
	Candidates []Transaction
}

// NoMatch reports that the selector found nothing; Reason names the
// selector kind for user feedback.
type NoMatch struct {
	Reason string
}

func (SingleMatch) isMatchResult()    {}
func (AmbiguousMatch) isMatchResult() {}
func (NoMatch) isMatchResult()        {}
