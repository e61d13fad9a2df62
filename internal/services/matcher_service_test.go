package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/hongyan1215/money/internal/core"
)

func amountPtr(v float64) *float64 { return &v }

func TestResolve_ItemTakesPriorityOverAmount(t *testing.T) {
	repo := newTestStore(t)
	svc := NewMatcherService(repo)
	now := time.Now()

	seedExpense(t, repo, "u1", "lunch", 150, core.Food, now.Add(-time.Hour))
	seedExpense(t, repo, "u1", "cinema", 150, core.Entertainment, now)

	// Both selectors set: the item selector must win, so "lunch" is
	// found even though "cinema" has the matching amount and is newer.
	res, err := svc.Resolve(context.Background(), "u1", core.MatchDescriptor{
		TargetItem:   "lunch",
		TargetAmount: amountPtr(150),
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	single, ok := res.(core.SingleMatch)
	if !ok {
		t.Fatalf("Resolve = %T, want SingleMatch", res)
	}
	if single.Transaction.Item != "lunch" {
		t.Errorf("resolved %q, want lunch", single.Transaction.Item)
	}
}

func TestResolve_ContentAmbiguity(t *testing.T) {
	repo := newTestStore(t)
	svc := NewMatcherService(repo)
	now := time.Now()

	for i := 0; i < 3; i++ {
		seedExpense(t, repo, "u1", fmt.Sprintf("coffee %d", i), 60+float64(i), core.Food, now.Add(time.Duration(i)*time.Minute))
	}

	res, err := svc.Resolve(context.Background(), "u1", core.MatchDescriptor{TargetItem: "coffee"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	amb, ok := res.(core.AmbiguousMatch)
	if !ok {
		t.Fatalf("Resolve = %T, want AmbiguousMatch", res)
	}
	if len(amb.Candidates) != 3 {
		t.Errorf("candidates = %d, want 3", len(amb.Candidates))
	}
}

func TestResolve_AmbiguousCandidatesCappedAtFive(t *testing.T) {
	repo := newTestStore(t)
	svc := NewMatcherService(repo)
	now := time.Now()

	for i := 0; i < 8; i++ {
		seedExpense(t, repo, "u1", fmt.Sprintf("coffee %d", i), 60, core.Food, now.Add(time.Duration(i)*time.Minute))
	}

	res, err := svc.Resolve(context.Background(), "u1", core.MatchDescriptor{TargetItem: "coffee"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	amb, ok := res.(core.AmbiguousMatch)
	if !ok {
		t.Fatalf("Resolve = %T, want AmbiguousMatch", res)
	}
	if len(amb.Candidates) != 5 {
		t.Errorf("candidates = %d, want cap of 5", len(amb.Candidates))
	}
	// Newest first.
	if amb.Candidates[0].Item != "coffee 7" {
		t.Errorf("first candidate = %q, want newest (coffee 7)", amb.Candidates[0].Item)
	}
}

func TestResolve_ItemMatchIsCaseInsensitiveSubstring(t *testing.T) {
	repo := newTestStore(t)
	svc := NewMatcherService(repo)

	seedExpense(t, repo, "u1", "Iced Coffee Grande", 80, core.Food, time.Now())

	res, err := svc.Resolve(context.Background(), "u1", core.MatchDescriptor{TargetItem: "coffee"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := res.(core.SingleMatch); !ok {
		t.Errorf("Resolve = %T, want SingleMatch via case-insensitive substring", res)
	}
}

func TestResolve_ByExactAmount(t *testing.T) {
	repo := newTestStore(t)
	svc := NewMatcherService(repo)
	now := time.Now()

	seedExpense(t, repo, "u1", "taxi", 149.5, core.Transport, now)

	res, err := svc.Resolve(context.Background(), "u1", core.MatchDescriptor{TargetAmount: amountPtr(149.5)})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := res.(core.SingleMatch); !ok {
		t.Fatalf("Resolve = %T, want SingleMatch", res)
	}

	res, err = svc.Resolve(context.Background(), "u1", core.MatchDescriptor{TargetAmount: amountPtr(149)})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	noMatch, ok := res.(core.NoMatch)
	if !ok {
		t.Fatalf("Resolve = %T, want NoMatch on near-miss amount", res)
	}
	if !strings.Contains(noMatch.Reason, "amount") {
		t.Errorf("NoMatch reason %q should name the amount selector", noMatch.Reason)
	}
}

func TestResolve_PositionalNeverAmbiguous(t *testing.T) {
	repo := newTestStore(t)
	svc := NewMatcherService(repo)
	ctx := context.Background()
	now := time.Now()

	// Empty history: NoMatch, not an error.
	res, err := svc.Resolve(ctx, "u1", core.MatchDescriptor{})
	if err != nil {
		t.Fatalf("Resolve on empty history: %v", err)
	}
	if _, ok := res.(core.NoMatch); !ok {
		t.Fatalf("Resolve = %T on empty history, want NoMatch", res)
	}

	for i := 0; i < 4; i++ {
		seedExpense(t, repo, "u1", fmt.Sprintf("item %d", i), 10, core.Other, now.Add(time.Duration(i)*time.Minute))
	}

	// Offset 0 is the most recent; many records never make it ambiguous.
	res, err = svc.Resolve(ctx, "u1", core.MatchDescriptor{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	single, ok := res.(core.SingleMatch)
	if !ok {
		t.Fatalf("Resolve = %T, want SingleMatch", res)
	}
	if single.Transaction.Item != "item 3" {
		t.Errorf("offset 0 = %q, want item 3 (most recent)", single.Transaction.Item)
	}

	res, err = svc.Resolve(ctx, "u1", core.MatchDescriptor{IndexOffset: 2})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	single, ok = res.(core.SingleMatch)
	if !ok {
		t.Fatalf("Resolve = %T, want SingleMatch", res)
	}
	if single.Transaction.Item != "item 1" {
		t.Errorf("offset 2 = %q, want item 1", single.Transaction.Item)
	}

	// Offset past the end of history.
	res, err = svc.Resolve(ctx, "u1", core.MatchDescriptor{IndexOffset: 10})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := res.(core.NoMatch); !ok {
		t.Errorf("Resolve = %T past history, want NoMatch", res)
	}
}

func TestResolve_NoItemMatchNamesSelector(t *testing.T) {
	repo := newTestStore(t)
	svc := NewMatcherService(repo)

	res, err := svc.Resolve(context.Background(), "u1", core.MatchDescriptor{TargetItem: "sushi"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	noMatch, ok := res.(core.NoMatch)
	if !ok {
		t.Fatalf("Resolve = %T, want NoMatch", res)
	}
	if !strings.Contains(noMatch.Reason, "sushi") {
		t.Errorf("NoMatch reason %q should echo the item query", noMatch.Reason)
	}
}
