package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/hongyan1215/money/internal/core"
	"github.com/hongyan1215/money/internal/storage"
)

const (
	// matchQueryCap bounds how many candidates a content selector pulls
	// from the store.
	matchQueryCap = 10
	// ambiguousCandidateCap bounds how many candidates are surfaced back
	// to the user for explicit selection.
	ambiguousCandidateCap = 5
)

// MatcherService resolves a natural-language reference ("the lunch one",
// "the $150 one", "the last one") against the owner's history.
type MatcherService struct {
	store *storage.SQLiteRepository
}

func NewMatcherService(store *storage.SQLiteRepository) *MatcherService {
	return &MatcherService{store: store}
}

// Resolve applies the descriptor's selectors in strict priority order:
// item substring, then exact amount, then positional offset. Content
// selectors can come back ambiguous; positional resolution cannot, since
// it names exactly one position.
func (s *MatcherService) Resolve(ctx context.Context, owner string, d core.MatchDescriptor) (core.MatchResult, error) {
	switch {
	case d.TargetItem != "":
		candidates, err := s.store.SearchByItem(ctx, owner, d.TargetItem, matchQueryCap)
		if err != nil {
			return nil, fmt.Errorf("resolve by item: %w", err)
		}
		return contentResult(candidates, fmt.Sprintf("no transaction matching %q", d.TargetItem)), nil

	case d.TargetAmount != nil:
		candidates, err := s.store.SearchByAmount(ctx, owner, *d.TargetAmount, matchQueryCap)
		if err != nil {
			return nil, fmt.Errorf("resolve by amount: %w", err)
		}
		return contentResult(candidates, fmt.Sprintf("no transaction with amount %g", *d.TargetAmount)), nil

	default:
		tx, err := s.store.FindByOffset(ctx, owner, d.IndexOffset)
		if errors.Is(err, core.ErrNotFound) {
			return core.NoMatch{Reason: fmt.Sprintf("no transaction at position %d", d.IndexOffset+1)}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resolve by position: %w", err)
		}
		return core.SingleMatch{Transaction: tx}, nil
	}
}

func contentResult(candidates []core.Transaction, noMatchReason string) core.MatchResult {
	switch len(candidates) {
	case 0:
		return core.NoMatch{Reason: noMatchReason}
	case 1:
		return core.SingleMatch{Transaction: candidates[0]}
	default:
		if len(candidates) > ambiguousCandidateCap {
			candidates = candidates[:ambiguousCandidateCap]
		}
		return core.AmbiguousMatch{Candidates: candidates}
	}
}
