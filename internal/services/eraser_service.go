package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hongyan1215/money/internal/core"
	"github.com/hongyan1215/money/internal/storage"
)

// EraserService deletes every record in an explicit date range. Its
// safety contract differs from single-record mutation: it refuses to
// run without both boundaries, so "delete everything" can never be
// inferred from a half-specified range.
type EraserService struct {
	store *storage.SQLiteRepository
}

func NewEraserService(store *storage.SQLiteRepository) *EraserService {
	return &EraserService{store: store}
}

// EraseRange deletes the owner's records with occurrence date in the
// inclusive range and returns the count. A missing boundary fails with
// core.ErrMissingRangeBound before any store call; deleting nothing in
// a valid range returns (0, nil), which callers report differently.
func (s *EraserService) EraseRange(ctx context.Context, owner string, rng core.DateRange) (int64, error) {
	if !rng.Bounded() {
		return 0, core.ErrMissingRangeBound
	}

	n, err := s.store.DeleteRange(ctx, owner, rng)
	if err != nil {
		return 0, fmt.Errorf("erase range: %w", err)
	}

	slog.InfoContext(ctx, "Range erased",
		"owner", owner,
		"start", rng.Start.Format("2006-01-02"),
		"end", rng.End.Format("2006-01-02"),
		"deleted", n)
	return n, nil
}
