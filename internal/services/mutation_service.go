package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hongyan1215/money/internal/core"
	"github.com/hongyan1215/money/internal/storage"
)

// MutationService applies a resolved DELETE or UPDATE to exactly one
// record. The read-then-mutate sequence can race with a concurrent
// deletion; that surfaces as core.ErrNotFound and is reported, never
// retried.
type MutationService struct {
	store *storage.SQLiteRepository
}

func NewMutationService(store *storage.SQLiteRepository) *MutationService {
	return &MutationService{store: store}
}

// Apply executes action on the already-resolved target and returns the
// record as the user should hear about it: the deleted snapshot, or the
// post-update state.
func (s *MutationService) Apply(ctx context.Context, owner string, target core.Transaction, action core.MutationAction, patch core.MutationPatch) (core.Transaction, error) {
	switch action {
	case core.ActionDelete:
		affected, err := s.store.DeleteTransaction(ctx, owner, target.ID)
		if err != nil {
			return core.Transaction{}, err
		}
		if affected == 0 {
			return core.Transaction{}, fmt.Errorf("delete %s: %w", target.ID, core.ErrNotFound)
		}
		slog.InfoContext(ctx, "Transaction deleted",
			"owner", owner, "id", target.ID, "item", target.Item)
		return target, nil

	case core.ActionUpdate:
		if patch.IsEmpty() {
			return core.Transaction{}, core.ErrEmptyPatch
		}
		if patch.Amount != nil && *patch.Amount <= 0 {
			return core.Transaction{}, core.ErrInvalidAmount
		}

		affected, err := s.store.UpdateTransaction(ctx, owner, target.ID, patch)
		if err != nil {
			return core.Transaction{}, err
		}
		if affected == 0 {
			return core.Transaction{}, fmt.Errorf("update %s: %w", target.ID, core.ErrNotFound)
		}

		updated := target
		if patch.Item != "" {
			updated.Item = patch.Item
		}
		if patch.Amount != nil {
			updated.Amount = *patch.Amount
		}
		if patch.Category != "" {
			updated.Category = patch.Category
		}
		slog.InfoContext(ctx, "Transaction updated",
			"owner", owner, "id", target.ID, "item", updated.Item)
		return updated, nil

	default:
		return core.Transaction{}, fmt.Errorf("unknown mutation action %q", action)
	}
}
