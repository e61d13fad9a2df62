package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/hongyan1215/money/internal/core"
	"github.com/hongyan1215/money/internal/services"
)

// Dispatcher routes a parsed intent to the engine and renders the outcome
// as reply text. The switch is exhaustive over the intent sum; a new
// variant fails compilation here, not at runtime.
type Dispatcher struct {
	ledger  *services.LedgerService
	matcher *services.MatcherService
	mutator *services.MutationService
	eraser  *services.EraserService
	stats   *services.StatsService
	budget  *services.BudgetService
}

func NewDispatcher(
	ledger *services.LedgerService,
	matcher *services.MatcherService,
	mutator *services.MutationService,
	eraser *services.EraserService,
	stats *services.StatsService,
	budget *services.BudgetService,
) *Dispatcher {
	return &Dispatcher{
		ledger:  ledger,
		matcher: matcher,
		mutator: mutator,
		eraser:  eraser,
		stats:   stats,
		budget:  budget,
	}
}

// userErrors are validation outcomes the user can fix by rephrasing. They
// become reply text; everything else propagates as an operational error.
var userErrors = []error{
	core.ErrMissingOwner,
	core.ErrInvalidAmount,
	core.ErrEmptyItem,
	core.ErrInvalidKind,
	core.ErrInvalidCategory,
	core.ErrEmptyPatch,
	core.ErrMissingRangeBound,
}

func isUserError(err error) bool {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Dispatch executes one intent for one owner and returns the reply text.
func (d *Dispatcher) Dispatch(ctx context.Context, owner string, in core.Intent) (string, error) {
	switch intent := in.(type) {
	case core.RecordIntent:
		return d.record(ctx, owner, intent)

	case core.QueryIntent:
		stats, err := d.stats.Compute(ctx, owner, intent.Range, intent.Category)
		if err != nil {
			return "", err
		}
		return renderStats(stats, intent.Range, intent.Category), nil

	case core.ListIntent:
		txs, err := d.stats.List(ctx, owner, intent.Range)
		if err != nil {
			return "", err
		}
		return renderList(txs), nil

	case core.TopExpenseIntent:
		top, err := d.stats.Top(ctx, owner, intent.Range)
		if err != nil {
			return "", err
		}
		return renderTop(top), nil

	case core.MutateIntent:
		return d.mutate(ctx, owner, intent)

	case core.BulkDeleteIntent:
		n, err := d.eraser.EraseRange(ctx, owner, intent.Range)
		if isUserError(err) {
			return "I need both a start and an end date to delete a range.", nil
		}
		if err != nil {
			return "", err
		}
		return renderBulkDelete(n, intent.Range), nil

	case core.SetBudgetIntent:
		if err := d.budget.SetBudget(ctx, owner, intent.Category, intent.Amount); err != nil {
			if isUserError(err) {
				return err.Error(), nil
			}
			return "", err
		}
		return fmt.Sprintf("Monthly budget for %s set to %s.", intent.Category, formatAmount(intent.Amount)), nil

	case core.CheckBudgetIntent:
		statuses, err := d.budget.Status(ctx, owner)
		if err != nil {
			return "", err
		}
		return renderBudgetStatuses(statuses), nil

	default:
		return "", fmt.Errorf("unhandled intent type %T", in)
	}
}

func (d *Dispatcher) record(ctx context.Context, owner string, intent core.RecordIntent) (string, error) {
	result, err := d.ledger.Record(ctx, owner, intent.Entries)
	if isUserError(err) {
		return err.Error(), nil
	}
	if err != nil {
		return "", err
	}

	// One alert check per distinct expense category touched; the Total
	// budget is evaluated inside CheckAlerts, so dedupe it across saves.
	var alerts []services.Alert
	seen := map[core.Category]bool{}
	for _, tx := range result.Saved {
		if tx.Kind != core.Expense || seen[tx.Category] {
			continue
		}
		seen[tx.Category] = true

		found, err := d.budget.CheckAlerts(ctx, owner, tx.Category)
		if err != nil {
			return "", err
		}
		for _, a := range found {
			if !hasAlertFor(alerts, a.Category) {
				alerts = append(alerts, a)
			}
		}
	}

	return renderRecord(result, alerts), nil
}

func hasAlertFor(alerts []services.Alert, category core.Category) bool {
	for _, a := range alerts {
		if a.Category == category {
			return true
		}
	}
	return false
}

func (d *Dispatcher) mutate(ctx context.Context, owner string, intent core.MutateIntent) (string, error) {
	match, err := d.matcher.Resolve(ctx, owner, intent.Descriptor)
	if err != nil {
		return "", err
	}

	switch m := match.(type) {
	case core.NoMatch:
		return fmt.Sprintf("I couldn't find it: %s.", m.Reason), nil

	case core.AmbiguousMatch:
		return renderAmbiguous(m.Candidates), nil

	case core.SingleMatch:
		applied, err := d.mutator.Apply(ctx, owner, m.Transaction, intent.Action, intent.Patch)
		if errors.Is(err, core.ErrNotFound) {
			return "That transaction is already gone.", nil
		}
		if isUserError(err) {
			return err.Error(), nil
		}
		if err != nil {
			return "", err
		}
		return renderMutation(intent.Action, applied), nil

	default:
		return "", fmt.Errorf("unhandled match result %T", match)
	}
}
