package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hongyan1215/money/internal/core"
	"github.com/hongyan1215/money/internal/services"
)

func formatAmount(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', -1, 64)
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func renderRecord(result *services.RecordResult, alerts []services.Alert) string {
	var b strings.Builder

	switch len(result.Saved) {
	case 0:
		// Everything in the batch was a duplicate.
	case 1:
		tx := result.Saved[0]
		fmt.Fprintf(&b, "Recorded %s %s (%s).", tx.Item, formatAmount(tx.Amount), tx.Category)
	default:
		fmt.Fprintf(&b, "Recorded %d entries:", len(result.Saved))
		for _, tx := range result.Saved {
			fmt.Fprintf(&b, "\n- %s %s (%s)", tx.Item, formatAmount(tx.Amount), tx.Category)
		}
	}

	if len(result.Duplicates) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Skipped as duplicates (recorded moments ago): %s.",
			strings.Join(result.Duplicates, ", "))
	}

	for _, a := range alerts {
		b.WriteString("\n")
		b.WriteString(renderAlert(a))
	}

	return b.String()
}

func renderAlert(a services.Alert) string {
	name := "your " + string(a.Category) + " budget"
	if a.Category == core.TotalBudget {
		name = "your total budget"
	}
	if a.Exceeded {
		return fmt.Sprintf("⚠️ You've exceeded %s: %s of %s (%d%%).",
			name, formatAmount(a.Spent), formatAmount(a.Limit), a.Percent)
	}
	return fmt.Sprintf("You're approaching %s: %s of %s (%d%%).",
		name, formatAmount(a.Spent), formatAmount(a.Limit), a.Percent)
}

func renderStats(stats *services.Stats, rng core.DateRange, category core.Category) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From %s to %s", formatDate(rng.Start), formatDate(rng.End))
	if category != "" {
		fmt.Fprintf(&b, " (%s)", category)
	}
	fmt.Fprintf(&b, ": spent %s, received %s across %d transactions.",
		formatAmount(stats.TotalExpense), formatAmount(stats.TotalIncome), stats.Count)

	if len(stats.Breakdown) > 0 {
		b.WriteString("\nExpenses by category:")
		for _, row := range stats.Breakdown {
			fmt.Fprintf(&b, "\n- %s: %s", row.Category, formatAmount(row.Total))
		}
	}
	return b.String()
}

func renderList(txs []core.Transaction) string {
	if len(txs) == 0 {
		return "No transactions in that period."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Latest %d transactions:", len(txs))
	for _, tx := range txs {
		sign := "-"
		if tx.Kind == core.Income {
			sign = "+"
		}
		fmt.Fprintf(&b, "\n%s  %s%s  %s (%s)",
			formatDate(tx.OccurredAt), sign, formatAmount(tx.Amount), tx.Item, tx.Category)
	}
	return b.String()
}

func renderTop(top *services.TopExpense) string {
	if top.TopCategory == nil && top.TopRecord == nil {
		return "No expenses in that period."
	}

	var b strings.Builder
	if top.TopCategory != nil {
		fmt.Fprintf(&b, "Top category: %s at %s.",
			top.TopCategory.Category, formatAmount(top.TopCategory.Total))
	}
	if top.TopRecord != nil {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Biggest single expense: %s %s on %s.",
			top.TopRecord.Item, formatAmount(top.TopRecord.Amount), formatDate(top.TopRecord.OccurredAt))
	}
	return b.String()
}

func renderAmbiguous(candidates []core.Transaction) string {
	var b strings.Builder
	b.WriteString("I found more than one match. Which one did you mean?")
	for i, tx := range candidates {
		fmt.Fprintf(&b, "\n%d. %s  %s  %s (%s)",
			i+1, formatDate(tx.OccurredAt), formatAmount(tx.Amount), tx.Item, tx.Category)
	}
	b.WriteString("\nReply with more of the item name or the exact amount.")
	return b.String()
}

func renderMutation(action core.MutationAction, tx core.Transaction) string {
	if action == core.ActionDelete {
		return fmt.Sprintf("Deleted %s %s (%s) from %s.",
			tx.Item, formatAmount(tx.Amount), tx.Category, formatDate(tx.OccurredAt))
	}
	return fmt.Sprintf("Updated: now %s %s (%s).",
		tx.Item, formatAmount(tx.Amount), tx.Category)
}

func renderBulkDelete(n int64, rng core.DateRange) string {
	if n == 0 {
		return fmt.Sprintf("Nothing to delete between %s and %s.",
			formatDate(rng.Start), formatDate(rng.End))
	}
	return fmt.Sprintf("Deleted %d transactions between %s and %s.",
		n, formatDate(rng.Start), formatDate(rng.End))
}

func renderBudgetStatuses(statuses []services.BudgetStatus) string {
	if len(statuses) == 0 {
		return "You haven't set any budgets yet. Try \"set a food budget of 1000\"."
	}

	var b strings.Builder
	b.WriteString("This month's budgets:")
	for _, s := range statuses {
		fmt.Fprintf(&b, "\n- %s: %s of %s (%d%%)", s.Category,
			formatAmount(s.Spent), formatAmount(s.Limit), s.Percent)
		if s.Over {
			b.WriteString(" (over budget)")
		}
	}
	return b.String()
}
