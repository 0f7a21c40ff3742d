package budget

import (
	"context"
	"fmt"

	"budgeteer/internal/analysis"
	"budgeteer/internal/core"
)

type (
	// Entry is the variance of one category: what was budgeted, what
	// was actually spent or received, and how much of the budget is
	// used. Children follow the category tree's nesting.
	Entry struct {
		Category       string
		Budgeted       core.Money
		Actual         core.Money
		Difference     core.Money
		PercentageUsed float64
		Children       []Entry
	}

	// Report is the full budget variance for one query scope. Totals
	// exclude the root sentinel.
	Report struct {
		Entries         []Entry
		TotalBudgeted   core.Money
		TotalActual     core.Money
		TotalDifference core.Money
	}
)

// Tracker compares budget trees against aggregated actuals.
type Tracker struct {
	aggregator *analysis.Aggregator
}

// NewTracker creates a tracker over the given aggregator.
func NewTracker(aggregator *analysis.Aggregator) *Tracker {
	return &Tracker{aggregator: aggregator}
}

// Track reports, per category carried by the budget tree that also has
// actual transaction data, the budgeted amount, the actual amount
// (as a magnitude), their difference and the percentage of budget
// used. Categories without actuals anywhere below them are omitted;
// nesting mirrors the category tree. A degenerate query yields an
// empty report, not an error.
func (t *Tracker) Track(ctx context.Context, q analysis.Query, tree *Tree) (Report, error) {
	report := Report{Entries: []Entry{}}
	if tree == nil {
		return report, fmt.Errorf("account %d: %w", q.AccountID, core.ErrBudgetNotFound)
	}
	if q.IsEmpty() {
		return report, nil
	}

	breakdown, err := t.aggregator.PerPeriodAndCategory(ctx, q)
	if err != nil {
		return Report{}, fmt.Errorf("aggregate actuals: %w", err)
	}

	// Actuals per category across all periods, as magnitudes.
	actuals := make(map[string]core.Money)
	for _, p := range breakdown.Periods {
		for name, amount := range p.Amounts {
			actuals[name] = actuals[name].Add(amount.Abs())
		}
	}

	categories := tree.Categories()
	root := categories.Root()
	for _, child := range categories.Children(root.ID) {
		if entry, ok := t.buildEntry(tree, child, actuals); ok {
			report.Entries = append(report.Entries, entry)
			report.TotalBudgeted = report.TotalBudgeted.Add(sumBudgeted(entry))
			report.TotalActual = report.TotalActual.Add(sumActual(entry))
		}
	}
	report.TotalDifference = core.Money{Cents: report.TotalBudgeted.Cents - report.TotalActual.Cents}
	return report, nil
}

// buildEntry assembles the entry for one category; ok is false when
// neither the category nor any descendant has actual data.
func (t *Tracker) buildEntry(tree *Tree, c *core.Category, actuals map[string]core.Money) (Entry, bool) {
	entry := Entry{
		Category: c.QualifiedName,
		Budgeted: tree.Amount(c.ID),
		Actual:   actuals[c.QualifiedName],
	}
	for _, child := range tree.Categories().Children(c.ID) {
		if childEntry, ok := t.buildEntry(tree, child, actuals); ok {
			entry.Children = append(entry.Children, childEntry)
		}
	}
	if entry.Actual.IsZero() && len(entry.Children) == 0 {
		return Entry{}, false
	}

	entry.Difference = core.Money{Cents: entry.Budgeted.Cents - entry.Actual.Cents}
	entry.PercentageUsed = percentageUsed(entry.Actual, entry.Budgeted)
	return entry, true
}

func percentageUsed(actual, budgeted core.Money) float64 {
	if budgeted.Cents == 0 {
		return 0
	}
	return float64(actual.Cents) / float64(budgeted.Cents) * 100.0
}

func sumBudgeted(e Entry) core.Money {
	total := e.Budgeted
	for _, child := range e.Children {
		total = total.Add(sumBudgeted(child))
	}
	return total
}

func sumActual(e Entry) core.Money {
	total := e.Actual
	for _, child := range e.Children {
		total = total.Add(sumActual(child))
	}
	return total
}
