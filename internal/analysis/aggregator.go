// Package analysis buckets categorized transactions into calendar
// periods and computes revenue/expense distributions per period and per
// category.
//
// Sign contract: revenue sums are non-negative, expense sums are the
// signed (negative) totals. Consumers that want magnitudes take Abs;
// the budget tracker does exactly that.
package analysis

import (
	"context"
	"fmt"
	"sort"

	"budgeteer/internal/core"
	"budgeteer/internal/period"
)

const (
	Recurrent    Recurrence = "RECURRENT"
	NonRecurrent Recurrence = "NON_RECURRENT"
	Both         Recurrence = "BOTH"
)

// UncategorizedBucket collects transactions without an assigned
// category in per-category breakdowns.
const UncategorizedBucket = "Uncategorized"

type (
	// Recurrence filters a query side to recurring or one-off
	// transactions. The zero value behaves like Both.
	Recurrence string

	// Query scopes an aggregation. Revenue and expense recurrence are
	// independent dimensions: a query may demand recurring revenue
	// while allowing any expense.
	Query struct {
		AccountID          int64
		Range              period.DateRange
		Grouping           period.Grouping
		RevenueRecurrence  Recurrence
		ExpensesRecurrence Recurrence
	}

	// TransactionSource supplies all transactions of an account inside
	// a date range; the aggregator applies type and recurrence
	// filtering itself.
	TransactionSource interface {
		TransactionsInRange(ctx context.Context, accountID int64, r period.DateRange) ([]core.Transaction, error)
	}

	// PeriodTotals is the revenue/expense sum of one period.
	PeriodTotals struct {
		Period   period.Period
		Revenue  core.Money
		Expenses core.Money
	}

	// CategoryPeriod maps category qualified names to their summed
	// amount within one period.
	CategoryPeriod struct {
		Period  period.Period
		Amounts map[string]core.Money
	}

	// CategoryBreakdown is the per-period per-category distribution
	// plus the set of all categories seen anywhere in the range.
	CategoryBreakdown struct {
		Periods    []CategoryPeriod
		Categories []string
	}
)

// Aggregator computes period distributions over a transaction source.
type Aggregator struct {
	transactions TransactionSource
}

// NewAggregator creates an aggregator over the given supplier.
func NewAggregator(transactions TransactionSource) *Aggregator {
	return &Aggregator{transactions: transactions}
}

// IsEmpty reports whether the query lacks the scope needed to select
// any transactions. Empty queries aggregate to empty results, never to
// errors.
func (q Query) IsEmpty() bool {
	return q.AccountID == 0 || q.Range.IsZero()
}

// matches applies the per-side recurrence filter. The two sides are
// independent predicates combined with OR, not one shared flag.
func (q Query) matches(tx *core.Transaction) bool {
	if tx.Type() == core.Revenue {
		return q.RevenueRecurrence.allows(tx.IsRecurring)
	}
	return q.ExpensesRecurrence.allows(tx.IsRecurring)
}

func (r Recurrence) allows(isRecurring bool) bool {
	switch r {
	case Recurrent:
		return isRecurring
	case NonRecurrent:
		return !isRecurring
	default:
		return true
	}
}

// PerPeriod returns one revenue/expense total per distinct period
// touched by matching transactions, sorted by period start.
func (a *Aggregator) PerPeriod(ctx context.Context, q Query) ([]PeriodTotals, error) {
	if q.IsEmpty() {
		return []PeriodTotals{}, nil
	}
	txs, err := a.transactions.TransactionsInRange(ctx, q.AccountID, q.Range)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}

	buckets := make(map[string]*PeriodTotals)
	for i := range txs {
		tx := &txs[i]
		if !q.matches(tx) {
			continue
		}
		p, err := period.FromDate(tx.BookingDate, q.Grouping)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", tx.ID, err)
		}
		bucket, ok := buckets[p.Value]
		if !ok {
			bucket = &PeriodTotals{Period: p}
			buckets[p.Value] = bucket
		}
		if tx.Type() == core.Revenue {
			bucket.Revenue = bucket.Revenue.Add(tx.Amount)
		} else {
			bucket.Expenses = bucket.Expenses.Add(tx.Amount)
		}
	}

	out := make([]PeriodTotals, 0, len(buckets))
	for _, bucket := range buckets {
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Period.Before(out[j].Period)
	})
	return out, nil
}

// PerPeriodAndCategory returns the per-period distribution further
// split by category qualified name. Transactions without a category
// are attributed to the Uncategorized bucket rather than dropped.
func (a *Aggregator) PerPeriodAndCategory(ctx context.Context, q Query) (CategoryBreakdown, error) {
	if q.IsEmpty() {
		return CategoryBreakdown{Periods: []CategoryPeriod{}, Categories: []string{}}, nil
	}
	txs, err := a.transactions.TransactionsInRange(ctx, q.AccountID, q.Range)
	if err != nil {
		return CategoryBreakdown{}, fmt.Errorf("load transactions: %w", err)
	}

	buckets := make(map[string]*CategoryPeriod)
	seen := make(map[string]bool)
	for i := range txs {
		tx := &txs[i]
		if !q.matches(tx) {
			continue
		}
		p, err := period.FromDate(tx.BookingDate, q.Grouping)
		if err != nil {
			return CategoryBreakdown{}, fmt.Errorf("transaction %d: %w", tx.ID, err)
		}
		bucket, ok := buckets[p.Value]
		if !ok {
			bucket = &CategoryPeriod{Period: p, Amounts: make(map[string]core.Money)}
			buckets[p.Value] = bucket
		}
		name := UncategorizedBucket
		if tx.Category != nil {
			name = tx.Category.QualifiedName
		}
		bucket.Amounts[name] = bucket.Amounts[name].Add(tx.Amount)
		seen[name] = true
	}

	breakdown := CategoryBreakdown{
		Periods:    make([]CategoryPeriod, 0, len(buckets)),
		Categories: make([]string, 0, len(seen)),
	}
	for _, bucket := range buckets {
		breakdown.Periods = append(breakdown.Periods, *bucket)
	}
	sort.Slice(breakdown.Periods, func(i, j int) bool {
		return breakdown.Periods[i].Period.Before(breakdown.Periods[j].Period)
	})
	for name := range seen {
		breakdown.Categories = append(breakdown.Categories, name)
	}
	sort.Strings(breakdown.Categories)
	return breakdown, nil
}

// AmountSeries returns the category's amount per period, in period
// order, with zero for periods the category does not appear in. The
// series feeds anomaly detection for the category/period table view.
func (b CategoryBreakdown) AmountSeries(category string) []core.Money {
	out := make([]core.Money, len(b.Periods))
	for i, p := range b.Periods {
		out[i] = p.Amounts[category]
	}
	return out
}
