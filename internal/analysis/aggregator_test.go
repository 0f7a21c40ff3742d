package analysis

import (
	"context"
	"testing"
	"time"

	"budgeteer/internal/core"
	"budgeteer/internal/period"
)

type fakeTransactions struct {
	txs []core.Transaction
}

func (f *fakeTransactions) TransactionsInRange(_ context.Context, accountID int64, r period.DateRange) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, tx := range f.txs {
		if tx.BankAccount.ID != accountID {
			continue
		}
		if tx.BookingDate.Before(r.Start) || tx.BookingDate.After(r.End) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func groceriesCategory() *core.Category {
	return &core.Category{ID: 3, Name: "groceries", QualifiedName: "root#food#groceries", Type: core.Expenses, ParentID: 2}
}

func salaryCategory() *core.Category {
	return &core.Category{ID: 11, Name: "salary", QualifiedName: "root#salary", Type: core.Revenue, ParentID: 10}
}

func tx(id int64, day time.Time, cents int64, recurring bool, cat *core.Category) core.Transaction {
	return core.Transaction{
		ID:          id,
		BookingDate: day,
		Amount:      core.Money{Cents: cents},
		BankAccount: core.BankAccount{ID: 1, Name: "checking"},
		IsRecurring: recurring,
		Category:    cat,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func monthQuery() Query {
	return Query{
		AccountID: 1,
		Range: period.DateRange{
			Start: time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2023, time.December, 31, 23, 59, 59, 0, time.UTC),
		},
		Grouping: period.Monthly,
	}
}

func TestPerPeriodSumsAndSorts(t *testing.T) {
	source := &fakeTransactions{txs: []core.Transaction{
		tx(1, day(2023, time.February, 3), -2500, false, groceriesCategory()),
		tx(2, day(2023, time.February, 10), -1500, false, groceriesCategory()),
		tx(3, day(2023, time.February, 25), 300000, true, salaryCategory()),
		tx(4, day(2023, time.January, 25), 300000, true, salaryCategory()),
	}}
	agg := NewAggregator(source)

	totals, err := agg.PerPeriod(context.Background(), monthQuery())
	if err != nil {
		t.Fatalf("per period: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("periods = %d, want 2", len(totals))
	}
	if totals[0].Period.Value != "01/2023" || totals[1].Period.Value != "02/2023" {
		t.Fatalf("period order: %q, %q", totals[0].Period.Value, totals[1].Period.Value)
	}
	jan, feb := totals[0], totals[1]
	if jan.Revenue.Cents != 300000 || jan.Expenses.Cents != 0 {
		t.Fatalf("january = %+v", jan)
	}
	if feb.Revenue.Cents != 300000 || feb.Expenses.Cents != -4000 {
		t.Fatalf("february = %+v; expenses must stay signed negative", feb)
	}
}

func TestPerPeriodEmptyQueryIsEmptyResult(t *testing.T) {
	agg := NewAggregator(&fakeTransactions{})

	for _, q := range []Query{{}, {AccountID: 1}, {Range: monthQuery().Range}} {
		totals, err := agg.PerPeriod(context.Background(), q)
		if err != nil {
			t.Fatalf("empty query must not error: %v", err)
		}
		if len(totals) != 0 {
			t.Fatalf("empty query must yield empty result, got %v", totals)
		}
	}
}

func TestPerPeriodNoTransactions(t *testing.T) {
	agg := NewAggregator(&fakeTransactions{})
	totals, err := agg.PerPeriod(context.Background(), monthQuery())
	if err != nil {
		t.Fatalf("no data must not error: %v", err)
	}
	if len(totals) != 0 {
		t.Fatalf("expected empty result, got %v", totals)
	}
}

func TestRecurrenceAppliedIndependentlyPerSide(t *testing.T) {
	source := &fakeTransactions{txs: []core.Transaction{
		tx(1, day(2023, time.March, 1), 300000, true, salaryCategory()),  // recurring revenue
		tx(2, day(2023, time.March, 2), 5000, false, salaryCategory()),   // one-off revenue
		tx(3, day(2023, time.March, 3), -2000, true, groceriesCategory()),  // recurring expense
		tx(4, day(2023, time.March, 4), -7000, false, groceriesCategory()), // one-off expense
	}}
	agg := NewAggregator(source)

	q := monthQuery()
	q.RevenueRecurrence = Recurrent
	q.ExpensesRecurrence = Both

	totals, err := agg.PerPeriod(context.Background(), q)
	if err != nil {
		t.Fatalf("per period: %v", err)
	}
	if len(totals) != 1 {
		t.Fatalf("periods = %d", len(totals))
	}
	march := totals[0]
	if march.Revenue.Cents != 300000 {
		t.Fatalf("revenue = %d, one-off revenue must be excluded", march.Revenue.Cents)
	}
	if march.Expenses.Cents != -9000 {
		t.Fatalf("expenses = %d, both expense kinds must be included", march.Expenses.Cents)
	}
}

func TestPerPeriodAndCategory(t *testing.T) {
	source := &fakeTransactions{txs: []core.Transaction{
		tx(1, day(2023, time.April, 3), -2500, false, groceriesCategory()),
		tx(2, day(2023, time.April, 5), -900, false, nil), // uncategorized
		tx(3, day(2023, time.May, 1), 300000, false, salaryCategory()),
	}}
	agg := NewAggregator(source)

	breakdown, err := agg.PerPeriodAndCategory(context.Background(), monthQuery())
	if err != nil {
		t.Fatalf("per period and category: %v", err)
	}
	if len(breakdown.Periods) != 2 {
		t.Fatalf("periods = %d", len(breakdown.Periods))
	}

	april := breakdown.Periods[0]
	if april.Amounts["root#food#groceries"].Cents != -2500 {
		t.Fatalf("groceries = %+v", april.Amounts)
	}
	if april.Amounts[UncategorizedBucket].Cents != -900 {
		t.Fatalf("uncategorized transactions must be bucketed, got %+v", april.Amounts)
	}

	want := []string{UncategorizedBucket, "root#food#groceries", "root#salary"}
	if len(breakdown.Categories) != len(want) {
		t.Fatalf("categories = %v", breakdown.Categories)
	}
	for i, name := range want {
		if breakdown.Categories[i] != name {
			t.Fatalf("categories[%d] = %q, want %q", i, breakdown.Categories[i], name)
		}
	}
}

func TestAmountSeries(t *testing.T) {
	source := &fakeTransactions{txs: []core.Transaction{
		tx(1, day(2023, time.January, 3), -1000, false, groceriesCategory()),
		tx(2, day(2023, time.February, 3), 500, false, salaryCategory()),
		tx(3, day(2023, time.March, 3), -3000, false, groceriesCategory()),
	}}
	agg := NewAggregator(source)
	breakdown, err := agg.PerPeriodAndCategory(context.Background(), monthQuery())
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}

	series := breakdown.AmountSeries("root#food#groceries")
	if len(series) != 3 {
		t.Fatalf("series length = %d", len(series))
	}
	if series[0].Cents != -1000 || series[1].Cents != 0 || series[2].Cents != -3000 {
		t.Fatalf("series = %v; missing periods must read zero", series)
	}
}
