package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"budgeteer/internal/analysis"
	"budgeteer/internal/categorize"
	"budgeteer/internal/core"
	"budgeteer/internal/export/memory"
	"budgeteer/internal/period"
	"budgeteer/internal/rules"
	"budgeteer/internal/storage"
)

type fixture struct {
	service *AssistantService
	repo    *storage.SQLiteRepository
	account core.BankAccount
	food    core.Category
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	registry := categorize.NewRegistry(repo, repo, 0)
	service := NewAssistantService(repo, registry, nil, memory.New(), Options{})

	account, err := repo.CreateBankAccount(ctx, "checking", "DE02120300000000202051")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	categories, err := repo.CategoriesByType(ctx, core.Expenses)
	if err != nil {
		t.Fatalf("load taxonomy: %v", err)
	}
	root := categories[0]

	food, err := service.AddCategory(ctx, root.ID, "food", core.Expenses)
	if err != nil {
		t.Fatalf("add category: %v", err)
	}

	rule, err := rules.NewRule([]rules.Field{rules.FieldDescription, rules.FieldCounterpartyName},
		rules.FieldTypeString, []string{"rewe"}, rules.MatchAnyOf, rules.OperatorContains)
	if err != nil {
		t.Fatalf("build rule: %v", err)
	}
	set, err := rules.NewRuleSet(rules.ConditionOr, []rules.Node{rule}, false)
	if err != nil {
		t.Fatalf("build rule set: %v", err)
	}
	if err := service.AttachRuleSet(ctx, food.ID, set); err != nil {
		t.Fatalf("attach rule set: %v", err)
	}

	return &fixture{service: service, repo: repo, account: account, food: food}
}

func (f *fixture) juneQuery() analysis.Query {
	return analysis.Query{
		AccountID: f.account.ID,
		Range: period.DateRange{
			Start: time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2023, time.June, 30, 23, 59, 59, 0, time.UTC),
		},
		Grouping: period.Monthly,
	}
}

func TestImportCategorizesInline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inserted, err := f.service.ImportTransactions(ctx, f.account.ID, []core.Transaction{
		{
			BookingDate: time.Date(2023, time.June, 10, 0, 0, 0, 0, time.UTC),
			Amount:      core.Money{Cents: -1200},
			Description: "REWE Markt 42",
		},
		{
			BookingDate: time.Date(2023, time.June, 12, 0, 0, 0, 0, time.UTC),
			Amount:      core.Money{Cents: -700},
			Description: "mystery merchant",
		},
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("inserted = %d, want 2", inserted)
	}

	// Without a broker the import falls back to inline categorization:
	// the rule match and the NO CATEGORY fallback are both persisted.
	txs, err := f.repo.TransactionsInRange(ctx, f.account.ID, f.juneQuery().Range)
	if err != nil {
		t.Fatalf("load transactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("transactions = %d, want 2", len(txs))
	}
	if txs[0].Category == nil || txs[0].Category.QualifiedName != "root#food" {
		t.Errorf("matched transaction category = %+v, want root#food", txs[0].Category)
	}
	if txs[1].Category == nil || txs[1].Category.Name != core.NoCategoryName {
		t.Errorf("unmatched transaction category = %+v, want sentinel", txs[1].Category)
	}
}

func TestAttachRuleSetReleasesSentinelTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.service.ImportTransactions(ctx, f.account.ID, []core.Transaction{
		{
			BookingDate: time.Date(2023, time.June, 5, 0, 0, 0, 0, time.UTC),
			Amount:      core.Money{Cents: -300},
			Description: "coffee corner berlin",
		},
	}); err != nil {
		t.Fatalf("import: %v", err)
	}

	txs, err := f.repo.TransactionsInRange(ctx, f.account.ID, f.juneQuery().Range)
	if err != nil {
		t.Fatalf("load transactions: %v", err)
	}
	if len(txs) != 1 || txs[0].Category == nil || txs[0].Category.Name != core.NoCategoryName {
		t.Fatalf("transaction before new rules = %+v, want sentinel", txs)
	}

	// A rule set that matches the parked transaction must release it
	// and let the next pass claim it.
	categories, err := f.repo.CategoriesByType(ctx, core.Expenses)
	if err != nil {
		t.Fatalf("load taxonomy: %v", err)
	}
	var root core.Category
	for _, c := range categories {
		if c.IsRoot {
			root = c
		}
	}
	coffee, err := f.service.AddCategory(ctx, root.ID, "coffee", core.Expenses)
	if err != nil {
		t.Fatalf("add category: %v", err)
	}
	rule, err := rules.NewRule([]rules.Field{rules.FieldDescription},
		rules.FieldTypeString, []string{"coffee"}, rules.MatchAnyOf, rules.OperatorContains)
	if err != nil {
		t.Fatalf("build rule: %v", err)
	}
	set, err := rules.NewRuleSet(rules.ConditionOr, []rules.Node{rule}, false)
	if err != nil {
		t.Fatalf("build rule set: %v", err)
	}
	if err := f.service.AttachRuleSet(ctx, coffee.ID, set); err != nil {
		t.Fatalf("attach rule set: %v", err)
	}

	if _, err := f.service.RequestCategorization(ctx, f.account.ID); err != nil {
		t.Fatalf("recategorize: %v", err)
	}

	txs, err = f.repo.TransactionsInRange(ctx, f.account.ID, f.juneQuery().Range)
	if err != nil {
		t.Fatalf("reload transactions: %v", err)
	}
	if len(txs) != 1 || txs[0].Category == nil || txs[0].Category.QualifiedName != "root#coffee" {
		t.Fatalf("transaction after new rules = %+v, want root#coffee", txs)
	}
}

func TestPerPeriodReportAndCacheInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.juneQuery()

	if _, err := f.service.ImportTransactions(ctx, f.account.ID, []core.Transaction{
		{
			BookingDate: time.Date(2023, time.June, 10, 0, 0, 0, 0, time.UTC),
			Amount:      core.Money{Cents: -1200},
			Description: "REWE Markt",
		},
	}); err != nil {
		t.Fatalf("import: %v", err)
	}

	totals, err := f.service.RevenueAndExpensesPerPeriod(ctx, q)
	if err != nil {
		t.Fatalf("per period: %v", err)
	}
	if len(totals) != 1 || totals[0].Expenses.Cents != -1200 {
		t.Fatalf("totals = %+v", totals)
	}

	// A second import must not serve the stale cached report.
	if _, err := f.service.ImportTransactions(ctx, f.account.ID, []core.Transaction{
		{
			BookingDate: time.Date(2023, time.June, 20, 0, 0, 0, 0, time.UTC),
			Amount:      core.Money{Cents: -800},
			Description: "REWE City",
		},
	}); err != nil {
		t.Fatalf("import: %v", err)
	}

	totals, err = f.service.RevenueAndExpensesPerPeriod(ctx, q)
	if err != nil {
		t.Fatalf("per period: %v", err)
	}
	if len(totals) != 1 || totals[0].Expenses.Cents != -2000 {
		t.Fatalf("totals after second import = %+v, want -2000", totals)
	}
}

func TestTrackBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := f.juneQuery()

	if _, err := f.service.TrackBudget(ctx, q); !errors.Is(err, core.ErrBudgetNotFound) {
		t.Fatalf("budget without nodes error = %v, want ErrBudgetNotFound", err)
	}

	if err := f.service.SetBudget(ctx, f.account.ID, f.food.ID, core.Money{Cents: 30000}); err != nil {
		t.Fatalf("set budget: %v", err)
	}
	if _, err := f.service.ImportTransactions(ctx, f.account.ID, []core.Transaction{
		{
			BookingDate: time.Date(2023, time.June, 10, 0, 0, 0, 0, time.UTC),
			Amount:      core.Money{Cents: -25000},
			Description: "REWE Markt",
		},
	}); err != nil {
		t.Fatalf("import: %v", err)
	}

	report, err := f.service.TrackBudget(ctx, q)
	if err != nil {
		t.Fatalf("track budget: %v", err)
	}
	if len(report.Entries) != 1 || report.Entries[0].Category != "root#food" {
		t.Fatalf("entries = %+v", report.Entries)
	}
	if report.Entries[0].Difference.Cents != 5000 {
		t.Fatalf("difference = %d, want 5000", report.Entries[0].Difference.Cents)
	}
}

func TestCategoryDetailsSuggestion(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.CategoryDetailsForPeriod(context.Background(), f.juneQuery(), "root#fod")
	if !errors.Is(err, core.ErrCategoryNotFound) {
		t.Fatalf("error = %v, want ErrCategoryNotFound", err)
	}
	if !strings.Contains(err.Error(), "root#food") {
		t.Fatalf("error %q should suggest root#food", err)
	}
}

func TestExportBudgetReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sink := memory.New()
	f.service.exporter = sink

	if err := f.service.SetBudget(ctx, f.account.ID, f.food.ID, core.Money{Cents: 30000}); err != nil {
		t.Fatalf("set budget: %v", err)
	}
	if _, err := f.service.ImportTransactions(ctx, f.account.ID, []core.Transaction{
		{
			BookingDate: time.Date(2023, time.June, 10, 0, 0, 0, 0, time.UTC),
			Amount:      core.Money{Cents: -25000},
			Description: "REWE Markt",
		},
	}); err != nil {
		t.Fatalf("import: %v", err)
	}

	if err := f.service.ExportBudgetReport(ctx, f.juneQuery(), "checking - 06/2023"); err != nil {
		t.Fatalf("export: %v", err)
	}

	reports := sink.Reports()
	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}
	if reports[0].Title != "checking - 06/2023" || len(reports[0].Rows) != 1 {
		t.Fatalf("report = %+v", reports[0])
	}
	if reports[0].Rows[0].Category != "root#food" {
		t.Fatalf("row = %+v", reports[0].Rows[0])
	}
}

func TestResolveDateShortcut(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, time.January, 15, 10, 0, 0, 0, time.UTC)

	r, err := f.service.ResolveDateShortcut(period.ShortcutCurrentMonth, now)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.Start.Month() != time.January || r.Start.Day() != 1 {
		t.Fatalf("range = %+v", r)
	}

	if _, err := f.service.ResolveDateShortcut("next eon", now); !errors.Is(err, period.ErrUnknownShortcut) {
		t.Fatalf("error = %v, want ErrUnknownShortcut", err)
	}
}
