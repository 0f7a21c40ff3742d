package analysis

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"budgeteer/internal/core"
)

func expenseTree(t *testing.T) *core.Tree {
	t.Helper()
	tree, err := core.NewTree(core.Expenses, []core.Category{
		{ID: 1, Name: "root", QualifiedName: "root", IsRoot: true, Type: core.Expenses},
		{ID: 2, Name: "food", QualifiedName: "root#food", Type: core.Expenses, ParentID: 1},
		{ID: 3, Name: "groceries", QualifiedName: "root#food#groceries", Type: core.Expenses, ParentID: 2},
		{ID: 4, Name: "restaurants", QualifiedName: "root#food#restaurants", Type: core.Expenses, ParentID: 2},
		{ID: 5, Name: "car", QualifiedName: "root#car", Type: core.Expenses, ParentID: 1},
	})
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	return tree
}

func category(tree *core.Tree, t *testing.T, name string) *core.Category {
	t.Helper()
	c, err := tree.GetByQualifiedName(name)
	if err != nil {
		t.Fatalf("lookup %q: %v", name, err)
	}
	return c
}

func TestCategoryDetailsSharesSumToHundred(t *testing.T) {
	tree := expenseTree(t)
	source := &fakeTransactions{txs: []core.Transaction{
		tx(1, day(2023, time.June, 1), -7500, false, category(tree, t, "root#food#groceries")),
		tx(2, day(2023, time.June, 2), -2500, false, category(tree, t, "root#food#restaurants")),
		tx(3, day(2023, time.June, 3), -100000, false, category(tree, t, "root#car")), // outside scope
	}}
	agg := NewAggregator(source)

	details, err := agg.CategoryDetails(context.Background(), monthQuery(), tree, "root#food")
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if details.Total.Cents != -10000 {
		t.Fatalf("total = %d", details.Total.Cents)
	}
	if len(details.Shares) != 2 {
		t.Fatalf("shares = %+v", details.Shares)
	}

	// Sorted by magnitude descending.
	if details.Shares[0].Category != "root#food#groceries" {
		t.Fatalf("largest share first, got %q", details.Shares[0].Category)
	}
	if details.Shares[0].Percentage != 75.0 || details.Shares[1].Percentage != 25.0 {
		t.Fatalf("percentages = %v, %v", details.Shares[0].Percentage, details.Shares[1].Percentage)
	}

	var sum float64
	for _, s := range details.Shares {
		sum += s.Percentage
	}
	if math.Abs(sum-100.0) > 1e-9 {
		t.Fatalf("percentages sum to %v, want 100", sum)
	}
}

func TestCategoryDetailsIncludesOwnTransactions(t *testing.T) {
	tree := expenseTree(t)
	source := &fakeTransactions{txs: []core.Transaction{
		tx(1, day(2023, time.June, 1), -6000, false, category(tree, t, "root#food")),
		tx(2, day(2023, time.June, 2), -4000, false, category(tree, t, "root#food#groceries")),
	}}
	agg := NewAggregator(source)

	details, err := agg.CategoryDetails(context.Background(), monthQuery(), tree, "root#food")
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if details.Total.Cents != -10000 {
		t.Fatalf("total = %d", details.Total.Cents)
	}
	if details.Shares[0].Percentage != 60.0 {
		t.Fatalf("parent's own share = %v", details.Shares[0].Percentage)
	}
}

func TestCategoryDetailsUnknownNameSuggestsClosest(t *testing.T) {
	tree := expenseTree(t)
	agg := NewAggregator(&fakeTransactions{})

	_, err := agg.CategoryDetails(context.Background(), monthQuery(), tree, "root#fod")
	if !errors.Is(err, core.ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "root#food") {
		t.Fatalf("error should hint at the closest name: %v", err)
	}
}

func TestCategoryDetailsEmptyQuery(t *testing.T) {
	tree := expenseTree(t)
	agg := NewAggregator(&fakeTransactions{})

	details, err := agg.CategoryDetails(context.Background(), Query{}, tree, "root#food")
	if err != nil {
		t.Fatalf("empty query must not error: %v", err)
	}
	if len(details.Shares) != 0 || details.Total.Cents != 0 {
		t.Fatalf("expected empty details, got %+v", details)
	}
}
