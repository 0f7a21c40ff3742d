package worker

import (
	"context"
	"testing"
	"time"

	"budgeteer/internal/amqp"
	"budgeteer/internal/categorize"
	"budgeteer/internal/core"
	"budgeteer/internal/rules"
)

type fakeTaxonomy struct {
	categories map[core.TransactionType][]core.Category
}

func (f *fakeTaxonomy) CategoriesByType(_ context.Context, t core.TransactionType) ([]core.Category, error) {
	return f.categories[t], nil
}

type fakeRuleSets struct {
	byCategory map[int64]rules.Node
}

func (f *fakeRuleSets) RuleSetForCategory(_ context.Context, categoryID int64) (rules.Node, error) {
	return f.byCategory[categoryID], nil
}

type fakeStore struct {
	pending  map[int64][]*core.Transaction
	accounts []core.BankAccount
	saved    map[int64]int64 // transaction ID -> category ID
}

func (f *fakeStore) UncategorizedTransactions(_ context.Context, accountID int64, limit int) ([]*core.Transaction, error) {
	txs := f.pending[accountID]
	if len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func (f *fakeStore) BankAccounts(_ context.Context) ([]core.BankAccount, error) {
	return f.accounts, nil
}

func (f *fakeStore) SaveTransactionCategory(_ context.Context, transactionID, categoryID int64) error {
	if f.saved == nil {
		f.saved = make(map[int64]int64)
	}
	f.saved[transactionID] = categoryID
	return nil
}

func mustRuleSet(t *testing.T, value string) rules.Node {
	t.Helper()
	rule, err := rules.NewRule([]rules.Field{rules.FieldDescription},
		rules.FieldTypeString, []string{value}, rules.MatchAnyOf, rules.OperatorContains)
	if err != nil {
		t.Fatalf("build rule: %v", err)
	}
	set, err := rules.NewRuleSet(rules.ConditionOr, []rules.Node{rule}, false)
	if err != nil {
		t.Fatalf("build rule set: %v", err)
	}
	return set
}

func testRegistry(t *testing.T) *categorize.Registry {
	t.Helper()
	taxonomy := &fakeTaxonomy{categories: map[core.TransactionType][]core.Category{
		core.Expenses: {
			{ID: 1, Name: "root", QualifiedName: "root", IsRoot: true, Type: core.Expenses},
			{ID: 2, Name: "food", QualifiedName: "root#food", Type: core.Expenses, ParentID: 1},
		},
		core.Revenue: {
			{ID: 10, Name: "root", QualifiedName: "root", IsRoot: true, Type: core.Revenue},
			{ID: 11, Name: "salary", QualifiedName: "root#salary", Type: core.Revenue, ParentID: 10},
		},
	}}
	ruleSets := &fakeRuleSets{byCategory: map[int64]rules.Node{
		2:  mustRuleSet(t, "rewe"),
		11: mustRuleSet(t, "acme corp"),
	}}
	return categorize.NewRegistry(taxonomy, ruleSets, 0)
}

func pendingTx(id, cents int64, description string) *core.Transaction {
	return &core.Transaction{
		ID:          id,
		BookingDate: time.Date(2023, time.June, 10, 0, 0, 0, 0, time.UTC),
		Amount:      core.Money{Cents: cents},
		Description: description,
		BankAccount: core.BankAccount{ID: 1},
	}
}

func TestHandleJobMessage(t *testing.T) {
	store := &fakeStore{pending: map[int64][]*core.Transaction{
		1: {
			pendingTx(1, -1200, "REWE Markt"),        // expense rule matches
			pendingTx(2, -900, "unknown merchant"),   // no rule matches
			pendingTx(3, 250000, "ACME Corp salary"), // revenue rule matches
		},
	}}
	worker := NewCategorizeWorker(store, testRegistry(t), 100, nil)

	msg := amqp.NewCategorizeJobMessage(1)
	if err := worker.HandleJobMessage(context.Background(), msg); err != nil {
		t.Fatalf("handle job: %v", err)
	}

	if store.saved[1] != 2 {
		t.Errorf("transaction 1 saved category = %d, want 2 (root#food)", store.saved[1])
	}
	if store.saved[3] != 11 {
		t.Errorf("transaction 3 saved category = %d, want 11 (root#salary)", store.saved[3])
	}
	if store.saved[2] != core.NoCategoryID {
		t.Errorf("transaction 2 saved category = %d, want NO CATEGORY sentinel", store.saved[2])
	}

	// The sentinel must also land on the in-memory transaction.
	tx := store.pending[1][1]
	if tx.Category == nil || tx.Category.Name != core.NoCategoryName {
		t.Errorf("unmatched transaction category = %+v, want sentinel", tx.Category)
	}
}

func TestCategorizeAccountNoPendingWork(t *testing.T) {
	store := &fakeStore{}
	worker := NewCategorizeWorker(store, testRegistry(t), 100, nil)

	result, err := worker.CategorizeAccount(context.Background(), 1)
	if err != nil {
		t.Fatalf("categorize: %v", err)
	}
	if result.Matched != 0 || result.Unmatched != 0 || result.Skipped != 0 {
		t.Fatalf("result = %+v, want zero", result)
	}
	if len(store.saved) != 0 {
		t.Fatalf("saved = %+v, want none", store.saved)
	}
}

func TestCategorizeAccountRespectsBatchSize(t *testing.T) {
	store := &fakeStore{pending: map[int64][]*core.Transaction{
		1: {
			pendingTx(1, -1200, "REWE Markt"),
			pendingTx(2, -1300, "REWE City"),
			pendingTx(3, -1400, "REWE Center"),
		},
	}}
	worker := NewCategorizeWorker(store, testRegistry(t), 2, nil)

	result, err := worker.CategorizeAccount(context.Background(), 1)
	if err != nil {
		t.Fatalf("categorize: %v", err)
	}
	if result.Matched != 2 {
		t.Fatalf("matched = %d, want 2 (batch size bound)", result.Matched)
	}
	if _, ok := store.saved[3]; ok {
		t.Fatal("transaction beyond the batch limit must not be touched")
	}
}

func TestStartupCheckSweepsAllAccounts(t *testing.T) {
	store := &fakeStore{
		accounts: []core.BankAccount{{ID: 1}, {ID: 2}},
		pending: map[int64][]*core.Transaction{
			1: {pendingTx(1, -1200, "REWE Markt")},
			2: {pendingTx(2, -900, "REWE Express")},
		},
	}
	worker := NewCategorizeWorker(store, testRegistry(t), 100, nil)

	if err := worker.StartupCheck(context.Background()); err != nil {
		t.Fatalf("startup check: %v", err)
	}
	if store.saved[1] != 2 || store.saved[2] != 2 {
		t.Fatalf("saved = %+v, want both accounts categorized", store.saved)
	}
}
