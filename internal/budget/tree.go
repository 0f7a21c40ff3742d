// Package budget tracks budgeted amounts per category against the
// actual spend reported by the period aggregator.
package budget

import (
	"budgeteer/internal/core"
)

// UnbudgetedCents marks the root node of a budget tree: the root is a
// structural sentinel, never a budget of its own, and is excluded from
// every total.
const UnbudgetedCents int64 = -1

// Tree mirrors a category tree 1:1 with a budgeted amount per
// category. One tree exists per bank account.
type Tree struct {
	AccountID  int64
	categories *core.Tree
	amounts    map[int64]core.Money
}

// NewTree builds a budget tree over a category tree. amounts maps
// category IDs to budgeted amounts; categories without an entry
// default to zero, and the root is forced to the unbudgeted sentinel.
func NewTree(accountID int64, categories *core.Tree, amounts map[int64]core.Money) *Tree {
	t := &Tree{
		AccountID:  accountID,
		categories: categories,
		amounts:    make(map[int64]core.Money, len(amounts)),
	}
	for id, amount := range amounts {
		t.amounts[id] = amount
	}
	t.amounts[categories.Root().ID] = core.Money{Cents: UnbudgetedCents}
	return t
}

// Categories returns the mirrored category tree.
func (t *Tree) Categories() *core.Tree {
	return t.categories
}

// Amount returns the budgeted amount for a category, zero when the
// category has no explicit budget.
func (t *Tree) Amount(categoryID int64) core.Money {
	return t.amounts[categoryID]
}
