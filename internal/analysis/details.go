package analysis

import (
	"context"
	"fmt"
	"sort"

	"github.com/agnivade/levenshtein"

	"budgeteer/internal/core"
)

type (
	// CategoryShare is one descendant category's contribution to a
	// category total.
	CategoryShare struct {
		Category   string
		Amount     core.Money
		Percentage float64
	}

	// CategoryDetails expands a category to itself plus all its
	// descendants, with each one's share of the total.
	CategoryDetails struct {
		Category string
		Total    core.Money
		Shares   []CategoryShare
	}
)

// CategoryDetails sums the transactions of a category and all its
// descendants within the query scope, reporting each descendant's share
// as a percentage of the category total, sorted by amount magnitude
// descending. An unknown qualified name yields ErrCategoryNotFound with
// the closest known name in the message.
func (a *Aggregator) CategoryDetails(ctx context.Context, q Query, tree *core.Tree, qualifiedName string) (CategoryDetails, error) {
	root, err := tree.GetByQualifiedName(qualifiedName)
	if err != nil {
		if suggestion := closestName(qualifiedName, tree.QualifiedNames()); suggestion != "" {
			return CategoryDetails{}, fmt.Errorf("%q (closest match %q): %w",
				qualifiedName, suggestion, core.ErrCategoryNotFound)
		}
		return CategoryDetails{}, err
	}

	details := CategoryDetails{Category: qualifiedName, Shares: []CategoryShare{}}
	if q.IsEmpty() {
		return details, nil
	}

	scope := make(map[string]bool)
	for _, c := range tree.Descendants(root.ID) {
		scope[c.QualifiedName] = true
	}

	txs, err := a.transactions.TransactionsInRange(ctx, q.AccountID, q.Range)
	if err != nil {
		return CategoryDetails{}, fmt.Errorf("load transactions: %w", err)
	}

	sums := make(map[string]core.Money)
	for i := range txs {
		tx := &txs[i]
		if tx.Category == nil || !scope[tx.Category.QualifiedName] {
			continue
		}
		if !q.matches(tx) {
			continue
		}
		sums[tx.Category.QualifiedName] = sums[tx.Category.QualifiedName].Add(tx.Amount)
		details.Total = details.Total.Add(tx.Amount)
	}

	for name, amount := range sums {
		details.Shares = append(details.Shares, CategoryShare{
			Category:   name,
			Amount:     amount,
			Percentage: percentage(amount, details.Total),
		})
	}
	sort.Slice(details.Shares, func(i, j int) bool {
		a, b := details.Shares[i].Amount.Abs().Cents, details.Shares[j].Amount.Abs().Cents
		if a != b {
			return a > b
		}
		return details.Shares[i].Category < details.Shares[j].Category
	})
	return details, nil
}

func percentage(amount, total core.Money) float64 {
	if total.Cents == 0 {
		return 0
	}
	return float64(amount.Abs().Cents) / float64(total.Abs().Cents) * 100.0
}

// closestName returns the candidate with the smallest edit distance to
// name, for "did you mean" hints on lookups that miss.
func closestName(name string, candidates []string) string {
	best := ""
	bestDistance := -1
	for _, candidate := range candidates {
		d := levenshtein.ComputeDistance(name, candidate)
		if bestDistance == -1 || d < bestDistance {
			best = candidate
			bestDistance = d
		}
	}
	return best
}
