// Package categorize assigns categories to transactions by walking the
// category tree in post-order and evaluating each category's attached
// rule set. Children are visited before their parents, so the deepest
// matching category always wins over its ancestors.
package categorize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"budgeteer/internal/core"
	"budgeteer/internal/rules"
)

// defaultBatchWorkers bounds concurrent rule evaluation in a batch.
// Transactions are independent; the tree and rule index are read-only.
const defaultBatchWorkers = 8

var ErrManuallyAssigned = errors.New("transaction category was assigned manually")

type (
	// TaxonomySource supplies all categories of one transaction type,
	// with parent links and qualified names populated. Sentinel
	// categories are not part of the taxonomy.
	TaxonomySource interface {
		CategoriesByType(ctx context.Context, t core.TransactionType) ([]core.Category, error)
	}

	// RuleSetSource supplies the rule set attached to a category, or
	// nil when the category has none.
	RuleSetSource interface {
		RuleSetForCategory(ctx context.Context, categoryID int64) (rules.Node, error)
	}

	// CategorySaver persists a transaction's new category. The engine
	// calls it exactly once per changed transaction.
	CategorySaver interface {
		SaveTransactionCategory(ctx context.Context, transactionID, categoryID int64) error
	}
)

// Engine categorizes transactions against one category tree and its
// rule set index. Both are read-only after construction; an Engine is
// safe for concurrent use.
type Engine struct {
	tree     *core.Tree
	ruleSets map[int64]rules.Node
	workers  int
}

// NewEngine builds an engine over a category tree and the rule sets
// attached to its categories, keyed by category ID.
func NewEngine(tree *core.Tree, ruleSets map[int64]rules.Node) *Engine {
	return &Engine{
		tree:     tree,
		ruleSets: ruleSets,
		workers:  defaultBatchWorkers,
	}
}

// Tree returns the category tree the engine walks.
func (e *Engine) Tree() *core.Tree {
	return e.tree
}

// Categorize finds the single best-matching category for a transaction
// and assigns it to tx.Category. It returns (nil, nil) when no rule set
// matches; the caller decides whether to fall back to the NO CATEGORY
// sentinel. Transactions whose category was assigned manually are
// refused.
func (e *Engine) Categorize(tx *core.Transaction) (*core.Category, error) {
	if tx == nil {
		return nil, fmt.Errorf("nil transaction")
	}
	if tx.ManuallyAssigned {
		return nil, fmt.Errorf("transaction %d: %w", tx.ID, ErrManuallyAssigned)
	}
	if tx.Type() != e.tree.Type() {
		return nil, fmt.Errorf("transaction %d has type %s, engine tree has type %s",
			tx.ID, tx.Type(), e.tree.Type())
	}

	var (
		match   *core.Category
		evalErr error
	)
	e.tree.PostOrder(func(c *core.Category) bool {
		node, ok := e.ruleSets[c.ID]
		if !ok {
			// No rule set attached: never a match.
			return false
		}
		matched, err := node.Evaluate(tx)
		if err != nil {
			evalErr = fmt.Errorf("category %q: %w", c.QualifiedName, err)
			return true
		}
		if matched {
			match = c
			return true
		}
		return false
	})
	if evalErr != nil {
		return nil, evalErr
	}
	if match != nil {
		tx.Category = match
	}
	return match, nil
}

// BatchResult reports the outcome of a batch categorization run.
type BatchResult struct {
	Matched   int
	Unmatched int
	Skipped   int
}

// CategorizeBatch categorizes each transaction independently with
// bounded parallelism. A failure for one transaction never aborts the
// batch; the transaction counts as unmatched and the run continues.
// Matches are persisted through saver, once per changed transaction.
// Manually assigned transactions are skipped untouched.
func (e *Engine) CategorizeBatch(ctx context.Context, txs []*core.Transaction, saver CategorySaver) BatchResult {
	type outcome int
	const (
		outcomeUnmatched outcome = iota
		outcomeMatched
		outcomeSkipped
	)

	outcomes := make([]outcome, len(txs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, tx := range txs {
		g.Go(func() error {
			if tx.ManuallyAssigned {
				outcomes[i] = outcomeSkipped
				return nil
			}
			match, err := e.Categorize(tx)
			if err != nil {
				slog.WarnContext(ctx, "Categorization failed, skipping transaction",
					"transaction_id", tx.ID, "error", err)
				return nil
			}
			if match == nil {
				return nil
			}
			if saver != nil {
				if err := saver.SaveTransactionCategory(ctx, tx.ID, match.ID); err != nil {
					slog.ErrorContext(ctx, "Failed to persist category assignment",
						"transaction_id", tx.ID, "category", match.QualifiedName, "error", err)
					return nil
				}
			}
			outcomes[i] = outcomeMatched
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; failures are isolated

	var result BatchResult
	for _, o := range outcomes {
		switch o {
		case outcomeMatched:
			result.Matched++
		case outcomeSkipped:
			result.Skipped++
		default:
			result.Unmatched++
		}
	}
	return result
}
