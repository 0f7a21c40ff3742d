package categorize

import (
	"context"
	"fmt"
	"time"

	"budgeteer/internal/cache"
	"budgeteer/internal/core"
	"budgeteer/internal/rules"
)

// Registry hands out categorization engines per transaction type. Built
// engines are cached; Invalidate drops them so the next request rebuilds
// the tree and rule index wholesale after a taxonomy or rule change.
type Registry struct {
	taxonomy TaxonomySource
	ruleSets RuleSetSource
	engines  *cache.LRUCache[*Engine]
}

// NewRegistry creates a registry over the given suppliers. Engines are
// kept for at most ttl before they are rebuilt; a zero ttl keeps them
// until Invalidate.
func NewRegistry(taxonomy TaxonomySource, ruleSets RuleSetSource, ttl time.Duration) *Registry {
	return &Registry{
		taxonomy: taxonomy,
		ruleSets: ruleSets,
		// One engine per transaction type.
		engines: cache.NewLRUCache[*Engine](2, ttl),
	}
}

// EngineFor returns the engine for a transaction type, building it on
// first use.
func (r *Registry) EngineFor(ctx context.Context, t core.TransactionType) (*Engine, error) {
	if engine, ok := r.engines.Get(string(t)); ok {
		return engine, nil
	}
	engine, err := r.build(ctx, t)
	if err != nil {
		return nil, err
	}
	r.engines.Set(string(t), engine)
	return engine, nil
}

// EngineForTransaction selects the engine matching the transaction's
// type (non-negative amounts are revenue, negative are expenses).
func (r *Registry) EngineForTransaction(ctx context.Context, tx *core.Transaction) (*Engine, error) {
	return r.EngineFor(ctx, tx.Type())
}

// Invalidate drops all cached engines. Concurrent readers holding a
// stale engine finish their pass against the old tree; nothing breaks,
// a freshly added rule just does not match until the rebuild.
func (r *Registry) Invalidate() {
	r.engines.Purge()
}

func (r *Registry) build(ctx context.Context, t core.TransactionType) (*Engine, error) {
	categories, err := r.taxonomy.CategoriesByType(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("load categories for %s: %w", t, err)
	}
	tree, err := core.NewTree(t, categories)
	if err != nil {
		return nil, fmt.Errorf("build %s category tree: %w", t, err)
	}

	index := make(map[int64]rules.Node)
	for _, c := range categories {
		node, err := r.ruleSets.RuleSetForCategory(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("load rule set for %q: %w", c.QualifiedName, err)
		}
		if node == nil {
			continue
		}
		node.SetType(t)
		index[c.ID] = node
	}
	return NewEngine(tree, index), nil
}
