package core

import (
	"fmt"
)

// Tree is the category taxonomy for one transaction type. Nodes live in
// an arena addressed by category ID; children are kept as an adjacency
// list keyed by parent ID, in insertion order. The tree is built
// wholesale from the full category list and rebuilt on any taxonomy
// change rather than patched incrementally.
type Tree struct {
	typ      TransactionType
	rootID   int64
	nodes    map[int64]*Category
	children map[int64][]int64
	byName   map[string]*Category
}

// NewTree builds a tree from all categories of one transaction type.
// Exactly one root (named "root") is required; qualified names must be
// unique. Sentinel categories (NO CATEGORY, DUMMY CATEGORY) are not
// part of the tree and must not be passed in.
func NewTree(typ TransactionType, categories []Category) (*Tree, error) {
	t := &Tree{
		typ:      typ,
		nodes:    make(map[int64]*Category, len(categories)),
		children: make(map[int64][]int64, len(categories)),
		byName:   make(map[string]*Category, len(categories)),
	}

	rootSeen := false
	for i := range categories {
		c := categories[i]
		if c.Type != typ {
			return nil, fmt.Errorf("category %q has type %s, tree has type %s: %w",
				c.QualifiedName, c.Type, typ, ErrInvalidCategory)
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if _, dup := t.byName[c.QualifiedName]; dup {
			return nil, fmt.Errorf("%q: %w", c.QualifiedName, ErrDuplicateCategory)
		}
		if c.IsRoot {
			if rootSeen {
				return nil, fmt.Errorf("more than one root category: %w", ErrInvalidCategory)
			}
			rootSeen = true
			t.rootID = c.ID
		}
		node := &c
		t.nodes[c.ID] = node
		t.byName[c.QualifiedName] = node
	}
	if !rootSeen {
		return nil, fmt.Errorf("no root category for type %s: %w", typ, ErrInvalidCategory)
	}

	// Adjacency in input order; parents must exist.
	for i := range categories {
		c := categories[i]
		if c.IsRoot {
			continue
		}
		if _, ok := t.nodes[c.ParentID]; !ok {
			return nil, fmt.Errorf("category %q references missing parent %d: %w",
				c.QualifiedName, c.ParentID, ErrInvalidCategory)
		}
		t.children[c.ParentID] = append(t.children[c.ParentID], c.ID)
	}

	return t, nil
}

// Type returns the transaction type this tree is scoped to.
func (t *Tree) Type() TransactionType {
	return t.typ
}

// Root returns the root category.
func (t *Tree) Root() *Category {
	return t.nodes[t.rootID]
}

// Get returns the category with the given ID, or nil.
func (t *Tree) Get(id int64) *Category {
	return t.nodes[id]
}

// GetByQualifiedName returns the category with the given qualified name,
// or ErrCategoryNotFound.
func (t *Tree) GetByQualifiedName(qualifiedName string) (*Category, error) {
	if c, ok := t.byName[qualifiedName]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%q: %w", qualifiedName, ErrCategoryNotFound)
}

// Children returns the direct children of a category in insertion order.
func (t *Tree) Children(id int64) []*Category {
	ids := t.children[id]
	out := make([]*Category, 0, len(ids))
	for _, childID := range ids {
		out = append(out, t.nodes[childID])
	}
	return out
}

// Size returns the number of categories in the tree.
func (t *Tree) Size() int {
	return len(t.nodes)
}

// QualifiedNames returns every qualified name in the tree, in no
// particular order.
func (t *Tree) QualifiedNames() []string {
	out := make([]string, 0, len(t.byName))
	for name := range t.byName {
		out = append(out, name)
	}
	return out
}

// Descendants returns the category with the given ID and all categories
// below it, parents before children.
func (t *Tree) Descendants(id int64) []*Category {
	start, ok := t.nodes[id]
	if !ok {
		return nil
	}
	out := []*Category{start}
	for i := 0; i < len(out); i++ {
		for _, childID := range t.children[out[i].ID] {
			out = append(out, t.nodes[childID])
		}
	}
	return out
}

// PostOrder visits every category with all descendants before the
// category itself, children in insertion order. The walk stops early
// when visit returns true.
func (t *Tree) PostOrder(visit func(c *Category) bool) {
	t.postOrder(t.rootID, visit)
}

func (t *Tree) postOrder(id int64, visit func(c *Category) bool) bool {
	for _, childID := range t.children[id] {
		if t.postOrder(childID, visit) {
			return true
		}
	}
	return visit(t.nodes[id])
}
