package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	Expenses TransactionType = "EXPENSES"
	Revenue  TransactionType = "REVENUE"
)

const (
	// RootCategoryName is the name of the single root category per type.
	RootCategoryName = "root"

	// QualifiedNameSeparator joins category names into a qualified name.
	QualifiedNameSeparator = "#"

	// NoCategoryName labels transactions no rule matched.
	NoCategoryName = "NO CATEGORY"

	// DummyCategoryName labels the reserved system category.
	DummyCategoryName = "DUMMY CATEGORY"

	// NoCategoryID is the fixed ID of the NO CATEGORY sentinel.
	NoCategoryID int64 = -1
)

type (
	// TransactionType partitions the taxonomy: expenses and revenue each
	// have their own category tree.
	TransactionType string

	// Category is a node in the category taxonomy. Identity is the
	// qualified name alone: two categories are the same category exactly
	// when their qualified names are equal, regardless of ID.
	Category struct {
		ID            int64
		Name          string
		QualifiedName string
		IsRoot        bool
		Type          TransactionType
		ParentID      int64 // 0 for roots and sentinels
	}
)

var (
	ErrInvalidCategory   = errors.New("invalid category")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrBudgetNotFound    = errors.New("budget not found")
	ErrDuplicateCategory = errors.New("duplicate qualified name")
)

// Validate checks the construction invariants of a category.
func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("empty category name: %w", ErrInvalidCategory)
	}
	if strings.TrimSpace(c.QualifiedName) == "" {
		return fmt.Errorf("empty qualified name: %w", ErrInvalidCategory)
	}
	switch c.Type {
	case Expenses, Revenue:
	default:
		return fmt.Errorf("unknown transaction type %q: %w", c.Type, ErrInvalidCategory)
	}
	if c.IsRoot && c.Name != RootCategoryName {
		return errors.New("root category must be named " + RootCategoryName)
	}
	return nil
}

// Key returns the identity of the category. Equality and map keying use
// the qualified name, never the database ID.
func (c Category) Key() string {
	return c.QualifiedName
}

// Equal reports whether two categories are the same taxonomy node.
func (c Category) Equal(other Category) bool {
	return c.QualifiedName == other.QualifiedName
}

// NoCategory returns the sentinel assigned when no rule matches.
func NoCategory(t TransactionType) Category {
	return Category{
		ID:            NoCategoryID,
		Name:          NoCategoryName,
		QualifiedName: NoCategoryName,
		Type:          t,
	}
}

// DummyCategory returns the reserved system sentinel for the given type.
func DummyCategory(t TransactionType) Category {
	return Category{
		Name:          DummyCategoryName,
		QualifiedName: DummyCategoryName,
		Type:          t,
	}
}

// QualifiedNameFor builds the qualified name of a child from its parent's.
func QualifiedNameFor(parentQualifiedName, name string) string {
	if parentQualifiedName == "" {
		return name
	}
	return parentQualifiedName + QualifiedNameSeparator + name
}
