// Package rules implements the boolean predicate DSL used to
// auto-categorize transactions. A rule set is a tree of rules combined
// with AND/OR conditions, evaluated against a single transaction.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"budgeteer/internal/core"
)

const (
	FieldTypeNumber      FieldType = "number"
	FieldTypeString      FieldType = "string"
	FieldTypeCategorical FieldType = "categorical"

	MatchAnyOf ValueMatchType = "any_of"
	MatchAllOf ValueMatchType = "all_of"

	OperatorContains   Operator = "contains"
	OperatorExactMatch Operator = "exact_match"

	ConditionAnd Condition = "AND"
	ConditionOr  Condition = "OR"
)

type (
	// FieldType declares how a rule's values compare against its fields.
	FieldType string

	// ValueMatchType governs how the value list is matched against a
	// single field's actual value.
	ValueMatchType string

	// Operator selects the comparison. Note that exact_match performs
	// the same substring search as contains; callers relying on strict
	// equality have to anchor their pattern themselves.
	Operator string

	// Condition combines the children of a rule set.
	Condition string
)

var (
	ErrInvalidRule            = errors.New("invalid rule")
	ErrUnknownField           = errors.New("unknown rule field")
	ErrNumericRuleUnsupported = errors.New("numeric rule evaluation unsupported")
)

// Node is a node of the rule DSL: either a Rule leaf or a RuleSet
// combinator.
type Node interface {
	// Evaluate applies the node's predicate to a transaction.
	Evaluate(tx *core.Transaction) (bool, error)

	// SetType tags the node (and, for rule sets, every descendant)
	// with a transaction type. The tag is metadata; evaluation ignores
	// it.
	SetType(t core.TransactionType)

	kind() nodeKind
}

// Rule is a leaf predicate. It evaluates true when ANY of its fields
// matches; ValueMatchType governs how the value list matches a single
// field, not how fields combine.
type Rule struct {
	Fields         []Field
	FieldType      FieldType
	Values         []string
	ValueMatchType ValueMatchType
	Operator       Operator
	Type           core.TransactionType

	patterns []*regexp.Regexp
}

// NewRule validates and compiles a rule. All configuration errors
// surface here, never during evaluation.
func NewRule(fields []Field, fieldType FieldType, values []string, match ValueMatchType, op Operator) (*Rule, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("rule without fields: %w", ErrInvalidRule)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("rule without values: %w", ErrInvalidRule)
	}
	switch fieldType {
	case FieldTypeNumber, FieldTypeString, FieldTypeCategorical:
	default:
		return nil, fmt.Errorf("field type %q: %w", fieldType, ErrInvalidRule)
	}
	switch match {
	case MatchAnyOf, MatchAllOf:
	default:
		return nil, fmt.Errorf("value match type %q: %w", match, ErrInvalidRule)
	}
	switch op {
	case OperatorContains, OperatorExactMatch:
	default:
		return nil, fmt.Errorf("operator %q: %w", op, ErrInvalidRule)
	}
	if op == OperatorExactMatch && match == MatchAllOf {
		return nil, fmt.Errorf("exact_match cannot be combined with all_of: %w", ErrInvalidRule)
	}
	for _, f := range fields {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if f.IsNumeric() != (fieldType == FieldTypeNumber) {
			return nil, fmt.Errorf("field %q does not agree with field type %q: %w", f, fieldType, ErrInvalidRule)
		}
	}

	r := &Rule{
		Fields:         fields,
		FieldType:      fieldType,
		Values:         values,
		ValueMatchType: match,
		Operator:       op,
	}
	if fieldType != FieldTypeNumber {
		r.patterns = make([]*regexp.Regexp, 0, len(values))
		for _, v := range values {
			p, err := compileValuePattern(v)
			if err != nil {
				return nil, fmt.Errorf("value %q: %w", v, err)
			}
			r.patterns = append(r.patterns, p)
		}
	}
	return r, nil
}

// compileValuePattern treats the candidate value as a case-insensitive
// regex with spaces widened to \s*, so rule authors match across
// variable whitespace in bank statement text.
func compileValuePattern(value string) (*regexp.Regexp, error) {
	expanded := strings.ReplaceAll(value, " ", `\s*`)
	p, err := regexp.Compile("(?i)" + expanded)
	if err != nil {
		return nil, fmt.Errorf("compile pattern: %w", ErrInvalidRule)
	}
	return p, nil
}

// Evaluate reports whether the rule matches the transaction. Numeric
// rules fail loudly rather than silently evaluating false.
func (r *Rule) Evaluate(tx *core.Transaction) (bool, error) {
	if r.FieldType == FieldTypeNumber {
		return false, fmt.Errorf("fields %v: %w", r.Fields, ErrNumericRuleUnsupported)
	}
	for _, f := range r.Fields {
		actual, ok := f.resolve(tx)
		if !ok {
			continue
		}
		if r.matchValue(actual) {
			return true, nil
		}
	}
	return false, nil
}

// matchValue applies the value list to one resolved field value.
// Substring search is used for both operators.
func (r *Rule) matchValue(actual string) bool {
	if r.ValueMatchType == MatchAllOf {
		for _, p := range r.patterns {
			if !p.MatchString(actual) {
				return false
			}
		}
		return true
	}
	for _, p := range r.patterns {
		if p.MatchString(actual) {
			return true
		}
	}
	return false
}

// SetType implements Node.
func (r *Rule) SetType(t core.TransactionType) {
	r.Type = t
}

func (r *Rule) kind() nodeKind { return kindRule }

// RuleSet combines child nodes under a single condition. Rule sets
// nest: a child may itself be a rule set.
type RuleSet struct {
	Condition Condition
	Rules     []Node
	IsChild   bool
	Type      core.TransactionType
}

// NewRuleSet validates the condition and wraps the children.
func NewRuleSet(condition Condition, children []Node, isChild bool) (*RuleSet, error) {
	switch condition {
	case ConditionAnd, ConditionOr:
	default:
		return nil, fmt.Errorf("condition %q: %w", condition, ErrInvalidRule)
	}
	return &RuleSet{Condition: condition, Rules: children, IsChild: isChild}, nil
}

// Evaluate applies the combinator. An empty rule list evaluates false
// unconditionally, for AND as well as OR: an unconfigured rule set
// must never match everything.
func (s *RuleSet) Evaluate(tx *core.Transaction) (bool, error) {
	if len(s.Rules) == 0 {
		return false, nil
	}
	for _, child := range s.Rules {
		matched, err := child.Evaluate(tx)
		if err != nil {
			return false, err
		}
		switch s.Condition {
		case ConditionAnd:
			if !matched {
				return false, nil
			}
		case ConditionOr:
			if matched {
				return true, nil
			}
		}
	}
	return s.Condition == ConditionAnd, nil
}

// SetType tags the whole rule set tree with a transaction type.
func (s *RuleSet) SetType(t core.TransactionType) {
	s.Type = t
	for _, child := range s.Rules {
		child.SetType(t)
	}
}

func (s *RuleSet) kind() nodeKind { return kindRuleSet }
