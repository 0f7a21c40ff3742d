package rules

import (
	"encoding/json"
	"errors"
	"fmt"

	"budgeteer/internal/core"
)

// CodecVersion is the current serialization format version. Persisted
// rule sets carry the version they were written with; decoding rejects
// versions it does not know.
const CodecVersion = 1

type nodeKind string

const (
	kindRule    nodeKind = "rule"
	kindRuleSet nodeKind = "rule_set"
)

var (
	ErrUnsupportedVersion = errors.New("unsupported rule set version")
	ErrUnknownNodeKind    = errors.New("unknown rule node kind")
)

type envelope struct {
	Version int             `json:"version"`
	Root    json.RawMessage `json:"root"`
}

// nodeJSON is the wire shape of both node kinds; Kind is the explicit
// tag discriminating the union.
type nodeJSON struct {
	Kind nodeKind `json:"kind"`

	// Rule leaf
	Fields         []Field              `json:"fields,omitempty"`
	FieldType      FieldType            `json:"field_type,omitempty"`
	Values         []string             `json:"values,omitempty"`
	ValueMatchType ValueMatchType       `json:"value_match_type,omitempty"`
	Operator       Operator             `json:"operator,omitempty"`
	Type           core.TransactionType `json:"type,omitempty"`

	// RuleSet combinator
	Condition Condition  `json:"condition,omitempty"`
	Rules     []nodeJSON `json:"rules,omitempty"`
	IsChild   bool       `json:"is_child,omitempty"`
}

// Marshal serializes a rule node tree into the versioned wire format.
func Marshal(root Node) ([]byte, error) {
	if root == nil {
		return nil, fmt.Errorf("nil rule node: %w", ErrInvalidRule)
	}
	encoded, err := encodeNode(root)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(encoded)
	if err != nil {
		return nil, fmt.Errorf("marshal rule node: %w", err)
	}
	return json.Marshal(envelope{Version: CodecVersion, Root: raw})
}

// Unmarshal parses the versioned wire format back into a validated
// rule node tree. Every rule re-runs construction validation, so a
// tampered or hand-edited blob fails here rather than at evaluation.
func Unmarshal(data []byte) (Node, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal rule set envelope: %w", err)
	}
	if env.Version != CodecVersion {
		return nil, fmt.Errorf("version %d: %w", env.Version, ErrUnsupportedVersion)
	}
	if len(env.Root) == 0 {
		return nil, fmt.Errorf("envelope without root: %w", ErrInvalidRule)
	}
	var root nodeJSON
	if err := json.Unmarshal(env.Root, &root); err != nil {
		return nil, fmt.Errorf("unmarshal rule node: %w", err)
	}
	return decodeNode(root)
}

func encodeNode(n Node) (nodeJSON, error) {
	switch node := n.(type) {
	case *Rule:
		return nodeJSON{
			Kind:           kindRule,
			Fields:         node.Fields,
			FieldType:      node.FieldType,
			Values:         node.Values,
			ValueMatchType: node.ValueMatchType,
			Operator:       node.Operator,
			Type:           node.Type,
		}, nil
	case *RuleSet:
		children := make([]nodeJSON, 0, len(node.Rules))
		for _, child := range node.Rules {
			encoded, err := encodeNode(child)
			if err != nil {
				return nodeJSON{}, err
			}
			children = append(children, encoded)
		}
		return nodeJSON{
			Kind:      kindRuleSet,
			Condition: node.Condition,
			Rules:     children,
			IsChild:   node.IsChild,
			Type:      node.Type,
		}, nil
	default:
		return nodeJSON{}, fmt.Errorf("%T: %w", n, ErrUnknownNodeKind)
	}
}

func decodeNode(n nodeJSON) (Node, error) {
	switch n.Kind {
	case kindRule:
		rule, err := NewRule(n.Fields, n.FieldType, n.Values, n.ValueMatchType, n.Operator)
		if err != nil {
			return nil, err
		}
		rule.Type = n.Type
		return rule, nil
	case kindRuleSet:
		children := make([]Node, 0, len(n.Rules))
		for _, child := range n.Rules {
			decoded, err := decodeNode(child)
			if err != nil {
				return nil, err
			}
			children = append(children, decoded)
		}
		set, err := NewRuleSet(n.Condition, children, n.IsChild)
		if err != nil {
			return nil, err
		}
		set.Type = n.Type
		return set, nil
	default:
		return nil, fmt.Errorf("%q: %w", n.Kind, ErrUnknownNodeKind)
	}
}
