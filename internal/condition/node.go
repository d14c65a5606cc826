// Package condition models audience targeting expressions and evaluates them
// with three-valued logic.
//
// An expression is a tree of AND / OR / NOT operators whose leaves are either
// attribute conditions or references to audiences defined elsewhere in the
// project config. The tree is built once when the datafile is parsed and is
// treated as immutable afterwards.
package condition

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind identifies which variant of the Node union is populated.
type Kind uint8

const (
	KindOr Kind = iota
	KindAnd
	KindNot
	KindAudience
	KindLeaf
)

// Operator tokens as they appear in the datafile. Matching is case-sensitive.
const (
	OperatorAnd = "and"
	OperatorOr  = "or"
	OperatorNot = "not"
)

// Leaf condition types.
const (
	TypeCustomAttribute     = "custom_attribute"
	TypeThirdPartyDimension = "third_party_dimension"
)

// ErrInvalidCondition is returned when an expression element has a shape
// that cannot be turned into a Node.
var ErrInvalidCondition = errors.New("invalid condition")

// Leaf is a single attribute comparison.
type Leaf struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Match string `json:"match,omitempty"`
	Value any    `json:"value"`
}

// Node is a tagged union over the condition variants. Only the fields that
// belong to Kind are meaningful.
type Node struct {
	Kind       Kind
	Children   []*Node
	AudienceID string
	Leaf       *Leaf
}

func And(children ...*Node) *Node { return &Node{Kind: KindAnd, Children: children} }

func Or(children ...*Node) *Node { return &Node{Kind: KindOr, Children: children} }

// Not wraps child. A nil child produces a NOT with no operand, which
// evaluates to Unknown.
func Not(child *Node) *Node {
	if child == nil {
		return &Node{Kind: KindNot}
	}
	return &Node{Kind: KindNot, Children: []*Node{child}}
}

func AudienceRef(id string) *Node { return &Node{Kind: KindAudience, AudienceID: id} }

func LeafNode(l Leaf) *Node { return &Node{Kind: KindLeaf, Leaf: &l} }

// Parse builds a Node from a decoded JSON expression.
//
// Arrays become operators: when the first element is "and", "or" or "not"
// the remaining elements are its operands, otherwise the whole array is an
// implicit OR over every element. Objects become leaves and strings become
// audience references.
func Parse(raw any) (*Node, error) {
	switch v := raw.(type) {
	case []any:
		return parseList(v)
	case map[string]any:
		return parseLeaf(v)
	case string:
		return AudienceRef(v), nil
	default:
		return nil, fmt.Errorf("%w: unexpected element of type %T", ErrInvalidCondition, raw)
	}
}

// ParseJSON decodes data and parses the result. Numbers are kept as
// json.Number so large integers are not silently rounded before matching.
func ParseJSON(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCondition, err)
	}
	return Parse(raw)
}

func parseList(items []any) (*Node, error) {
	kind := KindOr
	operands := items
	if len(items) > 0 {
		if token, ok := items[0].(string); ok {
			switch token {
			case OperatorAnd:
				kind, operands = KindAnd, items[1:]
			case OperatorOr:
				kind, operands = KindOr, items[1:]
			case OperatorNot:
				kind, operands = KindNot, items[1:]
			}
		}
	}

	children := make([]*Node, 0, len(operands))
	for _, item := range operands {
		child, err := Parse(item)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return &Node{Kind: kind, Children: children}, nil
}

func parseLeaf(obj map[string]any) (*Node, error) {
	leaf := Leaf{Value: obj["value"]}
	var ok bool
	if v, present := obj["name"]; present {
		if leaf.Name, ok = v.(string); !ok {
			return nil, fmt.Errorf("%w: leaf name must be a string", ErrInvalidCondition)
		}
	}
	if v, present := obj["type"]; present {
		if leaf.Type, ok = v.(string); !ok {
			return nil, fmt.Errorf("%w: leaf type must be a string", ErrInvalidCondition)
		}
	}
	if v, present := obj["match"]; present && v != nil {
		if leaf.Match, ok = v.(string); !ok {
			return nil, fmt.Errorf("%w: leaf match must be a string", ErrInvalidCondition)
		}
	}
	return LeafNode(leaf), nil
}

// MarshalJSON renders the node back into datafile form. It is used to quote
// conditions in decision reasons.
func (n *Node) MarshalJSON() ([]byte, error) {
	if n == nil {
		return []byte("null"), nil
	}
	switch n.Kind {
	case KindAudience:
		return json.Marshal(n.AudienceID)
	case KindLeaf:
		return json.Marshal(n.Leaf)
	}

	token := OperatorOr
	switch n.Kind {
	case KindAnd:
		token = OperatorAnd
	case KindNot:
		token = OperatorNot
	}
	out := make([]any, 0, len(n.Children)+1)
	out = append(out, token)
	for _, c := range n.Children {
		out = append(out, c)
	}
	return json.Marshal(out)
}

func (n *Node) String() string {
	b, err := n.MarshalJSON()
	if err != nil {
		return "<invalid condition>"
	}
	return string(b)
}
