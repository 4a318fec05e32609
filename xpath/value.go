package xpath

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/arturoeanton/go-xslt/xmlnode"
)

// Type discriminates the XPath 1.0 value types plus the 2.0+ sequence tier
// (spec §3): string, number, boolean, node-set, and a generic sequence of
// items (nodes or atomics) used by the 2.0/3.0 operators.
type Type uint8

const (
	TypeNodeSet Type = iota
	TypeBoolean
	TypeNumber
	TypeString
	TypeSequence
)

// Value is a dynamically typed XPath value. Exactly one of the typed fields
// is meaningful, selected by Type.
type Value struct {
	Type Type

	Str  string
	Num  float64
	Bool bool

	// Nodes backs TypeNodeSet: always held in document order, deduplicated.
	Nodes NodeSet

	// Items backs TypeSequence: an ordered list of atomic values and/or
	// nodes, as produced by range expressions, for-expressions and
	// sequence construction. Node-only sequences are still represented as
	// TypeNodeSet for axis/path results; TypeSequence is reserved for
	// heterogeneous or atomic sequences.
	Items []Value
}

// NodeSet is a document-ordered, deduplicated list of node identities
// together with the tree that owns them (a result can only reference nodes
// from the document it was evaluated over, and RTFs get their own Tree).
type NodeSet struct {
	Tree  *xmlnode.Tree
	IDs   []xmlnode.ID
}

func StringValue(s string) Value  { return Value{Type: TypeString, Str: s} }
func NumberValue(n float64) Value { return Value{Type: TypeNumber, Num: n} }
func BoolValue(b bool) Value      { return Value{Type: TypeBoolean, Bool: b} }

func NodeSetValue(tree *xmlnode.Tree, ids []xmlnode.ID) Value {
	return Value{Type: TypeNodeSet, Nodes: NodeSet{Tree: tree, IDs: ids}}
}

func SequenceValue(items []Value) Value {
	return Value{Type: TypeSequence, Items: items}
}

// AsBoolean applies the XPath 1.0 effective-boolean-value coercion rules.
func (v Value) AsBoolean() bool {
	switch v.Type {
	case TypeBoolean:
		return v.Bool
	case TypeNumber:
		return v.Num != 0 && !math.IsNaN(v.Num)
	case TypeString:
		return v.Str != ""
	case TypeNodeSet:
		return len(v.Nodes.IDs) > 0
	case TypeSequence:
		return len(v.Items) > 0
	}
	return false
}

// AsNumber applies the XPath 1.0 number coercion rules: node-sets via their
// string-value, strings via a lenient numeric parse (NaN on failure),
// booleans as 1/0.
func (v Value) AsNumber() float64 {
	switch v.Type {
	case TypeNumber:
		return v.Num
	case TypeBoolean:
		if v.Bool {
			return 1
		}
		return 0
	case TypeString:
		return parseXPathNumber(v.Str)
	case TypeNodeSet:
		return parseXPathNumber(v.AsString())
	case TypeSequence:
		if len(v.Items) == 0 {
			return math.NaN()
		}
		return v.Items[0].AsNumber()
	}
	return math.NaN()
}

func parseXPathNumber(s string) float64 {
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// AsString applies the XPath 1.0 string coercion rules: node-sets take the
// string-value of their first node in document order, numbers format per
// the XPath number-to-string rules, booleans as "true"/"false".
func (v Value) AsString() string {
	switch v.Type {
	case TypeString:
		return v.Str
	case TypeNumber:
		return FormatNumber(v.Num)
	case TypeBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case TypeNodeSet:
		if len(v.Nodes.IDs) == 0 {
			return ""
		}
		return v.Nodes.Tree.StringValue(v.Nodes.IDs[0])
	case TypeSequence:
		if len(v.Items) == 0 {
			return ""
		}
		return v.Items[0].AsString()
	}
	return ""
}

// FormatNumber renders a float64 the way XPath's number-to-string
// conversion does: integers with no decimal point, NaN/Infinity literally.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		if math.Signbit(f) {
			return "0"
		}
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// AsNodeSet returns the node IDs of a node-set typed value, or an error for
// any other type: many XPath operations (axis steps, node-set functions)
// are only defined over node-sets.
func (v Value) AsNodeSet() (NodeSet, error) {
	if v.Type != TypeNodeSet {
		return NodeSet{}, fmt.Errorf("xpath: expected a node-set, got %s", v.Type)
	}
	return v.Nodes, nil
}

func (t Type) String() string {
	switch t {
	case TypeNodeSet:
		return "node-set"
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeSequence:
		return "sequence"
	default:
		return "unknown"
	}
}
