// Package xmlnode implements the source node tree: an in-memory,
// document-ordered representation of an XML document built from a stream
// of parser events, read-only once the document is closed.
package xmlnode

import (
	"fmt"
	"strings"
)

// Kind identifies the seven node types of the XPath data model.
type Kind uint8

const (
	DocumentNode Kind = iota
	ElementNode
	AttributeNode
	TextNode
	CommentNode
	PINode
	NamespaceNode
)

func (k Kind) String() string {
	switch k {
	case DocumentNode:
		return "document"
	case ElementNode:
		return "element"
	case AttributeNode:
		return "attribute"
	case TextNode:
		return "text"
	case CommentNode:
		return "comment"
	case PINode:
		return "processing-instruction"
	case NamespaceNode:
		return "namespace"
	default:
		return "unknown"
	}
}

// ID indexes a Node within its owning Tree's arena. NoID (-1) never
// identifies a real node; ID 0 is the document node.
type ID int32

const NoID ID = -1

// Name is an expanded (namespace-URI, local-name) pair. The empty URI means
// "no namespace".
type Name struct {
	URI   string
	Local string
}

func (n Name) String() string {
	if n.URI == "" {
		return n.Local
	}
	return fmt.Sprintf("{%s}%s", n.URI, n.Local)
}

// Node is one arena-allocated entry in a Tree. Parent/sibling/child
// relationships are expressed as indices rather than pointers so a Tree can
// be copied or shared across goroutines without cycles to worry about.
type Node struct {
	Kind Kind

	Name   Name
	Prefix string
	Value  string // text content, attribute value, comment/PI data

	PITarget string // only for PINode

	Parent      ID
	FirstChild  ID
	LastChild   ID
	NextSibling ID
	PrevSibling ID

	// Attrs and NS are only populated on ElementNode; they list attribute
	// and namespace nodes owned by this element, in declaration order.
	Attrs []ID
	NS    []ID

	// Owner points an AttributeNode/NamespaceNode back at its element.
	Owner ID

	DocOrder int64

	TypeAnnotation string // populated only when schema-aware validation ran; usually empty
}

// Tree is the arena owning every Node produced from one parsed document.
type Tree struct {
	Nodes []Node
	Root  ID // the DocumentNode; always 0 once Build succeeds
}

func (t *Tree) node(id ID) *Node {
	return &t.Nodes[id]
}

// Get returns a read-only snapshot of the node at id.
func (t *Tree) Get(id ID) Node {
	return t.Nodes[id]
}

func (t *Tree) alloc(n Node) ID {
	id := ID(len(t.Nodes))
	n.Parent, n.FirstChild, n.LastChild = NoID, NoID, NoID
	n.NextSibling, n.PrevSibling, n.Owner = NoID, NoID, NoID
	t.Nodes = append(t.Nodes, n)
	return id
}

// appendChild allocates n as the last child of parent, wiring up sibling
// links, and returns its new ID. Shared by Builder (SAX-driven construction)
// and TreeBuilder (instruction-driven construction).
func (t *Tree) appendChild(parent ID, n Node) ID {
	n.Parent = parent
	id := t.alloc(n)
	p := t.node(parent)
	if p.FirstChild == NoID {
		p.FirstChild = id
	} else {
		last := t.node(p.LastChild)
		last.NextSibling = id
		t.node(id).PrevSibling = p.LastChild
	}
	p.LastChild = id
	return id
}

// Children iterates the direct children of id in document order.
func (t *Tree) Children(id ID) func(yield func(ID) bool) {
	return func(yield func(ID) bool) {
		for c := t.node(id).FirstChild; c != NoID; c = t.node(c).NextSibling {
			if !yield(c) {
				return
			}
		}
	}
}

// StringValue computes the XPath string-value of a node: the concatenation
// of all descendant text nodes for element/document nodes, the literal
// value otherwise.
func (t *Tree) StringValue(id ID) string {
	n := t.node(id)
	switch n.Kind {
	case AttributeNode, TextNode, CommentNode, PINode:
		return n.Value
	case NamespaceNode:
		return n.Value
	default: // document, element
		var sb strings.Builder
		t.collectText(id, &sb)
		return sb.String()
	}
}

func (t *Tree) collectText(id ID, sb *strings.Builder) {
	n := t.node(id)
	if n.Kind == TextNode {
		sb.WriteString(n.Value)
		return
	}
	for c := n.FirstChild; c != NoID; c = t.node(c).NextSibling {
		t.collectText(c, sb)
	}
}

// Depth returns the number of ancestors of id (the document root is 0).
func (t *Tree) Depth(id ID) int {
	d := 0
	for p := t.node(id).Parent; p != NoID; p = t.node(p).Parent {
		d++
	}
	return d
}

// IsAncestor reports whether a is a (possibly indirect) ancestor of b.
func (t *Tree) IsAncestor(a, b ID) bool {
	for p := t.node(b).Parent; p != NoID; p = t.node(p).Parent {
		if p == a {
			return true
		}
	}
	return false
}

// Compare orders two nodes by document order: -1 if a precedes b, 1 if it
// follows, 0 if they are the same node.
func (t *Tree) Compare(a, b ID) int {
	da, db := t.node(a).DocOrder, t.node(b).DocOrder
	switch {
	case da < db:
		return -1
	case da > db:
		return 1
	default:
		return 0
	}
}
