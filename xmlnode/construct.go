package xmlnode

import "fmt"

// TreeBuilder constructs a Tree from an explicit call sequence rather than
// from encoding/xml tokens, driven by the xslt runtime when it needs a
// concrete node tree back from instruction output: xsl:variable/xsl:param
// result-tree fragments, xsl:copy, and (for callers that want a Tree rather
// than serialized bytes) the transformation's own result document. Its
// method set deliberately matches output.Emitter's so either can be passed
// wherever an abstract output sink is expected, without this package
// importing output (it cannot: output imports xmlnode).
type TreeBuilder struct {
	tree   *Tree
	stack  []ID
	closed map[ID]bool // true once an element has received non-attribute content

	OnError func(error)

	docOrd int64
}

// NewTreeBuilder returns a TreeBuilder with a fresh DocumentNode root.
func NewTreeBuilder() *TreeBuilder {
	b := &TreeBuilder{tree: &Tree{}, closed: map[ID]bool{}}
	root := b.tree.alloc(Node{Kind: DocumentNode})
	b.stack = []ID{root}
	return b
}

// Tree returns the built tree; valid once EndDocument has been called (or
// immediately, for partial/streaming inspection).
func (b *TreeBuilder) Tree() *Tree { return b.tree }

func (b *TreeBuilder) top() ID { return b.stack[len(b.stack)-1] }

func (b *TreeBuilder) nextDocOrder() int64 {
	b.docOrd++
	return b.docOrd
}

func (b *TreeBuilder) reportf(format string, args ...any) {
	if b.OnError != nil {
		b.OnError(fmt.Errorf(format, args...))
	}
}

func (b *TreeBuilder) markNonAttrContent() {
	b.closed[b.top()] = true
}

func (b *TreeBuilder) StartDocument() {}
func (b *TreeBuilder) EndDocument()   {}
func (b *TreeBuilder) Flush()         {}

func (b *TreeBuilder) StartElement(name Name, prefix string) {
	b.markNonAttrContent()
	id := b.tree.appendChild(b.top(), Node{Kind: ElementNode, Name: name, Prefix: prefix})
	b.tree.node(id).DocOrder = b.nextDocOrder()
	b.stack = append(b.stack, id)
}

func (b *TreeBuilder) EndElement() {
	if len(b.stack) <= 1 {
		b.reportf("xmlnode: unbalanced EndElement")
		return
	}
	b.stack = b.stack[:len(b.stack)-1]
}

// Attribute attaches an attribute to the innermost open element, unless it
// has already received non-attribute content, in which case the attribute
// is dropped as a recoverable error (spec decision: no retroactive
// injection into an already-serialized start tag).
func (b *TreeBuilder) Attribute(name Name, value string) {
	el := b.top()
	if b.tree.node(el).Kind != ElementNode {
		b.reportf("xmlnode: xsl:attribute outside any open element")
		return
	}
	if b.closed[el] {
		b.reportf("xmlnode: xsl:attribute %s after non-attribute content; dropped", name)
		return
	}
	for _, aid := range b.tree.node(el).Attrs {
		if b.tree.node(aid).Name == name {
			b.reportf("xmlnode: duplicate attribute %s; last wins", name)
			b.tree.node(aid).Value = value
			return
		}
	}
	aid := b.tree.alloc(Node{Kind: AttributeNode, Name: name, Value: value, Owner: el})
	b.tree.node(aid).DocOrder = b.nextDocOrder()
	b.tree.node(el).Attrs = append(b.tree.node(el).Attrs, aid)
}

func (b *TreeBuilder) Namespace(prefix, uri string) {
	el := b.top()
	if b.tree.node(el).Kind != ElementNode {
		b.reportf("xmlnode: namespace declaration outside any open element")
		return
	}
	nsid := b.tree.alloc(Node{Kind: NamespaceNode, Name: Name{Local: prefix}, Value: uri, Owner: el})
	b.tree.node(el).NS = append(b.tree.node(el).NS, nsid)
}

func (b *TreeBuilder) Characters(text string)    { b.text(text) }
func (b *TreeBuilder) CharactersRaw(text string) { b.text(text) }

func (b *TreeBuilder) text(text string) {
	b.markNonAttrContent()
	id := b.tree.appendChild(b.top(), Node{Kind: TextNode, Value: text})
	b.tree.node(id).DocOrder = b.nextDocOrder()
}

func (b *TreeBuilder) Comment(text string) {
	b.markNonAttrContent()
	id := b.tree.appendChild(b.top(), Node{Kind: CommentNode, Value: text})
	b.tree.node(id).DocOrder = b.nextDocOrder()
}

func (b *TreeBuilder) ProcessingInstruction(target, data string) {
	b.markNonAttrContent()
	id := b.tree.appendChild(b.top(), Node{Kind: PINode, PITarget: target, Value: data})
	b.tree.node(id).DocOrder = b.nextDocOrder()
}
