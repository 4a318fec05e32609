package xmlnode

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// SpacePolicy decides whether whitespace-only text at a given element should
// be stripped, mirroring xsl:strip-space / xsl:preserve-space patterns.
// Nil means "preserve everything" (the default before any stylesheet runs).
type SpacePolicy interface {
	// Strip reports whether whitespace-only text directly inside an
	// element with this expanded name should be dropped.
	Strip(name Name) bool
}

// Builder consumes a token stream (the same alphabet encoding/xml.Decoder
// emits: StartElement, EndElement, CharData, Comment, ProcInst) and
// produces a Tree. It mirrors the decode loop the teacher's MapXML uses in
// xml.go, but keeps the full node identity instead of collapsing into maps.
type Builder struct {
	tree    *Tree
	stack   []ID
	pending strings.Builder // buffered character data since the last structural event

	nsStack []map[string]string // in-scope prefix->uri per open element, including pending decls not yet attached
	space   SpacePolicy
	docOrd  int64
}

// NewBuilder creates a Builder ready to consume decoder tokens.
func NewBuilder(space SpacePolicy) *Builder {
	b := &Builder{tree: &Tree{}, space: space}
	root := b.tree.alloc(Node{Kind: DocumentNode})
	b.tree.node(root).DocOrder = 0
	b.stack = []ID{root}
	b.nsStack = []map[string]string{{"xml": "http://www.w3.org/XML/1998/namespace"}}
	return b
}

// Build drains r as XML and returns the resulting Tree.
func Build(r io.Reader) (*Tree, error) {
	return BuildWithSpacePolicy(r, nil)
}

// BuildWithSpacePolicy is like Build but strips whitespace-only text nodes
// per the supplied policy (ordinarily the stylesheet's strip-space rules).
func BuildWithSpacePolicy(r io.Reader, space SpacePolicy) (*Tree, error) {
	dec := xml.NewDecoder(r)
	dec.Strict = true
	b := NewBuilder(space)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("xmlnode: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			b.flushText()
			b.startElement(t)
		case xml.EndElement:
			b.flushText()
			b.endElement()
		case xml.CharData:
			b.pending.Write(t)
		case xml.Comment:
			b.flushText()
			b.comment(string(t))
		case xml.ProcInst:
			b.flushText()
			b.procInst(t.Target, string(t.Inst))
		}
	}
	if len(b.stack) != 1 {
		return nil, fmt.Errorf("xmlnode: unexpected end of document inside open element")
	}
	return b.tree, nil
}

func (b *Builder) top() ID { return b.stack[len(b.stack)-1] }

func (b *Builder) flushText() {
	if b.pending.Len() == 0 {
		return
	}
	text := b.pending.String()
	b.pending.Reset()

	parent := b.top()
	if isAllWhitespace(text) && b.space != nil {
		if b.space.Strip(b.tree.node(parent).Name) {
			return
		}
	}
	b.appendChild(parent, Node{Kind: TextNode, Value: text})
}

func isAllWhitespace(s string) bool {
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}

func (b *Builder) currentNS() map[string]string {
	return b.nsStack[len(b.nsStack)-1]
}

func (b *Builder) startElement(t xml.StartElement) {
	// derive the in-scope namespace map: copy parent's, then apply this
	// element's own xmlns declarations.
	scope := make(map[string]string, len(b.currentNS())+2)
	for k, v := range b.currentNS() {
		scope[k] = v
	}
	for _, a := range t.Attr {
		if a.Name.Space == "xmlns" {
			scope[a.Name.Local] = a.Value
		} else if a.Name.Local == "xmlns" && a.Name.Space == "" {
			scope[""] = a.Value
		}
	}

	uri := t.Name.Space
	if uri == "" {
		uri = scope[""]
	}
	prefix := resolvePrefix(t.Name, scope)

	el := Node{
		Kind:   ElementNode,
		Name:   Name{URI: uri, Local: t.Name.Local},
		Prefix: prefix,
	}
	id := b.appendChild(b.top(), el)
	b.tree.node(id).DocOrder = b.nextDocOrder()

	for _, a := range t.Attr {
		if a.Name.Space == "xmlns" || (a.Name.Local == "xmlns" && a.Name.Space == "") {
			continue
		}
		auri := a.Name.Space
		attr := Node{
			Kind:   AttributeNode,
			Name:   Name{URI: auri, Local: a.Name.Local},
			Value:  a.Value,
			Owner:  id,
		}
		aid := b.tree.alloc(attr)
		b.tree.node(aid).DocOrder = b.nextDocOrder()
		b.tree.node(id).Attrs = append(b.tree.node(id).Attrs, aid)
	}

	for prefix, uri := range scope {
		nsid := b.tree.alloc(Node{
			Kind:  NamespaceNode,
			Name:  Name{Local: prefix},
			Value: uri,
			Owner: id,
		})
		b.tree.node(id).NS = append(b.tree.node(id).NS, nsid)
	}

	b.nsStack = append(b.nsStack, scope)
	b.stack = append(b.stack, id)
}

func resolvePrefix(name xml.Name, scope map[string]string) string {
	for p, u := range scope {
		if p != "" && u == name.Space {
			return p
		}
	}
	return ""
}

func (b *Builder) endElement() {
	b.stack = b.stack[:len(b.stack)-1]
	b.nsStack = b.nsStack[:len(b.nsStack)-1]
}

func (b *Builder) comment(text string) {
	id := b.appendChild(b.top(), Node{Kind: CommentNode, Value: text})
	b.tree.node(id).DocOrder = b.nextDocOrder()
}

func (b *Builder) procInst(target, data string) {
	id := b.appendChild(b.top(), Node{Kind: PINode, PITarget: target, Value: strings.TrimSpace(data)})
	b.tree.node(id).DocOrder = b.nextDocOrder()
}

func (b *Builder) appendChild(parent ID, n Node) ID {
	return b.tree.appendChild(parent, n)
}

// nextDocOrder hands out this Builder's monotonic counter; each Build call
// starts a fresh Builder, so document order always begins at 1.
func (b *Builder) nextDocOrder() int64 {
	b.docOrd++
	return b.docOrd
}
