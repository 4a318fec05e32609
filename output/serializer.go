// Package output serializes the abstract event stream the transformation
// runtime produces (spec §4.9) into XML, HTML, or plain text bytes.
package output

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/atom"

	"github.com/arturoeanton/go-xslt/xmlnode"
)

// Method selects the method-specific serialization rules of spec §4.9.
type Method string

const (
	MethodXML  Method = "xml"
	MethodHTML Method = "html"
	MethodText Method = "text"
)

// Emitter is the abstract output event alphabet of spec §4.9. The runtime
// drives a Serializer (or any other Emitter, e.g. a result-tree-fragment
// builder) exclusively through this interface.
type Emitter interface {
	StartDocument()
	EndDocument()
	StartElement(name xmlnode.Name, prefix string)
	EndElement()
	Attribute(name xmlnode.Name, value string)
	Namespace(prefix, uri string)
	Characters(text string)
	CharactersRaw(text string) // bypasses escaping (disable-output-escaping)
	Comment(text string)
	ProcessingInstruction(target, data string)
	Flush()
}

// ErrorListener receives recoverable serialization errors (duplicate
// attributes, attributes or namespace declarations with no open start tag);
// nil means "ignore". Characters are not checked against the output
// encoding, and invalid runes in text are dropped without a report.
type ErrorListener func(err error)

// Serializer is an Emitter that writes bytes to w, honoring xsl:output
// properties.
type Serializer struct {
	W    io.Writer
	Method Method

	OmitXMLDeclaration bool
	Version            string
	Encoding           string
	DoctypePublic      string
	DoctypeSystem      string
	StandaloneSet      bool
	StandaloneYes      bool
	Indent             bool
	IndentWidth        int
	CDataElements      []xmlnode.Name
	CharacterMap       map[rune]string

	OnError ErrorListener

	pending *pendingTag
	stack   []elemFrame
}

type elemFrame struct {
	name       xmlnode.Name
	hasText    bool
	childCount int
	cdata      bool // this element's text children are wrapped in CDATA
}

type pendingAttr struct {
	name  xmlnode.Name
	value string
}

type pendingNS struct {
	prefix, uri string
}

type pendingTag struct {
	name  xmlnode.Name
	prefix string
	attrs []pendingAttr
	ns    []pendingNS
}

func (s *Serializer) indentWidth() int {
	if s.IndentWidth <= 0 {
		return 2
	}
	return s.IndentWidth
}

func (s *Serializer) reportf(format string, args ...any) {
	if s.OnError != nil {
		s.OnError(fmt.Errorf(format, args...))
	}
}

// StartDocument writes the XML declaration / nothing, depending on method.
func (s *Serializer) StartDocument() {
	if s.Method == MethodXML && !s.OmitXMLDeclaration {
		version := s.Version
		if version == "" {
			version = "1.0"
		}
		fmt.Fprintf(s.W, `<?xml version="%s"`, version)
		if s.Encoding != "" {
			fmt.Fprintf(s.W, ` encoding="%s"`, s.Encoding)
		}
		if s.StandaloneSet {
			if s.StandaloneYes {
				io.WriteString(s.W, ` standalone="yes"`)
			} else {
				io.WriteString(s.W, ` standalone="no"`)
			}
		}
		io.WriteString(s.W, "?>\n")
	}
	if s.DoctypePublic != "" || s.DoctypeSystem != "" {
		s.writeDoctype()
	}
}

func (s *Serializer) writeDoctype() {
	root := "html"
	switch {
	case s.DoctypePublic != "" && s.DoctypeSystem != "":
		fmt.Fprintf(s.W, `<!DOCTYPE %s PUBLIC "%s" "%s">`+"\n", root, s.DoctypePublic, s.DoctypeSystem)
	case s.DoctypeSystem != "":
		fmt.Fprintf(s.W, `<!DOCTYPE %s SYSTEM "%s">`+"\n", root, s.DoctypeSystem)
	case s.DoctypePublic != "":
		fmt.Fprintf(s.W, `<!DOCTYPE %s PUBLIC "%s">`+"\n", root, s.DoctypePublic)
	}
}

func (s *Serializer) EndDocument() {
	s.Flush()
}

// Flush closes any pending start tag (spec §4.9: "any other event flushes
// it"); StartElement/EndElement/Characters/etc all call it implicitly.
func (s *Serializer) Flush() {
	if s.pending == nil {
		return
	}
	p := s.pending
	s.pending = nil
	s.writeOpenTag(p, false)
	s.stack = append(s.stack, elemFrame{name: p.name, cdata: isCDataElement(s.CDataElements, p.name)})
}

// writeOpenTag writes <name attrs...> (or <name attrs.../> when selfClose,
// used by EndElement for an element with no children) and, for html void
// elements, never a closing slash regardless of selfClose. The text method
// writes no tags.
func (s *Serializer) writeOpenTag(p *pendingTag, selfClose bool) {
	if s.Method == MethodText {
		return
	}
	s.writeIndent(len(s.stack))
	io.WriteString(s.W, "<")
	io.WriteString(s.W, qualified(p.prefix, p.name.Local))
	for _, ns := range p.ns {
		if ns.prefix == "" {
			fmt.Fprintf(s.W, ` xmlns="%s"`, escapeAttr(ns.uri))
		} else {
			fmt.Fprintf(s.W, ` xmlns:%s="%s"`, ns.prefix, escapeAttr(ns.uri))
		}
	}
	for _, a := range lastWinsAttrs(p.attrs) {
		if s.Method == MethodHTML && isBooleanAttr(a.name.Local) {
			if a.value == "" || strings.EqualFold(a.value, "false") {
				continue
			}
			fmt.Fprintf(s.W, " %s", a.name.Local)
			continue
		}
		fmt.Fprintf(s.W, ` %s="%s"`, qnameAttr(a.name), escapeAttr(a.value))
	}
	if s.Method == MethodHTML && isVoidElement(p.name.Local) {
		io.WriteString(s.W, ">")
		return
	}
	if selfClose && s.Method == MethodXML {
		io.WriteString(s.W, "/>")
		return
	}
	io.WriteString(s.W, ">")
}

// lastWinsAttrs keeps only the last occurrence of each expanded name,
// preserving the order names first appeared in (spec §4.9: "duplicate
// attribute... last-wins under recovery").
func lastWinsAttrs(attrs []pendingAttr) []pendingAttr {
	lastIdx := map[xmlnode.Name]int{}
	for i, a := range attrs {
		lastIdx[a.name] = i
	}
	var out []pendingAttr
	emitted := map[xmlnode.Name]bool{}
	for _, a := range attrs {
		if emitted[a.name] {
			continue
		}
		emitted[a.name] = true
		out = append(out, attrs[lastIdx[a.name]])
	}
	return out
}

func qualified(prefix, local string) string {
	if prefix == "" {
		return local
	}
	return prefix + ":" + local
}

func qnameAttr(n xmlnode.Name) string {
	return n.Local
}

// StartElement opens name, buffering it as the pending tag until the next
// non-attribute/namespace event (spec §4.9's deferred start tag).
func (s *Serializer) StartElement(name xmlnode.Name, prefix string) {
	s.Flush()
	if len(s.stack) > 0 {
		s.stack[len(s.stack)-1].childCount++
	}
	s.pending = &pendingTag{name: name, prefix: prefix}
}

// Attribute attaches an attribute to the pending start tag; it is an error
// (recoverable: dropped) if no start tag is open.
func (s *Serializer) Attribute(name xmlnode.Name, value string) {
	if s.pending == nil {
		s.reportf("output: xsl:attribute with no open start tag")
		return
	}
	for _, a := range s.pending.attrs {
		if a.name == name {
			s.reportf("output: duplicate attribute %s (last wins)", name)
			break
		}
	}
	s.pending.attrs = append(s.pending.attrs, pendingAttr{name: name, value: value})
}

func (s *Serializer) Namespace(prefix, uri string) {
	if s.pending == nil {
		s.reportf("output: namespace declaration with no open start tag")
		return
	}
	s.pending.ns = append(s.pending.ns, pendingNS{prefix: prefix, uri: uri})
}

func (s *Serializer) EndElement() {
	if s.pending != nil {
		p := s.pending
		s.pending = nil
		s.writeOpenTag(p, true)
		return
	}
	s.writeCloseTag()
}

func (s *Serializer) writeCloseTag() {
	if len(s.stack) == 0 {
		return
	}
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	if s.Method == MethodText {
		return
	}
	if top.childCount > 0 && !top.hasText {
		s.writeIndent(len(s.stack))
	}
	fmt.Fprintf(s.W, "</%s>", top.name.Local)
}

func (s *Serializer) writeIndent(depth int) {
	if !s.Indent || s.Method == MethodText {
		return
	}
	if len(s.stack) > 0 && s.stack[len(s.stack)-1].hasText {
		return
	}
	io.WriteString(s.W, "\n")
	io.WriteString(s.W, strings.Repeat(" ", depth*s.indentWidth()))
}

func (s *Serializer) Characters(text string) {
	s.Flush()
	if len(s.stack) > 0 {
		s.stack[len(s.stack)-1].hasText = true
	}
	if s.Method == MethodText {
		io.WriteString(s.W, text)
		return
	}
	if len(s.stack) > 0 && s.stack[len(s.stack)-1].cdata {
		s.writeCData(text)
		return
	}
	io.WriteString(s.W, s.mapAndEscapeText(text))
}

func (s *Serializer) CharactersRaw(text string) {
	s.Flush()
	if len(s.stack) > 0 {
		s.stack[len(s.stack)-1].hasText = true
	}
	io.WriteString(s.W, s.applyCharMap(text))
}

func (s *Serializer) writeCData(text string) {
	for _, part := range strings.Split(text, "]]>") {
		fmt.Fprintf(s.W, "<![CDATA[%s]]>", part)
	}
}

func (s *Serializer) Comment(text string) {
	s.Flush()
	fmt.Fprintf(s.W, "<!--%s-->", text)
}

func (s *Serializer) ProcessingInstruction(target, data string) {
	s.Flush()
	if data == "" {
		fmt.Fprintf(s.W, "<?%s?>", target)
		return
	}
	fmt.Fprintf(s.W, "<?%s %s?>", target, data)
}

// mapAndEscapeText applies the character map (after standard escaping, per
// spec §4.9) then XML/HTML-escapes '<', '>', '&'.
func (s *Serializer) mapAndEscapeText(text string) string {
	escaped := escapeText(text, s.Method)
	return s.applyCharMap(escaped)
}

func (s *Serializer) applyCharMap(text string) string {
	if len(s.CharacterMap) == 0 {
		return text
	}
	var sb strings.Builder
	for _, r := range text {
		if rep, ok := s.CharacterMap[r]; ok {
			sb.WriteString(rep)
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func escapeText(s string, method Method) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '<':
			sb.WriteString("&lt;")
		case '>':
			sb.WriteString("&gt;")
		case '&':
			sb.WriteString("&amp;")
		default:
			if !utf8.ValidRune(r) {
				continue
			}
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func escapeAttr(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '<':
			sb.WriteString("&lt;")
		case '&':
			sb.WriteString("&amp;")
		case '"':
			sb.WriteString("&quot;")
		case '\n':
			sb.WriteString("&#10;")
		case '\t':
			sb.WriteString("&#9;")
		case '\r':
			sb.WriteString("&#13;")
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func isCDataElement(list []xmlnode.Name, name xmlnode.Name) bool {
	for _, n := range list {
		if n.Local == "*" && n.URI == name.URI {
			return true
		}
		if n == name {
			return true
		}
	}
	return false
}

// voidAtoms are the HTML5 elements with no end tag, looked up via
// golang.org/x/net/html/atom rather than a hand-written string table.
var voidAtoms = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true,
	atom.Embed: true, atom.Hr: true, atom.Img: true, atom.Input: true,
	atom.Link: true, atom.Meta: true, atom.Param: true, atom.Source: true,
	atom.Track: true, atom.Wbr: true,
}

func isVoidElement(local string) bool {
	return voidAtoms[atom.Lookup([]byte(strings.ToLower(local)))]
}

var booleanAttrs = map[string]bool{
	"checked": true, "selected": true, "disabled": true, "readonly": true,
	"multiple": true, "ismap": true, "defer": true, "async": true,
	"autofocus": true, "autoplay": true, "controls": true, "default": true,
	"hidden": true, "loop": true, "open": true, "required": true,
	"reversed": true, "scoped": true, "novalidate": true, "nowrap": true,
	"nohref": true, "noshade": true, "noresize": true, "compact": true,
	"declare": true,
}

func isBooleanAttr(local string) bool {
	return booleanAttrs[strings.ToLower(local)]
}
