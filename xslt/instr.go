package xslt

import (
	"github.com/arturoeanton/go-xslt/xmlnode"
	"github.com/arturoeanton/go-xslt/xpath"
)

// Instr is one compiled instruction in a template (or attribute-set, or
// variable) body. The runtime (runtime.go) walks a []Instr tree, emitting
// output events as it goes (spec §4.8).
type Instr interface{ instrNode() }

// AVT is an attribute-value template: literal text interleaved with "{expr}"
// XPath expressions, evaluated and concatenated at instantiation time.
type AVT struct {
	Parts []AVTPart
}

// AVTPart is either literal text (Expr == nil) or a compiled "{...}" part.
type AVTPart struct {
	Literal string
	Expr    xpath.Expr
}

// LiteralElement reproduces a literal result element from the stylesheet:
// its own namespace-qualified name, a fixed set of literal/AVT attributes
// (plus use-attribute-sets), and a nested body.
type LiteralElement struct {
	Name       xmlnode.Name
	Prefix     string
	Attrs      []LiteralAttr
	UseSets    []string
	NSBindings map[string]string // prefix -> URI emitted on this element
	Body       []Instr
}

func (LiteralElement) instrNode() {}

type LiteralAttr struct {
	Name  xmlnode.Name
	Value AVT
}

// LiteralText reproduces a text node verbatim from the stylesheet source
// (spec §4.8: text outside any xsl: instruction is copied literally, with
// disable-output-escaping only settable via xsl:text).
type LiteralText struct {
	Value                  string
	DisableOutputEscaping  bool
}

func (LiteralText) instrNode() {}

// ApplyTemplates implements xsl:apply-templates.
type ApplyTemplates struct {
	Select xpath.Expr // nil means "child::node()"
	Mode   string
	Sort   []SortKey
	Params []WithParam
}

func (ApplyTemplates) instrNode() {}

// CallTemplate implements xsl:call-template.
type CallTemplate struct {
	Name   string
	Params []WithParam
}

func (CallTemplate) instrNode() {}

// WithParam is an xsl:with-param (and reused for xsl:param's own
// select/body since the shapes are identical).
type WithParam struct {
	Name   string
	Select xpath.Expr
	Body   []Instr
}

// SortKey is an xsl:sort child of apply-templates/for-each.
type SortKey struct {
	Select     xpath.Expr
	Lang       AVT
	DataType   string // "text" or "number"
	Order      string // "ascending" or "descending"
	CaseOrder  string // "upper-first", "lower-first", or ""
}

// ForEach implements xsl:for-each.
type ForEach struct {
	Select xpath.Expr
	Sort   []SortKey
	Body   []Instr
}

func (ForEach) instrNode() {}

// VariableInstr implements xsl:variable/xsl:param local bindings (spec
// §4.8's variable-scoping rules: installed into the current lexical frame).
// A second binding of a name already bound in the same frame is reported
// through Transform.OnError when it runs and replaces the first; the
// compiler does not check for it.
type VariableInstr struct {
	Name     string
	Select   xpath.Expr
	Body     []Instr // used when there is no @select; captured as a result-tree fragment
	IsParam  bool
	Required bool // xsl:param with no default
}

func (VariableInstr) instrNode() {}

// IfInstr implements xsl:if.
type IfInstr struct {
	Test xpath.Expr
	Body []Instr
}

func (IfInstr) instrNode() {}

// ChooseInstr implements xsl:choose/xsl:when/xsl:otherwise.
type ChooseInstr struct {
	Whens     []WhenClause
	Otherwise []Instr
}

func (ChooseInstr) instrNode() {}

type WhenClause struct {
	Test xpath.Expr
	Body []Instr
}

// CopyInstr implements xsl:copy: shallow-copies the context node (and, for
// elements, its in-scope namespaces and use-attribute-sets) then runs Body.
type CopyInstr struct {
	UseSets []string
	Body    []Instr
}

func (CopyInstr) instrNode() {}

// CopyOfInstr implements xsl:copy-of: deep-copies Select's value without
// re-running template rules.
type CopyOfInstr struct{ Select xpath.Expr }

func (CopyOfInstr) instrNode() {}

// ElementInstr implements xsl:element: a computed-name result element.
type ElementInstr struct {
	Name      AVT
	Namespace AVT
	UseSets   []string
	Body      []Instr
}

func (ElementInstr) instrNode() {}

// AttributeInstr implements xsl:attribute: a computed-name attribute. Also
// reused verbatim as AttributeSet.Attrs's element type.
type AttributeInstr struct {
	Name      AVT
	Namespace AVT
	Body      []Instr // value from nested content; a select attribute is not read
}

func (AttributeInstr) instrNode() {}

// TextInstr implements xsl:text.
type TextInstr struct {
	Value                 string
	DisableOutputEscaping bool
}

func (TextInstr) instrNode() {}

// ValueOfInstr implements xsl:value-of.
type ValueOfInstr struct {
	Select                xpath.Expr
	DisableOutputEscaping bool
}

func (ValueOfInstr) instrNode() {}

// NumberInstr implements xsl:number (spec §4.8).
type NumberInstr struct {
	Value     xpath.Expr // if set, formats this value directly (no counting)
	Level     string     // "single", "multiple", "any"
	Count     *Pattern
	From      *Pattern
	Format    AVT
	Lang      AVT
	GroupingSeparator AVT
	GroupingSize      AVT
}

func (NumberInstr) instrNode() {}

// MessageInstr implements xsl:message.
type MessageInstr struct {
	Terminate bool
	Body      []Instr
}

func (MessageInstr) instrNode() {}

// CommentInstr implements xsl:comment.
type CommentInstr struct{ Body []Instr }

func (CommentInstr) instrNode() {}

// PIInstr implements xsl:processing-instruction.
type PIInstr struct {
	Name AVT
	Body []Instr
}

func (PIInstr) instrNode() {}

// ApplyImports implements xsl:apply-imports: re-dispatches the current node
// against templates of strictly lower import precedence than the template
// currently executing.
type ApplyImports struct{ Params []WithParam }

func (ApplyImports) instrNode() {}
