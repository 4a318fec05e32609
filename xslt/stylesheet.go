// Package xslt compiles and executes XSLT stylesheets against an
// xmlnode.Tree, driving the xpath evaluator for pattern matching and
// expression evaluation and the output package for serialization.
package xslt

import (
	"sort"

	"github.com/arturoeanton/go-xslt/xmlnode"
	"github.com/arturoeanton/go-xslt/xpath"
)

const (
	XSLNamespace = "http://www.w3.org/1999/XSL/Transform"
	XSLPrefix    = "xsl"

	DefaultMode = "" // the unnamed mode
)

// Output mirrors an xsl:output declaration (spec §4.9's method-specific
// serialization rules read these fields).
type Output struct {
	Method              string // "xml", "html", "text"
	Version             string
	Encoding            string
	OmitXMLDeclaration  bool
	Indent              bool
	DoctypePublic       string
	DoctypeSystem       string
	CDataSectionElements []xmlnode.Name
	StandaloneYes       bool
	StandaloneSet       bool
}

func DefaultOutput() Output {
	return Output{Method: "xml", Version: "1.0", Encoding: "UTF-8"}
}

// AttributeSet mirrors xsl:attribute-set: a named, reusable collection of
// xsl:attribute instructions applied via use-attribute-sets.
type AttributeSet struct {
	Name  string
	Attrs []AttributeInstr
	Uses  []string // other attribute-set names this one includes
}

// DecimalFormat mirrors an xsl:decimal-format declaration.
type DecimalFormat = xpath.DecimalFormat

// Key mirrors an xsl:key declaration: a (name, match-pattern, use-expr)
// triple. Indices are built lazily the first time key() is called for a
// given (name, document), per spec §4.8's "key" instruction note.
type Key struct {
	Name  string
	Match *Pattern
	Use   xpath.Expr
}

// Stylesheet is the compiled form of one xsl:stylesheet document, ready to
// drive a Transform.
type Stylesheet struct {
	Tree *xmlnode.Tree // the stylesheet's own source tree, kept for xsl:copy-of etc. over literal content

	Modes map[string]*Mode

	NamedTemplates map[string]*Template
	Variables      map[string]*GlobalBinding
	AttributeSets  map[string]*AttributeSet
	Keys           map[string][]*Key
	DecimalFormats map[string]DecimalFormat

	StripSpace    []xmlnode.Name // element name tests from xsl:strip-space
	PreserveSpace []xmlnode.Name

	Output Output

	NS map[string]string // prefix -> URI in scope at the stylesheet element

	NamespaceAliases map[string]string // xsl:namespace-alias: stylesheet-prefix -> result-prefix

	ImportPrecedence int // highest precedence seen while compiling: the root module's 0; each xsl:import level is one lower

	Loader DocumentLoader // reused by document() at runtime; nil if the stylesheet never set one
}

// GlobalBinding is a compiled xsl:variable/xsl:param at stylesheet level.
type GlobalBinding struct {
	Name     string
	Select   xpath.Expr
	Body     []Instr // used when the binding has element content instead of @select
	Required bool    // xsl:param with no default, required from the caller
}

// NewStylesheet returns an empty Stylesheet with its maps initialized.
func NewStylesheet() *Stylesheet {
	return &Stylesheet{
		Modes:          map[string]*Mode{},
		NamedTemplates: map[string]*Template{},
		Variables:      map[string]*GlobalBinding{},
		AttributeSets:  map[string]*AttributeSet{},
		Keys:           map[string][]*Key{},
		DecimalFormats: map[string]DecimalFormat{},
		NS:             map[string]string{},
		Output:         DefaultOutput(),
	}
}

// Mode groups the template rules that apply-templates dispatches against
// for one mode name (spec §4.7).
type Mode struct {
	Name      string
	Templates []*Template
}

func (s *Stylesheet) mode(name string) *Mode {
	m, ok := s.Modes[name]
	if !ok {
		m = &Mode{Name: name}
		s.Modes[name] = m
	}
	return m
}

// Strip reports whether whitespace-only text directly inside an
// element with this name should be dropped, implementing xmlnode.SpacePolicy
// so a Stylesheet can drive tree construction directly (spec §4.1).
func (s *Stylesheet) Strip(name xmlnode.Name) bool {
	best := -1  // -1 = no matching declaration at all (default: preserve)
	bestStrip := false
	for _, n := range s.PreserveSpace {
		if spec := nameTestSpecificity(n, name); spec > best {
			best, bestStrip = spec, false
		}
	}
	for _, n := range s.StripSpace {
		if spec := nameTestSpecificity(n, name); spec > best {
			best, bestStrip = spec, true
		}
	}
	return bestStrip
}

// nameTestSpecificity scores how specifically pattern (from strip-space /
// preserve-space, reusing the Name type as a simple wildcard-capable name
// test: Local == "*" means any) matches name; -1 means no match, higher
// means more specific (a literal QName beats "*").
func nameTestSpecificity(pattern, name xmlnode.Name) int {
	if pattern.Local == "*" && pattern.URI == "" {
		return 0
	}
	if pattern.Local == "*" {
		if pattern.URI == name.URI {
			return 1
		}
		return -1
	}
	if pattern.URI == name.URI && pattern.Local == name.Local {
		return 2
	}
	return -1
}

var _ xmlnode.SpacePolicy = (*Stylesheet)(nil)

// SortedModeNames returns mode names in a deterministic order, used only by
// diagnostics/tests that enumerate modes.
func (s *Stylesheet) SortedModeNames() []string {
	names := make([]string, 0, len(s.Modes))
	for n := range s.Modes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
