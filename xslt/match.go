package xslt

import (
	"math"
	"sort"

	"github.com/arturoeanton/go-xslt/xmlnode"
	"github.com/arturoeanton/go-xslt/xpath"
)

// RecoveryMode controls what happens when two or more templates tie on
// priority for the same node and mode (spec §4.7: "RECOVER/strict-mode
// error").
type RecoveryMode int

const (
	RecoverSilently RecoveryMode = iota // pick the last in declaration order, as the spec's default recovery action
	RecoverStrict                       // return an error instead
)

// MatchError reports an ambiguous-template-match condition under RecoverStrict.
type MatchError struct {
	Node xmlnode.ID
	Mode string
}

func (e *MatchError) Error() string {
	return "xslt: ambiguous template match (strict recovery mode)"
}

// FindTemplate implements spec §4.7's matching algorithm: gather every
// template in the mode whose pattern matches node, partition by import
// precedence (only the highest band participates), resolve by priority,
// then by declaration order, and fall back to a built-in rule when nothing
// matches.
func FindTemplate(s *Stylesheet, tree *xmlnode.Tree, node xmlnode.ID, mode string, ec *xpath.Context, recovery RecoveryMode) (*Template, error) {
	return findTemplate(s, tree, node, mode, ec, recovery, math.MaxInt)
}

// FindTemplateImports is FindTemplate restricted to templates of strictly
// lower import precedence than belowPrecedence, implementing xsl:apply-imports
// (spec §4.8): it re-dispatches the current node against the next
// less-specific module instead of the one that declared the rule currently
// executing.
func FindTemplateImports(s *Stylesheet, tree *xmlnode.Tree, node xmlnode.ID, mode string, ec *xpath.Context, belowPrecedence int, recovery RecoveryMode) (*Template, error) {
	return findTemplate(s, tree, node, mode, ec, recovery, belowPrecedence)
}

func findTemplate(s *Stylesheet, tree *xmlnode.Tree, node xmlnode.ID, mode string, ec *xpath.Context, recovery RecoveryMode, belowPrecedence int) (*Template, error) {
	m, ok := s.Modes[mode]
	if !ok || len(m.Templates) == 0 {
		return builtInTemplate(tree, node), nil
	}

	var candidates []*Template
	for _, t := range m.Templates {
		if t.Match == nil {
			continue
		}
		if t.ImportPrecedence >= belowPrecedence {
			continue
		}
		if t.Match.Matches(tree, node, ec) {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return builtInTemplate(tree, node), nil
	}

	bestPrecedence := candidates[0].ImportPrecedence
	for _, t := range candidates[1:] {
		if t.ImportPrecedence > bestPrecedence {
			bestPrecedence = t.ImportPrecedence
		}
	}
	var band []*Template
	for _, t := range candidates {
		if t.ImportPrecedence == bestPrecedence {
			band = append(band, t)
		}
	}

	sort.SliceStable(band, func(i, j int) bool {
		return band[i].EffectivePriority() < band[j].EffectivePriority()
	})
	top := band[len(band)-1].EffectivePriority()
	var tied []*Template
	for _, t := range band {
		if t.EffectivePriority() == top {
			tied = append(tied, t)
		}
	}
	if len(tied) == 1 {
		return tied[0], nil
	}
	if recovery == RecoverStrict {
		return nil, &MatchError{Node: node, Mode: mode}
	}
	sort.SliceStable(tied, func(i, j int) bool { return tied[i].DeclOrder < tied[j].DeclOrder })
	return tied[len(tied)-1], nil
}

// builtInTemplate implements the built-in template rules (XSLT 1.0 §5.8):
// element/document nodes recurse via apply-templates on children, text and
// attribute nodes copy their string-value, comments/PIs/namespaces produce
// nothing.
func builtInTemplate(tree *xmlnode.Tree, node xmlnode.ID) *Template {
	n := tree.Get(node)
	switch n.Kind {
	case xmlnode.DocumentNode, xmlnode.ElementNode:
		return &Template{Body: []Instr{ApplyTemplates{}}}
	case xmlnode.TextNode, xmlnode.AttributeNode:
		return &Template{Body: []Instr{ValueOfInstr{Select: selfExpr}}}
	default:
		return &Template{Body: nil}
	}
}

var selfExpr xpath.Expr = xpath.AxisStep{Axis: xmlnode.Self, Test: xpath.NodeTest{TestKind: xpath.TestNode}}
