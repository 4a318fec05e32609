package xslt

import (
	"fmt"

	"github.com/arturoeanton/go-xslt/xmlnode"
	"github.com/arturoeanton/go-xslt/xpath"
)

// patternStep is one real (non-marker) step of a compiled pattern, plus
// whether it was reached via "//" (DeepBefore) from the previous step.
type patternStep struct {
	Axis       xmlnode.Axis
	Test       xpath.NodeTest
	Predicates []xpath.Expr
	DeepBefore bool
}

// patternAlt is one "|"-separated alternative of a pattern.
type patternAlt struct {
	AbsoluteRoot bool
	Steps        []patternStep
}

// Pattern is a compiled match pattern (spec §4.7): a restricted XPath
// expression, evaluated backward from a candidate node toward the root
// rather than forward from a context node.
type Pattern struct {
	Source string
	Alts   []patternAlt
}

// CompilePattern parses a pattern string using the same XPath parser as
// ordinary expressions (patterns are syntactically a subset), then
// flattens it into the backward-matching representation Matches uses.
func CompilePattern(src string) (*Pattern, error) {
	expr, err := xpath.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("xslt: invalid pattern %q: %w", src, err)
	}
	p := &Pattern{Source: src}
	for _, alt := range splitUnion(expr) {
		pa, err := flattenPattern(alt)
		if err != nil {
			return nil, err
		}
		p.Alts = append(p.Alts, pa)
	}
	return p, nil
}

func splitUnion(e xpath.Expr) []xpath.Expr {
	if b, ok := e.(xpath.BinaryExpr); ok && b.Op == xpath.OpUnion {
		return append(splitUnion(b.Left), splitUnion(b.Right)...)
	}
	return []xpath.Expr{e}
}

func flattenPattern(e xpath.Expr) (patternAlt, error) {
	var steps []xpath.Expr
	absoluteRoot := false

	switch n := e.(type) {
	case xpath.PathExpr:
		absoluteRoot = n.AbsoluteRoot
		steps = n.Steps
	case xpath.AxisStep:
		steps = []xpath.Expr{n}
	case xpath.RootExpr:
		return patternAlt{AbsoluteRoot: true}, nil
	default:
		return patternAlt{}, fmt.Errorf("xslt: unsupported pattern form %T", e)
	}

	var out []patternStep
	deep := false
	for _, s := range steps {
		step, ok := s.(xpath.AxisStep)
		if !ok {
			return patternAlt{}, fmt.Errorf("xslt: pattern step must be an axis step, got %T", s)
		}
		if step.Axis == xmlnode.DescendantOrSelf && step.Test.TestKind == xpath.TestNode && len(step.Predicates) == 0 {
			deep = true
			continue
		}
		out = append(out, patternStep{Axis: step.Axis, Test: step.Test, Predicates: step.Predicates, DeepBefore: deep})
		deep = false
	}
	return patternAlt{AbsoluteRoot: absoluteRoot, Steps: out}, nil
}

// Matches reports whether candidate is selected by the pattern, evaluating
// any predicates against ec (used for position()/last() and variable
// lookups inside the predicate).
func (p *Pattern) Matches(tree *xmlnode.Tree, candidate xmlnode.ID, ec *xpath.Context) bool {
	for _, alt := range p.Alts {
		if matchAlt(tree, candidate, alt.Steps, len(alt.Steps)-1, alt.AbsoluteRoot, ec) {
			return true
		}
	}
	return false
}

func matchAlt(tree *xmlnode.Tree, candidate xmlnode.ID, steps []patternStep, idx int, absoluteRoot bool, ec *xpath.Context) bool {
	if idx < 0 {
		if absoluteRoot {
			return candidate == tree.Root
		}
		return true
	}
	step := steps[idx]
	if candidate == xmlnode.NoID {
		return false
	}
	if !matchesStepTest(tree, step, candidate) {
		return false
	}
	if !predicatesHold(tree, step.Predicates, candidate, ec) {
		return false
	}

	if idx == 0 {
		if !absoluteRoot {
			return true
		}
		if step.DeepBefore {
			return true // descendant-or-self from root reaches every node
		}
		parent := stepParent(tree, step.Axis, candidate)
		return parent == tree.Root
	}

	if step.DeepBefore {
		for a := stepParent(tree, step.Axis, candidate); a != xmlnode.NoID; a = tree.Get(a).Parent {
			if matchAlt(tree, a, steps, idx-1, absoluteRoot, ec) {
				return true
			}
		}
		return false
	}
	parent := stepParent(tree, step.Axis, candidate)
	if parent == xmlnode.NoID {
		return false
	}
	return matchAlt(tree, parent, steps, idx-1, absoluteRoot, ec)
}

func stepParent(tree *xmlnode.Tree, axis xmlnode.Axis, id xmlnode.ID) xmlnode.ID {
	n := tree.Get(id)
	if axis == xmlnode.AttributeAxis || axis == xmlnode.NamespaceAxis {
		return n.Owner
	}
	return n.Parent
}

func matchesStepTest(tree *xmlnode.Tree, step patternStep, id xmlnode.ID) bool {
	node := tree.Get(id)
	switch step.Test.TestKind {
	case xpath.TestNode:
		return true
	case xpath.TestText:
		return node.Kind == xmlnode.TextNode
	case xpath.TestComment:
		return node.Kind == xmlnode.CommentNode
	case xpath.TestPI:
		return node.Kind == xmlnode.PINode && (step.Test.PITarget == "" || node.PITarget == step.Test.PITarget)
	}
	if node.Kind != step.Axis.PrincipalKind() {
		return false
	}
	if step.Test.Local == "*" {
		return true
	}
	return node.Name.Local == step.Test.Local
}

func predicatesHold(tree *xmlnode.Tree, preds []xpath.Expr, id xmlnode.ID, ec *xpath.Context) bool {
	if len(preds) == 0 {
		return true
	}
	c := ec.Child(id, ec.Pos, ec.Size)
	for _, pred := range preds {
		v, err := xpath.Eval(pred, c)
		if err != nil || !v.AsBoolean() {
			return false
		}
	}
	return true
}
