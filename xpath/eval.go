package xpath

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"

	"github.com/arturoeanton/go-xslt/xmlnode"
)

// Context carries everything an evaluation needs beyond the expression
// itself: the node the expression is relative to, its position/size within
// the current node-set (for position()/last()), in-scope variables and
// namespace bindings, and the function library (spec §4.4).
type Context struct {
	Tree *xmlnode.Tree
	Node xmlnode.ID

	Pos  int // 1-based position of Node within the current context node-set
	Size int // size of the current context node-set

	Vars Scope
	NS   map[string]string // prefix -> URI, for resolving QNames in expressions

	Funcs FuncLibrary

	// Now, the current time, is read by the XSLT 2.0+ stylesheet driver
	// before evaluation begins so repeated calls to current-date() etc.
	// within one transformation agree; xpath itself only threads it through.
	Now func() Value
}

// Scope is a simple variable environment; XSLT template parameters and
// xsl:variable bindings install entries here per spec §4.8.
type Scope map[string]Value

// Child returns a copy of ctx moved to a different node/position/size,
// leaving Vars/NS/Funcs shared (evaluation never mutates them in place).
func (ctx *Context) Child(node xmlnode.ID, pos, size int) *Context {
	c := *ctx
	c.Node = node
	c.Pos = pos
	c.Size = size
	return &c
}

// Eval evaluates an expression tree against ctx, returning its Value.
func Eval(e Expr, ctx *Context) (Value, error) {
	switch n := e.(type) {
	case Literal:
		return n.V, nil
	case ContextItem:
		return NodeSetValue(ctx.Tree, []xmlnode.ID{ctx.Node}), nil
	case RootExpr:
		return NodeSetValue(ctx.Tree, []xmlnode.ID{ctx.Tree.Root}), nil
	case VarRef:
		v, ok := ctx.Vars[n.Name]
		if !ok {
			return Value{}, fmt.Errorf("xpath: undefined variable $%s", n.Name)
		}
		return v, nil
	case UnaryMinus:
		v, err := Eval(n.X, ctx)
		if err != nil {
			return Value{}, err
		}
		return NumberValue(-v.AsNumber()), nil
	case BinaryExpr:
		return evalBinary(n, ctx)
	case SequenceExpr:
		items := make([]Value, 0, len(n.Items))
		for _, it := range n.Items {
			v, err := Eval(it, ctx)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return SequenceValue(items), nil
	case FuncCall:
		return evalFuncCall(n, ctx)
	case PathExpr:
		return evalPath(n, ctx)
	case AxisStep:
		return evalPath(PathExpr{Steps: []Expr{n}}, ctx)
	case FilterExpr:
		return evalFilter(n, ctx)
	case ForExpr:
		return evalFor(n, ctx)
	case IfExpr:
		cond, err := Eval(n.Cond, ctx)
		if err != nil {
			return Value{}, err
		}
		if cond.AsBoolean() {
			return Eval(n.Then, ctx)
		}
		return Eval(n.Else, ctx)
	case QuantifiedExpr:
		return evalQuantified(n, ctx)
	}
	return Value{}, fmt.Errorf("xpath: unhandled expression type %T", e)
}

func evalBinary(n BinaryExpr, ctx *Context) (Value, error) {
	switch n.Op {
	case OpOr:
		l, err := Eval(n.Left, ctx)
		if err != nil {
			return Value{}, err
		}
		if l.AsBoolean() {
			return BoolValue(true), nil
		}
		r, err := Eval(n.Right, ctx)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(r.AsBoolean()), nil
	case OpAnd:
		l, err := Eval(n.Left, ctx)
		if err != nil {
			return Value{}, err
		}
		if !l.AsBoolean() {
			return BoolValue(false), nil
		}
		r, err := Eval(n.Right, ctx)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(r.AsBoolean()), nil
	case OpUnion, OpIntersect, OpExcept:
		return evalNodeSetOp(n, ctx)
	case OpTo:
		l, err := Eval(n.Left, ctx)
		if err != nil {
			return Value{}, err
		}
		r, err := Eval(n.Right, ctx)
		if err != nil {
			return Value{}, err
		}
		from, to := int64(l.AsNumber()), int64(r.AsNumber())
		var items []Value
		for i := from; i <= to; i++ {
			items = append(items, NumberValue(float64(i)))
		}
		return SequenceValue(items), nil
	}

	l, err := Eval(n.Left, ctx)
	if err != nil {
		return Value{}, err
	}
	r, err := Eval(n.Right, ctx)
	if err != nil {
		return Value{}, err
	}

	switch n.Op {
	case OpAdd:
		return NumberValue(l.AsNumber() + r.AsNumber()), nil
	case OpSub:
		return NumberValue(l.AsNumber() - r.AsNumber()), nil
	case OpMul:
		return NumberValue(l.AsNumber() * r.AsNumber()), nil
	case OpDiv:
		return NumberValue(l.AsNumber() / r.AsNumber()), nil
	case OpMod:
		return NumberValue(math.Mod(l.AsNumber(), r.AsNumber())), nil
	case OpIDiv:
		lv, rv := l.AsNumber(), r.AsNumber()
		if rv == 0 {
			return Value{}, fmt.Errorf("xpath: idiv by zero")
		}
		return NumberValue(math.Trunc(lv / rv)), nil
	case OpIs:
		ln, lok := soleNode(l)
		rn, rok := soleNode(r)
		return BoolValue(lok && rok && ln == rn), nil
	case OpBefore, OpAfter:
		ln, lok := soleNode(l)
		rn, rok := soleNode(r)
		if !lok || !rok {
			return BoolValue(false), nil
		}
		cmp := ctx.Tree.Compare(ln, rn)
		if n.Op == OpBefore {
			return BoolValue(cmp < 0), nil
		}
		return BoolValue(cmp > 0), nil
	}

	return evalComparison(n.Op, l, r)
}

func soleNode(v Value) (xmlnode.ID, bool) {
	if v.Type == TypeNodeSet && len(v.Nodes.IDs) == 1 {
		return v.Nodes.IDs[0], true
	}
	return xmlnode.NoID, false
}

// evalComparison implements general ('=','!=','<','<=','>','>=') and value
// ('eq','ne','lt','le','gt','ge') comparisons per spec §4.4: general
// comparisons over node-sets are existentially quantified over pairwise
// string comparisons, with XPath 1.0 numeric/string coercion on mixed
// operand types; value comparisons atomize each side first.
func evalComparison(op BinaryOp, l, r Value) (Value, error) {
	isValueComp := op == OpEqV || op == OpNeV || op == OpLtV || op == OpLeV || op == OpGtV || op == OpGeV
	if isValueComp {
		return BoolValue(compareAtomic(valueCompareOpToGeneral(op), l, r)), nil
	}

	if l.Type == TypeNodeSet && r.Type == TypeNodeSet {
		for _, lid := range l.Nodes.IDs {
			lv := StringValue(l.Nodes.Tree.StringValue(lid))
			for _, rid := range r.Nodes.IDs {
				rv := StringValue(r.Nodes.Tree.StringValue(rid))
				if compareAtomic(op, lv, rv) {
					return BoolValue(true), nil
				}
			}
		}
		return BoolValue(false), nil
	}
	if l.Type == TypeNodeSet || r.Type == TypeNodeSet {
		ns, other := l, r
		nsIsLeft := true
		if r.Type == TypeNodeSet {
			ns, other = r, l
			nsIsLeft = false
		}
		for _, id := range ns.Nodes.IDs {
			sv := StringValue(ns.Nodes.Tree.StringValue(id))
			var ok bool
			switch {
			case other.Type == TypeNumber:
				ok = compareAtomic(op, NumberValue(sv.AsNumber()), other)
			case other.Type == TypeBoolean:
				ok = compareAtomic(op, BoolValue(sv.AsBoolean()), other)
			default:
				if nsIsLeft {
					ok = compareAtomic(op, sv, other)
				} else {
					ok = compareAtomic(op, other, sv)
				}
			}
			if ok {
				return BoolValue(true), nil
			}
		}
		return BoolValue(false), nil
	}

	switch {
	case l.Type == TypeBoolean || r.Type == TypeBoolean:
		return BoolValue(compareAtomic(op, BoolValue(l.AsBoolean()), BoolValue(r.AsBoolean()))), nil
	case l.Type == TypeNumber || r.Type == TypeNumber:
		return BoolValue(compareAtomic(op, NumberValue(l.AsNumber()), NumberValue(r.AsNumber()))), nil
	default:
		return BoolValue(compareAtomic(op, StringValue(l.AsString()), StringValue(r.AsString()))), nil
	}
}

func valueCompareOpToGeneral(op BinaryOp) BinaryOp {
	switch op {
	case OpEqV:
		return OpEq
	case OpNeV:
		return OpNe
	case OpLtV:
		return OpLt
	case OpLeV:
		return OpLe
	case OpGtV:
		return OpGt
	case OpGeV:
		return OpGe
	}
	return op
}

func compareAtomic(op BinaryOp, l, r Value) bool {
	switch op {
	case OpEq:
		if l.Type == TypeString || r.Type == TypeString {
			return l.AsString() == r.AsString()
		}
		if l.Type == TypeBoolean || r.Type == TypeBoolean {
			return l.AsBoolean() == r.AsBoolean()
		}
		return l.AsNumber() == r.AsNumber()
	case OpNe:
		return !compareAtomic(OpEq, l, r)
	case OpLt:
		return l.AsNumber() < r.AsNumber()
	case OpLe:
		return l.AsNumber() <= r.AsNumber()
	case OpGt:
		return l.AsNumber() > r.AsNumber()
	case OpGe:
		return l.AsNumber() >= r.AsNumber()
	}
	return false
}

func evalNodeSetOp(n BinaryExpr, ctx *Context) (Value, error) {
	l, err := Eval(n.Left, ctx)
	if err != nil {
		return Value{}, err
	}
	r, err := Eval(n.Right, ctx)
	if err != nil {
		return Value{}, err
	}
	ln, err := l.AsNodeSet()
	if err != nil {
		return Value{}, err
	}
	rn, err := r.AsNodeSet()
	if err != nil {
		return Value{}, err
	}
	switch n.Op {
	case OpUnion:
		return NodeSetValue(ln.Tree, unionIDs(ln.Tree, ln.IDs, rn.IDs)), nil
	case OpIntersect:
		return NodeSetValue(ln.Tree, intersectIDs(rn.IDs, ln.IDs)), nil
	case OpExcept:
		return NodeSetValue(ln.Tree, exceptIDs(rn.IDs, ln.IDs)), nil
	}
	return Value{}, fmt.Errorf("xpath: not a node-set operator")
}

// unionIDs merges two ID lists, deduplicates and sorts by document order
// (spec §4.4: "Union ... yields document-ordered deduplication").
func unionIDs(tree *xmlnode.Tree, a, b []xmlnode.ID) []xmlnode.ID {
	merged := make([]xmlnode.ID, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)
	out := lo.Uniq(merged)
	sort.Slice(out, func(i, j int) bool { return tree.Compare(out[i], out[j]) < 0 })
	return out
}

// intersectIDs and exceptIDs preserve the left operand's order, per spec
// §4.4. Both are the filter-preserving-order shape lo.Filter provides
// directly, rather than a hand-rolled range-and-append loop.
func intersectIDs(right, left []xmlnode.ID) []xmlnode.ID {
	in := make(map[xmlnode.ID]bool, len(right))
	for _, id := range right {
		in[id] = true
	}
	return lo.Filter(left, func(id xmlnode.ID, _ int) bool { return in[id] })
}

func sortAsc(tree *xmlnode.Tree, ids []xmlnode.ID) {
	sort.Slice(ids, func(i, j int) bool { return tree.Compare(ids[i], ids[j]) < 0 })
}

func exceptIDs(right, left []xmlnode.ID) []xmlnode.ID {
	ex := make(map[xmlnode.ID]bool, len(right))
	for _, id := range right {
		ex[id] = true
	}
	return lo.Filter(left, func(id xmlnode.ID, _ int) bool { return !ex[id] })
}

func evalFor(n ForExpr, ctx *Context) (Value, error) {
	seq, err := Eval(n.In, ctx)
	if err != nil {
		return Value{}, err
	}
	items := sequenceItems(seq, ctx)
	var out []Value
	for _, it := range items {
		child := *ctx
		vars := make(Scope, len(ctx.Vars)+1)
		for k, v := range ctx.Vars {
			vars[k] = v
		}
		vars[n.Var] = it
		child.Vars = vars
		v, err := Eval(n.Body, &child)
		if err != nil {
			return Value{}, err
		}
		out = append(out, v)
	}
	return SequenceValue(out), nil
}

func evalQuantified(n QuantifiedExpr, ctx *Context) (Value, error) {
	seq, err := Eval(n.In, ctx)
	if err != nil {
		return Value{}, err
	}
	items := sequenceItems(seq, ctx)
	for _, it := range items {
		vars := make(Scope, len(ctx.Vars)+1)
		for k, v := range ctx.Vars {
			vars[k] = v
		}
		vars[n.Var] = it
		child := *ctx
		child.Vars = vars
		v, err := Eval(n.Cond, &child)
		if err != nil {
			return Value{}, err
		}
		if n.Every && !v.AsBoolean() {
			return BoolValue(false), nil
		}
		if !n.Every && v.AsBoolean() {
			return BoolValue(true), nil
		}
	}
	return BoolValue(n.Every), nil
}

// sequenceItems expands a Value into its constituent items: a node-set
// becomes one single-node node-set Value per node, a sequence is returned
// as-is, and an atomic becomes a one-item slice.
func sequenceItems(v Value, ctx *Context) []Value {
	switch v.Type {
	case TypeNodeSet:
		return lo.Map(v.Nodes.IDs, func(id xmlnode.ID, _ int) Value {
			return NodeSetValue(v.Nodes.Tree, []xmlnode.ID{id})
		})
	case TypeSequence:
		return v.Items
	default:
		return []Value{v}
	}
}

func evalFilter(n FilterExpr, ctx *Context) (Value, error) {
	base, err := Eval(n.Base, ctx)
	if err != nil {
		return Value{}, err
	}
	if base.Type != TypeNodeSet {
		// predicates on a non-node-set operate on the singleton sequence it
		// represents: a single item at position 1 of size 1.
		for _, pred := range n.Predicates {
			v, err := Eval(pred, ctx.Child(ctx.Node, 1, 1))
			if err != nil {
				return Value{}, err
			}
			if !predicateTruth(v, 1) {
				return SequenceValue(nil), nil
			}
		}
		return base, nil
	}
	tree := base.Nodes.Tree
	ids := base.Nodes.IDs
	for _, pred := range n.Predicates {
		ids = filterByPredicate(tree, ids, pred, ctx)
	}
	return NodeSetValue(tree, ids), nil
}

// predicateTruth applies the XPath numeric-predicate-means-position rule: a
// bare number in a predicate tests position() = that number, per spec §4.3.
func predicateTruth(v Value, pos int) bool {
	if v.Type == TypeNumber {
		return int(v.Num) == pos && v.Num == math.Trunc(v.Num)
	}
	return v.AsBoolean()
}

func filterByPredicate(tree *xmlnode.Tree, ids []xmlnode.ID, pred Expr, ctx *Context) []xmlnode.ID {
	var out []xmlnode.ID
	size := len(ids)
	for i, id := range ids {
		c := ctx.Child(id, i+1, size)
		v, err := Eval(pred, c)
		if err != nil {
			continue
		}
		if predicateTruth(v, i+1) {
			out = append(out, id)
		}
	}
	return out
}

// evalPath runs a chain of steps starting from ctx.Node (or the document
// root, for an absolute path), threading each step's result node-set as the
// context for the next.
func evalPath(p PathExpr, ctx *Context) (Value, error) {
	start := ctx.Node
	if p.AbsoluteRoot {
		start = ctx.Tree.Root
	}
	current := []xmlnode.ID{start}
	tree := ctx.Tree

	for _, step := range p.Steps {
		axisStep, isAxis := step.(AxisStep)
		var next []xmlnode.ID
		if isAxis {
			seen := map[xmlnode.ID]bool{}
			for _, id := range current {
				matched := matchAxisStep(tree, axisStep, id, ctx)
				for _, m := range matched {
					if !seen[m] {
						seen[m] = true
						next = append(next, m)
					}
				}
			}
			// Regardless of the axis's own direction, the node-set handed to
			// the next step (and the final result) is in document order;
			// position()/last() during predicate evaluation above already
			// used the axis's natural (possibly reverse) order.
			sortAsc(tree, next)
		} else {
			// a non-axis step (FilterExpr, FuncCall, VarRef) evaluated once
			// per current context node, results unioned.
			var collected []xmlnode.ID
			seen := map[xmlnode.ID]bool{}
			for _, id := range current {
				c := ctx.Child(id, 1, len(current))
				v, err := Eval(step, c)
				if err != nil {
					return Value{}, err
				}
				if v.Type != TypeNodeSet {
					return Value{}, fmt.Errorf("xpath: step did not evaluate to a node-set")
				}
				for _, nid := range v.Nodes.IDs {
					if !seen[nid] {
						seen[nid] = true
						collected = append(collected, nid)
					}
				}
			}
			sortAsc(tree, collected)
			next = collected
		}
		current = next
	}
	return NodeSetValue(tree, current), nil
}

func matchAxisStep(tree *xmlnode.Tree, step AxisStep, from xmlnode.ID, ctx *Context) []xmlnode.ID {
	var candidates []xmlnode.ID
	for id := range tree.Iterate(step.Axis, from) {
		if matchesNodeTest(tree, step.Test, step.Axis, id, ctx) {
			candidates = append(candidates, id)
		}
	}
	if len(step.Predicates) == 0 {
		return candidates
	}
	size := len(candidates)
	var out []xmlnode.ID
	for i, id := range candidates {
		// candidates is already in the axis's natural order (tree.Iterate),
		// which for reverse axes walks nearest-to-context first — so
		// position 1 is always the first candidate here, matching spec
		// §4.5's "numbers items starting at 1 from the context node."
		pos := i + 1
		c := ctx.Child(id, pos, size)
		ok := true
		for _, pred := range step.Predicates {
			v, err := Eval(pred, c)
			if err != nil || !predicateTruth(v, pos) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, id)
		}
	}
	return out
}

func matchesNodeTest(tree *xmlnode.Tree, test NodeTest, axis xmlnode.Axis, id xmlnode.ID, ctx *Context) bool {
	node := tree.Get(id)
	switch test.TestKind {
	case TestNode:
		return true
	case TestText:
		return node.Kind == xmlnode.TextNode
	case TestComment:
		return node.Kind == xmlnode.CommentNode
	case TestPI:
		return node.Kind == xmlnode.PINode && (test.PITarget == "" || node.PITarget == test.PITarget)
	}
	// name test: only matches the axis's principal node kind
	if node.Kind != axis.PrincipalKind() {
		return false
	}
	if test.Local == "*" && test.Prefix == "" {
		return true
	}
	wantURI := ctx.NS[test.Prefix]
	if axis == xmlnode.NamespaceAxis {
		return test.Local == "*" || node.Name.Local == test.Local
	}
	if test.Local == "*" {
		return node.Name.URI == wantURI
	}
	if test.Prefix == "" {
		// unprefixed name tests always mean "no namespace", regardless of
		// any default-namespace declaration in scope (XPath 1.0 §2.3).
		return node.Name.URI == "" && node.Name.Local == test.Local
	}
	return node.Name.URI == wantURI && node.Name.Local == test.Local
}
