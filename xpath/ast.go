package xpath

import "github.com/arturoeanton/go-xslt/xmlnode"

// Expr is any parsed XPath expression node. Evaluation is done by the type
// switch in eval.go's Eval function rather than a visitor method on each
// node, matching the teacher's preference for a central dispatch function.
type Expr interface{ exprNode() }

// NodeTest restricts which nodes an axis step selects.
type NodeTest struct {
	// Kind selects by Kind() == TestKind, e.g. node(), text(), comment().
	// TestKind == TestAny means "not a kind test" (a name test applies
	// instead).
	TestKind TestKind
	PITarget string // only meaningful when TestKind == TestPI and non-empty

	// Name test: Prefix/Local, with either half possibly "*".
	Prefix string
	Local  string
}

type TestKind uint8

const (
	TestAny TestKind = iota // name test, not a kind test
	TestNode
	TestText
	TestComment
	TestPI
)

// AxisStep is one step of a path expression: axis::nodetest[predicates].
type AxisStep struct {
	Axis       xmlnode.Axis
	Test       NodeTest
	Predicates []Expr
}

func (AxisStep) exprNode() {}

// PathExpr chains steps with "/" (context-relative) or is rooted with a
// leading "/" (AbsoluteRoot true).
type PathExpr struct {
	AbsoluteRoot bool
	// Steps are either AxisStep or an arbitrary Expr used as a FilterExpr
	// step (e.g. a function call or variable reference that yields a
	// node-set to continue stepping from).
	Steps []Expr
}

func (PathExpr) exprNode() {}

// FilterExpr wraps a primary expression with zero or more predicates, used
// for forms like $var[1] or func()[@x].
type FilterExpr struct {
	Base       Expr
	Predicates []Expr
}

func (FilterExpr) exprNode() {}

type BinaryOp string

const (
	OpOr    BinaryOp = "or"
	OpAnd   BinaryOp = "and"
	OpEq    BinaryOp = "="
	OpNe    BinaryOp = "!="
	OpLt    BinaryOp = "<"
	OpLe    BinaryOp = "<="
	OpGt    BinaryOp = ">"
	OpGe    BinaryOp = ">="
	OpEqV   BinaryOp = "eq"
	OpNeV   BinaryOp = "ne"
	OpLtV   BinaryOp = "lt"
	OpLeV   BinaryOp = "le"
	OpGtV   BinaryOp = "gt"
	OpGeV   BinaryOp = "ge"
	OpIs    BinaryOp = "is"
	OpBefore BinaryOp = "<<"
	OpAfter  BinaryOp = ">>"
	OpAdd   BinaryOp = "+"
	OpSub   BinaryOp = "-"
	OpMul   BinaryOp = "*"
	OpDiv   BinaryOp = "div"
	OpMod   BinaryOp = "mod"
	OpIDiv  BinaryOp = "idiv"
	OpUnion BinaryOp = "|"
	OpIntersect BinaryOp = "intersect"
	OpExcept    BinaryOp = "except"
	OpTo        BinaryOp = "to"
)

type BinaryExpr struct {
	Op          BinaryOp
	Left, Right Expr
}

func (BinaryExpr) exprNode() {}

type UnaryMinus struct{ X Expr }

func (UnaryMinus) exprNode() {}

type Literal struct{ V Value }

func (Literal) exprNode() {}

type VarRef struct{ Name string }

func (VarRef) exprNode() {}

type FuncCall struct {
	Prefix string
	Name   string
	Args   []Expr
}

func (FuncCall) exprNode() {}

// ContextItem is the "." primary expression.
type ContextItem struct{}

func (ContextItem) exprNode() {}

// RootExpr is the bare "/" primary expression: the owning document node.
type RootExpr struct{}

func (RootExpr) exprNode() {}

// ForExpr implements "for $v in seq return body" (XPath 2.0+).
type ForExpr struct {
	Var  string
	In   Expr
	Body Expr
}

func (ForExpr) exprNode() {}

// IfExpr implements "if (cond) then t else e".
type IfExpr struct {
	Cond, Then, Else Expr
}

func (IfExpr) exprNode() {}

// QuantifiedExpr implements "some/every $v in seq satisfies cond".
type QuantifiedExpr struct {
	Every bool
	Var   string
	In    Expr
	Cond  Expr
}

func (QuantifiedExpr) exprNode() {}

// SequenceExpr builds a literal sequence: "(e1, e2, ...)".
type SequenceExpr struct{ Items []Expr }

func (SequenceExpr) exprNode() {}
