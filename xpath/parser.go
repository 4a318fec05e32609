package xpath

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arturoeanton/go-xslt/xmlnode"
)

// Parser is a recursive-descent parser over the grammar in spec §4.3,
// built on a one-token lookahead buffer fed by Lexer.
type Parser struct {
	lex  *Lexer
	tok  Token
	err  error
}

// Parse compiles src into an Expr tree, the single entry point used by both
// the CLI's one-shot query mode and the stylesheet compiler's attribute-value
// and expression compilation.
func Parse(src string) (Expr, error) {
	p := &Parser{lex: NewLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != TokEOF {
		return nil, fmt.Errorf("xpath: unexpected trailing token %q", p.tok.Text)
	}
	return e, nil
}

func (p *Parser) advance() error {
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *Parser) isOp(s string) bool {
	return p.tok.Kind == TokOperator && p.tok.Text == s
}

func (p *Parser) isKeyword(s string) bool {
	return p.tok.Kind == TokKeyword && p.tok.Text == s
}

// parseExpr → ExprSingle (',' ExprSingle)*  (builds a literal sequence when
// more than one item is present).
func (p *Parser) parseExpr() (Expr, error) {
	first, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	if !p.isOp(",") {
		return first, nil
	}
	items := []Expr{first}
	for p.isOp(",") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.parseExprSingle()
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return SequenceExpr{Items: items}, nil
}

// parseExprSingle dispatches to the 2.0+ control forms, falling through to
// the operator-precedence chain for ordinary expressions.
func (p *Parser) parseExprSingle() (Expr, error) {
	switch {
	case p.isKeyword("for"):
		return p.parseFor()
	case p.isKeyword("if"):
		return p.parseIf()
	case p.isKeyword("some"), p.isKeyword("every"):
		return p.parseQuantified()
	default:
		return p.parseOrExpr()
	}
}

func (p *Parser) parseFor() (Expr, error) {
	if err := p.advance(); err != nil { // 'for'
		return nil, err
	}
	if p.tok.Kind != TokVariable {
		return nil, fmt.Errorf("xpath: expected variable after 'for'")
	}
	v := p.tok.Text
	if err := p.advance(); err != nil {
		return nil, err
	}
	if !p.isKeyword("in") {
		return nil, fmt.Errorf("xpath: expected 'in' in for-expression")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	in, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("return") {
		return nil, fmt.Errorf("xpath: expected 'return' in for-expression")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	return ForExpr{Var: v, In: in, Body: body}, nil
}

func (p *Parser) parseIf() (Expr, error) {
	if err := p.advance(); err != nil { // 'if'
		return nil, err
	}
	if p.tok.Kind != TokLParen {
		return nil, fmt.Errorf("xpath: expected '(' after 'if'")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != TokRParen {
		return nil, fmt.Errorf("xpath: expected ')' closing if-condition")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if !p.isKeyword("then") {
		return nil, fmt.Errorf("xpath: expected 'then'")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	thenE, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("else") {
		return nil, fmt.Errorf("xpath: expected 'else'")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	elseE, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	return IfExpr{Cond: cond, Then: thenE, Else: elseE}, nil
}

func (p *Parser) parseQuantified() (Expr, error) {
	every := p.tok.Text == "every"
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.Kind != TokVariable {
		return nil, fmt.Errorf("xpath: expected variable in quantified expression")
	}
	v := p.tok.Text
	if err := p.advance(); err != nil {
		return nil, err
	}
	if !p.isKeyword("in") {
		return nil, fmt.Errorf("xpath: expected 'in'")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	in, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("satisfies") {
		return nil, fmt.Errorf("xpath: expected 'satisfies'")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, err := p.parseExprSingle()
	if err != nil {
		return nil, err
	}
	return QuantifiedExpr{Every: every, Var: v, In: in, Cond: cond}, nil
}

func (p *Parser) parseOrExpr() (Expr, error) {
	left, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAndExpr() (Expr, error) {
	left, err := p.parseComparisonExpr()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseComparisonExpr()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: OpAnd, Left: left, Right: right}
	}
	return left, nil
}

var comparisonOps = map[string]BinaryOp{
	"=": OpEq, "!=": OpNe, "<": OpLt, "<=": OpLe, ">": OpGt, ">=": OpGe,
	"<<": OpBefore, ">>": OpAfter,
}

var valueComparisonKeywords = map[string]BinaryOp{
	"eq": OpEqV, "ne": OpNeV, "lt": OpLtV, "le": OpLeV, "gt": OpGtV, "ge": OpGeV, "is": OpIs,
}

func (p *Parser) parseComparisonExpr() (Expr, error) {
	left, err := p.parseRangeExpr()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind == TokOperator {
		if op, ok := comparisonOps[p.tok.Text]; ok {
			if err := p.advance(); err != nil {
				return nil, err
			}
			right, err := p.parseRangeExpr()
			if err != nil {
				return nil, err
			}
			return BinaryExpr{Op: op, Left: left, Right: right}, nil
		}
	}
	if p.tok.Kind == TokKeyword {
		if op, ok := valueComparisonKeywords[p.tok.Text]; ok {
			if err := p.advance(); err != nil {
				return nil, err
			}
			right, err := p.parseRangeExpr()
			if err != nil {
				return nil, err
			}
			return BinaryExpr{Op: op, Left: left, Right: right}, nil
		}
	}
	return left, nil
}

func (p *Parser) parseRangeExpr() (Expr, error) {
	left, err := p.parseAdditiveExpr()
	if err != nil {
		return nil, err
	}
	if p.isKeyword("to") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditiveExpr()
		if err != nil {
			return nil, err
		}
		return BinaryExpr{Op: OpTo, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *Parser) parseAdditiveExpr() (Expr, error) {
	left, err := p.parseMultiplicativeExpr()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := BinaryOp(p.tok.Text)
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicativeExpr()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicativeExpr() (Expr, error) {
	left, err := p.parseUnionExpr()
	if err != nil {
		return nil, err
	}
	for {
		var op BinaryOp
		switch {
		case p.isOp("*"):
			op = OpMul
		case p.isKeyword("div"):
			op = OpDiv
		case p.isKeyword("mod"):
			op = OpMod
		case p.isKeyword("idiv"):
			op = OpIDiv
		default:
			return left, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnionExpr()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnionExpr() (Expr, error) {
	left, err := p.parseIntersectExceptExpr()
	if err != nil {
		return nil, err
	}
	for p.isOp("|") || p.isKeyword("union") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseIntersectExceptExpr()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: OpUnion, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseIntersectExceptExpr() (Expr, error) {
	left, err := p.parseUnaryExpr()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("intersect") || p.isKeyword("except") {
		op := OpIntersect
		if p.tok.Text == "except" {
			op = OpExcept
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnaryExpr() (Expr, error) {
	if p.isOp("-") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		x, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}
		return UnaryMinus{X: x}, nil
	}
	if p.isOp("+") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parseUnaryExpr()
	}
	return p.parsePathExpr()
}

// parsePathExpr handles the '/' and '//' rooted forms and abbreviated steps,
// per spec §4.3's abbreviation expansion rules.
func (p *Parser) parsePathExpr() (Expr, error) {
	if p.tok.Kind == TokSlash {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.atStepStart() {
			steps, err := p.parseRelativeSteps()
			if err != nil {
				return nil, err
			}
			return PathExpr{AbsoluteRoot: true, Steps: steps}, nil
		}
		return RootExpr{}, nil
	}
	if p.tok.Kind == TokDoubleSlash {
		if err := p.advance(); err != nil {
			return nil, err
		}
		steps, err := p.parseRelativeSteps()
		if err != nil {
			return nil, err
		}
		descOrSelf := AxisStep{Axis: xmlnode.DescendantOrSelf, Test: NodeTest{TestKind: TestNode}}
		return PathExpr{AbsoluteRoot: true, Steps: append([]Expr{descOrSelf}, steps...)}, nil
	}
	return p.parseRelativePathExpr()
}

func (p *Parser) atStepStart() bool {
	switch p.tok.Kind {
	case TokAxis, TokAt, TokNCName, TokNodeType, TokDot, TokDotDot:
		return true
	default:
		return false
	}
}

func (p *Parser) parseRelativePathExpr() (Expr, error) {
	steps, err := p.parseRelativeSteps()
	if err != nil {
		return nil, err
	}
	if len(steps) == 1 {
		return steps[0], nil
	}
	return PathExpr{Steps: steps}, nil
}

// parseRelativeSteps parses step ('/' | '//' step)*.
func (p *Parser) parseRelativeSteps() ([]Expr, error) {
	first, err := p.parseStepExpr()
	if err != nil {
		return nil, err
	}
	steps := []Expr{first}
	for p.tok.Kind == TokSlash || p.tok.Kind == TokDoubleSlash {
		deep := p.tok.Kind == TokDoubleSlash
		if err := p.advance(); err != nil {
			return nil, err
		}
		if deep {
			steps = append(steps, AxisStep{Axis: xmlnode.DescendantOrSelf, Test: NodeTest{TestKind: TestNode}})
		}
		next, err := p.parseStepExpr()
		if err != nil {
			return nil, err
		}
		steps = append(steps, next)
	}
	return steps, nil
}

// parseStepExpr parses one AxisStep, or falls through to a FilterExpr built
// from a primary expression (for forms like "func()[1]" mid-path).
func (p *Parser) parseStepExpr() (Expr, error) {
	switch p.tok.Kind {
	case TokDot:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parsePredicates(AxisStep{Axis: xmlnode.Self, Test: NodeTest{TestKind: TestNode}})
	case TokDotDot:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parsePredicates(AxisStep{Axis: xmlnode.Parent, Test: NodeTest{TestKind: TestNode}})
	case TokAt:
		if err := p.advance(); err != nil {
			return nil, err
		}
		test, err := p.parseNodeTest()
		if err != nil {
			return nil, err
		}
		return p.parsePredicates(AxisStep{Axis: xmlnode.AttributeAxis, Test: test})
	case TokAxis:
		axis, ok := axisFromName(p.tok.Text)
		if !ok {
			return nil, fmt.Errorf("xpath: unknown axis %q", p.tok.Text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.Kind != TokDoubleColon {
			return nil, fmt.Errorf("xpath: expected '::' after axis name")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		test, err := p.parseNodeTest()
		if err != nil {
			return nil, err
		}
		return p.parsePredicates(AxisStep{Axis: axis, Test: test})
	case TokNodeType:
		test, err := p.parseNodeTest()
		if err != nil {
			return nil, err
		}
		return p.parsePredicates(AxisStep{Axis: xmlnode.Child, Test: test})
	case TokNCName:
		// A bare name at step position is a NodeTest on the default "child"
		// axis (e.g. "foo" abbreviates "child::foo"), unless it's actually a
		// function call (name immediately followed by '('), which is a
		// FilterExpr primary instead.
		save := *p.lex
		savedTok := p.tok
		name := p.tok.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.Kind == TokLParen {
			*p.lex = save
			p.tok = savedTok
			primary, err := p.parsePrimaryExpr()
			if err != nil {
				return nil, err
			}
			return p.parsePredicates(primary)
		}
		if name == "*" {
			return p.parsePredicates(AxisStep{Axis: xmlnode.Child, Test: NodeTest{TestKind: TestAny, Local: "*"}})
		}
		prefix, local := "", name
		if i := strings.IndexByte(name, ':'); i >= 0 {
			prefix, local = name[:i], name[i+1:]
		}
		return p.parsePredicates(AxisStep{Axis: xmlnode.Child, Test: NodeTest{TestKind: TestAny, Prefix: prefix, Local: local}})
	default:
		primary, err := p.parsePrimaryExpr()
		if err != nil {
			return nil, err
		}
		return p.parsePredicates(primary)
	}
}

func axisFromName(name string) (xmlnode.Axis, bool) {
	switch strings.ToLower(name) {
	case "self":
		return xmlnode.Self, true
	case "child":
		return xmlnode.Child, true
	case "descendant":
		return xmlnode.Descendant, true
	case "descendant-or-self":
		return xmlnode.DescendantOrSelf, true
	case "parent":
		return xmlnode.Parent, true
	case "ancestor":
		return xmlnode.Ancestor, true
	case "ancestor-or-self":
		return xmlnode.AncestorOrSelf, true
	case "following-sibling":
		return xmlnode.FollowingSibling, true
	case "preceding-sibling":
		return xmlnode.PrecedingSibling, true
	case "following":
		return xmlnode.Following, true
	case "preceding":
		return xmlnode.Preceding, true
	case "attribute":
		return xmlnode.AttributeAxis, true
	case "namespace":
		return xmlnode.NamespaceAxis, true
	}
	return 0, false
}

func (p *Parser) parseNodeTest() (NodeTest, error) {
	if p.tok.Kind == TokNodeType {
		kind := p.tok.Text
		if err := p.advance(); err != nil {
			return NodeTest{}, err
		}
		if p.tok.Kind != TokLParen {
			return NodeTest{}, fmt.Errorf("xpath: expected '(' after node-type test")
		}
		if err := p.advance(); err != nil {
			return NodeTest{}, err
		}
		var pi string
		if kind == "processing-instruction" && p.tok.Kind == TokString {
			pi = p.tok.Text
			if err := p.advance(); err != nil {
				return NodeTest{}, err
			}
		}
		if p.tok.Kind != TokRParen {
			return NodeTest{}, fmt.Errorf("xpath: expected ')' closing node-type test")
		}
		if err := p.advance(); err != nil {
			return NodeTest{}, err
		}
		switch kind {
		case "node":
			return NodeTest{TestKind: TestNode}, nil
		case "text":
			return NodeTest{TestKind: TestText}, nil
		case "comment":
			return NodeTest{TestKind: TestComment}, nil
		case "processing-instruction":
			return NodeTest{TestKind: TestPI, PITarget: pi}, nil
		}
	}
	if p.tok.Kind == TokNCName {
		name := p.tok.Text
		if err := p.advance(); err != nil {
			return NodeTest{}, err
		}
		if name == "*" {
			return NodeTest{TestKind: TestAny, Local: "*"}, nil
		}
		if i := strings.IndexByte(name, ':'); i >= 0 {
			prefix, local := name[:i], name[i+1:]
			return NodeTest{TestKind: TestAny, Prefix: prefix, Local: local}, nil
		}
		return NodeTest{TestKind: TestAny, Local: name}, nil
	}
	return NodeTest{}, fmt.Errorf("xpath: expected a node test, got %q", p.tok.Text)
}

func (p *Parser) parsePredicates(base Expr) (Expr, error) {
	var preds []Expr
	for p.tok.Kind == TokLBracket {
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.tok.Kind != TokRBracket {
			return nil, fmt.Errorf("xpath: expected ']' closing predicate")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		preds = append(preds, e)
	}
	if len(preds) == 0 {
		return base, nil
	}
	if step, ok := base.(AxisStep); ok {
		step.Predicates = preds
		return step, nil
	}
	return FilterExpr{Base: base, Predicates: preds}, nil
}

func (p *Parser) parsePrimaryExpr() (Expr, error) {
	switch p.tok.Kind {
	case TokNumber:
		n, err := strconv.ParseFloat(p.tok.Text, 64)
		if err != nil {
			return nil, fmt.Errorf("xpath: invalid number %q", p.tok.Text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return Literal{V: NumberValue(n)}, nil
	case TokString:
		s := p.tok.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return Literal{V: StringValue(s)}, nil
	case TokVariable:
		name := p.tok.Text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return VarRef{Name: name}, nil
	case TokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.tok.Kind != TokRParen {
			return nil, fmt.Errorf("xpath: expected ')'")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return e, nil
	case TokDot:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return ContextItem{}, nil
	case TokNCName:
		return p.parseFunctionCallOrNameTest()
	}
	return nil, fmt.Errorf("xpath: unexpected token %q", p.tok.Text)
}

// parseFunctionCallOrNameTest handles the ambiguity between a FunctionCall
// (name immediately followed by '(') and a bare NCName, which can only
// legally appear here as part of a step (handled by the caller via
// parseStepExpr falling back to parsePrimaryExpr only for non-step-looking
// content); in this grammar position an NCName not followed by '(' is an
// error, since a relative path step is parsed by parseStepExpr directly.
func (p *Parser) parseFunctionCallOrNameTest() (Expr, error) {
	name := p.tok.Text
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.Kind != TokLParen {
		return nil, fmt.Errorf("xpath: unexpected name %q outside of a step or function call", name)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var args []Expr
	if p.tok.Kind != TokRParen {
		for {
			arg, err := p.parseExprSingle()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.tok.Kind == TokOperator && p.tok.Text == "," {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	if p.tok.Kind != TokRParen {
		return nil, fmt.Errorf("xpath: expected ')' closing function call")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	prefix, local := "", name
	if i := strings.IndexByte(name, ':'); i >= 0 {
		prefix, local = name[:i], name[i+1:]
	}
	return FuncCall{Prefix: prefix, Name: local, Args: args}, nil
}
