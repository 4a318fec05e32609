package xslt

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/arturoeanton/go-xslt/output"
	"github.com/arturoeanton/go-xslt/xmlnode"
	"github.com/arturoeanton/go-xslt/xpath"
)

// errTerminate unwinds the whole transformation after an xsl:message
// terminate="yes" (spec §4.8); Run surfaces it to the caller as a normal
// error after still closing the output document.
var errTerminate = errors.New(`xslt: terminated by xsl:message terminate="yes"`)

// Transform drives one execution of a compiled Stylesheet against a source
// tree, walking the Instr bodies template matching selects and emitting
// output events (spec §4.8).
type Transform struct {
	Stylesheet *Stylesheet
	Loader     DocumentLoader // backs document(); defaults to Stylesheet.Loader
	Recovery   RecoveryMode
	Now        func() xpath.Value
	OnMessage  func(text string, terminate bool)
	OnError    func(error)
	MaxDepth   int // guards against runaway apply-templates/call-template recursion

	funcs      xpath.FuncLibrary
	globalVars xpath.Scope
	aliasByURI map[string]string

	keyIdx   map[string]map[*xmlnode.Tree]map[string][]xmlnode.ID
	docCache map[string]*xmlnode.Tree

	depth int
}

// NewTransform prepares a Transform ready to Run against any source tree
// compiled with the same Stylesheet.
func NewTransform(s *Stylesheet) *Transform {
	tr := &Transform{
		Stylesheet: s,
		Loader:     s.Loader,
		Recovery:   RecoverSilently,
		MaxDepth:   5000,
		keyIdx:     map[string]map[*xmlnode.Tree]map[string][]xmlnode.ID{},
		docCache:   map[string]*xmlnode.Tree{},
	}
	tr.aliasByURI = resolveNamespaceAliases(s)
	tr.funcs = tr.buildFuncs()
	return tr
}

// Funcs exposes the FuncLibrary this Transform evaluates XPath expressions
// against, so a caller can register extension functions (spec §4.8's
// implementation-defined functions) before Run.
func (tr *Transform) Funcs() xpath.FuncLibrary {
	return tr.funcs
}

// execState is one lexical variable frame plus the ambient facts an
// instruction needs beyond its immediate context node (spec §4.8's
// mode/import-precedence bookkeeping for apply-imports).
type execState struct {
	vars     xpath.Scope
	declared map[string]bool // names bound in this exact frame, for shadow detection
	mode     string
	precedence int
	tmplNode xmlnode.ID // the node the enclosing template was invoked for
}

func cloneScope(s xpath.Scope) xpath.Scope {
	out := make(xpath.Scope, len(s)+4)
	for k, v := range s {
		out[k] = v
	}
	return out
}

func (tr *Transform) reportf(format string, args ...any) {
	if tr.OnError != nil {
		tr.OnError(fmt.Errorf(format, args...))
	}
}

func (tr *Transform) declareVar(es *execState, name string, val xpath.Value) {
	if es.declared[name] {
		tr.reportf("xslt: variable %q shadows another binding already in scope", name)
	}
	es.vars[name] = val
	es.declared[name] = true
}

// ctx builds an evaluation context for ordinary instruction content, seeing
// the current lexical frame's variables.
func (tr *Transform) ctx(tree *xmlnode.Tree, node xmlnode.ID, pos, size int, es *execState) *xpath.Context {
	return &xpath.Context{
		Tree: tree, Node: node, Pos: pos, Size: size,
		Vars: es.vars, NS: tr.Stylesheet.NS, Funcs: tr.funcs, Now: tr.Now,
	}
}

// globalCtx builds a context seeing only resolved global variables, used for
// template-match predicates: pattern matching happens outside any calling
// template's local scope (spec §4.7).
func (tr *Transform) globalCtx(tree *xmlnode.Tree, node xmlnode.ID, pos, size int) *xpath.Context {
	return &xpath.Context{
		Tree: tree, Node: node, Pos: pos, Size: size,
		Vars: tr.globalVars, NS: tr.Stylesheet.NS, Funcs: tr.funcs, Now: tr.Now,
	}
}

// Run resolves global variables/parameters, then applies templates to tree's
// root in the default mode, emitting the full result to emit. params
// supplies (or overrides) top-level xsl:param values.
func (tr *Transform) Run(tree *xmlnode.Tree, emit output.Emitter, params map[string]xpath.Value) error {
	if err := tr.resolveGlobals(tree, params); err != nil {
		return err
	}
	emit.StartDocument()
	err := tr.applyOne(tree, tree.Root, 1, 1, DefaultMode, nil, emit)
	emit.EndDocument()
	if err == errTerminate {
		return err
	}
	return err
}

// resolveGlobals computes every xsl:variable/xsl:param at stylesheet level,
// tolerating forward and circular references among them via fixed-point
// relaxation (spec §4.8: globals may reference each other in any order).
func (tr *Transform) resolveGlobals(tree *xmlnode.Tree, params map[string]xpath.Value) error {
	resolved := xpath.Scope{}
	for name, v := range params {
		resolved[name] = v
	}
	pending := map[string]*GlobalBinding{}
	for name, b := range tr.Stylesheet.Variables {
		if _, overridden := resolved[name]; overridden {
			continue
		}
		pending[name] = b
	}
	for len(pending) > 0 {
		progressed := false
		for name, b := range pending {
			v, err := tr.evalGlobalBinding(tree, b, resolved)
			if err != nil {
				continue // may depend on a still-pending sibling; retry next pass
			}
			resolved[name] = v
			delete(pending, name)
			progressed = true
		}
		if !progressed {
			for name := range pending {
				tr.reportf("xslt: global variable %q could not be resolved (circular or undefined reference); treated as empty", name)
				resolved[name] = xpath.StringValue("")
			}
			break
		}
	}
	tr.globalVars = resolved
	return nil
}

func (tr *Transform) evalGlobalBinding(tree *xmlnode.Tree, b *GlobalBinding, resolved xpath.Scope) (xpath.Value, error) {
	ctx := &xpath.Context{Tree: tree, Node: tree.Root, Pos: 1, Size: 1, Vars: resolved, NS: tr.Stylesheet.NS, Funcs: tr.funcs, Now: tr.Now}
	if b.Select != nil {
		return xpath.Eval(b.Select, ctx)
	}
	if len(b.Body) > 0 {
		tb := xmlnode.NewTreeBuilder()
		tb.OnError = tr.OnError
		es := execState{vars: resolved, declared: map[string]bool{}}
		if err := tr.execInstrs(b.Body, tree, tree.Root, 1, 1, es, tb); err != nil {
			return xpath.Value{}, err
		}
		return xpath.NodeSetValue(tb.Tree(), []xmlnode.ID{tb.Tree().Root}), nil
	}
	return xpath.StringValue(""), nil
}

// applyOne matches node against the stylesheet's templates in mode and
// instantiates the winner, with supplied carrying any with-param values
// already evaluated in the caller's context.
func (tr *Transform) applyOne(tree *xmlnode.Tree, node xmlnode.ID, pos, size int, mode string, supplied map[string]xpath.Value, emit output.Emitter) error {
	tr.depth++
	defer func() { tr.depth-- }()
	if tr.depth > tr.MaxDepth {
		return fmt.Errorf("xslt: recursion depth exceeded %d; likely infinite template recursion", tr.MaxDepth)
	}
	ec := tr.globalCtx(tree, node, pos, size)
	tmpl, err := FindTemplate(tr.Stylesheet, tree, node, mode, ec, tr.Recovery)
	if err != nil {
		return err
	}
	return tr.invokeTemplate(tmpl, tree, node, pos, size, mode, supplied, emit)
}

func (tr *Transform) invokeTemplate(tmpl *Template, tree *xmlnode.Tree, node xmlnode.ID, pos, size int, mode string, supplied map[string]xpath.Value, emit output.Emitter) error {
	es := execState{
		vars:       cloneScope(tr.globalVars),
		declared:   map[string]bool{},
		mode:       mode,
		precedence: tmpl.ImportPrecedence,
		tmplNode:   node,
	}
	for _, formal := range tmpl.Params {
		v, err := tr.resolveParam(formal, supplied, tree, node, pos, size, &es)
		if err != nil {
			return err
		}
		es.vars[formal.Name] = v
		es.declared[formal.Name] = true
	}
	return tr.execInstrs(tmpl.Body, tree, node, pos, size, es, emit)
}

func (tr *Transform) resolveParam(formal WithParam, supplied map[string]xpath.Value, tree *xmlnode.Tree, node xmlnode.ID, pos, size int, es *execState) (xpath.Value, error) {
	if v, ok := supplied[formal.Name]; ok {
		return v, nil
	}
	if formal.Select != nil {
		return xpath.Eval(formal.Select, tr.ctx(tree, node, pos, size, es))
	}
	if len(formal.Body) > 0 {
		return tr.evalAsResultTree(formal.Body, tree, node, pos, size, es)
	}
	return xpath.StringValue(""), nil
}

// evalWithParams evaluates xsl:with-param children in the CALLING context
// (not the callee's), per spec §4.8.
func (tr *Transform) evalWithParams(params []WithParam, tree *xmlnode.Tree, node xmlnode.ID, pos, size int, es *execState) (map[string]xpath.Value, error) {
	if len(params) == 0 {
		return nil, nil
	}
	out := make(map[string]xpath.Value, len(params))
	for _, p := range params {
		if p.Select != nil {
			v, err := xpath.Eval(p.Select, tr.ctx(tree, node, pos, size, es))
			if err != nil {
				return nil, err
			}
			out[p.Name] = v
			continue
		}
		v, err := tr.evalAsResultTree(p.Body, tree, node, pos, size, es)
		if err != nil {
			return nil, err
		}
		out[p.Name] = v
	}
	return out, nil
}

// evalAsResultTree instantiates instrs into a fresh xmlnode.TreeBuilder and
// returns a node-set value anchored at its document node, the representation
// of a result-tree fragment (spec §4.8: xsl:variable/xsl:param content
// without @select).
func (tr *Transform) evalAsResultTree(instrs []Instr, tree *xmlnode.Tree, node xmlnode.ID, pos, size int, es *execState) (xpath.Value, error) {
	tb := xmlnode.NewTreeBuilder()
	tb.OnError = tr.OnError
	if err := tr.execInstrs(instrs, tree, node, pos, size, *es, tb); err != nil {
		return xpath.Value{}, err
	}
	return xpath.NodeSetValue(tb.Tree(), []xmlnode.ID{tb.Tree().Root}), nil
}

// attributeValue instantiates instrs against a text-only sink, the content
// model xsl:attribute/xsl:comment/xsl:processing-instruction/xsl:message use
// (their value is the concatenated string, not a sub-tree).
func (tr *Transform) attributeValue(instrs []Instr, tree *xmlnode.Tree, node xmlnode.ID, pos, size int, es *execState) (string, error) {
	ts := &textSink{}
	if err := tr.execInstrs(instrs, tree, node, pos, size, *es, ts); err != nil {
		return "", err
	}
	return ts.sb.String(), nil
}

// execInstrs runs one lexical block: a fresh frame cloned from parent so
// bindings made here (xsl:variable) are visible to later siblings in instrs
// but never escape back into parent's own continuation (spec §4.8).
func (tr *Transform) execInstrs(instrs []Instr, tree *xmlnode.Tree, node xmlnode.ID, pos, size int, parent execState, emit output.Emitter) error {
	es := execState{
		vars:       cloneScope(parent.vars),
		declared:   map[string]bool{},
		mode:       parent.mode,
		precedence: parent.precedence,
		tmplNode:   parent.tmplNode,
	}
	for _, instr := range instrs {
		if err := tr.execInstr(instr, tree, node, pos, size, &es, emit); err != nil {
			return err
		}
	}
	return nil
}

func (tr *Transform) execInstr(instr Instr, tree *xmlnode.Tree, node xmlnode.ID, pos, size int, es *execState, emit output.Emitter) error {
	switch n := instr.(type) {
	case LiteralText:
		if n.DisableOutputEscaping {
			emit.CharactersRaw(n.Value)
		} else {
			emit.Characters(n.Value)
		}
		return nil

	case LiteralElement:
		return tr.execLiteralElement(n, tree, node, pos, size, es, emit)

	case ApplyTemplates:
		return tr.execApplyTemplates(n, tree, node, pos, size, es, emit)

	case CallTemplate:
		tr.depth++
		defer func() { tr.depth-- }()
		if tr.depth > tr.MaxDepth {
			return fmt.Errorf("xslt: recursion depth exceeded %d; likely infinite template recursion", tr.MaxDepth)
		}
		tmpl, ok := tr.Stylesheet.NamedTemplates[n.Name]
		if !ok {
			return fmt.Errorf("xslt: call-template: no template named %q", n.Name)
		}
		supplied, err := tr.evalWithParams(n.Params, tree, node, pos, size, es)
		if err != nil {
			return err
		}
		return tr.invokeTemplate(tmpl, tree, node, pos, size, es.mode, supplied, emit)

	case ForEach:
		return tr.execForEach(n, tree, node, pos, size, es, emit)

	case VariableInstr:
		val, err := tr.evalBindingValue(n.Select, n.Body, tree, node, pos, size, es)
		if err != nil {
			return err
		}
		tr.declareVar(es, n.Name, val)
		return nil

	case IfInstr:
		v, err := xpath.Eval(n.Test, tr.ctx(tree, node, pos, size, es))
		if err != nil {
			return err
		}
		if v.AsBoolean() {
			return tr.execInstrs(n.Body, tree, node, pos, size, *es, emit)
		}
		return nil

	case ChooseInstr:
		for _, w := range n.Whens {
			v, err := xpath.Eval(w.Test, tr.ctx(tree, node, pos, size, es))
			if err != nil {
				return err
			}
			if v.AsBoolean() {
				return tr.execInstrs(w.Body, tree, node, pos, size, *es, emit)
			}
		}
		if n.Otherwise != nil {
			return tr.execInstrs(n.Otherwise, tree, node, pos, size, *es, emit)
		}
		return nil

	case CopyInstr:
		return tr.execCopy(n, tree, node, pos, size, es, emit)

	case CopyOfInstr:
		return tr.execCopyOf(n, tree, node, pos, size, es, emit)

	case ElementInstr:
		return tr.execElement(n, tree, node, pos, size, es, emit)

	case AttributeInstr:
		return tr.emitAttribute(n, tree, node, pos, size, es, emit)

	case TextInstr:
		if n.DisableOutputEscaping {
			emit.CharactersRaw(n.Value)
		} else {
			emit.Characters(n.Value)
		}
		return nil

	case ValueOfInstr:
		v, err := xpath.Eval(n.Select, tr.ctx(tree, node, pos, size, es))
		if err != nil {
			return err
		}
		if n.DisableOutputEscaping {
			emit.CharactersRaw(v.AsString())
		} else {
			emit.Characters(v.AsString())
		}
		return nil

	case NumberInstr:
		return tr.execNumber(n, tree, node, pos, size, es, emit)

	case MessageInstr:
		text, err := tr.attributeValue(n.Body, tree, node, pos, size, es)
		if err != nil {
			return err
		}
		if tr.OnMessage != nil {
			tr.OnMessage(text, n.Terminate)
		}
		if n.Terminate {
			return errTerminate
		}
		return nil

	case CommentInstr:
		text, err := tr.attributeValue(n.Body, tree, node, pos, size, es)
		if err != nil {
			return err
		}
		emit.Comment(text)
		return nil

	case PIInstr:
		name, err := EvalAVT(n.Name, tr.ctx(tree, node, pos, size, es))
		if err != nil {
			return err
		}
		data, err := tr.attributeValue(n.Body, tree, node, pos, size, es)
		if err != nil {
			return err
		}
		emit.ProcessingInstruction(name, data)
		return nil

	case ApplyImports:
		supplied, err := tr.evalWithParams(n.Params, tree, node, pos, size, es)
		if err != nil {
			return err
		}
		ec := tr.globalCtx(tree, es.tmplNode, pos, size)
		tmpl, err := FindTemplateImports(tr.Stylesheet, tree, es.tmplNode, es.mode, ec, es.precedence, tr.Recovery)
		if err != nil {
			return err
		}
		return tr.invokeTemplate(tmpl, tree, es.tmplNode, pos, size, es.mode, supplied, emit)
	}
	return fmt.Errorf("xslt: unhandled instruction %T", instr)
}

func (tr *Transform) evalBindingValue(sel xpath.Expr, body []Instr, tree *xmlnode.Tree, node xmlnode.ID, pos, size int, es *execState) (xpath.Value, error) {
	if sel != nil {
		return xpath.Eval(sel, tr.ctx(tree, node, pos, size, es))
	}
	if len(body) > 0 {
		return tr.evalAsResultTree(body, tree, node, pos, size, es)
	}
	return xpath.StringValue(""), nil
}

func (tr *Transform) execLiteralElement(n LiteralElement, tree *xmlnode.Tree, node xmlnode.ID, pos, size int, es *execState, emit output.Emitter) error {
	ctx := tr.ctx(tree, node, pos, size, es)
	uri := tr.applyAlias(n.Name.URI)
	emit.StartElement(xmlnode.Name{URI: uri, Local: n.Name.Local}, n.Prefix)
	for prefix, u := range n.NSBindings {
		emit.Namespace(prefix, tr.applyAlias(u))
	}
	for _, setName := range n.UseSets {
		if err := tr.emitAttributeSet(setName, tree, node, pos, size, es, map[string]bool{}, emit); err != nil {
			return err
		}
	}
	for _, a := range n.Attrs {
		val, err := EvalAVT(a.Value, ctx)
		if err != nil {
			return err
		}
		emit.Attribute(a.Name, val)
	}
	if err := tr.execInstrs(n.Body, tree, node, pos, size, *es, emit); err != nil {
		return err
	}
	emit.EndElement()
	return nil
}

func (tr *Transform) execElement(n ElementInstr, tree *xmlnode.Tree, node xmlnode.ID, pos, size int, es *execState, emit output.Emitter) error {
	ctx := tr.ctx(tree, node, pos, size, es)
	name, err := EvalAVT(n.Name, ctx)
	if err != nil {
		return err
	}
	prefix, local := splitQName(name)
	uri := ""
	if n.Namespace.Parts != nil {
		uri, err = EvalAVT(n.Namespace, ctx)
		if err != nil {
			return err
		}
	} else if prefix != "" {
		uri = tr.Stylesheet.NS[prefix]
	}
	uri = tr.applyAlias(uri)
	emit.StartElement(xmlnode.Name{URI: uri, Local: local}, prefix)
	for _, setName := range n.UseSets {
		if err := tr.emitAttributeSet(setName, tree, node, pos, size, es, map[string]bool{}, emit); err != nil {
			return err
		}
	}
	if err := tr.execInstrs(n.Body, tree, node, pos, size, *es, emit); err != nil {
		return err
	}
	emit.EndElement()
	return nil
}

func (tr *Transform) emitAttribute(ai AttributeInstr, tree *xmlnode.Tree, node xmlnode.ID, pos, size int, es *execState, emit output.Emitter) error {
	ctx := tr.ctx(tree, node, pos, size, es)
	name, err := EvalAVT(ai.Name, ctx)
	if err != nil {
		return err
	}
	prefix, local := splitQName(name)
	uri := ""
	if ai.Namespace.Parts != nil {
		uri, err = EvalAVT(ai.Namespace, ctx)
		if err != nil {
			return err
		}
	} else if prefix != "" {
		uri = tr.Stylesheet.NS[prefix]
	}
	uri = tr.applyAlias(uri)
	val, err := tr.attributeValue(ai.Body, tree, node, pos, size, es)
	if err != nil {
		return err
	}
	emit.Attribute(xmlnode.Name{URI: uri, Local: local}, val)
	return nil
}

// emitAttributeSet expands a named xsl:attribute-set, applying the sets it
// itself uses first (spec §4.8), guarding against a use-attribute-sets cycle
// via visited.
func (tr *Transform) emitAttributeSet(name string, tree *xmlnode.Tree, node xmlnode.ID, pos, size int, es *execState, visited map[string]bool, emit output.Emitter) error {
	if visited[name] {
		return nil
	}
	visited[name] = true
	as, ok := tr.Stylesheet.AttributeSets[name]
	if !ok {
		tr.reportf("xslt: use-attribute-sets references undefined set %q", name)
		return nil
	}
	for _, used := range as.Uses {
		if err := tr.emitAttributeSet(used, tree, node, pos, size, es, visited, emit); err != nil {
			return err
		}
	}
	for _, ai := range as.Attrs {
		if err := tr.emitAttribute(ai, tree, node, pos, size, es, emit); err != nil {
			return err
		}
	}
	return nil
}

func (tr *Transform) execCopy(n CopyInstr, tree *xmlnode.Tree, node xmlnode.ID, pos, size int, es *execState, emit output.Emitter) error {
	nd := tree.Get(node)
	switch nd.Kind {
	case xmlnode.ElementNode:
		emit.StartElement(nd.Name, nd.Prefix)
		for _, nsid := range nd.NS {
			ns := tree.Get(nsid)
			emit.Namespace(ns.Name.Local, ns.Value)
		}
		for _, setName := range n.UseSets {
			if err := tr.emitAttributeSet(setName, tree, node, pos, size, es, map[string]bool{}, emit); err != nil {
				return err
			}
		}
		if err := tr.execInstrs(n.Body, tree, node, pos, size, *es, emit); err != nil {
			return err
		}
		emit.EndElement()
	case xmlnode.AttributeNode:
		emit.Attribute(nd.Name, nd.Value)
	case xmlnode.TextNode:
		emit.Characters(nd.Value)
	case xmlnode.CommentNode:
		emit.Comment(nd.Value)
	case xmlnode.PINode:
		emit.ProcessingInstruction(nd.PITarget, nd.Value)
	case xmlnode.NamespaceNode:
		emit.Namespace(nd.Name.Local, nd.Value)
	case xmlnode.DocumentNode:
		return tr.execInstrs(n.Body, tree, node, pos, size, *es, emit)
	}
	return nil
}

func (tr *Transform) execCopyOf(n CopyOfInstr, tree *xmlnode.Tree, node xmlnode.ID, pos, size int, es *execState, emit output.Emitter) error {
	v, err := xpath.Eval(n.Select, tr.ctx(tree, node, pos, size, es))
	if err != nil {
		return err
	}
	return tr.copyOfValue(v, emit)
}

func (tr *Transform) copyOfValue(v xpath.Value, emit output.Emitter) error {
	switch v.Type {
	case xpath.TypeNodeSet:
		for _, id := range v.Nodes.IDs {
			copyDeep(v.Nodes.Tree, id, emit)
		}
	case xpath.TypeSequence:
		for _, it := range v.Items {
			if err := tr.copyOfValue(it, emit); err != nil {
				return err
			}
		}
	default:
		emit.Characters(v.AsString())
	}
	return nil
}

// copyDeep reproduces id and its descendants into emit, the instruction
// behind xsl:copy-of (spec §4.8): a structural clone, not a re-run of
// template rules.
func copyDeep(tree *xmlnode.Tree, id xmlnode.ID, emit output.Emitter) {
	n := tree.Get(id)
	switch n.Kind {
	case xmlnode.ElementNode:
		emit.StartElement(n.Name, n.Prefix)
		for _, nsid := range n.NS {
			ns := tree.Get(nsid)
			emit.Namespace(ns.Name.Local, ns.Value)
		}
		for _, aid := range n.Attrs {
			a := tree.Get(aid)
			emit.Attribute(a.Name, a.Value)
		}
		for c := range tree.Children(id) {
			copyDeep(tree, c, emit)
		}
		emit.EndElement()
	case xmlnode.AttributeNode:
		emit.Attribute(n.Name, n.Value)
	case xmlnode.TextNode:
		emit.Characters(n.Value)
	case xmlnode.CommentNode:
		emit.Comment(n.Value)
	case xmlnode.PINode:
		emit.ProcessingInstruction(n.PITarget, n.Value)
	case xmlnode.NamespaceNode:
		emit.Namespace(n.Name.Local, n.Value)
	case xmlnode.DocumentNode:
		for c := range tree.Children(id) {
			copyDeep(tree, c, emit)
		}
	}
}

func (tr *Transform) execApplyTemplates(n ApplyTemplates, tree *xmlnode.Tree, node xmlnode.ID, pos, size int, es *execState, emit output.Emitter) error {
	targetTree := tree
	var ids []xmlnode.ID
	if n.Select != nil {
		v, err := xpath.Eval(n.Select, tr.ctx(tree, node, pos, size, es))
		if err != nil {
			return err
		}
		ns, err := v.AsNodeSet()
		if err != nil {
			return err
		}
		targetTree, ids = ns.Tree, ns.IDs
	} else {
		for c := range tree.Children(node) {
			switch tree.Get(c).Kind {
			case xmlnode.ElementNode, xmlnode.TextNode, xmlnode.CommentNode, xmlnode.PINode:
				ids = append(ids, c)
			}
		}
	}
	ids = tr.applySort(n.Sort, targetTree, ids, pos, size, es)

	supplied, err := tr.evalWithParams(n.Params, tree, node, pos, size, es)
	if err != nil {
		return err
	}
	total := len(ids)
	for i, id := range ids {
		if err := tr.applyOne(targetTree, id, i+1, total, n.Mode, supplied, emit); err != nil {
			return err
		}
	}
	return nil
}

func (tr *Transform) execForEach(n ForEach, tree *xmlnode.Tree, node xmlnode.ID, pos, size int, es *execState, emit output.Emitter) error {
	v, err := xpath.Eval(n.Select, tr.ctx(tree, node, pos, size, es))
	if err != nil {
		return err
	}
	ns, err := v.AsNodeSet()
	if err != nil {
		return err
	}
	ids := tr.applySort(n.Sort, ns.Tree, ns.IDs, pos, size, es)
	total := len(ids)
	for i, id := range ids {
		if err := tr.execInstrs(n.Body, ns.Tree, id, i+1, total, *es, emit); err != nil {
			return err
		}
	}
	return nil
}

func (tr *Transform) execNumber(n NumberInstr, tree *xmlnode.Tree, node xmlnode.ID, pos, size int, es *execState, emit output.Emitter) error {
	ctx := tr.ctx(tree, node, pos, size, es)
	var nums []int
	if n.Value != nil {
		v, err := xpath.Eval(n.Value, ctx)
		if err != nil {
			return err
		}
		f := v.AsNumber()
		if f != f { // NaN: XSLT emits "NaN" verbatim rather than a formatted number
			emit.Characters("NaN")
			return nil
		}
		nums = []int{int(f + 0.5)}
	} else {
		computed, err := computeNumbering(tree, node, n, ctx)
		if err != nil {
			return err
		}
		nums = computed
	}
	if len(nums) == 0 {
		return nil
	}
	s, err := formatNumberList(nums, n, ctx)
	if err != nil {
		return err
	}
	emit.Characters(s)
	return nil
}

// applySort implements xsl:sort (spec §4.8): a stable multi-key sort, each
// key's Select evaluated once per candidate against the original selection's
// position/size before any reordering.
func (tr *Transform) applySort(sorts []SortKey, tree *xmlnode.Tree, ids []xmlnode.ID, pos, size int, es *execState) []xmlnode.ID {
	if len(sorts) == 0 || len(ids) < 2 {
		return ids
	}
	type keyed struct {
		id   xmlnode.ID
		keys []xpath.Value
		tags []language.Tag
	}
	total := len(ids)
	items := make([]keyed, total)
	for i, id := range ids {
		c := tr.ctx(tree, id, i+1, total, es)
		keys := make([]xpath.Value, len(sorts))
		tags := make([]language.Tag, len(sorts))
		for j, sk := range sorts {
			v, err := xpath.Eval(sk.Select, c)
			if err != nil {
				v = xpath.StringValue("")
			}
			keys[j] = v
			tags[j] = resolveSortLang(sk.Lang, c)
		}
		items[i] = keyed{id: id, keys: keys, tags: tags}
	}
	sort.SliceStable(items, func(a, b int) bool {
		for j, sk := range sorts {
			cmp := compareSortValues(items[a].keys[j], items[b].keys[j], sk, items[a].tags[j])
			if cmp != 0 {
				if sk.Order == "descending" {
					return cmp > 0
				}
				return cmp < 0
			}
		}
		return false
	})
	out := make([]xmlnode.ID, total)
	for i, it := range items {
		out[i] = it.id
	}
	return out
}

// resolveSortLang instantiates xsl:sort's @lang AVT (spec §4.8) against the
// candidate's own context, so "{@xml:lang}" can pick a different collation
// per node, and resolves it to the BCP 47 tag golang.org/x/text/collate
// keys its tables on. An empty or unparseable value falls back to
// language.Und, which collate.New treats as root/Unicode default ordering.
func resolveSortLang(lang AVT, ctx *xpath.Context) language.Tag {
	s, err := EvalAVT(lang, ctx)
	if err != nil || s == "" {
		return language.Und
	}
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und
	}
	return tag
}

var collatorCache sync.Map // language.Tag -> *collate.Collator

func collatorFor(tag language.Tag) *collate.Collator {
	if c, ok := collatorCache.Load(tag); ok {
		return c.(*collate.Collator)
	}
	c := collate.New(tag)
	collatorCache.Store(tag, c)
	return c
}

func compareSortValues(a, b xpath.Value, sk SortKey, tag language.Tag) int {
	if sk.DataType == "number" {
		na, nb := a.AsNumber(), b.AsNumber()
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	}
	return compareText(a.AsString(), b.AsString(), sk.CaseOrder, tag)
}

// compareText implements xsl:sort's @lang via golang.org/x/text/collate
// (spec §4.8's lang operand), with @case-order applied as a tiebreak when
// the collator itself reports equality.
func compareText(a, b, caseOrder string, tag language.Tag) int {
	if cmp := collatorFor(tag).CompareString(a, b); cmp != 0 {
		return cmp
	}
	if caseOrder == "" {
		return strings.Compare(a, b)
	}
	ra, rb := []rune(a), []rune(b)
	for i := 0; i < len(ra) && i < len(rb); i++ {
		if ra[i] == rb[i] {
			continue
		}
		upA, upB := unicode.IsUpper(ra[i]), unicode.IsUpper(rb[i])
		if upA != upB {
			if caseOrder == "upper-first" {
				if upA {
					return -1
				}
				return 1
			}
			if upA {
				return 1
			}
			return -1
		}
		return strings.Compare(string(ra[i]), string(rb[i]))
	}
	return strings.Compare(a, b)
}

func splitQName(qn string) (prefix, local string) {
	if i := strings.IndexByte(qn, ':'); i >= 0 {
		return qn[:i], qn[i+1:]
	}
	return "", qn
}

func resolveNamespaceAliases(s *Stylesheet) map[string]string {
	out := map[string]string{}
	for stylesheetPrefix, resultPrefix := range s.NamespaceAliases {
		out[s.NS[stylesheetPrefix]] = s.NS[resultPrefix]
	}
	return out
}

func (tr *Transform) applyAlias(uri string) string {
	if v, ok := tr.aliasByURI[uri]; ok {
		return v
	}
	return uri
}

// --- key()/document() wiring ---------------------------------------------

func (tr *Transform) buildFuncs() xpath.FuncLibrary {
	lib := xpath.FuncLibrary{}
	for name, fn := range xpath.CoreLibrary() {
		lib[name] = fn
	}
	lib["key"] = func(ctx *xpath.Context, args []xpath.Value) (xpath.Value, error) {
		if len(args) != 2 {
			return xpath.Value{}, fmt.Errorf("xpath: key() takes 2 arguments, got %d", len(args))
		}
		return tr.evalKey(ctx.Tree, args[0].AsString(), args[1])
	}
	lib["document"] = func(ctx *xpath.Context, args []xpath.Value) (xpath.Value, error) {
		if len(args) != 1 && len(args) != 2 {
			return xpath.Value{}, fmt.Errorf("xpath: document() takes 1 or 2 arguments, got %d", len(args))
		}
		return tr.evalDocument(args[0])
	}
	lib["unparsed-entity-uri"] = func(ctx *xpath.Context, args []xpath.Value) (xpath.Value, error) {
		if len(args) != 1 {
			return xpath.Value{}, fmt.Errorf("xpath: unparsed-entity-uri() takes 1 argument, got %d", len(args))
		}
		return xpath.StringValue(""), nil // no DTD/unparsed-entity support
	}
	lib["format-number"] = func(ctx *xpath.Context, args []xpath.Value) (xpath.Value, error) {
		if len(args) != 2 && len(args) != 3 {
			return xpath.Value{}, fmt.Errorf("xpath: format-number() takes 2 or 3 arguments, got %d", len(args))
		}
		df := xpath.DefaultDecimalFormat()
		if len(args) == 3 {
			if named, ok := tr.Stylesheet.DecimalFormats[args[2].AsString()]; ok {
				df = named
			}
		}
		return xpath.StringValue(xpath.FormatNumberWith(args[0].AsNumber(), args[1].AsString(), df)), nil
	}
	return lib
}

func (tr *Transform) evalKey(tree *xmlnode.Tree, name string, arg xpath.Value) (xpath.Value, error) {
	idx := tr.keyIndex(tree, name)
	seen := map[xmlnode.ID]bool{}
	var out []xmlnode.ID
	for _, k := range keyValueStrings(arg) {
		for _, id := range idx[k] {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sortByDoc(tree, out)
	return xpath.NodeSetValue(tree, out), nil
}

func keyValueStrings(v xpath.Value) []string {
	switch v.Type {
	case xpath.TypeNodeSet:
		out := make([]string, len(v.Nodes.IDs))
		for i, id := range v.Nodes.IDs {
			out[i] = v.Nodes.Tree.StringValue(id)
		}
		return out
	case xpath.TypeSequence:
		var out []string
		for _, it := range v.Items {
			out = append(out, keyValueStrings(it)...)
		}
		return out
	default:
		return []string{v.AsString()}
	}
}

// keyIndex builds (and caches) the value->nodes index for one xsl:key name
// over one document, lazily on first use (spec §4.8's "key" instruction
// note).
func (tr *Transform) keyIndex(tree *xmlnode.Tree, name string) map[string][]xmlnode.ID {
	byTree, ok := tr.keyIdx[name]
	if !ok {
		byTree = map[*xmlnode.Tree]map[string][]xmlnode.ID{}
		tr.keyIdx[name] = byTree
	}
	if idx, ok := byTree[tree]; ok {
		return idx
	}
	idx := map[string][]xmlnode.ID{}
	defs := tr.Stylesheet.Keys[name]
	consider := func(id xmlnode.ID) {
		for _, def := range defs {
			gctx := &xpath.Context{Tree: tree, Node: id, Pos: 1, Size: 1, Vars: tr.globalVars, NS: tr.Stylesheet.NS, Funcs: tr.funcs, Now: tr.Now}
			if !def.Match.Matches(tree, id, gctx) {
				continue
			}
			v, err := xpath.Eval(def.Use, gctx)
			if err != nil {
				continue
			}
			for _, k := range keyValueStrings(v) {
				idx[k] = append(idx[k], id)
			}
		}
	}
	for id := range tree.Iterate(xmlnode.DescendantOrSelf, tree.Root) {
		consider(id)
		if tree.Get(id).Kind == xmlnode.ElementNode {
			for _, aid := range tree.Get(id).Attrs {
				consider(aid)
			}
		}
	}
	byTree[tree] = idx
	return idx
}

func sortByDoc(tree *xmlnode.Tree, ids []xmlnode.ID) {
	sort.Slice(ids, func(i, j int) bool { return tree.Compare(ids[i], ids[j]) < 0 })
}

func (tr *Transform) evalDocument(arg xpath.Value) (xpath.Value, error) {
	var hrefs []string
	if arg.Type == xpath.TypeNodeSet {
		for _, id := range arg.Nodes.IDs {
			hrefs = append(hrefs, arg.Nodes.Tree.StringValue(id))
		}
	} else {
		hrefs = []string{arg.AsString()}
	}
	if len(hrefs) == 0 {
		return xpath.NodeSetValue(nil, nil), nil
	}
	if len(hrefs) == 1 {
		t, err := tr.loadDocument(hrefs[0])
		if err != nil {
			return xpath.Value{}, err
		}
		return xpath.NodeSetValue(t, []xmlnode.ID{t.Root}), nil
	}
	items := make([]xpath.Value, 0, len(hrefs))
	for _, href := range hrefs {
		t, err := tr.loadDocument(href)
		if err != nil {
			return xpath.Value{}, err
		}
		items = append(items, xpath.NodeSetValue(t, []xmlnode.ID{t.Root}))
	}
	return xpath.SequenceValue(items), nil
}

func (tr *Transform) loadDocument(href string) (*xmlnode.Tree, error) {
	if href == "" {
		return nil, fmt.Errorf("xslt: document(''): referring to the stylesheet's own tree is not supported")
	}
	if t, ok := tr.docCache[href]; ok {
		return t, nil
	}
	if tr.Loader == nil {
		return nil, fmt.Errorf("xslt: document(%q) called but no DocumentLoader was configured", href)
	}
	t, err := tr.Loader(href)
	if err != nil {
		return nil, fmt.Errorf("xslt: document(%q): %w", href, err)
	}
	tr.docCache[href] = t
	return t, nil
}

// textSink collects Characters/CharactersRaw output, the sink used for
// content models that resolve to a plain string rather than a sub-tree
// (xsl:attribute, xsl:comment, xsl:processing-instruction, xsl:message).
// Structural events would be invalid there and are silently dropped.
type textSink struct {
	sb strings.Builder
}

func (t *textSink) StartDocument()                               {}
func (t *textSink) EndDocument()                                 {}
func (t *textSink) Flush()                                       {}
func (t *textSink) StartElement(name xmlnode.Name, prefix string) {}
func (t *textSink) EndElement()                                  {}
func (t *textSink) Attribute(name xmlnode.Name, value string)     {}
func (t *textSink) Namespace(prefix, uri string)                  {}
func (t *textSink) Characters(text string)                        { t.sb.WriteString(text) }
func (t *textSink) CharactersRaw(text string)                     { t.sb.WriteString(text) }
func (t *textSink) Comment(text string)                           {}
func (t *textSink) ProcessingInstruction(target, data string)     {}

var _ output.Emitter = (*textSink)(nil)
