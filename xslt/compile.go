package xslt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arturoeanton/go-xslt/xmlnode"
	"github.com/arturoeanton/go-xslt/xpath"
)

// DocumentLoader resolves an href (from xsl:include/xsl:import/document())
// into a parsed tree. The stylesheet compiler and the runtime share it so
// both external stylesheet modules and document() sources go through one
// hook a caller can back with a filesystem, an HTTP client, or a fixed map
// in tests.
type DocumentLoader func(href string) (*xmlnode.Tree, error)

type compiler struct {
	loader DocumentLoader
	decl   map[string]int // per-mode declaration-order counter
}

// Compile walks an already-parsed xmlnode.Tree of XSLT source into a ready
// Stylesheet. loader may be nil if the stylesheet uses no xsl:include,
// xsl:import or document().
func Compile(tree *xmlnode.Tree, loader DocumentLoader) (*Stylesheet, error) {
	s := NewStylesheet()
	s.Tree = tree
	s.Loader = loader
	c := &compiler{loader: loader, decl: map[string]int{}}

	root := findStylesheetRoot(tree)
	if root == xmlnode.NoID {
		return nil, fmt.Errorf("xslt: no xsl:stylesheet or xsl:transform element found")
	}
	if err := c.compileModule(s, tree, root, 0); err != nil {
		return nil, err
	}
	return s, nil
}

func findStylesheetRoot(tree *xmlnode.Tree) xmlnode.ID {
	for c := range tree.Children(tree.Root) {
		n := tree.Get(c)
		if n.Kind == xmlnode.ElementNode && n.Name.URI == XSLNamespace &&
			(n.Name.Local == "stylesheet" || n.Name.Local == "transform") {
			return c
		}
	}
	return xmlnode.NoID
}

// compileModule compiles one xsl:stylesheet element's direct children at the
// given import precedence. xsl:include reuses precedence; xsl:import always
// gets a strictly lower precedence than the importing module.
func (c *compiler) compileModule(s *Stylesheet, tree *xmlnode.Tree, root xmlnode.ID, precedence int) error {
	if precedence > s.ImportPrecedence {
		s.ImportPrecedence = precedence
	}
	for prefix, uri := range nsMap(tree, root) {
		s.NS[prefix] = uri
	}

	for child := range tree.Children(root) {
		n := tree.Get(child)
		if n.Kind != xmlnode.ElementNode || n.Name.URI != XSLNamespace {
			continue
		}
		switch n.Name.Local {
		case "import", "include":
			href, _ := attrVal(tree, child, "href")
			if c.loader == nil {
				return fmt.Errorf("xslt: xsl:%s href=%q but no DocumentLoader was configured", n.Name.Local, href)
			}
			included, err := c.loader(href)
			if err != nil {
				return fmt.Errorf("xslt: loading %q: %w", href, err)
			}
			incRoot := findStylesheetRoot(included)
			if incRoot == xmlnode.NoID {
				return fmt.Errorf("xslt: %q has no xsl:stylesheet root", href)
			}
			childPrecedence := precedence
			if n.Name.Local == "import" {
				childPrecedence = precedence - 1
			}
			if err := c.compileModule(s, included, incRoot, childPrecedence); err != nil {
				return err
			}
		case "template":
			t, err := c.compileTemplate(s, tree, child, precedence)
			if err != nil {
				return err
			}
			if t.Name != "" {
				s.NamedTemplates[t.Name] = t
			}
			if t.Match != nil {
				m := s.mode(t.Mode)
				m.Templates = append(m.Templates, t)
			}
		case "variable", "param":
			b, name, err := c.compileGlobalBinding(tree, child, n.Name.Local == "param")
			if err != nil {
				return err
			}
			s.Variables[name] = b
		case "attribute-set":
			as, err := c.compileAttributeSet(tree, child)
			if err != nil {
				return err
			}
			s.AttributeSets[as.Name] = as
		case "key":
			k, err := c.compileKey(tree, child)
			if err != nil {
				return err
			}
			s.Keys[k.Name] = append(s.Keys[k.Name], k)
		case "decimal-format":
			name, df, err := compileDecimalFormat(tree, child)
			if err != nil {
				return err
			}
			s.DecimalFormats[name] = df
		case "strip-space":
			names, err := compileNameTests(tree, child, "elements")
			if err != nil {
				return err
			}
			s.StripSpace = append(s.StripSpace, names...)
		case "preserve-space":
			names, err := compileNameTests(tree, child, "elements")
			if err != nil {
				return err
			}
			s.PreserveSpace = append(s.PreserveSpace, names...)
		case "output":
			if err := compileOutput(tree, child, &s.Output); err != nil {
				return err
			}
		case "namespace-alias":
			stylesheetPrefix, _ := attrVal(tree, child, "stylesheet-prefix")
			resultPrefix, _ := attrVal(tree, child, "result-prefix")
			if s.NamespaceAliases == nil {
				s.NamespaceAliases = map[string]string{}
			}
			s.NamespaceAliases[stylesheetPrefix] = resultPrefix
		}
	}
	return nil
}

func (c *compiler) compileTemplate(s *Stylesheet, tree *xmlnode.Tree, el xmlnode.ID, precedence int) (*Template, error) {
	t := &Template{ImportPrecedence: precedence}

	if name, ok := attrVal(tree, el, "name"); ok {
		t.Name = name
	}
	if match, ok := attrVal(tree, el, "match"); ok {
		p, err := CompilePattern(match)
		if err != nil {
			return nil, err
		}
		t.Match = p
		if mode, ok := attrVal(tree, el, "mode"); ok {
			t.Mode = mode
		}
		t.DeclOrder = c.decl[t.Mode]
		c.decl[t.Mode]++
	}
	if pr, ok := attrVal(tree, el, "priority"); ok {
		f, err := strconv.ParseFloat(pr, 64)
		if err != nil {
			return nil, fmt.Errorf("xslt: bad @priority %q: %w", pr, err)
		}
		t.Priority, t.HasPriority = f, true
	}

	skip := 0
	for child := range tree.Children(el) {
		n := tree.Get(child)
		if n.Kind == xmlnode.TextNode && isWS(n.Value) {
			skip++
			continue
		}
		if n.Kind == xmlnode.ElementNode && n.Name.URI == XSLNamespace && n.Name.Local == "param" {
			wp, err := compileParamDecl(tree, child)
			if err != nil {
				return nil, err
			}
			t.Params = append(t.Params, wp)
			skip++
			continue
		}
		break // xsl:param children must come first; everything else is body
	}
	body, err := compileBodyFrom(tree, el, skip)
	if err != nil {
		return nil, err
	}
	t.Body = body
	return t, nil
}

func compileParamDecl(tree *xmlnode.Tree, el xmlnode.ID) (WithParam, error) {
	name, _ := attrVal(tree, el, "name")
	wp := WithParam{Name: name}
	if sel, ok := attrVal(tree, el, "select"); ok {
		expr, err := xpath.Parse(sel)
		if err != nil {
			return WithParam{}, err
		}
		wp.Select = expr
		return wp, nil
	}
	body, err := compileBody(tree, el)
	if err != nil {
		return WithParam{}, err
	}
	wp.Body = body
	return wp, nil
}

// compileBodyFrom compiles el's children starting at the skip-th, used to
// skip past a template's leading xsl:param declarations.
func compileBodyFrom(tree *xmlnode.Tree, el xmlnode.ID, skip int) ([]Instr, error) {
	var out []Instr
	i := 0
	for child := range tree.Children(el) {
		if i < skip {
			i++
			continue
		}
		i++
		instrs, err := compileChild(tree, child)
		if err != nil {
			return nil, err
		}
		out = append(out, instrs...)
	}
	return out, nil
}

func (c *compiler) compileGlobalBinding(tree *xmlnode.Tree, el xmlnode.ID, isParam bool) (*GlobalBinding, string, error) {
	name, _ := attrVal(tree, el, "name")
	b := &GlobalBinding{Name: name}
	if sel, ok := attrVal(tree, el, "select"); ok {
		expr, err := xpath.Parse(sel)
		if err != nil {
			return nil, "", err
		}
		b.Select = expr
		return b, name, nil
	}
	body, err := compileBody(tree, el)
	if err != nil {
		return nil, "", err
	}
	if len(body) == 0 && isParam {
		b.Required = true
	}
	b.Body = body
	return b, name, nil
}

func (c *compiler) compileAttributeSet(tree *xmlnode.Tree, el xmlnode.ID) (*AttributeSet, error) {
	name, _ := attrVal(tree, el, "name")
	as := &AttributeSet{Name: name}
	if uses, ok := attrVal(tree, el, "use-attribute-sets"); ok {
		as.Uses = strings.Fields(uses)
	}
	for child := range tree.Children(el) {
		n := tree.Get(child)
		if n.Kind != xmlnode.ElementNode || n.Name.URI != XSLNamespace || n.Name.Local != "attribute" {
			continue
		}
		attr, err := compileAttributeInstr(tree, child)
		if err != nil {
			return nil, err
		}
		as.Attrs = append(as.Attrs, attr)
	}
	return as, nil
}

func (c *compiler) compileKey(tree *xmlnode.Tree, el xmlnode.ID) (*Key, error) {
	name, _ := attrVal(tree, el, "name")
	match, _ := attrVal(tree, el, "match")
	use, _ := attrVal(tree, el, "use")
	p, err := CompilePattern(match)
	if err != nil {
		return nil, err
	}
	useExpr, err := xpath.Parse(use)
	if err != nil {
		return nil, err
	}
	return &Key{Name: name, Match: p, Use: useExpr}, nil
}

func compileDecimalFormat(tree *xmlnode.Tree, el xmlnode.ID) (string, DecimalFormat, error) {
	df := xpath.DefaultDecimalFormat()
	name, _ := attrVal(tree, el, "name")
	setRune := func(attr string, dst *rune) {
		if v, ok := attrVal(tree, el, attr); ok && v != "" {
			*dst = []rune(v)[0]
		}
	}
	setStr := func(attr string, dst *string) {
		if v, ok := attrVal(tree, el, attr); ok {
			*dst = v
		}
	}
	setRune("decimal-separator", &df.DecimalSeparator)
	setRune("grouping-separator", &df.GroupingSeparator)
	setRune("minus-sign", &df.Minus)
	setRune("percent", &df.Percent)
	setRune("per-mille", &df.PerMille)
	setRune("zero-digit", &df.Zero)
	setRune("digit", &df.Digit)
	setRune("pattern-separator", &df.PatternSeparator)
	setStr("infinity", &df.Infinity)
	setStr("NaN", &df.NaN)
	return name, df, nil
}

func compileNameTests(tree *xmlnode.Tree, el xmlnode.ID, attr string) ([]xmlnode.Name, error) {
	v, _ := attrVal(tree, el, attr)
	ns := nsMap(tree, el)
	var out []xmlnode.Name
	for _, tok := range strings.Fields(v) {
		if tok == "*" {
			out = append(out, xmlnode.Name{Local: "*"})
			continue
		}
		if strings.HasSuffix(tok, ":*") {
			prefix := strings.TrimSuffix(tok, ":*")
			out = append(out, xmlnode.Name{URI: ns[prefix], Local: "*"})
			continue
		}
		prefix, local := "", tok
		if i := strings.IndexByte(tok, ':'); i >= 0 {
			prefix, local = tok[:i], tok[i+1:]
		}
		out = append(out, xmlnode.Name{URI: ns[prefix], Local: local})
	}
	return out, nil
}

func compileOutput(tree *xmlnode.Tree, el xmlnode.ID, out *Output) error {
	if v, ok := attrVal(tree, el, "method"); ok {
		out.Method = v
	}
	if v, ok := attrVal(tree, el, "version"); ok {
		out.Version = v
	}
	if v, ok := attrVal(tree, el, "encoding"); ok {
		out.Encoding = v
	}
	if v, ok := attrVal(tree, el, "omit-xml-declaration"); ok {
		out.OmitXMLDeclaration = v == "yes"
	}
	if v, ok := attrVal(tree, el, "indent"); ok {
		out.Indent = v == "yes"
	}
	if v, ok := attrVal(tree, el, "doctype-public"); ok {
		out.DoctypePublic = v
	}
	if v, ok := attrVal(tree, el, "doctype-system"); ok {
		out.DoctypeSystem = v
	}
	if v, ok := attrVal(tree, el, "standalone"); ok {
		out.StandaloneSet = true
		out.StandaloneYes = v == "yes"
	}
	if _, ok := attrVal(tree, el, "cdata-section-elements"); ok {
		names, err := compileNameTests(tree, el, "cdata-section-elements")
		if err != nil {
			return err
		}
		out.CDataSectionElements = append(out.CDataSectionElements, names...)
	}
	return nil
}

// --- template/attribute-set body compilation ---------------------------

func compileBody(tree *xmlnode.Tree, el xmlnode.ID) ([]Instr, error) {
	return compileBodyFrom(tree, el, 0)
}

func compileChild(tree *xmlnode.Tree, id xmlnode.ID) ([]Instr, error) {
	n := tree.Get(id)
	switch n.Kind {
	case xmlnode.TextNode:
		if isWS(n.Value) {
			return nil, nil
		}
		return []Instr{LiteralText{Value: n.Value}}, nil
	case xmlnode.CommentNode, xmlnode.PINode:
		return nil, nil // stylesheet's own comments/PIs are not part of any template body
	case xmlnode.ElementNode:
		if n.Name.URI == XSLNamespace {
			instr, err := compileXSLInstr(tree, id, n.Name.Local)
			if err != nil {
				return nil, err
			}
			if instr == nil {
				return nil, nil
			}
			return []Instr{instr}, nil
		}
		le, err := compileLiteralElement(tree, id)
		if err != nil {
			return nil, err
		}
		return []Instr{le}, nil
	default:
		return nil, nil
	}
}

func isWS(s string) bool {
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}

func compileXSLInstr(tree *xmlnode.Tree, el xmlnode.ID, local string) (Instr, error) {
	switch local {
	case "apply-templates":
		return compileApplyTemplates(tree, el)
	case "call-template":
		return compileCallTemplate(tree, el)
	case "for-each":
		return compileForEach(tree, el)
	case "variable":
		return compileVariableOrParam(tree, el, false)
	case "param":
		return compileVariableOrParam(tree, el, true)
	case "if":
		return compileIf(tree, el)
	case "choose":
		return compileChoose(tree, el)
	case "copy":
		return compileCopy(tree, el)
	case "copy-of":
		return compileCopyOf(tree, el)
	case "element":
		return compileElement(tree, el)
	case "attribute":
		return compileAttributeInstr(tree, el)
	case "text":
		return compileText(tree, el)
	case "value-of":
		return compileValueOf(tree, el)
	case "number":
		return compileNumber(tree, el)
	case "message":
		return compileMessage(tree, el)
	case "comment":
		body, err := compileBody(tree, el)
		if err != nil {
			return nil, err
		}
		return CommentInstr{Body: body}, nil
	case "processing-instruction":
		return compilePI(tree, el)
	case "apply-imports":
		return ApplyImports{}, nil
	case "fallback":
		return nil, nil // unknown-instruction recovery content; nothing to run when the instruction above it is known
	default:
		return nil, fmt.Errorf("xslt: unsupported instruction xsl:%s", local)
	}
}

func compileApplyTemplates(tree *xmlnode.Tree, el xmlnode.ID) (Instr, error) {
	at := ApplyTemplates{}
	if sel, ok := attrVal(tree, el, "select"); ok {
		expr, err := xpath.Parse(sel)
		if err != nil {
			return nil, err
		}
		at.Select = expr
	}
	if mode, ok := attrVal(tree, el, "mode"); ok {
		at.Mode = mode
	}
	for child := range tree.Children(el) {
		n := tree.Get(child)
		if n.Kind != xmlnode.ElementNode || n.Name.URI != XSLNamespace {
			continue
		}
		switch n.Name.Local {
		case "sort":
			sk, err := compileSort(tree, child)
			if err != nil {
				return nil, err
			}
			at.Sort = append(at.Sort, sk)
		case "with-param":
			wp, err := compileParamDecl(tree, child)
			if err != nil {
				return nil, err
			}
			at.Params = append(at.Params, wp)
		}
	}
	return at, nil
}

func compileCallTemplate(tree *xmlnode.Tree, el xmlnode.ID) (Instr, error) {
	name, _ := attrVal(tree, el, "name")
	ct := CallTemplate{Name: name}
	for child := range tree.Children(el) {
		n := tree.Get(child)
		if n.Kind == xmlnode.ElementNode && n.Name.URI == XSLNamespace && n.Name.Local == "with-param" {
			wp, err := compileParamDecl(tree, child)
			if err != nil {
				return nil, err
			}
			ct.Params = append(ct.Params, wp)
		}
	}
	return ct, nil
}

func compileForEach(tree *xmlnode.Tree, el xmlnode.ID) (Instr, error) {
	sel, _ := attrVal(tree, el, "select")
	expr, err := xpath.Parse(sel)
	if err != nil {
		return nil, err
	}
	fe := ForEach{Select: expr}
	skip := 0
	for child := range tree.Children(el) {
		n := tree.Get(child)
		if n.Kind == xmlnode.TextNode && isWS(n.Value) {
			skip++
			continue
		}
		if n.Kind == xmlnode.ElementNode && n.Name.URI == XSLNamespace && n.Name.Local == "sort" {
			sk, err := compileSort(tree, child)
			if err != nil {
				return nil, err
			}
			fe.Sort = append(fe.Sort, sk)
			skip++
			continue
		}
		break
	}
	body, err := compileBodyFrom(tree, el, skip)
	if err != nil {
		return nil, err
	}
	fe.Body = body
	return fe, nil
}

func compileSort(tree *xmlnode.Tree, el xmlnode.ID) (SortKey, error) {
	sk := SortKey{Order: "ascending", DataType: "text"}
	sel := "."
	if v, ok := attrVal(tree, el, "select"); ok {
		sel = v
	}
	expr, err := xpath.Parse(sel)
	if err != nil {
		return SortKey{}, err
	}
	sk.Select = expr
	if v, ok := attrVal(tree, el, "lang"); ok {
		avt, err := compileAVT(v)
		if err != nil {
			return SortKey{}, err
		}
		sk.Lang = avt
	}
	if v, ok := attrVal(tree, el, "data-type"); ok {
		sk.DataType = v
	}
	if v, ok := attrVal(tree, el, "order"); ok {
		sk.Order = v
	}
	if v, ok := attrVal(tree, el, "case-order"); ok {
		sk.CaseOrder = v
	}
	return sk, nil
}

func compileVariableOrParam(tree *xmlnode.Tree, el xmlnode.ID, isParam bool) (Instr, error) {
	name, _ := attrVal(tree, el, "name")
	v := VariableInstr{Name: name, IsParam: isParam}
	if sel, ok := attrVal(tree, el, "select"); ok {
		expr, err := xpath.Parse(sel)
		if err != nil {
			return nil, err
		}
		v.Select = expr
		return v, nil
	}
	body, err := compileBody(tree, el)
	if err != nil {
		return nil, err
	}
	v.Body = body
	if isParam && len(body) == 0 {
		v.Required = true
	}
	return v, nil
}

func compileIf(tree *xmlnode.Tree, el xmlnode.ID) (Instr, error) {
	test, _ := attrVal(tree, el, "test")
	expr, err := xpath.Parse(test)
	if err != nil {
		return nil, err
	}
	body, err := compileBody(tree, el)
	if err != nil {
		return nil, err
	}
	return IfInstr{Test: expr, Body: body}, nil
}

func compileChoose(tree *xmlnode.Tree, el xmlnode.ID) (Instr, error) {
	var ch ChooseInstr
	for child := range tree.Children(el) {
		n := tree.Get(child)
		if n.Kind != xmlnode.ElementNode || n.Name.URI != XSLNamespace {
			continue
		}
		switch n.Name.Local {
		case "when":
			test, _ := attrVal(tree, child, "test")
			expr, err := xpath.Parse(test)
			if err != nil {
				return nil, err
			}
			body, err := compileBody(tree, child)
			if err != nil {
				return nil, err
			}
			ch.Whens = append(ch.Whens, WhenClause{Test: expr, Body: body})
		case "otherwise":
			body, err := compileBody(tree, child)
			if err != nil {
				return nil, err
			}
			ch.Otherwise = body
		}
	}
	return ch, nil
}

func compileCopy(tree *xmlnode.Tree, el xmlnode.ID) (Instr, error) {
	ci := CopyInstr{}
	if uses, ok := attrVal(tree, el, "use-attribute-sets"); ok {
		ci.UseSets = strings.Fields(uses)
	}
	body, err := compileBody(tree, el)
	if err != nil {
		return nil, err
	}
	ci.Body = body
	return ci, nil
}

func compileCopyOf(tree *xmlnode.Tree, el xmlnode.ID) (Instr, error) {
	sel, _ := attrVal(tree, el, "select")
	expr, err := xpath.Parse(sel)
	if err != nil {
		return nil, err
	}
	return CopyOfInstr{Select: expr}, nil
}

func compileElement(tree *xmlnode.Tree, el xmlnode.ID) (Instr, error) {
	name, _ := attrVal(tree, el, "name")
	nameAVT, err := compileAVT(name)
	if err != nil {
		return nil, err
	}
	ei := ElementInstr{Name: nameAVT}
	if ns, ok := attrVal(tree, el, "namespace"); ok {
		nsAVT, err := compileAVT(ns)
		if err != nil {
			return nil, err
		}
		ei.Namespace = nsAVT
	}
	if uses, ok := attrVal(tree, el, "use-attribute-sets"); ok {
		ei.UseSets = strings.Fields(uses)
	}
	body, err := compileBody(tree, el)
	if err != nil {
		return nil, err
	}
	ei.Body = body
	return ei, nil
}

func compileAttributeInstr(tree *xmlnode.Tree, el xmlnode.ID) (AttributeInstr, error) {
	name, _ := attrVal(tree, el, "name")
	nameAVT, err := compileAVT(name)
	if err != nil {
		return AttributeInstr{}, err
	}
	ai := AttributeInstr{Name: nameAVT}
	if ns, ok := attrVal(tree, el, "namespace"); ok {
		nsAVT, err := compileAVT(ns)
		if err != nil {
			return AttributeInstr{}, err
		}
		ai.Namespace = nsAVT
	}
	body, err := compileBody(tree, el)
	if err != nil {
		return AttributeInstr{}, err
	}
	ai.Body = body
	return ai, nil
}

func compileText(tree *xmlnode.Tree, el xmlnode.ID) (Instr, error) {
	doe, _ := attrVal(tree, el, "disable-output-escaping")
	var sb strings.Builder
	for child := range tree.Children(el) {
		n := tree.Get(child)
		if n.Kind == xmlnode.TextNode {
			sb.WriteString(n.Value)
		}
	}
	return TextInstr{Value: sb.String(), DisableOutputEscaping: doe == "yes"}, nil
}

func compileValueOf(tree *xmlnode.Tree, el xmlnode.ID) (Instr, error) {
	sel, _ := attrVal(tree, el, "select")
	expr, err := xpath.Parse(sel)
	if err != nil {
		return nil, err
	}
	doe, _ := attrVal(tree, el, "disable-output-escaping")
	return ValueOfInstr{Select: expr, DisableOutputEscaping: doe == "yes"}, nil
}

func compileNumber(tree *xmlnode.Tree, el xmlnode.ID) (Instr, error) {
	ni := NumberInstr{Level: "single"}
	if v, ok := attrVal(tree, el, "value"); ok {
		expr, err := xpath.Parse(v)
		if err != nil {
			return nil, err
		}
		ni.Value = expr
	}
	if v, ok := attrVal(tree, el, "level"); ok {
		ni.Level = v
	}
	if v, ok := attrVal(tree, el, "count"); ok {
		p, err := CompilePattern(v)
		if err != nil {
			return nil, err
		}
		ni.Count = p
	}
	if v, ok := attrVal(tree, el, "from"); ok {
		p, err := CompilePattern(v)
		if err != nil {
			return nil, err
		}
		ni.From = p
	}
	format := "1"
	if v, ok := attrVal(tree, el, "format"); ok {
		format = v
	}
	avt, err := compileAVT(format)
	if err != nil {
		return nil, err
	}
	ni.Format = avt
	if v, ok := attrVal(tree, el, "lang"); ok {
		avt, err := compileAVT(v)
		if err != nil {
			return nil, err
		}
		ni.Lang = avt
	}
	if v, ok := attrVal(tree, el, "grouping-separator"); ok {
		avt, err := compileAVT(v)
		if err != nil {
			return nil, err
		}
		ni.GroupingSeparator = avt
	}
	if v, ok := attrVal(tree, el, "grouping-size"); ok {
		avt, err := compileAVT(v)
		if err != nil {
			return nil, err
		}
		ni.GroupingSize = avt
	}
	return ni, nil
}

func compileMessage(tree *xmlnode.Tree, el xmlnode.ID) (Instr, error) {
	term, _ := attrVal(tree, el, "terminate")
	body, err := compileBody(tree, el)
	if err != nil {
		return nil, err
	}
	return MessageInstr{Terminate: term == "yes", Body: body}, nil
}

func compilePI(tree *xmlnode.Tree, el xmlnode.ID) (Instr, error) {
	name, _ := attrVal(tree, el, "name")
	avt, err := compileAVT(name)
	if err != nil {
		return nil, err
	}
	body, err := compileBody(tree, el)
	if err != nil {
		return nil, err
	}
	return PIInstr{Name: avt, Body: body}, nil
}

func compileLiteralElement(tree *xmlnode.Tree, el xmlnode.ID) (Instr, error) {
	n := tree.Get(el)
	le := LiteralElement{Name: n.Name, Prefix: n.Prefix, NSBindings: map[string]string{}}

	ownNS := nsMap(tree, el)
	parentNS := map[string]string{}
	if n.Parent != xmlnode.NoID {
		parentNS = nsMap(tree, n.Parent)
	}
	for prefix, uri := range ownNS {
		if parentNS[prefix] != uri {
			le.NSBindings[prefix] = uri
		}
	}

	for _, aid := range n.Attrs {
		a := tree.Get(aid)
		if a.Name.URI == XSLNamespace && a.Name.Local == "use-attribute-sets" {
			le.UseSets = strings.Fields(a.Value)
			continue
		}
		if a.Name.URI == XSLNamespace {
			continue // other xsl:* attributes on a literal element (version, exclude-result-prefixes, ...) are not copied to the result
		}
		avt, err := compileAVT(a.Value)
		if err != nil {
			return nil, err
		}
		le.Attrs = append(le.Attrs, LiteralAttr{Name: a.Name, Value: avt})
	}

	body, err := compileBody(tree, el)
	if err != nil {
		return nil, err
	}
	le.Body = body
	return le, nil
}

// --- small helpers -------------------------------------------------------

func attrVal(tree *xmlnode.Tree, el xmlnode.ID, local string) (string, bool) {
	n := tree.Get(el)
	for _, aid := range n.Attrs {
		a := tree.Get(aid)
		if a.Name.URI == "" && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// nsMap returns the full prefix->URI map in scope at el (the Builder already
// copies the complete in-scope set onto every element's own NS list).
func nsMap(tree *xmlnode.Tree, el xmlnode.ID) map[string]string {
	n := tree.Get(el)
	m := make(map[string]string, len(n.NS))
	for _, nsid := range n.NS {
		ns := tree.Get(nsid)
		m[ns.Name.Local] = ns.Value
	}
	return m
}
