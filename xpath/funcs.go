package xpath

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/arturoeanton/go-xslt/xmlnode"
	"github.com/google/uuid"
)

// Func is one built-in (or extension) function implementation: it receives
// the already-evaluated argument values and the calling context, and must
// validate its own arity/types (spec §4.6's error kinds: undefined
// function, wrong arity, type error).
type Func func(ctx *Context, args []Value) (Value, error)

// FuncLibrary resolves a function's local name to an implementation (a
// call's prefix is not consulted). The xslt package copies CoreLibrary and
// adds key(), document() and unparsed-entity-uri(), and replaces
// format-number() with a version that reads named xsl:decimal-format
// declarations.
type FuncLibrary map[string]Func

func evalFuncCall(n FuncCall, ctx *Context) (Value, error) {
	fn, ok := ctx.Funcs[n.Name]
	if !ok {
		return Value{}, fmt.Errorf("xpath: undefined function %s()", n.Name)
	}
	// last()/position()/string() etc. treat a missing argument as the
	// context node/item, handled inside each function body via len(args)
	// and ctx, so arguments are simply evaluated eagerly here.
	args := make([]Value, len(n.Args))
	for i, a := range n.Args {
		v, err := Eval(a, ctx)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	return fn(ctx, args)
}

func arityError(name string, args []Value, want string) error {
	return fmt.Errorf("xpath: %s() takes %s arguments, got %d", name, want, len(args))
}

// CoreLibrary implements the XPath 1.0 required function set plus the
// 2.0/3.0 optional tier named in spec §4.6. XSLT's Context.Funcs is built by
// copying this map and layering its own extension functions on top.
func CoreLibrary() FuncLibrary {
	lib := FuncLibrary{}

	lib["string"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) == 0 {
			return StringValue(ctx.Tree.StringValue(ctx.Node)), nil
		}
		if len(args) != 1 {
			return Value{}, arityError("string", args, "0 or 1")
		}
		return StringValue(args[0].AsString()), nil
	}
	lib["concat"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) < 2 {
			return Value{}, arityError("concat", args, "2 or more")
		}
		var sb strings.Builder
		for _, a := range args {
			sb.WriteString(a.AsString())
		}
		return StringValue(sb.String()), nil
	}
	lib["starts-with"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 2 {
			return Value{}, arityError("starts-with", args, "2")
		}
		return BoolValue(strings.HasPrefix(args[0].AsString(), args[1].AsString())), nil
	}
	lib["contains"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 2 {
			return Value{}, arityError("contains", args, "2")
		}
		return BoolValue(strings.Contains(args[0].AsString(), args[1].AsString())), nil
	}
	lib["substring-before"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 2 {
			return Value{}, arityError("substring-before", args, "2")
		}
		s, sep := args[0].AsString(), args[1].AsString()
		if sep == "" {
			return StringValue(""), nil
		}
		i := strings.Index(s, sep)
		if i < 0 {
			return StringValue(""), nil
		}
		return StringValue(s[:i]), nil
	}
	lib["substring-after"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 2 {
			return Value{}, arityError("substring-after", args, "2")
		}
		s, sep := args[0].AsString(), args[1].AsString()
		if sep == "" {
			return StringValue(s), nil
		}
		i := strings.Index(s, sep)
		if i < 0 {
			return StringValue(""), nil
		}
		return StringValue(s[i+len(sep):]), nil
	}
	lib["substring"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 2 && len(args) != 3 {
			return Value{}, arityError("substring", args, "2 or 3")
		}
		return substring(args)
	}
	lib["string-length"] = func(ctx *Context, args []Value) (Value, error) {
		s := ctx.Tree.StringValue(ctx.Node)
		if len(args) == 1 {
			s = args[0].AsString()
		} else if len(args) != 0 {
			return Value{}, arityError("string-length", args, "0 or 1")
		}
		return NumberValue(float64(len([]rune(s)))), nil
	}
	lib["normalize-space"] = func(ctx *Context, args []Value) (Value, error) {
		s := ctx.Tree.StringValue(ctx.Node)
		if len(args) == 1 {
			s = args[0].AsString()
		} else if len(args) != 0 {
			return Value{}, arityError("normalize-space", args, "0 or 1")
		}
		return StringValue(strings.Join(strings.Fields(s), " ")), nil
	}
	lib["translate"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 3 {
			return Value{}, arityError("translate", args, "3")
		}
		src, from, to := []rune(args[0].AsString()), []rune(args[1].AsString()), []rune(args[2].AsString())
		var sb strings.Builder
		for _, r := range src {
			idx := -1
			for i, f := range from {
				if f == r {
					idx = i
					break
				}
			}
			if idx < 0 {
				sb.WriteRune(r)
			} else if idx < len(to) {
				sb.WriteRune(to[idx])
			}
		}
		return StringValue(sb.String()), nil
	}
	lib["boolean"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("boolean", args, "1")
		}
		return BoolValue(args[0].AsBoolean()), nil
	}
	lib["not"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("not", args, "1")
		}
		return BoolValue(!args[0].AsBoolean()), nil
	}
	lib["true"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 0 {
			return Value{}, arityError("true", args, "0")
		}
		return BoolValue(true), nil
	}
	lib["false"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 0 {
			return Value{}, arityError("false", args, "0")
		}
		return BoolValue(false), nil
	}
	lib["lang"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("lang", args, "1")
		}
		want := strings.ToLower(args[0].AsString())
		for id := ctx.Node; id != xmlnode.NoID; id = ctx.Tree.Get(id).Parent {
			node := ctx.Tree.Get(id)
			for _, aid := range node.Attrs {
				a := ctx.Tree.Get(aid)
				if a.Name.Local == "lang" && a.Name.URI == "http://www.w3.org/XML/1998/namespace" {
					have := strings.ToLower(a.Value)
					return BoolValue(have == want || strings.HasPrefix(have, want+"-")), nil
				}
			}
		}
		return BoolValue(false), nil
	}
	lib["number"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) == 0 {
			return NumberValue(StringValue(ctx.Tree.StringValue(ctx.Node)).AsNumber()), nil
		}
		if len(args) != 1 {
			return Value{}, arityError("number", args, "0 or 1")
		}
		return NumberValue(args[0].AsNumber()), nil
	}
	lib["sum"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("sum", args, "1")
		}
		ns, err := args[0].AsNodeSet()
		if err != nil {
			return Value{}, err
		}
		total := 0.0
		for _, id := range ns.IDs {
			total += parseXPathNumber(ns.Tree.StringValue(id))
		}
		return NumberValue(total), nil
	}
	lib["floor"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("floor", args, "1")
		}
		return NumberValue(math.Floor(args[0].AsNumber())), nil
	}
	lib["ceiling"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("ceiling", args, "1")
		}
		return NumberValue(math.Ceil(args[0].AsNumber())), nil
	}
	lib["round"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("round", args, "1")
		}
		n := args[0].AsNumber()
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return NumberValue(n), nil
		}
		return NumberValue(math.Floor(n + 0.5)), nil
	}
	lib["last"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 0 {
			return Value{}, arityError("last", args, "0")
		}
		return NumberValue(float64(ctx.Size)), nil
	}
	lib["position"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 0 {
			return Value{}, arityError("position", args, "0")
		}
		return NumberValue(float64(ctx.Pos)), nil
	}
	lib["count"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("count", args, "1")
		}
		ns, err := args[0].AsNodeSet()
		if err != nil {
			return Value{}, err
		}
		return NumberValue(float64(len(ns.IDs))), nil
	}
	lib["id"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("id", args, "1")
		}
		var tokens []string
		if args[0].Type == TypeNodeSet {
			for _, nid := range args[0].Nodes.IDs {
				tokens = append(tokens, strings.Fields(args[0].Nodes.Tree.StringValue(nid))...)
			}
		} else {
			tokens = strings.Fields(args[0].AsString())
		}
		want := make(map[string]bool, len(tokens))
		for _, t := range tokens {
			want[t] = true
		}
		var out []xmlnode.ID
		for id := range ctx.Tree.Iterate(xmlnode.DescendantOrSelf, ctx.Tree.Root) {
			n := ctx.Tree.Get(id)
			if n.Kind != xmlnode.ElementNode {
				continue
			}
			for _, aid := range n.Attrs {
				a := ctx.Tree.Get(aid)
				if a.Name.Local == "id" && want[a.Value] {
					out = append(out, id)
					break
				}
			}
		}
		sortAsc(ctx.Tree, out)
		return NodeSetValue(ctx.Tree, out), nil
	}
	lib["local-name"] = func(ctx *Context, args []Value) (Value, error) {
		id, ok, err := nodeArgOrContext(ctx, args, "local-name")
		if err != nil {
			return Value{}, err
		}
		if !ok {
			return StringValue(""), nil
		}
		return StringValue(ctx.Tree.Get(id).Name.Local), nil
	}
	lib["namespace-uri"] = func(ctx *Context, args []Value) (Value, error) {
		id, ok, err := nodeArgOrContext(ctx, args, "namespace-uri")
		if err != nil {
			return Value{}, err
		}
		if !ok {
			return StringValue(""), nil
		}
		return StringValue(ctx.Tree.Get(id).Name.URI), nil
	}
	lib["name"] = func(ctx *Context, args []Value) (Value, error) {
		id, ok, err := nodeArgOrContext(ctx, args, "name")
		if err != nil {
			return Value{}, err
		}
		if !ok {
			return StringValue(""), nil
		}
		n := ctx.Tree.Get(id)
		if n.Prefix == "" {
			return StringValue(n.Name.Local), nil
		}
		return StringValue(n.Prefix + ":" + n.Name.Local), nil
	}
	lib["generate-id"] = func(ctx *Context, args []Value) (Value, error) {
		id, ok, err := nodeArgOrContext(ctx, args, "generate-id")
		if err != nil {
			return Value{}, err
		}
		if !ok {
			return StringValue(""), nil
		}
		return StringValue(fmt.Sprintf("id%d", id)), nil
	}
	lib["system-property"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("system-property", args, "1")
		}
		switch args[0].AsString() {
		case "xsl:version":
			return StringValue("3.0"), nil
		case "xsl:vendor":
			return StringValue("go-xslt"), nil
		case "xsl:vendor-url":
			return StringValue("https://github.com/arturoeanton/go-xslt"), nil
		}
		return StringValue(""), nil
	}
	lib["function-available"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("function-available", args, "1")
		}
		_, ok := ctx.Funcs[args[0].AsString()]
		return BoolValue(ok), nil
	}
	lib["element-available"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("element-available", args, "1")
		}
		return BoolValue(strings.HasPrefix(args[0].AsString(), "xsl:")), nil
	}
	lib["current"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 0 {
			return Value{}, arityError("current", args, "0")
		}
		return NodeSetValue(ctx.Tree, []xmlnode.ID{ctx.Node}), nil
	}
	lib["format-number"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 2 && len(args) != 3 {
			return Value{}, arityError("format-number", args, "2 or 3")
		}
		return StringValue(FormatPicture(args[0].AsNumber(), args[1].AsString())), nil
	}

	// XPath 2.0+ optional tier (spec §4.6).
	lib["string-join"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 2 {
			return Value{}, arityError("string-join", args, "2")
		}
		items := sequenceItems(args[0], ctx)
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = it.AsString()
		}
		return StringValue(strings.Join(parts, args[1].AsString())), nil
	}
	lib["upper-case"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("upper-case", args, "1")
		}
		return StringValue(strings.ToUpper(args[0].AsString())), nil
	}
	lib["lower-case"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("lower-case", args, "1")
		}
		return StringValue(strings.ToLower(args[0].AsString())), nil
	}
	lib["ends-with"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 2 {
			return Value{}, arityError("ends-with", args, "2")
		}
		return BoolValue(strings.HasSuffix(args[0].AsString(), args[1].AsString())), nil
	}
	lib["matches"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 2 {
			return Value{}, arityError("matches", args, "2")
		}
		re, err := regexp.Compile(args[1].AsString())
		if err != nil {
			return Value{}, fmt.Errorf("xpath: invalid regex in matches(): %w", err)
		}
		return BoolValue(re.MatchString(args[0].AsString())), nil
	}
	lib["replace"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 3 {
			return Value{}, arityError("replace", args, "3")
		}
		re, err := regexp.Compile(args[1].AsString())
		if err != nil {
			return Value{}, fmt.Errorf("xpath: invalid regex in replace(): %w", err)
		}
		repl := convertXPathReplacement(args[2].AsString())
		return StringValue(re.ReplaceAllString(args[0].AsString(), repl)), nil
	}
	lib["tokenize"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 2 {
			return Value{}, arityError("tokenize", args, "2")
		}
		re, err := regexp.Compile(args[1].AsString())
		if err != nil {
			return Value{}, fmt.Errorf("xpath: invalid regex in tokenize(): %w", err)
		}
		parts := re.Split(args[0].AsString(), -1)
		items := make([]Value, len(parts))
		for i, p := range parts {
			items[i] = StringValue(p)
		}
		return SequenceValue(items), nil
	}
	lib["compare"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 2 {
			return Value{}, arityError("compare", args, "2")
		}
		return NumberValue(float64(strings.Compare(args[0].AsString(), args[1].AsString()))), nil
	}
	lib["codepoints-to-string"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("codepoints-to-string", args, "1")
		}
		var sb strings.Builder
		for _, it := range sequenceItems(args[0], ctx) {
			sb.WriteRune(rune(int(it.AsNumber())))
		}
		return StringValue(sb.String()), nil
	}
	lib["string-to-codepoints"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("string-to-codepoints", args, "1")
		}
		var items []Value
		for _, r := range args[0].AsString() {
			items = append(items, NumberValue(float64(r)))
		}
		return SequenceValue(items), nil
	}
	lib["abs"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("abs", args, "1")
		}
		return NumberValue(math.Abs(args[0].AsNumber())), nil
	}
	lib["min"] = func(ctx *Context, args []Value) (Value, error) {
		return aggregateNumbers(ctx, args, "min", math.Min, math.Inf(1))
	}
	lib["max"] = func(ctx *Context, args []Value) (Value, error) {
		return aggregateNumbers(ctx, args, "max", math.Max, math.Inf(-1))
	}
	lib["avg"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("avg", args, "1")
		}
		items := sequenceItems(args[0], ctx)
		if len(items) == 0 {
			return SequenceValue(nil), nil
		}
		total := 0.0
		for _, it := range items {
			total += it.AsNumber()
		}
		return NumberValue(total / float64(len(items))), nil
	}
	lib["distinct-values"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("distinct-values", args, "1")
		}
		seen := map[string]bool{}
		var out []Value
		for _, it := range sequenceItems(args[0], ctx) {
			k := it.AsString()
			if !seen[k] {
				seen[k] = true
				out = append(out, it)
			}
		}
		return SequenceValue(out), nil
	}
	lib["exists"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("exists", args, "1")
		}
		return BoolValue(len(sequenceItems(args[0], ctx)) > 0), nil
	}
	lib["empty"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("empty", args, "1")
		}
		return BoolValue(len(sequenceItems(args[0], ctx)) == 0), nil
	}
	lib["index-of"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 2 {
			return Value{}, arityError("index-of", args, "2")
		}
		var out []Value
		for i, it := range sequenceItems(args[0], ctx) {
			if it.AsString() == args[1].AsString() {
				out = append(out, NumberValue(float64(i+1)))
			}
		}
		return SequenceValue(out), nil
	}
	lib["subsequence"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 2 && len(args) != 3 {
			return Value{}, arityError("subsequence", args, "2 or 3")
		}
		items := sequenceItems(args[0], ctx)
		start := int(math.Floor(args[1].AsNumber() + 0.5))
		end := len(items) + 1
		if len(args) == 3 {
			length := int(math.Floor(args[2].AsNumber() + 0.5))
			end = start + length
		}
		var out []Value
		for i, it := range items {
			pos := i + 1
			if pos >= start && pos < end {
				out = append(out, it)
			}
		}
		return SequenceValue(out), nil
	}
	lib["reverse"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("reverse", args, "1")
		}
		items := sequenceItems(args[0], ctx)
		out := make([]Value, len(items))
		for i, it := range items {
			out[len(items)-1-i] = it
		}
		return SequenceValue(out), nil
	}
	lib["data"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("data", args, "1")
		}
		items := sequenceItems(args[0], ctx)
		out := make([]Value, len(items))
		for i, it := range items {
			if it.Type == TypeNodeSet {
				out[i] = StringValue(it.AsString())
			} else {
				out[i] = it
			}
		}
		if len(out) == 1 {
			return out[0], nil
		}
		return SequenceValue(out), nil
	}
	lib["encode-for-uri"] = func(ctx *Context, args []Value) (Value, error) {
		if len(args) != 1 {
			return Value{}, arityError("encode-for-uri", args, "1")
		}
		return StringValue(encodeForURI(args[0].AsString())), nil
	}

	return lib
}

func nodeArgOrContext(ctx *Context, args []Value, name string) (xmlnode.ID, bool, error) {
	if len(args) == 0 {
		return ctx.Node, true, nil
	}
	if len(args) != 1 {
		return 0, false, arityError(name, args, "0 or 1")
	}
	ns, err := args[0].AsNodeSet()
	if err != nil {
		return 0, false, err
	}
	if len(ns.IDs) == 0 {
		return 0, false, nil
	}
	return ns.IDs[0], true, nil
}

func aggregateNumbers(ctx *Context, args []Value, name string, pick func(a, b float64) float64, init float64) (Value, error) {
	if len(args) != 1 {
		return Value{}, arityError(name, args, "1")
	}
	items := sequenceItems(args[0], ctx)
	if len(items) == 0 {
		return SequenceValue(nil), nil
	}
	acc := init
	for _, it := range items {
		acc = pick(acc, it.AsNumber())
	}
	return NumberValue(acc), nil
}

// substring implements the XPath rounding/NaN-safe rule from spec §4.6:
// selected positions P satisfy round(start) <= P < round(start)+round(length).
func substring(args []Value) (Value, error) {
	s := []rune(args[0].AsString())
	start := round1(args[1].AsNumber())

	end := math.Inf(1)
	if len(args) == 3 {
		length := round1(args[2].AsNumber())
		end = start + length
	}

	var out []rune
	for i, r := range s {
		p := float64(i + 1)
		if p >= start && p < end {
			out = append(out, r)
		}
	}
	return StringValue(string(out)), nil
}

func round1(f float64) float64 {
	if math.IsNaN(f) {
		return f
	}
	return math.Floor(f + 0.5)
}

func convertXPathReplacement(repl string) string {
	// XPath replacement strings use $n for group n and \$ for a literal
	// dollar; Go's regexp wants ${n} and a literal "$" doubled.
	var sb strings.Builder
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		if c == '\\' && i+1 < len(repl) && repl[i+1] == '$' {
			sb.WriteString("$$")
			i++
			continue
		}
		if c == '$' && i+1 < len(repl) && repl[i+1] >= '0' && repl[i+1] <= '9' {
			j := i + 1
			for j < len(repl) && repl[j] >= '0' && repl[j] <= '9' {
				j++
			}
			sb.WriteString("${" + repl[i+1:j] + "}")
			i = j - 1
			continue
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

func encodeForURI(s string) string {
	var sb strings.Builder
	for _, b := range []byte(s) {
		if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9') ||
			b == '-' || b == '_' || b == '.' || b == '~' {
			sb.WriteByte(b)
		} else {
			fmt.Fprintf(&sb, "%%%02X", b)
		}
	}
	return sb.String()
}

// NewResultTreeID mints a uuid-based identifier string. Nothing in this
// module calls it.
func NewResultTreeID() string {
	return uuid.NewString()
}
