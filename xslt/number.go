package xslt

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/arturoeanton/go-xslt/xmlnode"
	"github.com/arturoeanton/go-xslt/xpath"
)

// computeNumbering implements xsl:number's place-value computation (spec
// §4.8) for the three @level values.
func computeNumbering(tree *xmlnode.Tree, node xmlnode.ID, ni NumberInstr, ec *xpath.Context) ([]int, error) {
	switch ni.Level {
	case "any":
		return numberAny(tree, node, ni, ec)
	case "multiple":
		return numberMultiple(tree, node, ni, ec)
	default:
		return numberSingle(tree, node, ni, ec)
	}
}

func countMatches(tree *xmlnode.Tree, pat *Pattern, target, candidate xmlnode.ID, ec *xpath.Context) bool {
	if pat != nil {
		return pat.Matches(tree, candidate, ec)
	}
	tn, cn := tree.Get(target), tree.Get(candidate)
	if tn.Kind != cn.Kind {
		return false
	}
	if tn.Kind == xmlnode.ElementNode {
		return tn.Name == cn.Name
	}
	return true
}

func numberSingle(tree *xmlnode.Tree, node xmlnode.ID, ni NumberInstr, ec *xpath.Context) ([]int, error) {
	cur := node
	for cur != xmlnode.NoID {
		if ni.From != nil && ni.From.Matches(tree, cur, ec) && cur != node {
			return nil, nil
		}
		if countMatches(tree, ni.Count, node, cur, ec) {
			break
		}
		cur = tree.Get(cur).Parent
	}
	if cur == xmlnode.NoID {
		return nil, nil
	}
	pos := 1
	for s := tree.Get(cur).PrevSibling; s != xmlnode.NoID; s = tree.Get(s).PrevSibling {
		if countMatches(tree, ni.Count, node, s, ec) {
			pos++
		}
	}
	return []int{pos}, nil
}

func numberMultiple(tree *xmlnode.Tree, node xmlnode.ID, ni NumberInstr, ec *xpath.Context) ([]int, error) {
	var chain []xmlnode.ID
	cur := node
	for cur != xmlnode.NoID {
		if ni.From != nil && ni.From.Matches(tree, cur, ec) {
			break
		}
		if countMatches(tree, ni.Count, node, cur, ec) {
			chain = append(chain, cur)
		}
		cur = tree.Get(cur).Parent
	}
	out := make([]int, len(chain))
	for i, n := range chain {
		pos := 1
		for s := tree.Get(n).PrevSibling; s != xmlnode.NoID; s = tree.Get(s).PrevSibling {
			if countMatches(tree, ni.Count, node, s, ec) {
				pos++
			}
		}
		out[len(chain)-1-i] = pos // outermost first
	}
	return out, nil
}

func numberAny(tree *xmlnode.Tree, node xmlnode.ID, ni NumberInstr, ec *xpath.Context) ([]int, error) {
	var upTo []xmlnode.ID
	for n := range tree.Iterate(xmlnode.DescendantOrSelf, tree.Root) {
		if tree.Compare(n, node) > 0 {
			break
		}
		upTo = append(upTo, n)
	}
	lastFrom := -1
	if ni.From != nil {
		for i, n := range upTo {
			if ni.From.Matches(tree, n, ec) {
				lastFrom = i
			}
		}
	}
	count := 0
	for i := lastFrom + 1; i < len(upTo); i++ {
		if countMatches(tree, ni.Count, node, upTo[i], ec) {
			count++
		}
	}
	return []int{count}, nil
}

// formatNumberList renders the place-value sequence per the @format AVT
// (spec §4.8 / XSLT 1.0 §7.7's alphabetic/numeric/Roman-numeral tokens and
// separator punctuation).
func formatNumberList(numbers []int, ni NumberInstr, ec *xpath.Context) (string, error) {
	if len(numbers) == 0 {
		return "", nil
	}
	format, err := EvalAVT(ni.Format, ec)
	if err != nil {
		return "", err
	}
	if format == "" {
		format = "1"
	}
	groupSep := ","
	if ni.GroupingSeparator.Parts != nil {
		if v, err := EvalAVT(ni.GroupingSeparator, ec); err == nil && v != "" {
			groupSep = v
		}
	}
	groupSize := 3
	if ni.GroupingSize.Parts != nil {
		if v, err := EvalAVT(ni.GroupingSize, ec); err == nil {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				groupSize = n
			}
		}
	}

	prefix, tokens, seps, suffix := parseNumberFormat(format)
	var sb strings.Builder
	sb.WriteString(prefix)
	for i, n := range numbers {
		tok := tokens[len(tokens)-1]
		if i < len(tokens) {
			tok = tokens[i]
		}
		sb.WriteString(formatOneNumber(n, tok, groupSep, groupSize))
		if i < len(numbers)-1 {
			sep := "."
			if i < len(seps) {
				sep = seps[i]
			} else if len(seps) > 0 {
				sep = seps[len(seps)-1]
			}
			sb.WriteString(sep)
		}
	}
	sb.WriteString(suffix)
	return sb.String(), nil
}

// parseNumberFormat splits a format string into a leading literal prefix, the
// alphanumeric format tokens (one per expected number, cycling the last if
// there are more numbers than tokens), the separators between them, and a
// trailing literal suffix.
func parseNumberFormat(format string) (prefix string, tokens, seps []string, suffix string) {
	runes := []rune(format)
	i := 0
	isTok := func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }
	for i < len(runes) && !isTok(runes[i]) {
		i++
	}
	prefix = string(runes[:i])
	for i < len(runes) {
		start := i
		for i < len(runes) && isTok(runes[i]) {
			i++
		}
		tokens = append(tokens, string(runes[start:i]))
		start = i
		for i < len(runes) && !isTok(runes[i]) {
			i++
		}
		if i < len(runes) {
			seps = append(seps, string(runes[start:i]))
		} else {
			suffix = string(runes[start:i])
		}
	}
	if len(tokens) == 0 {
		tokens = []string{"1"}
	}
	return
}

func formatOneNumber(n int, token, groupSep string, groupSize int) string {
	if n <= 0 {
		n = 1 // XSLT numbering is always >= 1 in practice; guard against 0/negative from "any"-level misuse
	}
	switch {
	case token == "a":
		return intToAlpha(n, false)
	case token == "A":
		return intToAlpha(n, true)
	case token == "i":
		return intToRoman(n, false)
	case token == "I":
		return intToRoman(n, true)
	default:
		s := strconv.Itoa(n)
		width := len(token)
		for len(s) < width {
			s = "0" + s
		}
		return groupDigits(s, groupSize, groupSep)
	}
}

func groupDigits(s string, size int, sep string) string {
	if size <= 0 || len(s) <= size {
		return s
	}
	var parts []string
	for len(s) > size {
		parts = append([]string{s[len(s)-size:]}, parts...)
		s = s[:len(s)-size]
	}
	parts = append([]string{s}, parts...)
	return strings.Join(parts, sep)
}

func intToAlpha(n int, upper bool) string {
	const base = 26
	var sb strings.Builder
	for n > 0 {
		n--
		r := rune('a' + n%base)
		sb.WriteRune(r)
		n /= base
	}
	s := reverseString(sb.String())
	if upper {
		return strings.ToUpper(s)
	}
	return s
}

func reverseString(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

var romanTable = []struct {
	Value  int
	Symbol string
}{
	{1000, "M"}, {900, "CM"}, {500, "D"}, {400, "CD"},
	{100, "C"}, {90, "XC"}, {50, "L"}, {40, "XL"},
	{10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
}

func intToRoman(n int, upper bool) string {
	if n <= 0 || n > 3999 {
		return strconv.Itoa(n) // outside the classical Roman range, fall back to decimal
	}
	var sb strings.Builder
	for _, e := range romanTable {
		for n >= e.Value {
			sb.WriteString(e.Symbol)
			n -= e.Value
		}
	}
	s := sb.String()
	if !upper {
		return strings.ToLower(s)
	}
	return s
}
