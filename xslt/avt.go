package xslt

import (
	"fmt"
	"strings"

	"github.com/arturoeanton/go-xslt/xpath"
)

// compileAVT parses an attribute-value template: literal text interleaved
// with "{expr}" XPath expressions, "{{" and "}}" being the escapes for a
// literal brace (spec §4.8's AVT processing note).
func compileAVT(src string) (AVT, error) {
	var avt AVT
	var lit strings.Builder
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '{' && i+1 < len(src) && src[i+1] == '{':
			lit.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(src) && src[i+1] == '}':
			lit.WriteByte('}')
			i += 2
		case c == '{':
			if lit.Len() > 0 {
				avt.Parts = append(avt.Parts, AVTPart{Literal: lit.String()})
				lit.Reset()
			}
			end := strings.IndexByte(src[i+1:], '}')
			if end < 0 {
				return AVT{}, fmt.Errorf("xslt: unterminated '{' in attribute value template %q", src)
			}
			end += i + 1
			expr, err := xpath.Parse(src[i+1 : end])
			if err != nil {
				return AVT{}, fmt.Errorf("xslt: bad AVT expression in %q: %w", src, err)
			}
			avt.Parts = append(avt.Parts, AVTPart{Expr: expr})
			i = end + 1
		case c == '}':
			return AVT{}, fmt.Errorf("xslt: unmatched '}' in attribute value template %q", src)
		default:
			lit.WriteByte(c)
			i++
		}
	}
	if lit.Len() > 0 {
		avt.Parts = append(avt.Parts, AVTPart{Literal: lit.String()})
	}
	return avt, nil
}

// EvalAVT instantiates a compiled AVT against ctx, concatenating literal
// parts with the string-value of each "{expr}" part.
func EvalAVT(avt AVT, ctx *xpath.Context) (string, error) {
	if len(avt.Parts) == 0 {
		return "", nil
	}
	var sb strings.Builder
	for _, p := range avt.Parts {
		if p.Expr == nil {
			sb.WriteString(p.Literal)
			continue
		}
		v, err := xpath.Eval(p.Expr, ctx)
		if err != nil {
			return "", err
		}
		sb.WriteString(v.AsString())
	}
	return sb.String(), nil
}
