package xpath

import (
	"math"
	"strconv"
	"strings"
)

// DecimalFormat mirrors an xsl:decimal-format declaration: the symbols a
// picture string in format-number() is interpreted against. DefaultDecimalFormat
// returns the XSLT default format (spec §4.6: "per-stylesheet decimal-format
// registries").
type DecimalFormat struct {
	DecimalSeparator  rune
	GroupingSeparator rune
	Infinity          string
	Minus             rune
	NaN               string
	Percent           rune
	PerMille          rune
	Zero              rune
	Digit             rune
	PatternSeparator  rune
}

func DefaultDecimalFormat() DecimalFormat {
	return DecimalFormat{
		DecimalSeparator: '.', GroupingSeparator: ',',
		Infinity: "Infinity", Minus: '-', NaN: "NaN",
		Percent: '%', PerMille: '‰', Zero: '0', Digit: '#', PatternSeparator: ';',
	}
}

// FormatPicture renders n under the default decimal-format; FormatNumberWith
// accepts an explicit DecimalFormat for stylesheets that declare one.
func FormatPicture(n float64, picture string) string {
	return FormatNumberWith(n, picture, DefaultDecimalFormat())
}

// FormatNumberWith implements XSLT 1.0 §12.3 picture-string formatting: a
// picture is split on the pattern separator into a positive and (optional)
// negative subpicture, each with an integer part, optional fractional part
// and optional prefix/suffix literal text.
func FormatNumberWith(n float64, picture string, df DecimalFormat) string {
	subs := strings.Split(picture, string(df.PatternSeparator))
	positive := subs[0]
	negative := ""
	if len(subs) > 1 {
		negative = subs[1]
	}

	if math.IsNaN(n) {
		return df.NaN
	}
	neg := n < 0 || math.Signbit(n)
	abs := math.Abs(n)
	if math.IsInf(abs, 1) {
		s := df.Infinity
		if neg {
			s = string(df.Minus) + s
		}
		return s
	}

	sub := positive
	if neg && negative != "" {
		sub = negative
	}

	prefix, body, suffix := splitSubpicture(sub, df)
	_, fracDigits, minFrac, minInt, grouping := analyzePattern(body, df)

	scaled := abs
	isPercent := strings.ContainsRune(body, df.Percent) || strings.ContainsRune(prefix, df.Percent) || strings.ContainsRune(suffix, df.Percent)
	isPerMille := strings.ContainsRune(body, df.PerMille) || strings.ContainsRune(prefix, df.PerMille) || strings.ContainsRune(suffix, df.PerMille)
	if isPercent {
		scaled *= 100
	} else if isPerMille {
		scaled *= 1000
	}

	rounded := roundTo(scaled, fracDigits)
	intStr, fracStr := splitDecimal(rounded, fracDigits)
	intStr = padInt(intStr, minInt)
	if grouping > 0 {
		intStr = groupDigits(intStr, grouping, df.GroupingSeparator)
	}
	fracStr = trimFrac(fracStr, minFrac)

	var sb strings.Builder
	sb.WriteString(prefix)
	if neg && negative == "" {
		sb.WriteRune(df.Minus)
	}
	sb.WriteString(replaceDigits(intStr, df.Zero))
	if fracStr != "" {
		sb.WriteRune(df.DecimalSeparator)
		sb.WriteString(replaceDigits(fracStr, df.Zero))
	}
	sb.WriteString(suffix)
	return sb.String()
}

func splitSubpicture(sub string, df DecimalFormat) (prefix, body, suffix string) {
	start, end := -1, -1
	for i, r := range sub {
		if r == df.Digit || r == df.Zero || r == df.GroupingSeparator || r == df.DecimalSeparator {
			if start < 0 {
				start = i
			}
			end = i + len(string(r))
		}
	}
	if start < 0 {
		return "", "", sub
	}
	return sub[:start], sub[start:end], sub[end:]
}

func analyzePattern(body string, df DecimalFormat) (intPart string, fracDigits, minFrac, minInt, grouping int) {
	decIdx := strings.IndexRune(body, df.DecimalSeparator)
	intStr := body
	fracStr := ""
	if decIdx >= 0 {
		intStr = body[:decIdx]
		fracStr = body[decIdx+len(string(df.DecimalSeparator)):]
	}
	for _, r := range fracStr {
		if r == df.Zero || r == df.Digit {
			fracDigits++
		}
		if r == df.Zero {
			minFrac++
		}
	}
	lastGroup := -1
	for i, r := range intStr {
		if r == df.GroupingSeparator {
			lastGroup = i
			continue
		}
		if r == df.Zero {
			minInt++
		}
	}
	if lastGroup >= 0 {
		// distance (in digit count) from the last grouping separator to the
		// end of the integer part
		after := intStr[lastGroup+len(string(df.GroupingSeparator)):]
		for _, r := range after {
			if r == df.Zero || r == df.Digit {
				grouping++
			}
		}
	}
	return intStr, fracDigits, minFrac, minInt, grouping
}

func roundTo(f float64, digits int) float64 {
	mul := math.Pow(10, float64(digits))
	return math.Floor(f*mul+0.5) / mul
}

func splitDecimal(f float64, fracDigits int) (intStr, fracStr string) {
	s := strconv.FormatFloat(f, 'f', fracDigits, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

func padInt(s string, minDigits int) string {
	for len(s) < minDigits {
		s = "0" + s
	}
	return s
}

func trimFrac(s string, minDigits int) string {
	for len(s) > minDigits && strings.HasSuffix(s, "0") {
		s = s[:len(s)-1]
	}
	return s
}

func groupDigits(s string, group int, sep rune) string {
	if group <= 0 || len(s) <= group {
		return s
	}
	var parts []string
	for len(s) > group {
		parts = append([]string{s[len(s)-group:]}, parts...)
		s = s[:len(s)-group]
	}
	parts = append([]string{s}, parts...)
	return strings.Join(parts, string(sep))
}

// replaceDigits swaps ASCII '0'-'9' for the decimal-format's own zero digit
// when it differs from ASCII (non-Latin digit families).
func replaceDigits(s string, zero rune) string {
	if zero == '0' {
		return s
	}
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(zero + (r - '0'))
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
