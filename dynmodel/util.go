package dynmodel

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
)

// ============================================================================
// 1. CHARSET
// ============================================================================

// charsetReader injects legacy charset support into the XML decoder using
// golang.org/x/text's charmap tables instead of a hand-maintained byte table.
// ISO-8859-1 input is decoded with the Windows-1252 table, a superset of it,
// so documents that declare ISO-8859-1 but carry Windows-1252 bytes decode.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "iso-8859-1", "latin1", "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(input), nil
	case "utf-8", "utf8", "":
		return input, nil
	default:
		return nil, fmt.Errorf("unsupported charset: %s", charset)
	}
}

// ============================================================================
// 2. TYPE COERCION (SAFE GETTERS)
// ============================================================================

// AsString forces conversion to string.
func AsString(v any) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	case error:
		return t.Error()
	}
	if reflect.TypeOf(v).Kind() == reflect.Map || reflect.TypeOf(v).Kind() == reflect.Slice {
		b, _ := json.Marshal(v)
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}

// AsInt forces conversion to int, returning 0 on failure.
func AsInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		i, _ := strconv.Atoi(strings.TrimSpace(t))
		return i
	}
	return 0
}

// AsFloat forces conversion to float64.
func AsFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f
	}
	return 0.0
}

// AsBool forces conversion to bool.
func AsBool(v any) bool {
	s := strings.ToLower(fmt.Sprintf("%v", v))
	return s == "true" || s == "1" || s == "yes" || s == "on" || s == "ok"
}

// AsSlice guarantees a []any is returned.
func AsSlice(v any) []any {
	if v == nil {
		return []any{}
	}
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}

// AsTime tries a handful of common layouts before giving up.
func AsTime(v any, layouts ...string) (time.Time, error) {
	s := AsString(v)
	if len(layouts) == 0 {
		layouts = []string{
			time.RFC3339,
			"2006-01-02",
			"2006-01-02 15:04:05",
			time.RFC1123,
		}
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse time: %s", s)
}

// ============================================================================
// 3. GLOBAL HELPERS
// ============================================================================

// Text extracts ALL text content recursively from a node and its children,
// equivalent to jQuery's .text().
func Text(data any) string {
	var sb strings.Builder
	textRecursive(data, &sb)
	return strings.TrimSpace(sb.String())
}

func textRecursive(data any, sb *strings.Builder) {
	if data == nil {
		return
	}
	switch v := data.(type) {
	case string:
		sb.WriteString(v)
	case int, float64, bool:
		sb.WriteString(fmt.Sprintf("%v", v))
	case *OrderedMap:
		if seqAny := v.Get("#seq"); seqAny != nil {
			if seq, ok := seqAny.([]any); ok {
				for _, item := range seq {
					textRecursive(item, sb)
				}
				return
			}
		}
		if t := v.Get("#text"); t != nil {
			sb.WriteString(fmt.Sprintf("%v", t))
		}
		v.ForEach(func(k string, val any) bool {
			if !strings.HasPrefix(k, "@") && k != "#text" && k != "#seq" {
				textRecursive(val, sb)
			}
			return true
		})
	case map[string]any:
		if seq, ok := v["#seq"].([]any); ok {
			for _, item := range seq {
				textRecursive(item, sb)
			}
			return
		}
		if t, ok := v["#text"]; ok {
			sb.WriteString(fmt.Sprintf("%v", t))
		}
		for k, val := range v {
			if !strings.HasPrefix(k, "@") && k != "#text" && k != "#seq" {
				textRecursive(val, sb)
			}
		}
	case []any:
		for _, item := range v {
			textRecursive(item, sb)
		}
	}
}
