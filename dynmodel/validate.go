package dynmodel

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/arturoeanton/go-xslt/xmlnode"
	"github.com/arturoeanton/go-xslt/xpath"
)

// ============================================================================
// VALIDATION ENGINE
// ============================================================================
// (Mantener el código de Validate igual que tenías, está correcto)
func Validate(data any, rules []Rule) []string {
	var errs []string
	for _, r := range rules {
		val, err := Query(data, r.Path)
		if err != nil {
			if r.Required {
				errs = append(errs, "Missing: "+r.Path)
			}
			continue
		}
		var floatVal float64
		var strVal string
		isNum := false
		isStr := false
		switch r.Type {
		case "array":
			if _, ok := val.([]any); !ok {
				errs = append(errs, fmt.Sprintf("%s must be an array", r.Path))
			}
		case "int", "float":
			if v, ok := asFloat(val); ok {
				floatVal = v
				isNum = true
			} else {
				errs = append(errs, fmt.Sprintf("%s must be numeric", r.Path))
			}
		case "string":
			strVal = fmt.Sprintf("%v", val)
			isStr = true
		}
		if isNum {
			if r.Min != 0 && floatVal < r.Min {
				errs = append(errs, fmt.Sprintf("%s value %.2f is less than minimum %.2f", r.Path, floatVal, r.Min))
			}
			if r.Max != 0 && floatVal > r.Max {
				errs = append(errs, fmt.Sprintf("%s value %.2f is greater than maximum %.2f", r.Path, floatVal, r.Max))
			}
		}
		if isStr {
			if r.Regex != "" {
				matched, _ := regexp.MatchString(r.Regex, strVal)
				if !matched {
					errs = append(errs, fmt.Sprintf("%s invalid format (Regex)", r.Path))
				}
			}
			if len(r.Enum) > 0 {
				found := false
				for _, allowed := range r.Enum {
					if strVal == allowed {
						found = true
						break
					}
				}
				if !found {
					errs = append(errs, fmt.Sprintf("%s invalid value. Allowed: %v", r.Path, r.Enum))
				}
			}
		}
	}
	return errs
}

// ValidateTree runs the same Rule set as Validate, but against an
// xmlnode.Tree: each Rule.Path is compiled and evaluated as an XPath
// expression (rooted at node) instead of being resolved through Query's
// slash-path/filter syntax, so the typed engine's own documents can reuse
// the Required/Type/Min/Max/Regex/Enum rule vocabulary without a MapXML
// round trip first.
func ValidateTree(tree *xmlnode.Tree, node xmlnode.ID, rules []Rule) []string {
	var errs []string
	ctx := &xpath.Context{Tree: tree, Node: node, Pos: 1, Size: 1, Vars: xpath.Scope{}, Funcs: xpath.CoreLibrary()}

	for _, r := range rules {
		expr, err := xpath.Parse(r.Path)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid path (%v)", r.Path, err))
			continue
		}
		val, err := xpath.Eval(expr, ctx)
		if err != nil || (val.Type == xpath.TypeNodeSet && len(val.Nodes.IDs) == 0) {
			if r.Required {
				errs = append(errs, "Missing: "+r.Path)
			}
			continue
		}

		switch r.Type {
		case "array":
			if val.Type != xpath.TypeNodeSet || len(val.Nodes.IDs) < 2 {
				errs = append(errs, fmt.Sprintf("%s must be an array", r.Path))
			}
		case "int", "float":
			n := val.AsNumber()
			if math.IsNaN(n) {
				errs = append(errs, fmt.Sprintf("%s must be numeric", r.Path))
				continue
			}
			if r.Min != 0 && n < r.Min {
				errs = append(errs, fmt.Sprintf("%s value %.2f is less than minimum %.2f", r.Path, n, r.Min))
			}
			if r.Max != 0 && n > r.Max {
				errs = append(errs, fmt.Sprintf("%s value %.2f is greater than maximum %.2f", r.Path, n, r.Max))
			}
		case "string":
			strVal := val.AsString()
			if r.Regex != "" {
				if matched, _ := regexp.MatchString(r.Regex, strVal); !matched {
					errs = append(errs, fmt.Sprintf("%s invalid format (Regex)", r.Path))
				}
			}
			if len(r.Enum) > 0 {
				found := false
				for _, allowed := range r.Enum {
					if strVal == allowed {
						found = true
						break
					}
				}
				if !found {
					errs = append(errs, fmt.Sprintf("%s invalid value. Allowed: %v", r.Path, r.Enum))
				}
			}
		}
	}
	return errs
}

func asFloat(v any) (float64, bool) {
	switch i := v.(type) {
	case int:
		return float64(i), true
	case float64:
		return i, true
	case string:
		if f, err := strconv.ParseFloat(i, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
