package dynmodel

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Keys returns the keys of a map[string]any, sorted for deterministic output.
func Keys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Attributes returns the subset of m whose keys carry the "@" prefix.
func Attributes(m map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range m {
		if strings.HasPrefix(k, "@") {
			out[k] = v
		}
	}
	return out
}

// Children returns the subset of m excluding attributes and "#text".
func Children(m map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range m {
		if !strings.HasPrefix(k, "@") && k != "#text" {
			out[k] = v
		}
	}
	return out
}

// Pick returns a new map containing only the given keys.
func Pick(m map[string]any, keys ...string) map[string]any {
	out := map[string]any{}
	for _, k := range keys {
		if v, ok := m[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Omit returns a new map excluding the given keys.
func Omit(m map[string]any, keys ...string) map[string]any {
	skip := make(map[string]bool, len(keys))
	for _, k := range keys {
		skip[k] = true
	}
	out := map[string]any{}
	for k, v := range m {
		if !skip[k] {
			out[k] = v
		}
	}
	return out
}

// Merge deep-merges override into base, recursing into nested
// map[string]any values instead of replacing them wholesale.
func Merge(base, override map[string]any) {
	for k, v := range override {
		if bv, ok := base[k]; ok {
			if bm, ok := bv.(map[string]any); ok {
				if ov, ok := v.(map[string]any); ok {
					Merge(bm, ov)
					continue
				}
			}
		}
		base[k] = v
	}
}

// Clone deep-copies a map[string]any / []any tree.
func Clone(data any) any {
	switch v := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = Clone(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = Clone(val)
		}
		return out
	default:
		return v
	}
}

// Flatten collapses a nested map into a single level, joining keys with ".".
func Flatten(m map[string]any) map[string]any {
	out := map[string]any{}
	flattenInto(m, "", out)
	return out
}

func flattenInto(m map[string]any, prefix string, out map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(nested, key, out)
		} else {
			out[key] = v
		}
	}
}

// MapSlice applies fn to every element of in.
func MapSlice[T, U any](in []T, fn func(T) U) []U {
	return lo.Map(in, func(v T, _ int) U { return fn(v) })
}

// FilterSlice returns the elements of in for which fn returns true.
func FilterSlice[T any](in []T, fn func(T) bool) []T {
	return lo.Filter(in, func(v T, _ int) bool { return fn(v) })
}

// FindFirst returns the first element of in matching fn.
func FindFirst[T any](in []T, fn func(T) bool) (T, bool) {
	return lo.Find(in, fn)
}

// MapToJSON marshals m to a JSON string.
func MapToJSON(m map[string]any) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MapToStruct round-trips m through JSON into dst.
func MapToStruct(m map[string]any, dst any) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
