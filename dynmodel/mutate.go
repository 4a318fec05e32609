package dynmodel

import (
	"fmt"
	"strconv"
	"strings"
)

// splitIndex pulls an optional "[N]" array index off a path segment, the
// same bracket convention QueryAll uses for filters and indices.
func splitIndex(seg string) (key string, idx int) {
	idx = -1
	key = seg
	if i := strings.Index(seg, "["); i >= 0 && strings.HasSuffix(seg, "]") {
		key = seg[:i]
		inside := seg[i+1 : len(seg)-1]
		if v, err := strconv.Atoi(inside); err == nil {
			idx = v
		}
	}
	return
}

// navigate walks all but the last path segment, returning the container that
// owns the final segment plus that segment's key/index. With create set, it
// fills in missing intermediate map[string]any nodes as it goes.
func navigate(data any, segments []string, create bool) (parent any, key string, idx int, err error) {
	cur := data
	for i := 0; i < len(segments)-1; i++ {
		seg := segments[i]
		sKey, sIdx := splitIndex(seg)

		m, ok := cur.(map[string]any)
		if !ok {
			return nil, "", -1, fmt.Errorf("cannot navigate into non-map at %q", seg)
		}

		next, exists := m[sKey]
		if !exists {
			if !create {
				return nil, "", -1, fmt.Errorf("path not found: %s", sKey)
			}
			next = map[string]any{}
			m[sKey] = next
		}

		if sIdx >= 0 {
			list, ok := next.([]any)
			if !ok {
				return nil, "", -1, fmt.Errorf("%s is not an array", sKey)
			}
			if sIdx >= len(list) {
				return nil, "", -1, fmt.Errorf("index %d out of bounds for %s", sIdx, sKey)
			}
			cur = list[sIdx]
		} else {
			cur = next
		}
	}

	lastKey, lastIdx := splitIndex(segments[len(segments)-1])
	return cur, lastKey, lastIdx, nil
}

// Set writes value at path, creating intermediate map[string]any nodes as
// needed. Array segments (e.g. "tags[1]") address an existing element; Set
// never grows an array.
func Set(data any, path string, value any) error {
	segments := strings.Split(path, "/")
	if len(segments) == 0 {
		return fmt.Errorf("empty path")
	}

	parent, key, idx, err := navigate(data, segments, true)
	if err != nil {
		return err
	}

	m, ok := parent.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set %q on non-map", key)
	}

	if idx < 0 {
		m[key] = value
		return nil
	}

	list, ok := m[key].([]any)
	if !ok {
		return fmt.Errorf("%s is not an array", key)
	}
	if idx >= len(list) {
		return fmt.Errorf("index %d out of bounds for %s", idx, key)
	}
	list[idx] = value
	return nil
}

// Delete removes the value at path. Deleting a missing map key is
// idempotent; deleting an out-of-bounds array index is an error.
func Delete(data any, path string) error {
	segments := strings.Split(path, "/")
	if len(segments) == 0 {
		return fmt.Errorf("empty path")
	}

	parent, key, idx, err := navigate(data, segments, false)
	if err != nil {
		return err
	}

	m, ok := parent.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot delete %q from non-map", key)
	}

	if idx < 0 {
		delete(m, key)
		return nil
	}

	list, ok := m[key].([]any)
	if !ok {
		return fmt.Errorf("%s is not an array", key)
	}
	if idx >= len(list) {
		return fmt.Errorf("index %d out of bounds for %s", idx, key)
	}
	m[key] = append(list[:idx], list[idx+1:]...)
	return nil
}
