// Package values holds helpers for the loosely-typed values that flow
// from YAML configuration and templates through the engine.
package values

import (
	"fmt"
	"sort"
)

// CopyMap returns a deep copy of m. A nil map stays nil.
func CopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = Copy(v)
	}
	return cp
}

// Copy recursively deep-copies maps and slices. Scalars are returned as-is.
func Copy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CopyMap(val)
	case []any:
		cp := make([]any, len(val))
		for i, item := range val {
			cp[i] = Copy(item)
		}
		return cp
	case []string:
		return append([]string(nil), val...)
	case []map[string]any:
		cp := make([]map[string]any, len(val))
		for i, item := range val {
			cp[i] = CopyMap(item)
		}
		return cp
	default:
		return v
	}
}

// Strings normalises a single value or a list into a list of strings.
// nil yields an empty list; non-string scalars are formatted with fmt.Sprint.
func Strings(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []string:
		return append([]string(nil), val...)
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, Strings(item)...)
		}
		return out
	default:
		return []string{fmt.Sprint(val)}
	}
}

// Maps normalises a single map or a list of maps into a list of maps.
// nil yields an empty list; entries that are not maps are skipped.
func Maps(v any) []map[string]any {
	switch val := v.(type) {
	case map[string]any:
		return []map[string]any{val}
	case []map[string]any:
		return val
	case []any:
		out := make([]map[string]any, 0, len(val))
		for _, item := range val {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
