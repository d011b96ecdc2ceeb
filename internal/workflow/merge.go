package workflow

import (
	"fmt"
	"reflect"

	"github.com/nerrad567/gray-logic-react/internal/values"
)

// Merge deep-merges override on top of base and returns a new map.
// Neither input is modified.
//
//   - scalars from override replace base values
//   - maps merge recursively
//   - lists whose entries are all maps with an "id" merge entry by id;
//     unmatched override entries are appended
//   - other lists are unioned without duplicates, base entries first
//
// A map or list on one side facing a different kind on the other is
// ErrMergeType.
func Merge(base, override map[string]any) (map[string]any, error) {
	return mergeMaps("", base, override)
}

func mergeMaps(path string, base, override map[string]any) (map[string]any, error) {
	out := values.CopyMap(base)
	if out == nil {
		out = make(map[string]any, len(override))
	}

	for _, k := range values.SortedKeys(override) {
		ov := override[k]
		key := joinPath(path, k)

		bv, exists := out[k]
		if !exists || bv == nil || ov == nil {
			out[k] = values.Copy(ov)
			continue
		}

		merged, err := mergeValues(key, bv, ov)
		if err != nil {
			return nil, err
		}
		out[k] = merged
	}
	return out, nil
}

func mergeValues(path string, base, override any) (any, error) {
	switch b := base.(type) {
	case map[string]any:
		o, ok := override.(map[string]any)
		if !ok {
			return nil, mismatch(path, base, override)
		}
		return mergeMaps(path, b, o)
	case []any:
		o, ok := override.([]any)
		if !ok {
			return nil, mismatch(path, base, override)
		}
		return mergeLists(path, b, o)
	}

	switch override.(type) {
	case map[string]any, []any:
		return nil, mismatch(path, base, override)
	}
	return values.Copy(override), nil
}

func mergeLists(path string, base, override []any) ([]any, error) {
	if keyedByID(base) && keyedByID(override) {
		out := make([]any, 0, len(base)+len(override))
		index := make(map[any]int, len(base))
		for _, item := range base {
			m := item.(map[string]any)
			index[m["id"]] = len(out)
			out = append(out, values.CopyMap(m))
		}
		for _, item := range override {
			m := item.(map[string]any)
			i, ok := index[m["id"]]
			if !ok {
				index[m["id"]] = len(out)
				out = append(out, values.CopyMap(m))
				continue
			}
			merged, err := mergeMaps(fmt.Sprintf("%s[%v]", path, m["id"]), out[i].(map[string]any), m)
			if err != nil {
				return nil, err
			}
			out[i] = merged
		}
		return out, nil
	}

	out := values.Copy(base).([]any)
	for _, item := range override {
		dup := false
		for _, existing := range out {
			if reflect.DeepEqual(existing, item) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, values.Copy(item))
		}
	}
	return out, nil
}

// keyedByID reports whether every entry is a map with a comparable id.
func keyedByID(list []any) bool {
	if len(list) == 0 {
		return true
	}
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return false
		}
		switch m["id"].(type) {
		case string, int, int64, float64, bool:
		default:
			return false
		}
	}
	return true
}

func mismatch(path string, base, override any) error {
	return fmt.Errorf("%w: %s: cannot merge %s into %s", ErrMergeType, path, kindOf(override), kindOf(base))
}

func kindOf(v any) string {
	switch v.(type) {
	case map[string]any:
		return "map"
	case []any:
		return "list"
	}
	return "scalar"
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
