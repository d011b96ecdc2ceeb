package dynamic

import (
	"fmt"

	"github.com/nerrad567/gray-logic-react/internal/templating"
	"github.com/nerrad567/gray-logic-react/internal/values"
)

// Rendered is the one-shot rendering of a configuration attribute.
type Rendered struct {
	Value      any
	Provenance Provenance
	// Err holds the first render error; Value is then the default.
	Err error
}

// Render evaluates raw once against data. Templates see exactly the
// variables in data, so values bound to a particular event (event.*,
// actor.*) are fixed at the moment of rendering. Maps and lists render
// element by element.
func Render(env *Env, name string, raw, def any, data map[string]any) Rendered {
	switch v := raw.(type) {
	case nil:
		return Rendered{Value: values.Copy(def), Provenance: Default}
	case string:
		if !templating.IsTemplate(v) {
			return Rendered{Value: v, Provenance: Literal}
		}
		if env == nil || env.Renderer == nil {
			return Rendered{Value: values.Copy(def), Provenance: Default}
		}
		out, err := env.Renderer.Render(v, data)
		if err != nil {
			env.logger().Warn("template render failed, using default", "attribute", name, "error", err)
			return Rendered{Value: values.Copy(def), Provenance: Default, Err: err}
		}
		return Rendered{Value: out, Provenance: Template}
	case map[string]any:
		out := make(map[string]any, len(v))
		var first error
		for _, k := range values.SortedKeys(v) {
			r := Render(env, name+"."+k, v[k], nil, data)
			out[k] = r.Value
			if first == nil {
				first = r.Err
			}
		}
		return Rendered{Value: out, Provenance: Source, Err: first}
	case []any:
		out := make([]any, len(v))
		var first error
		for i, item := range v {
			r := Render(env, fmt.Sprintf("%s[%d]", name, i), item, nil, data)
			out[i] = r.Value
			if first == nil {
				first = r.Err
			}
		}
		return Rendered{Value: out, Provenance: Source, Err: first}
	default:
		return Rendered{Value: v, Provenance: Literal}
	}
}

// RenderStrings renders raw and normalises the result into a string list,
// along with where the value came from. It is used for entity, type and
// action attributes, which accept either a single value or a list.
func RenderStrings(env *Env, name string, raw any, data map[string]any) ([]string, Provenance) {
	out := Render(env, name, raw, nil, data)
	return values.Strings(out.Value), out.Provenance
}
