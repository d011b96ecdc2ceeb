package workflow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-react/internal/values"
)

// Parse builds a Workflow from its raw configuration. Stencils must
// already be merged in. Problems are accumulated rather than returned
// on the first failure; the workflow is usable only when the list is
// empty and Validate also passes.
func Parse(id string, raw map[string]any) (*Workflow, []string) {
	p := &parser{}
	w := &Workflow{
		ID:        id,
		Mode:      ModeParallel,
		Stencil:   p.str(raw, "stencil", ""),
		Variables: p.variables(raw["variables"]),
	}

	if mode := p.str(raw, "mode", ""); mode != "" {
		w.Mode = Mode(strings.ToLower(mode))
	}

	for i, item := range p.items("actor", raw["actor"]) {
		w.Actors = append(w.Actors, p.actor(i, item))
	}
	for i, item := range p.items("reactor", raw["reactor"]) {
		w.Reactors = append(w.Reactors, p.reactor(i, item))
	}
	return w, p.problems
}

type parser struct {
	problems []string
}

func (p *parser) addf(format string, args ...any) {
	p.problems = append(p.problems, fmt.Sprintf(format, args...))
}

// items accepts a single map or a list of maps.
func (p *parser) items(key string, v any) []map[string]any {
	switch v.(type) {
	case nil:
		return nil
	case map[string]any, []any:
	default:
		p.addf("%s: expected a map or a list of maps", key)
		return nil
	}
	items := values.Maps(v)
	if list, ok := v.([]any); ok && len(items) != len(list) {
		p.addf("%s: every entry must be a map", key)
	}
	return items
}

func (p *parser) variables(v any) map[string]any {
	if v == nil {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		p.addf("variables: expected a map")
		return nil
	}
	return values.CopyMap(m)
}

func (p *parser) actor(i int, m map[string]any) Actor {
	path := fmt.Sprintf("actor[%d]", i)
	return Actor{
		ID:        p.id(m, "actor", i),
		Index:     i,
		Entity:    p.target(path, m, "entity"),
		Type:      p.target(path, m, "type"),
		Action:    p.target(path, m, "action"),
		Condition: p.condition(path, m["condition"]),
	}
}

func (p *parser) reactor(i int, m map[string]any) Reactor {
	path := fmt.Sprintf("reactor[%d]", i)
	r := Reactor{
		ID:            p.id(m, "reactor", i),
		Index:         i,
		Entity:        p.target(path, m, "entity"),
		Type:          p.target(path, m, "type"),
		Action:        p.target(path, m, "action"),
		Condition:     p.condition(path, m["condition"]),
		Data:          values.Copy(m["data"]),
		Overwrite:     p.boolean(path, m, "overwrite"),
		ResetWorkflow: p.str(m, "reset_workflow", path),
		ForwardAction: p.boolean(path, m, "forward_action"),
		ForwardData:   p.boolean(path, m, "forward_data"),
	}

	switch r.Data.(type) {
	case nil, string, map[string]any:
	case []any:
		if len(values.Maps(r.Data)) != len(r.Data.([]any)) {
			p.addf("%s.data: list entries must be maps", path)
		}
	default:
		p.addf("%s.data: expected a map or a list of maps", path)
	}

	if raw, ok := m["wait"]; ok && raw != nil {
		r.Wait = p.wait(path+".wait", raw)
	}
	return r
}

func (p *parser) id(m map[string]any, kind string, i int) string {
	switch v := m["id"].(type) {
	case nil:
		return fmt.Sprintf("%s_%d", kind, i)
	case string:
		if v == "" {
			return fmt.Sprintf("%s_%d", kind, i)
		}
		return v
	default:
		return fmt.Sprint(v)
	}
}

// target accepts a string, a list of strings or a template.
func (p *parser) target(path string, m map[string]any, key string) any {
	switch v := m[key].(type) {
	case nil:
		return nil
	case string:
		return v
	case []any:
		for _, item := range v {
			if _, ok := item.(string); !ok {
				p.addf("%s.%s: list entries must be strings", path, key)
				break
			}
		}
		return values.Copy(v)
	default:
		return fmt.Sprint(v)
	}
}

func (p *parser) condition(path string, v any) any {
	switch v.(type) {
	case nil, bool, string:
		return v
	}
	p.addf("%s.condition: expected a bool or a template", path)
	return nil
}

func (p *parser) boolean(path string, m map[string]any, key string) bool {
	switch v := m[key].(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			p.addf("%s.%s: expected a bool", path, key)
		}
		return b
	}
	p.addf("%s.%s: expected a bool", path, key)
	return false
}

// str reads a string value. path is used in problems; an empty path
// names the key alone.
func (p *parser) str(m map[string]any, key, path string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		p.addf("%s: expected a string", joinPath(path, key))
		return ""
	}
}

func (p *parser) wait(path string, raw any) *Wait {
	m, ok := raw.(map[string]any)
	if !ok {
		p.addf("%s: expected a map", path)
		return nil
	}

	w := &Wait{}
	if v, ok := m["state"]; ok && v != nil {
		w.State = p.stateWait(path+".state", v)
	}
	if v, ok := m["delay"]; ok && v != nil {
		w.Delay = p.delay(path+".delay", v)
	}
	if v, ok := m["schedule"]; ok && v != nil {
		w.Schedule = p.schedule(path+".schedule", v)
	}
	if w.State == nil && w.Delay == nil && w.Schedule == nil {
		return nil
	}
	return w
}

func (p *parser) restartMode(path string, m map[string]any) RestartMode {
	s := p.str(m, "restart_mode", path)
	if s == "" {
		return RestartAbort
	}
	return RestartMode(strings.ToLower(s))
}

// stateWait accepts a bare condition or {condition, restart_mode}.
func (p *parser) stateWait(path string, raw any) *StateWait {
	switch v := raw.(type) {
	case string, bool:
		return &StateWait{Condition: v, RestartMode: RestartAbort}
	case map[string]any:
		return &StateWait{
			Condition:   p.condition(path, v["condition"]),
			RestartMode: p.restartMode(path, v),
		}
	}
	p.addf("%s: expected a template or a map", path)
	return nil
}

// delay accepts a number of seconds or {hours, minutes, seconds, restart_mode}.
func (p *parser) delay(path string, raw any) *Delay {
	if m, ok := raw.(map[string]any); ok {
		return &Delay{
			Hours:       p.number(path, m, "hours"),
			Minutes:     p.number(path, m, "minutes"),
			Seconds:     p.number(path, m, "seconds"),
			RestartMode: p.restartMode(path, m),
		}
	}
	secs, ok := toFloat(raw)
	if !ok {
		p.addf("%s: expected seconds or a map", path)
		return nil
	}
	return &Delay{Seconds: secs, RestartMode: RestartAbort}
}

func (p *parser) number(path string, m map[string]any, key string) float64 {
	v, exists := m[key]
	if !exists || v == nil {
		return 0
	}
	f, ok := toFloat(v)
	if !ok {
		p.addf("%s.%s: expected a number", path, key)
	}
	return f
}

func (p *parser) schedule(path string, raw any) *Schedule {
	m, ok := raw.(map[string]any)
	if !ok {
		p.addf("%s: expected a map", path)
		return nil
	}

	s := &Schedule{RestartMode: p.restartMode(path, m)}

	at := p.str(m, "at", path)
	if at == "" {
		p.addf("%s.at: is required", path)
	} else if tod, err := ParseTimeOfDay(at); err != nil {
		p.addf("%s.at: %v", path, err)
	} else {
		s.At = tod
	}

	for _, name := range values.Strings(m["weekdays"]) {
		wd, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			p.addf("%s.weekdays: unknown weekday %q", path, name)
			continue
		}
		s.Weekdays = appendWeekday(s.Weekdays, wd)
	}
	return s
}

func appendWeekday(list []time.Weekday, wd time.Weekday) []time.Weekday {
	for _, existing := range list {
		if existing == wd {
			return list
		}
	}
	return append(list, wd)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}
