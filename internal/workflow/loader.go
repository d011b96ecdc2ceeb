package workflow

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-react/internal/values"
)

// File is the on-disk layout of the workflows file.
type File struct {
	Stencils  map[string]map[string]any `yaml:"stencils"`
	Workflows map[string]map[string]any `yaml:"workflows"`
}

// LoadResult holds the workflows that loaded and the problems of those
// that did not.
type LoadResult struct {
	// Workflows are sorted by id.
	Workflows []*Workflow

	// Errors maps a skipped workflow id to its problems.
	Errors map[string][]string
}

// LoadFile reads and builds workflows from a YAML file.
// An unreadable or malformed file is an error; invalid workflows are not.
func LoadFile(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from trusted config
	if err != nil {
		return nil, fmt.Errorf("reading workflows file: %w", err)
	}
	return Load(data)
}

// Load builds workflows from YAML bytes.
func Load(data []byte) (*LoadResult, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing workflows file: %w", err)
	}
	return Build(f), nil
}

// Build resolves stencils, parses and validates every workflow in f.
// A workflow with any problem is left out of Workflows.
func Build(f File) *LoadResult {
	res := &LoadResult{Errors: make(map[string][]string)}

	for _, id := range values.SortedKeys(f.Workflows) {
		raw, err := Resolve(f.Workflows[id], f.Stencils)
		if err != nil {
			res.Errors[id] = []string{err.Error()}
			continue
		}

		w, problems := Parse(id, raw)
		problems = append(problems, Problems(w)...)
		if len(problems) > 0 {
			res.Errors[id] = problems
			continue
		}
		res.Workflows = append(res.Workflows, w)
	}

	sort.Slice(res.Workflows, func(i, j int) bool { return res.Workflows[i].ID < res.Workflows[j].ID })
	return res
}

// Resolve merges the stencil named by raw["stencil"] under raw.
// A workflow without a stencil is returned as a copy.
func Resolve(raw map[string]any, stencils map[string]map[string]any) (map[string]any, error) {
	name, _ := raw["stencil"].(string)
	if name == "" {
		return values.CopyMap(raw), nil
	}

	stencil, ok := stencils[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStencil, name)
	}
	return Merge(normalise(stencil), normalise(raw))
}

// normalise turns a single actor or reactor map into a one-item list
// so stencil and workflow lists merge by id.
func normalise(raw map[string]any) map[string]any {
	out := values.CopyMap(raw)
	for _, key := range []string{"actor", "reactor"} {
		if m, ok := out[key].(map[string]any); ok {
			out[key] = []any{m}
		}
	}
	return out
}
