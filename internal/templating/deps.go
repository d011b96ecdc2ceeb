package templating

import (
	"fmt"
	"sort"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// Deps lists what a template reads.
type Deps struct {
	// Entities are the entity ids referenced through states, is_state or state_attr.
	Entities []string

	// AllEntities is set when states is accessed with a computed key,
	// so any entity change may affect the result.
	AllEntities bool

	// Names are the other top-level identifiers the template reads (variables).
	Names []string
}

// Dependencies parses tpl and reports the entities and names it depends on.
// A non-template string has no dependencies.
func Dependencies(tpl string) (Deps, error) {
	if !IsTemplate(tpl) {
		return Deps{}, nil
	}
	exprs, err := expressions(tpl)
	if err != nil {
		return Deps{}, err
	}

	v := &depVisitor{
		entities: map[string]bool{},
		names:    map[string]bool{},
	}
	for _, src := range exprs {
		tree, err := parser.Parse(src)
		if err != nil {
			return Deps{}, fmt.Errorf("%w: %q: %w", ErrCompile, src, err)
		}
		ast.Walk(&tree.Node, v)
	}

	return Deps{
		Entities:    sortedKeys(v.entities),
		AllEntities: v.all,
		Names:       sortedKeys(v.names),
	}, nil
}

type depVisitor struct {
	entities map[string]bool
	names    map[string]bool
	all      bool
}

func (v *depVisitor) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		switch n.Value {
		case envStates, envIsState, envStateAttr:
		default:
			v.names[n.Value] = true
		}
	case *ast.MemberNode:
		if id, ok := n.Node.(*ast.IdentifierNode); ok && id.Value == envStates {
			if key, ok := n.Property.(*ast.StringNode); ok {
				v.entities[key.Value] = true
			} else {
				v.all = true
			}
		}
	case *ast.CallNode:
		id, ok := n.Callee.(*ast.IdentifierNode)
		if !ok || (id.Value != envIsState && id.Value != envStateAttr) || len(n.Arguments) == 0 {
			return
		}
		if key, ok := n.Arguments[0].(*ast.StringNode); ok {
			v.entities[key.Value] = true
		} else {
			v.all = true
		}
	}
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
