package workflow

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/nerrad567/gray-logic-react/internal/values"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks a parsed workflow and returns ErrInvalidWorkflow
// wrapping every problem found, or nil.
func Validate(w *Workflow) error {
	problems := Problems(w)
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidWorkflow, strings.Join(problems, "; "))
}

// Problems returns every validation problem of w as human-readable strings.
func Problems(w *Workflow) []string {
	if w == nil {
		return []string{"workflow is nil"}
	}

	var problems []string
	if err := structValidator().Struct(w); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				problems = append(problems, describe(fe))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	if len(w.Actors) == 0 {
		problems = append(problems, "at least one actor is required")
	}
	if len(w.Reactors) == 0 {
		problems = append(problems, "at least one reactor is required")
	}

	problems = append(problems, duplicateIDs("actor", w.Actors, func(a Actor) string { return a.ID })...)
	problems = append(problems, duplicateIDs("reactor", w.Reactors, func(r Reactor) string { return r.ID })...)

	for _, a := range w.Actors {
		if len(values.Strings(a.Entity)) == 0 {
			problems = append(problems, fmt.Sprintf("actor %s: entity is required", a.ID))
		}
		if len(values.Strings(a.Type)) == 0 {
			problems = append(problems, fmt.Sprintf("actor %s: type is required", a.ID))
		}
	}

	for _, r := range w.Reactors {
		problems = append(problems, reactorProblems(r)...)
	}
	return problems
}

// duplicateIDs reports every id used more than once, once per id.
func duplicateIDs[T any](kind string, items []T, id func(T) string) []string {
	var problems []string
	seen := make(map[string]int, len(items))
	for _, item := range items {
		key := id(item)
		if key == "" {
			continue
		}
		seen[key]++
		if seen[key] == 2 {
			problems = append(problems, fmt.Sprintf("%s %s: duplicate id", kind, key))
		}
	}
	return problems
}

func reactorProblems(r Reactor) []string {
	var problems []string
	if r.ResetWorkflow == "" {
		if len(values.Strings(r.Entity)) == 0 {
			problems = append(problems, fmt.Sprintf("reactor %s: entity is required", r.ID))
		}
		if len(values.Strings(r.Type)) == 0 {
			problems = append(problems, fmt.Sprintf("reactor %s: type is required", r.ID))
		}
	}

	w := r.Wait
	if w == nil {
		return problems
	}
	if w.Delay != nil && w.Schedule != nil {
		problems = append(problems, fmt.Sprintf("reactor %s: delay and schedule cannot both be set", r.ID))
	}
	if w.State != nil && (w.Delay != nil || w.Schedule != nil) {
		problems = append(problems, fmt.Sprintf("reactor %s: only one of state, delay or schedule may be set", r.ID))
	}
	if w.Delay != nil && w.Delay.IsZero() {
		problems = append(problems, fmt.Sprintf("reactor %s: delay needs at least one of hours, minutes or seconds", r.ID))
	}
	return problems
}

// describe turns a validator field error into a short message such as
// "reactor[0].wait.delay.restart_mode: must be one of abort force".
func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	switch fe.Tag() {
	case "required":
		return field + ": is required"
	case "oneof":
		return fmt.Sprintf("%s: must be one of %s (got %v)", field, fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s: must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s: must be at most %s", field, fe.Param())
	}
	return fmt.Sprintf("%s: failed %s", field, fe.Tag())
}
