package workflow

import (
	"errors"
	"reflect"
	"testing"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		base     map[string]any
		override map[string]any
		want     map[string]any
	}{
		{
			name:     "scalar override",
			base:     map[string]any{"mode": "parallel", "keep": 1},
			override: map[string]any{"mode": "single"},
			want:     map[string]any{"mode": "single", "keep": 1},
		},
		{
			name:     "nested maps recurse",
			base:     map[string]any{"variables": map[string]any{"a": 1, "b": 2}},
			override: map[string]any{"variables": map[string]any{"b": 3, "c": 4}},
			want:     map[string]any{"variables": map[string]any{"a": 1, "b": 3, "c": 4}},
		},
		{
			name: "lists keyed by id merge by id",
			base: map[string]any{"reactor": []any{
				map[string]any{"id": "r1", "entity": "light1", "action": "on"},
				map[string]any{"id": "r2", "entity": "light2"},
			}},
			override: map[string]any{"reactor": []any{
				map[string]any{"id": "r1", "action": "off"},
				map[string]any{"id": "r3", "entity": "light3"},
			}},
			want: map[string]any{"reactor": []any{
				map[string]any{"id": "r1", "entity": "light1", "action": "off"},
				map[string]any{"id": "r2", "entity": "light2"},
				map[string]any{"id": "r3", "entity": "light3"},
			}},
		},
		{
			name:     "plain lists union without duplicates",
			base:     map[string]any{"entity": []any{"a", "b"}},
			override: map[string]any{"entity": []any{"b", "c"}},
			want:     map[string]any{"entity": []any{"a", "b", "c"}},
		},
		{
			name:     "nil base value takes override",
			base:     map[string]any{"data": nil},
			override: map[string]any{"data": map[string]any{"x": 1}},
			want:     map[string]any{"data": map[string]any{"x": 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Merge(tt.base, tt.override)
			if err != nil {
				t.Fatalf("Merge: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Merge() = %#v\nwant %#v", got, tt.want)
			}
		})
	}
}

func TestMerge_TypeMismatch(t *testing.T) {
	tests := []struct {
		name     string
		base     map[string]any
		override map[string]any
	}{
		{"map over scalar", map[string]any{"x": 1}, map[string]any{"x": map[string]any{}}},
		{"scalar over list", map[string]any{"x": []any{1}}, map[string]any{"x": "a"}},
		{"list over map", map[string]any{"x": map[string]any{}}, map[string]any{"x": []any{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Merge(tt.base, tt.override); !errors.Is(err, ErrMergeType) {
				t.Errorf("Merge() error = %v, want ErrMergeType", err)
			}
		})
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	base := map[string]any{"variables": map[string]any{"a": 1}}
	override := map[string]any{"variables": map[string]any{"a": 2}}

	if _, err := Merge(base, override); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if base["variables"].(map[string]any)["a"] != 1 {
		t.Error("Merge mutated base")
	}
}
