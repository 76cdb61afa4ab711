package ptree

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		from, to any
		oneSided bool
		want     map[string]any
	}{
		{
			name: "changed leaf",
			from: map[string]any{"name": "A", "age": 1},
			to:   map[string]any{"name": "B", "age": 1},
			want: map[string]any{"name": "B"},
		},
		{
			name: "removed leaf",
			from: map[string]any{"name": "A", "age": 1},
			to:   map[string]any{"age": 1},
			want: map[string]any{"name": nil},
		},
		{
			name: "added leaf",
			from: map[string]any{"age": 1},
			to:   map[string]any{"age": 1, "name": "B"},
			want: map[string]any{"name": "B"},
		},
		{
			name:     "added leaf one sided",
			from:     map[string]any{"age": 1},
			to:       map[string]any{"age": 1, "name": "B"},
			oneSided: true,
			want:     map[string]any{},
		},
		{
			name: "numeric kinds",
			from: map[string]any{"n": 1},
			to:   map[string]any{"n": 1.0},
			want: map[string]any{},
		},
		{
			name: "leaf becomes object",
			from: map[string]any{"a": 5},
			to:   map[string]any{"a": map[string]any{"b": 1, "c": 2}},
			want: map[string]any{"a/b": 1, "a/c": 2},
		},
		{
			name: "object becomes leaf",
			from: map[string]any{"a": map[string]any{"b": 1, "c": 2}},
			to:   map[string]any{"a": 5},
			want: map[string]any{"a": 5},
		},
		{
			name: "reordered",
			from: map[string]any{"l": []any{"x", "y", "z"}},
			to:   map[string]any{"l": []any{"y", "z"}},
			want: map[string]any{"l/0": "y", "l/1": "z", "l/2": nil},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []DiffOption
			if tt.oneSided {
				opts = append(opts, OneSided())
			}
			d := MustFrom(tt.from).Diff(MustFrom(tt.to), opts...)
			if diff := cmp.Diff(tt.want, d.KeyMap()); diff != "" {
				t.Errorf("Diff() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDiffSelfEmpty(t *testing.T) {
	a := MustFrom(map[string]any{"a": map[string]any{"b": []any{1, 2}}, "c": "x"})
	if d := a.Diff(a.Clone()); !d.IsEmpty() {
		t.Errorf("A.Diff(A) = %v, want empty", d)
	}
}

func TestDiffTakesOtherValue(t *testing.T) {
	pairs := [][2]any{
		{map[string]any{"a": 1, "b": map[string]any{"c": 2}}, map[string]any{"a": 2, "d": 4}},
		{map[string]any{"x": []any{1, 2, 3}}, map[string]any{"x": map[string]any{"k": 1}}},
		{map[string]any{}, map[string]any{"a": map[string]any{"b": "c"}}},
		{map[string]any{"a": map[string]any{"b": "c"}}, map[string]any{}},
	}
	for _, pair := range pairs {
		a, b := MustFrom(pair[0]), MustFrom(pair[1])
		for _, e := range a.Diff(b).Entries() {
			if !Equal(e.Value, b.Get(e.Path)) {
				t.Errorf("diff entry %s = %v, other holds %v", e.Path, e.Value, b.Get(e.Path))
			}
		}
	}
}
