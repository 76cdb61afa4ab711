package ptree

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		set  [][2]any
		want any
	}{
		{
			name: "empty",
			want: nil,
		},
		{
			name: "root array",
			set:  [][2]any{{"0/name", "a"}, {"1/name", "b"}},
			want: []any{map[string]any{"name": "a"}, map[string]any{"name": "b"}},
		},
		{
			name: "sparse array",
			set:  [][2]any{{"a/3", "x"}},
			want: map[string]any{"a": []any{nil, nil, nil, "x"}},
		},
		{
			name: "demoted array",
			set:  [][2]any{{"a/0", 1}, {"a/b", 2}},
			want: map[string]any{"a": map[string]any{"0": 1, "b": 2}},
		},
		{
			name: "too sparse",
			set:  [][2]any{{"a/1000", 1}},
			want: map[string]any{"a": map[string]any{"1000": 1}},
		},
		{
			name: "leading zero key",
			set:  [][2]any{{"a/01", 1}},
			want: map[string]any{"a": map[string]any{"01": 1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := New()
			for _, kv := range tt.set {
				if err := tr.Set(kv[0].(string), kv[1]); err != nil {
					t.Fatal(err)
				}
			}
			if diff := cmp.Diff(tt.want, tr.Build()); diff != "" {
				t.Errorf("Build() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildStrict(t *testing.T) {
	tr := New()
	if err := tr.Set("0", "a"); err != nil {
		t.Fatal(err)
	}
	if err := tr.Set("name", "b"); err != nil {
		t.Fatal(err)
	}
	_, err := tr.BuildStrict()
	if !errors.Is(err, ErrConsistency) {
		t.Fatalf("BuildStrict() error = %v, want ErrConsistency", err)
	}

	ok := MustFrom(map[string]any{"a": []any{1}})
	got, err := ok.BuildStrict()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]any{"a": []any{1}}, got); diff != "" {
		t.Errorf("BuildStrict() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildRemovedAll(t *testing.T) {
	tr := MustFrom(map[string]any{"a": 1})
	tr.Remove("a")
	if got := tr.Build(); got != nil {
		t.Errorf("Build() = %v, want nil", got)
	}
	if !tr.IsEmpty() {
		t.Errorf("IsEmpty() = false")
	}
}
