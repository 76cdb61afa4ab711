package model

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/signadot/pathmodel/descriptor"
)

func boolp(b bool) *bool { return &b }

func TestRegisterModel(t *testing.T) {
	r := NewRegistry()
	m, err := r.Register("User", KindModel, &Definition{
		Fields: map[string]any{
			"name":    "!string",
			"age":     "!^number",
			"address": map[string]any{"city": "string", "zip": "?string"},
		},
		Read:   "users",
		Writes: []WritePath{{Ref: "/byName/"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	var paths []string
	for _, f := range m.Fields() {
		paths = append(paths, f.Path)
	}
	if diff := cmp.Diff([]string{"address/city", "address/zip", "age", "name"}, paths); diff != "" {
		t.Errorf("field paths mismatch (-want +got):\n%s", diff)
	}
	age, ok := m.Field("age")
	if !ok {
		t.Fatal("no age field")
	}
	if !age.Desc.Required || !age.Desc.AutoCast || age.Desc.PrimitiveType != descriptor.TypeNumber {
		t.Errorf("age descriptor = %+v", age.Desc)
	}
	var refs []string
	for _, w := range m.Writes() {
		refs = append(refs, w.Ref)
	}
	if diff := cmp.Diff([]string{"byName", "users"}, refs); diff != "" {
		t.Errorf("write refs mismatch (-want +got):\n%s", diff)
	}
	if !m.HasID {
		t.Error("HasID = false, want default true")
	}
	if diff := cmp.Diff([]string{"User"}, r.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestRegisterReadAlreadyWritten(t *testing.T) {
	r := NewRegistry()
	m, err := r.Register("Flag", KindModel, &Definition{
		Fields: map[string]any{"on": "boolean"},
		Read:   "flags",
		Writes: []WritePath{{Ref: "flags"}},
		HasID:  boolp(false),
	})
	if err != nil {
		t.Fatal(err)
	}
	if n := len(m.Writes()); n != 1 {
		t.Errorf("len(Writes()) = %d, want 1", n)
	}
	if m.HasID {
		t.Error("HasID = true, want false")
	}
}

func TestRegisterErrors(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Register("User", KindModel, &Definition{
		Fields: map[string]any{"name": "string"},
		Read:   "users",
	}); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name    string
		model   string
		kind    Kind
		def     *Definition
		wantErr error
	}{
		{"reserved", "String", KindModel, &Definition{Fields: map[string]any{"a": "string"}, Read: "x"}, ErrInvalidDefinition},
		{"this", "this", KindParser, &Definition{Fields: map[string]any{"a": "string"}}, ErrInvalidDefinition},
		{"duplicate", "User", KindModel, &Definition{Fields: map[string]any{"a": "string"}, Read: "x"}, ErrAlreadyExists},
		{"no fields", "A", KindModel, &Definition{Read: "x"}, ErrInvalidDefinition},
		{"no read", "A", KindModel, &Definition{Fields: map[string]any{"a": "string"}}, ErrInvalidDefinition},
		{"bad annotation", "A", KindModel, &Definition{Fields: map[string]any{"a": "string("}, Read: "x"}, ErrParse},
		{"non string annotation", "A", KindModel, &Definition{Fields: map[string]any{"a": 3}, Read: "x"}, ErrInvalidDefinition},
		{"half query", "A", KindModel, &Definition{Fields: map[string]any{"a": "string"}, Read: "x",
			Writes: []WritePath{{Ref: "y", QueryOn: "id"}}}, ErrInvalidDefinition},
		{"bad hook", "A", KindModel, &Definition{Fields: map[string]any{"a": "string"}, Read: "x",
			Hooks: map[Event][]Hook{"onExplode": nil}}, ErrInvalidDefinition},
		{"missing parent", "A", KindExtractor, &Definition{Parent: "Nope", Extract: map[string]any{"a": ""}}, ErrModelNotFound},
		{"empty extract", "A", KindExtractor, &Definition{Parent: "User"}, ErrInvalidDefinition},
		{"bad kind", "A", Kind(9), &Definition{}, ErrInvalidModelKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Register(tt.model, tt.kind, tt.def)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if diff := cmp.Diff([]string{"User"}, r.Names()); diff != "" {
		t.Errorf("failed registrations were stored (-want +got):\n%s", diff)
	}
}

func TestRegisterExtractor(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Register("User", KindModel, &Definition{
		Fields: map[string]any{"name": "string", "email": "string"},
		Read:   "users",
		HasID:  boolp(false),
	}); err != nil {
		t.Fatal(err)
	}
	x, err := r.Register("UserSummary", KindExtractor, &Definition{
		Parent:  "User",
		Extract: map[string]any{"name": "!name", "contact": map[string]any{"mail": "?email"}, "alias": ""},
		Writes:  []WritePath{{Ref: "ignored"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []ExtractField{
		{Output: "alias", Source: "alias"},
		{Output: "contact/mail", Source: "email"},
		{Output: "name", Source: "name", Required: true},
	}
	if diff := cmp.Diff(want, x.Extract()); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
	if x.Read != "users" || x.HasID || len(x.Writes()) != 0 {
		t.Errorf("extractor inherits read=%q hasID=%v writes=%v", x.Read, x.HasID, x.Writes())
	}
}

func TestRegisterParser(t *testing.T) {
	r := NewRegistry()
	p, err := r.Register("Money", KindParser, &Definition{
		Fields: map[string]any{"amount": "!^number", "currency": "string"},
		Read:   "ignored",
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Read != "" || len(p.Writes()) != 0 {
		t.Errorf("parser has paths: read=%q writes=%v", p.Read, p.Writes())
	}
	if _, err := r.Model("Nope"); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Model(Nope) error = %v, want ErrModelNotFound", err)
	}
}
