package model

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const testDoc = `
parsers:
  Money:
    fields:
      amount: "!^number"
      currency: string
models:
  User:
    read: users
    fields:
      name: "!string"
      age: "!^number"
      address:
        city: string
    writes:
      - ref: teams
        queryOn: ownerId
        writeChild: owner
        model: UserSummary
        filter: "value.active == true"
    validators:
      - check: "age >= 18"
        error: too-young
extractors:
  UserBrief:
    parent: UserSummary
    extract:
      name: name
  UserSummary:
    parent: User
    extract:
      name: "!name"
replacers:
  tenant: acme
`

func TestLoadDocument(t *testing.T) {
	doc, err := LoadDocument([]byte(testDoc))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]string{"tenant": "acme"}, doc.Replacers); diff != "" {
		t.Errorf("Replacers mismatch (-want +got):\n%s", diff)
	}
	r := NewRegistry()
	if err := doc.Register(r); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Money", "User", "UserBrief", "UserSummary"}, r.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	user := r.MustModel("User")
	if _, ok := user.Field("address/city"); !ok {
		t.Error("nested field address/city missing")
	}
	vs := user.Validators()
	if len(vs) != 1 || vs[0].Code != "too-young" {
		t.Fatalf("validators = %+v", vs)
	}
	if !vs[0].Check(map[string]any{"age": 30}) || vs[0].Check(map[string]any{"age": 3}) {
		t.Error("validator predicate mismatch")
	}
	writes := user.Writes()
	if len(writes) != 2 || !writes[0].IsQuery() || writes[0].SnapFilter == nil {
		t.Fatalf("writes = %+v", writes)
	}
	if !writes[0].SnapFilter("t1", map[string]any{"active": true}) {
		t.Error("SnapFilter rejected an active record")
	}
	if writes[0].SnapFilter("t2", map[string]any{"active": false}) {
		t.Error("SnapFilter accepted an inactive record")
	}
	if r.MustModel("Money").Kind != KindParser {
		t.Error("Money is not a parser")
	}
}

func TestValidatorFieldNamedLikeBuiltin(t *testing.T) {
	const d = `
models:
  Cart:
    read: carts
    fields:
      count: "^number"
      first: string
    validators:
      - check: "count > 0 && first != ''"
        error: empty
`
	doc, err := LoadDocument([]byte(d))
	if err != nil {
		t.Fatal(err)
	}
	r := NewRegistry()
	if err := doc.Register(r); err != nil {
		t.Fatal(err)
	}
	check := r.MustModel("Cart").Validators()[0].Check
	if !check(map[string]any{"count": 2, "first": "apple"}) {
		t.Error("validator rejected a filled cart")
	}
	if check(map[string]any{"count": 0, "first": "apple"}) {
		t.Error("validator accepted an empty cart")
	}
}

func TestDocumentErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"orphan extractor", "extractors:\n  X:\n    parent: Nope\n    extract:\n      a: a\n"},
		{"bad validator", "models:\n  A:\n    read: a\n    fields:\n      x: string\n    validators:\n      - check: \"x >=\"\n        error: e\n"},
		{"bad yaml", "models: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := LoadDocument([]byte(tt.doc))
			if err == nil {
				err = doc.Register(NewRegistry())
			}
			if !errors.Is(err, ErrInvalidDefinition) {
				t.Errorf("error = %v, want ErrInvalidDefinition", err)
			}
		})
	}
}

func TestOpenDocument(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "schema.yaml"), []byte(testDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := OpenDocument(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Models) != 1 {
		t.Errorf("len(Models) = %d, want 1", len(doc.Models))
	}
	if _, err := OpenDocument(t.TempDir()); err == nil {
		t.Error("OpenDocument of an empty dir succeeded")
	}
}
