package update

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/signadot/pathmodel/model"
	"github.com/signadot/pathmodel/store"
)

const teamsDoc = `{
	"teams": {
		"t1": {"ownerId": "u1", "owner": {"name": "A"}},
		"t2": {"ownerId": "u2"},
		"t3": {"ownerId": "u1", "archived": true}
	},
	"groups": {
		"g1": {"memberId": "m1", "member": {"name": "M"}}
	}
}`

func register(t *testing.T, r *model.Registry, name string, kind model.Kind, def *model.Definition) {
	t.Helper()
	if _, err := r.Register(name, kind, def); err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
}

func notArchived(_ string, v any) bool {
	m, _ := v.(map[string]any)
	return m["archived"] != true
}

func testRegistry(t *testing.T) *model.Registry {
	t.Helper()
	no := false
	r := model.NewRegistry()
	register(t, r, "User", model.KindModel, &model.Definition{
		Fields: map[string]any{"name": "string", "email": "string"},
		Read:   "users",
		Writes: []model.WritePath{
			{Ref: "profiles/$id/user", Model: "UserName"},
			{Ref: "teams", QueryOn: "ownerId", WriteChild: "owner", Model: "UserName",
				ReferenceModel: "Team", SnapFilter: notArchived},
		},
	})
	register(t, r, "UserName", model.KindExtractor, &model.Definition{
		Parent:  "User",
		Extract: map[string]any{"name": "name"},
	})
	register(t, r, "Team", model.KindModel, &model.Definition{
		Fields: map[string]any{"ownerId": "string", "owner": "object"},
		Read:   "teams",
		Writes: []model.WritePath{{Ref: "teamIndex"}},
	})
	register(t, r, "Simple", model.KindModel, &model.Definition{
		Fields: map[string]any{"name": "string", "age": "number"},
		Read:   "simple",
	})
	register(t, r, "Dup", model.KindModel, &model.Definition{
		Fields: map[string]any{"name": "string", "nick": "string"},
		Read:   "dups",
		Writes: []model.WritePath{{Ref: "a/$id"}, {Ref: "a", Model: "DupNick"}},
	})
	register(t, r, "DupNick", model.KindExtractor, &model.Definition{
		Parent:  "Dup",
		Extract: map[string]any{"name": "nick"},
	})
	register(t, r, "Config", model.KindModel, &model.Definition{
		Fields: map[string]any{"theme": "string"},
		Read:   "config",
		HasID:  &no,
	})
	register(t, r, "Member", model.KindModel, &model.Definition{
		Fields: map[string]any{"name": "string"},
		Read:   "members",
		Writes: []model.WritePath{
			{Ref: "groups", QueryOn: "memberId", WriteChild: "member", ReferenceModel: "Ghost"},
		},
	})
	return r
}

func testBuilder(t *testing.T, opts ...Option) *Builder {
	t.Helper()
	st := store.NewMemory(store.WithDocument([]byte(teamsDoc)))
	return New(testRegistry(t), st, opts...)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	b := testBuilder(t)
	tests := []struct {
		name     string
		model    string
		id       string
		old, new map[string]any
		want     store.Writes
	}{
		{
			name:  "untouched fields are not written",
			model: "Simple",
			id:    "u1",
			old:   map[string]any{"name": "A", "age": 3},
			new:   map[string]any{"name": "B", "age": 3, "nick": nil},
			want:  store.Writes{"simple/u1/name": "B"},
		},
		{
			name:  "removed field",
			model: "Simple",
			id:    "u1",
			old:   map[string]any{"name": "A", "age": 3},
			new:   map[string]any{"name": "A", "age": nil},
			want:  store.Writes{"simple/u1/age": nil},
		},
		{
			name:  "no change",
			model: "Simple",
			id:    "u1",
			old:   map[string]any{"name": "A"},
			new:   map[string]any{"name": "A"},
			want:  store.Writes{},
		},
		{
			name:  "extractor targets and fan-out",
			model: "User",
			id:    "u1",
			old:   map[string]any{"name": "A", "email": "a@x"},
			new:   map[string]any{"name": "B", "email": "a@x"},
			want: store.Writes{
				"profiles/u1/user/name": "B",
				"teams/t1/owner/name":   "B",
				"users/u1/name":         "B",
			},
		},
		{
			name:  "fan-out untouched by unrelated change",
			model: "User",
			id:    "u1",
			old:   map[string]any{"name": "A", "email": "a@x"},
			new:   map[string]any{"name": "A", "email": "b@x"},
			want:  store.Writes{"users/u1/email": "b@x"},
		},
		{
			name:  "first destination wins",
			model: "Dup",
			id:    "u1",
			old:   map[string]any{"name": "A", "nick": "x"},
			new:   map[string]any{"name": "B", "nick": "y"},
			want: store.Writes{
				"a/u1/name":    "B",
				"a/u1/nick":    "y",
				"dups/u1/name": "B",
				"dups/u1/nick": "y",
			},
		},
		{
			name:  "no id",
			model: "Config",
			old:   map[string]any{"theme": "dark"},
			new:   map[string]any{"theme": "light"},
			want:  store.Writes{"config/theme": "light"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := b.Update(ctx, tt.model, tt.id, tt.old, tt.new)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Update() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestUpdateErrors(t *testing.T) {
	ctx := context.Background()
	b := testBuilder(t)
	if _, err := b.Update(ctx, "UserName", "u1", nil, nil); !errors.Is(err, model.ErrInvalidModelKind) {
		t.Errorf("Update(extractor) error = %v, want ErrInvalidModelKind", err)
	}
	if _, err := b.Update(ctx, "User", "", nil, nil); !errors.Is(err, model.ErrInvalidPath) {
		t.Errorf("Update(no id) error = %v, want ErrInvalidPath", err)
	}
	if _, err := b.Update(ctx, "Nope", "u1", nil, nil); !errors.Is(err, model.ErrModelNotFound) {
		t.Errorf("Update(Nope) error = %v, want ErrModelNotFound", err)
	}
	noStore := New(testRegistry(t), nil)
	_, err := noStore.Update(ctx, "User", "u1", map[string]any{"name": "A"}, map[string]any{"name": "B"})
	if !errors.Is(err, model.ErrQueryFailure) {
		t.Errorf("Update(no store) error = %v, want ErrQueryFailure", err)
	}
}

func TestAddSet(t *testing.T) {
	b := testBuilder(t)
	got, err := b.Add("User", "u1", map[string]any{"name": "A", "email": "e"})
	if err != nil {
		t.Fatal(err)
	}
	want := store.Writes{
		"profiles/u1/user": map[string]any{"name": "A"},
		"users/u1":         map[string]any{"name": "A", "email": "e"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Add() mismatch (-want +got):\n%s", diff)
	}

	got, err = b.Set("Config", map[string]any{"theme": "dark"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(store.Writes{"config": map[string]any{"theme": "dark"}}, got); diff != "" {
		t.Errorf("Set() mismatch (-want +got):\n%s", diff)
	}
	if _, err := b.Set("User", map[string]any{}); !errors.Is(err, model.ErrInvalidModelKind) {
		t.Errorf("Set(User) error = %v, want ErrInvalidModelKind", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	b := testBuilder(t)
	got, err := b.Delete(ctx, "User", []string{"u1"})
	if err != nil {
		t.Fatal(err)
	}
	want := store.Writes{
		"profiles/u1/user":     nil,
		"users/u1":             nil,
		"teams/t1/owner":       nil,
		"teams/t1/ownerId":     nil,
		"teamIndex/t1/owner":   nil,
		"teamIndex/t1/ownerId": nil,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Delete() mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteMissingReferenceModel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	b := testBuilder(t, WithLogger(log))
	got, err := b.Delete(context.Background(), "Member", []string{"m1"})
	if err != nil {
		t.Fatal(err)
	}
	want := store.Writes{
		"members/m1":         nil,
		"groups/g1/member":   nil,
		"groups/g1/memberId": nil,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Delete() mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(buf.String(), "Ghost") {
		t.Errorf("missing reference model not logged: %q", buf.String())
	}
}

func TestDrop(t *testing.T) {
	b := testBuilder(t)
	got, err := b.Drop("User")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(store.Writes{"profiles": nil, "users": nil}, got); diff != "" {
		t.Errorf("Drop() mismatch (-want +got):\n%s", diff)
	}
}

func TestReplacers(t *testing.T) {
	r := model.NewRegistry()
	register(t, r, "Scoped", model.KindModel, &model.Definition{
		Fields: map[string]any{"v": "string"},
		Read:   "$tenant/scoped",
	})
	repl, err := store.NewReplacers(map[string]string{"tenant": "acme"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := New(r, nil, WithReplacers(repl)).Add("Scoped", "s1", map[string]any{"v": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(store.Writes{"acme/scoped/s1": map[string]any{"v": "x"}}, got); diff != "" {
		t.Errorf("Add() mismatch (-want +got):\n%s", diff)
	}
	if _, err := New(r, nil).Add("Scoped", "s1", map[string]any{"v": "x"}); !errors.Is(err, store.ErrUndefinedPlaceholder) {
		t.Errorf("Add() without replacers error = %v, want ErrUndefinedPlaceholder", err)
	}
}
