package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/signadot/pathmodel/model"
	"github.com/signadot/pathmodel/store"

	"github.com/stretchr/testify/require"
)

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (s *seqIDs) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id%d", s.n)
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) hook(_ context.Context, call *model.HookCall) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, string(call.Event)+":"+call.ID)
	return nil
}

func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.events
	r.events = nil
	return res
}

func guard(_ context.Context, call *model.HookCall) error {
	if call.ID == "locked" {
		return errors.New("entity is locked")
	}
	return nil
}

type fixture struct {
	s   *Session
	mem *store.Memory
	rec *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	rec := &recorder{}
	no := false
	r := model.NewRegistry()
	defs := []struct {
		name string
		kind model.Kind
		def  *model.Definition
	}{
		{"Team", model.KindModel, &model.Definition{
			Fields: map[string]any{"name": "!string"},
			Read:   "teams",
		}},
		{"Member", model.KindModel, &model.Definition{
			Fields: map[string]any{
				"name":   "!string",
				"age":    "^number",
				"teamId": "string",
				"team":   ">Team(teamId)",
			},
			Read:   "members",
			Writes: []model.WritePath{{Ref: "names", Model: "MemberName"}},
			Hooks: map[model.Event][]model.Hook{
				model.OnAdd:       {rec.hook},
				model.AfterAdd:    {rec.hook},
				model.OnUpdate:    {rec.hook},
				model.AfterUpdate: {rec.hook},
				model.OnDelete:    {rec.hook, guard},
				model.AfterDelete: {rec.hook},
				model.OnGet:       {rec.hook},
			},
		}},
		{"MemberName", model.KindExtractor, &model.Definition{
			Parent:  "Member",
			Extract: map[string]any{"name": "!name"},
		}},
		{"Settings", model.KindModel, &model.Definition{
			Fields: map[string]any{"theme": "string"},
			Read:   "settings",
			HasID:  &no,
		}},
		{"Tag", model.KindModel, &model.Definition{
			Fields: map[string]any{"label": "string"},
			Read:   "tags",
		}},
		{"Post", model.KindModel, &model.Definition{
			Fields: map[string]any{"title": "string", "tagIds": "object", "tags": ">[Tag](tagIds)"},
			Read:   "posts",
		}},
		{"Raw", model.KindParser, &model.Definition{
			Fields: map[string]any{"v": "string"},
		}},
	}
	for _, d := range defs {
		_, err := r.Register(d.name, d.kind, d.def)
		require.NoError(t, err, d.name)
	}
	mem := store.NewMemory()
	return &fixture{
		s:   New(r, mem, WithIDs(&seqIDs{})),
		mem: mem,
		rec: rec,
	}
}

func (f *fixture) read(t *testing.T, path string) any {
	t.Helper()
	v, err := f.mem.Read(context.Background(), path)
	require.NoError(t, err)
	return v
}

func TestAddGet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	teamID, err := f.s.Add(ctx, "Team", map[string]any{"name": "Red"})
	require.NoError(t, err)
	require.Equal(t, "id1", teamID)

	id, err := f.s.Add(ctx, "Member", map[string]any{"name": "ann", "age": "30", "teamId": teamID})
	require.NoError(t, err)
	require.Equal(t, "id2", id)
	require.Equal(t, []string{"onAdd:id2", "afterAdd:id2"}, f.rec.take())

	want := map[string]any{
		"name":   "ann",
		"age":    float64(30),
		"teamId": "id1",
		"team":   map[string]any{"name": "Red"},
	}
	require.Equal(t, want, f.read(t, "members/id2"))
	require.Equal(t, map[string]any{"name": "ann"}, f.read(t, "names/id2"))

	got, err := f.s.Get(ctx, "Member", id)
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Equal(t, []string{"onGet:id2"}, f.rec.take())

	got, err = f.s.Get(ctx, "MemberName", id)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"name": "ann"}, got)

	_, err = f.s.Get(ctx, "Member", "nope")
	require.ErrorIs(t, err, model.ErrDataNotFound)
	_, err = f.s.Get(ctx, "Member", "")
	require.ErrorIs(t, err, model.ErrInvalidPath)
	_, err = f.s.Get(ctx, "Raw", "x")
	require.ErrorIs(t, err, model.ErrInvalidModelKind)
	_, err = f.s.Add(ctx, "MemberName", map[string]any{"name": "x"})
	require.ErrorIs(t, err, model.ErrInvalidModelKind)

	// an optional reference to nothing is left out
	bob, err := f.s.Add(ctx, "Member", map[string]any{"name": "bob", "teamId": "missing"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"name": "bob", "teamId": "missing"}, f.read(t, "members/"+bob))
	_, err = f.s.Add(ctx, "Member", map[string]any{"age": 3})
	require.ErrorIs(t, err, model.ErrRequiredFieldMissing)
}

func TestSet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.s.Set(ctx, "Settings", "", map[string]any{"theme": "dark"}))
	got, err := f.s.Get(ctx, "Settings", "")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"theme": "dark"}, got)

	require.NoError(t, f.s.Set(ctx, "Member", "m9", map[string]any{"name": "cy"}))
	require.Equal(t, map[string]any{"name": "cy"}, f.read(t, "members/m9"))
	require.Equal(t, map[string]any{"name": "cy"}, f.read(t, "names/m9"))

	require.ErrorIs(t, f.s.Set(ctx, "Member", "", map[string]any{"name": "cy"}), model.ErrInvalidPath)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	red, err := f.s.Add(ctx, "Team", map[string]any{"name": "Red"})
	require.NoError(t, err)
	blue, err := f.s.Add(ctx, "Team", map[string]any{"name": "Blue"})
	require.NoError(t, err)
	id, err := f.s.Add(ctx, "Member", map[string]any{"name": "ann", "age": 30, "teamId": red})
	require.NoError(t, err)
	f.rec.take()

	_, err = f.s.Update(ctx, "Member", id, map[string]any{"age": 31})
	require.NoError(t, err)
	require.Equal(t, float64(31), f.read(t, "members/"+id+"/age"))
	require.Equal(t, "Red", f.read(t, "members/"+id+"/team/name"))
	require.Equal(t, map[string]any{"name": "ann"}, f.read(t, "names/"+id))
	require.Equal(t, []string{"onUpdate:" + id, "afterUpdate:" + id}, f.rec.take())

	// a changed exchange field reloads the reference
	got, err := f.s.Update(ctx, "Member", id, map[string]any{"teamId": blue, "name": "anna"})
	require.NoError(t, err)
	require.Equal(t, "Blue", got.(map[string]any)["team"].(map[string]any)["name"])
	require.Equal(t, "Blue", f.read(t, "members/"+id+"/team/name"))
	require.Equal(t, map[string]any{"name": "anna"}, f.read(t, "names/"+id))

	// null removes an optional field
	_, err = f.s.Update(ctx, "Member", id, map[string]any{"age": nil})
	require.NoError(t, err)
	require.Nil(t, f.read(t, "members/"+id+"/age"))
	require.Equal(t, "anna", f.read(t, "members/"+id+"/name"))

	_, err = f.s.Update(ctx, "Member", "nope", map[string]any{"age": 1})
	require.ErrorIs(t, err, model.ErrDataNotFound)
	_, err = f.s.Update(ctx, "Member", id, map[string]any{"name": nil})
	require.ErrorIs(t, err, model.ErrRequiredFieldMissing)
}

func TestUpdateKeepsReferences(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tag, err := f.s.Add(ctx, "Tag", map[string]any{"label": "go"})
	require.NoError(t, err)
	id, err := f.s.Add(ctx, "Post", map[string]any{"title": "A", "tagIds": map[string]any{tag: true}})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"title":  "A",
		"tagIds": map[string]any{tag: true},
		"tags":   map[string]any{tag: map[string]any{"label": "go"}},
	}, f.read(t, "posts/"+id))

	_, err = f.s.Update(ctx, "Post", id, map[string]any{"title": "B"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"title":  "B",
		"tagIds": map[string]any{tag: true},
		"tags":   map[string]any{tag: map[string]any{"label": "go"}},
	}, f.read(t, "posts/"+id))

	// dropping the id drops the referenced item
	_, err = f.s.Update(ctx, "Post", id, map[string]any{"tagIds": map[string]any{tag: nil}})
	require.NoError(t, err)
	require.Nil(t, f.read(t, "posts/"+id+"/tags"))
}

func TestUpdateMany(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.s.Add(ctx, "Member", map[string]any{"name": "ann", "age": 1})
	require.NoError(t, err)
	b, err := f.s.Add(ctx, "Member", map[string]any{"name": "bob", "age": 2})
	require.NoError(t, err)
	f.rec.take()

	got, err := f.s.UpdateMany(ctx, "Member", map[string]any{
		a: map[string]any{"age": 10},
		b: map[string]any{"name": "rob"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, float64(10), f.read(t, "members/"+a+"/age"))
	require.Equal(t, "rob", f.read(t, "members/"+b+"/name"))
	require.Equal(t, "rob", f.read(t, "names/"+b+"/name"))
	require.ElementsMatch(t,
		[]string{"onUpdate:" + a, "onUpdate:" + b, "afterUpdate:" + a, "afterUpdate:" + b},
		f.rec.take())

	_, err = f.s.UpdateMany(ctx, "Member", map[string]any{a: map[string]any{"age": 3}, "nope": map[string]any{}})
	require.ErrorIs(t, err, model.ErrDataNotFound)
	require.Equal(t, float64(10), f.read(t, "members/"+a+"/age"))
}

func TestDeleteDrop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.s.Add(ctx, "Member", map[string]any{"name": "ann"})
	require.NoError(t, err)
	require.NoError(t, f.s.Set(ctx, "Member", "locked", map[string]any{"name": "lee"}))
	f.rec.take()

	require.NoError(t, f.s.Delete(ctx, "Member", id))
	require.Nil(t, f.read(t, "members/"+id))
	require.Nil(t, f.read(t, "names/"+id))
	require.Equal(t, []string{"onDelete:" + id, "afterDelete:" + id}, f.rec.take())

	err = f.s.Delete(ctx, "Member", "locked")
	require.ErrorContains(t, err, "entity is locked")
	var me *model.Error
	require.ErrorAs(t, err, &me)
	require.Equal(t, string(model.OnDelete), me.Op)
	require.NotNil(t, f.read(t, "members/locked"))

	_, err = f.s.Add(ctx, "Team", map[string]any{"name": "Red"})
	require.NoError(t, err)
	require.NoError(t, f.s.Drop(ctx, "Team"))
	require.Nil(t, f.read(t, "teams"))
	require.NotNil(t, f.read(t, "members"))
}

func TestReplacers(t *testing.T) {
	ctx := context.Background()
	r := model.NewRegistry()
	_, err := r.Register("Note", model.KindModel, &model.Definition{
		Fields: map[string]any{"text": "string"},
		Read:   "$tenant/notes",
	})
	require.NoError(t, err)
	repl, err := store.NewReplacers(map[string]string{"tenant": "acme"})
	require.NoError(t, err)
	mem := store.NewMemory()
	s := New(r, mem, WithReplacers(repl), WithIDs(&seqIDs{}))

	id, err := s.Add(ctx, "Note", map[string]any{"text": "hi"})
	require.NoError(t, err)
	v, err := mem.Read(ctx, "acme/notes/"+id+"/text")
	require.NoError(t, err)
	require.Equal(t, "hi", v)

	got, err := s.Get(ctx, "Note", id)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"text": "hi"}, got)
}
