// Package session runs the lifecycle of stored models: it parses input
// through the pipeline, turns changes into write sets and runs the
// model's hooks around each store write.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/signadot/pathmodel/autoid"
	"github.com/signadot/pathmodel/debug"
	"github.com/signadot/pathmodel/model"
	"github.com/signadot/pathmodel/pipeline"
	"github.com/signadot/pathmodel/ptree"
	"github.com/signadot/pathmodel/store"
	"github.com/signadot/pathmodel/update"

	"golang.org/x/sync/errgroup"
)

// Session binds a registry to a store.
type Session struct {
	reg  *model.Registry
	st   store.Store
	p    *pipeline.Pipeline
	b    *update.Builder
	ids  pipeline.IDProvider
	ev   pipeline.Evaluator
	repl *store.Replacers
	log  *slog.Logger
}

type Option func(*Session)

// WithEvaluator sets the evaluator of computed fields and filters.
func WithEvaluator(ev pipeline.Evaluator) Option {
	return func(s *Session) { s.ev = ev }
}

// WithIDs sets the provider of entity ids and model array item ids.
func WithIDs(ids pipeline.IDProvider) Option {
	return func(s *Session) { s.ids = ids }
}

// WithReplacers sets the values of $name placeholders in path templates.
func WithReplacers(r *store.Replacers) Option {
	return func(s *Session) { s.repl = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.log = l }
}

func New(reg *model.Registry, st store.Store, opts ...Option) *Session {
	s := &Session{reg: reg, st: st}
	for _, opt := range opts {
		opt(s)
	}
	if s.ids == nil {
		s.ids = autoid.NewSequence()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	popts := []pipeline.Option{
		pipeline.WithLoader(s),
		pipeline.WithIDs(s.ids),
		pipeline.WithLogger(s.log),
	}
	if s.ev != nil {
		popts = append(popts, pipeline.WithEvaluator(s.ev))
	}
	s.p = pipeline.New(reg, popts...)
	s.b = update.New(reg, st, update.WithReplacers(s.repl), update.WithLogger(s.log))
	return s
}

// Pipeline returns the pipeline parsing for s.
func (s *Session) Pipeline() *pipeline.Pipeline {
	return s.p
}

func (s *Session) model(name string, writable bool) (*model.Model, error) {
	m, err := s.reg.Model(name)
	if err != nil {
		return nil, err
	}
	if m.IsParser() || (writable && m.Kind != model.KindModel) {
		return nil, fmt.Errorf("%w: %s is a %s", model.ErrInvalidModelKind, name, m.Kind)
	}
	return m, nil
}

func checkID(m *model.Model, id string) (string, error) {
	if !m.HasID {
		return "", nil
	}
	if id == "" {
		return "", fmt.Errorf("%w: %s needs an id", model.ErrInvalidPath, m.Name)
	}
	return id, nil
}

// readRaw returns the value stored at the read path of m for id.
func (s *Session) readRaw(ctx context.Context, m *model.Model, id string) (any, error) {
	p, err := s.repl.Resolve(m.Read, id)
	if err != nil {
		return nil, err
	}
	return s.st.Read(ctx, p)
}

// Load implements pipeline.Loader by reading and parsing stored data.
// Stored references are kept as they are; binds are reloaded.
func (s *Session) Load(ctx context.Context, name, id string) (any, error) {
	m, err := s.model(name, false)
	if err != nil {
		return nil, err
	}
	if id, err = checkID(m, id); err != nil {
		return nil, err
	}
	raw, err := s.readRaw(ctx, m, id)
	if err != nil || raw == nil {
		return nil, err
	}
	return s.p.Parse(ctx, name, raw, pipeline.Getter(), pipeline.OldSnapshot(raw))
}

// Get returns the stored entity parsed as the named model or
// extractor, after the onGet hooks ran.
func (s *Session) Get(ctx context.Context, name, id string) (any, error) {
	m, err := s.model(name, false)
	if err != nil {
		return nil, model.Wrap(name, "get", "", err)
	}
	if id, err = checkID(m, id); err != nil {
		return nil, model.Wrap(name, "get", "", err)
	}
	v, err := s.Load(ctx, name, id)
	if err != nil {
		return nil, model.Wrap(name, "get", "", err)
	}
	if v == nil {
		return nil, model.Wrap(name, "get", "", fmt.Errorf("%w: %s %q", model.ErrDataNotFound, name, id))
	}
	if err := s.hooks(ctx, m, model.OnGet, &model.HookCall{ID: id, Data: v}); err != nil {
		return nil, err
	}
	return v, nil
}

// Add parses raw and stores it as a new entity, returning its id. The
// id is empty for models without ids.
func (s *Session) Add(ctx context.Context, name string, raw any) (string, error) {
	m, err := s.model(name, true)
	if err != nil {
		return "", model.Wrap(name, "add", "", err)
	}
	id := ""
	if m.HasID {
		id = s.ids.Next()
	}
	v, err := s.p.Parse(ctx, name, raw)
	if err != nil {
		return "", err
	}
	call := &model.HookCall{ID: id, Data: v}
	if err := s.hooks(ctx, m, model.OnAdd, call); err != nil {
		return "", err
	}
	w, err := s.b.Add(name, id, v)
	if err != nil {
		return "", err
	}
	if err := s.write(ctx, m, "add", w); err != nil {
		return "", err
	}
	if err := s.hooks(ctx, m, model.AfterAdd, call); err != nil {
		return "", err
	}
	return id, nil
}

// Set parses raw and stores it in place of the entity id, or of the
// whole model for models without ids.
func (s *Session) Set(ctx context.Context, name, id string, raw any) error {
	m, err := s.model(name, true)
	if err != nil {
		return model.Wrap(name, "set", "", err)
	}
	if id, err = checkID(m, id); err != nil {
		return model.Wrap(name, "set", "", err)
	}
	v, err := s.p.Parse(ctx, name, raw)
	if err != nil {
		return err
	}
	call := &model.HookCall{ID: id, Data: v}
	if err := s.hooks(ctx, m, model.OnSet, call); err != nil {
		return err
	}
	var w store.Writes
	if m.HasID {
		w, err = s.b.Add(name, id, v)
	} else {
		w, err = s.b.Set(name, v)
	}
	if err != nil {
		return err
	}
	if err := s.write(ctx, m, "set", w); err != nil {
		return err
	}
	return s.hooks(ctx, m, model.AfterSet, call)
}

// change is one computed update.
type change struct {
	id        string
	old, next any
	writes    store.Writes
}

// prepare merges patch into the stored entity, parses the result and
// computes the writes of the difference.
func (s *Session) prepare(ctx context.Context, m *model.Model, id string, patch any) (*change, error) {
	id, err := checkID(m, id)
	if err != nil {
		return nil, model.Wrap(m.Name, "update", "", err)
	}
	old, err := s.readRaw(ctx, m, id)
	if err != nil {
		return nil, model.Wrap(m.Name, "update", "", err)
	}
	if old == nil {
		return nil, model.Wrap(m.Name, "update", "", fmt.Errorf("%w: %s %q", model.ErrDataNotFound, m.Name, id))
	}
	merged, err := ptree.From(old)
	if err != nil {
		return nil, model.Wrap(m.Name, "update", "", err)
	}
	if err := merged.Merge(patch); err != nil {
		return nil, model.Wrap(m.Name, "update", "", fmt.Errorf("patch: %w", err))
	}
	next, err := s.p.Parse(ctx, m.Name, merged.Build(),
		pipeline.KeepNull(), pipeline.OldSnapshot(old), pipeline.NewSnapshot(patch))
	if err != nil {
		return nil, err
	}
	w, err := s.b.Update(ctx, m.Name, id, old, next)
	if err != nil {
		return nil, err
	}
	return &change{id: id, old: old, next: next, writes: w}, nil
}

// Update applies patch to the stored entity id and writes what
// changed. It returns the updated entity.
func (s *Session) Update(ctx context.Context, name, id string, patch any) (any, error) {
	m, err := s.model(name, true)
	if err != nil {
		return nil, model.Wrap(name, "update", "", err)
	}
	c, err := s.prepare(ctx, m, id, patch)
	if err != nil {
		return nil, err
	}
	call := &model.HookCall{ID: c.id, Data: c.next, Old: c.old}
	if err := s.hooks(ctx, m, model.OnUpdate, call); err != nil {
		return nil, err
	}
	if err := s.write(ctx, m, "update", c.writes); err != nil {
		return nil, err
	}
	if err := s.hooks(ctx, m, model.AfterUpdate, call); err != nil {
		return nil, err
	}
	return c.next, nil
}

// UpdateMany is Update for several entities of one model, keyed by id.
// Changes are computed concurrently and stored in a single write, in
// which the first write to a destination by id order wins.
func (s *Session) UpdateMany(ctx context.Context, name string, patches map[string]any) (map[string]any, error) {
	m, err := s.model(name, true)
	if err != nil {
		return nil, model.Wrap(name, "update", "", err)
	}
	ids := make([]string, 0, len(patches))
	for id := range patches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	changes := make([]*change, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			c, err := s.prepare(gctx, m, id, patches[id])
			if err != nil {
				return err
			}
			changes[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	w := store.Writes{}
	calls := make([]*model.HookCall, len(changes))
	for i, c := range changes {
		calls[i] = &model.HookCall{ID: c.id, Data: c.next, Old: c.old}
		if err := s.hooks(ctx, m, model.OnUpdate, calls[i]); err != nil {
			return nil, err
		}
		for p, v := range c.writes {
			if _, ok := w[p]; !ok {
				w[p] = v
			}
		}
	}
	if err := s.write(ctx, m, "update", w); err != nil {
		return nil, err
	}
	res := make(map[string]any, len(changes))
	for i, c := range changes {
		if err := s.hooks(ctx, m, model.AfterUpdate, calls[i]); err != nil {
			return nil, err
		}
		res[c.id] = c.next
	}
	return res, nil
}

// Delete removes the given entities, and their copies on fan-out
// paths.
func (s *Session) Delete(ctx context.Context, name string, ids ...string) error {
	m, err := s.model(name, true)
	if err != nil {
		return model.Wrap(name, "delete", "", err)
	}
	call := &model.HookCall{Data: ids}
	if len(ids) == 1 {
		call.ID = ids[0]
	}
	if err := s.hooks(ctx, m, model.OnDelete, call); err != nil {
		return err
	}
	w, err := s.b.Delete(ctx, name, ids)
	if err != nil {
		return err
	}
	if err := s.write(ctx, m, "delete", w); err != nil {
		return err
	}
	return s.hooks(ctx, m, model.AfterDelete, call)
}

// Drop removes every stored entity of the named model. No hooks run.
func (s *Session) Drop(ctx context.Context, name string) error {
	m, err := s.model(name, true)
	if err != nil {
		return model.Wrap(name, "drop", "", err)
	}
	w, err := s.b.Drop(name)
	if err != nil {
		return err
	}
	return s.write(ctx, m, "drop", w)
}

func (s *Session) write(ctx context.Context, m *model.Model, op string, w store.Writes) error {
	if len(w) == 0 {
		return nil
	}
	if debug.Update() {
		debug.Logf("%s %s:\n", op, m.Name)
		debug.LogAny(w)
	}
	if err := s.st.Write(ctx, w); err != nil {
		return model.Wrap(m.Name, op, "", err)
	}
	return nil
}

// hooks runs the hooks of m for ev concurrently and waits for them all.
// Hooks share call and must not modify it.
func (s *Session) hooks(ctx context.Context, m *model.Model, ev model.Event, call *model.HookCall) error {
	hs := m.Hooks(ev)
	if len(hs) == 0 {
		return nil
	}
	call.Model, call.Event = m.Name, ev
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range hs {
		g.Go(func() error {
			if debug.Hooks() {
				debug.Logf("hook %s %s[%d] id=%q\n", m.Name, ev, i, call.ID)
			}
			if err := h(gctx, call); err != nil {
				return fmt.Errorf("hook %d: %w", i, err)
			}
			return nil
		})
	}
	return model.Wrap(m.Name, string(ev), "", g.Wait())
}
