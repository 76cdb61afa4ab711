// Package update turns model changes into store writes across every
// write path of a model.
package update

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/signadot/pathmodel/debug"
	"github.com/signadot/pathmodel/model"
	"github.com/signadot/pathmodel/pipeline"
	"github.com/signadot/pathmodel/ptree"
	"github.com/signadot/pathmodel/store"

	"golang.org/x/sync/errgroup"
)

// Builder computes write sets. It reads the store only to resolve
// fan-out paths.
type Builder struct {
	reg  *model.Registry
	st   store.Store
	repl *store.Replacers
	log  *slog.Logger
}

type Option func(*Builder)

func WithReplacers(r *store.Replacers) Option {
	return func(b *Builder) { b.repl = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.log = l }
}

func New(reg *model.Registry, st store.Store, opts ...Option) *Builder {
	b := &Builder{reg: reg, st: st}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = slog.Default()
	}
	return b
}

// writeSet is a store.Writes in which the first write to a destination
// wins.
type writeSet struct {
	w store.Writes
}

func newWriteSet() *writeSet {
	return &writeSet{w: store.Writes{}}
}

func (s *writeSet) add(dest string, v any) {
	dest = ptree.Normalize(dest)
	if _, ok := s.w[dest]; ok {
		if debug.Update() {
			debug.Logf("write to %s already resolved, dropped\n", dest)
		}
		return
	}
	s.w[dest] = v
}

func (b *Builder) writable(name string) (*model.Model, error) {
	m, err := b.reg.Model(name)
	if err != nil {
		return nil, err
	}
	if m.Kind != model.KindModel {
		return nil, fmt.Errorf("%w: %s is a %s", model.ErrInvalidModelKind, name, m.Kind)
	}
	return m, nil
}

func (b *Builder) entityID(m *model.Model, id string) (string, error) {
	if !m.HasID {
		return "", nil
	}
	if id == "" {
		return "", fmt.Errorf("%w: %s needs an id", model.ErrInvalidPath, m.Name)
	}
	return id, nil
}

// shape returns v as written to w: v itself, or its projection by the
// write path's extractor.
func (b *Builder) shape(m *model.Model, w model.WritePath, v any, keepNull bool) (any, error) {
	if w.Model == "" || w.Model == m.Name {
		return v, nil
	}
	x, err := b.reg.Model(w.Model)
	if err != nil {
		return nil, err
	}
	return pipeline.Remap(x, v, keepNull)
}

// Update returns the writes turning old into next, both parsed values
// of the named model, on every write path of the model.
func (b *Builder) Update(ctx context.Context, name, id string, old, next any) (store.Writes, error) {
	m, err := b.writable(name)
	if err != nil {
		return nil, model.Wrap(name, "update", "", err)
	}
	if id, err = b.entityID(m, id); err != nil {
		return nil, model.Wrap(name, "update", "", err)
	}
	writes := m.Writes()
	diffs := make([]*ptree.Tree, len(writes))
	for i, w := range writes {
		d, err := b.diff(m, w, old, next)
		if err != nil {
			return nil, model.Wrap(name, "update", w.Ref, err)
		}
		diffs[i] = d
	}
	hits, err := b.queries(ctx, m, writes, id, func(i int) bool { return !diffs[i].IsEmpty() })
	if err != nil {
		return nil, err
	}
	res := newWriteSet()
	for i, w := range writes {
		d := diffs[i]
		if d.IsEmpty() {
			continue
		}
		if !w.IsQuery() {
			base, err := b.repl.Resolve(w.Ref, id)
			if err != nil {
				return nil, model.Wrap(name, "update", w.Ref, err)
			}
			for _, e := range d.Entries() {
				res.add(ptree.Join(base, e.Path), e.Value)
			}
			continue
		}
		base, err := b.repl.Resolve(w.Ref, "")
		if err != nil {
			return nil, model.Wrap(name, "update", w.Ref, err)
		}
		for _, rec := range hits[i] {
			for _, e := range d.Entries() {
				res.add(ptree.Join(base, rec.Key, w.WriteChild, e.Path), e.Value)
			}
		}
	}
	if debug.Update() {
		debug.Logf("update %s %s: %d writes\n", name, id, len(res.w))
	}
	return res.w, nil
}

// diff returns the changed leaves between old and next as shaped for w.
// Leaves which are null in next and absent from old are not changes.
func (b *Builder) diff(m *model.Model, w model.WritePath, old, next any) (*ptree.Tree, error) {
	ov, err := b.shape(m, w, old, true)
	if err != nil {
		return nil, err
	}
	nv, err := b.shape(m, w, next, true)
	if err != nil {
		return nil, err
	}
	ot, err := ptree.From(ov)
	if err != nil {
		return nil, err
	}
	nt, err := ptree.From(nv)
	if err != nil {
		return nil, err
	}
	return ot.Diff(nt).Filter(func(e ptree.Entry) bool {
		return e.Value != nil || ot.Has(e.Path)
	}), nil
}

// queries runs the fan-out queries of the selected write paths
// concurrently. The result is indexed like writes.
func (b *Builder) queries(ctx context.Context, m *model.Model, writes []model.WritePath, id string, sel func(int) bool) ([][]store.Record, error) {
	res := make([][]store.Record, len(writes))
	g, gctx := errgroup.WithContext(ctx)
	for i, w := range writes {
		if !w.IsQuery() || id == "" || !sel(i) {
			continue
		}
		g.Go(func() error {
			recs, err := b.query(gctx, w, id)
			if err != nil {
				return model.Wrap(m.Name, "query", w.Ref, err)
			}
			res[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

func (b *Builder) query(ctx context.Context, w model.WritePath, id string) ([]store.Record, error) {
	if b.st == nil {
		return nil, fmt.Errorf("%w: no store", model.ErrQueryFailure)
	}
	base, err := b.repl.Resolve(w.Ref, "")
	if err != nil {
		return nil, err
	}
	recs, err := b.st.Query(ctx, base, w.QueryOn, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s where %s = %q: %w", model.ErrQueryFailure, base, w.QueryOn, id, err)
	}
	if w.SnapFilter == nil {
		return recs, nil
	}
	res := recs[:0]
	for _, rec := range recs {
		if w.SnapFilter(rec.Key, rec.Value) {
			res = append(res, rec)
		}
	}
	return res, nil
}

// Add returns the writes storing parsed, a new entity of the named
// model, on every write path which is not a fan-out.
func (b *Builder) Add(name, id string, parsed any) (store.Writes, error) {
	m, err := b.writable(name)
	if err != nil {
		return nil, model.Wrap(name, "add", "", err)
	}
	if id, err = b.entityID(m, id); err != nil {
		return nil, model.Wrap(name, "add", "", err)
	}
	return b.full(m, "add", id, parsed)
}

// Set is Add for models without ids.
func (b *Builder) Set(name string, parsed any) (store.Writes, error) {
	m, err := b.writable(name)
	if err != nil {
		return nil, model.Wrap(name, "set", "", err)
	}
	if m.HasID {
		return nil, model.Wrap(name, "set", "", fmt.Errorf("%w: %s has ids, use Add", model.ErrInvalidModelKind, name))
	}
	return b.full(m, "set", "", parsed)
}

func (b *Builder) full(m *model.Model, op, id string, parsed any) (store.Writes, error) {
	res := newWriteSet()
	for _, w := range m.Writes() {
		if w.IsQuery() {
			continue
		}
		v, err := b.shape(m, w, parsed, false)
		if err != nil {
			return nil, model.Wrap(m.Name, op, w.Ref, err)
		}
		dest, err := b.repl.Resolve(w.Ref, id)
		if err != nil {
			return nil, model.Wrap(m.Name, op, w.Ref, err)
		}
		res.add(dest, v)
	}
	return res.w, nil
}

// Delete returns the writes removing the given entities: their plain
// write paths, and the write child and query key of every record
// pointing at them through a fan-out path. When the fan-out path names
// a reference model, the copies of those records on the reference
// model's plain write paths are cleared too.
func (b *Builder) Delete(ctx context.Context, name string, ids []string) (store.Writes, error) {
	m, err := b.writable(name)
	if err != nil {
		return nil, model.Wrap(name, "delete", "", err)
	}
	if !m.HasID {
		ids = []string{""}
	}
	writes := m.Writes()
	res := newWriteSet()
	for _, id := range ids {
		if m.HasID && id == "" {
			return nil, model.Wrap(name, "delete", "", fmt.Errorf("%w: empty id", model.ErrInvalidPath))
		}
		hits, err := b.queries(ctx, m, writes, id, func(int) bool { return true })
		if err != nil {
			return nil, err
		}
		for i, w := range writes {
			if !w.IsQuery() {
				dest, err := b.repl.Resolve(w.Ref, id)
				if err != nil {
					return nil, model.Wrap(name, "delete", w.Ref, err)
				}
				res.add(dest, nil)
				continue
			}
			bases, err := b.fanoutBases(w)
			if err != nil {
				return nil, model.Wrap(name, "delete", w.Ref, err)
			}
			for _, rec := range hits[i] {
				for _, base := range bases {
					dest, err := b.repl.Resolve(base, rec.Key)
					if err != nil {
						return nil, model.Wrap(name, "delete", base, err)
					}
					res.add(ptree.Join(dest, w.WriteChild), nil)
					res.add(ptree.Join(dest, w.QueryOn), nil)
				}
			}
		}
	}
	return res.w, nil
}

// fanoutBases returns the templates holding records found through w:
// w's own, then the plain write paths of its reference model. A missing
// reference model is logged and skipped.
func (b *Builder) fanoutBases(w model.WritePath) ([]string, error) {
	res := []string{w.Ref}
	if w.ReferenceModel == "" {
		return res, nil
	}
	rm, err := b.reg.Model(w.ReferenceModel)
	if err != nil {
		b.log.Warn("skipping reference model of fan-out path", "ref", w.Ref, "model", w.ReferenceModel, "error", err)
		return res, nil
	}
	for _, rw := range rm.Writes() {
		if rw.IsQuery() || rw.Ref == w.Ref {
			continue
		}
		res = append(res, rw.Ref)
	}
	return res, nil
}

// Drop returns the writes removing every stored entity of the named
// model: the root of each plain write path, up to any $id segment.
func (b *Builder) Drop(name string) (store.Writes, error) {
	m, err := b.writable(name)
	if err != nil {
		return nil, model.Wrap(name, "drop", "", err)
	}
	res := newWriteSet()
	for _, w := range m.Writes() {
		if w.IsQuery() {
			continue
		}
		root := w.Ref
		if i := strings.Index(root, "$"+store.IDPlaceholder); i >= 0 {
			root = root[:i]
		}
		dest, err := b.repl.Resolve(root, "")
		if err != nil {
			return nil, model.Wrap(name, "drop", w.Ref, err)
		}
		if dest == "" {
			return nil, model.Wrap(name, "drop", w.Ref, fmt.Errorf("%w: cannot drop the root", model.ErrInvalidPath))
		}
		res.add(dest, nil)
	}
	return res.w, nil
}
