package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/signadot/pathmodel/debug"
	"github.com/signadot/pathmodel/descriptor"
	"github.com/signadot/pathmodel/model"
	"github.com/signadot/pathmodel/ptree"

	"golang.org/x/sync/errgroup"
)

// models is phase 2. Every load and sub-parse runs in its own goroutine;
// the output tree is shared under mu.
func (r *run) models(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	mu := &sync.Mutex{}
	for _, f := range r.m.Fields() {
		if !f.Desc.IsModel() {
			continue
		}
		var err error
		if f.Desc.Resolves() {
			err = r.resolve(gctx, g, mu, f)
		} else {
			err = r.embed(gctx, g, mu, f)
		}
		if err != nil {
			// let started goroutines finish before failing
			_ = g.Wait()
			return err
		}
	}
	return g.Wait()
}

// set sets path in the shared output.
func (r *run) set(mu *sync.Mutex, path string, v any) error {
	mu.Lock()
	defer mu.Unlock()
	if v == nil {
		return r.setNull(path)
	}
	return r.out.Set(path, v)
}

func (r *run) concat(mu *sync.Mutex, path string, v any) error {
	mu.Lock()
	defer mu.Unlock()
	if ptree.IsEmptyValue(v) {
		return r.setNull(path)
	}
	return r.out.Concat(path, v)
}

// resolve handles a reference or bind field.
func (r *run) resolve(ctx context.Context, g *errgroup.Group, mu *sync.Mutex, f model.Field) error {
	d := f.Desc
	exch := d.ExchangeField()
	isArray := d.Kind == descriptor.KindModelArray
	rawExch := r.src.Get(exch)
	_, isString := rawExch.(string)
	valid := isString || (isArray && (ptree.IsObject(rawExch) || ptree.IsArray(rawExch)))
	if !valid && d.Required {
		return r.wrap("phase2", f.Path,
			fmt.Errorf("%w: %s holds %T", model.ErrInvalidExchangeField, exch, rawExch))
	}
	if rawExch == nil && r.o.keepNull {
		if err := r.set(mu, f.Path, nil); err != nil {
			return r.wrap("phase2", f.Path, err)
		}
		if err := r.set(mu, exch, nil); err != nil {
			return r.wrap("phase2", exch, err)
		}
	}
	source := exchangeIDs(rawExch)
	changed := source != exchangeIDs(r.o.old.Get(exch))
	existing := r.src.Get(f.Path)
	load := valid && !r.o.raw &&
		(d.Bind == descriptor.BindBind || (existing == nil || changed))
	if debug.Parse() {
		debug.Logf("%s.%s %s %s ids=%q changed=%v load=%v\n", r.m.Name, f.Path, d.Bind, d.Model, source, changed, load)
	}
	switch {
	case load:
		if r.p.loader == nil {
			return r.wrap("phase2", f.Path, fmt.Errorf("%w: no loader for %s", model.ErrLoadFailure, d.Model))
		}
		var ids []string
		if isArray {
			ids = strings.Fields(source)
		} else if source != "" {
			ids = []string{source}
		}
		for _, id := range ids {
			g.Go(func() error {
				return r.load(ctx, mu, f, exch, id, isArray)
			})
		}
	case (valid && d.Bind == descriptor.BindReference && existing != nil) || r.o.raw:
		if existing != nil {
			if err := r.set(mu, f.Path, existing); err != nil {
				return r.wrap("phase2", f.Path, err)
			}
		}
		if rawExch != nil {
			if err := r.set(mu, exch, rawExch); err != nil {
				return r.wrap("phase2", exch, err)
			}
		}
	}
	return nil
}

func (r *run) load(ctx context.Context, mu *sync.Mutex, f model.Field, exch, id string, isArray bool) error {
	d := f.Desc
	data, err := r.p.loader.Load(ctx, d.Model, id)
	if err != nil {
		return r.wrap("phase2", f.Path, fmt.Errorf("loading %s %q: %w", d.Model, id, err))
	}
	if data == nil && d.Required {
		return r.wrap("phase2", f.Path, fmt.Errorf("%w: %s %q", model.ErrLoadFailure, d.Model, id))
	}
	path, marker := f.Path, exch
	var mark any = id
	if isArray {
		path = ptree.Join(f.Path, id)
		marker = ptree.Join(exch, id)
		mark = true
	}
	if data == nil {
		mark = nil
	}
	if err := r.set(mu, path, data); err != nil {
		return r.wrap("phase2", f.Path, err)
	}
	if err := r.set(mu, marker, mark); err != nil {
		return r.wrap("phase2", exch, err)
	}
	return nil
}

// exchangeIDs normalizes the value of an exchange field to its sorted,
// space separated ids: a string of ids, a slice of ids or a map whose
// truthy keys are the ids. Anything else gives "".
func exchangeIDs(v any) string {
	var ids []string
	switch x := v.(type) {
	case string:
		ids = strings.Fields(x)
	case map[string]any:
		for k, present := range x {
			if truthy(present) {
				ids = append(ids, k)
			}
		}
	case []any:
		for _, e := range x {
			if e == nil {
				continue
			}
			ids = append(ids, toString(e))
		}
	}
	sort.Strings(ids)
	return strings.Join(ids, " ")
}

// embed handles a sub-model or an array of them.
func (r *run) embed(ctx context.Context, g *errgroup.Group, mu *sync.Mutex, f model.Field) error {
	d := f.Desc
	sub, err := r.p.reg.Model(d.Model)
	if err != nil {
		return r.wrap("phase2", f.Path, err)
	}
	v := r.src.Get(f.Path)
	if d.Kind == descriptor.KindModelArray {
		if repl := r.o.next.Get(f.Path); ptree.IsArray(repl) {
			v = repl
		}
	}
	if v == nil {
		if d.Required {
			return r.wrap("phase2", f.Path, model.ErrRequiredFieldMissing)
		}
		if err := r.set(mu, f.Path, nil); err != nil {
			return r.wrap("phase2", f.Path, err)
		}
		return nil
	}
	if d.Kind == descriptor.KindModel {
		g.Go(func() error {
			res, err := r.p.parse(ctx, sub, v, r.o.child(f.Path))
			if err != nil {
				return r.wrap("phase2", f.Path, err)
			}
			if err := r.concat(mu, f.Path, res); err != nil {
				return r.wrap("phase2", f.Path, err)
			}
			return nil
		})
		return nil
	}
	items, ok := r.items(v)
	if !ok {
		if d.Required {
			return r.wrap("phase2", f.Path,
				fmt.Errorf("%w: want an array of %s, got %T", model.ErrTypeMismatch, d.Model, v))
		}
		if err := r.set(mu, f.Path, nil); err != nil {
			return r.wrap("phase2", f.Path, err)
		}
		return nil
	}
	if len(items) == 0 {
		if err := r.set(mu, f.Path, nil); err != nil {
			return r.wrap("phase2", f.Path, err)
		}
		return nil
	}
	for _, it := range items {
		path := ptree.Join(f.Path, it.id)
		g.Go(func() error {
			res, err := r.p.parse(ctx, sub, it.value, r.o.child(path))
			if err != nil {
				return r.wrap("phase2", path, err)
			}
			if err := r.concat(mu, path, res); err != nil {
				return r.wrap("phase2", path, err)
			}
			return nil
		})
	}
	return nil
}

type item struct {
	id    string
	value any
}

// items normalizes a model array to (id, item) pairs. Slice elements
// get fresh ids; map entries keep their key unless it is numeric, which
// marks a position rather than an id. Ids are handed out in order before
// any item is parsed.
func (r *run) items(v any) ([]item, bool) {
	var res []item
	switch x := v.(type) {
	case []any:
		for _, e := range x {
			if e == nil {
				continue
			}
			res = append(res, item{id: r.p.ids.Next(), value: e})
		}
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if x[k] == nil {
				continue
			}
			id := k
			if isNumeric(k) {
				id = r.p.ids.Next()
				r.p.log.Warn("numeric model array key replaced by a generated id",
					"model", r.m.Name, "key", k, "id", id)
			}
			res = append(res, item{id: id, value: x[k]})
		}
	default:
		return nil, false
	}
	return res, true
}

func isNumeric(s string) bool {
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
}
