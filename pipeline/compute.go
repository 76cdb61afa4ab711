package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/signadot/pathmodel/descriptor"
	"github.com/signadot/pathmodel/eval"
	"github.com/signadot/pathmodel/model"
)

// computed is phase 3. Function and direct expression fields run in
// descending priority; each sees the output built so far.
func (r *run) computed(ctx context.Context) error {
	var fields []model.Field
	for _, f := range r.m.Fields() {
		if f.Desc.IsComputed() {
			fields = append(fields, f)
		}
	}
	prio := make(map[string]int, len(fields))
	for _, f := range fields {
		prio[f.Path] = r.priority(f.Desc)
	}
	sort.SliceStable(fields, func(i, j int) bool {
		return prio[fields[i].Path] > prio[fields[j].Path]
	})
	for _, f := range fields {
		if err := r.compute(ctx, f); err != nil {
			return r.wrap("phase3", f.Path, err)
		}
	}
	return nil
}

func (r *run) priority(d *descriptor.Descriptor) int {
	if d.Kind == descriptor.KindFunction {
		return r.p.ev.Priority(d.Function)
	}
	return eval.DefaultPriority
}

func (r *run) compute(ctx context.Context, f model.Field) error {
	d := f.Desc
	source := r.src.Get(f.Path)
	call := !r.o.getter &&
		(source == nil || (d.Bind == descriptor.BindBind && !d.ThisFirst))
	if !call {
		if source == nil {
			return r.setNull(f.Path)
		}
		return r.out.Set(f.Path, source)
	}
	env := r.env()
	var (
		res any
		err error
	)
	if d.Kind == descriptor.KindFunction {
		args := make([]any, len(d.Params))
		for i, p := range d.Params {
			args[i] = r.out.Get(p)
		}
		res, err = r.p.ev.Call(ctx, d.Function, args, env)
	} else {
		res, err = r.p.ev.Eval(ctx, d.Expr, env)
	}
	if err != nil {
		return err
	}
	if res != nil && d.PrimitiveType != "" {
		res = cast(d.PrimitiveType, res)
		if !isType(d.PrimitiveType, res) {
			return fmt.Errorf("%w: want %s, got %T", model.ErrTypeMismatch, d.PrimitiveType, res)
		}
	}
	if res == nil {
		if d.Required {
			return model.ErrRequiredFieldMissing
		}
		return r.setNull(f.Path)
	}
	return r.out.Set(f.Path, res)
}

// filters is phase 4.
func (r *run) filters(ctx context.Context) error {
	for _, f := range r.m.Fields() {
		d := f.Desc
		if len(d.Filters) == 0 {
			continue
		}
		v := r.out.Get(f.Path)
		for _, flt := range d.Filters {
			var err error
			v, err = r.p.ev.Filter(ctx, flt.Name, v, flt.Args, r.env())
			if err != nil {
				return r.wrap("phase4", f.Path, fmt.Errorf("filter %s: %w", flt.Name, err))
			}
		}
		if v == nil {
			if d.Required {
				return r.wrap("phase4", f.Path, model.ErrRequiredFieldMissing)
			}
			r.out.Remove(f.Path)
			if err := r.setNull(f.Path); err != nil {
				return r.wrap("phase4", f.Path, err)
			}
			continue
		}
		if err := r.out.Set(f.Path, v); err != nil {
			return r.wrap("phase4", f.Path, err)
		}
	}
	return nil
}
