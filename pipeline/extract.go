package pipeline

import (
	"context"
	"fmt"

	"github.com/signadot/pathmodel/debug"
	"github.com/signadot/pathmodel/model"
	"github.com/signadot/pathmodel/ptree"
)

// extract is phase 0: parse the parent with the same options, then copy
// each extracted field from its source path to its output path.
func (p *Pipeline) extract(ctx context.Context, m *model.Model, raw any, o *parseOpts) (any, error) {
	parent, err := p.reg.Model(m.Parent)
	if err != nil {
		return nil, model.Wrap(m.Name, "phase0", "", err)
	}
	pv, err := p.parse(ctx, parent, raw, o)
	if err != nil {
		return nil, model.Wrap(m.Name, "phase0", "", err)
	}
	return Remap(m, pv, o.keepNull)
}

// Remap projects v, a parsed value of the parent of extractor x, onto
// the fields of x. With keepNull, missing optional fields are null
// rather than omitted.
func Remap(x *model.Model, v any, keepNull bool) (any, error) {
	if !x.IsExtractor() {
		return nil, model.Wrap(x.Name, "phase0", "", fmt.Errorf("%w: %s is a %s", model.ErrInvalidModelKind, x.Name, x.Kind))
	}
	src, err := ptree.From(v)
	if err != nil {
		return nil, model.Wrap(x.Name, "phase0", "", err)
	}
	out := ptree.New()
	for _, f := range x.Extract() {
		fv := src.Get(f.Source)
		if fv == nil {
			if f.Required {
				return nil, model.Wrap(x.Name, "phase0", f.Output, model.ErrRequiredFieldMissing)
			}
			if !keepNull {
				continue
			}
		}
		if err := out.Set(f.Output, fv); err != nil {
			return nil, model.Wrap(x.Name, "phase0", f.Output, err)
		}
	}
	if debug.Parse() {
		debug.Logf("extract %s from %s: %d leaves\n", x.Name, x.Parent, out.Len())
	}
	return out.Build(), nil
}
