package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/signadot/pathmodel/descriptor"
	"github.com/signadot/pathmodel/model"
	"github.com/signadot/pathmodel/ptree"
)

// primitives is phase 1.
func (r *run) primitives() error {
	for _, f := range r.m.Fields() {
		d := f.Desc
		if !d.IsPrimitive() {
			continue
		}
		v := r.src.Get(f.Path)
		if v != nil && d.AutoCast {
			v = cast(d.PrimitiveType, v)
		}
		switch {
		case v == nil:
			if d.Required {
				return r.wrap("phase1", f.Path, model.ErrRequiredFieldMissing)
			}
			if err := r.setNull(f.Path); err != nil {
				return r.wrap("phase1", f.Path, err)
			}
		case !isType(d.PrimitiveType, v):
			if d.Required {
				return r.wrap("phase1", f.Path,
					fmt.Errorf("%w: want %s, got %T", model.ErrTypeMismatch, d.PrimitiveType, v))
			}
			if err := r.setNull(f.Path); err != nil {
				return r.wrap("phase1", f.Path, err)
			}
		default:
			if err := r.out.Set(f.Path, v); err != nil {
				return r.wrap("phase1", f.Path, err)
			}
		}
	}
	return nil
}

// isType reports whether v has the runtime type of the primitive type
// keyword typ.
func isType(typ string, v any) bool {
	switch typ {
	case descriptor.TypeString:
		_, ok := v.(string)
		return ok
	case descriptor.TypeNumber:
		f, ok := ptree.Number(v)
		return ok && !math.IsNaN(f) && !math.IsInf(f, 0)
	case descriptor.TypeBoolean:
		_, ok := v.(bool)
		return ok
	case descriptor.TypeObject:
		return ptree.IsObject(v)
	case descriptor.TypeArray:
		return ptree.IsArray(v)
	}
	return false
}

// cast converts a non-nil v to typ. Values which cannot be converted
// are returned unchanged.
func cast(typ string, v any) any {
	if isType(typ, v) {
		return v
	}
	switch typ {
	case descriptor.TypeString:
		return toString(v)
	case descriptor.TypeNumber:
		switch x := v.(type) {
		case string:
			s := strings.TrimSpace(x)
			if s == "" {
				return float64(0)
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return v
			}
			return f
		case bool:
			if x {
				return float64(1)
			}
			return float64(0)
		}
		return v
	case descriptor.TypeBoolean:
		return truthy(v)
	case descriptor.TypeObject:
		return map[string]any{"value": v}
	case descriptor.TypeArray:
		return []any{v}
	}
	return v
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case map[string]any, []any:
		d, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(d)
	}
	if f, ok := ptree.Number(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// truthy is the boolean reading of a plain value: nil, false, zero, NaN
// and the empty string are false.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	if f, ok := ptree.Number(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}
