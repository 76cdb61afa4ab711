package ptree

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// Plain converts v into the plain JSON-like shape used by trees:
// map[string]any, []any and scalars. Maps and slices are copied. Typed
// maps, slices, pointers and structs are converted; anything that cannot
// be represented in JSON yields ErrInvalidPath.
func Plain(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, string, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return x, nil
	case float32:
		return checkFloat(float64(x), x)
	case float64:
		return checkFloat(x, x)
	case map[string]any:
		res := make(map[string]any, len(x))
		for k, kv := range x {
			pv, err := Plain(kv)
			if err != nil {
				return nil, err
			}
			res[k] = pv
		}
		return res, nil
	case []any:
		res := make([]any, len(x))
		for i, iv := range x {
			pv, err := Plain(iv)
			if err != nil {
				return nil, err
			}
			res[i] = pv
		}
		return res, nil
	case *Tree:
		if x == nil {
			return nil, nil
		}
		return x.Build(), nil
	}
	return plainReflect(reflect.ValueOf(v))
}

func checkFloat(f float64, orig any) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %v is not representable", ErrInvalidPath, f)
	}
	return orig, nil
}

func plainReflect(rv reflect.Value) (any, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return Plain(rv.Elem().Interface())
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map key type %s", ErrInvalidPath, rv.Type().Key())
		}
		res := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			pv, err := Plain(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			res[iter.Key().String()] = pv
		}
		return res, nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		res := make([]any, rv.Len())
		for i := range res {
			pv, err := Plain(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			res[i] = pv
		}
		return res, nil
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint(), nil
	case reflect.Float32, reflect.Float64:
		return checkFloat(rv.Float(), rv.Float())
	case reflect.Struct:
		d, err := json.Marshal(rv.Interface())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPath, err)
		}
		var res any
		if err := json.Unmarshal(d, &res); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPath, err)
		}
		return res, nil
	}
	return nil, fmt.Errorf("%w: value of type %s is not serializable", ErrInvalidPath, rv.Type())
}

// IsContainer reports whether v is a non-empty map or slice, that is a
// value which is flattened rather than stored as a leaf.
func IsContainer(v any) bool {
	switch x := v.(type) {
	case map[string]any:
		return len(x) != 0
	case []any:
		return len(x) != 0
	}
	return false
}

// IsObject reports whether v is a map.
func IsObject(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// IsArray reports whether v is a slice.
func IsArray(v any) bool {
	_, ok := v.([]any)
	return ok
}

// IsEmptyValue reports whether v is nil, an empty map or an empty slice.
func IsEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(x) == 0
	case []any:
		return len(x) == 0
	}
	return false
}

// Equal reports whether two plain values are equal. Numbers compare by
// value across Go numeric types.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := Number(a); ok {
		fb, ok := Number(b)
		return ok && fa == fb
	}
	switch x := a.(type) {
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, present := y[k]
			if !present || !Equal(xv, yv) {
				return false
			}
		}
		return true
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// Number returns the float64 value of a numeric v.
func Number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

// sortedKeys returns the keys of m in order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// flatten walks v depth first, calling emit for each leaf with its full
// path below base. When skipNested is set only the first level is walked.
func flatten(base string, v any, skipNested bool, emit func(string, any) error) error {
	walk := func(key string, kv any) error {
		seg := Normalize(key)
		if seg == "" {
			return fmt.Errorf("%w: empty key below %q", ErrInvalidPath, base)
		}
		child := seg
		if base != "" {
			child = base + "/" + seg
		}
		if skipNested || !IsContainer(kv) {
			return emit(child, kv)
		}
		return flatten(child, kv, false, emit)
	}
	switch x := v.(type) {
	case map[string]any:
		if len(x) == 0 {
			if base == "" {
				return nil
			}
			return emit(base, x)
		}
		for _, k := range sortedKeys(x) {
			if err := walk(k, x[k]); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if len(x) == 0 {
			if base == "" {
				return nil
			}
			return emit(base, x)
		}
		for i, iv := range x {
			if err := walk(strconv.Itoa(i), iv); err != nil {
				return err
			}
		}
		return nil
	}
	if base == "" {
		return nil
	}
	return emit(base, v)
}
