package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/signadot/pathmodel/debug"
	"github.com/signadot/pathmodel/ptree"

	jsonpatch "github.com/evanphx/json-patch"
)

// Memory is a Store holding one JSON document. Each write replaces the
// value at its path, creating missing parents; writing nil removes the
// path.
type Memory struct {
	mu  sync.RWMutex
	doc []byte
	log *slog.Logger
}

type MemoryOption func(*Memory)

func WithLogger(l *slog.Logger) MemoryOption {
	return func(m *Memory) { m.log = l }
}

// WithDocument sets the initial JSON document.
func WithDocument(d []byte) MemoryOption {
	return func(m *Memory) { m.doc = append([]byte(nil), d...) }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{doc: []byte("{}")}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	return m
}

// Snapshot returns the whole JSON document.
func (m *Memory) Snapshot() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.doc...)
}

func (m *Memory) Read(ctx context.Context, path string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lookup(m.doc, ptree.Split(ptree.Normalize(path)))
}

func lookup(doc []byte, segs []string) (any, error) {
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("could not decode store document: %w", err)
	}
	for _, seg := range segs {
		switch x := v.(type) {
		case map[string]any:
			v = x[seg]
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(x) {
				return nil, nil
			}
			v = x[i]
		default:
			return nil, nil
		}
	}
	return v, nil
}

// Write applies w path by path in order, each as merge patches: one
// removing the old value when there is one and one setting the new
// value. A path crossing an array is applied as a JSON Patch instead,
// so the array keeps its other elements. Objects left empty are
// removed, as are trailing nulls of arrays.
func (m *Memory) Write(ctx context.Context, w Writes) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc := m.doc
	for _, p := range w.Paths() {
		segs := ptree.Split(ptree.Normalize(p))
		if len(segs) == 0 {
			return fmt.Errorf("%w: cannot write the root", ptree.ErrInvalidPath)
		}
		v, err := ptree.Plain(w[p])
		if err != nil {
			return fmt.Errorf("write %q: %w", p, err)
		}
		var root any
		if err := json.Unmarshal(doc, &root); err != nil {
			return fmt.Errorf("could not decode store document: %w", err)
		}
		r := walk(root, segs)
		if r.viaArray {
			doc, err = patchPath(doc, root, segs, r, v)
		} else {
			doc, err = mergePath(doc, segs, r, v)
		}
		if err != nil {
			return fmt.Errorf("write %q: %w", p, err)
		}
		if debug.Store() {
			debug.Logf("store write %s = %v\n", p, v)
		}
	}
	doc, err := prune(doc)
	if err != nil {
		return err
	}
	m.doc = doc
	m.log.Debug("store write", "paths", len(w))
	return nil
}

// route is how far a path reaches into a document.
type route struct {
	// depth is the number of leading segments present
	depth int
	// at is the value at the first depth segments
	at       any
	viaArray bool
}

func walk(root any, segs []string) route {
	r := route{at: root}
	for i, seg := range segs {
		r.depth = i
		switch x := r.at.(type) {
		case map[string]any:
			c, ok := x[seg]
			if !ok {
				return r
			}
			r.at = c
		case []any:
			r.viaArray = true
			j, err := strconv.Atoi(seg)
			if err != nil || j < 0 || j >= len(x) {
				return r
			}
			r.at = x[j]
		default:
			return r
		}
	}
	r.depth = len(segs)
	return r
}

func mergePath(doc []byte, segs []string, r route, v any) ([]byte, error) {
	var patches []any
	if r.depth == len(segs) && r.at != nil {
		patches = append(patches, nest(segs, nil))
	}
	if v != nil {
		patches = append(patches, nest(segs, v))
	}
	for _, patch := range patches {
		d, err := json.Marshal(patch)
		if err != nil {
			return nil, err
		}
		if doc, err = jsonpatch.MergePatch(doc, d); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// patchPath writes v at segs with one JSON Patch operation. Array
// elements are nulled rather than removed so later indices keep their
// place.
func patchPath(doc []byte, root any, segs []string, r route, v any) ([]byte, error) {
	exists := r.depth == len(segs)
	var op map[string]any
	switch {
	case v == nil && !exists:
		return doc, nil
	case v == nil:
		op = map[string]any{"op": "remove", "path": pointer(segs)}
		if _, ok := walk(root, segs[:len(segs)-1]).at.([]any); ok {
			op = map[string]any{"op": "replace", "path": pointer(segs), "value": nil}
		}
	case exists:
		op = map[string]any{"op": "replace", "path": pointer(segs), "value": v}
	default:
		switch x := r.at.(type) {
		case map[string]any:
			op = map[string]any{"op": "add", "path": pointer(segs[:r.depth+1]), "value": nestRest(segs[r.depth+1:], v)}
		case []any:
			if j, err := strconv.Atoi(segs[r.depth]); err != nil || j != len(x) {
				return nil, fmt.Errorf("%w: index %s of an array of %d", ptree.ErrInvalidPath, segs[r.depth], len(x))
			}
			op = map[string]any{"op": "add", "path": pointer(segs[:r.depth+1]), "value": nestRest(segs[r.depth+1:], v)}
		default:
			op = map[string]any{"op": "replace", "path": pointer(segs[:r.depth]), "value": nestRest(segs[r.depth:], v)}
		}
	}
	d, err := json.Marshal([]any{op})
	if err != nil {
		return nil, err
	}
	patch, err := jsonpatch.DecodePatch(d)
	if err != nil {
		return nil, err
	}
	return patch.Apply(doc)
}

// pointer is the JSON Pointer of segs.
func pointer(segs []string) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteByte('/')
		b.WriteString(pointerEscaper.Replace(s))
	}
	return b.String()
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

func nestRest(segs []string, v any) any {
	if len(segs) == 0 {
		return v
	}
	return nest(segs, v)
}

func prune(doc []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("could not decode store document: %w", err)
	}
	v = pruneEmpty(v)
	if v == nil {
		v = map[string]any{}
	}
	return json.Marshal(v)
}

// pruneEmpty removes the objects of v which hold nothing and the
// trailing nulls of its arrays. An array emptied that way goes too.
func pruneEmpty(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, c := range x {
			c = pruneEmpty(c)
			if c == nil {
				delete(x, k)
				continue
			}
			x[k] = c
		}
		if len(x) == 0 {
			return nil
		}
		return x
	case []any:
		n := len(x)
		for i, c := range x {
			x[i] = pruneEmpty(c)
		}
		for len(x) > 0 && x[len(x)-1] == nil {
			x = x[:len(x)-1]
		}
		if len(x) == 0 && n > 0 {
			return nil
		}
		return x
	}
	return v
}

func nest(segs []string, v any) map[string]any {
	if len(segs) == 1 {
		return map[string]any{segs[0]: v}
	}
	return map[string]any{segs[0]: nest(segs[1:], v)}
}

func (m *Memory) Query(ctx context.Context, path, child string, equals any) ([]Record, error) {
	v, err := m.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	children, ok := v.(map[string]any)
	if !ok {
		return nil, nil
	}
	keys := make([]string, 0, len(children))
	for k := range children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var res []Record
	for _, k := range keys {
		t, err := ptree.From(children[k])
		if err != nil {
			return nil, err
		}
		if !ptree.Equal(t.Get(child), equals) {
			continue
		}
		res = append(res, Record{Key: k, Value: children[k]})
	}
	return res, nil
}
