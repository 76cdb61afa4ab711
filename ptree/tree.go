package ptree

import (
	"fmt"
	"strings"
)

// Entry is one leaf of a Tree.
type Entry struct {
	Path     string
	Value    any
	Segments []string
}

// Tree is a flattened, path addressed representation of a nested
// map/slice value.
type Tree struct {
	entries []Entry
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{}
}

// From returns a tree holding the leaves of v. Scalars and nil give an
// empty tree.
func From(v any) (*Tree, error) {
	t := New()
	if v == nil {
		return t, nil
	}
	if other, ok := v.(*Tree); ok {
		return other.Clone(), nil
	}
	pv, err := Plain(v)
	if err != nil {
		return nil, err
	}
	if err := flatten("", pv, false, t.put); err != nil {
		return nil, err
	}
	return t, nil
}

// MustFrom is like From but panics on error.
func MustFrom(v any) *Tree {
	t, err := From(v)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of leaves.
func (t *Tree) Len() int { return len(t.entries) }

// IsEmpty reports whether the tree has no leaves.
func (t *Tree) IsEmpty() bool { return len(t.entries) == 0 }

// Entries returns a copy of the leaves in insertion order.
func (t *Tree) Entries() []Entry {
	res := make([]Entry, len(t.entries))
	copy(res, t.entries)
	return res
}

// Paths returns the leaf paths in insertion order.
func (t *Tree) Paths() []string {
	res := make([]string, len(t.entries))
	for i := range t.entries {
		res[i] = t.entries[i].Path
	}
	return res
}

// Set stores value at path, first removing every leaf which is an
// ancestor or a descendant of path. Non-empty maps and slices are
// flattened below path. Setting the root path replaces the whole tree.
func (t *Tree) Set(path string, value any) error {
	p, err := checkPath(path)
	if err != nil {
		return err
	}
	pv, err := Plain(value)
	if err != nil {
		return fmt.Errorf("set %q: %w", p, err)
	}
	if p == "" {
		if !IsObject(pv) && !IsArray(pv) {
			return fmt.Errorf("%w: cannot set %T at root", ErrInvalidPath, pv)
		}
		t.entries = nil
		return flatten("", pv, false, t.put)
	}
	t.purge(p)
	if IsContainer(pv) {
		return flatten(p, pv, false, t.put)
	}
	t.entries = append(t.entries, newEntry(p, pv))
	return nil
}

// put is Set for normalized paths and plain values.
func (t *Tree) put(p string, v any) error {
	if _, err := checkPath(p); err != nil {
		return err
	}
	t.purge(p)
	t.entries = append(t.entries, newEntry(p, v))
	return nil
}

func newEntry(p string, v any) Entry {
	return Entry{Path: p, Value: v, Segments: Split(p)}
}

func (t *Tree) purge(p string) {
	j := 0
	for _, e := range t.entries {
		if Within(e.Path, p) || Within(p, e.Path) {
			continue
		}
		t.entries[j] = e
		j++
	}
	clear(t.entries[j:])
	t.entries = t.entries[:j]
}

// Remove removes the leaf at path and every leaf below it.
func (t *Tree) Remove(path string) {
	p, err := checkPath(path)
	if err != nil {
		return
	}
	j := 0
	for _, e := range t.entries {
		if Within(e.Path, p) {
			continue
		}
		t.entries[j] = e
		j++
	}
	clear(t.entries[j:])
	t.entries = t.entries[:j]
}

// Has reports whether path or anything below it is present.
func (t *Tree) Has(path string) bool {
	p, err := checkPath(path)
	if err != nil {
		return false
	}
	for i := range t.entries {
		if Within(t.entries[i].Path, p) {
			return true
		}
	}
	return false
}

func (t *Tree) below(p string) (exact *Entry, rel []Entry) {
	for i := range t.entries {
		e := &t.entries[i]
		if !Within(e.Path, p) {
			continue
		}
		if e.Path == p {
			return e, nil
		}
		r := Rel(e.Path, p)
		rel = append(rel, Entry{Path: r, Value: e.Value, Segments: Split(r)})
	}
	return nil, rel
}

// Get returns the value at path. A leaf is returned as is; when only
// descendants exist they are rebuilt into a nested value rooted at path.
// Get returns nil when nothing is found.
func (t *Tree) Get(path string) any {
	p, err := checkPath(path)
	if err != nil {
		return nil
	}
	exact, rel := t.below(p)
	if exact != nil {
		return copyLeaf(exact.Value)
	}
	if len(rel) == 0 {
		return nil
	}
	v, _ := build(rel, false)
	return v
}

// GetPlain is like Get but returns descendants as a flat map from
// relative path to leaf value.
func (t *Tree) GetPlain(path string) any {
	p, err := checkPath(path)
	if err != nil {
		return nil
	}
	exact, rel := t.below(p)
	if exact != nil {
		return copyLeaf(exact.Value)
	}
	if len(rel) == 0 {
		return nil
	}
	res := make(map[string]any, len(rel))
	for _, e := range rel {
		res[e.Path] = copyLeaf(e.Value)
	}
	return res
}

// KeyMap returns the whole tree as a flat map from path to leaf value.
func (t *Tree) KeyMap() map[string]any {
	res := make(map[string]any, len(t.entries))
	for _, e := range t.entries {
		res[e.Path] = copyLeaf(e.Value)
	}
	return res
}

// copyLeaf deep copies v. Leaves are usually scalars or empty
// containers, but SkipNested may store whole values.
func copyLeaf(v any) any {
	switch x := v.(type) {
	case map[string]any:
		res := make(map[string]any, len(x))
		for k, kv := range x {
			res[k] = copyLeaf(kv)
		}
		return res
	case []any:
		res := make([]any, len(x))
		for i, iv := range x {
			res[i] = copyLeaf(iv)
		}
		return res
	}
	return v
}

// AddOption configures Add.
type AddOption func(*addOpts)

type addOpts struct {
	skipNested bool
}

// SkipNested makes Add store each first level value as a leaf rather
// than flattening it.
func SkipNested() AddOption {
	return func(o *addOpts) { o.skipNested = true }
}

// Add flattens obj, a map or a slice, into the tree with Set semantics
// for every leaf.
func (t *Tree) Add(obj any, opts ...AddOption) error {
	o := &addOpts{}
	for _, opt := range opts {
		opt(o)
	}
	pv, err := Plain(obj)
	if err != nil {
		return err
	}
	if !IsObject(pv) && !IsArray(pv) {
		return fmt.Errorf("%w: add requires a map or a slice, got %T", ErrInvalidPath, obj)
	}
	return flatten("", pv, o.skipNested, t.put)
}

// Concat sets every leaf of other below prefix. other may be a *Tree, a
// map, a slice or, with a non-empty prefix, a scalar.
func (t *Tree) Concat(prefix string, other any) error {
	p, err := checkPath(prefix)
	if err != nil {
		return err
	}
	if ot, ok := other.(*Tree); ok {
		if ot == nil {
			return nil
		}
		for _, e := range ot.Entries() {
			if err := t.put(Join(p, e.Path), copyLeaf(e.Value)); err != nil {
				return err
			}
		}
		return nil
	}
	pv, err := Plain(other)
	if err != nil {
		return err
	}
	if !IsContainer(pv) {
		if p == "" {
			if IsEmptyValue(pv) {
				return nil
			}
			return fmt.Errorf("%w: cannot concat %T at root", ErrInvalidPath, pv)
		}
		return t.put(p, pv)
	}
	return flatten(p, pv, false, t.put)
}

// Merge is Concat at the root.
func (t *Tree) Merge(other any) error {
	return t.Concat("", other)
}

// Clone returns an independent copy of t.
func (t *Tree) Clone() *Tree {
	res := &Tree{entries: make([]Entry, len(t.entries))}
	for i, e := range t.entries {
		segs := make([]string, len(e.Segments))
		copy(segs, e.Segments)
		res.entries[i] = Entry{Path: e.Path, Value: copyLeaf(e.Value), Segments: segs}
	}
	return res
}

// Each calls f for every leaf in insertion order, stopping at the first
// error.
func (t *Tree) Each(f func(Entry) error) error {
	for _, e := range t.Entries() {
		if err := f(e); err != nil {
			return err
		}
	}
	return nil
}

// EachRoot calls f once per distinct first segment, in first seen order,
// with the value rebuilt at that segment.
func (t *Tree) EachRoot(f func(key string, value any) error) error {
	seen := map[string]bool{}
	var roots []string
	for _, e := range t.entries {
		r := e.Segments[0]
		if seen[r] {
			continue
		}
		seen[r] = true
		roots = append(roots, r)
	}
	for _, r := range roots {
		if err := f(r, t.Get(r)); err != nil {
			return err
		}
	}
	return nil
}

// Map returns a new tree built by applying f to every leaf. Rewritten
// entries are stored with Set semantics, in order.
func (t *Tree) Map(f func(Entry) (Entry, error)) (*Tree, error) {
	res := New()
	for _, e := range t.Entries() {
		ne, err := f(e)
		if err != nil {
			return nil, err
		}
		p := Normalize(ne.Path)
		if p == "" {
			return nil, fmt.Errorf("%w: map produced an empty path from %q", ErrInvalidPath, e.Path)
		}
		if err := res.Set(p, ne.Value); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Filter returns a new tree with the leaves for which keep returns true.
func (t *Tree) Filter(keep func(Entry) bool) *Tree {
	res := New()
	for _, e := range t.Clone().entries {
		if keep(e) {
			res.entries = append(res.entries, e)
		}
	}
	return res
}

// String returns the leaves one per line, for debugging.
func (t *Tree) String() string {
	var b strings.Builder
	for _, e := range t.entries {
		fmt.Fprintf(&b, "%s: %v\n", e.Path, e.Value)
	}
	return b.String()
}
