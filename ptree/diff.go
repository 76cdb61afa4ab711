package ptree

import (
	"github.com/signadot/pathmodel/debug"
)

// DiffOption configures Diff.
type DiffOption func(*diffOpts)

type diffOpts struct {
	oneSided bool
}

// OneSided restricts Diff to the paths of the receiver.
func OneSided() DiffOption {
	return func(o *diffOpts) { o.oneSided = true }
}

// Diff returns a tree holding, for every path of t whose value differs in
// other, other's value at that path (nil when other lacks it). Unless
// OneSided is given, paths only present in other are added with their
// value. Every value in the result is the value other holds at its path.
func (t *Tree) Diff(other *Tree, opts ...DiffOption) *Tree {
	o := &diffOpts{}
	for _, opt := range opts {
		opt(o)
	}
	if other == nil {
		other = New()
	}
	res := New()
	from := t.Paths()
	t.diffFrom(res, other, from)
	if !o.oneSided {
		t.diffTo(res, other, other.Paths())
	}
	if debug.Diff() {
		debug.Logf("diff %d paths: %d changed\n", len(from), res.Len())
	}
	return res
}

func (t *Tree) diffFrom(res, other *Tree, paths []string) {
	for _, p := range paths {
		ov := other.Get(p)
		if Equal(t.Get(p), ov) {
			continue
		}
		// values are plain so Set cannot fail
		_ = res.Set(p, ov)
	}
}

func (t *Tree) diffTo(res, other *Tree, paths []string) {
	for _, p := range paths {
		if t.hasLeaf(p) || res.hasLeaf(p) {
			continue
		}
		_ = res.Set(p, other.Get(p))
	}
}

func (t *Tree) hasLeaf(p string) bool {
	for i := range t.entries {
		if t.entries[i].Path == p {
			return true
		}
	}
	return false
}
