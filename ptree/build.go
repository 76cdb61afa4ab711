package ptree

import (
	"fmt"
	"strconv"
)

// Build reconstructs the nested value held by t. Whether a level is a
// slice or a map is decided by its first segment; a slice level which
// meets a non-index key is built as a map instead. Build returns nil for
// an empty tree.
func (t *Tree) Build() any {
	v, _ := build(t.entries, false)
	return v
}

// BuildStrict is like Build but fails with ErrConsistency when the root
// segments do not all agree with the kind of the first one.
func (t *Tree) BuildStrict() (any, error) {
	return build(t.entries, true)
}

func build(entries []Entry, strict bool) (any, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	if strict {
		isArray := IsIndex(entries[0].Segments[0])
		for _, e := range entries {
			if IsIndex(e.Segments[0]) != isArray {
				return nil, fmt.Errorf("%w: key inconsistency for root at %q", ErrConsistency, e.Path)
			}
		}
	}
	n := &node{}
	for _, e := range entries {
		n.insert(e.Segments, e.Value)
	}
	return n.value(), nil
}

type node struct {
	leaf     bool
	val      any
	keys     []string
	children map[string]*node
}

func (n *node) insert(segs []string, v any) {
	if len(segs) == 0 {
		n.leaf = true
		n.val = v
		n.keys = nil
		n.children = nil
		return
	}
	if n.leaf {
		n.leaf = false
		n.val = nil
	}
	if n.children == nil {
		n.children = map[string]*node{}
	}
	c, ok := n.children[segs[0]]
	if !ok {
		c = &node{}
		n.children[segs[0]] = c
		n.keys = append(n.keys, segs[0])
	}
	c.insert(segs[1:], v)
}

// maxSparse bounds how many nil slots an array level may need before it
// is built as a map.
const maxSparse = 32

func (n *node) value() any {
	if n.leaf {
		return copyLeaf(n.val)
	}
	if len(n.keys) == 0 {
		return nil
	}
	if IsIndex(n.keys[0]) {
		if arr, ok := n.array(); ok {
			return arr
		}
	}
	obj := make(map[string]any, len(n.keys))
	for _, k := range n.keys {
		obj[k] = n.children[k].value()
	}
	return obj
}

func (n *node) array() ([]any, bool) {
	hi := -1
	for _, k := range n.keys {
		if !IsIndex(k) {
			return nil, false
		}
		i, err := strconv.Atoi(k)
		if err != nil {
			return nil, false
		}
		if i > hi {
			hi = i
		}
	}
	if hi+1 > 2*len(n.keys)+maxSparse {
		return nil, false
	}
	arr := make([]any, hi+1)
	for _, k := range n.keys {
		i, _ := strconv.Atoi(k)
		arr[i] = n.children[k].value()
	}
	return arr, true
}
