// Package store defines where models are read from and written to, and
// provides an in-memory implementation.
package store

import (
	"context"
	"errors"
	"sort"
)

var (
	ErrInvalidPlaceholder   = errors.New("invalid placeholder")
	ErrUndefinedPlaceholder = errors.New("undefined placeholder")
)

// Writes maps slash separated paths to the value written there. A nil
// value deletes the path.
type Writes map[string]any

// Paths returns the paths of w in order.
func (w Writes) Paths() []string {
	res := make([]string, 0, len(w))
	for p := range w {
		res = append(res, p)
	}
	sort.Strings(res)
	return res
}

// Record is one child of a queried path.
type Record struct {
	Key   string
	Value any
}

// Store is a hierarchical key value store.
type Store interface {
	// Read returns the value at path, or nil.
	Read(ctx context.Context, path string) (any, error)
	// Write applies every write of w atomically.
	Write(ctx context.Context, w Writes) error
	// Query returns the children of path whose child value equals
	// equals, ordered by key.
	Query(ctx context.Context, path, child string, equals any) ([]Record, error)
}
