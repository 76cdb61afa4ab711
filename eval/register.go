package eval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signadot/pathmodel/debug"
)

var (
	ErrSymbolExists    = errors.New("symbol exists")
	ErrUnknownFunction = errors.New("unknown function")
	ErrUnknownFilter   = errors.New("unknown filter")
)

// DefaultPriority is the priority of functions registered without one.
// Computed fields run in descending priority order.
const DefaultPriority = 1000

// Env is the read only scope of already resolved sibling values a
// function, filter or expression sees.
type Env map[string]any

// Func computes a field value from its argument values.
type Func func(ctx context.Context, args []any, env Env) (any, error)

// FilterFunc transforms a field value using literal arguments.
type FilterFunc func(ctx context.Context, v any, args []string, env Env) (any, error)

type funcEntry struct {
	fn       Func
	priority int
}

type FuncOption func(*funcEntry)

// WithPriority sets the priority of a function.
func WithPriority(p int) FuncOption {
	return func(e *funcEntry) { e.priority = p }
}

// Catalog holds named functions and filters and evaluates expressions.
type Catalog struct {
	mu      sync.RWMutex
	funcs   map[string]*funcEntry
	filters map[string]FilterFunc
}

// NewCatalog returns a catalog with the builtin filters registered.
func NewCatalog() *Catalog {
	c := &Catalog{
		funcs:   map[string]*funcEntry{},
		filters: map[string]FilterFunc{},
	}
	for name, f := range builtinFilters {
		c.filters[name] = f
	}
	return c
}

// RegisterFunc adds a function. Names are unique.
func (c *Catalog) RegisterFunc(name string, fn Func, opts ...FuncOption) error {
	e := &funcEntry{fn: fn, priority: DefaultPriority}
	for _, opt := range opts {
		opt(e)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, present := c.funcs[name]; present {
		return fmt.Errorf("function %s: %w", name, ErrSymbolExists)
	}
	c.funcs[name] = e
	return nil
}

// RegisterFilter adds a filter. Names are unique, builtin filters
// included.
func (c *Catalog) RegisterFilter(name string, fn FilterFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, present := c.filters[name]; present {
		return fmt.Errorf("filter %s: %w", name, ErrSymbolExists)
	}
	c.filters[name] = fn
	return nil
}

// Priority returns the priority of the named function, or
// DefaultPriority when it is unknown.
func (c *Catalog) Priority(name string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.funcs[name]; ok {
		return e.priority
	}
	return DefaultPriority
}

// HasFunc reports whether the named function exists.
func (c *Catalog) HasFunc(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.funcs[name]
	return ok
}

// Funcs returns the sorted function names.
func (c *Catalog) Funcs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res := make([]string, 0, len(c.funcs))
	for name := range c.funcs {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// Call invokes the named function.
func (c *Catalog) Call(ctx context.Context, name string, args []any, env Env) (any, error) {
	c.mu.RLock()
	e, ok := c.funcs[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	if debug.Eval() {
		debug.Logf("call %s%v\n", name, args)
	}
	return e.fn(ctx, args, env)
}

// Filter applies the named filter to v.
func (c *Catalog) Filter(ctx context.Context, name string, v any, args []string, env Env) (any, error) {
	c.mu.RLock()
	f, ok := c.filters[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFilter, name)
	}
	if debug.Eval() {
		debug.Logf("filter %s%v on %v\n", name, args, v)
	}
	return f(ctx, v, args, env)
}
