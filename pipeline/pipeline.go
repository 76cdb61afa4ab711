// Package pipeline turns raw input into the stored shape of a model.
//
// A parse runs in phases over the model's compiled fields:
//
//	0  extractors parse their parent and remap its output
//	1  primitive fields, with optional autocast
//	2  model fields: references and binds through a Loader, embedded
//	   sub-models and arrays of them by recursive parse
//	3  function and direct expression fields, by descending priority
//	4  filter chains
//	5  validators over the raw input
//	6  formatters over the built output
//
// Every failure is returned as a *model.Error locating the model, the
// phase and the field.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/signadot/pathmodel/autoid"
	"github.com/signadot/pathmodel/debug"
	"github.com/signadot/pathmodel/eval"
	"github.com/signadot/pathmodel/model"
	"github.com/signadot/pathmodel/ptree"
)

// Loader loads the stored, parsed value of a model by id. A nil value
// with a nil error means there is no such entity.
type Loader interface {
	Load(ctx context.Context, model, id string) (any, error)
}

// IDProvider hands out ids for items stored without a key of their own.
type IDProvider interface {
	Next() string
}

// Evaluator runs computed fields and filters.
type Evaluator interface {
	Call(ctx context.Context, name string, args []any, env eval.Env) (any, error)
	Eval(ctx context.Context, src string, env eval.Env) (any, error)
	Filter(ctx context.Context, name string, v any, args []string, env eval.Env) (any, error)
	Priority(name string) int
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, model, id string) (any, error)

func (f LoaderFunc) Load(ctx context.Context, model, id string) (any, error) {
	return f(ctx, model, id)
}

// Pipeline parses raw input against the models of a registry.
type Pipeline struct {
	reg    *model.Registry
	loader Loader
	ids    IDProvider
	ev     Evaluator
	log    *slog.Logger
}

type Option func(*Pipeline)

// WithLoader sets the loader resolving references and binds.
func WithLoader(l Loader) Option {
	return func(p *Pipeline) { p.loader = l }
}

// WithIDs sets the id provider for model arrays. The default is an
// autoid.Sequence.
func WithIDs(ids IDProvider) Option {
	return func(p *Pipeline) { p.ids = ids }
}

// WithEvaluator sets the evaluator of computed fields and filters. The
// default is a fresh eval.Catalog.
func WithEvaluator(ev Evaluator) Option {
	return func(p *Pipeline) { p.ev = ev }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

func New(reg *model.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{reg: reg}
	for _, opt := range opts {
		opt(p)
	}
	if p.ids == nil {
		p.ids = autoid.NewSequence()
	}
	if p.ev == nil {
		p.ev = eval.NewCatalog()
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	return p
}

// SetLoader replaces the loader. It must be called before any Parse.
func (p *Pipeline) SetLoader(l Loader) {
	p.loader = l
}

// Registry returns the registry of p.
func (p *Pipeline) Registry() *model.Registry {
	return p.reg
}

// ParseOption configures a single Parse.
type ParseOption func(*parseOpts)

type parseOpts struct {
	keepNull bool
	getter   bool
	raw      bool
	oldRaw   any
	newRaw   any
	old      *ptree.Tree
	next     *ptree.Tree
}

// KeepNull sets missing optional fields to null instead of omitting
// them.
func KeepNull() ParseOption {
	return func(o *parseOpts) { o.keepNull = true }
}

// Getter parses stored data: functions are not invoked and validators
// do not run.
func Getter() ParseOption {
	return func(o *parseOpts) { o.getter = true }
}

// RawPassthrough copies references through without loading them.
func RawPassthrough() ParseOption {
	return func(o *parseOpts) { o.raw = true }
}

// OldSnapshot gives the previous parsed value, against which reference
// exchange fields are compared.
func OldSnapshot(v any) ParseOption {
	return func(o *parseOpts) { o.oldRaw = v }
}

// NewSnapshot gives the requested change; an array it holds at a model
// array field replaces the stored items.
func NewSnapshot(v any) ParseOption {
	return func(o *parseOpts) { o.newRaw = v }
}

// Parse runs the named model's pipeline over raw and returns the built
// output, nil when nothing survives.
func (p *Pipeline) Parse(ctx context.Context, name string, raw any, opts ...ParseOption) (any, error) {
	m, err := p.reg.Model(name)
	if err != nil {
		return nil, err
	}
	o := &parseOpts{}
	for _, opt := range opts {
		opt(o)
	}
	if o.old, err = ptree.From(o.oldRaw); err != nil {
		return nil, model.Wrap(name, "parse", "", fmt.Errorf("old snapshot: %w", err))
	}
	if o.next, err = ptree.From(o.newRaw); err != nil {
		return nil, model.Wrap(name, "parse", "", fmt.Errorf("new snapshot: %w", err))
	}
	return p.parse(ctx, m, raw, o)
}

// ParseTree is like Parse but returns the output as a tree.
func (p *Pipeline) ParseTree(ctx context.Context, name string, raw any, opts ...ParseOption) (*ptree.Tree, error) {
	v, err := p.Parse(ctx, name, raw, opts...)
	if err != nil {
		return nil, err
	}
	t, err := ptree.From(v)
	if err != nil {
		return nil, model.Wrap(name, "phase6", "", err)
	}
	return t, nil
}

// run is the state of one parse of one model.
type run struct {
	p   *Pipeline
	m   *model.Model
	o   *parseOpts
	raw any
	src *ptree.Tree
	out *ptree.Tree
}

func (p *Pipeline) parse(ctx context.Context, m *model.Model, raw any, o *parseOpts) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	plain, err := ptree.Plain(raw)
	if err != nil {
		return nil, model.Wrap(m.Name, "parse", "", err)
	}
	if m.IsExtractor() {
		return p.extract(ctx, m, plain, o)
	}
	src, err := ptree.From(plain)
	if err != nil {
		return nil, model.Wrap(m.Name, "parse", "", err)
	}
	r := &run{p: p, m: m, o: o, raw: plain, src: src, out: ptree.New()}
	if debug.Parse() {
		debug.Logf("parse %s: %d input leaves getter=%v keepNull=%v\n", m.Name, src.Len(), o.getter, o.keepNull)
	}
	if err := r.primitives(); err != nil {
		return nil, err
	}
	if err := r.models(ctx); err != nil {
		return nil, err
	}
	if err := r.computed(ctx); err != nil {
		return nil, err
	}
	if err := r.filters(ctx); err != nil {
		return nil, err
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r.format(), nil
}

// setNull records a missing value: null with KeepNull, nothing
// otherwise.
func (r *run) setNull(path string) error {
	if !r.o.keepNull {
		return nil
	}
	return r.out.Set(path, nil)
}

func (r *run) wrap(phase, field string, err error) error {
	return model.Wrap(r.m.Name, phase, field, err)
}

// env is the scope computed fields and filters see: the output built so
// far.
func (r *run) env() eval.Env {
	if m, ok := r.out.Build().(map[string]any); ok {
		return eval.Env(m)
	}
	return eval.Env{}
}

func (r *run) validate() error {
	if r.o.getter {
		return nil
	}
	for _, v := range r.m.Validators() {
		if v.Check(r.raw) {
			continue
		}
		return &model.Error{Model: r.m.Name, Op: "phase5", Code: v.Code, Err: model.ErrValidationFailed}
	}
	return nil
}

func (r *run) format() any {
	res := r.out.Build()
	for _, f := range r.m.Formatters() {
		v := f(res)
		if ptree.IsObject(v) || ptree.IsArray(v) {
			res = v
		}
	}
	return res
}

// subtree returns the part of t below path as a tree of its own.
func subtree(t *ptree.Tree, path string) *ptree.Tree {
	if t == nil {
		return ptree.New()
	}
	res, err := ptree.From(t.Get(path))
	if err != nil {
		return ptree.New()
	}
	return res
}

// child returns the options of a nested parse at path.
func (o *parseOpts) child(path string) *parseOpts {
	c := *o
	c.old = subtree(o.old, path)
	c.next = subtree(o.next, path)
	return &c
}
