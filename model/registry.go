package model

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/signadot/pathmodel/descriptor"
	"github.com/signadot/pathmodel/ptree"
)

var reserved = map[string]bool{
	"string":  true,
	"number":  true,
	"boolean": true,
	"object":  true,
	"array":   true,
	"this":    true,
}

// Registry holds compiled models by name.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
	log    *slog.Logger
}

type RegistryOption func(*Registry)

// WithLogger sets the logger used while compiling annotations.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{models: map[string]*Model{}}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	return r
}

// Register compiles def and stores it under name.
func (r *Registry) Register(name string, kind Kind, def *Definition) (*Model, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty model name", ErrInvalidDefinition)
	}
	if reserved[strings.ToLower(name)] {
		return nil, fmt.Errorf("%w: %q is a reserved name", ErrInvalidDefinition, name)
	}
	if def == nil {
		def = &Definition{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.models[name]; exists {
		return nil, fmt.Errorf("%s %q: %w as a %s", kind, name, ErrAlreadyExists, existing.Kind)
	}
	var (
		m   *Model
		err error
	)
	switch kind {
	case KindModel, KindParser:
		m, err = r.compile(name, kind, def)
	case KindExtractor:
		m, err = r.compileExtractor(name, def)
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidModelKind, kind)
	}
	if err != nil {
		return nil, err
	}
	r.models[name] = m
	return m, nil
}

func (r *Registry) compile(name string, kind Kind, def *Definition) (*Model, error) {
	if len(def.Fields) == 0 {
		return nil, fmt.Errorf("%w: %s %q needs at least one field", ErrInvalidDefinition, kind, name)
	}
	m := &Model{
		Name:    name,
		Kind:    kind,
		valids:  append([]Validator(nil), def.Validators...),
		formats: append([]Formatter(nil), def.Formatters...),
		hooks:   map[Event][]Hook{},
	}
	fields, err := ptree.From(def.Fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q fields: %w", ErrInvalidDefinition, kind, name, err)
	}
	for _, e := range fields.Entries() {
		raw, ok := e.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s %q field %q: annotation must be a string, got %T",
				ErrInvalidDefinition, kind, name, e.Path, e.Value)
		}
		d, err := descriptor.Parse(raw,
			descriptor.InModel(name), descriptor.AtField(e.Path), descriptor.WithLogger(r.log))
		if err != nil {
			return nil, err
		}
		m.fields = append(m.fields, Field{Path: e.Path, Desc: d})
	}
	sort.Slice(m.fields, func(i, j int) bool { return m.fields[i].Path < m.fields[j].Path })

	if kind == KindParser {
		return m, nil
	}
	if def.Read == "" {
		return nil, fmt.Errorf("%w: model %q needs a read path", ErrInvalidDefinition, name)
	}
	m.Read = ptree.Normalize(def.Read)
	m.HasID = true
	if def.HasID != nil {
		m.HasID = *def.HasID
	}
	hasRead := false
	for i, w := range def.Writes {
		if w.Ref == "" {
			return nil, fmt.Errorf("%w: model %q write path %d has no ref", ErrInvalidDefinition, name, i)
		}
		if (w.QueryOn == "") != (w.WriteChild == "") {
			return nil, fmt.Errorf("%w: model %q write path %q needs both queryOn and writeChild",
				ErrInvalidDefinition, name, w.Ref)
		}
		w.Ref = ptree.Normalize(w.Ref)
		if w.Ref == m.Read {
			hasRead = true
		}
		m.writes = append(m.writes, w)
	}
	if !hasRead {
		m.writes = append(m.writes, WritePath{Ref: m.Read})
	}
	for ev, hooks := range def.Hooks {
		if !validEvent(ev) {
			return nil, fmt.Errorf("%w: model %q: unknown hook %q", ErrInvalidDefinition, name, ev)
		}
		m.hooks[ev] = append([]Hook(nil), hooks...)
	}
	return m, nil
}

func (r *Registry) compileExtractor(name string, def *Definition) (*Model, error) {
	parent, ok := r.models[def.Parent]
	if !ok {
		return nil, fmt.Errorf("%w: extractor %q parent %q: %w", ErrInvalidDefinition, name, def.Parent, ErrModelNotFound)
	}
	if len(def.Extract) == 0 {
		return nil, fmt.Errorf("%w: extractor %q needs at least one extracted field", ErrInvalidDefinition, name)
	}
	ex, err := ptree.From(def.Extract)
	if err != nil {
		return nil, fmt.Errorf("%w: extractor %q: %w", ErrInvalidDefinition, name, err)
	}
	m := &Model{
		Name:   name,
		Kind:   KindExtractor,
		Parent: parent.Name,
		Read:   ptree.Normalize(def.Read),
		HasID:  parent.HasID,
		hooks:  map[Event][]Hook{},
	}
	if m.Read == "" {
		m.Read = parent.Read
	}
	if def.HasID != nil {
		m.HasID = *def.HasID
	}
	for _, e := range ex.Entries() {
		src, ok := e.Value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: extractor %q field %q: source must be a string, got %T",
				ErrInvalidDefinition, name, e.Path, e.Value)
		}
		m.extract = append(m.extract, parseExtract(e.Path, src))
	}
	sort.Slice(m.extract, func(i, j int) bool { return m.extract[i].Output < m.extract[j].Output })
	return m, nil
}

func parseExtract(output, src string) ExtractField {
	f := ExtractField{Output: output}
	src = strings.TrimSpace(src)
	switch {
	case strings.HasPrefix(src, "!"):
		f.Required = true
		src = src[1:]
	case strings.HasPrefix(src, "?"):
		src = src[1:]
	}
	f.Source = ptree.Normalize(src)
	if f.Source == "" {
		f.Source = output
	}
	return f
}

// Model returns the named model.
func (r *Registry) Model(name string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrModelNotFound, name)
	}
	return m, nil
}

// MustModel is like Model but panics when the model is missing.
func (r *Registry) MustModel(name string) *Model {
	m, err := r.Model(name)
	if err != nil {
		panic(err)
	}
	return m
}

// Names returns the sorted names of all registered models.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]string, 0, len(r.models))
	for name := range r.models {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}
