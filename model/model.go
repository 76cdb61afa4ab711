package model

import (
	"context"

	"github.com/signadot/pathmodel/descriptor"
)

// Kind is the kind of a registered model.
type Kind int

const (
	KindModel Kind = iota
	KindExtractor
	KindParser
)

func (k Kind) String() string {
	switch k {
	case KindModel:
		return "model"
	case KindExtractor:
		return "extractor"
	case KindParser:
		return "parser"
	}
	return "unknown"
}

// Event names a lifecycle hook list.
type Event string

const (
	OnAdd       Event = "onAdd"
	OnSet       Event = "onSet"
	OnGet       Event = "onGet"
	OnUpdate    Event = "onUpdate"
	OnDelete    Event = "onDelete"
	AfterAdd    Event = "afterAdd"
	AfterSet    Event = "afterSet"
	AfterUpdate Event = "afterUpdate"
	AfterDelete Event = "afterDelete"
)

// Events lists every hook event.
var Events = []Event{OnAdd, OnSet, OnGet, OnUpdate, OnDelete, AfterAdd, AfterSet, AfterUpdate, AfterDelete}

func validEvent(e Event) bool {
	for _, x := range Events {
		if x == e {
			return true
		}
	}
	return false
}

// HookCall is passed to hooks.
type HookCall struct {
	Model string
	Event Event
	// ID is the entity id, empty for models without ids.
	ID string
	// Data is the parsed value being written or read, or the ids being
	// deleted.
	Data any
	// Old is the previous value for updates.
	Old any
}

// Hook runs on a lifecycle event. A returned error aborts the
// operation.
type Hook func(ctx context.Context, call *HookCall) error

// Validator checks the raw input of a parse.
type Validator struct {
	Check func(raw any) bool
	Code  string
}

// Formatter rewrites the built output of a parse.
type Formatter func(v any) any

// SnapFilter selects the records of a fan-out write path.
type SnapFilter func(key string, value any) bool

// WritePath is a destination written on every change of a model.
type WritePath struct {
	// Ref is the destination path template.
	Ref string
	// QueryOn and WriteChild make a fan-out path: records below Ref whose
	// QueryOn child equals the entity id get the change written under
	// their WriteChild.
	QueryOn    string
	WriteChild string
	SnapFilter SnapFilter
	// Model, when set, is the extractor shaping the data written here.
	Model string
	// ReferenceModel extends fan-out deletes to that model's paths.
	ReferenceModel string
}

// IsQuery reports whether w is a fan-out path.
func (w WritePath) IsQuery() bool {
	return w.QueryOn != "" && w.WriteChild != ""
}

// Definition is the raw input to Register.
type Definition struct {
	// Fields maps field paths, possibly nested, to annotations. Models
	// and parsers only.
	Fields map[string]any
	// Parent and Extract define an extractor: Extract maps output paths,
	// possibly nested, to source specs "[!|?]sourcePath".
	Parent  string
	Extract map[string]any
	// Read is the read path template; Writes the write paths.
	Read   string
	Writes []WritePath
	// HasID defaults to true for models and to the parent's for
	// extractors.
	HasID      *bool
	Validators []Validator
	Formatters []Formatter
	Hooks      map[Event][]Hook
}

// Field is a compiled field.
type Field struct {
	Path string
	Desc *descriptor.Descriptor
}

// ExtractField is one remapped field of an extractor.
type ExtractField struct {
	Output   string
	Source   string
	Required bool
}

// Model is a registered model, extractor or parser. Models are
// immutable after registration.
type Model struct {
	Name    string
	Kind    Kind
	Parent  string
	Read    string
	HasID   bool
	fields  []Field
	extract []ExtractField
	writes  []WritePath
	valids  []Validator
	formats []Formatter
	hooks   map[Event][]Hook
}

// Fields returns the compiled fields ordered by path.
func (m *Model) Fields() []Field {
	return append([]Field(nil), m.fields...)
}

// Field returns the field at path.
func (m *Model) Field(path string) (Field, bool) {
	for _, f := range m.fields {
		if f.Path == path {
			return f, true
		}
	}
	return Field{}, false
}

// Extract returns the remapped fields of an extractor ordered by output
// path.
func (m *Model) Extract() []ExtractField {
	return append([]ExtractField(nil), m.extract...)
}

// Writes returns the write paths. The read path is always among them
// for models.
func (m *Model) Writes() []WritePath {
	return append([]WritePath(nil), m.writes...)
}

func (m *Model) Validators() []Validator {
	return append([]Validator(nil), m.valids...)
}

func (m *Model) Formatters() []Formatter {
	return append([]Formatter(nil), m.formats...)
}

// Hooks returns the hooks for e.
func (m *Model) Hooks(e Event) []Hook {
	return append([]Hook(nil), m.hooks[e]...)
}

func (m *Model) IsExtractor() bool { return m.Kind == KindExtractor }
func (m *Model) IsParser() bool    { return m.Kind == KindParser }
