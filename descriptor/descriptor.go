package descriptor

import "strings"

// Kind is the variant of a Descriptor.
type Kind int

const (
	KindPrimitive Kind = iota
	KindObject
	KindArray
	KindModel
	KindModelArray
	KindFunction
	KindDirectEval
)

var kindNames = [...]string{
	KindPrimitive:  "primitive",
	KindObject:     "object",
	KindArray:      "array",
	KindModel:      "model",
	KindModelArray: "modelArray",
	KindFunction:   "function",
	KindDirectEval: "directEval",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Bind selects cross model resolution.
type Bind int

const (
	BindNone Bind = iota
	BindReference
	BindBind
)

func (b Bind) String() string {
	switch b {
	case BindReference:
		return "reference"
	case BindBind:
		return "bind"
	}
	return "none"
}

// Primitive type keywords.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
)

// IsPrimitiveKeyword reports whether name is a primitive type keyword,
// ignoring case.
func IsPrimitiveKeyword(name string) bool {
	switch strings.ToLower(name) {
	case TypeString, TypeNumber, TypeBoolean, TypeObject, TypeArray:
		return true
	}
	return false
}

// Filter is one "|name:args" step of a filter chain.
type Filter struct {
	Name string
	Args []string
}

// Descriptor is a compiled field annotation. Descriptors are immutable
// once returned by Parse.
type Descriptor struct {
	Kind Kind
	// PrimitiveType is set for primitive, object and array kinds and,
	// optionally, for direct expressions.
	PrimitiveType string
	Required      bool
	AutoCast      bool
	Bind          Bind
	// Model is the referenced model for model kinds.
	Model string
	// Function is the catalog name for function kinds.
	Function string
	// Expr is the expression body for direct expressions.
	Expr string
	// Params are exchange paths for references and binds, argument
	// paths for functions.
	Params  []string
	Filters []Filter
	// ThisFirst makes a bound function keep an existing source value.
	ThisFirst bool
	Original  string
}

func (d *Descriptor) IsPrimitive() bool {
	return d.Kind == KindPrimitive || d.Kind == KindObject || d.Kind == KindArray
}

func (d *Descriptor) IsModel() bool {
	return d.Kind == KindModel || d.Kind == KindModelArray
}

func (d *Descriptor) IsComputed() bool {
	return d.Kind == KindFunction || d.Kind == KindDirectEval
}

// Resolves reports whether the field is resolved through a Loader.
func (d *Descriptor) Resolves() bool {
	return d.IsModel() && d.Bind != BindNone
}

// ExchangeField returns the first parameter, the path holding the ids
// of a reference or bind.
func (d *Descriptor) ExchangeField() string {
	if len(d.Params) == 0 {
		return ""
	}
	return d.Params[0]
}

func (d *Descriptor) String() string {
	return d.Original
}
