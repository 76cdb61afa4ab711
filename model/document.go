package model

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/signadot/pathmodel/debug"
	"github.com/signadot/pathmodel/eval"

	"github.com/goccy/go-yaml"
)

// Document is a YAML (or JSON) schema document.
//
//	models:
//	  User:
//	    read: users
//	    fields:
//	      name: "!string"
//	      age: "!^number"
//	    validators:
//	      - check: "age >= 18"
//	        error: too-young
//	extractors:
//	  UserName:
//	    parent: User
//	    extract:
//	      name: "!name"
type Document struct {
	Models     map[string]*DocModel     `yaml:"models,omitempty"`
	Extractors map[string]*DocExtractor `yaml:"extractors,omitempty"`
	Parsers    map[string]*DocModel     `yaml:"parsers,omitempty"`
	// Replacers give values to $name placeholders of path templates.
	Replacers map[string]string `yaml:"replacers,omitempty"`
}

type DocModel struct {
	Fields     map[string]any  `yaml:"fields"`
	Read       string          `yaml:"read,omitempty"`
	HasID      *bool           `yaml:"hasID,omitempty"`
	Writes     []*DocWrite     `yaml:"writes,omitempty"`
	Validators []*DocValidator `yaml:"validators,omitempty"`
}

type DocExtractor struct {
	Parent  string         `yaml:"parent"`
	Extract map[string]any `yaml:"extract"`
	Read    string         `yaml:"read,omitempty"`
	HasID   *bool          `yaml:"hasID,omitempty"`
}

type DocWrite struct {
	Ref        string `yaml:"ref"`
	QueryOn    string `yaml:"queryOn,omitempty"`
	WriteChild string `yaml:"writeChild,omitempty"`
	// Filter is a boolean expression over the record's key and value.
	Filter         string `yaml:"filter,omitempty"`
	Model          string `yaml:"model,omitempty"`
	ReferenceModel string `yaml:"referenceModel,omitempty"`
}

type DocValidator struct {
	// Check is a boolean expression over the raw input.
	Check string `yaml:"check"`
	Error string `yaml:"error"`
}

// LoadDocument decodes a schema document.
func LoadDocument(d []byte) (*Document, error) {
	doc := &Document{}
	if err := yaml.Unmarshal(d, doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	if debug.Parse() {
		debug.Logf("loaded document: %d models, %d extractors, %d parsers\n",
			len(doc.Models), len(doc.Extractors), len(doc.Parsers))
	}
	return doc, nil
}

// OpenDocument reads a schema document from path. When path is a
// directory, schema.{yaml,yml,json} are tried in order.
func OpenDocument(path string) (*Document, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		d, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		doc, err := LoadDocument(d)
		if err != nil {
			return nil, fmt.Errorf("could not decode %s: %w", path, err)
		}
		return doc, nil
	}
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		candidate := filepath.Join(path, "schema"+ext)
		d, err := os.ReadFile(candidate)
		if err == nil {
			doc, err := LoadDocument(d)
			if err != nil {
				return nil, fmt.Errorf("could not decode %s: %w", candidate, err)
			}
			return doc, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("could not read %q: %w", candidate, err)
		}
	}
	return nil, fmt.Errorf("could not find schema.{yaml,yml,json} in %q", path)
}

// Register registers the parsers, then the models, then the extractors
// of doc. Extractors may derive from one another in any order.
func (doc *Document) Register(r *Registry) error {
	for _, name := range sortedNames(doc.Parsers) {
		def, err := doc.Parsers[name].definition()
		if err != nil {
			return fmt.Errorf("parser %q: %w", name, err)
		}
		if _, err := r.Register(name, KindParser, def); err != nil {
			return err
		}
	}
	for _, name := range sortedNames(doc.Models) {
		def, err := doc.Models[name].definition()
		if err != nil {
			return fmt.Errorf("model %q: %w", name, err)
		}
		if _, err := r.Register(name, KindModel, def); err != nil {
			return err
		}
	}
	pending := sortedNames(doc.Extractors)
	for len(pending) != 0 {
		var next []string
		for _, name := range pending {
			x := doc.Extractors[name]
			if x == nil {
				return fmt.Errorf("%w: extractor %q: empty definition", ErrInvalidDefinition, name)
			}
			if _, err := r.Model(x.Parent); err != nil {
				next = append(next, name)
				continue
			}
			def := &Definition{Parent: x.Parent, Extract: x.Extract, Read: x.Read, HasID: x.HasID}
			if _, err := r.Register(name, KindExtractor, def); err != nil {
				return err
			}
		}
		if len(next) == len(pending) {
			x := doc.Extractors[next[0]]
			return fmt.Errorf("%w: extractor %q parent %q: %w", ErrInvalidDefinition, next[0], x.Parent, ErrModelNotFound)
		}
		pending = next
	}
	return nil
}

func (dm *DocModel) definition() (*Definition, error) {
	if dm == nil {
		return nil, fmt.Errorf("%w: empty definition", ErrInvalidDefinition)
	}
	def := &Definition{Fields: dm.Fields, Read: dm.Read, HasID: dm.HasID}
	for _, w := range dm.Writes {
		wp := WritePath{
			Ref:            w.Ref,
			QueryOn:        w.QueryOn,
			WriteChild:     w.WriteChild,
			Model:          w.Model,
			ReferenceModel: w.ReferenceModel,
		}
		if w.Filter != "" {
			pred, err := eval.CompilePredicate(w.Filter)
			if err != nil {
				return nil, fmt.Errorf("%w: write path %q filter: %w", ErrInvalidDefinition, w.Ref, err)
			}
			wp.SnapFilter = func(key string, value any) bool {
				return pred.Match(map[string]any{"key": key, "value": value})
			}
		}
		def.Writes = append(def.Writes, wp)
	}
	for _, v := range dm.Validators {
		pred, err := eval.CompilePredicate(v.Check, sortedNames(dm.Fields)...)
		if err != nil {
			return nil, fmt.Errorf("%w: validator %q: %w", ErrInvalidDefinition, v.Error, err)
		}
		def.Validators = append(def.Validators, Validator{Check: pred.Match, Code: v.Error})
	}
	return def, nil
}

func sortedNames[T any](m map[string]T) []string {
	res := make([]string, 0, len(m))
	for k := range m {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}
