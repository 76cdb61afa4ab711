package descriptor

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/signadot/pathmodel/debug"
)

type parseOpts struct {
	model string
	field string
	log   *slog.Logger
}

type Option func(*parseOpts)

// InModel names the model being compiled in errors and warnings.
func InModel(name string) Option {
	return func(o *parseOpts) { o.model = name }
}

// AtField names the field path being compiled in errors and warnings.
func AtField(path string) Option {
	return func(o *parseOpts) { o.field = path }
}

// WithLogger sets the logger used for deprecation warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *parseOpts) { o.log = l }
}

// Parse compiles a field annotation of the form
//
//	[!|?][>|=][^|&]<type>[(params)][:legacyParams]{|filter[:args]}
//
// where <type> is a primitive keyword, a model name, [Model] for an array
// of models, name() for a function, or, after '&', an optional primitive
// keyword followed by a {expression}.
func Parse(raw string, opts ...Option) (*Descriptor, error) {
	o := &parseOpts{}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	p := &parser{raw: raw, opts: o}
	if strings.TrimSpace(raw) == "" {
		return nil, p.errorf(0, "empty annotation")
	}
	toks, err := Tokenize(raw)
	if err != nil {
		var te *tokErr
		if errors.As(err, &te) {
			return nil, p.errorf(te.pos, "%s", te.msg)
		}
		return nil, p.errorf(-1, "%v", err)
	}
	p.toks = toks
	d, err := p.parse()
	if err != nil {
		return nil, err
	}
	if debug.Parse() {
		debug.Logf("descriptor %q: kind=%s bind=%s model=%q fn=%q params=%v\n",
			raw, d.Kind, d.Bind, d.Model, d.Function, d.Params)
	}
	return d, nil
}

// MustParse is like Parse but panics on error.
func MustParse(raw string, opts ...Option) *Descriptor {
	d, err := Parse(raw, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

type parser struct {
	raw  string
	opts *parseOpts
	toks []Token
	i    int
}

func (p *parser) errorf(pos int, format string, args ...any) *Error {
	return &Error{
		Model: p.opts.model,
		Field: p.opts.field,
		Raw:   p.raw,
		Pos:   pos,
		Msg:   fmt.Sprintf(format, args...),
	}
}

func (p *parser) peek() Token {
	return p.toks[p.i]
}

func (p *parser) peekAt(n int) Token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) next() Token {
	t := p.toks[p.i]
	if t.Sym != SymEOF {
		p.i++
	}
	return t
}

func (p *parser) accept(s Sym) bool {
	if p.peek().Sym == s {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(s Sym) (Token, error) {
	t := p.next()
	if t.Sym != s {
		return t, p.errorf(t.Pos, "expected %s, found %s", s, t)
	}
	return t, nil
}

func (p *parser) expectName(what string) (Token, error) {
	t, err := p.expect(SymIdent)
	if err != nil {
		return t, err
	}
	if !isName(t.Text) {
		return t, p.errorf(t.Pos, "%s may only contain letters and digits, found %q", what, t.Text)
	}
	return t, nil
}

func isName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

func (p *parser) parse() (*Descriptor, error) {
	d := &Descriptor{Original: p.raw}
	if p.accept(SymRequired) {
		d.Required = true
	} else {
		p.accept(SymOptional)
	}
	if p.accept(SymReference) {
		d.Bind = BindReference
	} else if p.accept(SymBind) {
		d.Bind = BindBind
	}
	var err error
	switch {
	case p.accept(SymAutoCast):
		d.AutoCast = true
		err = p.parseType(d)
	case p.accept(SymDirect):
		err = p.parseDirect(d)
	default:
		err = p.parseType(d)
	}
	if err != nil {
		return nil, err
	}
	if err := p.parseParams(d); err != nil {
		return nil, err
	}
	if err := p.parseLegacy(d); err != nil {
		return nil, err
	}
	if err := p.parseFilters(d); err != nil {
		return nil, err
	}
	if t := p.next(); t.Sym != SymEOF {
		return nil, p.errorf(t.Pos, "unexpected %s", t)
	}
	if err := p.validate(d); err != nil {
		return nil, err
	}
	return d, nil
}

func (p *parser) parseType(d *Descriptor) error {
	if p.accept(SymLBrack) {
		t, err := p.expectName("model name")
		if err != nil {
			return err
		}
		if IsPrimitiveKeyword(t.Text) {
			return p.errorf(t.Pos, "array of %q: only models may be listed in brackets", t.Text)
		}
		if _, err := p.expect(SymRBrack); err != nil {
			return err
		}
		d.Kind = KindModelArray
		d.Model = t.Text
		return nil
	}
	if t := p.peek(); t.Sym == SymIdent && t.Text == "this" &&
		p.peekAt(1).Sym == SymPipe && p.peekAt(2).Sym == SymPipe {
		p.next()
		p.next()
		p.next()
		d.ThisFirst = true
	}
	t, err := p.expectName("type name")
	if err != nil {
		return err
	}
	if p.peek().Sym == SymLParen && p.peekAt(1).Sym == SymRParen {
		p.next()
		p.next()
		if IsPrimitiveKeyword(t.Text) {
			return p.errorf(t.Pos, "function may not be named after the %q type", strings.ToLower(t.Text))
		}
		d.Kind = KindFunction
		d.Function = t.Text
		return nil
	}
	if d.ThisFirst {
		return p.errorf(t.Pos, "this|| applies to functions only")
	}
	if IsPrimitiveKeyword(t.Text) {
		d.PrimitiveType = strings.ToLower(t.Text)
		switch d.PrimitiveType {
		case TypeObject:
			d.Kind = KindObject
		case TypeArray:
			d.Kind = KindArray
		default:
			d.Kind = KindPrimitive
		}
		return nil
	}
	d.Kind = KindModel
	d.Model = t.Text
	return nil
}

func (p *parser) parseDirect(d *Descriptor) error {
	d.Kind = KindDirectEval
	if t := p.peek(); t.Sym == SymIdent {
		p.next()
		if !IsPrimitiveKeyword(t.Text) {
			return p.errorf(t.Pos, "expression result type must be a primitive keyword, found %q", t.Text)
		}
		d.PrimitiveType = strings.ToLower(t.Text)
	}
	if _, err := p.expect(SymLBrace); err != nil {
		return err
	}
	body, err := p.expect(SymExpr)
	if err != nil {
		return err
	}
	d.Expr = strings.TrimSpace(body.Text)
	if d.Expr == "" {
		return p.errorf(body.Pos, "empty expression")
	}
	_, err = p.expect(SymRBrace)
	return err
}

func (p *parser) parseList(end Sym) ([]string, error) {
	var res []string
	if end != SymEOF && p.accept(end) {
		return res, nil
	}
	for {
		t, err := p.expect(SymIdent)
		if err != nil {
			return nil, err
		}
		res = append(res, t.Text)
		if !p.accept(SymComma) {
			break
		}
	}
	if end != SymEOF {
		if _, err := p.expect(end); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (p *parser) parseParams(d *Descriptor) error {
	if !p.accept(SymLParen) {
		return nil
	}
	params, err := p.parseList(SymRParen)
	if err != nil {
		return err
	}
	d.Params = params
	return nil
}

func (p *parser) parseLegacy(d *Descriptor) error {
	colon := p.peek()
	if !p.accept(SymColon) {
		return nil
	}
	if len(d.Params) != 0 {
		return p.errorf(colon.Pos, "parameters given both in parentheses and after ':'")
	}
	params, err := p.parseList(SymEOF)
	if err != nil {
		return err
	}
	d.Params = params
	p.opts.log.Warn("deprecated ':' parameter syntax, use parentheses",
		"model", p.opts.model,
		"field", p.opts.field,
		"annotation", p.raw)
	return nil
}

func (p *parser) parseFilters(d *Descriptor) error {
	for p.accept(SymPipe) {
		t, err := p.expectName("filter name")
		if err != nil {
			return err
		}
		f := Filter{Name: t.Text}
		if p.accept(SymColon) {
			args, err := p.expect(SymArgs)
			if err != nil {
				return err
			}
			if args.Text != "" {
				for _, a := range strings.Split(args.Text, ",") {
					f.Args = append(f.Args, strings.TrimSpace(a))
				}
			}
		}
		d.Filters = append(d.Filters, f)
	}
	return nil
}

func (p *parser) validate(d *Descriptor) error {
	if d.Bind != BindNone && !d.IsModel() && d.Kind != KindFunction {
		return p.errorf(0, "%s marker requires a model or function type, found %s", d.Bind, d.Kind)
	}
	if d.Resolves() && len(d.Params) == 0 {
		return p.errorf(len(p.raw), "%s field requires an exchange field parameter", d.Bind)
	}
	if len(d.Params) != 0 && d.Kind != KindFunction && d.Bind == BindNone {
		return p.errorf(0, "parameters given on a %s field which is neither function, reference nor bind", d.Kind)
	}
	return nil
}
