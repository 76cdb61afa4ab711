package descriptor

import (
	"fmt"
	"strings"
)

// Sym identifies a token kind.
type Sym int

const (
	SymEOF Sym = iota
	SymRequired
	SymOptional
	SymReference
	SymBind
	SymAutoCast
	SymDirect
	SymLParen
	SymRParen
	SymLBrack
	SymRBrack
	SymLBrace
	SymRBrace
	SymColon
	SymComma
	SymPipe
	SymIdent
	SymExpr
	SymArgs
)

// symbols is the symbol table shared by the tokenizer, the parser and
// error messages.
var symbols = [...]struct {
	text string
	name string
}{
	SymEOF:       {"", "end of input"},
	SymRequired:  {"!", "required marker"},
	SymOptional:  {"?", "optional marker"},
	SymReference: {">", "reference marker"},
	SymBind:      {"=", "bind marker"},
	SymAutoCast:  {"^", "autocast marker"},
	SymDirect:    {"&", "expression marker"},
	SymLParen:    {"(", "'('"},
	SymRParen:    {")", "')'"},
	SymLBrack:    {"[", "'['"},
	SymRBrack:    {"]", "']'"},
	SymLBrace:    {"{", "'{'"},
	SymRBrace:    {"}", "'}'"},
	SymColon:     {":", "':'"},
	SymComma:     {",", "','"},
	SymPipe:      {"|", "'|'"},
	SymIdent:     {"", "name"},
	SymExpr:      {"", "expression"},
	SymArgs:      {"", "filter arguments"},
}

var symByByte = map[byte]Sym{}

func init() {
	for i, s := range symbols {
		if len(s.text) == 1 {
			symByByte[s.text[0]] = Sym(i)
		}
	}
}

func (s Sym) String() string {
	if int(s) < len(symbols) {
		return symbols[s].name
	}
	return fmt.Sprintf("Sym(%d)", int(s))
}

// closer returns the closing symbol for an opening bracket.
func (s Sym) closer() Sym {
	switch s {
	case SymLParen:
		return SymRParen
	case SymLBrack:
		return SymRBrack
	case SymLBrace:
		return SymRBrace
	}
	return SymEOF
}

// Token is one lexical unit of an annotation.
type Token struct {
	Sym  Sym
	Text string
	Pos  int
}

func (t Token) String() string {
	switch t.Sym {
	case SymIdent, SymExpr, SymArgs:
		return fmt.Sprintf("%s %q", t.Sym, t.Text)
	}
	return t.Sym.String()
}

func isIdentByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '_', '.', '/', '$', '-':
		return true
	}
	return false
}

type tokErr struct {
	pos int
	msg string
}

func (e *tokErr) Error() string { return fmt.Sprintf("%s at %d", e.msg, e.pos) }

// Tokenize splits an annotation into tokens. Brackets must balance; the
// body of a {...} expression is returned as a single SymExpr token and
// the text following "|filter:" up to the next '|' as a SymArgs token.
func Tokenize(src string) ([]Token, error) {
	var (
		toks  []Token
		stack []Token
	)
	i := 0
	for i < len(src) {
		c := src[i]
		if c == ' ' || c == '\t' {
			i++
			continue
		}
		if isIdentByte(c) {
			j := i
			for j < len(src) && isIdentByte(src[j]) {
				j++
			}
			toks = append(toks, Token{Sym: SymIdent, Text: src[i:j], Pos: i})
			i = j
			continue
		}
		sym, ok := symByByte[c]
		if !ok {
			return nil, &tokErr{pos: i, msg: fmt.Sprintf("unexpected character %q", c)}
		}
		tok := Token{Sym: sym, Text: string(c), Pos: i}
		switch sym {
		case SymLParen, SymLBrack:
			stack = append(stack, tok)
		case SymRParen, SymRBrack, SymRBrace:
			if len(stack) == 0 {
				return nil, &tokErr{pos: i, msg: fmt.Sprintf("unmatched %s", sym)}
			}
			open := stack[len(stack)-1]
			if open.Sym.closer() != sym {
				return nil, &tokErr{pos: i, msg: fmt.Sprintf("%s at %d closed by %s", open.Sym, open.Pos, sym)}
			}
			stack = stack[:len(stack)-1]
		case SymLBrace:
			toks = append(toks, tok)
			body, end, err := scanExpr(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks,
				Token{Sym: SymExpr, Text: body, Pos: i + 1},
				Token{Sym: SymRBrace, Text: "}", Pos: end})
			i = end + 1
			continue
		case SymColon:
			if isFilterColon(toks) {
				toks = append(toks, tok)
				j := i + 1
				for j < len(src) && src[j] != '|' {
					j++
				}
				toks = append(toks, Token{Sym: SymArgs, Text: strings.TrimSpace(src[i+1 : j]), Pos: i + 1})
				i = j
				continue
			}
		}
		toks = append(toks, tok)
		i++
	}
	if len(stack) != 0 {
		open := stack[len(stack)-1]
		return nil, &tokErr{pos: open.Pos, msg: fmt.Sprintf("unmatched %s", open.Sym)}
	}
	toks = append(toks, Token{Sym: SymEOF, Pos: len(src)})
	return toks, nil
}

// isFilterColon reports whether a colon follows "|name".
func isFilterColon(toks []Token) bool {
	n := len(toks)
	return n >= 2 && toks[n-1].Sym == SymIdent && toks[n-2].Sym == SymPipe
}

// scanExpr scans the expression body starting at the '{' at open. It
// returns the body and the offset of the closing '}'.
func scanExpr(src string, open int) (string, int, error) {
	stack := []byte{'}'}
	var quote byte
	for i := open + 1; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '(':
			stack = append(stack, ')')
		case '[':
			stack = append(stack, ']')
		case '{':
			stack = append(stack, '}')
		case ')', ']', '}':
			want := stack[len(stack)-1]
			if c != want {
				return "", 0, &tokErr{pos: i, msg: fmt.Sprintf("unbalanced %q in expression", c)}
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return src[open+1 : i], i, nil
			}
		}
	}
	if quote != 0 {
		return "", 0, &tokErr{pos: len(src), msg: "unterminated string in expression"}
	}
	return "", 0, &tokErr{pos: open, msg: "unmatched '{'"}
}
