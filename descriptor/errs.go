package descriptor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrParse = errors.New("parse error")
)

// Error describes a malformed field annotation.
type Error struct {
	Model string
	Field string
	Raw   string
	Pos   int
	Msg   string
}

func (e *Error) Unwrap() error {
	return ErrParse
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(ErrParse.Error())
	if e.Model != "" {
		fmt.Fprintf(&b, " in model %q", e.Model)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field %q", e.Field)
	}
	fmt.Fprintf(&b, ": %q", e.Raw)
	if e.Pos >= 0 {
		fmt.Fprintf(&b, " at %d", e.Pos)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	return b.String()
}
