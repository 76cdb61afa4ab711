package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/signadot/pathmodel/descriptor"
	"github.com/signadot/pathmodel/eval"
	"github.com/signadot/pathmodel/ptree"
)

var (
	ErrModelNotFound        = errors.New("model not found")
	ErrInvalidModelKind     = errors.New("invalid model kind")
	ErrInvalidDefinition    = errors.New("invalid model definition")
	ErrAlreadyExists        = errors.New("already exists")
	ErrRequiredFieldMissing = errors.New("required field missing")
	ErrTypeMismatch         = errors.New("type mismatch")
	ErrInvalidExchangeField = errors.New("invalid exchange field")
	ErrLoadFailure          = errors.New("load failure")
	ErrValidationFailed     = errors.New("validation failed")
	ErrQueryFailure         = errors.New("query failure")
	ErrDataNotFound         = errors.New("data not found")

	ErrParse           = descriptor.ErrParse
	ErrConsistency     = ptree.ErrConsistency
	ErrInvalidPath     = ptree.ErrInvalidPath
	ErrUnknownFunction = eval.ErrUnknownFunction
	ErrUnknownFilter   = eval.ErrUnknownFilter
)

// Error locates a failure: the model, the operation (a pipeline phase
// or a builder function), the field path and, for validation failures,
// the validator code. It unwraps to its cause.
type Error struct {
	Model string
	Op    string
	Field string
	Code  string
	Err   error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Model, e.Op)
	if e.Field != "" {
		b.WriteString(" ")
		b.WriteString(e.Field)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns err located at model, op and field. A nil err gives nil.
func Wrap(model, op, field string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Model: model, Op: op, Field: field, Err: err}
}

// Stack lists the chain of err from the outermost frame to the root
// cause: one line per located frame, one per message a plain wrapper
// adds, and the cause last.
func Stack(err error) []string {
	var res []string
	for err != nil {
		if me, ok := err.(*Error); ok {
			frame := fmt.Sprintf("[%s] %s", me.Model, me.Op)
			if me.Field != "" {
				frame += " " + me.Field
			}
			if me.Code != "" {
				frame += " (" + me.Code + ")"
			}
			res = append(res, frame)
			err = me.Err
			continue
		}
		msg := err.Error()
		next := errors.Unwrap(err)
		if next == nil {
			res = append(res, msg)
			break
		}
		prefix, ok := strings.CutSuffix(msg, ": "+next.Error())
		if !ok {
			// the wrapped error is not a suffix, so msg is the cause
			res = append(res, msg)
			break
		}
		res = append(res, prefix)
		err = next
	}
	return res
}

// Code returns the code of the first located frame of err which has one.
func Code(err error) string {
	for err != nil {
		var me *Error
		if !errors.As(err, &me) {
			return ""
		}
		if me.Code != "" {
			return me.Code
		}
		err = me.Err
	}
	return ""
}
