// Package fault classifies the fatal conditions a generator run can end in.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	ParameterRange Kind = iota + 1
	SearchExhausted
	StructuralMismatch
	ValidationFailure
	IO
)

func (k Kind) String() string {
	switch k {
	case ParameterRange:
		return "parameter range"
	case SearchExhausted:
		return "search exhausted"
	case StructuralMismatch:
		return "structural mismatch"
	case ValidationFailure:
		return "validation failure"
	case IO:
		return "i/o"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error carries a Kind plus optional diagnostic lines (dumps of fixups,
// mismatching byte streams, search counters) for the operator.
type Error struct {
	Kind   Kind
	Op     string
	Msg    string
	Detail []string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	if e.Err != nil {
		if e.Msg != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind so callers can test with
// errors.Is(err, &fault.Error{Kind: fault.SearchExhausted}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Op == "" && t.Msg == ""
}

func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithDetail appends diagnostic lines and returns e for chaining.
func (e *Error) WithDetail(lines ...string) *Error {
	e.Detail = append(e.Detail, lines...)
	return e
}

func Range(op, format string, args ...any) *Error {
	return New(ParameterRange, op, format, args...)
}

func Exhausted(op, format string, args ...any) *Error {
	return New(SearchExhausted, op, format, args...)
}

func Mismatch(op, format string, args ...any) *Error {
	return New(StructuralMismatch, op, format, args...)
}

func Invalid(op, format string, args ...any) *Error {
	return New(ValidationFailure, op, format, args...)
}

// Is reports whether err (or anything it wraps) is a fault of the given kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	for err != nil {
		if !errors.As(err, &fe) {
			return false
		}
		if fe.Kind == kind {
			return true
		}
		err = fe.Err
	}
	return false
}

// KindOf returns the kind of the outermost fault in err, or 0.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// Details collects diagnostic lines from every fault in the chain.
func Details(err error) []string {
	var out []string
	var fe *Error
	for err != nil && errors.As(err, &fe) {
		out = append(out, fe.Detail...)
		err = fe.Err
	}
	return out
}
