// Package neserr defines the outcome and error-kind vocabulary shared by
// every core subsystem: Success, Quit (clean shutdown), and Failure
// (a formatted diagnostic carrying file:function:line of origin).
package neserr

import (
	"fmt"
	"runtime"
)

// Outcome is the three-way result a host-facing operation can produce.
type Outcome int

const (
	Success Outcome = iota
	Quit
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Quit:
		return "quit"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Kind classifies the error so callers can distinguish, e.g., a malformed
// cartridge from a host-service failure without string matching.
type Kind int

const (
	KindCartridge Kind = iota
	KindAllocation
	KindUnsupportedMapper
	KindHostService
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindCartridge:
		return "cartridge"
	case KindAllocation:
		return "allocation"
	case KindUnsupportedMapper:
		return "unsupported-mapper"
	case KindHostService:
		return "host-service"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the diagnostic carried by a Failure outcome. It records the
// kind, a message, and the file:function:line of the call that raised it.
type Error struct {
	Kind    Kind
	Message string
	File    string
	Func    string
	Line    int
	Wrapped error
}

// New builds an Error, capturing the caller's site (wrap uses
// runtime.Caller(2): skipping wrap itself and New, it lands on New's
// caller).
func New(kind Kind, format string, args ...any) *Error {
	return wrap(kind, nil, format, args...)
}

// Wrap builds an Error around an existing error, preserving it for
// errors.Unwrap while still attaching the kind and call site.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return wrap(kind, err, format, args...)
}

func wrap(kind Kind, err error, format string, args ...any) *Error {
	pc, file, line, ok := runtime.Caller(2)
	funcName := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			funcName = fn.Name()
		}
	} else {
		file = "unknown"
	}
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		File:    file,
		Func:    funcName,
		Line:    line,
		Wrapped: err,
	}
}

// Error implements the error interface, formatting a single diagnostic
// string: kind, message, and origin, matching spec's "formatted
// diagnostic including file:function:line of origin".
func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s (%s:%s:%d): %v", e.Kind, e.Message, e.File, e.Func, e.Line, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s (%s:%s:%d)", e.Kind, e.Message, e.File, e.Func, e.Line)
}

// Unwrap exposes the wrapped error to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Wrapped
}
