// Package errors implements the typed error model of spec §4.9: a closed
// set of ErrorKinds, each carrying an optional captured stack trace and
// source location. Rendering follows kristofer-smog's pkg/vm/errors.go
// RuntimeError (message, then a "Stack trace:" block, innermost frame
// first); the per-kind payload shapes follow the original Rust VMError
// enum in original_source/rust/fluentai-vm/src/vm.rs.
package errors

import (
	"fmt"
	"strings"
)

type Kind string

const (
	StackOverflow        Kind = "StackOverflow"
	StackUnderflow        Kind = "StackUnderflow"
	CallStackOverflow     Kind = "CallStackOverflow"
	TypeError             Kind = "TypeError"
	DivisionByZero        Kind = "DivisionByZero"
	IntegerOverflow       Kind = "IntegerOverflow"
	InvalidConstantIndex  Kind = "InvalidConstantIndex"
	InvalidLocalIndex     Kind = "InvalidLocalIndex"
	InvalidJumpTarget     Kind = "InvalidJumpTarget"
	InvalidOpcode         Kind = "InvalidOpcode"
	ResourceLimitExceeded Kind = "ResourceLimitExceeded"
	ModuleError           Kind = "ModuleError"
	AsyncError            Kind = "AsyncError"
	CellError             Kind = "CellError"
	UnknownIdentifier     Kind = "UnknownIdentifier"
	RuntimeErrorKind      Kind = "RuntimeError"
)

// StackFrame is a single frame captured at throw/error time.
type StackFrame struct {
	ChunkName string
	IP        int
	Line      int
	File      string
}

// Location is the optional source location attached to an error.
type Location struct {
	File string
	Line int
}

// VMError is the only failure currency in the engine (spec §7).
type VMError struct {
	Kind     Kind
	Message  string
	Stack    []StackFrame
	Location *Location

	// TypeError payload
	Operation string
	Expected  string
	Got       string

	// ModuleError payload
	ModuleName string

	// Payload carries the original language-level value passed to an
	// explicit Throw, so a catch handler receives it back unchanged
	// instead of a re-stringified error. Left nil for errors the engine
	// itself raises (TypeError, DivisionByZero, ...); the VM synthesizes
	// an Error value for those when a catch handler needs one.
	Payload any
}

func (e *VMError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s: %s", e.Kind, e.Message))
	if e.Location != nil {
		b.WriteString(fmt.Sprintf(" [%s:%d]", e.Location.File, e.Location.Line))
	}
	if len(e.Stack) > 0 {
		b.WriteString("\n\nStack trace:")
		for i := len(e.Stack) - 1; i >= 0; i-- {
			f := e.Stack[i]
			b.WriteString(fmt.Sprintf("\n  at %s [ip=%d]", f.ChunkName, f.IP))
			if f.Line > 0 {
				b.WriteString(fmt.Sprintf(" (%s:%d)", f.File, f.Line))
			}
		}
	}
	return b.String()
}

func New(kind Kind, format string, args ...interface{}) *VMError {
	return &VMError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NewTypeError(operation, expected, got string) *VMError {
	return &VMError{
		Kind:      TypeError,
		Message:   fmt.Sprintf("%s: expected %s, got %s", operation, expected, got),
		Operation: operation,
		Expected:  expected,
		Got:       got,
	}
}

func NewModuleError(moduleName, message string) *VMError {
	return &VMError{
		Kind:       ModuleError,
		Message:    message,
		ModuleName: moduleName,
	}
}

// WithStack attaches a stack trace if one hasn't already been set, per
// spec §4.9 ("the engine attaches a trace at the throw site if none was
// set").
func (e *VMError) WithStack(stack []StackFrame) *VMError {
	if len(e.Stack) == 0 {
		e.Stack = stack
	}
	return e
}

func (e *VMError) WithLocation(file string, line int) *VMError {
	if e.Location == nil && line > 0 {
		e.Location = &Location{File: file, Line: line}
	}
	return e
}
