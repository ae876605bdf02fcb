// Package errors implements Blade's compile- and runtime-error
// taxonomy: a BladeError carrying source location and call-stack
// context, wrapped with github.com/pkg/errors so every construction
// site captures a Go-level stack trace alongside the script-level one.
package errors

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

type ErrorType string

const (
	SyntaxError    ErrorType = "SyntaxError"
	RuntimeError   ErrorType = "RuntimeError"
	TypeError      ErrorType = "TypeError"
	ReferenceError ErrorType = "ReferenceError"
	ImportError    ErrorType = "ImportError"
	CompileError   ErrorType = "CompileError"
	AssertionError ErrorType = "AssertionError"
	IndexError     ErrorType = "IndexError"
	KeyError       ErrorType = "KeyError"
	ArgumentError  ErrorType = "ArgumentError"
)

type SourceLocation struct {
	File   string
	Line   int
	Column int
}

// StackFrame is one entry of the script-level call stack attached to
// a BladeError, not to be confused with the Go call stack pkg/errors
// captures underneath it.
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// BladeError is the payload carried by a VM-raised exception once it
// escapes to the Go boundary (CLI, REPL, embedding host). While still
// inside the VM, exceptions are ordinary script Instance values of the
// Exception hierarchy; BladeError is how one gets reported once no
// catch handler claims it.
type BladeError struct {
	Type      ErrorType
	Message   string
	Location  SourceLocation
	CallStack []StackFrame
	Source    string
	cause     error
}

func (e *BladeError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s\n", e.Type, e.Message))
	if e.Location.File != "" {
		sb.WriteString(fmt.Sprintf("  at %s:%d:%d\n", e.Location.File, e.Location.Line, e.Location.Column))
		if e.Source != "" {
			pad := strings.Repeat(" ", len(fmt.Sprintf("%d | ", e.Location.Line)))
			sb.WriteString(fmt.Sprintf("\n  %d | %s\n", e.Location.Line, e.Source))
			sb.WriteString("  " + pad)
			if e.Location.Column > 0 {
				sb.WriteString(strings.Repeat(" ", e.Location.Column-1))
			}
			sb.WriteString("^\n")
		}
	}
	if len(e.CallStack) > 0 {
		sb.WriteString("\nCall Stack:\n")
		for _, frame := range e.CallStack {
			if frame.Function != "" {
				sb.WriteString(fmt.Sprintf("  at %s (%s:%d)\n", frame.Function, frame.File, frame.Line))
			} else {
				sb.WriteString(fmt.Sprintf("  at %s:%d\n", frame.File, frame.Line))
			}
		}
	}
	return sb.String()
}

func (e *BladeError) Cause() error  { return e.cause }
func (e *BladeError) Unwrap() error { return e.cause }

func newError(t ErrorType, message, file string, line, col int) *BladeError {
	return &BladeError{
		Type:     t,
		Message:  message,
		Location: SourceLocation{File: file, Line: line, Column: col},
		cause:    pkgerrors.New(message),
	}
}

func NewSyntaxError(message, file string, line, col int) *BladeError {
	return newError(SyntaxError, message, file, line, col)
}

func NewRuntimeError(message, file string, line, col int) *BladeError {
	return newError(RuntimeError, message, file, line, col)
}

func NewTypeError(message, file string, line, col int) *BladeError {
	return newError(TypeError, message, file, line, col)
}

func NewReferenceError(message, file string, line, col int) *BladeError {
	return newError(ReferenceError, message, file, line, col)
}

func NewImportError(message, file string, line, col int) *BladeError {
	return newError(ImportError, message, file, line, col)
}

// NewCompileErrorList collapses every syntax error the compiler
// collected across one pass into a single reportable BladeError, the
// same shape -d/-j diagnostics and the CLI's exit-code-10 path expect.
func NewCompileErrorList(msgs []string, file string) *BladeError {
	return newError(CompileError, strings.Join(msgs, "\n"), file, 0, 0)
}

func (e *BladeError) WithSource(source string) *BladeError {
	e.Source = source
	return e
}

func (e *BladeError) WithStack(stack []StackFrame) *BladeError {
	e.CallStack = stack
	return e
}

func (e *BladeError) AddStackFrame(function, file string, line int) *BladeError {
	e.CallStack = append(e.CallStack, StackFrame{Function: function, File: file, Line: line})
	return e
}

// StackTrace exposes the pkg/errors-captured Go stack for -d/-j
// diagnostic dumps; it's never shown to script code.
func (e *BladeError) StackTrace() pkgerrors.StackTrace {
	type tracer interface{ StackTrace() pkgerrors.StackTrace }
	if t, ok := e.cause.(tracer); ok {
		return t.StackTrace()
	}
	return nil
}
