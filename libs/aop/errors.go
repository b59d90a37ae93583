package aop

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrUnsupportedSignature rejects result lists the classifier has no shape for
	ErrUnsupportedSignature = errors.New("unsupported method signature")
	// ErrMultipleTypeArguments rejects generic results with more than one type argument
	ErrMultipleTypeArguments = errors.New("generic result must have exactly one type argument")
	// ErrSignatureMismatch means a proxy and its implementation disagree on type
	ErrSignatureMismatch = errors.New("proxy and implementation signatures differ")
	// ErrMethodNotFound means the target has no method for a stub field
	ErrMethodNotFound = errors.New("target has no such method")
	// ErrNoTarget means an invocation reached the end of the chain with nothing to call
	ErrNoTarget = errors.New("invocation has no target implementation")
	// ErrArgumentType rejects replacement arguments of the wrong type
	ErrArgumentType = errors.New("argument has wrong type")
)

// ContractViolation signals a synthesis bug or a pipeline that broke the
// calling convention. It is always raised with panic.
type ContractViolation struct {
	Method string
	Reason string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("aop: contract violation in %s: %s", e.Method, e.Reason)
}

func violation(method *MethodDescriptor, format string, args ...interface{}) *ContractViolation {
	name := "<unknown>"
	if method != nil {
		name = method.QualifiedName()
	}
	return &ContractViolation{Method: name, Reason: fmt.Sprintf(format, args...)}
}

// TypeMismatchError is returned (or panicked, when the method declares no
// error result) when the pipeline produced a value that is not an instance
// of the declared generic result type, or nil where a future promises a
// value kind.
type TypeMismatchError struct {
	Method string
	Want   reflect.Type
	Got    reflect.Type
}

func (e *TypeMismatchError) Error() string {
	if e.Got == nil {
		return fmt.Sprintf("aop: %s: cannot use nil as %s", e.Method, e.Want)
	}
	return fmt.Sprintf("aop: %s: cannot use %s as %s", e.Method, e.Got, e.Want)
}
