package aop

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/dangvanduc1999/doffy-aop/libs/async"
)

// ShapeKind is the calling convention a proxied method's result follows
type ShapeKind int

const (
	// Void methods return nothing besides an optional error
	Void ShapeKind = iota
	// Value methods return a plain value or reference type
	Value
	// GenericValue methods return an instantiated generic reference type
	GenericValue
	// AsyncResult methods return *async.Future[T]
	AsyncResult
	// AsyncVoid methods return *async.Task (or a type derived from it) or <-chan error
	AsyncVoid
)

func (k ShapeKind) String() string {
	switch k {
	case Void:
		return "Void"
	case Value:
		return "Value"
	case GenericValue:
		return "GenericValue"
	case AsyncResult:
		return "AsyncResult"
	case AsyncVoid:
		return "AsyncVoid"
	default:
		return fmt.Sprintf("ShapeKind(%d)", int(k))
	}
}

// ReturnShape is the classification of one method's result
type ReturnShape struct {
	Kind ShapeKind
	// Type is the declared result type, nil for Void
	Type reflect.Type
	// Elem is T for AsyncResult(T) and GenericValue(T)
	Elem reflect.Type
	// TypeArgs holds the textual type arguments of a GenericValue result
	TypeArgs []string
	// Lightweight marks AsyncVoid bound to <-chan error
	Lightweight bool
}

func (s ReturnShape) String() string {
	switch s.Kind {
	case AsyncResult, GenericValue:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Elem)
	case AsyncVoid:
		if s.Lightweight {
			return "AsyncVoid(lightweight)"
		}
		return "AsyncVoid(standard)"
	default:
		return s.Kind.String()
	}
}

// IsAsync reports whether the caller receives a pending computation
func (s ReturnShape) IsAsync() bool {
	return s.Kind == AsyncResult || s.Kind == AsyncVoid
}

var signalType = reflect.TypeOf((<-chan error)(nil))

// Classify maps a declared result type to its ReturnShape. t is nil for
// methods without a result. The only failure is a generic result with more
// than one type argument; it is reported here, before any proxy exists.
func Classify(t reflect.Type, supportsLightweightAsync bool) (ReturnShape, error) {
	switch {
	case t != nil && async.IsTaskType(t):
		return ReturnShape{Kind: AsyncVoid, Type: t}, nil

	case t != nil && supportsLightweightAsync && t == signalType:
		return ReturnShape{Kind: AsyncVoid, Type: t, Lightweight: true}, nil
	}

	if t != nil {
		if elem, ok := async.ResultType(t); ok {
			return ReturnShape{Kind: AsyncResult, Type: t, Elem: elem}, nil
		}
	}

	if t == nil {
		return ReturnShape{Kind: Void}, nil
	}

	if isValueKind(t.Kind()) {
		return ReturnShape{Kind: Value, Type: t}, nil
	}

	if args := genericArgs(t); args != nil {
		if len(args) != 1 {
			return ReturnShape{}, fmt.Errorf("%w: %s has %d", ErrMultipleTypeArguments, t, len(args))
		}
		return ReturnShape{Kind: GenericValue, Type: t, Elem: t, TypeArgs: args}, nil
	}

	return ReturnShape{Kind: Value, Type: t}, nil
}

func isValueKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String, reflect.Array, reflect.Struct:
		return true
	}
	return false
}

// genericArgs returns the type arguments of an instantiated generic type, or
// of the type a pointer points to. Reflection only exposes them through the
// type name, e.g. "Page[*main.User]".
func genericArgs(t reflect.Type) []string {
	name := t.Name()
	if name == "" && t.Kind() == reflect.Ptr {
		name = t.Elem().Name()
	}
	return splitTypeArgs(name)
}

func splitTypeArgs(name string) []string {
	open := strings.IndexByte(name, '[')
	if open < 0 || !strings.HasSuffix(name, "]") {
		return nil
	}
	inner := name[open+1 : len(name)-1]

	var (
		args  []string
		depth int
		start int
	)
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	return append(args, strings.TrimSpace(inner[start:]))
}
