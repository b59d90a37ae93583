package aop

import (
	"fmt"
	"reflect"
)

var errorType = reflectTypeOf[error]()

func reflectTypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// MethodDescriptor is the immutable description of one proxied method. It is
// built once, when the method is first woven, and shared by every call.
type MethodDescriptor struct {
	// Name is the method (or function) name
	Name string
	// Receiver is the target's type; nil for free functions
	Receiver reflect.Type
	// Type is the method's func type without the receiver
	Type reflect.Type
	// Params are the declared parameter types in order
	Params []reflect.Type
	// Variadic reports whether the last parameter is variadic
	Variadic bool
	// Result is the declared non-error result, nil when there is none
	Result reflect.Type
	// HasError reports a trailing error result
	HasError bool
	// Shape is the precomputed calling convention
	Shape ReturnShape
}

// Describe builds the descriptor of a func type. Results may be (), (R),
// (error) or (R, error).
func Describe(name string, receiver reflect.Type, fnType reflect.Type, supportsLightweightAsync bool) (*MethodDescriptor, error) {
	if fnType == nil || fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %s is not a func type", ErrUnsupportedSignature, fnType)
	}

	m := &MethodDescriptor{
		Name:     name,
		Receiver: receiver,
		Type:     fnType,
		Params:   make([]reflect.Type, fnType.NumIn()),
		Variadic: fnType.IsVariadic(),
	}
	for i := range m.Params {
		m.Params[i] = fnType.In(i)
	}

	results := make([]reflect.Type, fnType.NumOut())
	for i := range results {
		results[i] = fnType.Out(i)
	}
	if n := len(results); n > 0 && results[n-1] == errorType {
		m.HasError = true
		results = results[:n-1]
	}

	switch len(results) {
	case 0:
	case 1:
		m.Result = results[0]
	default:
		return nil, fmt.Errorf("%w: %s returns %d non-error results", ErrUnsupportedSignature, m.QualifiedName(), len(results))
	}

	shape, err := Classify(m.Result, supportsLightweightAsync)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.QualifiedName(), err)
	}
	m.Shape = shape
	return m, nil
}

// QualifiedName is Receiver.Name, or Name for free functions
func (m *MethodDescriptor) QualifiedName() string {
	if m.Receiver == nil {
		return m.Name
	}
	return m.Receiver.String() + "." + m.Name
}

func (m *MethodDescriptor) String() string {
	return fmt.Sprintf("%s %s [%s]", m.QualifiedName(), m.Type, m.Shape)
}

// descriptorKey identifies a method for the descriptor cache
type descriptorKey struct {
	receiver reflect.Type
	name     string
	fnType   reflect.Type
}
