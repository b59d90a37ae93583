package aop

import (
	"reflect"
)

// adapt turns the pipeline's result back into the method's declared results.
//
// A pipeline error is returned through the error result when the method has
// one and re-panicked unchanged otherwise.
func adapt(m *MethodDescriptor, res interface{}, err error) []reflect.Value {
	var value reflect.Value

	switch m.Shape.Kind {
	case Void:

	case AsyncResult, AsyncVoid:
		value = reflect.ValueOf(res)
		if !value.IsValid() || value.Type() != m.Result {
			panic(violation(m, "dispatcher produced %T for %s", res, m.Result))
		}

	case Value:
		if err != nil {
			value = reflect.Zero(m.Result)
			break
		}
		value = unboxResult(m, res)

	case GenericValue:
		if err != nil {
			value = reflect.Zero(m.Result)
			break
		}
		value = boxedAs(m.Result, res)
		if !value.IsValid() {
			value = reflect.Zero(m.Result)
			err = &TypeMismatchError{Method: m.QualifiedName(), Want: m.Result, Got: reflect.TypeOf(res)}
		}

	default:
		panic(violation(m, "unclassified result shape %s", m.Shape.Kind))
	}

	if err != nil && !m.HasError {
		panic(err)
	}

	out := make([]reflect.Value, 0, 2)
	if m.Result != nil {
		out = append(out, value)
	}
	if m.HasError {
		out = append(out, errorValue(err))
	}
	return out
}

// unboxResult handles the Value shape. Value kinds must come back as exactly
// the declared type; reference kinds may be nil or anything assignable.
func unboxResult(m *MethodDescriptor, res interface{}) reflect.Value {
	if isValueKind(m.Result.Kind()) {
		if res == nil || reflect.TypeOf(res) != m.Result {
			panic(violation(m, "pipeline returned %T, want %s", res, m.Result))
		}
		return reflect.ValueOf(res)
	}

	v := boxedAs(m.Result, res)
	if !v.IsValid() {
		panic(violation(m, "pipeline returned %T, want %s", res, m.Result))
	}
	return v
}

func errorValue(err error) reflect.Value {
	if err == nil {
		return reflect.Zero(errorType)
	}
	return reflect.ValueOf(&err).Elem()
}
