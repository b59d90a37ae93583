package aop

import "reflect"

// Materialize boxes the actual call arguments into a type-erased vector,
// index-aligned with m.Params. A variadic tail is stored as its slice.
func Materialize(m *MethodDescriptor, in []reflect.Value) []interface{} {
	if len(in) != len(m.Params) {
		panic(violation(m, "got %d arguments for %d parameters", len(in), len(m.Params)))
	}

	args := make([]interface{}, len(in))
	for i, v := range in {
		if !v.IsValid() {
			v = reflect.Zero(m.Params[i])
		}
		args[i] = v.Interface()
	}
	return args
}

// unbox rebuilds call values from a type-erased vector
func unbox(m *MethodDescriptor, args []interface{}) []reflect.Value {
	if len(args) != len(m.Params) {
		panic(violation(m, "argument vector has %d entries for %d parameters", len(args), len(m.Params)))
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = boxedAs(m.Params[i], a)
		if !in[i].IsValid() {
			panic(violation(m, "argument %d: cannot use %T as %s", i, a, m.Params[i]))
		}
	}
	return in
}

// boxedAs returns v as a reflect.Value of exactly type t, or the zero
// reflect.Value when v is not assignable to t.
func boxedAs(t reflect.Type, v interface{}) reflect.Value {
	if v == nil {
		if isNilable(t.Kind()) {
			return reflect.Zero(t)
		}
		return reflect.Value{}
	}

	rv := reflect.ValueOf(v)
	if rv.Type() == t {
		return rv
	}
	if !rv.Type().AssignableTo(t) {
		return reflect.Value{}
	}
	out := reflect.New(t).Elem()
	out.Set(rv)
	return out
}

func isNilable(k reflect.Kind) bool {
	switch k {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return true
	}
	return false
}
