package aop

import (
	"context"
	"fmt"
	"reflect"

	"github.com/dangvanduc1999/doffy-aop/libs/async"
)

// newTerminal builds the last link of the chain: it calls impl with the
// invocation's current arguments. For asynchronous shapes it runs inside the
// pipeline's goroutine and waits for impl's own future, so interceptors see
// the resolved value.
func newTerminal(m *MethodDescriptor, impl reflect.Value) Handler {
	return func(inv *Invocation) (interface{}, error) {
		in := unbox(m, inv.Args())

		var out []reflect.Value
		if m.Variadic {
			out = impl.CallSlice(in)
		} else {
			out = impl.Call(in)
		}

		var err error
		if m.HasError {
			if e := out[len(out)-1]; !e.IsNil() {
				err = e.Interface().(error)
			}
		}
		if m.Shape.Kind == Void {
			return nil, err
		}
		if err != nil {
			return nil, err
		}

		result := out[0]
		switch m.Shape.Kind {
		case AsyncResult:
			task, terr := async.TaskOfFuture(result)
			if terr != nil {
				return nil, fmt.Errorf("%s: %w", m.QualifiedName(), terr)
			}
			return task.Result(context.Background())

		case AsyncVoid:
			if m.Shape.Lightweight {
				if result.IsNil() {
					return nil, fmt.Errorf("%s: %w", m.QualifiedName(), async.ErrNilTask)
				}
				return nil, <-result.Interface().(<-chan error)
			}
			task, terr := async.TaskFrom(result)
			if terr != nil {
				return nil, fmt.Errorf("%s: %w", m.QualifiedName(), terr)
			}
			return nil, task.Wait(context.Background())

		default:
			return result.Interface(), nil
		}
	}
}
