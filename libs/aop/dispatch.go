package aop

import (
	"github.com/dangvanduc1999/doffy-aop/libs/async"
)

// dispatch invokes the pipeline entry point that matches the method's shape.
// Asynchronous shapes come back already typed as the declared result.
func dispatch(p Pipeline, inv *Invocation) (interface{}, error) {
	m := inv.Method
	switch m.Shape.Kind {
	case AsyncResult:
		task := p.ExecuteAsync(inv, m.Shape.Elem)
		if task == nil {
			panic(violation(m, "ExecuteAsync returned a nil task"))
		}
		fut, err := async.FutureOf(m.Shape.Type, task)
		if err != nil {
			panic(violation(m, "%v", err))
		}
		return fut.Interface(), nil

	case AsyncVoid:
		if m.Shape.Lightweight {
			signal := p.ExecuteSignal(inv)
			if signal == nil {
				panic(violation(m, "ExecuteSignal returned a nil channel"))
			}
			return signal, nil
		}
		task := p.ExecuteTask(inv)
		if task == nil {
			panic(violation(m, "ExecuteTask returned a nil task"))
		}
		return async.TaskAs(m.Shape.Type, task).Interface(), nil

	case Value, GenericValue, Void:
		return p.Execute(inv)

	default:
		panic(violation(m, "unclassified result shape %s", m.Shape.Kind))
	}
}
