package async

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// Future is a pending computation that resolves to a T
type Future[T any] struct {
	t *Task
}

// future lets this package build and unwrap any Future[T] through reflection,
// since generic types cannot be instantiated at run time.
type future interface {
	bind(t *Task)
	unwrap() *Task
	resultType() reflect.Type
}

var (
	futureIface   = reflect.TypeOf((*future)(nil)).Elem()
	futurePkgPath = reflect.TypeOf(Future[int]{}).PkgPath()
)

func (f *Future[T]) bind(t *Task)             { f.t = t }
func (f *Future[T]) unwrap() *Task            { return f.t }
func (f *Future[T]) resultType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

// Wrap types an existing task. The task's result must be a T or nil.
func Wrap[T any](t *Task) *Future[T] {
	return &Future[T]{t: t}
}

// Run executes fn on a new goroutine
func Run[T any](fn func() (T, error)) *Future[T] {
	return Wrap[T](Go(func() (interface{}, error) {
		return fn()
	}))
}

// Resolved returns a future already resolved to v
func Resolved[T any](v T) *Future[T] {
	t := NewTask()
	t.Complete(v, nil)
	return Wrap[T](t)
}

// Rejected returns a future already failed with err
func Rejected[T any](err error) *Future[T] {
	return Wrap[T](Failed(err))
}

// Task returns the untyped task behind the future
func (f *Future[T]) Task() *Task {
	return f.t
}

// Done returns a channel closed when the future settles
func (f *Future[T]) Done() <-chan struct{} {
	return f.t.Done()
}

// Await blocks until the future settles or ctx is done
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	var zero T

	res, err := f.t.Result(ctx)
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}

	v, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("%w: got %T, want %s", ErrResultType, res, f.resultType())
	}
	return v, nil
}

// ResultType reports T when t is *Future[T]
func ResultType(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Ptr || !t.Implements(futureIface) {
		return nil, false
	}
	elem := t.Elem()
	if elem.PkgPath() != futurePkgPath || !strings.HasPrefix(elem.Name(), "Future[") {
		return nil, false
	}
	return reflect.Zero(t).Interface().(future).resultType(), true
}

// FutureOf builds a value of the future type t backed by task
func FutureOf(t reflect.Type, task *Task) (reflect.Value, error) {
	if _, ok := ResultType(t); !ok {
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrNotFuture, t)
	}
	v := reflect.New(t.Elem())
	v.Interface().(future).bind(task)
	return v, nil
}

// TaskOfFuture extracts the task behind a value of a future type
func TaskOfFuture(v reflect.Value) (*Task, error) {
	if _, ok := ResultType(v.Type()); !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFuture, v.Type())
	}
	if v.IsNil() {
		return nil, ErrNilTask
	}
	t := v.Interface().(future).unwrap()
	if t == nil {
		return nil, ErrNilTask
	}
	return t, nil
}
