package async

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"
)

// Task is a pending computation that completes exactly once, with an optional
// type-erased result or an error. A zero Task is ready to use.
type Task struct {
	mu     sync.Mutex
	done   chan struct{}
	closed bool
	result interface{}
	err    error
}

var taskPtrType = reflect.TypeOf((*Task)(nil))

// NewTask creates a pending task
func NewTask() *Task {
	return &Task{done: make(chan struct{})}
}

// Completed returns a task that already succeeded
func Completed() *Task {
	t := NewTask()
	t.Complete(nil, nil)
	return t
}

// Failed returns a task that already failed with err
func Failed(err error) *Task {
	t := NewTask()
	t.Complete(nil, err)
	return t
}

// Go runs fn on a new goroutine and returns its task. A panic inside fn
// fails the task with a *PanicError instead of crashing the process.
func Go(fn func() (interface{}, error)) *Task {
	t := NewTask()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				t.Complete(nil, &PanicError{Value: r, Stack: debug.Stack()})
			}
		}()
		t.Complete(fn())
	}()
	return t
}

func (t *Task) channel() chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done == nil {
		t.done = make(chan struct{})
	}
	return t.done
}

// Complete settles the task. It reports false if the task was already settled.
func (t *Task) Complete(result interface{}, err error) bool {
	done := t.channel()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.result = result
	t.err = err
	t.closed = true
	close(done)
	return true
}

// Done returns a channel closed when the task settles
func (t *Task) Done() <-chan struct{} {
	return t.channel()
}

// IsDone reports whether the task has settled
func (t *Task) IsDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Err returns the failure of a settled task, nil while pending
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Wait blocks until the task settles or ctx is done
func (t *Task) Wait(ctx context.Context) error {
	_, err := t.Result(ctx)
	return err
}

// Result blocks until the task settles or ctx is done
func (t *Task) Result(ctx context.Context) (interface{}, error) {
	select {
	case <-t.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.err
}

// IsTaskType reports whether t is *Task or a pointer to a named type whose
// underlying type is Task's (for example `type Job async.Task`). Structs that
// embed Task or *Task are not task types and classify as plain values.
func IsTaskType(t reflect.Type) bool {
	if t == taskPtrType {
		return true
	}
	return t.Kind() == reflect.Ptr &&
		t.Elem().Kind() == reflect.Struct &&
		taskPtrType.ConvertibleTo(t)
}

// TaskAs converts task to the declared task type t
func TaskAs(t reflect.Type, task *Task) reflect.Value {
	return reflect.ValueOf(task).Convert(t)
}

// TaskFrom extracts the underlying *Task from a value of a task type
func TaskFrom(v reflect.Value) (*Task, error) {
	if !IsTaskType(v.Type()) {
		return nil, fmt.Errorf("%w: %s", ErrNotTask, v.Type())
	}
	if v.IsNil() {
		return nil, ErrNilTask
	}
	return v.Convert(taskPtrType).Interface().(*Task), nil
}
