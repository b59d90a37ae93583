package aop

import (
	"reflect"
	"sync"

	"github.com/dangvanduc1999/doffy-aop/libs/async"
)

// Handler continues an invocation down the chain
type Handler func(inv *Invocation) (interface{}, error)

// Interceptor wraps a call. It may inspect or replace arguments, call next
// any number of times (including zero, to short-circuit) and rewrite the
// result.
type Interceptor interface {
	Intercept(inv *Invocation, next Handler) (interface{}, error)
}

// InterceptorFunc adapts a function to Interceptor
type InterceptorFunc func(inv *Invocation, next Handler) (interface{}, error)

func (f InterceptorFunc) Intercept(inv *Invocation, next Handler) (interface{}, error) {
	return f(inv, next)
}

// Pipeline is the interception entry surface a proxy dispatches into. Each
// calling convention has its own entry point.
type Pipeline interface {
	// Execute runs the chain synchronously with a type-erased result
	Execute(inv *Invocation) (interface{}, error)
	// ExecuteAsync returns at once; the task resolves to a resultType value
	ExecuteAsync(inv *Invocation, resultType reflect.Type) *async.Task
	// ExecuteTask returns at once; the task carries no result
	ExecuteTask(inv *Invocation) *async.Task
	// ExecuteSignal is ExecuteTask in the lightweight <-chan error form
	ExecuteSignal(inv *Invocation) <-chan error
}

// Chain is an ordered interceptor list; the first interceptor added is the
// outermost
type Chain struct {
	mu           sync.RWMutex
	interceptors []Interceptor
}

// NewChain creates a chain from interceptors in order
func NewChain(interceptors ...Interceptor) *Chain {
	c := &Chain{interceptors: make([]Interceptor, 0, len(interceptors))}
	c.Use(interceptors...)
	return c
}

// Use appends interceptors; nil entries are ignored
func (c *Chain) Use(interceptors ...Interceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, i := range interceptors {
		if i != nil {
			c.interceptors = append(c.interceptors, i)
		}
	}
}

// Len returns the number of interceptors
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.interceptors)
}

// handler builds the chain back to front over a snapshot of interceptors
func (c *Chain) handler() Handler {
	c.mu.RLock()
	interceptors := make([]Interceptor, len(c.interceptors))
	copy(interceptors, c.interceptors)
	c.mu.RUnlock()

	next := Handler(func(inv *Invocation) (interface{}, error) {
		return inv.Proceed()
	})
	for i := len(interceptors) - 1; i >= 0; i-- {
		interceptor, inner := interceptors[i], next
		next = func(inv *Invocation) (interface{}, error) {
			return interceptor.Intercept(inv, inner)
		}
	}
	return next
}

// Execute implements Pipeline
func (c *Chain) Execute(inv *Invocation) (interface{}, error) {
	return c.handler()(inv)
}

// ExecuteAsync implements Pipeline. A result that is not a resultType,
// including nil for a value kind, fails the task with *TypeMismatchError.
func (c *Chain) ExecuteAsync(inv *Invocation, resultType reflect.Type) *async.Task {
	h := c.handler()
	return async.Go(func() (interface{}, error) {
		res, err := h(inv)
		if err != nil {
			return nil, err
		}
		if res == nil {
			if isNilable(resultType.Kind()) {
				return nil, nil
			}
			return nil, &TypeMismatchError{
				Method: inv.Method.QualifiedName(),
				Want:   resultType,
			}
		}
		if !reflect.TypeOf(res).AssignableTo(resultType) {
			return nil, &TypeMismatchError{
				Method: inv.Method.QualifiedName(),
				Want:   resultType,
				Got:    reflect.TypeOf(res),
			}
		}
		return res, nil
	})
}

// ExecuteTask implements Pipeline
func (c *Chain) ExecuteTask(inv *Invocation) *async.Task {
	h := c.handler()
	return async.Go(func() (interface{}, error) {
		_, err := h(inv)
		return nil, err
	})
}

// ExecuteSignal implements Pipeline
func (c *Chain) ExecuteSignal(inv *Invocation) <-chan error {
	return async.Signal(c.ExecuteTask(inv))
}
