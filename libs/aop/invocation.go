package aop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/dangvanduc1999/doffy-aop/libs/core"
)

var contextType = reflectTypeOf[context.Context]()

// Invocation is the per-call context handed through the interceptor chain.
// Its argument vector keeps its length; interceptors may replace entries.
type Invocation struct {
	ID        uuid.UUID
	Services  core.DIContainer
	Target    interface{}
	Method    *MethodDescriptor
	StartedAt time.Time

	args     []interface{}
	terminal Handler

	mu    sync.RWMutex
	items map[string]interface{}
}

// NewInvocation bundles the service container, the target instance, the
// method and its argument vector
func NewInvocation(services core.DIContainer, target interface{}, method *MethodDescriptor, args []interface{}) *Invocation {
	if len(args) != len(method.Params) {
		panic(violation(method, "argument vector has %d entries for %d parameters", len(args), len(method.Params)))
	}

	return &Invocation{
		ID:        uuid.Must(uuid.NewV4()),
		Services:  services,
		Target:    target,
		Method:    method,
		StartedAt: time.Now(),
		args:      args,
	}
}

// Args returns a copy of the argument vector
func (inv *Invocation) Args() []interface{} {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	out := make([]interface{}, len(inv.args))
	copy(out, inv.args)
	return out
}

// Arg returns argument i
func (inv *Invocation) Arg(i int) interface{} {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.args[i]
}

// SetArg replaces argument i; v must be assignable to the parameter type
func (inv *Invocation) SetArg(i int, v interface{}) error {
	if i < 0 || i >= len(inv.Method.Params) {
		return fmt.Errorf("%w: index %d out of range for %s", ErrArgumentType, i, inv.Method.QualifiedName())
	}
	if !boxedAs(inv.Method.Params[i], v).IsValid() {
		return fmt.Errorf("%w: cannot use %T as %s", ErrArgumentType, v, inv.Method.Params[i])
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.args[i] = v
	return nil
}

// Context returns the first context.Context argument, or context.Background
func (inv *Invocation) Context() context.Context {
	for i, p := range inv.Method.Params {
		if p == contextType {
			if ctx, ok := inv.Arg(i).(context.Context); ok && ctx != nil {
				return ctx
			}
		}
	}
	return context.Background()
}

// Set stores an item for later interceptors in the same call
func (inv *Invocation) Set(key string, value interface{}) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.items == nil {
		inv.items = make(map[string]interface{})
	}
	inv.items[key] = value
}

// Get retrieves an item stored with Set
func (inv *Invocation) Get(key string) (interface{}, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	v, ok := inv.items[key]
	return v, ok
}

// Proceed calls the real implementation, bypassing any remaining interceptors
func (inv *Invocation) Proceed() (interface{}, error) {
	if inv.terminal == nil {
		return nil, fmt.Errorf("%s: %w", inv.Method.QualifiedName(), ErrNoTarget)
	}
	return inv.terminal(inv)
}

// Elapsed is the time since the call entered the proxy
func (inv *Invocation) Elapsed() time.Duration {
	return time.Since(inv.StartedAt)
}
