package aop

import (
	"sync"
)

// LifecycleHook observes invocations around the rest of the chain
type LifecycleHook interface {
	// Before runs before the call; a non-nil error short-circuits it
	Before(inv *Invocation) error
	// After runs when the call produced a result without error
	After(inv *Invocation, result interface{})
	// OnError runs when the call failed
	OnError(inv *Invocation, err error)
}

// LifecycleHookFunc is a helper type to create hooks from functions
type LifecycleHookFunc struct {
	BeforeFunc  func(inv *Invocation) error
	AfterFunc   func(inv *Invocation, result interface{})
	OnErrorFunc func(inv *Invocation, err error)
}

// Before implements LifecycleHook
func (h *LifecycleHookFunc) Before(inv *Invocation) error {
	if h.BeforeFunc != nil {
		return h.BeforeFunc(inv)
	}
	return nil
}

// After implements LifecycleHook
func (h *LifecycleHookFunc) After(inv *Invocation, result interface{}) {
	if h.AfterFunc != nil {
		h.AfterFunc(inv, result)
	}
}

// OnError implements LifecycleHook
func (h *LifecycleHookFunc) OnError(inv *Invocation, err error) {
	if h.OnErrorFunc != nil {
		h.OnErrorFunc(inv, err)
	}
}

// LifecycleManager runs hooks in registration order. It is itself an
// Interceptor so it can sit in a Chain.
type LifecycleManager struct {
	mu    sync.RWMutex
	hooks []LifecycleHook
}

// NewLifecycleManager creates a new lifecycle manager
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{
		hooks: make([]LifecycleHook, 0),
	}
}

// AddHook adds a lifecycle hook
func (lm *LifecycleManager) AddHook(hook LifecycleHook) {
	if hook == nil {
		return
	}
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.hooks = append(lm.hooks, hook)
}

// Len returns the number of hooks
func (lm *LifecycleManager) Len() int {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	return len(lm.hooks)
}

func (lm *LifecycleManager) snapshot() []LifecycleHook {
	lm.mu.RLock()
	defer lm.mu.RUnlock()
	out := make([]LifecycleHook, len(lm.hooks))
	copy(out, lm.hooks)
	return out
}

// ExecuteBefore runs Before hooks until one fails
func (lm *LifecycleManager) ExecuteBefore(inv *Invocation) error {
	for _, hook := range lm.snapshot() {
		if err := hook.Before(inv); err != nil {
			return err
		}
	}
	return nil
}

// ExecuteAfter runs all After hooks
func (lm *LifecycleManager) ExecuteAfter(inv *Invocation, result interface{}) {
	for _, hook := range lm.snapshot() {
		hook.After(inv, result)
	}
}

// ExecuteOnError runs all OnError hooks
func (lm *LifecycleManager) ExecuteOnError(inv *Invocation, err error) {
	for _, hook := range lm.snapshot() {
		hook.OnError(inv, err)
	}
}

// Intercept implements Interceptor
func (lm *LifecycleManager) Intercept(inv *Invocation, next Handler) (interface{}, error) {
	if err := lm.ExecuteBefore(inv); err != nil {
		lm.ExecuteOnError(inv, err)
		return nil, err
	}

	res, err := next(inv)
	if err != nil {
		lm.ExecuteOnError(inv, err)
		return res, err
	}
	lm.ExecuteAfter(inv, res)
	return res, nil
}

// NewBeforeHook creates a hook that only implements Before
func NewBeforeHook(fn func(inv *Invocation) error) LifecycleHook {
	return &LifecycleHookFunc{
		BeforeFunc: fn,
	}
}

// NewAfterHook creates a hook that only implements After
func NewAfterHook(fn func(inv *Invocation, result interface{})) LifecycleHook {
	return &LifecycleHookFunc{
		AfterFunc: fn,
	}
}

// NewOnErrorHook creates a hook that only implements OnError
func NewOnErrorHook(fn func(inv *Invocation, err error)) LifecycleHook {
	return &LifecycleHookFunc{
		OnErrorFunc: fn,
	}
}
