package recovery

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/dangvanduc1999/doffy-aop/libs/aop"
	"github.com/dangvanduc1999/doffy-aop/libs/async"
	"github.com/dangvanduc1999/doffy-aop/libs/core"
)

// RecoveryPlugin turns panics below it in the chain into errors for methods
// that can return one. Methods without an error result still panic.
type RecoveryPlugin struct {
	aop.BasePlugin
	logger core.Logger
}

// NewRecoveryPlugin creates a new recovery plugin; logger may be nil
func NewRecoveryPlugin(logger core.Logger) *RecoveryPlugin {
	if logger == nil {
		logger = core.NopLogger()
	}
	return &RecoveryPlugin{logger: logger}
}

func (p *RecoveryPlugin) Name() string {
	return "recovery"
}

func (p *RecoveryPlugin) Version() string {
	return "1.0.0"
}

func (p *RecoveryPlugin) Interceptors() []aop.Interceptor {
	return []aop.Interceptor{NewInterceptor(p.logger)}
}

// Interceptor recovers panics raised further down the chain
type Interceptor struct {
	logger core.Logger
}

func NewInterceptor(logger core.Logger) *Interceptor {
	if logger == nil {
		logger = core.NopLogger()
	}
	return &Interceptor{logger: logger}
}

// Intercept implements aop.Interceptor
func (i *Interceptor) Intercept(inv *aop.Invocation, next aop.Handler) (res interface{}, err error) {
	if !inv.Method.HasError {
		return next(inv)
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		var cv *aop.ContractViolation
		if e, ok := r.(error); ok && errors.As(e, &cv) {
			panic(r)
		}

		err = &async.PanicError{Value: r, Stack: debug.Stack()}
		res = nil
		i.logger.Infor(&core.LoggerItem{
			Event:    "PanicRecovered",
			Messages: fmt.Sprintf("recovered panic in %s: %v", inv.Method.QualifiedName(), r),
			Error:    err,
			Data: struct {
				ID     string `json:"id"`
				Method string `json:"method"`
			}{
				ID:     inv.ID.String(),
				Method: inv.Method.QualifiedName(),
			},
		})
	}()
	return next(inv)
}
