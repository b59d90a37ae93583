package logger

import (
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/dangvanduc1999/doffy-aop/libs/aop"
	"github.com/dangvanduc1999/doffy-aop/libs/core"
)

const (
	// ServiceName is the container key of the *InvocationLogger
	ServiceName  = "invocationLogger"
	startTimeKey = "logger.start_time"
)

// LoggerPlugin logs every intercepted call
type LoggerPlugin struct {
	aop.BasePlugin
	logger       core.Logger
	logArguments bool
	hook         *LoggerHook
}

// NewLoggerPlugin creates a new logger plugin. opts may be nil.
func NewLoggerPlugin(opts *aop.Options) *LoggerPlugin {
	if opts == nil {
		opts = aop.DefaultOptions()
	}
	p := &LoggerPlugin{
		logger:       opts.Logger,
		logArguments: opts.LogArguments,
	}
	p.hook = &LoggerHook{fallback: NewInvocationLogger(p.logger, p.logArguments)}
	return p
}

// Name returns the plugin name
func (p *LoggerPlugin) Name() string {
	return "logger"
}

// Version returns the plugin version
func (p *LoggerPlugin) Version() string {
	return "1.0.0"
}

// Register registers the invocation logger with the DI container. A
// "logger" service, when present, takes precedence over the plugin's own.
func (p *LoggerPlugin) Register(container core.DIContainer) error {
	return container.RegisterSingleton(ServiceName, func(c core.DIContainer) (interface{}, error) {
		l := p.logger
		if c.Has("logger") {
			resolved, err := core.Resolve[core.Logger](c, "logger")
			if err != nil {
				return nil, err
			}
			l = resolved
		}
		return NewInvocationLogger(l, p.logArguments), nil
	})
}

// Hooks returns the lifecycle hooks for logging
func (p *LoggerPlugin) Hooks() []aop.LifecycleHook {
	return []aop.LifecycleHook{p.hook}
}

// InvocationLogger writes one event per finished call
type InvocationLogger struct {
	logger       core.Logger
	logArguments bool
}

// NewInvocationLogger creates a new invocation logger
func NewInvocationLogger(logger core.Logger, logArguments bool) *InvocationLogger {
	if logger == nil {
		logger = core.NopLogger()
	}
	return &InvocationLogger{
		logger:       logger,
		logArguments: logArguments,
	}
}

type invocationData struct {
	ID        string        `json:"id"`
	Method    string        `json:"method"`
	Shape     string        `json:"shape"`
	Duration  time.Duration `json:"duration"`
	Arguments string        `json:"arguments,omitempty"`
}

func (l *InvocationLogger) data(inv *aop.Invocation) invocationData {
	d := invocationData{
		ID:       inv.ID.String(),
		Method:   inv.Method.QualifiedName(),
		Shape:    inv.Method.Shape.String(),
		Duration: inv.Elapsed(),
	}
	if start, ok := inv.Get(startTimeKey); ok {
		d.Duration = time.Since(start.(time.Time))
	}
	if l.logArguments {
		d.Arguments = spew.Sdump(inv.Args()...)
	}
	return d
}

// LogInvocation logs a successful call
func (l *InvocationLogger) LogInvocation(inv *aop.Invocation) {
	l.logger.Infor(&core.LoggerItem{
		Event:    "Invocation",
		Messages: inv.Method.QualifiedName(),
		Data:     l.data(inv),
	})
}

// LogError logs a failed call
func (l *InvocationLogger) LogError(inv *aop.Invocation, err error) {
	l.logger.Infor(&core.LoggerItem{
		Event:    "InvocationError",
		Messages: fmt.Sprintf("%s failed: %v", inv.Method.QualifiedName(), err),
		Error:    err,
		Data:     l.data(inv),
	})
}

// LoggerHook implements aop.LifecycleHook
type LoggerHook struct {
	fallback *InvocationLogger
}

// Before records the start time
func (h *LoggerHook) Before(inv *aop.Invocation) error {
	inv.Set(startTimeKey, time.Now())
	return nil
}

// After logs the call
func (h *LoggerHook) After(inv *aop.Invocation, result interface{}) {
	h.resolve(inv).LogInvocation(inv)
}

// OnError logs the failure
func (h *LoggerHook) OnError(inv *aop.Invocation, err error) {
	h.resolve(inv).LogError(inv, err)
}

// resolve prefers the invocation logger of the call's own container
func (h *LoggerHook) resolve(inv *aop.Invocation) *InvocationLogger {
	if inv.Services != nil && inv.Services.Has(ServiceName) {
		if l, err := core.Resolve[*InvocationLogger](inv.Services, ServiceName); err == nil {
			return l
		}
	}
	return h.fallback
}
