package aop

import (
	"context"
	"errors"
	"fmt"

	"github.com/dangvanduc1999/doffy-aop/libs/core"
)

// ProxyProvider registers a woven service in a DI container. Resolving it
// resolves Target, allocates a fresh stub and weaves it so that every call
// carries the resolving container.
type ProxyProvider struct {
	Name     string
	Lifetime core.Lifetime
	// Target produces the real implementation
	Target core.Provider
	// Stub allocates the stub struct to fill, e.g. func() interface{} { return &UserServiceProxy{} }
	Stub   func() interface{}
	Weaver *Weaver
}

func (p *ProxyProvider) GetName() string            { return p.Name }
func (p *ProxyProvider) GetLifetime() core.Lifetime { return p.Lifetime }
func (p *ProxyProvider) IsAsync() bool              { return p.Target.IsAsync() }

// Resolve implements core.Provider
func (p *ProxyProvider) Resolve(container core.DIContainer, ctx context.Context) (interface{}, error) {
	target, err := p.Target.Resolve(container, ctx)
	if err != nil {
		return nil, fmt.Errorf("proxy '%s': target: %w", p.Name, err)
	}

	stub := p.Stub()
	if err := p.Weaver.WithServices(container).Struct(stub, target); err != nil {
		return nil, fmt.Errorf("proxy '%s': %w", p.Name, err)
	}
	return stub, nil
}

// NewProxyProvider wraps target in a proxy registered under target's name
// and lifetime
func NewProxyProvider(w *Weaver, target core.Provider, stub func() interface{}) (*ProxyProvider, error) {
	if w == nil || target == nil || stub == nil {
		return nil, errors.New("weaver, target and stub are required")
	}
	return &ProxyProvider{
		Name:     target.GetName(),
		Lifetime: target.GetLifetime(),
		Target:   target,
		Stub:     stub,
		Weaver:   w,
	}, nil
}
