package core

import (
	"context"
	"fmt"
	"time"

	"github.com/dangvanduc1999/doffy-aop/libs/async"
)

// Provider defines the interface for all provider types
type Provider interface {
	// GetName returns the service name for DI resolution
	GetName() string

	// GetLifetime returns the service lifetime (Singleton/Transient/Scoped)
	GetLifetime() Lifetime

	// Resolve creates the service instance
	Resolve(container DIContainer, ctx context.Context) (interface{}, error)

	// IsAsync indicates if this provider requires async initialization
	IsAsync() bool
}

// FactoryProvider wraps a plain Factory
type FactoryProvider struct {
	Name     string
	Factory  Factory
	Lifetime Lifetime
}

func (p *FactoryProvider) GetName() string       { return p.Name }
func (p *FactoryProvider) GetLifetime() Lifetime { return p.Lifetime }
func (p *FactoryProvider) IsAsync() bool         { return false }
func (p *FactoryProvider) Resolve(container DIContainer, ctx context.Context) (interface{}, error) {
	return p.Factory(container)
}

// NewFactoryProvider creates a new FactoryProvider
func NewFactoryProvider(name string, factory Factory, lifetime Lifetime) *FactoryProvider {
	return &FactoryProvider{
		Name:     name,
		Factory:  factory,
		Lifetime: lifetime,
	}
}

// ValueProvider registers a pre-built value
type ValueProvider struct {
	Name  string
	Value interface{}
}

func (p *ValueProvider) GetName() string       { return p.Name }
func (p *ValueProvider) GetLifetime() Lifetime { return Singleton }
func (p *ValueProvider) IsAsync() bool         { return false }
func (p *ValueProvider) Resolve(container DIContainer, ctx context.Context) (interface{}, error) {
	return p.Value, nil
}

// NewValueProvider creates a new ValueProvider
func NewValueProvider(name string, value interface{}) *ValueProvider {
	return &ValueProvider{
		Name:  name,
		Value: value,
	}
}

// AsyncFactory creates services with async initialization
type AsyncFactory func(container DIContainer, ctx context.Context) (interface{}, error)

// DefaultAsyncTimeout bounds AsyncProvider resolution when no timeout is set
const DefaultAsyncTimeout = 30 * time.Second

// AsyncProvider runs its factory as an async.Task and waits for it with a timeout
type AsyncProvider struct {
	Name     string
	Factory  AsyncFactory
	Lifetime Lifetime
	Timeout  time.Duration
}

func (p *AsyncProvider) GetName() string       { return p.Name }
func (p *AsyncProvider) GetLifetime() Lifetime { return p.Lifetime }
func (p *AsyncProvider) IsAsync() bool         { return true }
func (p *AsyncProvider) Resolve(container DIContainer, ctx context.Context) (interface{}, error) {
	timeout := p.Timeout
	if timeout == 0 {
		timeout = DefaultAsyncTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	task := async.Go(func() (interface{}, error) {
		return p.Factory(container, ctx)
	})
	instance, err := task.Result(ctx)
	if err != nil {
		return nil, fmt.Errorf("async provider '%s': %w", p.Name, err)
	}
	return instance, nil
}

// NewAsyncProvider creates a new AsyncProvider with the default timeout
func NewAsyncProvider(name string, factory AsyncFactory, lifetime Lifetime) *AsyncProvider {
	return NewAsyncProviderWithTimeout(name, factory, lifetime, DefaultAsyncTimeout)
}

// NewAsyncProviderWithTimeout creates a new AsyncProvider with a custom timeout
func NewAsyncProviderWithTimeout(name string, factory AsyncFactory, lifetime Lifetime, timeout time.Duration) *AsyncProvider {
	return &AsyncProvider{
		Name:     name,
		Factory:  factory,
		Lifetime: lifetime,
		Timeout:  timeout,
	}
}
