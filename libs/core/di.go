package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// Lifetime defines the lifetime of a service in the DI container
type Lifetime int

const (
	// Singleton creates one instance for the entire container lifetime
	Singleton Lifetime = iota
	// Transient creates a new instance every time it's requested
	Transient
	// Scoped creates one instance per scope
	Scoped
)

func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Transient:
		return "transient"
	case Scoped:
		return "scoped"
	default:
		return fmt.Sprintf("Lifetime(%d)", int(l))
	}
}

var (
	ErrServiceNotFound   = errors.New("service is not registered")
	ErrServiceRegistered = errors.New("service is already registered")
)

// Factory is a function that creates a service instance
type Factory func(container DIContainer) (interface{}, error)

// ServiceDefinition holds information about a registered service
type ServiceDefinition struct {
	Provider Provider
	Instance interface{} // cached for Singleton and Scoped
	mu       sync.Mutex
}

// DIContainer manages service registration and resolution. It is the
// service-resolution capability handed to every intercepted call.
type DIContainer interface {
	Register(name string, factory Factory, lifetime Lifetime) error
	RegisterSingleton(name string, factory Factory) error
	RegisterTransient(name string, factory Factory) error
	RegisterScoped(name string, factory Factory) error
	RegisterProvider(provider Provider) error
	Resolve(name string) (interface{}, error)
	ResolveWithContext(name string, ctx context.Context) (interface{}, error)
	ResolveAs(name string, target interface{}) error
	Has(name string) bool
	CreateScope() DIContainer
}

// diContainer is the default implementation of DIContainer
type diContainer struct {
	services map[string]*ServiceDefinition
	mu       sync.RWMutex
	parent   *diContainer
}

// NewDIContainer creates a new dependency injection container
func NewDIContainer() DIContainer {
	return &diContainer{
		services: make(map[string]*ServiceDefinition),
	}
}

// Register registers a factory with the specified lifetime
func (c *diContainer) Register(name string, factory Factory, lifetime Lifetime) error {
	if factory == nil {
		return fmt.Errorf("factory cannot be nil for service '%s'", name)
	}
	return c.RegisterProvider(NewFactoryProvider(name, factory, lifetime))
}

// RegisterSingleton registers a singleton service
func (c *diContainer) RegisterSingleton(name string, factory Factory) error {
	return c.Register(name, factory, Singleton)
}

// RegisterTransient registers a transient service
func (c *diContainer) RegisterTransient(name string, factory Factory) error {
	return c.Register(name, factory, Transient)
}

// RegisterScoped registers a scoped service
func (c *diContainer) RegisterScoped(name string, factory Factory) error {
	return c.Register(name, factory, Scoped)
}

// RegisterProvider registers any Provider under its own name
func (c *diContainer) RegisterProvider(provider Provider) error {
	if provider == nil {
		return errors.New("provider cannot be nil")
	}
	name := provider.GetName()
	if name == "" {
		return errors.New("provider name cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.services[name]; exists {
		return fmt.Errorf("service '%s': %w", name, ErrServiceRegistered)
	}
	c.services[name] = &ServiceDefinition{Provider: provider}
	return nil
}

// Resolve resolves a service by name
func (c *diContainer) Resolve(name string) (interface{}, error) {
	return c.ResolveWithContext(name, context.Background())
}

// ResolveWithContext resolves a service by name; ctx reaches async providers
func (c *diContainer) ResolveWithContext(name string, ctx context.Context) (interface{}, error) {
	owner, service := c.lookup(name)
	if service == nil {
		return nil, fmt.Errorf("service '%s': %w", name, ErrServiceNotFound)
	}

	provider := service.Provider
	switch provider.GetLifetime() {
	case Singleton:
		return owner.cached(owner, service, name, ctx)

	case Transient:
		return provider.Resolve(c, ctx)

	case Scoped:
		// Scoped services are cached in the scope that asked for them
		if owner != c {
			c.mu.Lock()
			local, exists := c.services[name]
			if !exists {
				local = &ServiceDefinition{Provider: provider}
				c.services[name] = local
			}
			c.mu.Unlock()
			service = local
		}
		return c.cached(c, service, name, ctx)

	default:
		return nil, fmt.Errorf("unknown lifetime for service '%s'", name)
	}
}

func (c *diContainer) lookup(name string) (*diContainer, *ServiceDefinition) {
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.RLock()
		service, exists := cur.services[name]
		cur.mu.RUnlock()
		if exists {
			return cur, service
		}
	}
	return nil, nil
}

func (c *diContainer) cached(requester DIContainer, service *ServiceDefinition, name string, ctx context.Context) (interface{}, error) {
	service.mu.Lock()
	defer service.mu.Unlock()

	if service.Instance != nil {
		return service.Instance, nil
	}

	instance, err := service.Provider.Resolve(requester, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s service '%s': %w", service.Provider.GetLifetime(), name, err)
	}
	service.Instance = instance
	return instance, nil
}

// ResolveAs resolves a service and assigns it to the target pointer
func (c *diContainer) ResolveAs(name string, target interface{}) error {
	instance, err := c.Resolve(name)
	if err != nil {
		return err
	}

	targetValue := reflect.ValueOf(target)
	if targetValue.Kind() != reflect.Ptr || targetValue.IsNil() {
		return errors.New("target must be a non-nil pointer")
	}

	instanceValue := reflect.ValueOf(instance)
	if !instanceValue.IsValid() || !instanceValue.Type().AssignableTo(targetValue.Elem().Type()) {
		return fmt.Errorf("service '%s' cannot be assigned to %s", name, targetValue.Elem().Type())
	}

	targetValue.Elem().Set(instanceValue)
	return nil
}

// Has checks if a service is registered here or in a parent
func (c *diContainer) Has(name string) bool {
	_, service := c.lookup(name)
	return service != nil
}

// CreateScope creates a new scoped container
func (c *diContainer) CreateScope() DIContainer {
	return &diContainer{
		services: make(map[string]*ServiceDefinition),
		parent:   c,
	}
}

// Resolve resolves a service by name and asserts it to T
func Resolve[T any](c DIContainer, name string) (T, error) {
	var zero T

	instance, err := c.Resolve(name)
	if err != nil {
		return zero, err
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("service '%s' is %T, not %s", name, instance, reflect.TypeOf((*T)(nil)).Elem())
	}
	return typed, nil
}
