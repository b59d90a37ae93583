package aop

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/dangvanduc1999/doffy-aop/libs/core"
)

// Plugin contributes services and interception behaviour
type Plugin interface {
	// Name returns the unique name of the plugin
	Name() string
	// Version returns the version of the plugin
	Version() string
	// Register registers the plugin's services with the DI container
	Register(container core.DIContainer) error
	// Interceptors are appended to the chain in order
	Interceptors() []Interceptor
	// Hooks are added to the shared lifecycle manager
	Hooks() []LifecycleHook
}

// BasePlugin provides empty implementations of the optional methods
type BasePlugin struct{}

// Register does nothing
func (bp *BasePlugin) Register(container core.DIContainer) error {
	return nil
}

// Interceptors returns none
func (bp *BasePlugin) Interceptors() []Interceptor {
	return nil
}

// Hooks returns none
func (bp *BasePlugin) Hooks() []LifecycleHook {
	return nil
}

var (
	ErrPluginNil                = errors.New("plugin cannot be nil")
	ErrPluginAlreadyRegistered  = errors.New("plugin is already registered")
	ErrPluginRegistrationFailed = errors.New("plugin registration failed")
)

// PluginManager registers plugins against one container and one chain. The
// lifecycle manager is the chain's first interceptor, so hooks wrap every
// plugin interceptor.
type PluginManager struct {
	mu        sync.RWMutex
	plugins   map[string]Plugin
	container core.DIContainer
	chain     *Chain
	lifecycle *LifecycleManager
}

// NewPluginManager creates a new plugin manager
func NewPluginManager(container core.DIContainer, chain *Chain) *PluginManager {
	lifecycle := NewLifecycleManager()
	chain.Use(lifecycle)
	return &PluginManager{
		plugins:   make(map[string]Plugin),
		container: container,
		chain:     chain,
		lifecycle: lifecycle,
	}
}

// RegisterPlugin registers a plugin
func (pm *PluginManager) RegisterPlugin(plugin Plugin) error {
	if plugin == nil {
		return ErrPluginNil
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	name := plugin.Name()
	if _, exists := pm.plugins[name]; exists {
		return fmt.Errorf("%w: %s", ErrPluginAlreadyRegistered, name)
	}

	if err := plugin.Register(pm.container); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPluginRegistrationFailed, name, err)
	}

	pm.plugins[name] = plugin
	pm.chain.Use(plugin.Interceptors()...)
	for _, hook := range plugin.Hooks() {
		pm.lifecycle.AddHook(hook)
	}
	return nil
}

// RegisterPlugins registers each plugin and reports every failure
func (pm *PluginManager) RegisterPlugins(plugins ...Plugin) error {
	var result *multierror.Error
	for _, p := range plugins {
		if err := pm.RegisterPlugin(p); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// GetPlugin returns a plugin by name
func (pm *PluginManager) GetPlugin(name string) (Plugin, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	plugin, exists := pm.plugins[name]
	return plugin, exists
}

// GetPlugins returns all registered plugins
func (pm *PluginManager) GetPlugins() map[string]Plugin {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	// copy so callers cannot mutate the registry
	result := make(map[string]Plugin, len(pm.plugins))
	for name, plugin := range pm.plugins {
		result[name] = plugin
	}
	return result
}

// Names returns the registered plugin names, sorted
func (pm *PluginManager) Names() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	names := make([]string, 0, len(pm.plugins))
	for name := range pm.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetLifecycleManager returns the lifecycle manager
func (pm *PluginManager) GetLifecycleManager() *LifecycleManager {
	return pm.lifecycle
}
