package plugin

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/louisbranch/arkomp/internal/platform/errors"
)

var (
	// ErrNotRegistered indicates a lookup for a plugin name that is not loaded.
	ErrNotRegistered = apperrors.New(apperrors.CodePluginNotRegistered, "Plugin is not in registry")
	// ErrPluginRequired indicates a nil plugin or a plugin without a name.
	ErrPluginRequired = stderrors.New("plugin with a name is required")
)

func notRegistered(name string) error {
	return apperrors.New(apperrors.CodePluginNotRegistered, fmt.Sprintf("Plugin is not in registry: %s", name))
}

// Registry maps plugin names to loaded plugins.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// Register stores p under its name, replacing any plugin with the same name.
// The replaced plugin, if any, is returned so the caller can close it.
func (r *Registry) Register(p Plugin) (Plugin, error) {
	if p == nil || strings.TrimSpace(p.Name()) == "" {
		return nil, ErrPluginRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	replaced := r.plugins[p.Name()]
	r.plugins[p.Name()] = p
	return replaced, nil
}

// Get returns the plugin registered under name.
func (r *Registry) Get(name string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	if !ok {
		return nil, notRegistered(name)
	}
	return p, nil
}

// Deregister removes and returns the plugin registered under name. Ownership
// passes to the caller, which is expected to close it.
func (r *Registry) Deregister(name string) (Plugin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plugins[name]
	if !ok {
		return nil, notRegistered(name)
	}
	delete(r.plugins, name)
	return p, nil
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// List returns the registered plugins ordered by name.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	list := make([]Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		list = append(list, p)
	}
	r.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// Close deregisters and closes every plugin.
func (r *Registry) Close() error {
	r.mu.Lock()
	plugins := r.plugins
	r.plugins = make(map[string]Plugin)
	r.mu.Unlock()

	var errs []error
	for name, p := range plugins {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close plugin %s: %w", name, err))
		}
	}
	return stderrors.Join(errs...)
}
