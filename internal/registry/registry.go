// Package registry discovers plugin implementations and computes the order
// they execute in.
//
// Plugins are held as a compiled-in table of name → factory entries,
// optionally extended by configured external entries resolved once at
// startup. Discovery order is preserved: built-ins first, custom entries
// after, which also serves as the deterministic tie-break for the
// dependency sort.
package registry

import (
	"fmt"

	"github.com/assetforge/assetforge/internal/plugin"
)

// Descriptor is the immutable identity of a discovered plugin.
type Descriptor struct {
	Name         string
	Dependencies []string
}

type entry struct {
	name    string
	factory plugin.Factory
	builtin bool
}

// Registry owns the plugin factory table for the lifetime of one
// orchestration run.
type Registry struct {
	entries []entry
	byName  map[string]int
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byName: make(map[string]int),
	}
}

// RegisterBuiltin adds a compiled-in plugin factory. Registration order is
// discovery order.
func (r *Registry) RegisterBuiltin(factory plugin.Factory) error {
	return r.register(factory, true)
}

// RegisterCustom adds an external plugin factory. Custom plugins always
// sort after built-ins when no dependency constrains them.
func (r *Registry) RegisterCustom(factory plugin.Factory) error {
	return r.register(factory, false)
}

func (r *Registry) register(factory plugin.Factory, builtin bool) error {
	p := factory()
	name := p.Name()
	if name == "" {
		return fmt.Errorf("plugin factory returned empty name")
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("plugin %q already registered", name)
	}
	r.byName[name] = len(r.entries)
	r.entries = append(r.entries, entry{name: name, factory: factory, builtin: builtin})
	return nil
}

// Names returns all registered plugin names in discovery order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	return names
}

// Instantiate builds the active plugin set, honoring the allowlist filter
// and the custom-plugins toggle. An empty filter selects everything.
// Dependencies that name a filtered-out plugin are silently treated as
// satisfied by the sort.
func (r *Registry) Instantiate(filter []string, includeCustom bool) []plugin.Plugin {
	allowed := make(map[string]bool, len(filter))
	for _, name := range filter {
		allowed[name] = true
	}

	var plugins []plugin.Plugin
	for _, e := range r.entries {
		if !e.builtin && !includeCustom {
			continue
		}
		if len(allowed) > 0 && !allowed[e.name] {
			continue
		}
		plugins = append(plugins, e.factory())
	}
	return plugins
}

// Describe returns descriptors for an instantiated plugin set, preserving
// order.
func Describe(plugins []plugin.Plugin) []Descriptor {
	descriptors := make([]Descriptor, len(plugins))
	for i, p := range plugins {
		deps := p.Dependencies()
		copied := make([]string, len(deps))
		copy(copied, deps)
		descriptors[i] = Descriptor{Name: p.Name(), Dependencies: copied}
	}
	return descriptors
}
