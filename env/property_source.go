// Package env implements the layered configuration environment: an ordered,
// name-unique list of property sources plus active and default profiles.
// Lookups resolve against the first source that defines a key.
package env

import (
	"maps"
	"slices"
	"sync"
)

// PropertySource is a named key/value lookup.
type PropertySource interface {
	Name() string
	Property(key string) (any, bool)
}

// EnumerablePropertySource is a PropertySource that can list its keys.
type EnumerablePropertySource interface {
	PropertySource
	Keys() []string
}

// MapPropertySource is an insertion-ordered map of properties.
type MapPropertySource struct {
	name   string
	mu     sync.RWMutex
	keys   []string
	values map[string]any
}

// NewMapPropertySource creates a source from props. Keys are ordered
// lexically since Go maps carry no order.
func NewMapPropertySource(name string, props map[string]any) *MapPropertySource {
	m := &MapPropertySource{name: name, values: make(map[string]any, len(props))}
	for _, k := range slices.Sorted(maps.Keys(props)) {
		m.keys = append(m.keys, k)
		m.values[k] = props[k]
	}
	return m
}

// Name implements PropertySource.
func (m *MapPropertySource) Name() string { return m.name }

// Property implements PropertySource.
func (m *MapPropertySource) Property(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Keys implements EnumerablePropertySource.
func (m *MapPropertySource) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.keys)
}

// Set updates key in place when present, otherwise appends it.
func (m *MapPropertySource) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Map returns a copy of the properties.
func (m *MapPropertySource) Map() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.values)
}

// CompositePropertySource presents several sources under one name; the first
// member defining a key wins.
type CompositePropertySource struct {
	name    string
	members []PropertySource
}

// NewCompositePropertySource creates an empty composite.
func NewCompositePropertySource(name string, members ...PropertySource) *CompositePropertySource {
	return &CompositePropertySource{name: name, members: members}
}

// Name implements PropertySource.
func (c *CompositePropertySource) Name() string { return c.name }

// Add appends a member with the lowest precedence within the composite.
func (c *CompositePropertySource) Add(ps PropertySource) {
	c.members = append(c.members, ps)
}

// AddFirst prepends a member with the highest precedence within the composite.
func (c *CompositePropertySource) AddFirst(ps PropertySource) {
	c.members = append([]PropertySource{ps}, c.members...)
}

// Members returns the member sources in precedence order.
func (c *CompositePropertySource) Members() []PropertySource {
	return slices.Clone(c.members)
}

// Property implements PropertySource.
func (c *CompositePropertySource) Property(key string) (any, bool) {
	for _, m := range c.members {
		if v, ok := m.Property(key); ok {
			return v, true
		}
	}
	return nil, false
}

// Keys returns the union of the enumerable members' keys, first occurrence first.
func (c *CompositePropertySource) Keys() []string {
	var keys []string
	seen := make(map[string]bool)
	for _, m := range c.members {
		e, ok := m.(EnumerablePropertySource)
		if !ok {
			continue
		}
		for _, k := range e.Keys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}
