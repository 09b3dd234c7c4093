// Package registry provides capability-keyed extension discovery: a table of named factories
// per capability, a declarative Source naming which implementations apply, and stable
// precedence ordering of the constructed instances.
package registry

import (
	"fmt"
	"reflect"
)

// Source supplies the implementation names declared for a capability.
// It is the declarative side of discovery (a manifest, a static table) and is
// never consulted for construction details.
type Source interface {
	// NamesFor returns the implementation names declared for the capability,
	// in declaration order. Duplicates are allowed; Discover collapses them.
	NamesFor(capability string) ([]string, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(capability string) ([]string, error)

// NamesFor calls f(capability).
func (f SourceFunc) NamesFor(capability string) ([]string, error) {
	return f(capability)
}

// Capability identifies a pluggable extension point by a stable name and the
// type every discovered instance must be assignable to.
type Capability struct {
	Name string
	Type reflect.Type
}

// CapabilityOf returns the capability named name whose instances must satisfy T.
func CapabilityOf[T any](name string) Capability {
	return Capability{Name: name, Type: reflect.TypeFor[T]()}
}

func (c Capability) String() string {
	if c.Type == nil {
		return c.Name
	}
	return fmt.Sprintf("%s (%s)", c.Name, c.Type)
}

// Factory constructs one extension instance from the discovery arguments.
// A factory must reject arguments it does not understand with ErrWrongConstructorShape.
type Factory func(args ...any) (any, error)
