package registry

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// Static errors for registry package
var (
	ErrCannotInstantiate     = errors.New("cannot instantiate extension")
	ErrFactoryNotFound       = errors.New("no factory registered for implementation")
	ErrWrongConstructorShape = errors.New("wrong constructor shape")
	ErrNotAssignable         = errors.New("extension not assignable to capability")
	ErrFactoryPanicked       = errors.New("extension factory panicked")
	ErrDuplicateFactory      = errors.New("factory already registered")
	ErrNilFactory            = errors.New("factory is nil")
	ErrManifestFormat        = errors.New("unsupported manifest format")
)

type factoryEntry struct {
	name    string
	factory Factory
}

// Registry maps capability names to named factories. Unless another Source is
// installed, the registration order of each capability is also its declared
// implementation list.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]map[string]Factory
	declared  map[string][]string
	source    Source
}

// NewRegistry creates an empty registry using its own registrations as Source.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]map[string]Factory),
		declared:  make(map[string][]string),
	}
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// Default returns the process-wide registry. Packages populate it from init
// functions; applications may also register into it explicitly at startup.
func Default() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Register adds a named factory for a capability. Registering the same name
// twice for one capability is an error.
func (r *Registry) Register(capability, name string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("%w: %s/%s", ErrNilFactory, capability, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byName, ok := r.factories[capability]
	if !ok {
		byName = make(map[string]Factory)
		r.factories[capability] = byName
	}
	if _, exists := byName[name]; exists {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateFactory, capability, name)
	}
	byName[name] = factory
	r.declared[capability] = append(r.declared[capability], name)
	return nil
}

// MustRegister is Register for init functions; it panics on error.
func (r *Registry) MustRegister(capability, name string, factory Factory) {
	if err := r.Register(capability, name, factory); err != nil {
		panic(err)
	}
}

// Names returns the implementation names registered for a capability in
// registration order.
func (r *Registry) Names(capability string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.declared[capability]...)
}

// NamesFor implements Source over the registration table.
func (r *Registry) NamesFor(capability string) ([]string, error) {
	return r.Names(capability), nil
}

// WithSource installs src as the declarative source of implementation names
// and returns r.
func (r *Registry) WithSource(src Source) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.source = src
	return r
}

// Source returns the declarative source in use.
func (r *Registry) Source() Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.source == nil {
		return r
	}
	return r.source
}

func (r *Registry) lookup(capability, name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[capability][name]
	return f, ok
}

// Discover constructs one instance per distinct implementation name declared
// for the capability and returns them sorted by precedence. The first name
// that cannot be constructed or is not assignable to T fails the whole call.
func Discover[T any](r *Registry, capability Capability, args ...any) ([]T, error) {
	names, err := r.Source().NamesFor(capability.Name)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrCannotInstantiate, capability, err)
	}

	instances := make([]T, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		instance, err := instantiate[T](r, capability, name, args)
		if err != nil {
			return nil, fmt.Errorf("%w %s: %s: %w", ErrCannotInstantiate, capability, name, err)
		}
		instances = append(instances, instance)
	}

	SortStable(instances)
	return instances, nil
}

func instantiate[T any](r *Registry, capability Capability, name string, args []any) (instance T, err error) {
	factory, ok := r.lookup(capability.Name, name)
	if !ok {
		return instance, ErrFactoryNotFound
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrFactoryPanicked, p)
		}
	}()

	raw, err := factory(args...)
	if err != nil {
		return instance, err
	}
	if capability.Type != nil && (raw == nil || !reflect.TypeOf(raw).AssignableTo(capability.Type)) {
		return instance, fmt.Errorf("%w: %T", ErrNotAssignable, raw)
	}
	typed, ok := raw.(T)
	if !ok {
		return instance, fmt.Errorf("%w: %T is not %s", ErrNotAssignable, raw, reflect.TypeFor[T]())
	}
	return typed, nil
}

// Instantiate constructs the implementation registered under name for the
// capability, regardless of what the Source declares.
func Instantiate[T any](r *Registry, capability Capability, name string, args ...any) (T, error) {
	instance, err := instantiate[T](r, capability, name, args)
	if err != nil {
		return instance, fmt.Errorf("%w %s: %s: %w", ErrCannotInstantiate, capability, name, err)
	}
	return instance, nil
}
