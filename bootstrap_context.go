package launchpad

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/GoCodeAlone/launchpad/container"
)

// Scope controls how often an InstanceSupplier is invoked.
type Scope int

const (
	// ScopeSingleton suppliers are invoked once; the instance is cached.
	ScopeSingleton Scope = iota
	// ScopePrototype suppliers are invoked on every Get.
	ScopePrototype
)

func (s Scope) String() string {
	if s == ScopePrototype {
		return "prototype"
	}
	return "singleton"
}

// InstanceSupplier lazily provides a bootstrap instance.
type InstanceSupplier interface {
	Get(ctx BootstrapContext) (any, error)
	Scope() Scope
}

type instanceSupplier struct {
	fn    func(BootstrapContext) (any, error)
	scope Scope
}

func (s *instanceSupplier) Get(ctx BootstrapContext) (any, error) { return s.fn(ctx) }
func (s *instanceSupplier) Scope() Scope                          { return s.scope }

// Supply returns a singleton supplier backed by fn.
func Supply(fn func(ctx BootstrapContext) (any, error)) InstanceSupplier {
	return &instanceSupplier{fn: fn, scope: ScopeSingleton}
}

// SupplyType is Supply with a typed function.
func SupplyType[T any](fn func(ctx BootstrapContext) (T, error)) InstanceSupplier {
	return Supply(func(ctx BootstrapContext) (any, error) { return fn(ctx) })
}

// Instance returns a singleton supplier for an existing value.
func Instance(v any) InstanceSupplier {
	return Supply(func(BootstrapContext) (any, error) { return v, nil })
}

// WithScope returns a copy of s with the given scope.
func WithScope(s InstanceSupplier, scope Scope) InstanceSupplier {
	return &instanceSupplier{fn: s.Get, scope: scope}
}

// BootstrapContext gives read access to instances registered during
// bootstrap, before the main container exists.
type BootstrapContext interface {
	// Get returns the instance registered for key, creating it if needed.
	Get(key reflect.Type) (any, error)

	// GetOrElse returns the instance for key, or other when key is not registered.
	GetOrElse(key reflect.Type, other any) (any, error)

	IsRegistered(key reflect.Type) bool
}

// BootstrapRegistry is the write side of the bootstrap context, handed to
// BootstrapRegistryInitializers.
type BootstrapRegistry interface {
	// Register adds or replaces the supplier for key. Replacing a singleton
	// that has already been created is an error.
	Register(key reflect.Type, supplier InstanceSupplier) error

	// RegisterIfAbsent registers supplier only when key has no supplier yet.
	RegisterIfAbsent(key reflect.Type, supplier InstanceSupplier) error

	IsRegistered(key reflect.Type) bool

	// RegisteredSupplier returns the supplier registered for key.
	RegisteredSupplier(key reflect.Type) (InstanceSupplier, bool)

	// AddCloseListener adds a listener notified when the bootstrap context is
	// closed into the main container.
	AddCloseListener(l BootstrapCloseListener)
}

// BootstrapRegistryInitializer populates the bootstrap registry at the very
// start of a run.
type BootstrapRegistryInitializer interface {
	Initialize(r BootstrapRegistry) error
}

// BootstrapRegistryInitializerFunc adapts a function to BootstrapRegistryInitializer.
type BootstrapRegistryInitializerFunc func(r BootstrapRegistry) error

// Initialize implements BootstrapRegistryInitializer.
func (f BootstrapRegistryInitializerFunc) Initialize(r BootstrapRegistry) error { return f(r) }

// BootstrapContextClosedEvent is delivered to close listeners. Listeners
// typically promote bootstrap instances into Container.
type BootstrapContextClosedEvent struct {
	Context   BootstrapContext
	Container container.Container
}

// BootstrapCloseListener is notified once when the bootstrap context closes.
type BootstrapCloseListener interface {
	OnBootstrapContextClosed(event BootstrapContextClosedEvent) error
}

// BootstrapCloseListenerFunc adapts a function to BootstrapCloseListener.
type BootstrapCloseListenerFunc func(event BootstrapContextClosedEvent) error

// OnBootstrapContextClosed implements BootstrapCloseListener.
func (f BootstrapCloseListenerFunc) OnBootstrapContextClosed(event BootstrapContextClosedEvent) error {
	return f(event)
}

// DefaultBootstrapContext implements both BootstrapRegistry and
// BootstrapContext. It is used from the run goroutine only and is not safe
// for concurrent use.
type DefaultBootstrapContext struct {
	suppliers map[reflect.Type]InstanceSupplier
	instances map[reflect.Type]any
	listeners []BootstrapCloseListener
	closing   bool
	closed    bool
}

// NewBootstrapContext creates an empty, open bootstrap context.
func NewBootstrapContext() *DefaultBootstrapContext {
	return &DefaultBootstrapContext{
		suppliers: make(map[reflect.Type]InstanceSupplier),
		instances: make(map[reflect.Type]any),
	}
}

// Register implements BootstrapRegistry.
func (b *DefaultBootstrapContext) Register(key reflect.Type, supplier InstanceSupplier) error {
	return b.register(key, supplier, true)
}

// RegisterIfAbsent implements BootstrapRegistry.
func (b *DefaultBootstrapContext) RegisterIfAbsent(key reflect.Type, supplier InstanceSupplier) error {
	return b.register(key, supplier, false)
}

func (b *DefaultBootstrapContext) register(key reflect.Type, supplier InstanceSupplier, replace bool) error {
	if b.closed {
		return ErrBootstrapContextClosed
	}
	if supplier == nil {
		return fmt.Errorf("%w: %s", ErrNilSupplier, key)
	}
	if _, exists := b.suppliers[key]; exists && !replace {
		return nil
	}
	if _, created := b.instances[key]; created {
		return fmt.Errorf("%w: %s", ErrBootstrapInstanceCreated, key)
	}
	b.suppliers[key] = supplier
	return nil
}

// IsRegistered implements BootstrapRegistry and BootstrapContext.
func (b *DefaultBootstrapContext) IsRegistered(key reflect.Type) bool {
	_, ok := b.suppliers[key]
	return ok
}

// RegisteredSupplier implements BootstrapRegistry.
func (b *DefaultBootstrapContext) RegisteredSupplier(key reflect.Type) (InstanceSupplier, bool) {
	s, ok := b.suppliers[key]
	return s, ok
}

// AddCloseListener implements BootstrapRegistry.
func (b *DefaultBootstrapContext) AddCloseListener(l BootstrapCloseListener) {
	if l != nil {
		b.listeners = append(b.listeners, l)
	}
}

// Get implements BootstrapContext.
func (b *DefaultBootstrapContext) Get(key reflect.Type) (any, error) {
	if b.closed {
		return nil, ErrBootstrapContextClosed
	}
	supplier, ok := b.suppliers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBootstrapInstanceMissing, key)
	}
	if supplier.Scope() == ScopeSingleton {
		if instance, created := b.instances[key]; created {
			return instance, nil
		}
	}

	instance, err := supplier.Get(b)
	if err != nil {
		return nil, fmt.Errorf("bootstrap instance %s: %w", key, err)
	}
	if supplier.Scope() == ScopeSingleton {
		b.instances[key] = instance
	}
	return instance, nil
}

// GetOrElse implements BootstrapContext.
func (b *DefaultBootstrapContext) GetOrElse(key reflect.Type, other any) (any, error) {
	instance, err := b.Get(key)
	if errors.Is(err, ErrBootstrapInstanceMissing) {
		return other, nil
	}
	return instance, err
}

// IsClosed reports whether Close has been called.
func (b *DefaultBootstrapContext) IsClosed() bool { return b.closed }

// Close notifies close listeners, in registration order, that c is taking
// over and then closes the context. Listeners may still read instances. Only
// the first call is allowed.
func (b *DefaultBootstrapContext) Close(c container.Container) error {
	if b.closing || b.closed {
		return ErrBootstrapContextClosed
	}
	b.closing = true
	defer func() { b.closed = true }()

	event := BootstrapContextClosedEvent{Context: b, Container: c}
	var errs []error
	for _, l := range b.listeners {
		if err := guard(func() error { return l.OnBootstrapContextClosed(event) }); err != nil {
			errs = append(errs, fmt.Errorf("bootstrap close listener %T: %w", l, err))
		}
	}
	return errors.Join(errs...)
}

// RegisterType registers supplier under the type T.
func RegisterType[T any](r BootstrapRegistry, supplier InstanceSupplier) error {
	return r.Register(reflect.TypeFor[T](), supplier)
}

// GetType returns the instance registered under the type T.
func GetType[T any](c BootstrapContext) (T, error) {
	var zero T
	raw, err := c.Get(reflect.TypeFor[T]())
	if err != nil || raw == nil {
		return zero, err
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("bootstrap instance %s: got %T", reflect.TypeFor[T](), raw)
	}
	return typed, nil
}
