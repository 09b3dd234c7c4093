package launchpad

import (
	"fmt"
	"reflect"

	"github.com/GoCodeAlone/launchpad/container"
)

// ContextInitializer customizes a container after the environment is
// attached and before any source is loaded.
type ContextInitializer interface {
	Initialize(c container.Container) error
}

// ContextInitializerFunc adapts a function to ContextInitializer.
type ContextInitializerFunc func(c container.Container) error

// Initialize implements ContextInitializer.
func (f ContextInitializerFunc) Initialize(c container.Container) error { return f(c) }

type typedInitializer[C container.Container] struct {
	fn func(C) error
}

// InitializerFor returns an initializer that only applies to containers of
// type C. Applying it to any other container fails with
// ErrInitializerNotApplicable.
func InitializerFor[C container.Container](fn func(c C) error) ContextInitializer {
	return typedInitializer[C]{fn: fn}
}

func (t typedInitializer[C]) Initialize(c container.Container) error {
	typed, ok := c.(C)
	if !ok {
		return fmt.Errorf("%w: %T requires %s", ErrInitializerNotApplicable, c, reflect.TypeFor[C]())
	}
	return t.fn(typed)
}

func (a *Application) applyInitializers(c container.Container) error {
	for _, initializer := range a.ContextInitializers() {
		if err := initializer.Initialize(c); err != nil {
			return fmt.Errorf("context initializer %T: %w", initializer, err)
		}
	}
	return nil
}
