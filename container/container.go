// Package container defines the contract between the launcher and the main
// application container, and ships StdContainer, a small reference
// implementation holding named singletons and lifecycle-managed modules.
//
// Basic usage:
//
//	c := container.NewStdContainer(logger)
//	_ = c.Load(&DatabaseModule{}, &WebModule{})
//	if err := c.Refresh(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
package container

import (
	"context"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/GoCodeAlone/launchpad/env"
	"github.com/GoCodeAlone/launchpad/startup"
)

// Container is the main application container as seen by the launcher.
// Everything about how beans are defined and wired is left to the
// implementation.
type Container interface {
	// SetEnvironment attaches the prepared environment.
	SetEnvironment(e *env.Environment)
	Environment() *env.Environment

	// SetStartupCollector installs the collector used to record refresh steps.
	SetStartupCollector(c startup.Collector)

	// AddPostProcessor adds a hook run at the start of Refresh, before any
	// bean is created. Post-processors run in precedence order.
	AddPostProcessor(p PostProcessor)

	// RegisterSingleton registers a ready-made bean under name.
	RegisterSingleton(name string, bean any) error

	SetAllowDefinitionOverriding(allow bool)
	SetAllowCircularReferences(allow bool)

	// Load registers bean definitions from opaque sources.
	Load(sources ...any) error

	// Refresh creates beans and starts the container. It may be called once.
	Refresh(ctx context.Context) error

	// IsActive reports whether Refresh succeeded and Close has not been called.
	IsActive() bool

	// Close stops the container. Only the first call has any effect.
	Close() error

	// Bean returns the bean registered under name.
	Bean(name string) (any, error)

	// Beans returns every bean in registration order.
	Beans() ([]any, error)

	// PublishEvent delivers event to the container's observers.
	PublishEvent(ctx context.Context, event cloudevents.Event) error

	// AddEventListener registers an observer, optionally filtered by event type.
	AddEventListener(o Observer, eventTypes ...string) error
}

// PostProcessor mutates a container before its beans are created. It may
// implement registry.Ordered to control its position.
type PostProcessor interface {
	PostProcess(c Container) error
}

// PostProcessorFunc adapts a function to PostProcessor.
type PostProcessorFunc func(c Container) error

// PostProcess implements PostProcessor.
func (f PostProcessorFunc) PostProcess(c Container) error { return f(c) }

// LazyInitializer is implemented by containers that can defer bean creation
// until a bean is first requested.
type LazyInitializer interface {
	SetLazyInitialization(lazy bool)
	LazyInitialization() bool
}

// Loader is a container source that registers its own definitions.
type Loader interface {
	LoadInto(c Container) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(c Container) error

// LoadInto implements Loader.
func (f LoaderFunc) LoadInto(c Container) error { return f(c) }

// Bean is a named singleton source.
type Bean struct {
	Name     string
	Instance any
}

// BeansOfType returns the beans of c assignable to T, in registration order.
func BeansOfType[T any](c Container) ([]T, error) {
	beans, err := c.Beans()
	if err != nil {
		return nil, err
	}
	var out []T
	for _, b := range beans {
		if t, ok := b.(T); ok {
			out = append(out, t)
		}
	}
	return out, nil
}
