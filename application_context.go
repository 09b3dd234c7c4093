package launchpad

import (
	"context"
	"fmt"

	"github.com/GoCodeAlone/launchpad/container"
	"github.com/GoCodeAlone/launchpad/env"
	"github.com/GoCodeAlone/launchpad/registry"
)

func (a *Application) createContainer() (container.Container, error) {
	c, err := a.factory.Create(a.deploymentKind)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s container: %w", a.deploymentKind, err)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: factory %T returned no container", ErrNilContainer, a.factory)
	}
	c.SetStartupCollector(a.collector)
	return c, nil
}

// prepareContext readies c for refresh. It returns with the bootstrap
// context closed into c and every source loaded.
func (a *Application) prepareContext(ctx context.Context, r *run, c container.Container, e *env.Environment, banner Banner) error {
	c.SetEnvironment(e)
	if err := a.applyInitializers(c); err != nil {
		return err
	}
	if err := r.listeners.ContextPrepared(ctx, c); err != nil {
		return err
	}
	if err := r.bootstrap.Close(c); err != nil {
		return err
	}

	if a.settings.LogStartupInfo {
		info := a.startupInfoLogger()
		info.LogStarting()
		info.LogProfiles(e)
	}

	if err := c.RegisterSingleton(ArgumentsBeanName, r.arguments); err != nil {
		return err
	}
	if banner != nil {
		if err := c.RegisterSingleton(BannerBeanName, banner); err != nil {
			return err
		}
	}
	if err := c.RegisterSingleton(EventSourceBeanName, a.EventSource()); err != nil {
		return err
	}
	c.SetAllowDefinitionOverriding(a.settings.AllowDefinitionOverriding)
	c.SetAllowCircularReferences(a.settings.AllowCircularReferences)
	if a.settings.LazyInitialization {
		c.AddPostProcessor(lazyInitializationPostProcessor{})
	}
	c.AddPostProcessor(defaultsLastPostProcessor{environment: e})

	sources, err := a.allSources()
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return ErrNoSources
	}
	if err := c.Load(sources...); err != nil {
		return err
	}

	r.phase = PhaseContextLoaded
	return r.listeners.ContextLoaded(ctx, c)
}

// allSources returns the primary sources followed by the sources named in
// Settings.Sources.
func (a *Application) allSources() ([]any, error) {
	sources := append([]any(nil), a.primarySources...)
	for _, name := range a.settings.Sources {
		source, err := registry.Instantiate[any](a.registry, SourceCapability, name)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, nil
}

func (a *Application) refreshContainer(ctx context.Context, c container.Container) error {
	if a.settings.RegisterShutdownHook && a.hook != nil {
		if err := a.hook.RegisterContainer(c); err != nil {
			return err
		}
	}
	return c.Refresh(ctx)
}

// defaultsLastPostProcessor moves defaultProperties back to the end of the
// environment right before the container creates any bean.
type defaultsLastPostProcessor struct {
	environment *env.Environment
}

func (defaultsLastPostProcessor) Order() int { return registry.HighestPrecedence }

func (p defaultsLastPostProcessor) PostProcess(container.Container) error {
	env.MoveToEnd(p.environment.Sources())
	return nil
}

// lazyInitializationPostProcessor switches lazy initialization on for
// containers that support it.
type lazyInitializationPostProcessor struct{}

func (lazyInitializationPostProcessor) Order() int { return registry.HighestPrecedence }

func (lazyInitializationPostProcessor) PostProcess(c container.Container) error {
	if lazy, ok := c.(container.LazyInitializer); ok {
		lazy.SetLazyInitialization(true)
	}
	return nil
}
