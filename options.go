package launchpad

import (
	"fmt"
	"io"
	"maps"

	"github.com/GoCodeAlone/launchpad/container"
	"github.com/GoCodeAlone/launchpad/env"
	"github.com/GoCodeAlone/launchpad/registry"
	"github.com/GoCodeAlone/launchpad/shutdown"
	"github.com/GoCodeAlone/launchpad/startup"
)

// Option represents a functional option for configuring an Application
type Option func(*Application) error

// WithLogger sets the logger. Without it DefaultLogger is used.
func WithLogger(logger Logger) Option {
	return func(a *Application) error {
		a.logger = logger
		return nil
	}
}

// WithName sets the application name. It defaults to the executable name.
func WithName(name string) Option {
	return func(a *Application) error {
		a.name = name
		return nil
	}
}

// WithSources adds primary container sources: modules, beans, loaders or any
// value the container's Load accepts.
func WithSources(sources ...any) Option {
	return func(a *Application) error {
		a.primarySources = append(a.primarySources, sources...)
		return nil
	}
}

// WithAdditionalSources adds names of sources registered under the "source"
// capability.
func WithAdditionalSources(names ...string) Option {
	return func(a *Application) error {
		a.settings.Sources = append(a.settings.Sources, names...)
		return nil
	}
}

// WithBannerMode sets how the banner is printed.
func WithBannerMode(mode BannerMode) Option {
	return func(a *Application) error {
		if mode < BannerOff || mode > BannerLog {
			return fmt.Errorf("%w: %d", ErrInvalidBannerMode, int(mode))
		}
		a.settings.BannerMode = mode
		return nil
	}
}

// WithBanner replaces the banner.
func WithBanner(banner Banner) Option {
	return func(a *Application) error {
		a.banner = banner
		return nil
	}
}

// WithBannerOutput sets where BannerConsole prints. It defaults to stdout.
func WithBannerOutput(w io.Writer) Option {
	return func(a *Application) error {
		a.bannerOut = w
		return nil
	}
}

// WithLazyInitialization defers bean creation until first use.
func WithLazyInitialization(lazy bool) Option {
	return func(a *Application) error {
		a.settings.LazyInitialization = lazy
		return nil
	}
}

// WithAllowDefinitionOverriding lets a later bean definition replace an
// earlier one with the same name.
func WithAllowDefinitionOverriding(allow bool) Option {
	return func(a *Application) error {
		a.settings.AllowDefinitionOverriding = allow
		return nil
	}
}

// WithAllowCircularReferences tolerates circular module dependencies.
func WithAllowCircularReferences(allow bool) Option {
	return func(a *Application) error {
		a.settings.AllowCircularReferences = allow
		return nil
	}
}

// WithRegisterShutdownHook controls whether containers are registered with
// the shutdown hook.
func WithRegisterShutdownHook(register bool) Option {
	return func(a *Application) error {
		a.settings.RegisterShutdownHook = register
		return nil
	}
}

// WithLogStartupInfo controls the starting, profile and started log lines.
func WithLogStartupInfo(log bool) Option {
	return func(a *Application) error {
		a.settings.LogStartupInfo = log
		return nil
	}
}

// WithHeadless sets the value given to APP_HEADLESS when the process does
// not define it.
func WithHeadless(headless bool) Option {
	return func(a *Application) error {
		a.settings.Headless = headless
		return nil
	}
}

// WithAddCommandLineProperties controls whether arguments become the
// commandLineArgs property source.
func WithAddCommandLineProperties(add bool) Option {
	return func(a *Application) error {
		a.settings.AddCommandLineProperties = add
		return nil
	}
}

// WithDeploymentKind fixes the deployment kind, which selects the container
// and the environment flavour.
func WithDeploymentKind(kind container.DeploymentKind) Option {
	return func(a *Application) error {
		a.deploymentKind = kind
		return nil
	}
}

// WithFactory sets the container factory.
func WithFactory(factory container.Factory) Option {
	return func(a *Application) error {
		if factory == nil {
			return ErrNilFactory
		}
		a.factory = factory
		return nil
	}
}

// WithRegistry sets the extension registry. It defaults to registry.Default().
func WithRegistry(r *registry.Registry) Option {
	return func(a *Application) error {
		if r == nil {
			return ErrNilRegistry
		}
		a.registry = r
		return nil
	}
}

// WithShutdownHook sets the hook containers are registered with. It
// defaults to shutdown.Default(); nil disables registration.
func WithShutdownHook(hook *shutdown.Hook) Option {
	return func(a *Application) error {
		a.hook = hook
		return nil
	}
}

// WithExceptionHandlers sets the registry failures and exit codes are
// recorded in. It defaults to DefaultExceptionHandlers().
func WithExceptionHandlers(handlers *ExceptionHandlers) Option {
	return func(a *Application) error {
		a.handlers = handlers
		return nil
	}
}

// WithDefaultProperties sets properties of lowest precedence.
func WithDefaultProperties(props map[string]any) Option {
	return func(a *Application) error {
		if a.defaultProperties == nil {
			a.defaultProperties = make(map[string]any, len(props))
		}
		maps.Copy(a.defaultProperties, props)
		return nil
	}
}

// WithAdditionalProfiles activates profiles on top of configured ones.
func WithAdditionalProfiles(profiles ...string) Option {
	return func(a *Application) error {
		a.additionalProfiles = append(a.additionalProfiles, profiles...)
		return nil
	}
}

// WithEnvironment uses e instead of creating an environment per run. A
// custom environment is never converted to another kind.
func WithEnvironment(e *env.Environment) Option {
	return func(a *Application) error {
		if e == nil {
			return ErrNilEnvironment
		}
		a.environment = e
		return nil
	}
}

// WithEnvironmentPrefix sets the prefix of environment variables read by
// the systemEnvironment source, e.g. "MYAPP" reads MYAPP_SERVER_PORT for
// server.port.
func WithEnvironmentPrefix(prefix string) Option {
	return func(a *Application) error {
		a.environmentPrefix = prefix
		return nil
	}
}

// WithEnvironmentVariables makes the systemEnvironment source read vars
// instead of the process environment.
func WithEnvironmentVariables(vars map[string]string) Option {
	return func(a *Application) error {
		a.environmentVars = maps.Clone(vars)
		if a.environmentVars == nil {
			a.environmentVars = map[string]string{}
		}
		return nil
	}
}

// WithArgumentParser replaces the argument parser.
func WithArgumentParser(p ArgumentParser) Option {
	return func(a *Application) error {
		if p == nil {
			return ErrNilArgumentParser
		}
		a.argumentParser = p
		return nil
	}
}

// WithStartupCollector records startup steps with c.
func WithStartupCollector(c startup.Collector) Option {
	return func(a *Application) error {
		if c == nil {
			return ErrNilCollector
		}
		a.collector = c
		return nil
	}
}

// WithContextInitializers adds initializers applied to each container
// before it is loaded.
func WithContextInitializers(initializers ...ContextInitializer) Option {
	return func(a *Application) error {
		a.initializers = append(a.initializers, initializers...)
		return nil
	}
}

// WithBootstrapRegistryInitializers adds initializers run against the
// bootstrap registry at the start of each run.
func WithBootstrapRegistryInitializers(initializers ...BootstrapRegistryInitializer) Option {
	return func(a *Application) error {
		a.bootstrapInitializers = append(a.bootstrapInitializers, initializers...)
		return nil
	}
}

// WithObservers adds observers of the application's lifecycle events.
func WithObservers(observers ...Observer) Option {
	return func(a *Application) error {
		for _, o := range observers {
			if o == nil {
				return container.ErrObserverNil
			}
		}
		a.observers = append(a.observers, observers...)
		return nil
	}
}
