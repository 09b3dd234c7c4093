// Package launchpad boots an application through a fixed sequence of
// phases: it builds a layered configuration environment, creates and
// refreshes the main container, runs post-start runners and, when anything
// goes wrong, follows a single failure path that computes a process exit
// code.
//
// Extension points (run listeners, exception reporters, bootstrap registry
// initializers, context initializers) are discovered through a
// registry.Registry, so independently developed plugins take part in every
// run in a deterministic order.
//
// Basic usage:
//
//	app, err := launchpad.New(
//		launchpad.WithSources(&DatabaseModule{}, &WebModule{}),
//		launchpad.WithDefaultProperties(map[string]any{"server.port": 8080}),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	c, err := app.Run(ctx, os.Args[1:]...)
package launchpad

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/GoCodeAlone/launchpad/container"
	"github.com/GoCodeAlone/launchpad/env"
	"github.com/GoCodeAlone/launchpad/registry"
	"github.com/GoCodeAlone/launchpad/shutdown"
	"github.com/GoCodeAlone/launchpad/startup"
)

const (
	// SettingsPrefix is the property prefix bound onto Settings.
	SettingsPrefix = "app.main"

	// EnvironmentPrefixProperty may not be set from any property source; the
	// prefix is fixed before the environment exists.
	EnvironmentPrefixProperty = "app.main.environment-prefix"

	// HeadlessEnv is the process flag set from Settings.Headless when absent.
	HeadlessEnv = "APP_HEADLESS"

	// ArgumentsBeanName is the container singleton holding the Arguments.
	ArgumentsBeanName = "applicationArguments"

	// BannerBeanName is the container singleton holding the printed Banner.
	BannerBeanName = "banner"

	// EventSourceBeanName is the container singleton holding the CloudEvents
	// source of the application's events.
	EventSourceBeanName = "launchpadEventSource"
)

// Phase is a stage of a run.
type Phase int

const (
	PhaseStarting Phase = iota
	PhaseEnvironmentPrepared
	PhaseContextPrepared
	PhaseContextLoaded
	PhaseStarted
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseEnvironmentPrepared:
		return "environment-prepared"
	case PhaseContextPrepared:
		return "context-prepared"
	case PhaseContextLoaded:
		return "context-loaded"
	case PhaseStarted:
		return "started"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Settings are the mutable run settings. They start from options and are
// re-bound from app.main.* properties once the environment is prepared, so
// APP_MAIN_BANNER_MODE=off or --app.main.lazy-initialization=true override
// what the code configured.
type Settings struct {
	BannerMode                BannerMode `mapstructure:"banner-mode"`
	LazyInitialization        bool       `mapstructure:"lazy-initialization"`
	AllowDefinitionOverriding bool       `mapstructure:"allow-definition-overriding"`
	AllowCircularReferences   bool       `mapstructure:"allow-circular-references"`
	RegisterShutdownHook      bool       `mapstructure:"register-shutdown-hook"`
	LogStartupInfo            bool       `mapstructure:"log-startup-info"`
	Headless                  bool       `mapstructure:"headless"`
	AddCommandLineProperties  bool       `mapstructure:"add-command-line-properties"`

	// Sources names additional container sources registered under the
	// "source" capability.
	Sources []string `mapstructure:"sources"`
}

// DefaultSettings returns the settings an Application starts with.
func DefaultSettings() Settings {
	return Settings{
		BannerMode:               BannerConsole,
		RegisterShutdownHook:     true,
		LogStartupInfo:           true,
		Headless:                 true,
		AddCommandLineProperties: true,
	}
}

// Capabilities discovered from the registry besides RunListenerCapability.
var (
	ExceptionReporterCapability            = registry.CapabilityOf[ExceptionReporter]("exception-reporter")
	BootstrapRegistryInitializerCapability = registry.CapabilityOf[BootstrapRegistryInitializer]("bootstrap-registry-initializer")
	ContextInitializerCapability           = registry.CapabilityOf[ContextInitializer]("context-initializer")
	SourceCapability                       = registry.CapabilityOf[any]("source")
)

// Application drives runs. Configure it with options and call Run; an
// Application may be run more than once, each run creating its own
// container.
type Application struct {
	logger   Logger
	name     string
	settings Settings

	primarySources []any
	deploymentKind container.DeploymentKind
	factory        container.Factory
	registry       *registry.Registry
	hook           *shutdown.Hook
	handlers       *ExceptionHandlers

	defaultProperties  map[string]any
	additionalProfiles []string
	environment        *env.Environment
	environmentPrefix  string
	environmentVars    map[string]string

	argumentParser ArgumentParser
	banner         Banner
	bannerOut      io.Writer
	collector      startup.Collector

	bootstrapInitializers []BootstrapRegistryInitializer
	initializers          []ContextInitializer
	observers             []Observer
}

// New creates an Application. Bootstrap registry initializers and context
// initializers registered in the registry are discovered here and run
// before any passed as options.
func New(opts ...Option) (*Application, error) {
	a := &Application{
		name:           defaultName(),
		settings:       DefaultSettings(),
		registry:       registry.Default(),
		hook:           shutdown.Default(),
		handlers:       DefaultExceptionHandlers(),
		argumentParser: DefaultArgumentParser{},
		bannerOut:      os.Stdout,
		collector:      startup.Noop,
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	if a.logger == nil {
		a.logger = DefaultLogger()
	}
	if a.factory == nil {
		a.factory = container.DefaultFactory{Logger: a.logger}
	}

	bootstrapInitializers, err := registry.Discover[BootstrapRegistryInitializer](a.registry, BootstrapRegistryInitializerCapability)
	if err != nil {
		return nil, err
	}
	a.bootstrapInitializers = append(bootstrapInitializers, a.bootstrapInitializers...)

	initializers, err := registry.Discover[ContextInitializer](a.registry, ContextInitializerCapability)
	if err != nil {
		return nil, err
	}
	a.initializers = append(initializers, a.initializers...)

	return a, nil
}

func defaultName() string {
	if len(os.Args) == 0 {
		return "application"
	}
	return strings.TrimSuffix(filepath.Base(os.Args[0]), filepath.Ext(os.Args[0]))
}

// Name returns the application name used in logs, events and banners.
func (a *Application) Name() string { return a.name }

// Logger returns the application logger.
func (a *Application) Logger() Logger { return a.logger }

// Settings returns a copy of the current settings.
func (a *Application) Settings() Settings {
	s := a.settings
	s.Sources = slices.Clone(s.Sources)
	return s
}

// Registry returns the extension registry.
func (a *Application) Registry() *registry.Registry { return a.registry }

// DeploymentKind returns the deployment kind fixed at construction.
func (a *Application) DeploymentKind() container.DeploymentKind { return a.deploymentKind }

// Observers returns the observers added with WithObservers.
func (a *Application) Observers() []Observer { return slices.Clone(a.observers) }

// AdditionalProfiles returns the profiles activated on top of configured ones.
func (a *Application) AdditionalProfiles() []string { return slices.Clone(a.additionalProfiles) }

// EventSource is the CloudEvents source of launcher events.
func (a *Application) EventSource() string { return "launchpad/" + a.name }

// ContextInitializers returns the initializers applied to each container, in
// application order.
func (a *Application) ContextInitializers() []ContextInitializer {
	out := slices.Clone(a.initializers)
	registry.SortStable(out)
	return out
}
