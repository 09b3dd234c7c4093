package launchpad

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/GoCodeAlone/launchpad/env"
)

// ApplicationCommandLineSourceName is the name arguments of this run take
// inside a commandLineArgs composite when a source of that name already
// exists.
const ApplicationCommandLineSourceName = "applicationCommandLineArgs"

// prepareEnvironment builds the environment for a run and announces it to
// listeners. Defaults end up last, Settings are re-bound from app.main.* and
// the environment is converted to the deployment's kind.
func (a *Application) prepareEnvironment(ctx context.Context, listeners *RunListeners, bootstrap BootstrapContext, args Arguments) (*env.Environment, error) {
	e := a.getOrCreateEnvironment()
	if err := a.configureEnvironment(e, args.SourceArgs()); err != nil {
		return nil, err
	}
	env.Attach(e)

	if err := listeners.EnvironmentPrepared(ctx, bootstrap, e); err != nil {
		return nil, err
	}
	env.MoveToEnd(e.Sources())

	if e.ContainsProperty(EnvironmentPrefixProperty) {
		return nil, ErrEnvironmentPrefixProperty
	}
	if err := a.bindToApplication(e); err != nil {
		return nil, err
	}

	if a.environment == nil {
		e = env.Convert(e, a.factory.EnvironmentKind(a.deploymentKind))
	}
	env.Attach(e)
	return e, nil
}

func (a *Application) getOrCreateEnvironment() *env.Environment {
	if a.environment != nil {
		return a.environment
	}
	opts := []env.Option{env.WithPrefix(a.environmentPrefix)}
	if a.environmentVars != nil {
		opts = append(opts, env.WithVariables(a.environmentVars))
	}
	return env.New(a.factory.EnvironmentKind(a.deploymentKind), opts...)
}

// configureEnvironment adds the default properties and the command line
// source, then activates additional profiles.
func (a *Application) configureEnvironment(e *env.Environment, rawArgs []string) error {
	if err := a.configurePropertySources(e, rawArgs); err != nil {
		return err
	}
	for _, profile := range a.additionalProfiles {
		e.AddActiveProfile(profile)
	}
	return nil
}

func (a *Application) configurePropertySources(e *env.Environment, rawArgs []string) error {
	sources := e.Sources()
	env.AddOrMerge(a.defaultProperties, sources)

	if !a.settings.AddCommandLineProperties || len(rawArgs) == 0 {
		return nil
	}
	parsed, err := env.ParseArgs(rawArgs)
	if err != nil {
		return err
	}

	existing := sources.Get(env.CommandLineSourceName)
	if existing == nil {
		sources.AddFirst(env.NewCommandLinePropertySource(parsed))
		return nil
	}
	composite := env.NewCompositePropertySource(env.CommandLineSourceName,
		env.NewNamedCommandLinePropertySource(ApplicationCommandLineSourceName, parsed),
		existing,
	)
	return sources.Replace(env.CommandLineSourceName, composite)
}

func (a *Application) bindToApplication(e *env.Environment) error {
	settings := a.settings
	if err := env.Bind(e, SettingsPrefix, &settings); err != nil {
		return fmt.Errorf("%w: %w", ErrBindSettings, err)
	}
	a.settings = settings
	return nil
}

// configureHeadless sets HeadlessEnv from the settings unless the process
// already defines it.
func (a *Application) configureHeadless() error {
	if _, ok := os.LookupEnv(HeadlessEnv); ok {
		return nil
	}
	return os.Setenv(HeadlessEnv, strconv.FormatBool(a.settings.Headless))
}
