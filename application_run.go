package launchpad

import (
	"context"
	"fmt"
	"time"

	"github.com/GoCodeAlone/launchpad/container"
)

// run holds the state of one call to Run.
type run struct {
	args      []string
	startTime time.Time
	phase     Phase

	bootstrap *DefaultBootstrapContext
	listeners *RunListeners
	arguments Arguments
	container container.Container
}

// Run boots the application with the given raw arguments and returns the
// refreshed container.
//
// Any failure after the bootstrap registry is initialized goes through a
// single failure path: the exit code is computed and recorded, listeners are
// told, the failure is reported once, the container (if any) is closed and a
// *RunError wrapping the failure is returned. Errors from bootstrap registry
// initializers are returned as they are.
func (a *Application) Run(ctx context.Context, args ...string) (container.Container, error) {
	r := &run{args: args, startTime: time.Now(), phase: PhaseStarting}

	bootstrap, err := a.createBootstrapContext()
	if err != nil {
		return nil, err
	}
	r.bootstrap = bootstrap

	if err := guard(func() error { return a.start(ctx, r) }); err != nil {
		return nil, a.handleRunFailure(ctx, r.container, err, r.listeners, r.phase)
	}

	if r.container.IsActive() {
		elapsed := time.Since(r.startTime)
		if err := guard(func() error { return r.listeners.Ready(ctx, r.container, elapsed) }); err != nil {
			return nil, a.handleRunFailure(ctx, r.container, err, nil, r.phase)
		}
	}
	return r.container, nil
}

// Run creates an Application from sources and runs it with args.
func Run(ctx context.Context, sources []any, args ...string) (container.Container, error) {
	app, err := New(WithSources(sources...))
	if err != nil {
		return nil, err
	}
	return app.Run(ctx, args...)
}

func (a *Application) createBootstrapContext() (*DefaultBootstrapContext, error) {
	bootstrap := NewBootstrapContext()
	for _, initializer := range a.bootstrapInitializers {
		if err := initializer.Initialize(bootstrap); err != nil {
			return nil, fmt.Errorf("bootstrap registry initializer %T: %w", initializer, err)
		}
	}
	return bootstrap, nil
}

// start runs every phase up to and including the runners.
func (a *Application) start(ctx context.Context, r *run) error {
	listeners, err := a.runListeners(r.args)
	if err != nil {
		return err
	}
	r.listeners = listeners
	if err := listeners.Starting(ctx, r.bootstrap); err != nil {
		return err
	}

	r.phase = PhaseEnvironmentPrepared
	arguments, err := a.argumentParser.Parse(r.args)
	if err != nil {
		return err
	}
	r.arguments = arguments

	environment, err := a.prepareEnvironment(ctx, listeners, r.bootstrap, arguments)
	if err != nil {
		return err
	}
	if err := a.configureHeadless(); err != nil {
		return err
	}
	banner, err := a.printBanner(environment)
	if err != nil {
		return err
	}

	r.phase = PhaseContextPrepared
	c, err := a.createContainer()
	if err != nil {
		return err
	}
	r.container = c
	if err := a.prepareContext(ctx, r, c, environment, banner); err != nil {
		return err
	}

	r.phase = PhaseStarted
	if err := a.refreshContainer(ctx, c); err != nil {
		return err
	}
	elapsed := time.Since(r.startTime)
	if a.settings.LogStartupInfo {
		a.startupInfoLogger().LogStarted(elapsed)
	}
	if err := listeners.Started(ctx, c, elapsed); err != nil {
		return err
	}

	r.phase = PhaseReady
	return a.callRunners(ctx, c, arguments)
}

// runListeners discovers the run listeners for one run.
func (a *Application) runListeners(args []string) (*RunListeners, error) {
	discovered, err := discoverRunListeners(a, args)
	if err != nil {
		return nil, err
	}
	return NewRunListeners(a.logger, a.collector, discovered...), nil
}
