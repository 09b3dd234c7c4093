package launchpad

import (
	"context"
	"fmt"
	"time"

	"github.com/GoCodeAlone/launchpad/container"
	"github.com/GoCodeAlone/launchpad/env"
	"github.com/GoCodeAlone/launchpad/registry"
	"github.com/GoCodeAlone/launchpad/startup"
)

// RunListener is notified at each phase of Run. Implementations are
// discovered through the "run-listener" capability and constructed with the
// *Application and the raw argument slice. Returning an error from any method
// but Failed aborts the run.
type RunListener interface {
	// Starting is called as soon as Run begins.
	Starting(ctx context.Context, bootstrap BootstrapContext) error

	// EnvironmentPrepared is called once the environment exists and before
	// the container is created. Listeners may add, remove or reorder sources.
	EnvironmentPrepared(ctx context.Context, bootstrap BootstrapContext, e *env.Environment) error

	// ContextPrepared is called once the container is created and
	// initialized, before sources are loaded.
	ContextPrepared(ctx context.Context, c container.Container) error

	// ContextLoaded is called after sources are loaded, before refresh.
	ContextLoaded(ctx context.Context, c container.Container) error

	// Started is called after refresh and before runners are invoked.
	Started(ctx context.Context, c container.Container, elapsed time.Duration) error

	// Ready is called after runners have completed.
	Ready(ctx context.Context, c container.Container, elapsed time.Duration) error

	// Failed is called when the run fails. c is nil when the failure happened
	// before the container was created. Errors are logged and ignored.
	Failed(ctx context.Context, c container.Container, err error) error
}

// RunListenerCapability is the extension point run listeners are discovered from.
var RunListenerCapability = registry.CapabilityOf[RunListener]("run-listener")

// BaseRunListener implements every RunListener method as a no-op. Embed it
// to implement only the phases of interest.
type BaseRunListener struct{}

func (BaseRunListener) Starting(context.Context, BootstrapContext) error { return nil }

func (BaseRunListener) EnvironmentPrepared(context.Context, BootstrapContext, *env.Environment) error {
	return nil
}

func (BaseRunListener) ContextPrepared(context.Context, container.Container) error { return nil }

func (BaseRunListener) ContextLoaded(context.Context, container.Container) error { return nil }

func (BaseRunListener) Started(context.Context, container.Container, time.Duration) error {
	return nil
}

func (BaseRunListener) Ready(context.Context, container.Container, time.Duration) error {
	return nil
}

func (BaseRunListener) Failed(context.Context, container.Container, error) error { return nil }

// RunListeners fans each notification out to a fixed, ordered list of
// listeners and records a startup step around every notification.
type RunListeners struct {
	logger    Logger
	collector startup.Collector
	listeners []RunListener
}

// NewRunListeners creates the pipeline. listeners are notified in the order given.
func NewRunListeners(logger Logger, collector startup.Collector, listeners ...RunListener) *RunListeners {
	if logger == nil {
		logger = nopLogger{}
	}
	if collector == nil {
		collector = startup.Noop
	}
	return &RunListeners{logger: logger, collector: collector, listeners: listeners}
}

// Listeners returns the listeners in notification order.
func (l *RunListeners) Listeners() []RunListener {
	return append([]RunListener(nil), l.listeners...)
}

// Starting implements RunListener.
func (l *RunListeners) Starting(ctx context.Context, bootstrap BootstrapContext) error {
	return l.each("application.starting", func(r RunListener) error {
		return r.Starting(ctx, bootstrap)
	})
}

// EnvironmentPrepared implements RunListener.
func (l *RunListeners) EnvironmentPrepared(ctx context.Context, bootstrap BootstrapContext, e *env.Environment) error {
	return l.each("application.environment-prepared", func(r RunListener) error {
		return r.EnvironmentPrepared(ctx, bootstrap, e)
	})
}

// ContextPrepared implements RunListener.
func (l *RunListeners) ContextPrepared(ctx context.Context, c container.Container) error {
	return l.each("application.context-prepared", func(r RunListener) error {
		return r.ContextPrepared(ctx, c)
	})
}

// ContextLoaded implements RunListener.
func (l *RunListeners) ContextLoaded(ctx context.Context, c container.Container) error {
	return l.each("application.context-loaded", func(r RunListener) error {
		return r.ContextLoaded(ctx, c)
	})
}

// Started implements RunListener.
func (l *RunListeners) Started(ctx context.Context, c container.Container, elapsed time.Duration) error {
	return l.each("application.started", func(r RunListener) error {
		return r.Started(ctx, c, elapsed)
	})
}

// Ready implements RunListener.
func (l *RunListeners) Ready(ctx context.Context, c container.Container, elapsed time.Duration) error {
	return l.each("application.ready", func(r RunListener) error {
		return r.Ready(ctx, c, elapsed)
	})
}

// Failed notifies every listener of err. A listener that fails is logged and
// skipped; the result is always nil so the original failure stands.
func (l *RunListeners) Failed(ctx context.Context, c container.Container, err error) error {
	step := l.collector.Start("application.failed").
		Tag("error", fmt.Sprintf("%T", err)).
		Tag("message", err.Error())
	defer step.End()

	for _, listener := range l.listeners {
		if lerr := guard(func() error { return listener.Failed(ctx, c, err) }); lerr != nil {
			l.logger.Warn("Error handling failed", "listener", fmt.Sprintf("%T", listener), "error", lerr)
		}
	}
	return nil
}

func (l *RunListeners) each(stepName string, notify func(RunListener) error) error {
	step := l.collector.Start(stepName)
	defer step.End()

	for _, listener := range l.listeners {
		if err := guard(func() error { return notify(listener) }); err != nil {
			return fmt.Errorf("run listener %T: %w", listener, err)
		}
	}
	return nil
}
