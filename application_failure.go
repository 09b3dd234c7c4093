package launchpad

import (
	"context"
	"errors"
	"fmt"

	"github.com/GoCodeAlone/launchpad/container"
	"github.com/GoCodeAlone/launchpad/registry"
)

// handleRunFailure is the single failure path of a run. It records the
// exit code, notifies listeners (when they exist), reports the failure once,
// closes the container and returns the error Run hands to its caller.
func (a *Application) handleRunFailure(ctx context.Context, c container.Container, failure error, listeners *RunListeners, phase Phase) error {
	if err := guard(func() error {
		a.handleExitCode(ctx, c, failure)
		return nil
	}); err != nil {
		a.logger.Warn("Unable to handle exit code", "error", err)
	}
	if listeners != nil {
		if err := guard(func() error { return listeners.Failed(ctx, c, failure) }); err != nil {
			a.logger.Warn("Unable to notify failed listeners", "error", err)
		}
	}
	if err := guard(func() error {
		a.reportFailure(c, failure)
		return nil
	}); err != nil {
		a.logger.Warn("Unable to report run failure", "error", err)
		a.logger.Error("Application run failed", "error", failure)
		if h := a.exceptionHandler(); h != nil {
			h.RegisterLoggedError(failure)
		}
	}

	if c != nil {
		if err := c.Close(); err != nil {
			a.logger.Warn("Unable to close container", "error", err)
		}
		if a.hook != nil {
			if err := a.hook.DeregisterFailedContainer(c); err != nil {
				a.logger.Warn("Unable to deregister failed container", "error", err)
			}
		}
	}
	return &RunError{Phase: phase, Err: failure}
}

func (a *Application) handleExitCode(ctx context.Context, c container.Container, failure error) {
	code := a.exitCodeFromError(c, failure)
	if code == 0 {
		return
	}
	if h := a.exceptionHandler(); h != nil {
		h.RegisterExitCode(code)
	}
	if c != nil {
		if err := c.PublishEvent(ctx, NewExitCodeEvent(a.EventSource(), code)); err != nil {
			a.logger.Warn("Observer failed handling exit code event", "error", err)
		}
	}
}

// exitCodeFromError prefers the container's exception mappers and falls
// back to the first ExitCoder in the error's wrap chain.
func (a *Application) exitCodeFromError(c container.Container, failure error) int {
	code := a.exitCodeFromMappers(c, failure)
	if code == 0 {
		code = exitCodeFromCause(failure)
	}
	return code
}

func (a *Application) exitCodeFromMappers(c container.Container, failure error) int {
	if c == nil || !c.IsActive() {
		return 0
	}
	mappers, err := container.BeansOfType[ExitCodeExceptionMapper](c)
	if err != nil {
		a.logger.Debug("Unable to collect exit code mappers", "error", err)
		return 0
	}
	var generators ExitCodeGenerators
	generators.AddMappers(failure, mappers...)
	return generators.ExitCode()
}

func exitCodeFromCause(failure error) int {
	var coder ExitCoder
	if errors.As(failure, &coder) {
		return coder.ExitCode()
	}
	return 0
}

func (a *Application) reportFailure(c container.Container, failure error) {
	handler := a.exceptionHandler()
	for _, reporter := range a.exceptionReporters(c) {
		var reported bool
		err := guard(func() error {
			var rerr error
			reported, rerr = reporter.Report(failure)
			return rerr
		})
		if err != nil {
			a.logger.Debug("Exception reporter failed", "reporter", fmt.Sprintf("%T", reporter), "error", err)
			continue
		}
		if reported {
			if handler != nil {
				handler.RegisterLoggedError(failure)
			}
			return
		}
	}

	a.logger.Error("Application run failed", "error", failure)
	if handler != nil {
		handler.RegisterLoggedError(failure)
	}
}

// exceptionReporters resolves reporters afresh; a lookup failure means there
// are none.
func (a *Application) exceptionReporters(c container.Container) []ExceptionReporter {
	reporters, err := registry.Discover[ExceptionReporter](a.registry, ExceptionReporterCapability, c, a.logger)
	if err != nil {
		a.logger.Debug("Unable to resolve exception reporters", "error", err)
		return nil
	}
	return reporters
}
