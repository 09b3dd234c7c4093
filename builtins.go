package launchpad

import (
	"github.com/GoCodeAlone/launchpad/container"
	"github.com/GoCodeAlone/launchpad/registry"
)

// Names of the built-in extensions.
const (
	EventPublishingListenerName = "event-publishing"
	ConfigDataListenerName      = "config-data"
	FailureAnalyzersName        = "failure-analyzers"
)

func init() {
	if err := RegisterBuiltins(registry.Default()); err != nil {
		panic(err)
	}
}

// RegisterBuiltins registers the built-in run listeners and exception
// reporter into r. registry.Default() has them already; applications using
// their own registry call this to get the same behaviour.
func RegisterBuiltins(r *registry.Registry) error {
	if err := r.Register(RunListenerCapability.Name, EventPublishingListenerName,
		registry.Constructor2(func(app *Application, args []string) (RunListener, error) {
			return NewEventPublishingRunListener(app, args)
		})); err != nil {
		return err
	}
	if err := r.Register(RunListenerCapability.Name, ConfigDataListenerName,
		registry.Constructor2(func(app *Application, _ []string) (RunListener, error) {
			return NewConfigDataListener(app.Logger()), nil
		})); err != nil {
		return err
	}
	return r.Register(ExceptionReporterCapability.Name, FailureAnalyzersName,
		registry.Constructor2(func(_ container.Container, logger Logger) (ExceptionReporter, error) {
			return NewAnalyzingExceptionReporter(logger), nil
		}))
}

func discoverRunListeners(a *Application, args []string) ([]RunListener, error) {
	return registry.Discover[RunListener](a.registry, RunListenerCapability, a, args)
}
