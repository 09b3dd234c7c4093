package launchpad

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/launchpad/container"
	"github.com/GoCodeAlone/launchpad/registry"
	"github.com/GoCodeAlone/launchpad/startup"
)

type bootstrapToken struct {
	value string
}

func TestBootstrapContextClosedIntoContainer(t *testing.T) {
	f := newFixture(t)
	var seenAtStart string
	var closedContext BootstrapContext

	f.addListener("token-reader", &funcListener{
		starting: func(b BootstrapContext) error {
			token, err := GetType[*bootstrapToken](b)
			if err != nil {
				return err
			}
			seenAtStart = token.value
			return nil
		},
	})
	app := f.newApp(
		WithBootstrapRegistryInitializers(BootstrapRegistryInitializerFunc(func(r BootstrapRegistry) error {
			if err := RegisterType[*bootstrapToken](r, Instance(&bootstrapToken{value: "abc"})); err != nil {
				return err
			}
			r.AddCloseListener(BootstrapCloseListenerFunc(func(event BootstrapContextClosedEvent) error {
				closedContext = event.Context
				token, err := GetType[*bootstrapToken](event.Context)
				if err != nil {
					return err
				}
				return event.Container.RegisterSingleton("token", token)
			}))
			return nil
		})),
		WithSources(&recordingModule{name: "db"}),
	)

	c, err := app.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", seenAtStart)

	bean, err := c.Bean("token")
	require.NoError(t, err)
	assert.Equal(t, "abc", bean.(*bootstrapToken).value)

	require.NotNil(t, closedContext)
	_, err = closedContext.Get(reflect.TypeFor[*bootstrapToken]())
	assert.ErrorIs(t, err, ErrBootstrapContextClosed)
}

func TestBootstrapInitializerErrorIsReturnedAsIs(t *testing.T) {
	f := newFixture(t)
	broken := errors.New("no vault")
	factory := &countingFactory{}
	app := f.newApp(
		WithFactory(factory),
		WithBootstrapRegistryInitializers(BootstrapRegistryInitializerFunc(func(BootstrapRegistry) error {
			return broken
		})),
		WithSources(&recordingModule{name: "db"}),
	)

	_, err := app.Run(context.Background())
	require.ErrorIs(t, err, broken)
	var runErr *RunError
	assert.False(t, errors.As(err, &runErr))
	assert.Empty(t, factory.created)
	assert.Empty(t, f.events.Types())
}

func TestRegisteredBootstrapInitializersDiscovered(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.registry.Register(BootstrapRegistryInitializerCapability.Name, "token",
		registry.Supplier(func() BootstrapRegistryInitializer {
			return BootstrapRegistryInitializerFunc(func(r BootstrapRegistry) error {
				return RegisterType[*bootstrapToken](r, Instance(&bootstrapToken{value: "discovered"}))
			})
		})))

	var value string
	f.addListener("token-reader", &funcListener{
		starting: func(b BootstrapContext) error {
			token, err := GetType[*bootstrapToken](b)
			if err != nil {
				return err
			}
			value = token.value
			return nil
		},
	})
	_, err := f.newApp(WithSources(&recordingModule{name: "db"})).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "discovered", value)
}

func TestListenerDiscoveryFailureSkipsListeners(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.registry.Register(RunListenerCapability.Name, "broken",
		registry.Constructor2(func(*Application, []string) (RunListener, error) {
			return nil, errors.New("listener unavailable")
		})))

	_, err := f.newApp(WithSources(&recordingModule{name: "db"})).Run(context.Background())
	require.ErrorIs(t, err, registry.ErrCannotInstantiate)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, PhaseStarting, runErr.Phase)

	assert.Empty(t, f.events.Types())
	assert.Equal(t, 1, f.logs.FilterMessageSnippet("APPLICATION FAILED TO START").Len())
}

func TestListenerErrorAbortsRun(t *testing.T) {
	f := newFixture(t)
	refused := errors.New("refused")
	var failedWith error
	f.addListener("refusing", &funcListener{
		starting: func(BootstrapContext) error { return refused },
		failed: func(_ container.Container, err error) error {
			failedWith = err
			return nil
		},
	})

	_, err := f.newApp(WithSources(&recordingModule{name: "db"})).Run(context.Background())
	require.ErrorIs(t, err, refused)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, PhaseStarting, runErr.Phase)
	assert.ErrorIs(t, failedWith, refused)
	assert.Equal(t, []string{EventTypeApplicationStarting, EventTypeApplicationFailed}, f.events.Types())
}

func TestFailedListenersAreIsolated(t *testing.T) {
	f := newFixture(t)
	var notified []string
	f.addListener("panicking", &funcListener{
		order: -100,
		failed: func(container.Container, error) error {
			notified = append(notified, "panicking")
			panic("listener bug")
		},
	})
	f.addListener("erroring", &funcListener{
		order: -50,
		failed: func(container.Container, error) error {
			notified = append(notified, "erroring")
			return errors.New("listener failed too")
		},
	})
	f.addListener("healthy", &funcListener{
		failed: func(container.Container, error) error {
			notified = append(notified, "healthy")
			return nil
		},
	})

	boom := errors.New("boom")
	app := f.newApp(WithSources(container.Bean{Name: "failing", Instance: ApplicationRunnerFunc(func(context.Context, Arguments) error {
		return boom
	})}))

	_, err := app.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"panicking", "erroring", "healthy"}, notified)
	assert.Equal(t, 2, f.logs.FilterMessage("Error handling failed").Len())
	assert.True(t, f.handler().IsLogged(err))
}

func TestReadyFailureSkipsFailedListeners(t *testing.T) {
	f := newFixture(t)
	factory := &countingFactory{}
	notReady := errors.New("not ready")
	failedCalls := 0
	f.addListener("ready-check", &funcListener{
		ready: func(container.Container) error { return notReady },
		failed: func(container.Container, error) error {
			failedCalls++
			return nil
		},
	})

	c, err := f.newApp(WithFactory(factory), WithSources(&recordingModule{name: "db"})).Run(context.Background())
	assert.Nil(t, c)
	require.ErrorIs(t, err, notReady)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, PhaseReady, runErr.Phase)

	assert.Zero(t, failedCalls)
	assert.Empty(t, f.events.OfType(EventTypeApplicationFailed))
	require.Len(t, factory.created, 1)
	assert.Equal(t, 1, factory.created[0].closes)
	assert.False(t, f.hook.IsRegistered(factory.created[0]))
}

func TestPanicDuringRunIsAFailure(t *testing.T) {
	f := newFixture(t)
	app := f.newApp(WithSources(&recordingModule{name: "db", onInit: func(container.Container) error {
		panic("init exploded")
	}}))

	_, err := app.Run(context.Background())
	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "init exploded", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, PhaseStarted, runErr.Phase)
}

func TestExceptionReportersDiscoveredPerFailure(t *testing.T) {
	f := newFixture(t)
	var reported []string
	require.NoError(t, f.registry.Register(ExceptionReporterCapability.Name, "recording",
		registry.Constructor2(func(c container.Container, _ Logger) (ExceptionReporter, error) {
			return exceptionReporterFunc(func(failure error) (bool, error) {
				reported = append(reported, failure.Error())
				return c != nil, nil
			}), nil
		})))

	boom := errors.New("boom")
	app := f.newApp(WithSources(container.Bean{Name: "failing", Instance: ApplicationRunnerFunc(func(context.Context, Arguments) error {
		return boom
	})}))
	_, err := app.Run(context.Background())
	require.ErrorIs(t, err, boom)

	require.Len(t, reported, 1)
	assert.Contains(t, reported[0], "boom")
	assert.Zero(t, f.logs.FilterMessage("Application run failed").Len())
	assert.True(t, f.handler().IsLogged(err))
}

type exceptionReporterFunc func(failure error) (bool, error)

func (f exceptionReporterFunc) Report(failure error) (bool, error) { return f(failure) }

func TestStartupStepsRecorded(t *testing.T) {
	f := newFixture(t)
	steps := startup.NewBuffering(0)
	_, err := f.newApp(WithStartupCollector(steps), WithSources(&recordingModule{name: "db"})).Run(context.Background())
	require.NoError(t, err)

	var names []string
	for _, r := range steps.Records() {
		if strings.HasPrefix(r.Name, "application.") || r.Name == "container.refresh" {
			names = append(names, r.Name)
		}
	}
	assert.Equal(t, []string{
		"application.starting",
		"application.environment-prepared",
		"application.context-prepared",
		"application.context-loaded",
		"container.refresh",
		"application.started",
		"application.ready",
	}, names)
	assert.True(t, slices.ContainsFunc(steps.Records(), func(r startup.Record) bool {
		return r.Name == "container.module.init" && r.Tags["module"] == "db"
	}))
}

func TestFailedStepTagged(t *testing.T) {
	f := newFixture(t)
	steps := startup.NewBuffering(0)
	_, err := f.newApp(WithStartupCollector(steps)).Run(context.Background())
	require.ErrorIs(t, err, ErrNoSources)

	i := slices.IndexFunc(steps.Records(), func(r startup.Record) bool { return r.Name == "application.failed" })
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, ErrNoSources.Error(), steps.Records()[i].Tags["message"])
}

type exitEventPanicContainer struct {
	*container.StdContainer
}

func (c *exitEventPanicContainer) PublishEvent(ctx context.Context, event cloudevents.Event) error {
	if event.Type() == EventTypeExitCode {
		panic("event bus unavailable")
	}
	return c.StdContainer.PublishEvent(ctx, event)
}

type exitEventPanicFactory struct {
	container.DefaultFactory
	created *exitEventPanicContainer
}

func (f *exitEventPanicFactory) Create(container.DeploymentKind) (container.Container, error) {
	f.created = &exitEventPanicContainer{StdContainer: container.NewStdContainer(nil)}
	return f.created, nil
}

func TestExitCodePanicStillNotifiesAndReports(t *testing.T) {
	f := newFixture(t)
	var failedCalls int
	f.addListener("failure-counter", &funcListener{
		failed: func(container.Container, error) error {
			failedCalls++
			return nil
		},
	})
	factory := &exitEventPanicFactory{}
	boom := errors.New("boom")
	app := f.newApp(WithFactory(factory), WithSources(
		container.Bean{Name: "failing", Instance: ApplicationRunnerFunc(func(context.Context, Arguments) error {
			return NewExitError(7, boom)
		})},
	))

	_, err := app.Run(context.Background())
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 1, failedCalls)
	assert.Equal(t, 7, f.handler().ExitCode())
	assert.True(t, f.handler().IsLogged(err))
	assert.Equal(t, 1, f.logs.FilterMessage("Application run failed").Len())
	assert.Equal(t, 1, f.logs.FilterMessage("Unable to handle exit code").Len())
	require.NotNil(t, factory.created)
	assert.False(t, factory.created.IsActive())
}

type handlerFieldRunner struct {
	handler any
	calls   *int
}

func (r handlerFieldRunner) Run(context.Context, Arguments) error {
	*r.calls++
	return nil
}

func TestRunnerWithUnhashableFieldIsCalled(t *testing.T) {
	f := newFixture(t)
	calls := 0
	runner := handlerFieldRunner{handler: func() {}, calls: &calls}
	app := f.newApp(WithSources(container.Bean{Name: "handler-runner", Instance: runner}))

	_, err := app.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestExitPublishesUnderApplicationSource(t *testing.T) {
	f := newFixture(t)
	app := f.newApp(WithSources(&recordingModule{name: "db"}))
	c, err := app.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, Exit(context.Background(), c, ExitCodeGeneratorFunc(func() int { return 4 })))
	exits := f.events.OfType(EventTypeExitCode)
	require.Len(t, exits, 1)
	assert.Equal(t, app.EventSource(), exits[0].Source())
}
