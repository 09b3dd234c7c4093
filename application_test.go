package launchpad

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	zapobserver "go.uber.org/zap/zaptest/observer"

	"github.com/GoCodeAlone/launchpad/container"
	"github.com/GoCodeAlone/launchpad/env"
	"github.com/GoCodeAlone/launchpad/registry"
	"github.com/GoCodeAlone/launchpad/shutdown"
)

// fixture isolates a run from process-wide state: its own registry, hook,
// exception handlers, environment variables and config directory.
type fixture struct {
	t         *testing.T
	registry  *registry.Registry
	hook      *shutdown.Hook
	handlers  *ExceptionHandlers
	logger    Logger
	logs      *zapobserver.ObservedLogs
	events    *eventRecorder
	configDir string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv(HeadlessEnv, "true")

	r := registry.NewRegistry()
	require.NoError(t, RegisterBuiltins(r))

	hook := shutdown.NewHook()
	hook.SetInstallEnabled(false)

	core, logs := zapobserver.New(zapcore.DebugLevel)
	return &fixture{
		t:         t,
		registry:  r,
		hook:      hook,
		handlers:  NewExceptionHandlers(),
		logger:    NewZapLogger(zap.New(core)),
		logs:      logs,
		events:    &eventRecorder{},
		configDir: t.TempDir(),
	}
}

func (f *fixture) options(extra ...Option) []Option {
	return append([]Option{
		WithName("test-app"),
		WithLogger(f.logger),
		WithRegistry(f.registry),
		WithShutdownHook(f.hook),
		WithExceptionHandlers(f.handlers),
		WithBannerMode(BannerOff),
		WithEnvironmentVariables(map[string]string{}),
		WithDefaultProperties(map[string]any{ConfigLocationProperty: f.configDir}),
		WithObservers(f.events),
	}, extra...)
}

func (f *fixture) newApp(opts ...Option) *Application {
	f.t.Helper()
	app, err := New(f.options(opts...)...)
	require.NoError(f.t, err)
	return app
}

func (f *fixture) addListener(name string, l RunListener) {
	f.t.Helper()
	require.NoError(f.t, f.registry.Register(RunListenerCapability.Name, name,
		registry.Constructor2(func(*Application, []string) (RunListener, error) { return l, nil })))
}

func (f *fixture) handler() *ExceptionHandler { return f.handlers.For(MainHandlerKey) }

type eventRecorder struct {
	mu     sync.Mutex
	events []cloudevents.Event
}

func (r *eventRecorder) ObserverID() string { return "test-recorder" }

func (r *eventRecorder) OnEvent(_ context.Context, event cloudevents.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *eventRecorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type()
	}
	return types
}

func (r *eventRecorder) OfType(eventType string) []cloudevents.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []cloudevents.Event
	for _, e := range r.events {
		if e.Type() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// funcListener is a RunListener whose callbacks are optional.
type funcListener struct {
	order               int
	starting            func(BootstrapContext) error
	environmentPrepared func(*env.Environment) error
	contextPrepared     func(container.Container) error
	ready               func(container.Container) error
	failed              func(container.Container, error) error
}

func (l *funcListener) Order() int { return l.order }

func (l *funcListener) Starting(_ context.Context, b BootstrapContext) error {
	if l.starting == nil {
		return nil
	}
	return l.starting(b)
}

func (l *funcListener) EnvironmentPrepared(_ context.Context, _ BootstrapContext, e *env.Environment) error {
	if l.environmentPrepared == nil {
		return nil
	}
	return l.environmentPrepared(e)
}

func (l *funcListener) ContextPrepared(_ context.Context, c container.Container) error {
	if l.contextPrepared == nil {
		return nil
	}
	return l.contextPrepared(c)
}

func (l *funcListener) ContextLoaded(context.Context, container.Container) error { return nil }

func (l *funcListener) Started(context.Context, container.Container, time.Duration) error {
	return nil
}

func (l *funcListener) Ready(_ context.Context, c container.Container, _ time.Duration) error {
	if l.ready == nil {
		return nil
	}
	return l.ready(c)
}

func (l *funcListener) Failed(_ context.Context, c container.Container, err error) error {
	if l.failed == nil {
		return nil
	}
	return l.failed(c, err)
}

type recordingModule struct {
	name    string
	journal *[]string
	onInit  func(c container.Container) error
}

func (m *recordingModule) Name() string { return m.name }

func (m *recordingModule) Init(c container.Container) error {
	if m.journal != nil {
		*m.journal = append(*m.journal, "init:"+m.name)
	}
	if m.onInit != nil {
		return m.onInit(c)
	}
	return nil
}

// countingContainer counts Close calls on a StdContainer.
type countingContainer struct {
	*container.StdContainer
	closes int
}

func (c *countingContainer) Close() error {
	c.closes++
	return c.StdContainer.Close()
}

type countingFactory struct {
	container.DefaultFactory
	created []*countingContainer
}

func (f *countingFactory) Create(container.DeploymentKind) (container.Container, error) {
	c := &countingContainer{StdContainer: container.NewStdContainer(nil)}
	f.created = append(f.created, c)
	return c, nil
}

func TestNewAppliesOptionsAndDefaults(t *testing.T) {
	f := newFixture(t)
	app := f.newApp(WithAdditionalProfiles("dev"), WithDeploymentKind(container.DeploymentServer))

	assert.Equal(t, "test-app", app.Name())
	assert.Equal(t, "launchpad/test-app", app.EventSource())
	assert.Equal(t, []string{"dev"}, app.AdditionalProfiles())
	assert.Equal(t, container.DeploymentServer, app.DeploymentKind())
	assert.Same(t, f.registry, app.Registry())
	assert.Len(t, app.Observers(), 1)

	settings := app.Settings()
	assert.Equal(t, BannerOff, settings.BannerMode)
	assert.True(t, settings.RegisterShutdownHook)
	assert.True(t, settings.AddCommandLineProperties)
	assert.False(t, settings.LazyInitialization)
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		want error
	}{
		{"nil factory", WithFactory(nil), ErrNilFactory},
		{"nil registry", WithRegistry(nil), ErrNilRegistry},
		{"nil environment", WithEnvironment(nil), ErrNilEnvironment},
		{"nil parser", WithArgumentParser(nil), ErrNilArgumentParser},
		{"nil collector", WithStartupCollector(nil), ErrNilCollector},
		{"nil observer", WithObservers(nil), container.ErrObserverNil},
		{"bad banner mode", WithBannerMode(BannerMode(9)), ErrInvalidBannerMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(WithRegistry(registry.NewRegistry()), tt.opt)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRunPublishesLifecycleEventsInOrder(t *testing.T) {
	f := newFixture(t)
	var journal []string
	app := f.newApp(WithSources(&recordingModule{name: "db", journal: &journal}))

	c, err := app.Run(context.Background(), "serve", "--port=8080")
	require.NoError(t, err)
	require.True(t, c.IsActive())

	assert.Equal(t, []string{
		EventTypeApplicationStarting,
		EventTypeApplicationEnvironmentPrepared,
		EventTypeApplicationContextPrepared,
		EventTypeApplicationContextLoaded,
		container.EventTypeContainerRefreshed,
		EventTypeApplicationStarted,
		EventTypeApplicationReady,
	}, f.events.Types())
	assert.Equal(t, []string{"init:db"}, journal)
	assert.True(t, f.hook.IsRegistered(c))

	raw, err := c.Bean(ArgumentsBeanName)
	require.NoError(t, err)
	args := raw.(Arguments)
	assert.Equal(t, []string{"serve"}, args.NonOptionArgs())
	assert.Equal(t, []string{"8080"}, args.OptionValues("port"))

	port, ok, err := c.Environment().GetString("port")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "8080", port)

	assert.Equal(t, 1, f.logs.FilterMessage("Starting test-app").Len())
	assert.Equal(t, 1, f.logs.FilterMessageSnippet("No active profile set").Len())
	assert.Equal(t, 1, f.logs.FilterMessageSnippet("Started test-app in").Len())

	assert.Equal(t, 0, Exit(context.Background(), c))
	assert.False(t, c.IsActive())
	types := f.events.Types()
	assert.Equal(t, container.EventTypeContainerClosed, types[len(types)-1])
}

func TestRunCallsRunnersInOrder(t *testing.T) {
	f := newFixture(t)
	var journal []string
	both := &dualRunner{journal: &journal}
	app := f.newApp(WithSources(
		container.Bean{Name: "late", Instance: &orderedRunner{name: "late", order: 10, journal: &journal}},
		container.Bean{Name: "early", Instance: &orderedRunner{name: "early", order: -5, journal: &journal}},
		container.Bean{Name: "both", Instance: both},
		container.Bean{Name: "both-again", Instance: both},
		container.Bean{Name: "cmd", Instance: CommandLineRunnerFunc(func(_ context.Context, args []string) error {
			journal = append(journal, "cmd:"+strings.Join(args, " "))
			return nil
		})},
	))

	_, err := app.Run(context.Background(), "run", "--verbose")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"early:run",
		"late:run",
		"both:app",
		"both:cmd:run --verbose",
		"cmd:run --verbose",
	}, journal)
}

type orderedRunner struct {
	name    string
	order   int
	journal *[]string
}

func (r *orderedRunner) Order() int { return r.order }

func (r *orderedRunner) Run(_ context.Context, args Arguments) error {
	*r.journal = append(*r.journal, r.name+":"+strings.Join(args.NonOptionArgs(), ","))
	return nil
}

type dualRunner struct {
	journal *[]string
}

func (r *dualRunner) Run(context.Context, Arguments) error {
	*r.journal = append(*r.journal, "both:app")
	return nil
}

func (r *dualRunner) RunCommandLine(_ context.Context, args []string) error {
	*r.journal = append(*r.journal, "both:cmd:"+strings.Join(args, " "))
	return nil
}

func TestRunnerFailureClosesContainerOnce(t *testing.T) {
	f := newFixture(t)
	factory := &countingFactory{}
	boom := errors.New("boom")
	app := f.newApp(WithFactory(factory), WithSources(
		container.Bean{Name: "failing", Instance: ApplicationRunnerFunc(func(context.Context, Arguments) error {
			return NewExitError(7, boom)
		})},
	))

	c, err := app.Run(context.Background())
	assert.Nil(t, c)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, PhaseReady, runErr.Phase)
	assert.ErrorIs(t, err, boom)

	require.Len(t, factory.created, 1)
	created := factory.created[0]
	assert.Equal(t, 1, created.closes)
	assert.False(t, created.IsActive())
	assert.False(t, f.hook.IsRegistered(created))
	f.hook.Run()
	assert.Equal(t, 1, created.closes)

	assert.Equal(t, 7, f.handler().ExitCode())
	assert.True(t, f.handler().IsLogged(err))
	assert.Equal(t, 1, f.logs.FilterMessage("Application run failed").Len())

	exits := f.events.OfType(EventTypeExitCode)
	require.Len(t, exits, 1)
	data, err := ExitCodeEventFrom(exits[0])
	require.NoError(t, err)
	assert.Equal(t, 7, data.ExitCode)
	assert.Len(t, f.events.OfType(EventTypeApplicationFailed), 1)
}

func TestExitCodeMapperTakesPrecedenceOverCause(t *testing.T) {
	boom := errors.New("boom")
	failing := container.Bean{Name: "failing", Instance: ApplicationRunnerFunc(func(context.Context, Arguments) error {
		return NewExitError(7, boom)
	})}
	plain := container.Bean{Name: "failing", Instance: ApplicationRunnerFunc(func(context.Context, Arguments) error {
		return boom
	})}
	mapper := container.Bean{Name: "mapper", Instance: ExitCodeExceptionMapperFunc(func(err error) int {
		if errors.Is(err, boom) {
			return 3
		}
		return 0
	})}

	tests := []struct {
		name    string
		sources []any
		want    int
	}{
		{"mapper and cause", []any{failing, mapper}, 3},
		{"cause only", []any{failing}, 7},
		{"neither", []any{plain}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			app := f.newApp(WithSources(tt.sources...))

			_, err := app.Run(context.Background())
			require.ErrorIs(t, err, boom)
			assert.Equal(t, tt.want, f.handler().ExitCode())

			exits := f.events.OfType(EventTypeExitCode)
			if tt.want == 0 {
				assert.Empty(t, exits)
				return
			}
			require.Len(t, exits, 1)
			data, err := ExitCodeEventFrom(exits[0])
			require.NoError(t, err)
			assert.Equal(t, tt.want, data.ExitCode)
		})
	}
}

func TestEnvironmentFailureCreatesNoContainer(t *testing.T) {
	f := newFixture(t)
	factory := &countingFactory{}
	app := f.newApp(
		WithFactory(factory),
		WithSources(&recordingModule{name: "db"}),
		WithDefaultProperties(map[string]any{EnvironmentPrefixProperty: "MYAPP"}),
	)

	c, err := app.Run(context.Background())
	assert.Nil(t, c)
	require.ErrorIs(t, err, ErrEnvironmentPrefixProperty)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, PhaseEnvironmentPrepared, runErr.Phase)

	assert.Empty(t, factory.created)
	assert.Len(t, f.events.OfType(EventTypeApplicationFailed), 1)
	assert.Empty(t, f.events.OfType(EventTypeExitCode))
	assert.Equal(t, 1, f.logs.FilterMessageSnippet("APPLICATION FAILED TO START").Len())
	assert.Zero(t, f.logs.FilterMessage("Application run failed").Len())
	assert.True(t, f.handler().IsLogged(err))
}

func TestNoSourcesFails(t *testing.T) {
	f := newFixture(t)
	factory := &countingFactory{}
	app := f.newApp(WithFactory(factory))

	_, err := app.Run(context.Background())
	require.ErrorIs(t, err, ErrNoSources)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, PhaseContextPrepared, runErr.Phase)
	require.Len(t, factory.created, 1)
	assert.Equal(t, 1, factory.created[0].closes)
}

func TestNamedSourcesResolvedFromRegistry(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.registry.Register(SourceCapability.Name, "db",
		registry.Supplier(func() any { return &recordingModule{name: "db"} })))
	app := f.newApp(WithAdditionalSources("db"))

	c, err := app.Run(context.Background())
	require.NoError(t, err)
	bean, err := c.Bean("db")
	require.NoError(t, err)
	assert.IsType(t, &recordingModule{}, bean)

	missing := f.newApp(WithAdditionalSources("cache"))
	_, err = missing.Run(context.Background())
	assert.ErrorIs(t, err, registry.ErrCannotInstantiate)
}

func TestInitializerForRejectsOtherContainers(t *testing.T) {
	f := newFixture(t)
	factory := &countingFactory{}
	app := f.newApp(
		WithFactory(factory),
		WithSources(&recordingModule{name: "db"}),
		WithContextInitializers(InitializerFor(func(*container.StdContainer) error { return nil })),
	)

	_, err := app.Run(context.Background())
	require.ErrorIs(t, err, ErrInitializerNotApplicable)
	require.Len(t, factory.created, 1)
	assert.Equal(t, 1, factory.created[0].closes)
	assert.False(t, f.hook.IsRegistered(factory.created[0]))
}

func TestContextInitializersRunInOrder(t *testing.T) {
	f := newFixture(t)
	var journal []string
	record := func(name string) ContextInitializer {
		return ContextInitializerFunc(func(container.Container) error {
			journal = append(journal, name)
			return nil
		})
	}
	app := f.newApp(
		WithSources(&recordingModule{name: "db"}),
		WithContextInitializers(record("plain"), InitializerFor(func(*container.StdContainer) error {
			journal = append(journal, "typed")
			return nil
		})),
	)

	_, err := app.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"plain", "typed"}, journal)
}

func TestCommandLineArgumentsMergeIntoExistingSource(t *testing.T) {
	f := newFixture(t)
	e := env.New(env.KindStandard, env.WithVariables(map[string]string{}))
	e.Sources().AddFirst(env.NewMapPropertySource(env.CommandLineSourceName, map[string]any{
		"foo": "old",
		"bar": "keep",
	}))
	app := f.newApp(WithEnvironment(e), WithSources(&recordingModule{name: "db"}))

	c, err := app.Run(context.Background(), "--foo=new")
	require.NoError(t, err)
	assert.Same(t, e, c.Environment())

	composite, ok := e.Sources().Get(env.CommandLineSourceName).(*env.CompositePropertySource)
	require.True(t, ok)
	members := composite.Members()
	require.Len(t, members, 2)
	assert.Equal(t, ApplicationCommandLineSourceName, members[0].Name())
	assert.Equal(t, env.CommandLineSourceName, members[1].Name())

	assert.Equal(t, "new", e.GetStringOr("foo", ""))
	assert.Equal(t, "keep", e.GetStringOr("bar", ""))
}

func TestCommandLinePropertiesCanBeDisabled(t *testing.T) {
	f := newFixture(t)
	app := f.newApp(WithAddCommandLineProperties(false), WithSources(&recordingModule{name: "db"}))

	c, err := app.Run(context.Background(), "--foo=bar")
	require.NoError(t, err)
	assert.False(t, c.Environment().Sources().Contains(env.CommandLineSourceName))
	assert.False(t, c.Environment().ContainsProperty("foo"))
}

func TestDefaultPropertiesStayLast(t *testing.T) {
	f := newFixture(t)
	moveDefaultsFirst := func(e *env.Environment) {
		if ps := e.Sources().Remove(env.DefaultPropertiesSourceName); ps != nil {
			e.Sources().AddFirst(ps)
		}
	}

	var afterListeners, duringRefresh []string
	f.addListener("reorder", &funcListener{
		environmentPrepared: func(e *env.Environment) error {
			moveDefaultsFirst(e)
			return nil
		},
		contextPrepared: func(c container.Container) error {
			afterListeners = c.Environment().Sources().Names()
			return nil
		},
	})
	app := f.newApp(
		WithContextInitializers(ContextInitializerFunc(func(c container.Container) error {
			moveDefaultsFirst(c.Environment())
			return nil
		})),
		WithSources(&recordingModule{name: "db", onInit: func(c container.Container) error {
			duringRefresh = c.Environment().Sources().Names()
			return nil
		}}),
	)

	_, err := app.Run(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, afterListeners)
	assert.NotEqual(t, env.DefaultPropertiesSourceName, afterListeners[len(afterListeners)-1])
	require.NotEmpty(t, duringRefresh)
	assert.Equal(t, env.DefaultPropertiesSourceName, duringRefresh[len(duringRefresh)-1])
}

func TestSettingsBoundFromProperties(t *testing.T) {
	f := newFixture(t)
	var banner strings.Builder
	app := f.newApp(
		WithEnvironmentVariables(map[string]string{
			"APP_MAIN_BANNER_MODE":            "console",
			"APP_MAIN_LAZY_INITIALIZATION":    "true",
			"APP_MAIN_REGISTER_SHUTDOWN_HOOK": "false",
		}),
		WithBanner(&TextBanner{Text: "hello ${app.name}"}),
		WithBannerOutput(&banner),
		WithSources(&recordingModule{name: "db"}),
	)

	c, err := app.Run(context.Background(), "--app.main.log-startup-info=false")
	require.NoError(t, err)

	settings := app.Settings()
	assert.Equal(t, BannerConsole, settings.BannerMode)
	assert.True(t, settings.LazyInitialization)
	assert.False(t, settings.LogStartupInfo)
	assert.False(t, settings.RegisterShutdownHook)

	assert.Equal(t, "hello test-app\n", banner.String())
	assert.True(t, c.(*container.StdContainer).LazyInitialization())
	assert.False(t, f.hook.IsRegistered(c))
	assert.Zero(t, f.logs.FilterMessage("Starting test-app").Len())

	bean, err := c.Bean(BannerBeanName)
	require.NoError(t, err)
	assert.IsType(t, &TextBanner{}, bean)
}

func TestInvalidSettingFailsBinding(t *testing.T) {
	f := newFixture(t)
	app := f.newApp(WithSources(&recordingModule{name: "db"}))

	_, err := app.Run(context.Background(), "--app.main.banner-mode=loud")
	assert.ErrorIs(t, err, ErrBindSettings)
	assert.Equal(t, 1, f.logs.FilterMessageSnippet("APPLICATION FAILED TO START").Len())
}

func TestHeadlessSetOnlyWhenAbsent(t *testing.T) {
	f := newFixture(t)
	t.Setenv(HeadlessEnv, "custom")
	_, err := f.newApp(WithHeadless(false), WithSources(&recordingModule{name: "db"})).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "custom", os.Getenv(HeadlessEnv))

	require.NoError(t, os.Unsetenv(HeadlessEnv))
	_, err = f.newApp(WithHeadless(false), WithSources(&recordingModule{name: "db"})).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "false", os.Getenv(HeadlessEnv))
}

func TestAdditionalProfilesAreActive(t *testing.T) {
	f := newFixture(t)
	app := f.newApp(WithAdditionalProfiles("dev", "local"), WithSources(&recordingModule{name: "db"}))

	c, err := app.Run(context.Background(), "--app.profiles.active=cloud")
	require.NoError(t, err)
	assert.Equal(t, []string{"cloud", "dev", "local"}, c.Environment().ActiveProfiles())
	assert.Equal(t, 1, f.logs.FilterMessage(`The following 3 profiles are active: "cloud", "dev", "local"`).Len())
}

func TestDeploymentKindSelectsEnvironmentKind(t *testing.T) {
	f := newFixture(t)
	app := f.newApp(WithDeploymentKind(container.DeploymentServer), WithSources(&recordingModule{name: "db"}))

	c, err := app.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, env.KindServer, c.Environment().Kind())
	assert.Equal(t, container.DeploymentServer, c.(*container.StdContainer).DeploymentKind())
}
