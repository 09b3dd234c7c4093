package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/GoCodeAlone/launchpad/env"
	"github.com/GoCodeAlone/launchpad/registry"
	"github.com/GoCodeAlone/launchpad/startup"
)

// Event types published by StdContainer.
const (
	EventTypeContainerRefreshed = "com.launchpad.container.refreshed"
	EventTypeContainerClosed    = "com.launchpad.container.closed"
)

// StopTimeout bounds the time Close gives Stoppable modules.
var StopTimeout = 30 * time.Second

// BeanFactory creates a bean on demand.
type BeanFactory func(c Container) (any, error)

type definition struct {
	name     string
	instance any
	factory  BeanFactory
	created  bool
}

// StdContainer is the reference container: named singletons, lazily or
// eagerly created bean factories, and modules initialized, started and
// stopped in dependency order.
type StdContainer struct {
	mu sync.Mutex

	logger      Logger
	kind        DeploymentKind
	environment *env.Environment
	collector   startup.Collector

	definitions    []*definition
	modules        map[string]Module
	postProcessors []PostProcessor
	observers      Multicaster

	allowOverriding bool
	allowCircular   bool
	lazy            bool

	refreshed bool
	active    bool
	closed    bool
	started   []string
	cancel    context.CancelFunc
}

// NewStdContainer creates an empty container. A nil logger discards output.
func NewStdContainer(logger Logger) *StdContainer {
	if logger == nil {
		logger = discardLogger{}
	}
	return &StdContainer{
		logger:    logger,
		collector: startup.Noop,
		modules:   make(map[string]Module),
	}
}

// DeploymentKind returns the kind the container was created for.
func (c *StdContainer) DeploymentKind() DeploymentKind { return c.kind }

// SetEnvironment implements Container.
func (c *StdContainer) SetEnvironment(e *env.Environment) { c.environment = e }

// Environment implements Container.
func (c *StdContainer) Environment() *env.Environment { return c.environment }

// SetStartupCollector implements Container.
func (c *StdContainer) SetStartupCollector(sc startup.Collector) {
	if sc == nil {
		sc = startup.Noop
	}
	c.collector = sc
}

// StartupCollector returns the installed collector.
func (c *StdContainer) StartupCollector() startup.Collector { return c.collector }

// AddPostProcessor implements Container.
func (c *StdContainer) AddPostProcessor(p PostProcessor) {
	if p != nil {
		c.postProcessors = append(c.postProcessors, p)
	}
}

// SetAllowDefinitionOverriding implements Container.
func (c *StdContainer) SetAllowDefinitionOverriding(allow bool) { c.allowOverriding = allow }

// SetAllowCircularReferences implements Container.
func (c *StdContainer) SetAllowCircularReferences(allow bool) { c.allowCircular = allow }

// SetLazyInitialization implements LazyInitializer.
func (c *StdContainer) SetLazyInitialization(lazy bool) { c.lazy = lazy }

// LazyInitialization implements LazyInitializer.
func (c *StdContainer) LazyInitialization() bool { return c.lazy }

// RegisterSingleton implements Container.
func (c *StdContainer) RegisterSingleton(name string, bean any) error {
	if bean == nil {
		return fmt.Errorf("%w: %s", ErrNilBean, name)
	}
	return c.define(&definition{name: name, instance: bean, created: true})
}

// RegisterFactory registers a bean created by factory during Refresh, or on
// first lookup when lazy initialization is enabled.
func (c *StdContainer) RegisterFactory(name string, factory BeanFactory) error {
	if factory == nil {
		return fmt.Errorf("%w: %s", ErrNilBean, name)
	}
	return c.define(&definition{name: name, factory: factory})
}

// RegisterModule registers m both as a module and as a bean named m.Name().
func (c *StdContainer) RegisterModule(m Module) error {
	if err := c.define(&definition{name: m.Name(), instance: m, created: true}); err != nil {
		return err
	}
	c.mu.Lock()
	c.modules[m.Name()] = m
	c.mu.Unlock()
	return nil
}

func (c *StdContainer) define(d *definition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrContainerClosed
	}
	i := slices.IndexFunc(c.definitions, func(existing *definition) bool { return existing.name == d.name })
	if i < 0 {
		c.definitions = append(c.definitions, d)
		c.logger.Debug("Registered bean", "name", d.name)
		return nil
	}
	if !c.allowOverriding {
		return fmt.Errorf("%w: %s", ErrBeanDefinitionOverride, d.name)
	}
	c.logger.Debug("Overriding bean definition", "name", d.name)
	c.definitions[i] = d
	if _, wasModule := c.modules[d.name]; wasModule {
		delete(c.modules, d.name)
	}
	return nil
}

// Load implements Container. Accepted sources are Module, Loader, Bean,
// *Bean and BeanFactory-producing NamedFactory values; anything else is
// registered as a singleton named after its type.
func (c *StdContainer) Load(sources ...any) error {
	for _, src := range sources {
		var err error
		switch s := src.(type) {
		case nil:
			err = ErrNilBean
		case Module:
			err = c.RegisterModule(s)
		case Loader:
			err = s.LoadInto(c)
		case Bean:
			err = c.RegisterSingleton(s.Name, s.Instance)
		case *Bean:
			err = c.RegisterSingleton(s.Name, s.Instance)
		case NamedFactory:
			err = c.RegisterFactory(s.Name, s.Factory)
		default:
			err = c.RegisterSingleton(reflect.TypeOf(src).String(), src)
		}
		if err != nil {
			return fmt.Errorf("failed to load source %T: %w", src, err)
		}
	}
	return nil
}

// NamedFactory is a Load source for RegisterFactory.
type NamedFactory struct {
	Name    string
	Factory BeanFactory
}

// Refresh implements Container: it runs post-processors, creates eager
// beans, initializes and starts modules, then publishes a refreshed event.
func (c *StdContainer) Refresh(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrContainerClosed
	case c.refreshed:
		c.mu.Unlock()
		return ErrAlreadyRefreshed
	}
	c.refreshed = true
	c.mu.Unlock()

	step := c.collector.Start("container.refresh")
	defer step.End()

	if err := c.runPostProcessors(); err != nil {
		return err
	}

	if !c.lazy {
		beanStep := c.collector.Start("container.beans.instantiate")
		_, err := c.Beans()
		beanStep.End()
		if err != nil {
			return err
		}
	}

	order, err := c.resolveDependencies()
	if err != nil {
		return fmt.Errorf("failed to resolve dependencies: %w", err)
	}

	for _, name := range order {
		initStep := c.collector.Start("container.module.init").Tag("module", name)
		err := c.modules[name].Init(c)
		initStep.End()
		if err != nil {
			return fmt.Errorf("failed to initialize module '%s': %w", name, err)
		}
		c.logger.Info("Initialized module", "module", name, "type", fmt.Sprintf("%T", c.modules[name]))
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	for _, name := range order {
		startable, ok := c.modules[name].(Startable)
		if !ok {
			c.logger.Debug("Module does not implement Startable, skipping", "module", name)
			continue
		}
		c.logger.Info("Starting module", "module", name)
		if err := startable.Start(runCtx); err != nil {
			return fmt.Errorf("failed to start module %s: %w", name, err)
		}
		c.started = append(c.started, name)
	}

	c.mu.Lock()
	c.active = !c.closed
	c.mu.Unlock()

	if err := c.observers.Publish(ctx, NewCloudEvent(EventTypeContainerRefreshed, "container", map[string]any{
		"modules": order,
	}, nil)); err != nil {
		c.logger.Warn("Observer failed handling refresh event", "error", err)
	}
	return nil
}

func (c *StdContainer) runPostProcessors() error {
	processors := slices.Clone(c.postProcessors)
	registry.SortStable(processors)
	for _, p := range processors {
		step := c.collector.Start("container.post-process").Tag("processor", fmt.Sprintf("%T", p))
		err := p.PostProcess(c)
		step.End()
		if err != nil {
			return fmt.Errorf("%w: %T: %w", ErrPostProcessor, p, err)
		}
	}
	return nil
}

// IsActive implements Container.
func (c *StdContainer) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active && !c.closed
}

// IsClosed reports whether Close has been called.
func (c *StdContainer) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close implements Container. Modules are stopped in reverse start order,
// then created beans implementing io.Closer are closed in reverse
// registration order. Errors are joined.
func (c *StdContainer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	wasActive := c.active
	c.closed = true
	c.active = false
	started := slices.Clone(c.started)
	defs := slices.Clone(c.definitions)
	c.mu.Unlock()

	if wasActive {
		if err := c.observers.Publish(context.Background(), NewCloudEvent(EventTypeContainerClosed, "container", nil, nil)); err != nil {
			c.logger.Warn("Observer failed handling close event", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), StopTimeout)
	defer cancel()

	var errs []error
	slices.Reverse(started)
	for _, name := range started {
		stoppable, ok := c.modules[name].(Stoppable)
		if !ok {
			continue
		}
		c.logger.Info("Stopping module", "module", name)
		if err := stoppable.Stop(ctx); err != nil {
			c.logger.Error("Error stopping module", "module", name, "error", err)
			errs = append(errs, fmt.Errorf("stop %s: %w", name, err))
		}
	}

	slices.Reverse(defs)
	for _, d := range defs {
		if _, isModule := c.modules[d.name]; isModule || !d.created {
			continue
		}
		if closer, ok := d.instance.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", d.name, err))
			}
		}
	}

	if c.cancel != nil {
		c.cancel()
	}
	return errors.Join(errs...)
}

// Bean implements Container.
func (c *StdContainer) Bean(name string) (any, error) {
	c.mu.Lock()
	i := slices.IndexFunc(c.definitions, func(d *definition) bool { return d.name == name })
	if i < 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrBeanNotFound, name)
	}
	d := c.definitions[i]
	c.mu.Unlock()
	return c.instantiate(d)
}

// Beans implements Container. Pending factories are invoked.
func (c *StdContainer) Beans() ([]any, error) {
	c.mu.Lock()
	defs := slices.Clone(c.definitions)
	c.mu.Unlock()

	out := make([]any, 0, len(defs))
	for _, d := range defs {
		b, err := c.instantiate(d)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// BeanNames returns the registered bean names in registration order.
func (c *StdContainer) BeanNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, len(c.definitions))
	for i, d := range c.definitions {
		names[i] = d.name
	}
	return names
}

func (c *StdContainer) instantiate(d *definition) (any, error) {
	c.mu.Lock()
	if d.created {
		c.mu.Unlock()
		return d.instance, nil
	}
	c.mu.Unlock()

	instance, err := d.factory(c)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrBeanCreation, d.name, err)
	}
	if instance == nil {
		return nil, fmt.Errorf("%w %s: %w", ErrBeanCreation, d.name, ErrNilBean)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !d.created {
		d.instance, d.created = instance, true
	}
	return d.instance, nil
}

// PublishEvent implements Container.
func (c *StdContainer) PublishEvent(ctx context.Context, event cloudevents.Event) error {
	return c.observers.Publish(ctx, event)
}

// AddEventListener implements Container.
func (c *StdContainer) AddEventListener(o Observer, eventTypes ...string) error {
	return c.observers.Register(o, eventTypes...)
}

// resolveDependencies returns module names in initialization order. Modules
// are visited in registration order so the result is deterministic. A cycle
// is an error unless circular references are allowed, in which case the
// back edge is ignored.
func (c *StdContainer) resolveDependencies() ([]string, error) {
	var names []string
	for _, d := range c.definitions {
		if _, ok := c.modules[d.name]; ok {
			names = append(names, d.name)
		}
	}

	graph := make(map[string][]string, len(names))
	for _, name := range names {
		if da, ok := c.modules[name].(DependencyAware); ok {
			graph[name] = da.Dependencies()
		}
	}

	var result []string
	visited := make(map[string]bool)
	temp := make(map[string]bool)

	var visit func(string) error
	visit = func(node string) error {
		if temp[node] {
			if c.allowCircular {
				c.logger.Warn("Ignoring circular module dependency", "module", node)
				return nil
			}
			return fmt.Errorf("%w: %s", ErrCircularDependency, node)
		}
		if visited[node] {
			return nil
		}
		temp[node] = true

		for _, dep := range graph[node] {
			if _, exists := c.modules[dep]; !exists {
				return fmt.Errorf("%w: %s depends on non-existent module %s",
					ErrModuleDependencyMissing, node, dep)
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		visited[node] = true
		temp[node] = false
		result = append(result, node)
		return nil
	}

	for _, node := range names {
		if !visited[node] {
			if err := visit(node); err != nil {
				return nil, err
			}
		}
	}

	c.logger.Debug("Module initialization order", "order", result)
	return result, nil
}
