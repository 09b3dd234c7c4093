package container

import "context"

// Module is a lifecycle-managed component of a StdContainer.
type Module interface {
	// Name returns the unique identifier for this module. It is also the
	// name the module is registered under as a bean.
	Name() string

	// Init prepares the module once all definitions are loaded. Modules are
	// initialized in dependency order.
	Init(c Container) error
}

// DependencyAware is implemented by modules that must be initialized and
// started after other modules.
type DependencyAware interface {
	// Dependencies returns the names of the modules this module depends on.
	Dependencies() []string
}

// Startable is implemented by modules with runtime work to begin on refresh.
type Startable interface {
	Start(ctx context.Context) error
}

// Stoppable is implemented by modules with cleanup to do on close. Modules
// are stopped in reverse start order.
type Stoppable interface {
	Stop(ctx context.Context) error
}
