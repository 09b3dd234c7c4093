package container

import "errors"

// Container errors
var (
	// Definition errors
	ErrBeanDefinitionOverride = errors.New("bean definition already exists and overriding is disabled")
	ErrBeanNotFound           = errors.New("bean not found")
	ErrBeanCreation           = errors.New("failed to create bean")
	ErrNilBean                = errors.New("bean is nil")
	ErrUnsupportedSource      = errors.New("unsupported container source")

	// Dependency resolution errors
	ErrCircularDependency      = errors.New("circular dependency detected")
	ErrModuleDependencyMissing = errors.New("module depends on non-existent module")

	// Lifecycle errors
	ErrAlreadyRefreshed = errors.New("container has already been refreshed")
	ErrContainerClosed  = errors.New("container is closed")
	ErrNotRefreshed     = errors.New("container has not been refreshed")
	ErrPostProcessor    = errors.New("container post-processor failed")

	// Event errors
	ErrInvalidEvent = errors.New("invalid event")
	ErrObserverNil  = errors.New("observer is nil")
)
