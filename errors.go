package launchpad

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Launcher errors
var (
	// Configuration errors
	ErrNoSources                 = errors.New("no primary sources defined")
	ErrEnvironmentPrefixProperty = errors.New("environment prefix cannot be set via properties")
	ErrBindSettings              = errors.New("cannot bind application settings")
	ErrInitializerNotApplicable  = errors.New("context initializer not applicable to container")
	ErrInvalidBannerMode         = errors.New("invalid banner mode")
	ErrNilFactory                = errors.New("container factory is nil")
	ErrNilRegistry               = errors.New("extension registry is nil")
	ErrNilEnvironment            = errors.New("environment is nil")
	ErrNilArgumentParser         = errors.New("argument parser is nil")
	ErrNilCollector              = errors.New("startup collector is nil")

	// Bootstrap context errors
	ErrBootstrapContextClosed   = errors.New("bootstrap context is closed")
	ErrBootstrapInstanceMissing = errors.New("no bootstrap instance registered")
	ErrNilSupplier              = errors.New("bootstrap instance supplier is nil")
	ErrBootstrapInstanceCreated = errors.New("bootstrap instance has already been created")

	// Run errors
	ErrNilContainer = errors.New("container is nil")
)

// RunError is returned by Run when any phase fails. It wraps the original
// failure, which has already been reported to listeners and logged. Phase is
// the phase the run was working towards.
type RunError struct {
	Phase Phase
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("application run failed during %s: %v", e.Phase, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// PanicError is a panic recovered from plugin code.
type PanicError struct {
	Value any
	Stack []byte
}

func newPanicError(value any) *PanicError {
	return &PanicError{Value: value, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// guard calls fn and turns a panic into a *PanicError.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()
	return fn()
}
