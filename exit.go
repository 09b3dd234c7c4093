package launchpad

import (
	"context"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/GoCodeAlone/launchpad/container"
	"github.com/GoCodeAlone/launchpad/registry"
)

// ExitCodeGenerator supplies a process exit code. Container beans
// implementing it are consulted by Exit.
type ExitCodeGenerator interface {
	ExitCode() int
}

// ExitCodeGeneratorFunc adapts a function to ExitCodeGenerator.
type ExitCodeGeneratorFunc func() int

// ExitCode implements ExitCodeGenerator.
func (f ExitCodeGeneratorFunc) ExitCode() int { return f() }

// ExitCodeExceptionMapper maps a run failure to an exit code, or 0 when it
// does not apply. Container beans implementing it are consulted when a run
// fails after the container became active.
type ExitCodeExceptionMapper interface {
	ExitCodeFor(err error) int
}

// ExitCodeExceptionMapperFunc adapts a function to ExitCodeExceptionMapper.
type ExitCodeExceptionMapperFunc func(err error) int

// ExitCodeFor implements ExitCodeExceptionMapper.
func (f ExitCodeExceptionMapperFunc) ExitCodeFor(err error) int { return f(err) }

// ExitCoder is an error that carries its own exit code. The failure path
// uses the first ExitCoder found in the error's wrap chain.
type ExitCoder interface {
	error
	ExitCode() int
}

// ExitError attaches an exit code to an error.
type ExitError struct {
	Code int
	Err  error
}

// NewExitError wraps err with code.
func NewExitError(code int, err error) *ExitError {
	return &ExitError{Code: code, Err: err}
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode implements ExitCoder.
func (e *ExitError) ExitCode() int { return e.Code }

// ExitCodeGenerators reduces a set of generators to one exit code.
type ExitCodeGenerators struct {
	generators []ExitCodeGenerator
}

// Add appends generators. Nil entries are ignored.
func (g *ExitCodeGenerators) Add(generators ...ExitCodeGenerator) {
	for _, gen := range generators {
		if gen != nil {
			g.generators = append(g.generators, gen)
		}
	}
}

// AddMappers appends one generator per mapper, each mapping err.
func (g *ExitCodeGenerators) AddMappers(err error, mappers ...ExitCodeExceptionMapper) {
	for _, m := range mappers {
		if m != nil {
			g.generators = append(g.generators, mappedExitCode{err: err, mapper: m})
		}
	}
}

// Len returns the number of generators.
func (g *ExitCodeGenerators) Len() int { return len(g.generators) }

// ExitCode returns the first non-zero code, consulting generators in
// precedence order, or 0 when every generator returns 0. A generator that
// panics counts as exit code 1.
func (g *ExitCodeGenerators) ExitCode() int {
	ordered := append([]ExitCodeGenerator(nil), g.generators...)
	registry.SortStable(ordered)
	for _, gen := range ordered {
		code := 1
		_ = guard(func() error {
			code = gen.ExitCode()
			return nil
		})
		if code != 0 {
			return code
		}
	}
	return 0
}

type mappedExitCode struct {
	err    error
	mapper ExitCodeExceptionMapper
}

func (m mappedExitCode) ExitCode() int { return m.mapper.ExitCodeFor(m.err) }
func (m mappedExitCode) Order() int    { return registry.OrderOf(m.mapper) }

// ExitCodeEvent is the data of an EventTypeExitCode event.
type ExitCodeEvent struct {
	ExitCode int `json:"exitCode"`
}

// NewExitCodeEvent creates the event announcing a non-zero exit code.
func NewExitCodeEvent(source string, code int) cloudevents.Event {
	return NewCloudEvent(EventTypeExitCode, source, ExitCodeEvent{ExitCode: code}, nil)
}

// ExitCodeEventFrom decodes an EventTypeExitCode event.
func ExitCodeEventFrom(event cloudevents.Event) (ExitCodeEvent, error) {
	var data ExitCodeEvent
	if event.Type() != EventTypeExitCode {
		return data, fmt.Errorf("%w: %s is not an exit code event", container.ErrInvalidEvent, event.Type())
	}
	if err := event.DataAs(&data); err != nil {
		return data, fmt.Errorf("%w: %w", container.ErrInvalidEvent, err)
	}
	return data, nil
}

// eventSource returns the source the application that created c publishes
// under, or "launchpad" for containers built elsewhere.
func eventSource(c container.Container) string {
	if bean, err := c.Bean(EventSourceBeanName); err == nil {
		if source, ok := bean.(string); ok && source != "" {
			return source
		}
	}
	return "launchpad"
}

// Exit computes the exit code of c from the given generators and the
// container's ExitCodeGenerator beans, publishes an ExitCodeEvent when it is
// non-zero, and closes c. When anything fails along the way a zero code
// becomes 1. A nil container only consults generators.
func Exit(ctx context.Context, c container.Container, generators ...ExitCodeGenerator) int {
	var all ExitCodeGenerators
	all.Add(generators...)
	if c == nil {
		return all.ExitCode()
	}

	var errs []error
	beans, err := container.BeansOfType[ExitCodeGenerator](c)
	if err != nil {
		errs = append(errs, err)
	}
	all.Add(beans...)

	code := all.ExitCode()
	if code != 0 {
		if err := c.PublishEvent(ctx, NewExitCodeEvent(eventSource(c), code)); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 && code == 0 {
		return 1
	}
	return code
}
