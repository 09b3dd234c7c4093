package launchpad

import (
	"context"
	"fmt"
	"reflect"

	"github.com/GoCodeAlone/launchpad/container"
	"github.com/GoCodeAlone/launchpad/registry"
)

// ApplicationRunner is a container bean run once the container has started.
type ApplicationRunner interface {
	Run(ctx context.Context, args Arguments) error
}

// CommandLineRunner is a container bean run once the container has started,
// receiving the raw arguments.
type CommandLineRunner interface {
	RunCommandLine(ctx context.Context, args []string) error
}

// ApplicationRunnerFunc adapts a function to ApplicationRunner.
type ApplicationRunnerFunc func(ctx context.Context, args Arguments) error

// Run implements ApplicationRunner.
func (f ApplicationRunnerFunc) Run(ctx context.Context, args Arguments) error { return f(ctx, args) }

// CommandLineRunnerFunc adapts a function to CommandLineRunner.
type CommandLineRunnerFunc func(ctx context.Context, args []string) error

// RunCommandLine implements CommandLineRunner.
func (f CommandLineRunnerFunc) RunCommandLine(ctx context.Context, args []string) error {
	return f(ctx, args)
}

// runners returns the container beans that are runners of either kind, in
// precedence order. A bean registered twice is returned once.
func runners(c container.Container) ([]any, error) {
	beans, err := c.Beans()
	if err != nil {
		return nil, err
	}

	var out []any
	seen := make(map[any]bool)
	for _, b := range beans {
		_, isApp := b.(ApplicationRunner)
		_, isCmd := b.(CommandLineRunner)
		if !isApp && !isCmd {
			continue
		}
		if reflect.ValueOf(b).Comparable() {
			if seen[b] {
				continue
			}
			seen[b] = true
		}
		out = append(out, b)
	}
	registry.SortStable(out)
	return out, nil
}

// callRunners invokes every runner; a bean implementing both interfaces is
// invoked as both. The first failure stops the remaining runners.
func (a *Application) callRunners(ctx context.Context, c container.Container, args Arguments) error {
	found, err := runners(c)
	if err != nil {
		return err
	}
	for _, r := range found {
		if ar, ok := r.(ApplicationRunner); ok {
			if err := ar.Run(ctx, args); err != nil {
				return fmt.Errorf("failed to execute ApplicationRunner %T: %w", r, err)
			}
		}
		if cr, ok := r.(CommandLineRunner); ok {
			if err := cr.RunCommandLine(ctx, args.SourceArgs()); err != nil {
				return fmt.Errorf("failed to execute CommandLineRunner %T: %w", r, err)
			}
		}
	}
	return nil
}
