package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/GoCodeAlone/launchpad"
	"github.com/GoCodeAlone/launchpad/container"
)

// greeter is the module run by the run command. It reads its message from
// the greeting and target properties and prints it once the container is
// refreshed; a positional "shout" argument upper-cases it.
type greeter struct {
	out     io.Writer
	message string
}

func (g *greeter) Name() string { return "greeter" }

func (g *greeter) Init(c container.Container) error {
	e := c.Environment()
	g.message = fmt.Sprintf("%s, %s!", e.GetStringOr("greeting", "Hello"), e.GetStringOr("target", "world"))
	return nil
}

// Run implements launchpad.ApplicationRunner.
func (g *greeter) Run(_ context.Context, args launchpad.Arguments) error {
	msg := g.message
	for _, a := range args.NonOptionArgs() {
		if a == "shout" {
			msg = strings.ToUpper(msg)
		}
	}
	_, err := fmt.Fprintln(g.out, msg)
	return err
}
