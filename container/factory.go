package container

import (
	"fmt"

	"github.com/GoCodeAlone/launchpad/env"
)

// DeploymentKind describes how the application is deployed. It selects both
// the container and the environment flavour.
type DeploymentKind int

const (
	DeploymentNone DeploymentKind = iota
	DeploymentServer
	DeploymentReactive
)

func (k DeploymentKind) String() string {
	switch k {
	case DeploymentNone:
		return "none"
	case DeploymentServer:
		return "server"
	case DeploymentReactive:
		return "reactive"
	default:
		return fmt.Sprintf("DeploymentKind(%d)", int(k))
	}
}

// Factory creates containers and names the environment flavour they expect.
type Factory interface {
	Create(kind DeploymentKind) (Container, error)
	EnvironmentKind(kind DeploymentKind) env.Kind
}

// DefaultFactory creates a StdContainer for every deployment kind.
type DefaultFactory struct {
	Logger Logger
}

// Create implements Factory.
func (f DefaultFactory) Create(kind DeploymentKind) (Container, error) {
	c := NewStdContainer(f.Logger)
	c.kind = kind
	return c, nil
}

// EnvironmentKind implements Factory.
func (DefaultFactory) EnvironmentKind(kind DeploymentKind) env.Kind {
	switch kind {
	case DeploymentServer:
		return env.KindServer
	case DeploymentReactive:
		return env.KindReactive
	default:
		return env.KindStandard
	}
}
