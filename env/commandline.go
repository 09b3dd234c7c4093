package env

import (
	"fmt"
	"slices"
	"strings"
)

const (
	// CommandLineSourceName is the name under which parsed arguments are exposed.
	CommandLineSourceName = "commandLineArgs"

	// NonOptionArgsKey resolves to the comma-joined non-option arguments.
	NonOptionArgsKey = "nonOptionArgs"
)

// ParsedArgs is the result of parsing raw process arguments. Options use the
// form --name or --name=value and may repeat; everything else, and anything
// after a bare "--", is a non-option argument.
type ParsedArgs struct {
	names      []string
	options    map[string][]string
	nonOptions []string
}

// ParseArgs parses raw arguments. An option with an empty name ("--=x") is an
// error.
func ParseArgs(args []string) (*ParsedArgs, error) {
	p := &ParsedArgs{options: make(map[string][]string)}
	endOfOptions := false
	for _, arg := range args {
		if endOfOptions || !strings.HasPrefix(arg, "--") {
			p.nonOptions = append(p.nonOptions, arg)
			continue
		}
		if arg == "--" {
			endOfOptions = true
			continue
		}

		text := arg[2:]
		name, value, hasValue := strings.Cut(text, "=")
		if name == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidArgument, arg)
		}
		if _, seen := p.options[name]; !seen {
			p.names = append(p.names, name)
			p.options[name] = nil
		}
		if hasValue {
			p.options[name] = append(p.options[name], value)
		}
	}
	return p, nil
}

// OptionNames returns option names in first-seen order.
func (p *ParsedArgs) OptionNames() []string { return slices.Clone(p.names) }

// ContainsOption reports whether --name was present.
func (p *ParsedArgs) ContainsOption(name string) bool {
	_, ok := p.options[name]
	return ok
}

// OptionValues returns the values given for name. A flag without a value
// yields an empty, non-nil slice; an absent option yields nil.
func (p *ParsedArgs) OptionValues(name string) []string {
	v, ok := p.options[name]
	if !ok {
		return nil
	}
	if v == nil {
		return []string{}
	}
	return slices.Clone(v)
}

// NonOptionArgs returns the non-option arguments in order.
func (p *ParsedArgs) NonOptionArgs() []string { return slices.Clone(p.nonOptions) }

// CommandLinePropertySource exposes parsed arguments as properties. Repeated
// option values are joined with commas; a bare flag resolves to "".
type CommandLinePropertySource struct {
	name string
	args *ParsedArgs
}

// NewCommandLinePropertySource creates a source named CommandLineSourceName.
func NewCommandLinePropertySource(args *ParsedArgs) *CommandLinePropertySource {
	return NewNamedCommandLinePropertySource(CommandLineSourceName, args)
}

// NewNamedCommandLinePropertySource creates a command line source with a custom name.
func NewNamedCommandLinePropertySource(name string, args *ParsedArgs) *CommandLinePropertySource {
	if args == nil {
		args = &ParsedArgs{options: map[string][]string{}}
	}
	return &CommandLinePropertySource{name: name, args: args}
}

// Name implements PropertySource.
func (c *CommandLinePropertySource) Name() string { return c.name }

// Args returns the parsed arguments behind the source.
func (c *CommandLinePropertySource) Args() *ParsedArgs { return c.args }

// Property implements PropertySource.
func (c *CommandLinePropertySource) Property(key string) (any, bool) {
	if key == NonOptionArgsKey {
		if len(c.args.nonOptions) == 0 {
			return nil, false
		}
		return strings.Join(c.args.nonOptions, ","), true
	}
	values, ok := c.args.options[key]
	if !ok {
		return nil, false
	}
	return strings.Join(values, ","), true
}

// Keys implements EnumerablePropertySource.
func (c *CommandLinePropertySource) Keys() []string {
	return c.args.OptionNames()
}
