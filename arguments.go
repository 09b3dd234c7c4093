package launchpad

import (
	"slices"

	"github.com/GoCodeAlone/launchpad/env"
)

// Arguments gives access to the arguments Run was called with.
type Arguments interface {
	// SourceArgs returns the raw arguments.
	SourceArgs() []string
	OptionNames() []string
	ContainsOption(name string) bool
	// OptionValues returns the values of --name; a bare --name yields an
	// empty, non-nil slice and an absent option yields nil.
	OptionValues(name string) []string
	NonOptionArgs() []string
}

// ArgumentParser turns raw arguments into Arguments.
type ArgumentParser interface {
	Parse(raw []string) (Arguments, error)
}

// ArgumentParserFunc adapts a function to ArgumentParser.
type ArgumentParserFunc func(raw []string) (Arguments, error)

// Parse implements ArgumentParser.
func (f ArgumentParserFunc) Parse(raw []string) (Arguments, error) { return f(raw) }

// DefaultArgumentParser parses --name[=value] options and positional
// arguments.
type DefaultArgumentParser struct{}

// Parse implements ArgumentParser.
func (DefaultArgumentParser) Parse(raw []string) (Arguments, error) {
	return NewArguments(raw...)
}

// DefaultArguments is the Arguments produced by DefaultArgumentParser.
type DefaultArguments struct {
	source []string
	parsed *env.ParsedArgs
}

// NewArguments parses args.
func NewArguments(args ...string) (*DefaultArguments, error) {
	parsed, err := env.ParseArgs(args)
	if err != nil {
		return nil, err
	}
	return &DefaultArguments{source: slices.Clone(args), parsed: parsed}, nil
}

func (a *DefaultArguments) SourceArgs() []string              { return slices.Clone(a.source) }
func (a *DefaultArguments) OptionNames() []string             { return a.parsed.OptionNames() }
func (a *DefaultArguments) ContainsOption(name string) bool   { return a.parsed.ContainsOption(name) }
func (a *DefaultArguments) OptionValues(name string) []string { return a.parsed.OptionValues(name) }
func (a *DefaultArguments) NonOptionArgs() []string           { return a.parsed.NonOptionArgs() }
