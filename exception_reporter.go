package launchpad

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GoCodeAlone/launchpad/container"
	"github.com/GoCodeAlone/launchpad/registry"
)

// ExceptionReporter reports a run failure to the user. Reporters are
// discovered through the "exception-reporter" capability each time a run
// fails, constructed with the failed container (possibly nil) and the
// application Logger. Returning true means the failure has been reported and
// the default log line is skipped. A reporter that errors or panics is
// skipped.
type ExceptionReporter interface {
	Report(failure error) (bool, error)
}

// FailureAnalysis describes a recognised failure and what to do about it.
type FailureAnalysis struct {
	Description string
	Action      string
	Cause       error
}

// FailureAnalyzer recognises a kind of failure.
type FailureAnalyzer interface {
	Analyze(failure error) (*FailureAnalysis, bool)
}

// FailureAnalyzerFunc adapts a function to FailureAnalyzer.
type FailureAnalyzerFunc func(failure error) (*FailureAnalysis, bool)

// Analyze implements FailureAnalyzer.
func (f FailureAnalyzerFunc) Analyze(failure error) (*FailureAnalysis, bool) { return f(failure) }

// SentinelAnalyzer recognises failures wrapping Target.
type SentinelAnalyzer struct {
	Target      error
	Description string
	Action      string
}

// Analyze implements FailureAnalyzer.
func (s SentinelAnalyzer) Analyze(failure error) (*FailureAnalysis, bool) {
	if !errors.Is(failure, s.Target) {
		return nil, false
	}
	return &FailureAnalysis{Description: s.Description, Action: s.Action, Cause: failure}, true
}

// DefaultFailureAnalyzers recognise the launcher's own configuration errors
// and the reference container's wiring errors.
func DefaultFailureAnalyzers() []FailureAnalyzer {
	return []FailureAnalyzer{
		SentinelAnalyzer{
			Target:      ErrEnvironmentPrefixProperty,
			Description: "The environment prefix was set through a property source.",
			Action:      "Remove " + EnvironmentPrefixProperty + " and use WithEnvironmentPrefix instead.",
		},
		SentinelAnalyzer{
			Target:      ErrBindSettings,
			Description: "Properties under " + SettingsPrefix + " could not be bound to the application settings.",
			Action:      "Check the types of the " + SettingsPrefix + ".* properties.",
		},
		SentinelAnalyzer{
			Target:      ErrNoSources,
			Description: "The application has no sources to load into the container.",
			Action:      "Pass sources with WithSources or name them in " + SettingsPrefix + ".sources.",
		},
		SentinelAnalyzer{
			Target:      ErrInitializerNotApplicable,
			Description: "A context initializer does not support the container created for this deployment kind.",
			Action:      "Register the initializer only for the matching container, or change the deployment kind.",
		},
		SentinelAnalyzer{
			Target:      registry.ErrCannotInstantiate,
			Description: "An extension declared in the registry could not be created.",
			Action:      "Check the manifest entries and the registered factories.",
		},
		SentinelAnalyzer{
			Target:      container.ErrCircularDependency,
			Description: "The modules in the container depend on each other in a cycle.",
			Action:      "Break the cycle, or set " + SettingsPrefix + ".allow-circular-references=true as a last resort.",
		},
		SentinelAnalyzer{
			Target:      container.ErrModuleDependencyMissing,
			Description: "A module depends on a module that was never loaded.",
			Action:      "Add the missing module to the application sources.",
		},
		SentinelAnalyzer{
			Target:      container.ErrBeanDefinitionOverride,
			Description: "Two beans were registered under the same name.",
			Action:      "Rename one of the beans, or set " + SettingsPrefix + ".allow-definition-overriding=true.",
		},
	}
}

// AnalyzingExceptionReporter logs a description and an action for failures
// one of its analyzers recognises.
type AnalyzingExceptionReporter struct {
	logger    Logger
	analyzers []FailureAnalyzer
}

// NewAnalyzingExceptionReporter creates a reporter logging to logger. With
// no analyzers, DefaultFailureAnalyzers are used.
func NewAnalyzingExceptionReporter(logger Logger, analyzers ...FailureAnalyzer) *AnalyzingExceptionReporter {
	if logger == nil {
		logger = nopLogger{}
	}
	if len(analyzers) == 0 {
		analyzers = DefaultFailureAnalyzers()
	}
	return &AnalyzingExceptionReporter{logger: logger, analyzers: analyzers}
}

// Report implements ExceptionReporter.
func (r *AnalyzingExceptionReporter) Report(failure error) (bool, error) {
	for _, analyzer := range r.analyzers {
		analysis, ok := analyzer.Analyze(failure)
		if !ok {
			continue
		}
		r.logger.Error(formatAnalysis(analysis), "error", failure)
		return true, nil
	}
	return false, nil
}

func formatAnalysis(a *FailureAnalysis) string {
	var b strings.Builder
	b.WriteString("\n\n***************************\nAPPLICATION FAILED TO START\n***************************\n\n")
	fmt.Fprintf(&b, "Description:\n\n%s\n", a.Description)
	if a.Action != "" {
		fmt.Fprintf(&b, "\nAction:\n\n%s\n", a.Action)
	}
	return b.String()
}
