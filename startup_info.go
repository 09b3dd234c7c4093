package launchpad

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/GoCodeAlone/launchpad/env"
)

// StartupInfoLogger writes the starting, profile and started lines of a run.
type StartupInfoLogger struct {
	logger Logger
	name   string
}

// NewStartupInfoLogger creates a logger for the application called name.
func NewStartupInfoLogger(logger Logger, name string) *StartupInfoLogger {
	return &StartupInfoLogger{logger: logger, name: name}
}

// LogStarting logs the process details.
func (s *StartupInfoLogger) LogStarting() {
	wd, _ := os.Getwd()
	s.logger.Info("Starting "+s.name,
		"pid", os.Getpid(),
		"go", runtime.Version(),
		"dir", wd,
	)
}

// LogProfiles logs the active profiles, or the default profiles when none
// is active.
func (s *StartupInfoLogger) LogProfiles(e *env.Environment) {
	if active := e.ActiveProfiles(); len(active) > 0 {
		s.logger.Info(fmt.Sprintf("The following %s active: %s", profileCount(len(active)), quoteAll(active)))
		return
	}
	defaults := e.DefaultProfiles()
	s.logger.Info(fmt.Sprintf("No active profile set, falling back to %s: %s", defaultProfileCount(len(defaults)), quoteAll(defaults)))
}

// LogStarted logs how long startup took.
func (s *StartupInfoLogger) LogStarted(elapsed time.Duration) {
	s.logger.Info(fmt.Sprintf("Started %s in %.3f seconds", s.name, elapsed.Seconds()),
		"elapsed", elapsed,
	)
}

func profileCount(n int) string {
	if n == 1 {
		return "1 profile is"
	}
	return fmt.Sprintf("%d profiles are", n)
}

func defaultProfileCount(n int) string {
	if n == 1 {
		return "1 default profile"
	}
	return fmt.Sprintf("%d default profiles", n)
}

func quoteAll(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return strings.Join(quoted, ", ")
}

func (a *Application) startupInfoLogger() *StartupInfoLogger {
	return NewStartupInfoLogger(a.logger, a.name)
}
