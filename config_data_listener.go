package launchpad

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/GoCodeAlone/launchpad/env"
	"github.com/GoCodeAlone/launchpad/registry"
)

const (
	// ConfigLocationProperty lists the directories searched for config files.
	ConfigLocationProperty = "app.config.location"
	// ConfigNameProperty is the base name of config files.
	ConfigNameProperty = "app.config.name"

	defaultConfigName = "application"
)

// DefaultConfigLocations are searched when app.config.location is not set.
// Later locations take precedence.
var DefaultConfigLocations = []string{".", "./config"}

// ConfigDataListener loads application[-profile].{yaml,yml,toml,json,env}
// files into the environment when it is prepared. File sources rank below
// the command line and the system environment and above defaultProperties;
// profile-specific files rank above plain ones.
type ConfigDataListener struct {
	BaseRunListener
	logger Logger
}

// NewConfigDataListener creates the listener.
func NewConfigDataListener(logger Logger) *ConfigDataListener {
	if logger == nil {
		logger = nopLogger{}
	}
	return &ConfigDataListener{logger: logger}
}

// Order runs the listener before the event publishing listener so observers
// see the loaded sources.
func (l *ConfigDataListener) Order() int { return registry.HighestPrecedence + 10 }

// EnvironmentPrepared implements RunListener.
func (l *ConfigDataListener) EnvironmentPrepared(_ context.Context, _ BootstrapContext, e *env.Environment) error {
	locations, name, err := l.search(e)
	if err != nil {
		return err
	}

	base, err := l.load(locations, name)
	if err != nil {
		return err
	}
	if err := l.add(e, base); err != nil {
		return err
	}

	// Plain files may activate profiles.
	if active, ok, err := e.GetString(env.ActiveProfilesProperty); err != nil {
		return err
	} else if ok {
		for _, p := range strings.Split(active, ",") {
			if p = strings.TrimSpace(p); p != "" {
				e.AddActiveProfile(p)
			}
		}
	}

	profiles := e.ActiveProfiles()
	if len(profiles) == 0 {
		profiles = e.DefaultProfiles()
	}
	var profiled []*env.MapPropertySource
	for _, profile := range profiles {
		sources, err := l.load(locations, name+"-"+profile)
		if err != nil {
			return err
		}
		// Later profiles win.
		profiled = append(sources, profiled...)
	}
	if len(profiled) == 0 {
		return nil
	}

	// Profile files go above the plain ones.
	if len(base) > 0 {
		for _, ps := range profiled {
			if err := e.Sources().AddBefore(base[0].Name(), ps); err != nil {
				return err
			}
		}
		return nil
	}
	return l.add(e, profiled)
}

func (l *ConfigDataListener) search(e *env.Environment) ([]string, string, error) {
	locations := DefaultConfigLocations
	raw, ok, err := e.GetString(ConfigLocationProperty)
	if err != nil {
		return nil, "", err
	}
	if ok {
		locations = nil
		for _, loc := range strings.Split(raw, ",") {
			if loc = strings.TrimSpace(loc); loc != "" {
				locations = append(locations, loc)
			}
		}
	}
	name := e.GetStringOr(ConfigNameProperty, defaultConfigName)
	return locations, name, nil
}

// load reads every existing file called name in locations, highest
// precedence first.
func (l *ConfigDataListener) load(locations []string, name string) ([]*env.MapPropertySource, error) {
	var out []*env.MapPropertySource
	for _, loc := range slices.Backward(locations) {
		for _, ext := range env.FileExtensions {
			path := filepath.Join(loc, name+"."+ext)
			if _, err := os.Stat(path); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
			}
			ps, err := env.LoadFile("configData:"+path, path)
			if err != nil {
				return nil, err
			}
			l.logger.Debug("Loaded config file", "path", path, "properties", len(ps.Keys()))
			out = append(out, ps)
		}
	}
	return out, nil
}

// add inserts sources, in the order given, just above defaultProperties.
func (l *ConfigDataListener) add(e *env.Environment, sources []*env.MapPropertySource) error {
	all := e.Sources()
	for _, ps := range sources {
		if all.Contains(env.DefaultPropertiesSourceName) {
			if err := all.AddBefore(env.DefaultPropertiesSourceName, ps); err != nil {
				return err
			}
			continue
		}
		all.AddLast(ps)
	}
	return nil
}
