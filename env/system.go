package env

import (
	"maps"
	"os"
	"slices"
	"strings"
)

// SystemEnvironmentSourceName is the name of the process environment source.
const SystemEnvironmentSourceName = "systemEnvironment"

// SystemEnvironmentPropertySource exposes environment variables. A lookup for
// app.main.banner-mode also tries APP_MAIN_BANNER_MODE and the other
// underscore/upper-case variants, each with the optional prefix prepended.
type SystemEnvironmentPropertySource struct {
	name   string
	prefix string
	vars   map[string]string
}

// NewSystemEnvironmentPropertySource snapshots os.Environ.
func NewSystemEnvironmentPropertySource(prefix string) *SystemEnvironmentPropertySource {
	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}
	return NewSystemEnvironmentPropertySourceFrom(prefix, vars)
}

// NewSystemEnvironmentPropertySourceFrom creates the source over a fixed set of variables.
func NewSystemEnvironmentPropertySourceFrom(prefix string, vars map[string]string) *SystemEnvironmentPropertySource {
	if prefix != "" && !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return &SystemEnvironmentPropertySource{
		name:   SystemEnvironmentSourceName,
		prefix: prefix,
		vars:   maps.Clone(vars),
	}
}

// Name implements PropertySource.
func (s *SystemEnvironmentPropertySource) Name() string { return s.name }

// Prefix returns the variable prefix, including its trailing underscore.
func (s *SystemEnvironmentPropertySource) Prefix() string { return s.prefix }

// Property implements PropertySource.
func (s *SystemEnvironmentPropertySource) Property(key string) (any, bool) {
	if name, ok := s.resolveName(key); ok {
		return s.vars[name], true
	}
	return nil, false
}

// Keys implements EnumerablePropertySource.
func (s *SystemEnvironmentPropertySource) Keys() []string {
	return slices.Sorted(maps.Keys(s.vars))
}

func (s *SystemEnvironmentPropertySource) resolveName(key string) (string, bool) {
	for _, candidate := range []string{key, strings.ToUpper(key)} {
		for _, variant := range []string{
			candidate,
			strings.ReplaceAll(candidate, ".", "_"),
			strings.ReplaceAll(candidate, "-", "_"),
			strings.NewReplacer(".", "_", "-", "_").Replace(candidate),
		} {
			name := s.prefix + variant
			if _, ok := s.vars[name]; ok {
				return name, true
			}
		}
	}
	return "", false
}
