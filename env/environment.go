package env

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/golobby/cast"
)

// Profile property keys.
const (
	ActiveProfilesProperty  = "app.profiles.active"
	DefaultProfilesProperty = "app.profiles.default"
	DefaultProfile          = "default"
)

// Kind identifies the flavour of an Environment.
type Kind int

const (
	KindStandard Kind = iota
	KindServer
	KindReactive
)

func (k Kind) String() string {
	switch k {
	case KindStandard:
		return "standard"
	case KindServer:
		return "server"
	case KindReactive:
		return "reactive"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ServerInitParamsSourceName is the placeholder source a server environment
// reserves ahead of the system environment for parameters supplied by an
// embedding server.
const ServerInitParamsSourceName = "serverInitParams"

// Option configures an Environment created by New.
type Option func(*options)

type options struct {
	prefix  string
	vars    map[string]string
	hasVars bool
	empty   bool
}

// WithPrefix sets the prefix applied to environment variable lookups.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithVariables replaces the process environment with vars.
func WithVariables(vars map[string]string) Option {
	return func(o *options) { o.vars, o.hasVars = vars, true }
}

// WithoutDefaultSources creates the environment with no property sources.
func WithoutDefaultSources() Option {
	return func(o *options) { o.empty = true }
}

// Environment is an ordered set of property sources plus profiles.
type Environment struct {
	kind            Kind
	sources         *Sources
	activeProfiles  []string
	activeResolved  bool
	defaultProfiles []string
	defaultResolved bool
}

// New creates an environment of the given kind with its standard sources.
func New(kind Kind, opts ...Option) *Environment {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	e := &Environment{kind: kind, sources: NewSources()}
	if o.empty {
		return e
	}
	if kind == KindServer {
		e.sources.AddLast(NewMapPropertySource(ServerInitParamsSourceName, nil))
	}
	if o.hasVars {
		e.sources.AddLast(NewSystemEnvironmentPropertySourceFrom(o.prefix, o.vars))
	} else {
		e.sources.AddLast(NewSystemEnvironmentPropertySource(o.prefix))
	}
	return e
}

// Kind returns the environment kind.
func (e *Environment) Kind() Kind { return e.kind }

// Sources returns the mutable source sequence.
func (e *Environment) Sources() *Sources { return e.sources }

// Property returns the raw value from the first source that defines key.
func (e *Environment) Property(key string) (any, bool) {
	for ps := range e.sources.All() {
		if v, ok := ps.Property(key); ok {
			return v, true
		}
	}
	return nil, false
}

// ContainsProperty reports whether any source defines key.
func (e *Environment) ContainsProperty(key string) bool {
	_, ok := e.Property(key)
	return ok
}

// GetString returns the value for key as a string with placeholders resolved.
func (e *Environment) GetString(key string) (string, bool, error) {
	raw, ok := e.Property(key)
	if !ok {
		return "", false, nil
	}
	s, err := e.Resolve(stringify(raw))
	if err != nil {
		return "", true, fmt.Errorf("property %s: %w", key, err)
	}
	return s, true, nil
}

// GetStringOr returns the value for key, or def when the key is absent or unresolvable.
func (e *Environment) GetStringOr(key, def string) string {
	s, ok, err := e.GetString(key)
	if !ok || err != nil {
		return def
	}
	return s
}

// GetBool returns key as a bool, or def when absent.
func (e *Environment) GetBool(key string, def bool) (bool, error) {
	return GetOr(e, key, def)
}

// GetInt returns key as an int, or def when absent.
func (e *Environment) GetInt(key string, def int) (int, error) {
	return GetOr(e, key, def)
}

// GetDuration returns key as a duration, or def when absent. Values are
// either Go duration strings ("1.5s") or integer milliseconds.
func (e *Environment) GetDuration(key string, def time.Duration) (time.Duration, error) {
	raw, ok := e.Property(key)
	if !ok {
		return def, nil
	}
	if d, isDuration := raw.(time.Duration); isDuration {
		return d, nil
	}
	s, err := e.Resolve(stringify(raw))
	if err != nil {
		return def, err
	}
	s = strings.TrimSpace(s)
	if d, perr := time.ParseDuration(s); perr == nil {
		return d, nil
	}
	ms, err := cast.FromType(s, reflect.TypeFor[int64]())
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q as duration: %w", ErrConversion, key, s, err)
	}
	return time.Duration(ms.(int64)) * time.Millisecond, nil
}

// Get returns key converted to T. Values already of type T are returned as is;
// anything else is stringified, placeholder-resolved and converted.
func Get[T any](e *Environment, key string) (T, bool, error) {
	var zero T
	raw, ok := e.Property(key)
	if !ok {
		return zero, false, nil
	}
	if v, same := raw.(T); same {
		if _, isString := raw.(string); !isString {
			return v, true, nil
		}
	}
	s, err := e.Resolve(stringify(raw))
	if err != nil {
		return zero, true, err
	}
	converted, err := cast.FromType(strings.TrimSpace(s), reflect.TypeFor[T]())
	if err != nil {
		return zero, true, fmt.Errorf("%w: %s=%q: %w", ErrConversion, key, s, err)
	}
	v, same := converted.(T)
	if !same {
		return zero, true, fmt.Errorf("%w: %s=%q to %s", ErrConversion, key, s, reflect.TypeFor[T]())
	}
	return v, true, nil
}

// GetOr is Get with a default for absent keys.
func GetOr[T any](e *Environment, key string, def T) (T, error) {
	v, ok, err := Get[T](e, key)
	if !ok {
		return def, nil
	}
	if err != nil {
		return def, err
	}
	return v, nil
}

// ActiveProfiles returns the explicitly activated profiles, reading
// app.profiles.active the first time when none were set programmatically.
func (e *Environment) ActiveProfiles() []string {
	if !e.activeResolved {
		e.activeResolved = true
		if s, ok, err := e.GetString(ActiveProfilesProperty); ok && err == nil {
			e.activeProfiles = appendUnique(e.activeProfiles, splitList(s)...)
		}
	}
	return slices.Clone(e.activeProfiles)
}

// SetActiveProfiles replaces the active profiles.
func (e *Environment) SetActiveProfiles(profiles ...string) {
	e.activeResolved = true
	e.activeProfiles = appendUnique(nil, profiles...)
}

// AddActiveProfile activates profile in addition to those already active.
func (e *Environment) AddActiveProfile(profile string) {
	e.ActiveProfiles()
	e.activeProfiles = appendUnique(e.activeProfiles, profile)
}

// DefaultProfiles returns the profiles used when none are active.
func (e *Environment) DefaultProfiles() []string {
	if !e.defaultResolved {
		e.defaultResolved = true
		e.defaultProfiles = []string{DefaultProfile}
		if s, ok, err := e.GetString(DefaultProfilesProperty); ok && err == nil {
			e.defaultProfiles = appendUnique(nil, splitList(s)...)
		}
	}
	return slices.Clone(e.defaultProfiles)
}

// SetDefaultProfiles replaces the default profiles.
func (e *Environment) SetDefaultProfiles(profiles ...string) {
	e.defaultResolved = true
	e.defaultProfiles = appendUnique(nil, profiles...)
}

// AcceptsProfiles reports whether any of profiles is active, or, when no
// profile is active, is a default profile. A "!name" entry matches when name
// is not in effect.
func (e *Environment) AcceptsProfiles(profiles ...string) bool {
	effective := e.ActiveProfiles()
	if len(effective) == 0 {
		effective = e.DefaultProfiles()
	}
	for _, p := range profiles {
		if negated, ok := strings.CutPrefix(p, "!"); ok {
			if !slices.Contains(effective, negated) {
				return true
			}
			continue
		}
		if slices.Contains(effective, p) {
			return true
		}
	}
	return false
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		return strings.Join(t, ",")
	case []any:
		parts := make([]string, len(t))
		for i, p := range t {
			parts[i] = stringify(p)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if v != "" && !slices.Contains(dst, v) {
			dst = append(dst, v)
		}
	}
	return dst
}
