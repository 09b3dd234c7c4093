package env

import "strings"

// AttachedSourceName is the name of the relaxed-name view installed by Attach.
const AttachedSourceName = "configurationProperties"

// attachedSource resolves keys across all other sources of the environment,
// in precedence order, matching names in relaxed form: case-insensitive and
// ignoring '-', '_' and '.', so app.main.banner-mode, app.main.bannerMode and
// APP_MAIN_BANNER_MODE are the same key.
type attachedSource struct {
	sources *Sources
}

func (a *attachedSource) Name() string { return AttachedSourceName }

func (a *attachedSource) Property(key string) (any, bool) {
	canonical := CanonicalName(key)
	for ps := range a.sources.All() {
		if ps.Name() == AttachedSourceName {
			continue
		}
		if v, ok := ps.Property(key); ok {
			return v, true
		}
		enum, ok := ps.(EnumerablePropertySource)
		if !ok {
			continue
		}
		for _, k := range enum.Keys() {
			if CanonicalName(k) == canonical {
				if v, found := ps.Property(k); found {
					return v, true
				}
			}
		}
	}
	return nil, false
}

// Attach installs the relaxed-name source first in e, replacing any earlier attachment.
func Attach(e *Environment) {
	e.sources.Remove(AttachedSourceName)
	e.sources.AddFirst(&attachedSource{sources: e.sources})
}

// Detach removes the relaxed-name source, if attached.
func Detach(e *Environment) {
	e.sources.Remove(AttachedSourceName)
}

// IsAttached reports whether the relaxed-name source is installed.
func IsAttached(e *Environment) bool {
	return e.sources.Contains(AttachedSourceName)
}

// CanonicalName reduces a property name to its relaxed form.
func CanonicalName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch r {
		case '-', '_', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
