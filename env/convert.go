package env

// Convert returns e when it already has the requested kind; otherwise it
// returns a new environment of that kind holding the same sources, in the
// same order, and the same profiles. The relaxed-name source is not carried
// over and must be re-attached.
func Convert(e *Environment, kind Kind) *Environment {
	if e.kind == kind {
		return e
	}

	converted := &Environment{
		kind:            kind,
		sources:         NewSources(),
		activeProfiles:  e.ActiveProfiles(),
		activeResolved:  true,
		defaultProfiles: e.DefaultProfiles(),
		defaultResolved: true,
	}
	for ps := range e.sources.All() {
		if ps.Name() == AttachedSourceName {
			continue
		}
		converted.sources.AddLast(ps)
	}
	return converted
}
