package env

import (
	"maps"
	"slices"
)

// DefaultPropertiesSourceName is the name of the lowest-precedence defaults source.
const DefaultPropertiesSourceName = "defaultProperties"

// AddOrMerge adds defaults as the defaultProperties source, or merges them
// into the existing one: present keys are updated in place, absent keys are
// appended in lexical order.
func AddOrMerge(defaults map[string]any, sources *Sources) {
	if len(defaults) == 0 {
		return
	}

	existing := sources.Get(DefaultPropertiesSourceName)
	if existing == nil {
		sources.AddLast(NewMapPropertySource(DefaultPropertiesSourceName, defaults))
		return
	}

	merged, ok := existing.(*MapPropertySource)
	if !ok {
		merged = &MapPropertySource{name: DefaultPropertiesSourceName, values: make(map[string]any)}
		if e, isEnum := existing.(EnumerablePropertySource); isEnum {
			for _, k := range e.Keys() {
				if v, found := e.Property(k); found {
					merged.Set(k, v)
				}
			}
		}
		_ = sources.Replace(DefaultPropertiesSourceName, merged)
	}
	for _, k := range slices.Sorted(maps.Keys(defaults)) {
		merged.Set(k, defaults[k])
	}
}

// MoveToEnd moves the defaultProperties source, if present, to the lowest precedence.
func MoveToEnd(sources *Sources) {
	if ps := sources.Remove(DefaultPropertiesSourceName); ps != nil {
		sources.AddLast(ps)
	}
}
