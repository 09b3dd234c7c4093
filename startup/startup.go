// Package startup records named, nested steps taken while an application
// boots. Collectors range from a no-op to buffering, Prometheus and
// OpenTelemetry implementations, and can be combined with Multi.
package startup

// Collector starts steps. A step started while another is open becomes its child.
type Collector interface {
	Start(name string) Step
}

// Step is a unit of startup work. End must be called exactly once; tags
// added after End are ignored.
type Step interface {
	ID() int64
	ParentID() int64
	Name() string
	Tag(key, value string) Step
	End()
}

// Noop is a collector whose steps record nothing.
var Noop Collector = noopCollector{}

type noopCollector struct{}

func (noopCollector) Start(name string) Step { return noopStep{name: name} }

type noopStep struct{ name string }

func (noopStep) ID() int64                 { return 0 }
func (noopStep) ParentID() int64           { return 0 }
func (s noopStep) Name() string            { return s.name }
func (s noopStep) Tag(string, string) Step { return s }
func (noopStep) End()                      {}

// Multi fans steps out to every collector.
func Multi(collectors ...Collector) Collector {
	return multiCollector(collectors)
}

type multiCollector []Collector

func (m multiCollector) Start(name string) Step {
	steps := make(multiStep, len(m))
	for i, c := range m {
		steps[i] = c.Start(name)
	}
	return steps
}

type multiStep []Step

func (m multiStep) ID() int64 {
	if len(m) == 0 {
		return 0
	}
	return m[0].ID()
}

func (m multiStep) ParentID() int64 {
	if len(m) == 0 {
		return 0
	}
	return m[0].ParentID()
}

func (m multiStep) Name() string {
	if len(m) == 0 {
		return ""
	}
	return m[0].Name()
}

func (m multiStep) Tag(key, value string) Step {
	for _, s := range m {
		s.Tag(key, value)
	}
	return m
}

func (m multiStep) End() {
	for _, s := range m {
		s.End()
	}
}
