package env

import (
	"fmt"
	"iter"
	"slices"
	"sync"
)

// Sources is the ordered, name-unique sequence of property sources backing an
// Environment. Index 0 has the highest precedence. Adding a source whose name
// is already present first removes the existing one.
type Sources struct {
	mu   sync.RWMutex
	list []PropertySource
}

// NewSources creates a sequence holding the given sources in order.
func NewSources(sources ...PropertySource) *Sources {
	s := &Sources{}
	for _, ps := range sources {
		s.AddLast(ps)
	}
	return s
}

// List returns a snapshot of the sources in precedence order.
func (s *Sources) List() []PropertySource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.list)
}

// Names returns the source names in precedence order.
func (s *Sources) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.list))
	for i, ps := range s.list {
		names[i] = ps.Name()
	}
	return names
}

// Len returns the number of sources.
func (s *Sources) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.list)
}

// Contains reports whether a source named name is present.
func (s *Sources) Contains(name string) bool {
	return s.Get(name) != nil
}

// Get returns the source named name, or nil.
func (s *Sources) Get(name string) PropertySource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(name); i >= 0 {
		return s.list[i]
	}
	return nil
}

// AddFirst adds ps with the highest precedence.
func (s *Sources) AddFirst(ps PropertySource) {
	if ps == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(ps.Name())
	s.list = slices.Insert(s.list, 0, ps)
}

// AddLast adds ps with the lowest precedence.
func (s *Sources) AddLast(ps PropertySource) {
	if ps == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(ps.Name())
	s.list = append(s.list, ps)
}

// AddBefore adds ps immediately ahead of the source named relative.
func (s *Sources) AddBefore(relative string, ps PropertySource) error {
	return s.addRelative(relative, ps, 0)
}

// AddAfter adds ps immediately behind the source named relative.
func (s *Sources) AddAfter(relative string, ps PropertySource) error {
	return s.addRelative(relative, ps, 1)
}

func (s *Sources) addRelative(relative string, ps PropertySource, offset int) error {
	if ps == nil {
		return ErrNilSource
	}
	if ps.Name() == relative {
		return fmt.Errorf("%w: %s", ErrSourceRelativeToSelf, relative)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(relative) < 0 {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, relative)
	}
	s.removeLocked(ps.Name())
	i := s.indexOf(relative)
	s.list = slices.Insert(s.list, i+offset, ps)
	return nil
}

// Replace swaps the source named name for ps, keeping its position.
func (s *Sources) Replace(name string, ps PropertySource) error {
	if ps == nil {
		return ErrNilSource
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, name)
	}
	if ps.Name() != name {
		s.removeLocked(ps.Name())
		i = s.indexOf(name)
	}
	s.list[i] = ps
	return nil
}

// Remove deletes and returns the source named name, or nil if absent.
func (s *Sources) Remove(name string) PropertySource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(name)
}

func (s *Sources) removeLocked(name string) PropertySource {
	i := s.indexOf(name)
	if i < 0 {
		return nil
	}
	ps := s.list[i]
	s.list = slices.Delete(s.list, i, i+1)
	return ps
}

func (s *Sources) indexOf(name string) int {
	return slices.IndexFunc(s.list, func(ps PropertySource) bool { return ps.Name() == name })
}

// All iterates a snapshot of the sources in precedence order.
func (s *Sources) All() iter.Seq[PropertySource] {
	return slices.Values(s.List())
}
