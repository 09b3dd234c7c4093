package startup

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Record is a finished step.
type Record struct {
	ID        int64
	ParentID  int64
	Name      string
	Tags      map[string]string
	StartTime time.Time
	Duration  time.Duration
}

// Buffering keeps finished steps in memory, up to a capacity. Steps ending
// once the buffer is full are dropped.
type Buffering struct {
	mu       sync.Mutex
	capacity int
	nextID   int64
	open     []*bufferedStep
	records  []Record
	now      func() time.Time
}

// NewBuffering creates a buffering collector. A capacity of zero or less is unbounded.
func NewBuffering(capacity int) *Buffering {
	return &Buffering{capacity: capacity, now: time.Now}
}

// Start implements Collector.
func (b *Buffering) Start(name string) Step {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	s := &bufferedStep{
		owner: b,
		id:    b.nextID,
		name:  name,
		tags:  make(map[string]string),
		start: b.now(),
	}
	if n := len(b.open); n > 0 {
		s.parent = b.open[n-1].id
	}
	b.open = append(b.open, s)
	return s
}

// Records returns the finished steps in the order they ended.
func (b *Buffering) Records() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.records)
}

// Drain returns and clears the finished steps.
func (b *Buffering) Drain() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.records
	b.records = nil
	return out
}

func (b *Buffering) end(s *bufferedStep) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i := slices.Index(b.open, s); i >= 0 {
		b.open = slices.Delete(b.open, i, i+1)
	}
	if b.capacity > 0 && len(b.records) >= b.capacity {
		return
	}
	b.records = append(b.records, Record{
		ID:        s.id,
		ParentID:  s.parent,
		Name:      s.name,
		Tags:      maps.Clone(s.tags),
		StartTime: s.start,
		Duration:  b.now().Sub(s.start),
	})
}

type bufferedStep struct {
	owner  *Buffering
	id     int64
	parent int64
	name   string
	tags   map[string]string
	start  time.Time
	ended  bool
}

func (s *bufferedStep) ID() int64       { return s.id }
func (s *bufferedStep) ParentID() int64 { return s.parent }
func (s *bufferedStep) Name() string    { return s.name }

func (s *bufferedStep) Tag(key, value string) Step {
	s.owner.mu.Lock()
	defer s.owner.mu.Unlock()
	if !s.ended {
		s.tags[key] = value
	}
	return s
}

func (s *bufferedStep) End() {
	s.owner.mu.Lock()
	if s.ended {
		s.owner.mu.Unlock()
		return
	}
	s.ended = true
	s.owner.mu.Unlock()
	s.owner.end(s)
}
