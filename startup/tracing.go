package startup

import (
	"context"
	"slices"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TracingCollector emits one span per step. Nested steps become child spans.
type TracingCollector struct {
	tracer trace.Tracer
	root   context.Context

	mu    sync.Mutex
	open  []*tracingStep
	inner *Buffering
}

// NewTracingCollector creates a collector whose top-level spans descend from ctx.
func NewTracingCollector(ctx context.Context, tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer, root: ctx, inner: NewBuffering(1)}
}

// Start implements Collector.
func (t *TracingCollector) Start(name string) Step {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent := t.root
	if n := len(t.open); n > 0 {
		parent = t.open[n-1].ctx
	}
	ctx, span := t.tracer.Start(parent, name)
	s := &tracingStep{Step: t.inner.Start(name), owner: t, ctx: ctx, span: span}
	t.open = append(t.open, s)
	return s
}

type tracingStep struct {
	Step
	owner *TracingCollector
	ctx   context.Context
	span  trace.Span
	done  bool
}

func (s *tracingStep) Tag(key, value string) Step {
	if !s.done {
		s.span.SetAttributes(attribute.String(key, value))
	}
	return s
}

func (s *tracingStep) End() {
	s.owner.mu.Lock()
	if s.done {
		s.owner.mu.Unlock()
		return
	}
	s.done = true
	if i := slices.Index(s.owner.open, s); i >= 0 {
		s.owner.open = slices.Delete(s.owner.open, i, i+1)
	}
	s.owner.mu.Unlock()

	s.Step.End()
	s.owner.inner.Drain()
	s.span.End()
}
