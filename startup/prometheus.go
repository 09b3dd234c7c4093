package startup

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector exports the duration of the latest run of each step
// and a count of finished steps.
type PrometheusCollector struct {
	durations *prometheus.GaugeVec
	total     *prometheus.CounterVec
	inner     *Buffering
}

// NewPrometheusCollector registers the startup metrics with reg. Metrics
// already registered by an earlier collector are reused.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	durations := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "launchpad",
			Subsystem: "startup",
			Name:      "step_seconds",
			Help:      "Duration of the most recent run of each startup step in seconds.",
		},
		[]string{"step"},
	)
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "launchpad",
			Subsystem: "startup",
			Name:      "steps_total",
			Help:      "Total finished startup steps.",
		},
		[]string{"step"},
	)

	var err error
	if durations, err = register(reg, durations); err != nil {
		return nil, err
	}
	if total, err = register(reg, total); err != nil {
		return nil, err
	}
	return &PrometheusCollector{durations: durations, total: total, inner: NewBuffering(0)}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("failed to register startup metrics: %w", err)
	}
	return c, nil
}

// Start implements Collector.
func (p *PrometheusCollector) Start(name string) Step {
	return &prometheusStep{Step: p.inner.Start(name), owner: p, start: time.Now()}
}

type prometheusStep struct {
	Step
	owner *PrometheusCollector
	start time.Time
	done  bool
}

func (s *prometheusStep) Tag(key, value string) Step {
	s.Step.Tag(key, value)
	return s
}

func (s *prometheusStep) End() {
	if s.done {
		return
	}
	s.done = true
	s.Step.End()
	s.owner.durations.WithLabelValues(s.Name()).Set(time.Since(s.start).Seconds())
	s.owner.total.WithLabelValues(s.Name()).Inc()
	s.owner.inner.Drain()
}
