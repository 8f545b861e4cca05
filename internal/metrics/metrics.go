// Package metrics holds the pipeline's domain metrics. HTTP metrics live in
// the Prometheus middleware.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"postflow/internal/model"
)

// Pipeline records post transitions and caption generation calls. A nil
// *Pipeline discards everything.
type Pipeline struct {
	transitions *prometheus.CounterVec
	generation  *prometheus.HistogramVec
}

// NewPipeline registers the collectors on reg.
func NewPipeline(reg prometheus.Registerer) (*Pipeline, error) {
	p := &Pipeline{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "postflow_post_transitions_total",
				Help: "Post status transitions, by target status.",
			},
			[]string{"to"},
		),
		generation: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "postflow_llm_generation_seconds",
				Help:    "Caption generation latency including retries.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"provider", "outcome"},
		),
	}
	for _, c := range []prometheus.Collector{p.transitions, p.generation} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Pipeline) Transition(to model.PostStatus) {
	if p == nil {
		return
	}
	p.transitions.WithLabelValues(string(to)).Inc()
}

// Generation observes one caption generation. outcome is "ok" or "error".
func (p *Pipeline) Generation(provider model.Provider, err error, took time.Duration) {
	if p == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.generation.WithLabelValues(string(provider), outcome).Observe(took.Seconds())
}
