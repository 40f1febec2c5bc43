// Package metrics exposes gateway counters in the Prometheus format.
//
// A nil *Collector is valid and records nothing, so callers never need to
// check whether metrics are enabled.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ModeJSON   = "json"
	ModeStream = "stream"

	OutcomeOK        = "ok"
	OutcomeFailed    = "provider_error"
	OutcomeCancelled = "cancelled"
	OutcomeRejected  = "store_error"
)

// Collector owns the gateway metrics and their registry.
type Collector struct {
	registry *prometheus.Registry

	completionsTotal *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	chunksTotal      prometheus.Counter
	historyMessages  prometheus.Gauge
}

// NewCollector creates and registers the gateway metrics under namespace.
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		completionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "completions_total",
				Help:      "Completion requests by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		providerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_duration_seconds",
				Help:      "Time spent waiting on the LLM provider",
				// LLM latencies, 100ms - 60s
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"mode"},
		),
		chunksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_chunks_total",
			Help:      "Content chunks written to SSE streams",
		}),
		historyMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_messages",
			Help:      "Messages currently held in the conversation history",
		}),
	}
	c.registry.MustRegister(c.completionsTotal, c.providerDuration, c.chunksTotal, c.historyMessages)
	return c
}

// ObserveCompletion records one finished completion request.
func (c *Collector) ObserveCompletion(mode, outcome string, providerLatency time.Duration) {
	if c == nil {
		return
	}
	c.completionsTotal.WithLabelValues(mode, outcome).Inc()
	c.providerDuration.WithLabelValues(mode).Observe(providerLatency.Seconds())
}

// AddChunk counts one emitted content chunk.
func (c *Collector) AddChunk() {
	if c == nil {
		return
	}
	c.chunksTotal.Inc()
}

// SetHistorySize records the current history length.
func (c *Collector) SetHistorySize(n int) {
	if c == nil {
		return
	}
	c.historyMessages.Set(float64(n))
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
