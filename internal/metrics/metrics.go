// Package metrics holds the Prometheus collectors for provider calls and
// JSON recovery outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recovery outcomes.
const (
	OutcomeStrict   = "strict"
	OutcomeRepaired = "repaired"
	OutcomeNoJSON   = "no_json"
	OutcomeFailed   = "failed"
)

// Metrics is a set of collectors registered on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	tokens   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	recovery *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qgen",
			Name:      "llm_requests_total",
			Help:      "Provider calls by provider and outcome.",
		}, []string{"provider", "status"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qgen",
			Name:      "llm_tokens_total",
			Help:      "Tokens reported by providers, by kind (prompt or completion).",
		}, []string{"provider", "kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "qgen",
			Name:      "llm_request_duration_seconds",
			Help:      "Provider call latency.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"provider"}),
		recovery: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "qgen",
			Name:      "json_recovery_total",
			Help:      "JSON recovery attempts by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.requests, m.tokens, m.duration, m.recovery)
	return m
}

// ObserveCall records one provider call. status is "ok" or "error".
func (m *Metrics) ObserveCall(provider, status string, promptTokens, completionTokens int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(provider, status).Inc()
	m.duration.WithLabelValues(provider).Observe(d.Seconds())
	if promptTokens > 0 {
		m.tokens.WithLabelValues(provider, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.tokens.WithLabelValues(provider, "completion").Add(float64(completionTokens))
	}
}

// ObserveRecovery counts one JSON recovery outcome.
func (m *Metrics) ObserveRecovery(outcome string) {
	if m == nil {
		return
	}
	m.recovery.WithLabelValues(outcome).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
