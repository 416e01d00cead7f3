// Package metrics records model calls and story loop outcomes with Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements llm.Recorder and generator.Observer. Each
// recorder owns its registry so tests and multiple sessions never collide on
// the global one.
type PrometheusRecorder struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	roundsTotal     *prometheus.CounterVec
	judgedTotal     *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder on a fresh registry.
func NewPrometheusRecorder() *PrometheusRecorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		registry: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "story_llm_requests_total",
				Help: "Total number of model calls by model, purpose and status",
			},
			[]string{"model", "purpose", "status", "error_kind"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "story_llm_request_duration_seconds",
				Help:    "Duration of model calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "purpose"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "story_llm_tokens_total",
				Help: "Estimated tokens sent to and received from the model",
			},
			[]string{"model", "purpose", "type"},
		),
		roundsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "story_rounds_total",
				Help: "Finished story loops by loop kind and outcome",
			},
			[]string{"loop", "outcome"},
		),
		judgedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "story_judge_verdicts_total",
				Help: "Judge verdicts parsed across all loops",
			},
			[]string{"loop"},
		),
	}
}

// ObserveRequest records one model call.
func (p *PrometheusRecorder) ObserveRequest(
	model, purpose string,
	success bool,
	errorKind string,
	promptTokens, completionTokens int,
	duration time.Duration,
) {
	status := "success"
	if !success {
		status = "error"
	}
	p.requestsTotal.WithLabelValues(model, purpose, status, errorKind).Inc()

	if success {
		p.tokensTotal.WithLabelValues(model, purpose, "prompt").Add(float64(promptTokens))
		p.tokensTotal.WithLabelValues(model, purpose, "completion").Add(float64(completionTokens))
	}
	p.requestDuration.WithLabelValues(model, purpose).Observe(duration.Seconds())
}

// ObserveLoop records a finished generation or feedback loop.
func (p *PrometheusRecorder) ObserveLoop(loop, outcome string, rounds, judged int) {
	p.roundsTotal.WithLabelValues(loop, outcome).Inc()
	p.judgedTotal.WithLabelValues(loop).Add(float64(judged))
}

// Registry exposes the underlying registry.
func (p *PrometheusRecorder) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the recorder's metrics in the Prometheus text format.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
