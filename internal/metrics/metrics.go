// Package metrics exposes router counters and latencies in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the router's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Resolution metrics
	Resolutions       *prometheus.CounterVec
	ResolutionLatency prometheus.Histogram

	// Trace log metrics
	TracesRecorded  *prometheus.CounterVec
	StaleReferences prometheus.Counter
	Recalls         *prometheus.CounterVec

	// Registry writes by operation
	PatternWrites *prometheus.CounterVec
}

// New creates the collectors on a private registry, alongside the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cmdrouter_resolutions_total",
			Help: "Resolution attempts by deciding stage and match type",
		}, []string{"stage", "match_type"}), // stage "none" when nothing matched

		ResolutionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cmdrouter_resolution_duration_seconds",
			Help:    "Time spent resolving a request, storage reads included",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		TracesRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cmdrouter_traces_recorded_total",
			Help: "Trace entries written, by outcome",
		}, []string{"success"}),

		StaleReferences: factory.NewCounter(prometheus.CounterOpts{
			Name: "cmdrouter_stale_pattern_references_total",
			Help: "Trace entries whose matched pattern no longer exists",
		}),

		Recalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cmdrouter_recalls_total",
			Help: "Recall queries by mode",
		}, []string{"mode"}),

		PatternWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cmdrouter_pattern_writes_total",
			Help: "Registry writes by operation",
		}, []string{"op"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveResolution records one resolution. stage and matchType are empty
// when nothing matched.
func (m *Metrics) ObserveResolution(stage, matchType string, took time.Duration) {
	if m == nil {
		return
	}
	if stage == "" {
		stage, matchType = "none", "none"
	}
	m.Resolutions.WithLabelValues(stage, matchType).Inc()
	m.ResolutionLatency.Observe(took.Seconds())
}

// TraceRecorded counts a written trace entry.
func (m *Metrics) TraceRecorded(success, stale bool) {
	if m == nil {
		return
	}
	m.TracesRecorded.WithLabelValues(strconv.FormatBool(success)).Inc()
	if stale {
		m.StaleReferences.Inc()
	}
}

// Recall counts a recall query.
func (m *Metrics) Recall(mode string) {
	if m == nil {
		return
	}
	m.Recalls.WithLabelValues(mode).Inc()
}

// PatternWrite counts a registry write.
func (m *Metrics) PatternWrite(op string) {
	if m == nil {
		return
	}
	m.PatternWrites.WithLabelValues(op).Inc()
}
