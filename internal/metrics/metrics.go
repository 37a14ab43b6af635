// Package metrics provides Prometheus metrics for the activity tracker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Heartbeat sources.
const (
	SourcePoll   = "poll"
	SourceSave   = "save"
	SourceBackup = "backup"
)

// Metrics holds all Prometheus metrics for the tracker.
type Metrics struct {
	HeartbeatsTotal   *prometheus.CounterVec
	SinkFailuresTotal *prometheus.CounterVec
	SkippedTotal      *prometheus.CounterVec
	TickErrorsTotal   prometheus.Counter
	SinkDuration      prometheus.Histogram
	IndexedFiles      prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		HeartbeatsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kicad_gtm_heartbeats_total",
				Help: "Total number of heartbeats handed to the sink by source.",
			},
			[]string{"source"},
		),
		SinkFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kicad_gtm_sink_failures_total",
				Help: "Total failed sink invocations by kind.",
			},
			[]string{"kind"},
		),
		SkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kicad_gtm_skipped_decisions_total",
				Help: "Heartbeat decisions that did not record, by reason.",
			},
			[]string{"reason"},
		),
		TickErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kicad_gtm_tick_errors_total",
				Help: "Total ticks that ended with an error.",
			},
		),
		SinkDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kicad_gtm_sink_duration_seconds",
				Help:    "Time spent waiting for the sink command.",
				Buckets: prometheus.DefBuckets,
			},
		),
		IndexedFiles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "kicad_gtm_indexed_files",
				Help: "Number of KiCad files in the file index.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.HeartbeatsTotal)
	reg.MustRegister(m.SinkFailuresTotal)
	reg.MustRegister(m.SkippedTotal)
	reg.MustRegister(m.TickErrorsTotal)
	reg.MustRegister(m.SinkDuration)
	reg.MustRegister(m.IndexedFiles)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHeartbeat increments the heartbeat counter.
func (m *Metrics) RecordHeartbeat(source string) {
	m.HeartbeatsTotal.WithLabelValues(source).Inc()
}

// RecordSinkFailure increments the sink failure counter.
func (m *Metrics) RecordSinkFailure(kind string) {
	m.SinkFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordSkip increments the skipped decision counter.
func (m *Metrics) RecordSkip(reason string) {
	m.SkippedTotal.WithLabelValues(reason).Inc()
}

// RecordTickError increments the tick error counter.
func (m *Metrics) RecordTickError() {
	m.TickErrorsTotal.Inc()
}

// ObserveSink records how long the sink took.
func (m *Metrics) ObserveSink(seconds float64) {
	m.SinkDuration.Observe(seconds)
}

// SetIndexedFiles sets the indexed file count.
func (m *Metrics) SetIndexedFiles(count int) {
	m.IndexedFiles.Set(float64(count))
}
