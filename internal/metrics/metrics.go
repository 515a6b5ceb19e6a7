// Package metrics exposes Prometheus metrics for scans, alerts and monitors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/darkwatch/internal/model"
)

// Namespace prefixes every metric name.
const Namespace = "darkwatch"

// Metrics implements scan.Observer and monitor.Observer.
type Metrics struct {
	registry *prometheus.Registry

	ScansTotal        *prometheus.CounterVec
	ScanFailuresTotal prometheus.Counter
	ScanDuration      prometheus.Histogram
	ThreatScore       prometheus.Histogram
	AlertsTotal       *prometheus.CounterVec
	MonitorRunsTotal  *prometheus.CounterVec
	MonitorRunSeconds prometheus.Histogram
	MonitorsActive    prometheus.Gauge
	MonitorsPaused    prometheus.Gauge
}

// New creates the metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}
	m.ScansTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "scan",
		Name:      "completed_total",
		Help:      "Scans that produced a document, by fetch status and risk level.",
	}, []string{"status", "risk_level"})
	m.ScanFailuresTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "scan",
		Name:      "failed_total",
		Help:      "Scans rejected or aborted before a document was stored.",
	})
	m.ScanDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "scan",
		Name:      "duration_seconds",
		Help:      "Wall-clock duration of completed scans.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	})
	m.ThreatScore = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "scan",
		Name:      "threat_score",
		Help:      "Threat score of stored documents.",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})
	m.AlertsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "alerts_total",
		Help:      "Alerts raised, by kind and severity.",
	}, []string{"kind", "severity"})
	m.MonitorRunsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "monitor",
		Name:      "runs_total",
		Help:      "Monitor scans, by outcome.",
	}, []string{"outcome"})
	m.MonitorRunSeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "monitor",
		Name:      "run_duration_seconds",
		Help:      "Duration of monitor scans.",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
	})
	m.MonitorsActive = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "monitor",
		Name:      "active",
		Help:      "Registered monitors that are firing.",
	})
	m.MonitorsPaused = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "monitor",
		Name:      "paused",
		Help:      "Registered monitors that are paused.",
	})
	return m
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ScanCompleted records a stored document.
func (m *Metrics) ScanCompleted(doc *model.ScanDocument, elapsed time.Duration) {
	m.ScansTotal.WithLabelValues(string(doc.Status), string(doc.RiskLevel)).Inc()
	m.ScanDuration.Observe(elapsed.Seconds())
	m.ThreatScore.Observe(float64(doc.ThreatScore))
}

// ScanFailed records a scan that stored nothing.
func (m *Metrics) ScanFailed(string, error) {
	m.ScanFailuresTotal.Inc()
}

// AlertRaised records a stored alert.
func (m *Metrics) AlertRaised(a *model.Alert) {
	m.AlertsTotal.WithLabelValues(string(a.Kind), a.Severity.String()).Inc()
}

// MonitorRan records one monitor scan.
func (m *Metrics) MonitorRan(_ string, elapsed time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.MonitorRunsTotal.WithLabelValues(outcome).Inc()
	m.MonitorRunSeconds.Observe(elapsed.Seconds())
}

// MonitorsChanged updates the registry gauges.
func (m *Metrics) MonitorsChanged(active, paused int) {
	m.MonitorsActive.Set(float64(active))
	m.MonitorsPaused.Set(float64(paused))
}
