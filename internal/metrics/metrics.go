// Package metrics holds the Prometheus collectors of a registry process.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of one registry. Each instance owns
// its registry so tests and embedded servers never collide on names.
type Metrics struct {
	registry *prometheus.Registry

	// Request metrics, labelled by transport (grpc, http) and method
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Sync metrics
	SyncRuns     *prometheus.CounterVec
	SyncItems    *prometheus.CounterVec
	SyncDuration prometheus.Histogram
	LastSync     prometheus.Gauge

	// Store metrics
	Packages prometheus.Gauge

	Uptime    prometheus.GaugeFunc
	startTime time.Time
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nebula_requests_total",
				Help: "Total number of registry requests",
			},
			[]string{"transport", "method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nebula_request_duration_seconds",
				Help:    "Registry request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"transport", "method"},
		),

		SyncRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nebula_sync_runs_total",
				Help: "Total number of sync runs by result",
			},
			[]string{"result"},
		),
		SyncItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nebula_sync_items_total",
				Help: "Total number of remote items processed by outcome",
			},
			[]string{"outcome"},
		),
		SyncDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "nebula_sync_duration_seconds",
				Help:    "Duration of a full sync run in seconds",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
			},
		),
		LastSync: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "nebula_sync_last_success_timestamp_seconds",
				Help: "Unix time of the last successful sync run",
			},
		),

		Packages: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "nebula_packages",
				Help: "Number of descriptors held by the served store",
			},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "nebula_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(transport, method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(transport, method, status).Inc()
	m.RequestDuration.WithLabelValues(transport, method).Observe(duration.Seconds())
}

// ObserveSync records one sync run and its per-item outcomes.
func (m *Metrics) ObserveSync(err error, synced, skipped int, duration time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.SyncRuns.WithLabelValues(result).Inc()
	m.SyncItems.WithLabelValues("synced").Add(float64(synced))
	m.SyncItems.WithLabelValues("skipped").Add(float64(skipped))
	m.SyncDuration.Observe(duration.Seconds())
	if err == nil {
		m.LastSync.SetToCurrentTime()
	}
}

// SetPackages records the size of the served store.
func (m *Metrics) SetPackages(n int) {
	if m == nil {
		return
	}
	m.Packages.Set(float64(n))
}
