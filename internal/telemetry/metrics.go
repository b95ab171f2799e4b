package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for sectorpulse.
type Metrics struct {
	registry *prometheus.Registry

	// Provider fetch metrics
	FetchDuration *prometheus.HistogramVec
	FetchTotal    *prometheus.CounterVec
	BreakerState  *prometheus.GaugeVec

	// Poll loop metrics
	PollTicks           prometheus.Counter
	ConsecutiveFailures prometheus.Gauge
	SnapshotAge         prometheus.Gauge
	StaleDrops          prometheus.Counter
	DroppedRecords      prometheus.Counter

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// WebSocket metrics
	WSClients prometheus.Gauge
}

// NewMetrics creates a metrics set registered on its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sectorpulse_fetch_duration_seconds",
				Help:    "Duration of upstream category fetches in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"provider", "result"},
		),

		FetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sectorpulse_fetch_total",
				Help: "Total upstream fetches by provider and result",
			},
			[]string{"provider", "result"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sectorpulse_breaker_state",
				Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open)",
			},
			[]string{"provider"},
		),

		PollTicks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sectorpulse_poll_ticks_total",
				Help: "Total poll loop refresh attempts",
			},
		),

		ConsecutiveFailures: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sectorpulse_consecutive_failures",
				Help: "Consecutive failed refreshes since the last success",
			},
		),

		SnapshotAge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sectorpulse_snapshot_age_seconds",
				Help: "Age of the latest committed snapshot in seconds",
			},
		),

		StaleDrops: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sectorpulse_stale_drops_total",
				Help: "Fetch results discarded because a newer generation already committed",
			},
		),

		DroppedRecords: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sectorpulse_dropped_records_total",
				Help: "Provider records rejected by boundary validation",
			},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sectorpulse_cache_hits_total",
				Help: "Total cache hits by cache type",
			},
			[]string{"cache_type"},
		),

		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sectorpulse_cache_misses_total",
				Help: "Total cache misses by cache type",
			},
			[]string{"cache_type"},
		),

		WSClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sectorpulse_ws_clients",
				Help: "Connected websocket subscribers",
			},
		),
	}

	m.registry.MustRegister(
		m.FetchDuration,
		m.FetchTotal,
		m.BreakerState,
		m.PollTicks,
		m.ConsecutiveFailures,
		m.SnapshotAge,
		m.StaleDrops,
		m.DroppedRecords,
		m.CacheHits,
		m.CacheMisses,
		m.WSClients,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
