package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "presence_service"

// Metrics holds all application metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Connection lifecycle metrics
	ActiveConnections   prometheus.Gauge
	ConnectionsAdmitted prometheus.Counter
	ConnectionsRejected *prometheus.CounterVec

	// Presence metrics
	PresenceBroadcasts prometheus.Counter
	IdleSweepDemotions prometheus.Counter
	IdleSweepDuration  prometheus.Histogram
	ActiveWorkspaces   prometheus.Gauge
}

// New creates and registers all metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates and registers all metrics with a custom registry.
// Tests use a fresh registry for isolation.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "endpoint"},
		),

		ActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_connections",
				Help:      "Current number of live WebSocket connections",
			},
		),
		ConnectionsAdmitted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_admitted_total",
				Help:      "Total number of admitted WebSocket connections",
			},
		),
		ConnectionsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_rejected_total",
				Help:      "Total number of rejected WebSocket connections",
			},
			[]string{"reason"},
		),

		PresenceBroadcasts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "presence_broadcasts_total",
				Help:      "Total number of presence updates broadcast to workspaces",
			},
		),
		IdleSweepDemotions: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "idle_sweep_demotions_total",
				Help:      "Total number of users demoted to away by the idle sweep",
			},
		),
		IdleSweepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "idle_sweep_duration_seconds",
				Help:      "Idle sweep duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		ActiveWorkspaces: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_workspaces",
				Help:      "Current number of workspaces with at least one member",
			},
		),
	}
}
