// Package metrics provides Prometheus instrumentation for the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackendRequestDuration tracks marketplace API call latency.
	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bibomarket_backend_request_duration_seconds",
			Help:    "Marketplace API request duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status"},
	)

	// BackendRequestsTotal counts marketplace API calls.
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bibomarket_backend_requests_total",
			Help: "Total marketplace API requests",
		},
		[]string{"endpoint", "status"},
	)

	// PollRunsTotal counts scheduler job runs.
	PollRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bibomarket_poll_runs_total",
			Help: "Total scheduled refresh runs",
		},
		[]string{"job", "trigger", "result"},
	)

	// EventsPublishedTotal counts bus events by topic.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bibomarket_events_published_total",
			Help: "Total view events published",
		},
		[]string{"topic"},
	)

	// WebSocketConnectionsActive tracks connected shell clients.
	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bibomarket_websocket_connections_active",
			Help: "Number of connected shell clients",
		},
	)
)

// RecordBackendRequest records metrics for one marketplace API call.
func RecordBackendRequest(endpoint, status string, duration float64) {
	BackendRequestDuration.WithLabelValues(endpoint, status).Observe(duration)
	BackendRequestsTotal.WithLabelValues(endpoint, status).Inc()
}

func RecordPollRun(job, trigger, result string) {
	PollRunsTotal.WithLabelValues(job, trigger, result).Inc()
}

func RecordEvent(topic string) {
	EventsPublishedTotal.WithLabelValues(topic).Inc()
}
