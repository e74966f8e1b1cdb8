// Package telemetry holds Prometheus metrics and OpenTelemetry tracing setup.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderRequests counts outbound provider calls by outcome. "ok" and
	// "transport" partition all calls; "malformed" counts the 2xx replies
	// that then failed to decode.
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leadintel",
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Total number of outbound AI provider requests",
		},
		[]string{"provider", "outcome"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "leadintel",
			Subsystem: "provider",
			Name:      "request_duration_seconds",
			Help:      "Outbound AI provider request latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"provider"},
	)

	// Submissions counts orchestrator submissions rejected locally or dispatched.
	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leadintel",
			Subsystem: "orchestrator",
			Name:      "submissions_total",
			Help:      "Orchestrator submissions by kind and result",
		},
		[]string{"orchestrator", "result"},
	)

	InFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "leadintel",
			Subsystem: "orchestrator",
			Name:      "in_flight",
			Help:      "Provider requests currently outstanding per orchestrator kind",
		},
		[]string{"orchestrator"},
	)

	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "leadintel",
			Subsystem: "live",
			Name:      "connections_active",
			Help:      "Number of connected dashboard event sockets",
		},
	)
)
