package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Queue metrics
	EventsEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_events_enqueued_total",
			Help: "Total events accepted and enqueued",
		},
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_rejected_total",
			Help: "Total events rejected at ingress",
		},
		[]string{"reason"}, // "empty", "too_large", "store"
	)

	MessagesDequeued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_dequeued_total",
			Help: "Total message deliveries (redeliveries included)",
		},
	)

	MessagesAcknowledged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_acknowledged_total",
			Help: "Total messages acknowledged",
		},
	)

	MessagesDeadLettered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_dead_lettered_total",
			Help: "Total messages moved to the dead-letter table",
		},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_queue_depth",
			Help: "Messages currently in the queue by state",
		},
		[]string{"state"}, // "visible", "leased", "dead_lettered"
	)
)
