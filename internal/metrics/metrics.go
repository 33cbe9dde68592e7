package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memetracker_events_total",
			Help: "Message events seen by the listener, by outcome",
		},
		[]string{"outcome"}, // stored, fallback, ignored_self, ignored_channel, lost
	)

	InflightWrites = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "memetracker_inflight_writes",
			Help: "Store writes offloaded and not yet finished",
		},
	)

	// Store metrics
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memetracker_store_latency_seconds",
			Help:    "Durable store operation latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		},
		[]string{"backend", "op"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memetracker_store_errors_total",
			Help: "Durable store failures, by error kind",
		},
		[]string{"backend", "kind"},
	)

	StoreReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memetracker_store_reconnects_total",
			Help: "Fresh store connections opened after the cached one was missing or dead",
		},
		[]string{"backend"},
	)

	// Fallback log metrics
	FallbackMalformedLines = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "memetracker_fallback_malformed_lines_total",
			Help: "Malformed fallback log lines skipped while reading",
		},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memetracker_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memetracker_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "memetracker_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	// Gateway metrics
	GatewayReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "memetracker_gateway_reconnects_total",
			Help: "Gateway sessions re-established after a disconnect",
		},
	)
)
