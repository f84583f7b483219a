package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherics_cache_lookups_total",
			Help: "Cache lookups by window (forward, backward) and result",
		},
		[]string{"window", "result"},
	)

	CacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherics_cache_writes_total",
			Help: "Asynchronous cache writes by status (ok, error, dropped)",
		},
		[]string{"status"},
	)

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherics_upstream_requests_total",
			Help: "Calls to third-party providers",
		},
		[]string{"provider", "status"},
	)

	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherics_upstream_latency_seconds",
			Help:    "Third-party provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	CalendarsRendered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weatherics_calendars_rendered_total",
			Help: "Calendar documents served",
		},
	)
)
