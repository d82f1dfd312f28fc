// Package metrics exposes Prometheus collectors and the /healthz endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "marketcore"

var (
	// Scheduler
	TicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_ticks_total",
		Help:      "Scheduler ticks run",
	})
	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scheduler_tick_duration_seconds",
		Help:      "Wall time of one refresh tick across all symbols",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
	BarsAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bars_appended_total",
		Help:      "Bars appended by the scheduler",
	})
	RefreshFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_failures_total",
		Help:      "Per-symbol refresh failures (logged and skipped)",
	})
	RefreshSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_skipped_total",
		Help:      "Symbols skipped because a previous refresh was still fetching",
	})

	// Broadcast
	Subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "broadcast_subscribers",
		Help:      "Registered broadcast subscribers",
	})
	BroadcastSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_sent_total",
		Help:      "Bars delivered to subscriber channels",
	})
	BroadcastDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_drops_total",
		Help:      "Bars dropped because a subscriber channel was full",
	})

	// Cache
	CacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Cache hits by TTL class",
	}, []string{"class"})
	CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_misses_total",
		Help:      "Cache misses",
	})
	CacheInvalidations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_invalidated_entries_total",
		Help:      "Entries removed by pattern invalidation",
	})

	// Store
	StoreLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "store_duration_seconds",
		Help:      "Bar store latency by operation",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
	StoreFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_fallbacks_total",
		Help:      "Reads served by the generator because the store failed or timed out",
	}, []string{"op"})

	// Redis publisher
	RedisPublishDur = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "redis_publish_duration_seconds",
		Help:      "Redis pipeline latency for bar publication",
		Buckets:   prometheus.DefBuckets,
	})
	RedisCircuitBreakerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "redis_circuit_breaker_state",
		Help:      "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
	})
	RedisCircuitBreakerTrips = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "redis_circuit_breaker_trips_total",
		Help:      "Times the Redis circuit breaker tripped open",
	})

	// Analytics
	AlertsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_total",
		Help:      "Alerts raised after refresh, by kind",
	}, []string{"kind"})

	// Gateway
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "REST requests by route and status code",
	}, []string{"route", "code"})
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "REST request latency by route",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
	WSClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_clients",
		Help:      "Connected websocket clients",
	})
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		TickDuration,
		BarsAppended,
		RefreshFailures,
		RefreshSkipped,
		Subscribers,
		BroadcastSent,
		BroadcastDrops,
		CacheHits,
		CacheMisses,
		CacheInvalidations,
		StoreLatency,
		StoreFallbacks,
		RedisPublishDur,
		RedisCircuitBreakerState,
		RedisCircuitBreakerTrips,
		AlertsTotal,
		HTTPRequests,
		HTTPDuration,
		WSClients,
	)
}
