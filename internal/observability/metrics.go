package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LikeToggles counts toggle outcomes: liked, unliked, not_found, error.
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_like_toggles_total",
		Help: "Total number of like toggles by outcome",
	}, []string{"result"})

	// LikeToggleDuration records end-to-end toggle latency including the store transaction.
	LikeToggleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feed_like_toggle_duration_seconds",
		Help:    "Like toggle latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// LikeStoreRetries counts transaction retries after serialization failures or lost insert races.
	LikeStoreRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_like_store_retries_total",
		Help: "Like store retries by reason",
	}, []string{"reason"})

	// LikesReconciled counts posts whose counter was repaired by the reconciler.
	LikesReconciled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_likes_reconciled_total",
		Help: "Posts whose likes_count drifted and was recomputed",
	})

	// EventsPublished counts feed events handed to the router.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_events_published_total",
		Help: "Feed events published by type",
	}, []string{"type"})

	// EventPublishFailures counts events the dispatcher could not hand to the router.
	EventPublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_event_publish_failures_total",
		Help: "Feed events that failed to publish by type",
	}, []string{"type"})

	// DeliveryDropped counts per-connection deliveries dropped by backpressure.
	DeliveryDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_delivery_dropped_total",
		Help: "Per-connection event deliveries dropped",
	}, []string{"reason"})

	// DeliveriesTotal counts successful per-connection enqueues.
	DeliveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feed_deliveries_total",
		Help: "Per-connection event deliveries enqueued",
	})

	// ActiveConnections is the gauge of live websocket connections in this process.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feed_ws_connections_active",
		Help: "Number of live websocket connections",
	})

	// ActiveRooms is the gauge of non-empty rooms in this process.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feed_rooms_active",
		Help: "Number of rooms with at least one local member",
	})

	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// InboundRejected counts websocket client messages refused by the per-connection limiter or parser.
	InboundRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_ws_inbound_rejected_total",
		Help: "Inbound websocket messages rejected by reason",
	}, []string{"reason"})
)
