// Package metrics holds the process-wide Prometheus collectors. They are
// registered on the default registry and exposed by the HTTP server at
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectedClients tracks currently open WebSocket connections.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hoopcast_connected_clients",
		Help: "Number of currently connected WebSocket clients.",
	})

	// RoomMembers tracks subscribers per game room.
	RoomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hoopcast_room_members",
		Help: "Number of subscribers per game room.",
	}, []string{"game_id"})

	// BroadcastsTotal counts room fan-out deliveries by message type.
	BroadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hoopcast_broadcasts_total",
		Help: "Messages delivered to room subscribers, by type.",
	}, []string{"type"})

	// DroppedSubscribersTotal counts subscribers closed because delivery
	// stalled.
	DroppedSubscribersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hoopcast_dropped_subscribers_total",
		Help: "Subscribers dropped due to failed or stalled delivery.",
	})

	// SimEventsTotal counts simulated events by event type.
	SimEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hoopcast_sim_events_total",
		Help: "Simulated game events, by event type.",
	}, []string{"event"})

	// StatsCacheHits counts per-day stat reads served from cache.
	StatsCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hoopcast_stats_cache_hits_total",
		Help: "Stat range reads served from the local cache.",
	})

	// StatsCacheMisses counts per-day stat reads that went upstream.
	StatsCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hoopcast_stats_cache_misses_total",
		Help: "Stat range reads that required an upstream fetch.",
	})

	// UpstreamFailures counts failed upstream provider calls.
	UpstreamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hoopcast_upstream_failures_total",
		Help: "Failed upstream provider calls, by operation.",
	}, []string{"op"})
)
