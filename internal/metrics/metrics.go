// Package metrics exposes prometheus collectors for the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scope labels used on routed events.
const (
	ScopeRoom     = "room"
	ScopeFallback = "fallback"
	ScopeGlobal   = "global"
)

var (
	Connections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_connections",
			Help: "Current number of registered socket connections",
		},
	)

	Rooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_rooms",
			Help: "Current number of rooms with at least one member",
		},
	)

	EventsRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_routed_total",
			Help: "Domain events accepted for routing",
		},
		[]string{"event", "scope"},
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Frames handed to recipient connections",
		},
		[]string{"event"},
	)

	RoomMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_room_misses_total",
			Help: "Scoped events whose room had no other member",
		},
		[]string{"event"},
	)

	DroppedSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_dropped_sends_total",
			Help: "Frames dropped because the recipient queue was full or closed",
		},
		[]string{"reason"},
	)

	UnknownEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_unknown_events_total",
			Help: "Inbound events with no routing entry",
		},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_rate_limited_total",
			Help: "Inbound events rejected by the per-connection flood guard",
		},
	)
)

// RecordMembership updates the connection and room gauges.
func RecordMembership(conns, rooms int) {
	Connections.Set(float64(conns))
	Rooms.Set(float64(rooms))
}
