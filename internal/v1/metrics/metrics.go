package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Naming convention: namespace_subsystem_name
// - namespace: voicesync (application-level grouping)
// - subsystem: websocket, room, dispatch, webrtc, reconnect, rate_limit (feature-level grouping)
// - name: specific metric (connections_active, events_total, etc.)

var (
	// ActiveWebSocketConnections tracks the current number of active signaling connections.
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "voicesync",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of live rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "voicesync",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomParticipants tracks the number of participants in each room.
	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "voicesync",
		Subsystem: "room",
		Name:      "participants_count",
		Help:      "Number of participants in each room",
	}, []string{"room_key"})

	// DispatcherEvents tracks the total number of dispatched messages (CounterVec).
	DispatcherEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voicesync",
		Subsystem: "dispatch",
		Name:      "events_total",
		Help:      "Total inbound messages processed by the dispatcher",
	}, []string{"event_type", "status"})

	// MessageProcessingDuration tracks time spent dispatching a single message.
	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "voicesync",
		Subsystem: "dispatch",
		Name:      "message_processing_seconds",
		Help:      "Time spent processing a dispatched message",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"event_type"})

	// PeerConnectionAttempts tracks WebRTC peer-connection negotiation outcomes.
	PeerConnectionAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voicesync",
		Subsystem: "webrtc",
		Name:      "connection_attempts_total",
		Help:      "Total WebRTC peer connection attempts",
	}, []string{"status"})

	// ReconnectCircuitState mirrors the client's breaker state (0 closed, 1 open, 2 half-open).
	ReconnectCircuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "voicesync",
		Subsystem: "reconnect",
		Name:      "circuit_state",
		Help:      "Current state of the client reconnect circuit breaker",
	}, []string{"server"})

	// RateLimitExceeded tracks requests rejected by the rate limiter.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voicesync",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"endpoint"})

	// RateLimitRequests tracks all requests checked against the rate limiter.
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voicesync",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of requests checked against the rate limiter",
	}, []string{"endpoint"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
