package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the remote-control session broker.
//
// Naming convention: namespace_subsystem_name
// - namespace: remote_broker (application-level grouping)
// - subsystem: websocket, room, host, session (feature-level grouping)
// - name: specific metric (connections_active, events_total, etc.)

var (
	// ActiveWebSocketConnections tracks the current number of live connections
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "remote_broker",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of rooms in the registry
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "remote_broker",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomParticipants tracks the participant count per room
	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "remote_broker",
		Subsystem: "room",
		Name:      "participants_count",
		Help:      "Number of participants in each room",
	}, []string{"room_id"})

	// RegisteredHosts tracks the current number of registered host agents
	RegisteredHosts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "remote_broker",
		Subsystem: "host",
		Name:      "registered_total",
		Help:      "Current number of registered host agents",
	})

	// ActiveSessions tracks the current number of bound remote-control sessions
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "remote_broker",
		Subsystem: "session",
		Name:      "sessions_active",
		Help:      "Current number of active remote-control sessions",
	})

	// WebsocketEvents tracks inbound events by name and outcome
	WebsocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "remote_broker",
		Subsystem: "websocket",
		Name:      "events_total",
		Help:      "Total WebSocket events processed",
	}, []string{"event_type", "status"})

	// RelayedFrames counts screen frames forwarded host -> controller
	RelayedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "remote_broker",
		Subsystem: "session",
		Name:      "frames_relayed_total",
		Help:      "Total screen frames relayed to controllers",
	})

	// RelayedInputs counts input events forwarded controller -> host
	RelayedInputs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "remote_broker",
		Subsystem: "session",
		Name:      "inputs_relayed_total",
		Help:      "Total input events relayed to hosts",
	})

	// SessionOutcomes counts session terminations by cause
	SessionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "remote_broker",
		Subsystem: "session",
		Name:      "ended_total",
		Help:      "Total sessions ended, by cause",
	}, []string{"ended_by"})

	// RateLimitExceeded counts rejected requests per endpoint and limit type
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "remote_broker",
		Subsystem: "ratelimit",
		Name:      "exceeded_total",
		Help:      "Total requests rejected by rate limiting",
	}, []string{"endpoint", "limit_type"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
