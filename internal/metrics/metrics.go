package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatcore_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatcore_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Session metrics
	SessionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatcore_ws_sessions_open",
			Help: "Currently open websocket sessions",
		},
	)

	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatcore_ws_commands_total",
			Help: "Inbound websocket commands by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// Fanout metrics
	FanoutEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatcore_fanout_events_total",
			Help: "Events published through the fanout router",
		},
		[]string{"type"},
	)

	FanoutDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatcore_fanout_dropped_total",
			Help: "Frames dropped because a subscriber buffer was full",
		},
	)

	// Business metrics
	MessagesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatcore_messages_created_total",
			Help: "Total messages persisted",
		},
	)

	PresenceTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatcore_presence_transitions_total",
			Help: "Online/offline transitions",
		},
		[]string{"state"}, // "online" or "offline"
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatcore_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"scope"},
	)
)
