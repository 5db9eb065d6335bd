// Package metrics holds the prometheus collectors shared by the engine and
// the API layer.
//
// Labels are bounded (event type names, fixed reason strings, route
// patterns). Nothing is ever labelled per player or per session.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Game engine metrics
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_tick_duration_seconds",
		Help:    "Time spent in game tick",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.033, 0.05, 0.1},
	})

	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_ticks_total",
		Help: "Total simulation ticks executed",
	})

	entityCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "game_entity_count",
		Help: "Live entities by kind",
	}, []string{"kind"}) // Bounded: "player", "enemy", "bullet", "pickup"

	waveNumber = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_wave_number",
		Help: "Current wave number",
	})

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_events_total",
		Help: "Outbound events produced by the engine",
	}, []string{"type"}) // Bounded: the engine's event type names

	// Event journal metrics
	journalDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "event_journal_dropped",
		Help: "Journal entries dropped due to rate limiting or buffer full",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "ws_limit", "server_full", "upgrade"

	messageRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_message_rejected_total",
		Help: "Inbound session messages rejected at the gateway",
	}, []string{"reason"}) // Bounded: "decode", "unknown", "invalid", "rate_limit"

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is path pattern, not full URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "WebSocket frames by direction",
	}, []string{"direction"}) // Bounded: "in", "out"

	wsFramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_frames_dropped_total",
		Help: "Outbound frames dropped because a session's send buffer was full",
	})
)

// RecordTick records tick timing
func RecordTick(duration time.Duration) {
	tickDuration.Observe(duration.Seconds())
	ticksTotal.Inc()
}

// UpdateEntityCounts updates the entity gauges
func UpdateEntityCounts(players, enemies, bullets, pickups int) {
	entityCount.WithLabelValues("player").Set(float64(players))
	entityCount.WithLabelValues("enemy").Set(float64(enemies))
	entityCount.WithLabelValues("bullet").Set(float64(bullets))
	entityCount.WithLabelValues("pickup").Set(float64(pickups))
}

// UpdateWave sets the current wave number
func UpdateWave(n int) {
	waveNumber.Set(float64(n))
}

// RecordEvent counts one outbound event of the named type
func RecordEvent(eventType string) {
	eventsTotal.WithLabelValues(eventType).Inc()
}

// UpdateJournalDropped mirrors the journal's dropped counter
func UpdateJournalDropped(dropped uint64) {
	journalDropped.Set(float64(dropped))
}

// RecordConnectionRejected increments the rejection counter
// reason must be one of: "rate_limit", "ws_limit", "server_full", "upgrade"
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordMessageRejected increments the inbound rejection counter
// reason must be one of: "decode", "unknown", "invalid", "rate_limit"
func RecordMessageRejected(reason string) {
	messageRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// RecordWSMessage counts one frame; direction is "in" or "out"
func RecordWSMessage(direction string) {
	wsMessagesTotal.WithLabelValues(direction).Inc()
}

// RecordWSFrameDropped counts one frame dropped for a slow session
func RecordWSFrameDropped() {
	wsFramesDropped.Inc()
}
