package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "espa_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ReactionsTotal counts reaction writes by outcome (added, changed, removed, cleared).
	ReactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "espa_reactions_total",
		Help: "Total reaction writes by outcome",
	}, []string{"target_type", "outcome"})

	// OTPVerificationsTotal counts OTP verification attempts by result.
	OTPVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "espa_otp_verifications_total",
		Help: "Total OTP verification attempts",
	}, []string{"result"})

	// LoginsTotal counts login attempts by method (password, otp) and result.
	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "espa_logins_total",
		Help: "Total login attempts",
	}, []string{"method", "result"})

	// SessionPromotionsTotal counts token identities promoted to server sessions.
	SessionPromotionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "espa_session_promotions_total",
		Help: "Token-authenticated requests promoted to a server session",
	}, []string{"source"})

	// MailDeliveriesTotal counts outbound mail attempts by backend and result.
	MailDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "espa_mail_deliveries_total",
		Help: "Outbound mail attempts",
	}, []string{"backend", "result"})

	// WebSocketEventsTotal counts WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "espa_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "espa_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
