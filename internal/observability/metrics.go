package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Handshake outcomes recorded per session.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeHangup  = "hangup"
	OutcomeRefused = "refused"
)

var (
	registerOnce sync.Once

	connectionsAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tlvhello",
			Subsystem: "server",
			Name:      "connections_accepted_total",
			Help:      "Connections accepted into a slot.",
		},
	)
	acceptErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tlvhello",
			Subsystem: "server",
			Name:      "accept_errors_total",
			Help:      "Accept calls that failed.",
		},
	)
	sessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tlvhello",
			Subsystem: "server",
			Name:      "sessions_total",
			Help:      "Finished sessions by outcome.",
		},
		[]string{"outcome"},
	)
	sessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tlvhello",
			Subsystem: "server",
			Name:      "session_duration_seconds",
			Help:      "Time from accept to slot release.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	activeSlots = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tlvhello",
			Subsystem: "server",
			Name:      "active_slots",
			Help:      "Occupied client slots.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tlvhello",
			Subsystem: "admin",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tlvhello",
			Subsystem: "admin",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			connectionsAccepted,
			acceptErrors,
			sessions,
			sessionDuration,
			activeSlots,
			httpRequests,
			httpDuration,
		)
	})
}

func RecordAccepted(active int) {
	RegisterMetrics()
	connectionsAccepted.Inc()
	activeSlots.Set(float64(active))
}

func RecordAcceptError() {
	RegisterMetrics()
	acceptErrors.Inc()
}

func RecordRefused() {
	RegisterMetrics()
	sessions.WithLabelValues(OutcomeRefused).Inc()
}

// RecordSession counts one released slot.
func RecordSession(outcome string, active int, duration time.Duration) {
	RegisterMetrics()
	sessions.WithLabelValues(outcome).Inc()
	sessionDuration.Observe(duration.Seconds())
	activeSlots.Set(float64(active))
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

// SessionCount reads the current counter for outcome.
func SessionCount(outcome string) float64 {
	RegisterMetrics()
	return counterValue(sessions.WithLabelValues(outcome))
}

func AcceptedCount() float64 {
	RegisterMetrics()
	return counterValue(connectionsAccepted)
}
