package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for verification session operations.
type Metrics struct {
	SessionsCreated   *prometheus.CounterVec
	SessionsCompleted *prometheus.CounterVec
	SessionsExpired   prometheus.Counter
	ProofsGenerated   *prometheus.CounterVec
	PendingSessions   prometheus.Gauge
	CompleteLatency   prometheus.Histogram
	SessionDuration   prometheus.Histogram
}

// New registers and returns verification metrics collectors.
func New() *Metrics {
	return &Metrics{
		SessionsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "flazk_verification_sessions_created_total",
			Help: "Total number of verification sessions created, labeled by client",
		}, []string{"client"}),
		SessionsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "flazk_verification_sessions_completed_total",
			Help: "Total number of verification sessions reaching a terminal state, labeled by outcome",
		}, []string{"outcome"}),
		SessionsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flazk_verification_sessions_expired_total",
			Help: "Total number of pending sessions removed by expiry",
		}),
		ProofsGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "flazk_proofs_generated_total",
			Help: "Total number of proof artifacts generated, labeled by satisfied",
		}, []string{"satisfied"}),
		PendingSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "flazk_verification_pending_sessions",
			Help: "Current number of pending verification sessions",
		}),
		CompleteLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "flazk_verification_complete_latency_seconds",
			Help:    "Latency of session completion handling in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "flazk_verification_session_duration_seconds",
			Help:    "Wall time from session creation to terminal state in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		}),
	}
}

func (m *Metrics) IncrementSessionsCreated(client string) {
	m.SessionsCreated.WithLabelValues(client).Inc()
	m.PendingSessions.Inc()
}

func (m *Metrics) IncrementSessionsCompleted(outcome string) {
	m.SessionsCompleted.WithLabelValues(outcome).Inc()
	m.PendingSessions.Dec()
}

func (m *Metrics) IncrementSessionsExpired(count int) {
	m.SessionsExpired.Add(float64(count))
	m.PendingSessions.Sub(float64(count))
}

func (m *Metrics) IncrementProofsGenerated(satisfied bool) {
	label := "false"
	if satisfied {
		label = "true"
	}
	m.ProofsGenerated.WithLabelValues(label).Inc()
}

func (m *Metrics) ObserveCompleteLatency(d time.Duration) {
	m.CompleteLatency.Observe(d.Seconds())
}

func (m *Metrics) ObserveSessionDuration(d time.Duration) {
	m.SessionDuration.Observe(d.Seconds())
}
