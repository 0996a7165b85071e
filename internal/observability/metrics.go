package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	requestsTotal        *prometheus.CounterVec
	latencySeconds       *prometheus.HistogramVec
	errorsTotal          *prometheus.CounterVec
	evidenceGradedTotal  *prometheus.CounterVec
	zeroFillCreatedTotal prometheus.Counter
	defenseScoresTotal   *prometheus.CounterVec
	defensesDecidedTotal *prometheus.CounterVec
	notificationsTotal   *prometheus.CounterVec
	sseClientsActive     prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors for the engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "titulacion_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		latencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "titulacion_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "titulacion_errors_total",
			Help: "Total number of error responses returned.",
		}, []string{"method", "route", "status"})

		evidenceGradedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "titulacion_evidence_graded_total",
			Help: "Evidence grading writes, labelled by review track.",
		}, []string{"track"})

		zeroFillCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "titulacion_deadline_zero_fills_total",
			Help: "Synthetic zero-grade evidences created by the deadline enforcer.",
		})

		defenseScoresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "titulacion_defense_scores_total",
			Help: "Individual panelist scores recorded, labelled by defense kind.",
		}, []string{"kind"})

		defensesDecidedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "titulacion_defenses_decided_total",
			Help: "Defense evaluations reaching a terminal state.",
		}, []string{"kind", "outcome"})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "titulacion_notifications_published_total",
			Help: "Internal notifications published, labelled by channel.",
		}, []string{"channel"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "titulacion_sse_clients_active",
			Help: "Open SSE notification streams.",
		})

		prometheus.MustRegister(
			requestsTotal,
			latencySeconds,
			errorsTotal,
			evidenceGradedTotal,
			zeroFillCreatedTotal,
			defenseScoresTotal,
			defensesDecidedTotal,
			notificationsTotal,
			sseClientsActive,
		)
	})
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// Latency exposes the latency histogram for API requests.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return latencySeconds
}

// Errors exposes the counter for error responses.
func Errors() *prometheus.CounterVec {
	RegisterMetrics()
	return errorsTotal
}

// EvidenceGraded exposes the per-track grading counter.
func EvidenceGraded() *prometheus.CounterVec {
	RegisterMetrics()
	return evidenceGradedTotal
}

// ZeroFillsCreated exposes the deadline-enforcer counter.
func ZeroFillsCreated() prometheus.Counter {
	RegisterMetrics()
	return zeroFillCreatedTotal
}

// DefenseScores exposes the panelist score counter.
func DefenseScores() *prometheus.CounterVec {
	RegisterMetrics()
	return defenseScoresTotal
}

// DefensesDecided exposes the terminal-outcome counter.
func DefensesDecided() *prometheus.CounterVec {
	RegisterMetrics()
	return defensesDecidedTotal
}

// NotificationsPublished exposes the notification channel counter.
func NotificationsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}

// SSEClientsActive exposes the open stream gauge.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}
