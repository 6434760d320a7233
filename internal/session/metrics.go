package session

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatstream",
			Subsystem: "session",
			Name:      "total",
			Help:      "Finished sessions by outcome (completed, failed, rejected)",
		},
		[]string{"outcome"},
	)

	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chatstream",
			Subsystem: "session",
			Name:      "duration_seconds",
			Help:      "Wall time from request receipt to terminal event",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"outcome"},
	)

	sessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chatstream",
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently streaming",
		},
	)

	fragmentsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatstream",
			Subsystem: "session",
			Name:      "fragments_total",
			Help:      "Data events written to clients",
		},
	)

	templateFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatstream",
			Subsystem: "session",
			Name:      "template_fallbacks_total",
			Help:      "Prompts built with the manual template after the chat template failed",
		},
	)

	transportFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatstream",
			Subsystem: "session",
			Name:      "transport_failures_total",
			Help:      "Sessions that lost their client mid-stream",
		},
	)
)

func init() {
	prometheus.MustRegister(sessionsTotal, sessionDuration, sessionsActive, fragmentsTotal, templateFallbacks, transportFailures)
}
