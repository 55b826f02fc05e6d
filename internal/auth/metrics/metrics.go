package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for voter authentication.
type Metrics struct {
	Attempts        *prometheus.CounterVec
	LockoutRejected prometheus.Counter
	Confidence      prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Attempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fortis_auth_attempts_total",
			Help: "Authentication attempts by outcome",
		}, []string{"outcome"}),
		LockoutRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fortis_auth_lockout_rejections_total",
			Help: "Attempts rejected because the voter or machine was locked out",
		}),
		Confidence: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fortis_auth_biometric_confidence",
			Help:    "Combined biometric score per attempt",
			Buckets: []float64{0.1, 0.25, 0.5, 0.7, 0.8, 0.85, 0.9, 0.95, 1},
		}),
	}
}

func (m *Metrics) IncAttempt(outcome string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncLockoutRejected() {
	if m == nil {
		return
	}
	m.LockoutRejected.Inc()
}

func (m *Metrics) ObserveConfidence(score float64) {
	if m == nil {
		return
	}
	m.Confidence.Observe(score)
}
