package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit ledger.
type Metrics struct {
	EntriesAppended *prometheus.CounterVec
	PersistFailures prometheus.Counter
	FlushLatency    prometheus.Histogram
	BufferedEntries prometheus.Gauge
	AlertsRaised    *prometheus.CounterVec
	Halted          prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		EntriesAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fortis_audit_entries_appended_total",
			Help: "Audit entries appended to the chain by event type",
		}, []string{"event_type"}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fortis_audit_persist_failures_total",
			Help: "Failed attempts to persist audit entries",
		}),
		FlushLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fortis_audit_flush_duration_seconds",
			Help:    "Duration of audit store writes",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		BufferedEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fortis_audit_buffered_entries",
			Help: "Entries appended to the chain but not yet persisted",
		}),
		AlertsRaised: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fortis_audit_alerts_total",
			Help: "Analyzer alerts raised by severity",
		}, []string{"severity"}),
		Halted: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fortis_audit_halted",
			Help: "1 while the ledger is halted after an integrity violation",
		}),
	}
}

func (m *Metrics) IncAppended(eventType string) {
	if m != nil {
		m.EntriesAppended.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) IncPersistFailures() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

func (m *Metrics) ObserveFlush(d time.Duration) {
	if m != nil {
		m.FlushLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) SetBuffered(n int) {
	if m != nil {
		m.BufferedEntries.Set(float64(n))
	}
}

func (m *Metrics) IncAlert(severity string) {
	if m != nil {
		m.AlertsRaised.WithLabelValues(severity).Inc()
	}
}

func (m *Metrics) SetHalted(halted bool) {
	if m != nil {
		v := 0.0
		if halted {
			v = 1
		}
		m.Halted.Set(v)
	}
}
