package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for vote synchronization.
type Metrics struct {
	JobsStarted    *prometheus.CounterVec
	JobsFinished   *prometheus.CounterVec
	ActiveJobs     prometheus.Gauge
	VoteOutcomes   *prometheus.CounterVec
	AckLatency     prometheus.Histogram
	JobDuration    prometheus.Histogram
	RetryEscalated prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		JobsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fortis_sync_jobs_started_total",
			Help: "Sync jobs started by sync type",
		}, []string{"sync_type"}),
		JobsFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fortis_sync_jobs_finished_total",
			Help: "Sync jobs finished by terminal status",
		}, []string{"status"}),
		ActiveJobs: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "fortis_sync_jobs_active",
			Help: "Sync jobs currently supervised",
		}),
		VoteOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fortis_sync_votes_total",
			Help: "Per-vote sync outcomes",
		}, []string{"outcome"}),
		AckLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fortis_sync_ack_duration_seconds",
			Help:    "Time from log submission until consensus was decided",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		JobDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fortis_sync_job_duration_seconds",
			Help:    "Wall time of sync jobs",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		RetryEscalated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fortis_sync_votes_escalated_total",
			Help: "Votes escalated after exhausting retry attempts",
		}),
	}
}

func (m *Metrics) IncJobStarted(syncType string) {
	if m == nil {
		return
	}
	m.JobsStarted.WithLabelValues(syncType).Inc()
	m.ActiveJobs.Inc()
}

func (m *Metrics) IncJobFinished(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.JobsFinished.WithLabelValues(status).Inc()
	m.ActiveJobs.Dec()
	m.JobDuration.Observe(d.Seconds())
}

func (m *Metrics) IncVoteOutcome(outcome string) {
	if m == nil {
		return
	}
	m.VoteOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveAck(d time.Duration) {
	if m == nil {
		return
	}
	m.AckLatency.Observe(d.Seconds())
}

func (m *Metrics) IncEscalated() {
	if m == nil {
		return
	}
	m.RetryEscalated.Inc()
}
