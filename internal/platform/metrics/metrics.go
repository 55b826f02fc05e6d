package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP surface metrics. A nil *Metrics records nothing.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec
	VotesCast       *prometheus.CounterVec
}

// New creates and registers the metrics with the default registry.
func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fortis_http_request_duration_seconds",
			Help:    "Latency of API requests by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		VotesCast: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fortis_votes_cast_total",
			Help: "Cast attempts by result",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
}

// IncVoteCast counts a cast by result: "accepted" or an error code.
func (m *Metrics) IncVoteCast(result string) {
	if m == nil {
		return
	}
	m.VotesCast.WithLabelValues(result).Inc()
}
