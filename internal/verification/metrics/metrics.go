package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for authorization queries.
type Metrics struct {
	ChecksPassed   prometheus.Counter
	ChecksFailed   prometheus.Counter
	CheckLatency   prometheus.Histogram
	DetailLookups  *prometheus.CounterVec
}

// New registers and returns verification metrics collectors.
func New() *Metrics {
	return &Metrics{
		ChecksPassed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "oconsent_consent_checks_passed_total",
			Help: "Total number of consent checks that returned true",
		}),
		ChecksFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "oconsent_consent_checks_failed_total",
			Help: "Total number of consent checks that returned false",
		}),
		CheckLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "oconsent_consent_check_latency_seconds",
			Help:    "Latency of consent checks in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		DetailLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "oconsent_purpose_detail_lookups_total",
			Help: "Total number of purpose detail lookups, labeled by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementChecksPassed() {
	m.ChecksPassed.Inc()
}

func (m *Metrics) IncrementChecksFailed() {
	m.ChecksFailed.Inc()
}

func (m *Metrics) ObserveCheckLatency(durationSeconds float64) {
	m.CheckLatency.Observe(durationSeconds)
}

func (m *Metrics) IncrementDetailLookups(outcome string) {
	m.DetailLookups.WithLabelValues(outcome).Inc()
}
