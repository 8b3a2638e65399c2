package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for registry operations.
type Metrics struct {
	AgreementsCreated prometheus.Counter
	AgreementsUpdated *prometheus.CounterVec
	PurposesAdded     prometheus.Counter
	MutationsRejected *prometheus.CounterVec
	RegistryPaused    prometheus.Gauge

	StoreOperationLatency *prometheus.HistogramVec
}

// New registers and returns registry metrics collectors.
func New() *Metrics {
	return &Metrics{
		AgreementsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "oconsent_agreements_created_total",
			Help: "Total number of consent agreements created",
		}),
		AgreementsUpdated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "oconsent_agreements_updated_total",
			Help: "Total number of agreement updates, labeled by resulting status",
		}, []string{"status"}),
		PurposesAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "oconsent_purposes_added_total",
			Help: "Total number of purposes appended to agreements",
		}),
		MutationsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "oconsent_mutations_rejected_total",
			Help: "Total number of rejected mutations, labeled by error code",
		}, []string{"code"}),
		RegistryPaused: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "oconsent_registry_paused",
			Help: "Whether the registry is administratively paused (1) or running (0)",
		}),
		StoreOperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oconsent_store_operation_latency_seconds",
			Help:    "Latency of agreement store operations in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementAgreementsCreated() {
	m.AgreementsCreated.Inc()
}

func (m *Metrics) IncrementAgreementsUpdated(status string) {
	m.AgreementsUpdated.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementPurposesAdded() {
	m.PurposesAdded.Inc()
}

func (m *Metrics) IncrementMutationsRejected(code string) {
	m.MutationsRejected.WithLabelValues(code).Inc()
}

func (m *Metrics) SetPaused(paused bool) {
	if paused {
		m.RegistryPaused.Set(1)
		return
	}
	m.RegistryPaused.Set(0)
}

// ObserveStoreOperationLatency records the latency of a store operation.
func (m *Metrics) ObserveStoreOperationLatency(operation string, durationSeconds float64) {
	m.StoreOperationLatency.WithLabelValues(operation).Observe(durationSeconds)
}
