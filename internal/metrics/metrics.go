package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "votepay"

// Metrics holds the engine's collectors. Construct one per registry.
type Metrics struct {
	Intents              *prometheus.CounterVec
	Webhooks             *prometheus.CounterVec
	Confirmations        *prometheus.CounterVec
	ConfirmationDuration prometheus.Histogram
	SweepTransitions     *prometheus.CounterVec
	ResultsCache         *prometheus.CounterVec
	ResultsDrift         prometheus.Counter
	ProviderUp           *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Intents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Payment intents by kind, provider and result.",
		}, []string{"kind", "provider", "result"}),
		Webhooks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Inbound provider webhooks by provider and result.",
		}, []string{"provider", "result"}),
		Confirmations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmations_total",
			Help:      "Confirmation attempts by kind, outcome and result.",
		}, []string{"kind", "outcome", "result"}),
		ConfirmationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confirmation_duration_seconds",
			Help:      "Time spent in the confirmation unit of work.",
			Buckets:   prometheus.DefBuckets,
		}),
		SweepTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_transitions_total",
			Help:      "Transactions resolved by the reconciliation sweep, by verdict.",
		}, []string{"verdict"}),
		ResultsCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_cache_total",
			Help:      "Live results cache lookups by result.",
		}, []string{"result"}),
		ResultsDrift: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_drift_total",
			Help:      "Candidates whose denormalized vote counter disagreed with the vote rows.",
		}),
		ProviderUp: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_up",
			Help:      "Whether the gateway selector considers a provider healthy.",
		}, []string{"provider"}),
	}
}

// NewUnregistered builds collectors on a private registry, for tests and tools
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}

// SetProviderUp mirrors selector health into the provider_up gauge
func (m *Metrics) SetProviderUp(provider string, up bool) {
	v := 0.0
	if up {
		v = 1
	}
	m.ProviderUp.WithLabelValues(provider).Set(v)
}
