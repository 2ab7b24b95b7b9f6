package decompile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "hydra"
	metricsSubsystem = "decompile"
)

// Metrics holds the Prometheus collectors of the decompile guard.
//
// Labels:
//   - CacheLookups: result (hit, miss, expired, corrupt)
//   - Calls: outcome (success, timeout, unavailable, error)
type Metrics struct {
	CacheLookups   *prometheus.CounterVec
	Calls          *prometheus.CounterVec
	BudgetRefusals prometheus.Counter
	SpentUSD       prometheus.Gauge
	Alerts         prometheus.Counter
}

// NewMetrics registers the collectors with reg. A nil registerer keeps the
// collectors unregistered, which tests rely on to avoid duplicate
// registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "cache_lookups_total",
			Help:      "Decompilation cache lookups by result.",
		}, []string{"result"}),
		Calls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "calls_total",
			Help:      "Decompiler invocations by outcome.",
		}, []string{"outcome"}),
		BudgetRefusals: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "budget_refusals_total",
			Help:      "Decompiler calls refused by the daily budget.",
		}),
		SpentUSD: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "spent_usd_today",
			Help:      "Committed decompiler spend in the current ledger day.",
		}),
		Alerts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "budget_alerts_total",
			Help:      "Times the committed spend crossed the alert threshold.",
		}),
	}
}
