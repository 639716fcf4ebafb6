package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers profile fan-out and scans.
type Metrics struct {
	Pushes       *prometheus.CounterVec
	ScanOutcomes *prometheus.CounterVec
	Dependents   prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Pushes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustex_dependents_pushes_total",
			Help: "Profile pushes to dependents by result (ok, failed)",
		}, []string{"result"}),
		ScanOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustex_dependents_scan_companies_total",
			Help: "Companies seen by pending-verification scans by outcome (started, skipped, error)",
		}, []string{"outcome"}),
		Dependents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "trustex_dependents_registered",
			Help: "Registered dependent instances",
		}),
	}
}

func (m *Metrics) IncPush(result string) {
	if m == nil {
		return
	}
	m.Pushes.WithLabelValues(result).Inc()
}

func (m *Metrics) IncScan(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ScanOutcomes.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) SetDependents(n int) {
	if m == nil {
		return
	}
	m.Dependents.Set(float64(n))
}
