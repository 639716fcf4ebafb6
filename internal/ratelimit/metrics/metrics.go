package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions *prometheus.CounterVec
	Errors    prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustex_ratelimit_decisions_total",
			Help: "Rate limit decisions by endpoint class and outcome (allowed, limited)",
		}, []string{"class", "outcome"}),
		Errors: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustex_ratelimit_store_errors_total",
			Help: "Rate limit store failures; requests are let through on error",
		}),
	}
}

func (m *Metrics) IncDecision(class string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "limited"
	}
	m.Decisions.WithLabelValues(class, outcome).Inc()
}

func (m *Metrics) IncError() {
	if m == nil {
		return
	}
	m.Errors.Inc()
}
