package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification engine.
type Metrics struct {
	JobsStarted      *prometheus.CounterVec
	JobsFinished     *prometheus.CounterVec
	ProfileSources   *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	ProviderFailures *prometheus.CounterVec
	ResultsDiscarded prometheus.Counter
	JobDuration      prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustex_verification_jobs_started_total",
			Help: "Verification jobs created, by priority",
		}, []string{"priority"}),
		JobsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustex_verification_jobs_finished_total",
			Help: "Verification jobs reaching a terminal state, by status",
		}, []string{"status"}),
		ProfileSources: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustex_verification_profiles_total",
			Help: "Profiles produced, by source (cache, scoring, legacy, override, propagated)",
		}, []string{"source"}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustex_verification_cache_lookups_total",
			Help: "Verification cache lookups by result (hit, miss, expired, error)",
		}, []string{"result"}),
		ProviderFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustex_verification_provider_failures_total",
			Help: "Failed outbound verification calls by path and error category",
		}, []string{"path", "category"}),
		ResultsDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustex_verification_results_discarded_total",
			Help: "Results dropped because the job was cancelled while a remote call was in flight",
		}),
		JobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "trustex_verification_job_duration_seconds",
			Help:    "Time from processing start to terminal state",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}

func (m *Metrics) IncJobStarted(priority string) {
	if m == nil {
		return
	}
	m.JobsStarted.WithLabelValues(priority).Inc()
}

func (m *Metrics) IncJobFinished(status string) {
	if m == nil {
		return
	}
	m.JobsFinished.WithLabelValues(status).Inc()
}

func (m *Metrics) IncProfileSource(source string) {
	if m == nil {
		return
	}
	m.ProfileSources.WithLabelValues(source).Inc()
}

func (m *Metrics) IncCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) IncProviderFailure(path, category string) {
	if m == nil {
		return
	}
	m.ProviderFailures.WithLabelValues(path, category).Inc()
}

func (m *Metrics) IncResultDiscarded() {
	if m == nil {
		return
	}
	m.ResultsDiscarded.Inc()
}

func (m *Metrics) ObserveJobDuration(start time.Time) {
	if m == nil {
		return
	}
	m.JobDuration.Observe(time.Since(start).Seconds())
}
