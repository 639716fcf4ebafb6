package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the ledger.
// Tracks creations, trades, transfer rejections and mutation latency.
type Metrics struct {
	CompaniesCreated  prometheus.Counter
	Trades            *prometheus.CounterVec
	TokensMoved       *prometheus.CounterVec
	TransferRejected  *prometheus.CounterVec
	FeesBurned        prometheus.Counter
	CommitConflicts   prometheus.Counter
	MutationDurations *prometheus.HistogramVec
}

// New registers ledger metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CompaniesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustex_companies_created_total",
			Help: "Total number of companies listed",
		}),
		Trades: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustex_ledger_operations_total",
			Help: "Committed ledger operations by kind (buy, sell, transfer)",
		}, []string{"kind"}),
		TokensMoved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustex_ledger_tokens_total",
			Help: "Tokens moved by committed operations, by kind",
		}, []string{"kind"}),
		TransferRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trustex_transfers_rejected_total",
			Help: "Transfer protocol rejections by error kind",
		}, []string{"kind"}),
		FeesBurned: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustex_transfer_fees_burned_total",
			Help: "Tokens removed from circulation as transfer fees",
		}),
		CommitConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "trustex_ledger_commit_conflicts_total",
			Help: "Version conflicts on ledger commit (each triggers a revalidated retry)",
		}),
		MutationDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trustex_ledger_mutation_duration_seconds",
			Help:    "Duration of ledger mutations including validation and commit",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),
	}
}

func (m *Metrics) IncCompanyCreated() {
	if m == nil {
		return
	}
	m.CompaniesCreated.Inc()
}

func (m *Metrics) ObserveOperation(kind string, tokens int64) {
	if m == nil {
		return
	}
	m.Trades.WithLabelValues(kind).Inc()
	m.TokensMoved.WithLabelValues(kind).Add(float64(tokens))
}

func (m *Metrics) IncTransferRejected(kind string) {
	if m == nil {
		return
	}
	m.TransferRejected.WithLabelValues(kind).Inc()
}

func (m *Metrics) AddFeesBurned(fee int64) {
	if m == nil {
		return
	}
	m.FeesBurned.Add(float64(fee))
}

func (m *Metrics) IncCommitConflict() {
	if m == nil {
		return
	}
	m.CommitConflicts.Inc()
}

// ObserveMutation records the duration of one ledger mutation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveMutation(op string, start time.Time) {
	if m == nil {
		return
	}
	m.MutationDurations.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
