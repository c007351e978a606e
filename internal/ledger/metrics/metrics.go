package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for OperationsTotal.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics provides observability for the ledger module.
// Tracks operation outcomes and latency plus a few business counters.
type Metrics struct {
	OperationsTotal    *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	ActiveListings     prometheus.Gauge
	GramsMinted        prometheus.Counter
	GramsRetired       prometheus.Counter
	SettledPaymentUnit prometheus.Counter
}

// New registers the ledger metrics with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OperationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "offsetledger_operations_total",
			Help: "Ledger operations by name and outcome",
		}, []string{"operation", "outcome"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "offsetledger_operation_duration_seconds",
			Help:    "Duration of ledger operations including the transaction",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		ActiveListings: f.NewGauge(prometheus.GaugeOpts{
			Name: "offsetledger_active_listings",
			Help: "Listings currently holding a certificate in escrow",
		}),
		GramsMinted: f.NewCounter(prometheus.CounterOpts{
			Name: "offsetledger_minted_grams_total",
			Help: "Grams CO2e issued as certificates",
		}),
		GramsRetired: f.NewCounter(prometheus.CounterOpts{
			Name: "offsetledger_retired_grams_total",
			Help: "Grams CO2e permanently retired",
		}),
		SettledPaymentUnit: f.NewCounter(prometheus.CounterOpts{
			Name: "offsetledger_settled_payment_units_total",
			Help: "Payment units moved from buyers to sellers",
		}),
	}
}

// ObserveOperation records the outcome and duration of one operation.
// Call with time.Now() taken at the start of the operation.
func (m *Metrics) ObserveOperation(op, outcome string, start time.Time) {
	m.OperationsTotal.WithLabelValues(op, outcome).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ListingOpened() { m.ActiveListings.Inc() }

func (m *Metrics) ListingClosed() { m.ActiveListings.Dec() }

// SetActiveListings resyncs the gauge from a full enumeration.
func (m *Metrics) SetActiveListings(n int) { m.ActiveListings.Set(float64(n)) }

func (m *Metrics) Minted(grams uint64) { m.GramsMinted.Add(float64(grams)) }

func (m *Metrics) Retired(grams uint64) { m.GramsRetired.Add(float64(grams)) }

func (m *Metrics) Settled(units uint64) { m.SettledPaymentUnit.Add(float64(units)) }
