package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the token engine.
type Metrics struct {
	Buys           prometheus.Counter
	Transfers      prometheus.Counter
	Claims         prometheus.Counter
	StageAdvances  prometheus.Counter
	Rejections     *prometheus.CounterVec
	PeriodsSettled prometheus.Histogram
}

// New creates and registers token metrics on the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers token metrics on a caller-supplied registerer. Tests use
// a fresh registry per suite to avoid duplicate registration.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Buys: factory.NewCounter(prometheus.CounterOpts{
			Name: "sto_gateway_token_buys_total",
			Help: "Successful token purchases",
		}),
		Transfers: factory.NewCounter(prometheus.CounterOpts{
			Name: "sto_gateway_token_transfers_total",
			Help: "Successful token transfers",
		}),
		Claims: factory.NewCounter(prometheus.CounterOpts{
			Name: "sto_gateway_token_claims_total",
			Help: "Claim settlements, including zero no-ops",
		}),
		StageAdvances: factory.NewCounter(prometheus.CounterOpts{
			Name: "sto_gateway_token_stage_advances_total",
			Help: "Successful stage transitions",
		}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sto_gateway_token_rejections_total",
			Help: "Rejected operations by error code",
		}, []string{"operation", "code"}),
		PeriodsSettled: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sto_gateway_token_claim_periods_settled",
			Help:    "Periods settled per claim call",
			Buckets: prometheus.LinearBuckets(0, 1, 10),
		}),
	}
}

func (m *Metrics) RecordRejection(operation, code string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(operation, code).Inc()
}
