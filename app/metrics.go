package app

import (
	"github.com/calehh/safesnap/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	transitions        *prometheus.CounterVec
	broadcasts         prometheus.Counter
	oracleReadFailures prometheus.Counter
	stepErrors         *prometheus.CounterVec
	activeWorkers      prometheus.Gauge
	pending            prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "safesnap_transitions_total",
			Help: "proposal state transitions by target status",
		}, []string{"status"}),
		broadcasts: factory.NewCounter(prometheus.CounterOpts{
			Name: "safesnap_broadcasts_total",
			Help: "transactions recorded as executed",
		}),
		oracleReadFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "safesnap_oracle_unreachable_total",
			Help: "oracle polls that exhausted their retry budget",
		}),
		stepErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "safesnap_step_errors_total",
			Help: "worker step errors by class",
		}, []string{"class"}),
		activeWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "safesnap_active_workers",
			Help: "proposals currently owned by a worker",
		}),
		pending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "safesnap_pending_proposals",
			Help: "non terminal records seen by the last sweep",
		}),
	}
}

// observe records the effect of one worker step.
func (m *metrics) observe(before, after *types.RealityOracleProposal, err error) {
	if after != nil && before.Status != after.Status {
		m.transitions.WithLabelValues(string(after.Status)).Inc()
	}
	if after != nil && len(after.TxHashes) > len(before.TxHashes) {
		m.broadcasts.Add(float64(len(after.TxHashes) - len(before.TxHashes)))
	}
	if err != nil {
		m.stepErrors.WithLabelValues(errorClass(err)).Inc()
	}
}
