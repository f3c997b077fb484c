package bank

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type bankMetrics struct {
	txsProcessed  *prometheus.CounterVec
	feesCollected prometheus.Counter
	computeUnits  prometheus.Histogram
	txDuration    prometheus.Histogram
	slot          prometheus.Gauge
}

func newMetrics(r prometheus.Registerer) (*bankMetrics, error) {
	m := &bankMetrics{
		txsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bank",
			Name:      "txs_processed",
			Help:      "number of transactions processed, by result",
		}, []string{"result"}),
		feesCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bank",
			Name:      "fees_collected_lamports",
			Help:      "lamports charged as transaction fees",
		}),
		computeUnits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bank",
			Name:      "tx_compute_units",
			Help:      "compute units consumed per executed transaction",
			Buckets:   prometheus.ExponentialBuckets(500, 2, 10),
		}),
		txDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bank",
			Name:      "tx_duration_seconds",
			Help:      "time spent processing a transaction, lock wait included",
			Buckets:   prometheus.DefBuckets,
		}),
		slot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bank",
			Name:      "slot",
			Help:      "current slot of the bank",
		}),
	}

	return m, errors.Join(
		r.Register(m.txsProcessed),
		r.Register(m.feesCollected),
		r.Register(m.computeUnits),
		r.Register(m.txDuration),
		r.Register(m.slot),
	)
}

func (m *bankMetrics) record(result *TransactionResult, seconds float64) {
	label := "success"
	switch {
	case result.Err == nil:
	case !result.Executed:
		label = "rejected"
	default:
		label = "failed"
	}
	m.txsProcessed.WithLabelValues(label).Inc()
	m.feesCollected.Add(float64(result.Fee))
	if result.Executed {
		m.computeUnits.Observe(float64(result.ComputeUnitsConsumed))
	}
	m.txDuration.Observe(seconds)
}
