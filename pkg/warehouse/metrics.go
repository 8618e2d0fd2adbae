package warehouse

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus instrumentation for transfer operations
// 移動操作のPrometheus計装を保持
type Metrics struct {
	transfersTotal   *prometheus.CounterVec
	transferDuration *prometheus.HistogramVec
	quantityMoved    *prometheus.CounterVec
}

// NewMetrics creates and registers transfer metrics
// 移動メトリクスを作成して登録
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		transfersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "souko",
				Name:      "transfers_total",
				Help:      "Total number of transfer requests by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		transferDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "souko",
				Name:      "transfer_duration_seconds",
				Help:      "Duration of transfer transactions.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		quantityMoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "souko",
				Name:      "quantity_moved_total",
				Help:      "Total quantity moved by operation.",
			},
			[]string{"operation"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(m.transfersTotal, m.transferDuration, m.quantityMoved)
	}

	return m
}

// ObserveTransfer records the outcome of one transfer request
// 移動リクエスト1件の結果を記録
func (m *Metrics) ObserveTransfer(operation string, started time.Time, quantity int64, err error) {
	if m == nil {
		return
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}

	m.transfersTotal.WithLabelValues(operation, outcome).Inc()
	m.transferDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if err == nil {
		m.quantityMoved.WithLabelValues(operation).Add(float64(quantity))
	}
}
