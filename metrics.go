package nbsftp

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects session statistics.
// One Metrics may be shared by many sessions; a nil *Metrics records nothing.
type Metrics struct {
	operations  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	transferred *prometheus.CounterVec
	waits       *prometheus.CounterVec
}

// NewMetrics creates the session collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// operations counts finished operations by name and result status.
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nbsftp_operations_total",
				Help: "Total number of session operations",
			},
			[]string{"op", "status"},
		),

		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nbsftp_operation_duration_seconds",
				Help:    "Session operation latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),

		// transferred counts file payload bytes (download|upload).
		transferred: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nbsftp_transferred_bytes_total",
				Help: "Total number of file bytes transferred",
			},
			[]string{"direction"},
		),

		waits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nbsftp_readiness_waits_total",
				Help: "Total number of socket readiness waits",
			},
			[]string{"direction"},
		),
	}
}

func (m *Metrics) observe(op string, r Result, start time.Time) {
	if m == nil {
		return
	}

	m.operations.WithLabelValues(op, r.Status().String()).Inc()
	m.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) addTransferred(direction string, n int) {
	if m == nil || n <= 0 {
		return
	}

	m.transferred.WithLabelValues(direction).Add(float64(n))
}

func (m *Metrics) waited(dir Direction) {
	if m == nil {
		return
	}

	m.waits.WithLabelValues(dir.String()).Inc()
}
