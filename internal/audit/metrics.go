package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the audit trail Prometheus metrics.
type Metrics struct {
	RowsWritten   *prometheus.CounterVec
	FlushFailures prometheus.Counter
}

// NewMetrics creates and registers the audit metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		RowsWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ruminster_audit_rows_written_total",
			Help: "Audit log rows written, by entity type.",
		}, []string{"entity_type"}),
		FlushFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ruminster_audit_flush_failures_total",
			Help: "Audit flushes that failed after the primary transaction committed.",
		}),
	}
}

// Nil-safe increments so unit tests can run without a registry.

func (m *Metrics) incRowsWritten(entityType string) {
	if m != nil {
		m.RowsWritten.WithLabelValues(entityType).Inc()
	}
}

func (m *Metrics) incFlushFailures() {
	if m != nil {
		m.FlushFailures.Inc()
	}
}
