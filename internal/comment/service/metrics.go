package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the comment Prometheus metrics.
type Metrics struct {
	Created *prometheus.CounterVec
	Deleted prometheus.Counter
}

// NewMetrics creates and registers the comment metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Created: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ruminster_comments_created_total",
			Help: "Comments created, split by top-level and reply.",
		}, []string{"kind"}),
		Deleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ruminster_comments_deleted_total",
			Help: "Comments soft-deleted.",
		}),
	}
}

// Nil-safe increments so unit tests can run without a registry.

func (m *Metrics) incCreated(reply bool) {
	if m != nil {
		kind := "top_level"
		if reply {
			kind = "reply"
		}
		m.Created.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) incDeleted() {
	if m != nil {
		m.Deleted.Inc()
	}
}
