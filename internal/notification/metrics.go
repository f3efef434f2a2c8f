package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the outbox Prometheus metrics.
type Metrics struct {
	Published *prometheus.CounterVec
}

// NewMetrics creates and registers the outbox metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Published: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ruminster_notifications_published_total",
			Help: "Outbox notifications published to the broker, by kind.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) incPublished(kind string) {
	if m != nil {
		m.Published.WithLabelValues(kind).Inc()
	}
}
