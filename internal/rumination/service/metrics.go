package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the rumination Prometheus metrics.
type Metrics struct {
	Created           *prometheus.CounterVec
	Deleted           prometheus.Counter
	AudiencesReplaced prometheus.Counter
	FeedSize          prometheus.Histogram
}

// NewMetrics creates and registers the rumination metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Created: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ruminster_ruminations_created_total",
			Help: "Ruminations created, by visibility.",
		}, []string{"visibility"}),
		Deleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ruminster_ruminations_deleted_total",
			Help: "Ruminations soft-deleted.",
		}),
		AudiencesReplaced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ruminster_rumination_audiences_replaced_total",
			Help: "Audience set replacements.",
		}),
		FeedSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ruminster_rumination_feed_entries",
			Help:    "Entries returned per viewer feed page.",
			Buckets: []float64{0, 1, 5, 10, 20, 50},
		}),
	}
}

// Nil-safe increments so unit tests can run without a registry.

func (m *Metrics) incCreated(visibility string) {
	if m != nil {
		m.Created.WithLabelValues(visibility).Inc()
	}
}

func (m *Metrics) incDeleted() {
	if m != nil {
		m.Deleted.Inc()
	}
}

func (m *Metrics) incAudiencesReplaced() {
	if m != nil {
		m.AudiencesReplaced.Inc()
	}
}

func (m *Metrics) observeFeedSize(n int) {
	if m != nil {
		m.FeedSize.Observe(float64(n))
	}
}
