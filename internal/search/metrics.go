package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the search Prometheus metrics.
type Metrics struct {
	Searches prometheus.Counter
	Matches  prometheus.Histogram
}

// NewMetrics creates and registers the search metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Searches: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ruminster_searches_total",
			Help: "Search requests served.",
		}),
		Matches: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ruminster_search_matches",
			Help:    "Matches returned per search, both sources combined.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		}),
	}
}

func (m *Metrics) observe(matches int) {
	if m != nil {
		m.Searches.Inc()
		m.Matches.Observe(float64(matches))
	}
}
