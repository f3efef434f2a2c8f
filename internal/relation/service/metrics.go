package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the relation Prometheus metrics.
type Metrics struct {
	Proposed *prometheus.CounterVec
	Accepted *prometheus.CounterVec
	Rejected *prometheus.CounterVec
	Removed  *prometheus.CounterVec
}

// NewMetrics creates and registers the relation metrics with the default registry.
func NewMetrics() *Metrics {
	counter := func(name, help string) *prometheus.CounterVec {
		return promauto.NewCounterVec(prometheus.CounterOpts{
			Name: name,
			Help: help,
		}, []string{"relation_type"})
	}
	return &Metrics{
		Proposed: counter("ruminster_relations_proposed_total", "Relations proposed, by type."),
		Accepted: counter("ruminster_relations_accepted_total", "Relations accepted, by type."),
		Rejected: counter("ruminster_relations_rejected_total", "Relations rejected, by type."),
		Removed:  counter("ruminster_relations_removed_total", "Relations soft-deleted, by type."),
	}
}

// Nil-safe increments so unit tests can run without a registry.

func (m *Metrics) incProposed(relType string) {
	if m != nil {
		m.Proposed.WithLabelValues(relType).Inc()
	}
}

func (m *Metrics) incAccepted(relType string) {
	if m != nil {
		m.Accepted.WithLabelValues(relType).Inc()
	}
}

func (m *Metrics) incRejected(relType string) {
	if m != nil {
		m.Rejected.WithLabelValues(relType).Inc()
	}
}

func (m *Metrics) incRemoved(relType string) {
	if m != nil {
		m.Removed.WithLabelValues(relType).Inc()
	}
}
