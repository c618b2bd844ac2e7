package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Admission outcomes.
const (
	OutcomeAdmitted = "admitted"
	OutcomeRejected = "rejected"
)

// Broadcast target kinds and statuses.
const (
	TargetAll   = "all"
	TargetRoom  = "room"
	TargetProps = "props"

	StatusSuccess = "success"
	StatusFailure = "failure"
)

// RoutingMetrics holds metrics for connection admission and broadcast fan-out.
type RoutingMetrics struct {
	// ActiveConnections tracks the current number of admitted sockets.
	ActiveConnections prometheus.Gauge

	// AdmissionsTotal counts admissions.
	// Labels: outcome (admitted, rejected)
	AdmissionsTotal *prometheus.CounterVec

	// AutoJoinSkippedTotal counts admissions whose room key came out empty.
	AutoJoinSkippedTotal prometheus.Counter

	// BroadcastsTotal counts Emit calls.
	// Labels: target (all, room, props), status (success, failure)
	BroadcastsTotal *prometheus.CounterVec

	// BroadcastRecipients observes how many sockets one broadcast reached.
	BroadcastRecipients prometheus.Histogram
}

func newRoutingMetrics(factory promauto.Factory) *RoutingMetrics {
	return &RoutingMetrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "roomgate",
			Subsystem: "admission",
			Name:      "active_connections",
			Help:      "Current number of admitted socket connections.",
		}),
		AdmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomgate",
			Subsystem: "admission",
			Name:      "admissions_total",
			Help:      "Total number of connections processed by the admission pipeline, by outcome.",
		}, []string{"outcome"}),
		AutoJoinSkippedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "roomgate",
			Subsystem: "admission",
			Name:      "auto_join_skipped_total",
			Help:      "Total number of connections not joined to a room because no room key could be derived.",
		}),
		BroadcastsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roomgate",
			Subsystem: "router",
			Name:      "broadcasts_total",
			Help:      "Total number of broadcasts, by target kind and status.",
		}, []string{"target", "status"}),
		BroadcastRecipients: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "roomgate",
			Subsystem: "router",
			Name:      "broadcast_recipients",
			Help:      "Number of sockets a single broadcast was delivered to.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 1000},
		}),
	}
}

// NewRoutingMetrics creates and registers routing metrics with the default registry.
func NewRoutingMetrics() *RoutingMetrics {
	return newRoutingMetrics(promauto.With(prometheus.DefaultRegisterer))
}

// NewRoutingMetricsWithRegistry registers routing metrics with reg.
// Useful for testing to avoid conflicts with the default registry.
func NewRoutingMetricsWithRegistry(reg prometheus.Registerer) *RoutingMetrics {
	return newRoutingMetrics(promauto.With(reg))
}

// ConnectionOpened records an admission outcome and, when admitted, bumps
// the active gauge.
func (m *RoutingMetrics) ConnectionOpened(admitted bool) {
	if admitted {
		m.AdmissionsTotal.WithLabelValues(OutcomeAdmitted).Inc()
		m.ActiveConnections.Inc()
		return
	}
	m.AdmissionsTotal.WithLabelValues(OutcomeRejected).Inc()
}

// ConnectionClosed decrements the active gauge for an admitted socket.
func (m *RoutingMetrics) ConnectionClosed() {
	m.ActiveConnections.Dec()
}

// AutoJoinSkipped counts an admission that derived no room key.
func (m *RoutingMetrics) AutoJoinSkipped() {
	m.AutoJoinSkippedTotal.Inc()
}

// RecordBroadcast records one Emit call.
func (m *RoutingMetrics) RecordBroadcast(target string, recipients int, err error) {
	if err != nil {
		m.BroadcastsTotal.WithLabelValues(target, StatusFailure).Inc()
		return
	}
	m.BroadcastsTotal.WithLabelValues(target, StatusSuccess).Inc()
	m.BroadcastRecipients.Observe(float64(recipients))
}
