package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, g.Write(m))
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

func TestRoutingMetrics_Connections(t *testing.T) {
	m := NewRoutingMetricsWithRegistry(prometheus.NewRegistry())

	m.ConnectionOpened(true)
	m.ConnectionOpened(true)
	m.ConnectionOpened(false)
	m.ConnectionClosed()

	assert.Equal(t, float64(1), gaugeValue(t, m.ActiveConnections))
	assert.Equal(t, float64(2), counterValue(t, m.AdmissionsTotal.WithLabelValues(OutcomeAdmitted)))
	assert.Equal(t, float64(1), counterValue(t, m.AdmissionsTotal.WithLabelValues(OutcomeRejected)))
}

func TestRoutingMetrics_Broadcasts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRoutingMetricsWithRegistry(reg)

	m.RecordBroadcast(TargetProps, 2, nil)
	m.RecordBroadcast(TargetRoom, 0, errors.New("no room"))
	m.AutoJoinSkipped()

	assert.Equal(t, float64(1), counterValue(t, m.BroadcastsTotal.WithLabelValues(TargetProps, StatusSuccess)))
	assert.Equal(t, float64(1), counterValue(t, m.BroadcastsTotal.WithLabelValues(TargetRoom, StatusFailure)))
	assert.Equal(t, float64(1), counterValue(t, m.AutoJoinSkippedTotal))

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "roomgate_router_broadcast_recipients" {
			found = true
			assert.Equal(t, uint64(1), f.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
	assert.True(t, found)
}

func TestNewRoutingMetricsWithRegistry_Duplicate(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRoutingMetricsWithRegistry(reg)

	assert.Panics(t, func() { NewRoutingMetricsWithRegistry(reg) })
}
