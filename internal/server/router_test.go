package server

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenggwsx/RoomGate/internal/fields"
	"github.com/fenggwsx/RoomGate/internal/metrics"
	"github.com/fenggwsx/RoomGate/internal/protocol"
)

func TestEmit_ToProperties(t *testing.T) {
	h := startApp(t, testConfig(), nil)

	connA, _ := h.dial(t, map[string]string{"tenant-id": "acme", "x-user-id": "42"})
	connB, _ := h.dial(t, map[string]string{"tenant-id": "acme", "x-user-id": "42"})
	connC, _ := h.dial(t, map[string]string{"tenant-id": "acme", "x-user-id": "7"})

	err := h.app.Emit(map[string]any{"tenantId": "acme", "userId": 42}, map[string]any{"msg": "hi"}, "notify")
	require.NoError(t, err)

	for _, env := range []protocol.Envelope{readEnvelope(t, connA), readEnvelope(t, connB)} {
		assert.Equal(t, "notify", env.Event)
		assert.Equal(t, map[string]any{"msg": "hi"}, env.Payload)
	}

	require.NoError(t, h.app.Emit(nil, nil, "sentinel"))
	assert.Equal(t, "sentinel", readEnvelope(t, connC).Event, "other rooms must not receive the props broadcast")
}

func TestEmit_TargetForms(t *testing.T) {
	h := startApp(t, testConfig(), nil)

	conn, c := h.dial(t, map[string]string{"tenant-id": "acme", "x-user-id": "42"})

	targets := []any{
		"tenantId:acme|userId:42",
		fields.Properties{"userId": "42", "tenantId": "acme"},
		map[string]string{"tenantId": "acme", "userId": "42"},
		c,
	}
	for _, target := range targets {
		require.NoError(t, h.app.Emit(target, "payload", "evt"), "target %#v", target)
		env := readEnvelope(t, conn)
		assert.Equal(t, "evt", env.Event)
		assert.Equal(t, "payload", env.Payload)
	}
}

func TestEmit_RoutingErrors(t *testing.T) {
	h := startApp(t, testConfig(), nil)

	targets := []any{
		"",
		map[string]any{},
		map[string]any{"other": "x"},
		map[string]any{"tenantId": true},
		(*Client)(nil),
		42,
	}
	for _, target := range targets {
		err := h.app.Emit(target, nil, "evt")
		var routingErr *RoutingError
		assert.True(t, errors.As(err, &routingErr), "target %#v: got %v", target, err)
	}
}

func TestEmit_TypedNilTargetIsNotBroadcast(t *testing.T) {
	h := startApp(t, testConfig(), nil)
	conn, _ := h.dial(t, map[string]string{"tenant-id": "acme", "x-user-id": "42"})

	targets := []any{
		fields.Properties(nil),
		map[string]any(nil),
		map[string]string(nil),
	}
	for _, target := range targets {
		err := h.app.Emit(target, nil, "leak")
		var routingErr *RoutingError
		assert.True(t, errors.As(err, &routingErr), "target %#v: got %v", target, err)
	}

	require.NoError(t, h.app.Emit(nil, nil, "sentinel"))
	assert.Equal(t, "sentinel", readEnvelope(t, conn).Event)
}

func TestEmit_ToAll(t *testing.T) {
	h := startApp(t, testConfig(), nil)

	connA, _ := h.dial(t, map[string]string{"x-user-id": "1"})
	connB, _ := h.dial(t, map[string]string{"x-user-id": "2"})

	require.NoError(t, h.app.Emit(nil, map[string]any{"n": float64(1)}, "hello"))

	assert.Equal(t, "hello", readEnvelope(t, connA).Event)
	assert.Equal(t, "hello", readEnvelope(t, connB).Event)
}

func TestEmit_EmptyRoomDeliversNothing(t *testing.T) {
	h := startApp(t, testConfig(), nil)

	require.NoError(t, h.app.Emit("tenantId:nobody", nil, "evt"))

	size, err := h.app.RoomSize("tenantId:nobody")
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestRoomKey_UsesResolvedOrder(t *testing.T) {
	h := startApp(t, testConfig(), nil)

	assert.Equal(t, "tenantId:acme|userId:42", h.app.RoomKey(map[string]any{"userId": 42, "tenantId": "acme"}))
	assert.Equal(t, "userId:42", h.app.RoomKey(map[string]any{"userId": "42", "tenantId": nil}))
	assert.Empty(t, h.app.RoomKey(nil))
}

func TestMetrics_Recorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRoutingMetricsWithRegistry(reg)

	cfg := testConfig()
	cfg.AckTimeout = 0
	h := startApp(t, cfg, nil, WithMetrics(m, reg))

	_, ok := h.dial(t, map[string]string{"tenant-id": "acme", "x-user-id": "42"})
	_, bad := h.dial(t, nil)
	waitClosed(t, bad)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.AdmissionsTotal.WithLabelValues(metrics.OutcomeAdmitted)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AdmissionsTotal.WithLabelValues(metrics.OutcomeRejected)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveConnections))

	require.NoError(t, h.app.Emit(ok, nil, "evt"))
	_ = h.app.Emit("", nil, "evt")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.BroadcastsTotal.WithLabelValues(metrics.TargetProps, metrics.StatusSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BroadcastsTotal.WithLabelValues(metrics.TargetRoom, metrics.StatusFailure)))
}
