package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenggwsx/RoomGate/internal/protocol"
)

func newTestSocket(h *Hub) *Socket {
	s := newSocket(h, nil, nil, "test", 4, nil)
	h.add(s)
	return s
}

func queued(s *Socket) []protocol.Envelope {
	var out []protocol.Envelope
	for {
		select {
		case env := <-s.sendCh:
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestHub_BroadcastRoom(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(*Hub) map[string]*Socket
		room         string
		wantReceived map[string]int
		wantCount    int
	}{
		{
			name: "broadcast to room members",
			setup: func(h *Hub) map[string]*Socket {
				a, b, c := newTestSocket(h), newTestSocket(h), newTestSocket(h)
				a.Join("r1")
				b.Join("r1")
				c.Join("r2")
				return map[string]*Socket{"a": a, "b": b, "c": c}
			},
			room:         "r1",
			wantReceived: map[string]int{"a": 1, "b": 1, "c": 0},
			wantCount:    2,
		},
		{
			name: "unknown room",
			setup: func(h *Hub) map[string]*Socket {
				a := newTestSocket(h)
				a.Join("r1")
				return map[string]*Socket{"a": a}
			},
			room:         "nope",
			wantReceived: map[string]int{"a": 0},
			wantCount:    0,
		},
		{
			name: "disconnected socket skipped",
			setup: func(h *Hub) map[string]*Socket {
				a, b := newTestSocket(h), newTestSocket(h)
				a.Join("r1")
				b.Join("r1")
				b.Disconnect()
				return map[string]*Socket{"a": a, "b": b}
			},
			room:         "r1",
			wantReceived: map[string]int{"a": 1, "b": 0},
			wantCount:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHub(nil)
			sockets := tt.setup(h)

			n := h.BroadcastRoom(tt.room, "notify", map[string]string{"msg": "hi"})

			assert.Equal(t, tt.wantCount, n)
			for name, want := range tt.wantReceived {
				got := queued(sockets[name])
				assert.Len(t, got, want, name)
				for _, env := range got {
					assert.Equal(t, "notify", env.Event)
				}
			}
		})
	}
}

func TestHub_BroadcastAll(t *testing.T) {
	h := NewHub(nil)
	a, b := newTestSocket(h), newTestSocket(h)
	a.Join("r1")

	n := h.BroadcastAll("hello", nil)

	assert.Equal(t, 2, n)
	assert.Len(t, queued(a), 1)
	assert.Len(t, queued(b), 1)
}

func TestHub_MembershipLifecycle(t *testing.T) {
	h := NewHub(nil)
	a, b := newTestSocket(h), newTestSocket(h)

	require.True(t, a.Join("r1"))
	require.True(t, b.Join("r1"))
	require.True(t, a.Join("r2"))

	assert.ElementsMatch(t, []string{a.ID(), b.ID()}, h.Members("r1"))
	assert.Equal(t, []string{"r1", "r2"}, a.Rooms())
	assert.True(t, a.InRoom("r2"))

	rooms, sockets := h.Stats()
	assert.Equal(t, 2, rooms)
	assert.Equal(t, 2, sockets)

	a.Leave("r2")
	assert.False(t, a.InRoom("r2"))
	assert.Empty(t, h.Members("r2"))

	a.Disconnect()
	assert.Equal(t, []string{b.ID()}, h.Members("r1"))
	assert.False(t, a.Join("r1"), "closed socket cannot join")

	rooms, sockets = h.Stats()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 1, sockets)
}

func TestSocket_EmitAfterDisconnect(t *testing.T) {
	h := NewHub(nil)
	s := newTestSocket(h)

	s.Disconnect()
	s.Disconnect()

	assert.ErrorIs(t, s.Emit("x", nil), ErrSocketClosed)
	assert.True(t, s.Closed())
}

func TestSocket_SendBufferFull(t *testing.T) {
	h := NewHub(nil)
	s := newTestSocket(h)

	for i := 0; i < 4; i++ {
		require.NoError(t, s.Emit("x", i))
	}
	assert.ErrorIs(t, s.Emit("x", 5), ErrSendBufferFull)
}

func TestSocket_DispatchAck(t *testing.T) {
	h := NewHub(nil)
	s := newTestSocket(h)

	var acked bool
	require.NoError(t, s.EmitWithAck("unauthorized", nil, func(protocol.Envelope) { acked = true }))
	sent := queued(s)
	require.Len(t, sent, 1)
	assert.True(t, sent[0].AckRequested)

	s.dispatch(protocol.Envelope{Event: protocol.EventAck, ReferenceID: "other"})
	assert.False(t, acked)

	s.dispatch(protocol.Envelope{Event: protocol.EventAck, ReferenceID: sent[0].ID})
	assert.True(t, acked)
}

func TestSocket_DispatchHandlersAndAckReply(t *testing.T) {
	h := NewHub(nil)
	s := newTestSocket(h)

	var got []string
	s.On("chat", func(env protocol.Envelope) { got = append(got, "first") })
	s.On("chat", func(env protocol.Envelope) { got = append(got, "second") })

	s.dispatch(protocol.Envelope{ID: "m1", Event: "chat", AckRequested: true})

	assert.Equal(t, []string{"first", "second"}, got)
	replies := queued(s)
	require.Len(t, replies, 1)
	assert.Equal(t, protocol.EventAck, replies[0].Event)
	assert.Equal(t, "m1", replies[0].ReferenceID)
}

func TestSocket_FireErrorRunsSnapshotOfHandlers(t *testing.T) {
	h := NewHub(nil)
	s := newTestSocket(h)

	var got []string
	s.OnError(func(err error) {
		got = append(got, "first:"+err.Error())
		s.OnError(func(err error) { got = append(got, "late:"+err.Error()) })
	})
	s.OnError(func(err error) { got = append(got, "second:"+err.Error()) })

	s.fireError(errors.New("bad frame"))
	assert.Equal(t, []string{"first:bad frame", "second:bad frame"}, got)

	got = nil
	s.fireError(errors.New("again"))
	assert.Equal(t, []string{"first:again", "second:again", "late:again"}, got)
}
