package transport

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fenggwsx/RoomGate/internal/fields"
	"github.com/fenggwsx/RoomGate/internal/protocol"
)

var (
	// ErrSocketClosed is returned when emitting to a disconnected socket.
	ErrSocketClosed = errors.New("socket closed")
	// ErrSendBufferFull is returned when the outbound queue cannot take more frames.
	ErrSendBufferFull = errors.New("send buffer full")
)

// EventHandler receives inbound envelopes for one event name.
type EventHandler func(env protocol.Envelope)

// AckFunc is called with the peer's ack reply.
type AckFunc func(reply protocol.Envelope)

// Socket is one live websocket session.
type Socket struct {
	id       string
	hub      *Hub
	conn     *websocket.Conn
	metadata fields.Metadata
	remote   string
	sendCh   chan protocol.Envelope
	done     chan struct{}
	logger   *slog.Logger

	mu           sync.Mutex
	handlers     map[string][]EventHandler
	errHandlers  []func(error)
	discHandlers []func()
	acks         map[string]AckFunc

	closeOnce sync.Once
}

func newSocket(hub *Hub, conn *websocket.Conn, md fields.Metadata, remote string, buffer int, logger *slog.Logger) *Socket {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Socket{
		id:       id,
		hub:      hub,
		conn:     conn,
		metadata: md,
		remote:   remote,
		sendCh:   make(chan protocol.Envelope, buffer),
		done:     make(chan struct{}),
		logger:   logger.With("socket", id),
		handlers: make(map[string][]EventHandler),
		acks:     make(map[string]AckFunc),
	}
}

// ID returns the socket's unique identifier.
func (s *Socket) ID() string { return s.id }

// Metadata returns the handshake headers.
func (s *Socket) Metadata() fields.Metadata { return s.metadata }

// RemoteAddr returns the peer address seen at upgrade time.
func (s *Socket) RemoteAddr() string { return s.remote }

// Done is closed once the socket is disconnected.
func (s *Socket) Done() <-chan struct{} { return s.done }

// Closed reports whether Disconnect has run.
func (s *Socket) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Emit queues an event for the peer.
func (s *Socket) Emit(event string, payload any) error {
	return s.enqueue(protocol.Envelope{
		ID:        uuid.NewString(),
		Event:     event,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

// EmitWithAck queues an event and calls ack when the peer acknowledges it.
func (s *Socket) EmitWithAck(event string, payload any, ack AckFunc) error {
	env := protocol.Envelope{
		ID:           uuid.NewString(),
		Event:        event,
		Timestamp:    time.Now(),
		AckRequested: true,
		Payload:      payload,
	}
	if ack != nil {
		s.mu.Lock()
		s.acks[env.ID] = ack
		s.mu.Unlock()
	}
	if err := s.enqueue(env); err != nil {
		s.mu.Lock()
		delete(s.acks, env.ID)
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Socket) enqueue(env protocol.Envelope) error {
	select {
	case <-s.done:
		return ErrSocketClosed
	default:
	}
	select {
	case s.sendCh <- env:
		return nil
	case <-s.done:
		return ErrSocketClosed
	default:
		return ErrSendBufferFull
	}
}

// Join subscribes the socket to room. Joining after disconnect is a no-op.
func (s *Socket) Join(room string) bool {
	return s.hub.join(room, s)
}

// Leave unsubscribes the socket from room.
func (s *Socket) Leave(room string) {
	s.hub.leave(room, s)
}

// InRoom reports whether the socket is currently subscribed to room.
func (s *Socket) InRoom(room string) bool {
	return s.hub.inRoom(room, s)
}

// Rooms returns the socket's rooms, sorted.
func (s *Socket) Rooms() []string {
	return s.hub.roomsOf(s)
}

// On registers a handler for inbound events named event.
func (s *Socket) On(event string, h EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = append(s.handlers[event], h)
}

// OnError registers a handler for transport-level errors.
func (s *Socket) OnError(h func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errHandlers = append(s.errHandlers, h)
}

// OnDisconnect registers a handler run once when the socket goes away.
func (s *Socket) OnDisconnect(h func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discHandlers = append(s.discHandlers, h)
}

// Disconnect releases room memberships and asks the write pump to close the
// connection. It is safe to call more than once.
func (s *Socket) Disconnect() {
	s.closeOnce.Do(func() {
		s.hub.remove(s)
		close(s.done)
	})
}

func (s *Socket) dispatch(env protocol.Envelope) {
	if env.Event == protocol.EventAck {
		s.mu.Lock()
		ack, ok := s.acks[env.ReferenceID]
		delete(s.acks, env.ReferenceID)
		s.mu.Unlock()
		if ok {
			ack(env)
		}
		return
	}

	s.mu.Lock()
	handlers := append([]EventHandler(nil), s.handlers[env.Event]...)
	s.mu.Unlock()

	for _, h := range handlers {
		h(env)
	}

	if env.AckRequested {
		reply := protocol.Envelope{
			ID:          uuid.NewString(),
			Event:       protocol.EventAck,
			Timestamp:   time.Now(),
			ReferenceID: env.ID,
		}
		if err := s.enqueue(reply); err != nil {
			s.logger.Debug("ack reply dropped", "error", err)
		}
	}
}

func (s *Socket) fireError(err error) {
	s.mu.Lock()
	handlers := slices.Clone(s.errHandlers)
	s.mu.Unlock()
	for _, h := range handlers {
		h(err)
	}
}

func (s *Socket) fireDisconnect() {
	s.mu.Lock()
	handlers := s.discHandlers
	s.discHandlers = nil
	s.mu.Unlock()
	for _, h := range handlers {
		h()
	}
}

func (s *Socket) readPump(ctx context.Context, decoder *protocol.Decoder, pongWait time.Duration) {
	defer func() {
		s.Disconnect()
		s.fireDisconnect()
	}()

	if pongWait > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	}

	for {
		env, err := decoder.Decode(ctx)
		if err != nil {
			var frameErr *protocol.FrameError
			if errors.As(err, &frameErr) {
				s.fireError(err)
				continue
			}
			if s.Closed() || errors.Is(err, context.Canceled) ||
				websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return
			}
			s.fireError(err)
			return
		}
		s.dispatch(env)
	}
}

func (s *Socket) writePump(ctx context.Context, encoder *protocol.Encoder, writeTimeout, pingPeriod time.Duration) {
	var tick <-chan time.Time
	if pingPeriod > 0 {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}
	defer s.conn.Close()

	write := func(env protocol.Envelope) error {
		if writeTimeout > 0 {
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return err
			}
		}
		return encoder.Encode(ctx, env)
	}

	for {
		select {
		case env := <-s.sendCh:
			if err := write(env); err != nil {
				s.logger.Debug("write failed", "error", err)
				s.Disconnect()
				return
			}
		case <-tick:
			if writeTimeout > 0 {
				_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Disconnect()
				return
			}
		case <-s.done:
			s.flush(write)
			deadline := time.Now().Add(time.Second)
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		case <-ctx.Done():
			s.Disconnect()
		}
	}
}

// flush writes whatever is still queued so a final notification reaches the
// peer before the close frame.
func (s *Socket) flush(write func(protocol.Envelope) error) {
	for {
		select {
		case env := <-s.sendCh:
			if err := write(env); err != nil {
				return
			}
		default:
			return
		}
	}
}
