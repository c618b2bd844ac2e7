package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fenggwsx/RoomGate/internal/protocol"
)

var errNotConnected = errors.New("not connected")

// Session manages the watcher's websocket connection to a RoomGate server.
type Session struct {
	url     string
	headers map[string]string

	mu       sync.Mutex
	conn     *websocket.Conn
	encoder  *protocol.Encoder
	messages chan protocol.Envelope
	cancelFn context.CancelFunc
}

// NewSession prepares a session that sends headers on the upgrade request.
func NewSession(url string, headers map[string]string) *Session {
	return &Session{
		url:      url,
		headers:  headers,
		messages: make(chan protocol.Envelope, 64),
	}
}

// Connect dials the server and starts reading envelopes.
func (s *Session) Connect(ctx context.Context) error {
	header := http.Header{}
	for name, value := range s.headers {
		header.Set(name, value)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return err
	}

	readCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.conn = conn
	s.encoder = protocol.NewEncoder(conn)
	s.cancelFn = cancel
	s.mu.Unlock()

	go s.readLoop(readCtx, protocol.NewDecoder(conn, 0))
	return nil
}

// Messages yields inbound envelopes and is closed when the connection ends.
func (s *Session) Messages() <-chan protocol.Envelope {
	return s.messages
}

// URL returns the server address.
func (s *Session) URL() string { return s.url }

// Close sends a close frame and terminates the session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelFn != nil {
		s.cancelFn()
	}
	if s.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return s.conn.Close()
}

// Send dispatches an envelope to the server.
func (s *Session) Send(ctx context.Context, env protocol.Envelope) error {
	if env.ID == "" {
		env.ID = uuid.NewString()
	}
	env.Timestamp = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.encoder == nil {
		return errNotConnected
	}
	return s.encoder.Encode(ctx, env)
}

func (s *Session) readLoop(ctx context.Context, decoder *protocol.Decoder) {
	defer close(s.messages)
	for {
		env, err := decoder.Decode(ctx)
		if err != nil {
			var frameErr *protocol.FrameError
			if errors.As(err, &frameErr) {
				continue
			}
			return
		}
		if env.AckRequested {
			_ = s.Send(ctx, protocol.Envelope{
				Event:       protocol.EventAck,
				ReferenceID: env.ID,
				Payload:     protocol.AckPayload{Status: "ok"},
			})
		}
		select {
		case s.messages <- env:
		case <-ctx.Done():
			return
		}
	}
}
