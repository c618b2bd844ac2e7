package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

// ErrBinaryFrame is returned when a peer sends a non-text frame.
var ErrBinaryFrame = errors.New("binary frames are not supported")

// FrameError reports a frame that arrived intact but could not be decoded.
// The connection itself is still usable.
type FrameError struct {
	Err error
}

func (e *FrameError) Error() string { return "bad frame: " + e.Err.Error() }

func (e *FrameError) Unwrap() error { return e.Err }

// Encoder writes envelopes as websocket text frames.
type Encoder struct {
	conn *websocket.Conn
}

// Decoder reads envelopes from websocket text frames.
type Decoder struct {
	conn *websocket.Conn
}

// NewEncoder creates a new encoder for the given connection.
func NewEncoder(conn *websocket.Conn) *Encoder {
	return &Encoder{conn: conn}
}

// NewDecoder creates a new decoder for the given connection. maxFrameBytes
// caps inbound frames when positive.
func NewDecoder(conn *websocket.Conn, maxFrameBytes int64) *Decoder {
	if maxFrameBytes > 0 {
		conn.SetReadLimit(maxFrameBytes)
	}
	return &Decoder{conn: conn}
}

// Encode writes the envelope to the underlying connection.
func (e *Encoder) Encode(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	return e.conn.WriteMessage(websocket.TextMessage, data)
}

// Decode reads the next envelope from the connection.
func (d *Decoder) Decode(ctx context.Context) (Envelope, error) {
	var env Envelope

	select {
	case <-ctx.Done():
		return env, ctx.Err()
	default:
	}

	kind, data, err := d.conn.ReadMessage()
	if err != nil {
		return env, err
	}
	if kind != websocket.TextMessage {
		return env, &FrameError{Err: ErrBinaryFrame}
	}
	if len(data) == 0 {
		return env, &FrameError{Err: errors.New("frame length zero")}
	}

	if err := json.Unmarshal(data, &env); err != nil {
		return env, &FrameError{Err: fmt.Errorf("decode envelope: %w", err)}
	}
	return env, nil
}

// DecodePayload re-decodes a generic payload into out.
func DecodePayload(payload any, out any) error {
	if payload == nil {
		return errors.New("empty payload")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
