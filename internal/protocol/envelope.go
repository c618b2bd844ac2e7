package protocol

import (
	"time"

	"github.com/fenggwsx/RoomGate/internal/fields"
)

// Reserved event names.
const (
	EventAck          = "ack"
	EventUnauthorized = "unauthorized"
	EventError        = "error"
	EventDisconnect   = "disconnect"
)

// Envelope wraps every frame sent over the socket.
type Envelope struct {
	ID           string    `json:"id"`
	Event        string    `json:"event"`
	Timestamp    time.Time `json:"timestamp"`
	AckRequested bool      `json:"ack,omitempty"`
	ReferenceID  string    `json:"reference_id,omitempty"` // set on ack replies
	Payload      any       `json:"payload,omitempty"`
}

// UnauthorizedPayload lists the fields that failed admission.
type UnauthorizedPayload struct {
	Message []fields.ValidationError `json:"message"`
}

// AckPayload is the optional body of an ack reply.
type AckPayload struct {
	Status string `json:"status,omitempty"`
}
