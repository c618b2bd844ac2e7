package client

import (
	"encoding/json"
	"fmt"

	"github.com/fenggwsx/RoomGate/internal/protocol"
)

func decodeAck(payload any) (protocol.AckPayload, error) {
	var ack protocol.AckPayload
	if payload == nil {
		return ack, fmt.Errorf("ack payload empty")
	}
	err := protocol.DecodePayload(payload, &ack)
	return ack, err
}

func decodeUnauthorized(payload any) (protocol.UnauthorizedPayload, error) {
	var out protocol.UnauthorizedPayload
	if payload == nil {
		return out, fmt.Errorf("unauthorized payload empty")
	}
	err := protocol.DecodePayload(payload, &out)
	return out, err
}

// formatPayload renders a payload for display on one line.
func formatPayload(payload any) string {
	if payload == nil {
		return ""
	}
	if s, ok := payload.(string); ok {
		return s
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(data)
}
