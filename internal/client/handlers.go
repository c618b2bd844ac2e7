package client

import (
	"strings"

	"github.com/fenggwsx/RoomGate/internal/protocol"
)

func (a *App) handleSessionEnvelope(env protocol.Envelope) {
	a.appendEvent(directionIn, env)
	switch env.Event {
	case protocol.EventUnauthorized:
		a.handleUnauthorized(env)
	case protocol.EventError:
		a.logErrorf("Server error: %s", formatPayload(env.Payload))
	case protocol.EventAck:
		ack, err := decodeAck(env.Payload)
		if err != nil {
			a.logf("Ack for %s", env.ReferenceID)
			return
		}
		a.logf("Ack[%s] for %s", ack.Status, env.ReferenceID)
	default:
		a.logf("Received %s", env.Event)
	}
}

func (a *App) handleUnauthorized(env protocol.Envelope) {
	a.unauthorized = true
	payload, err := decodeUnauthorized(env.Payload)
	if err != nil {
		a.logErrorf("Unauthorized: %v", err)
		return
	}
	missing := make([]string, 0, len(payload.Message))
	for _, ve := range payload.Message {
		missing = append(missing, ve.Key+" "+ve.Reason)
	}
	a.logErrorf("Unauthorized: %s", strings.Join(missing, ", "))
}
