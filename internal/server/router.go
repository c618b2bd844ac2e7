package server

import (
	"fmt"

	"github.com/fenggwsx/RoomGate/internal/fields"
	"github.com/fenggwsx/RoomGate/internal/metrics"
)

// RoutingError reports a broadcast whose target yields no room key.
type RoutingError struct {
	Reason string
}

func (e *RoutingError) Error() string { return e.Reason }

const reasonNoRoom = "no room id found"

// Emit sends event with payload to the sockets selected by target:
//
//   - nil: every connected socket
//   - string: the room with that literal key
//   - fields.Properties, map[string]any, map[string]string: the room derived from the properties
//   - *Client: the client's room
//
// A target that yields an empty key fails with *RoutingError. Only an untyped
// nil reaches every socket: a nil fields.Properties, nil map or nil *Client
// carries no key and is rejected like an empty one. Delivery goes to the
// room's members at call time only.
func (a *App) Emit(target any, payload any, event string) error {
	hub, err := a.hub()
	if err != nil {
		return err
	}

	if target == nil {
		a.logger.Debug("emit to all", "event", event)
		n := hub.BroadcastAll(event, payload)
		a.recordBroadcast(metrics.TargetAll, n, nil)
		return nil
	}

	kind, key, err := a.resolveTarget(target)
	if err != nil {
		a.recordBroadcast(kind, 0, err)
		return err
	}

	n := hub.BroadcastRoom(key, event, payload)
	a.recordBroadcast(kind, n, nil)
	a.logger.Debug("emit to room", "room", key, "event", event, "delivered", n, "clients", len(hub.Members(key)))
	return nil
}

func (a *App) resolveTarget(target any) (kind, key string, err error) {
	switch t := target.(type) {
	case string:
		kind, key = metrics.TargetRoom, t
	case fields.Properties:
		kind, key = metrics.TargetProps, a.RoomKey(t)
	case map[string]any:
		kind, key = metrics.TargetProps, a.RoomKey(t)
	case map[string]string:
		props := make(map[string]any, len(t))
		for k, v := range t {
			props[k] = v
		}
		kind, key = metrics.TargetProps, a.RoomKey(props)
	case *Client:
		if t == nil {
			return metrics.TargetProps, "", &RoutingError{Reason: reasonNoRoom}
		}
		kind, key = metrics.TargetProps, t.RoomKey()
	default:
		return metrics.TargetProps, "", &RoutingError{Reason: fmt.Sprintf("unsupported target type %T", target)}
	}

	if key == "" {
		return kind, "", &RoutingError{Reason: reasonNoRoom}
	}
	return kind, key, nil
}

// RoomKey derives the room key for props using the resolved header fields.
func (a *App) RoomKey(props map[string]any) string {
	return a.Fields().RoomKey(a.logger, props)
}

// RoomSize returns the number of sockets currently in room.
func (a *App) RoomSize(room string) (int, error) {
	hub, err := a.hub()
	if err != nil {
		return 0, err
	}
	return len(hub.Members(room)), nil
}

func (a *App) recordBroadcast(kind string, n int, err error) {
	if a.metrics != nil {
		a.metrics.RecordBroadcast(kind, n, err)
	}
}
