package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fenggwsx/RoomGate/internal/fields"
	"github.com/fenggwsx/RoomGate/internal/protocol"
	"github.com/fenggwsx/RoomGate/internal/storage"
	"github.com/fenggwsx/RoomGate/internal/transport"
)

// Built-in listener names, in registration order.
const (
	ListenerCheckHeaders = "check-headers"
	ListenerAutoJoin     = "auto-join"
	ListenerPropGet      = "prop-get"
	ListenerErrorLog     = "error-log"
	ListenerJournal      = "journal"
	ListenerMetrics      = "metrics"
)

var (
	// ErrPipelineSealed is returned when listeners change after Start.
	ErrPipelineSealed = errors.New("admission pipeline is sealed after start")
	// ErrDuplicateListener is returned when a listener name is already registered.
	ErrDuplicateListener = errors.New("listener already registered")
	// ErrUnknownListener is returned when removing a name that is not registered.
	ErrUnknownListener = errors.New("listener not registered")
)

// ListenerFunc observes a newly connected client. Listeners run in
// registration order for every connection, including connections already
// scheduled for disconnect, so they must tolerate a closing client.
type ListenerFunc func(c *Client)

type namedListener struct {
	name string
	fn   ListenerFunc
}

// Client is a socket together with the properties extracted at admission.
type Client struct {
	*transport.Socket

	Properties       fields.Properties
	ValidationErrors []fields.ValidationError

	roomKey     string
	connectedAt time.Time
	accessor    func(path string, def any) any
}

// RoomKey returns the room key derived from the client's properties.
func (c *Client) RoomKey() string { return c.roomKey }

// Admitted reports whether every required field was present.
func (c *Client) Admitted() bool { return len(c.ValidationErrors) == 0 }

// ConnectedAt returns when the client was admitted.
func (c *Client) ConnectedAt() time.Time { return c.connectedAt }

// Get looks up a dotted property path. It returns def until the prop-get
// listener has attached the accessor.
func (c *Client) Get(path string, def any) any {
	if c.accessor == nil {
		return def
	}
	return c.accessor(path, def)
}

// AddListener appends a listener to the admission pipeline. It must be
// called before Start.
func (a *App) AddListener(name string, fn ListenerFunc) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return ErrPipelineSealed
	}
	for _, l := range a.listeners {
		if l.name == name {
			return fmt.Errorf("%w: %s", ErrDuplicateListener, name)
		}
	}
	a.listeners = append(a.listeners, namedListener{name: name, fn: fn})
	return nil
}

// RemoveListener drops a listener by name. It must be called before Start.
func (a *App) RemoveListener(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return ErrPipelineSealed
	}
	for i, l := range a.listeners {
		if l.name == name {
			a.listeners = append(a.listeners[:i], a.listeners[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownListener, name)
}

// Listeners returns the registered listener names in order.
func (a *App) Listeners() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, len(a.listeners))
	for i, l := range a.listeners {
		names[i] = l.name
	}
	return names
}

func (a *App) registerBuiltins() {
	_ = a.AddListener(ListenerCheckHeaders, a.checkHeaders)
	if a.cfg.Socket.AutoJoinRoom {
		_ = a.AddListener(ListenerAutoJoin, a.autoJoin)
	}
	if a.cfg.Socket.PropGet {
		_ = a.AddListener(ListenerPropGet, attachAccessor)
	}
	_ = a.AddListener(ListenerErrorLog, a.logErrors)
	if a.store != nil {
		_ = a.AddListener(ListenerJournal, a.journal)
	}
	if a.metrics != nil {
		_ = a.AddListener(ListenerMetrics, a.observe)
	}
}

// admit runs the header extraction step and then every listener.
func (a *App) admit(s *transport.Socket) {
	a.mu.RLock()
	table := a.table
	listeners := append([]namedListener(nil), a.listeners...)
	a.mu.RUnlock()

	c := &Client{Socket: s, connectedAt: time.Now()}
	c.Properties, c.ValidationErrors = table.Extract(s.Metadata())
	c.roomKey = table.RoomKey(a.logger, c.Properties)

	a.logger.Info("socket client connect", "socket", s.ID(), "room", c.roomKey, "remote", s.RemoteAddr())

	for _, l := range listeners {
		a.runListener(l, c)
	}
}

func (a *App) runListener(l namedListener, c *Client) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("listener panic", "listener", l.name, "socket", c.ID(), "panic", r)
		}
	}()
	l.fn(c)
}

// checkHeaders notifies a client with missing required fields and
// disconnects it once the notification is acknowledged or AckTimeout passes.
func (a *App) checkHeaders(c *Client) {
	if c.Admitted() {
		return
	}
	a.logger.Info("client headers error", "socket", c.ID(), "errors", c.ValidationErrors)

	payload := protocol.UnauthorizedPayload{Message: c.ValidationErrors}
	err := c.EmitWithAck(protocol.EventUnauthorized, payload, func(protocol.Envelope) {
		c.Disconnect()
	})
	if err != nil || a.cfg.AckTimeout <= 0 {
		c.Disconnect()
		return
	}

	timer := time.AfterFunc(a.cfg.AckTimeout, c.Disconnect)
	c.OnDisconnect(func() { timer.Stop() })
}

func (a *App) autoJoin(c *Client) {
	key := c.RoomKey()
	if key == "" {
		a.logger.Debug("no room key, skipping auto join", "socket", c.ID())
		if a.metrics != nil {
			a.metrics.AutoJoinSkipped()
		}
		return
	}
	c.Join(key)
}

func attachAccessor(c *Client) {
	c.accessor = c.Properties.Get
}

func (a *App) logErrors(c *Client) {
	c.OnError(func(err error) {
		a.logger.Warn("socket client error", "socket", c.ID(), "error", err)
	})
}

func (a *App) journal(c *Client) {
	status := storage.StatusAdmitted
	var fieldErrs []storage.FieldError
	if !c.Admitted() {
		status = storage.StatusRejected
		for _, ve := range c.ValidationErrors {
			fieldErrs = append(fieldErrs, storage.FieldError{Key: ve.Key, Reason: ve.Reason})
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := a.store.RecordAdmission(ctx, &storage.Admission{
		ConnectionID: c.ID(),
		RemoteAddr:   c.RemoteAddr(),
		RoomKey:      c.RoomKey(),
		Status:       status,
		Errors:       fieldErrs,
		ConnectedAt:  c.ConnectedAt(),
	})
	if err != nil {
		a.logger.Error("journal admission", "socket", c.ID(), "error", err)
		return
	}

	c.OnDisconnect(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.store.RecordDisconnect(ctx, c.ID(), time.Now()); err != nil {
			a.logger.Error("journal disconnect", "socket", c.ID(), "error", err)
		}
	})
}

func (a *App) observe(c *Client) {
	admitted := c.Admitted()
	a.metrics.ConnectionOpened(admitted)
	if admitted {
		c.OnDisconnect(a.metrics.ConnectionClosed)
	}
}
