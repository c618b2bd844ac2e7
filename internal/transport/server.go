package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fenggwsx/RoomGate/internal/fields"
	"github.com/fenggwsx/RoomGate/internal/protocol"
)

// ErrServerClosed is returned by Close when called twice.
var ErrServerClosed = errors.New("transport closed")

// Options tune the websocket server.
type Options struct {
	MaxFrameBytes int64
	WriteTimeout  time.Duration
	PongWait      time.Duration
	SendBuffer    int
	// AllowHeaders are advertised on CORS preflight requests.
	AllowHeaders []string
	CheckOrigin  func(r *http.Request) bool
	Logger       *slog.Logger
}

// ConnectionHandler runs once per accepted socket, before inbound frames are read.
type ConnectionHandler func(s *Socket)

// Server upgrades HTTP requests to sockets and tracks them in a Hub.
type Server struct {
	opts      Options
	hub       *Hub
	upgrader  websocket.Upgrader
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	onConnect ConnectionHandler
	closed    bool
}

// NewServer constructs a server. It is an http.Handler.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		opts: opts,
		hub:  NewHub(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Hub exposes room membership and broadcast primitives.
func (s *Server) Hub() *Hub { return s.hub }

// OnConnection sets the handler run for every accepted socket.
func (s *Server) OnConnection(h ConnectionHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnect = h
}

// ServeHTTP answers CORS preflight requests and upgrades everything else.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		s.preflight(w, r)
		return
	}

	s.mu.RLock()
	closed, onConnect := s.closed, s.onConnect
	if !closed {
		s.wg.Add(1)
	}
	s.mu.RUnlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade error", "error", err)
		return
	}

	socket := newSocket(s.hub, conn, fields.MetadataFromHeader(r.Header), r.RemoteAddr, s.opts.SendBuffer, s.logger)
	s.hub.add(socket)

	pingPeriod := s.opts.PongWait * 9 / 10
	go socket.writePump(s.ctx, protocol.NewEncoder(conn), s.opts.WriteTimeout, pingPeriod)

	if onConnect != nil {
		onConnect(socket)
	}

	socket.readPump(s.ctx, protocol.NewDecoder(conn, s.opts.MaxFrameBytes), s.opts.PongWait)
}

func (s *Server) preflight(w http.ResponseWriter, r *http.Request) {
	allow := append([]string{"content-type", "authorization"}, s.opts.AllowHeaders...)
	h := w.Header()
	h.Set("Access-Control-Allow-Headers", strings.Join(allow, ","))
	if origin := r.Header.Get("Origin"); origin != "" {
		h.Set("Access-Control-Allow-Origin", origin)
	}
	h.Set("Access-Control-Allow-Credentials", "true")
	w.WriteHeader(http.StatusOK)
}

// Close disconnects every socket and waits for their handlers to return or
// for ctx to expire.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.closed = true
	s.mu.Unlock()

	for _, socket := range s.hub.snapshot() {
		socket.Disconnect()
	}

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(finished)
	}()

	defer s.cancel()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
