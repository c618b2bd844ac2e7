package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fenggwsx/RoomGate/internal/config"
	"github.com/fenggwsx/RoomGate/internal/fields"
	"github.com/fenggwsx/RoomGate/internal/metrics"
	"github.com/fenggwsx/RoomGate/internal/storage"
	"github.com/fenggwsx/RoomGate/internal/transport"
)

var (
	// ErrNotStarted is returned by operations that need a running transport.
	ErrNotStarted = errors.New("server not started")
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("server already started")
	// ErrInsecureJWTSecret is returned by Start when admin login is enabled
	// but tokens would be signed with the placeholder secret.
	ErrInsecureJWTSecret = errors.New("admin login requires a non-default jwt secret")
)

// App coordinates the websocket transport, the admission pipeline and
// room routing.
type App struct {
	cfg      config.ServerConfig
	store    storage.Store
	metrics  *metrics.RoutingMetrics
	gatherer prometheus.Gatherer
	logger   *slog.Logger

	mu        sync.RWMutex
	listeners []namedListener
	started   bool
	table     fields.Table
	transport *transport.Server

	httpServer *http.Server
	listener   net.Listener
	serveErr   chan error
	closeOnce  sync.Once
}

// Option customizes an App.
type Option func(*App)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithMetrics records admission and broadcast metrics. A non-nil gatherer
// is also served on /metrics.
func WithMetrics(m *metrics.RoutingMetrics, gatherer prometheus.Gatherer) Option {
	return func(a *App) {
		a.metrics = m
		a.gatherer = gatherer
	}
}

// NewApp constructs a server instance using the provided dependencies.
// store may be nil, in which case admissions are not journaled.
func NewApp(cfg config.ServerConfig, store storage.Store, opts ...Option) *App {
	a := &App{
		cfg:    cfg,
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.registerBuiltins()
	return a
}

// Start resolves the header fields, then begins accepting connections. It
// returns once the listener is bound; a ConfigurationError from malformed
// header fields prevents the start.
func (a *App) Start(ctx context.Context) error {
	if a.cfg.Admin.PasswordHash != "" &&
		(a.cfg.JWT.Secret == "" || a.cfg.JWT.Secret == config.DefaultJWTSecret) {
		return ErrInsecureJWTSecret
	}

	table, err := fields.Resolve(a.cfg.Socket.HeaderFields.Items())
	if err != nil {
		return fmt.Errorf("resolve header fields: %w", err)
	}

	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return ErrAlreadyStarted
	}
	a.started = true
	a.table = table
	a.mu.Unlock()

	if a.store != nil {
		if err := a.store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	ts := transport.NewServer(transport.Options{
		MaxFrameBytes: int64(a.cfg.MaxFrameBytes),
		WriteTimeout:  a.cfg.WriteTimeout,
		PongWait:      a.cfg.ReadTimeout,
		SendBuffer:    a.cfg.SendBuffer,
		AllowHeaders:  table.WireNames(),
		Logger:        a.logger,
	})
	ts.OnConnection(a.admit)

	listener, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	a.mu.Lock()
	a.transport = ts
	a.listener = listener
	a.httpServer = &http.Server{
		Handler:           a.routes(ts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.serveErr = make(chan error, 1)
	a.mu.Unlock()

	go func() {
		err := a.httpServer.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		a.serveErr <- err
	}()

	a.logger.Info("server listening", "addr", listener.Addr().String(), "path", a.cfg.SocketPath, "fields", table.Keys())
	return nil
}

// Run starts the server and blocks until ctx is canceled or serving fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-a.serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Stop(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}

// Stop closes every socket and the HTTP listener.
func (a *App) Stop(ctx context.Context) error {
	a.mu.RLock()
	ts, httpServer := a.transport, a.httpServer
	a.mu.RUnlock()
	if ts == nil {
		return ErrNotStarted
	}

	var err error
	a.closeOnce.Do(func() {
		err = errors.Join(ts.Close(ctx), httpServer.Shutdown(ctx))
		a.logger.Info("server stopped")
	})
	return err
}

// Addr returns the bound listen address, or nil before Start.
func (a *App) Addr() net.Addr {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Fields returns the resolved header field table.
func (a *App) Fields() fields.Table {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.table
}

func (a *App) hub() (*transport.Hub, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.transport == nil {
		return nil, ErrNotStarted
	}
	return a.transport.Hub(), nil
}
