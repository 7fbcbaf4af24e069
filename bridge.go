package goRelay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/MrEthical07/goRelay/bus"
	"github.com/MrEthical07/goRelay/internal/audit"
	"github.com/MrEthical07/goRelay/internal/rate"
	"github.com/MrEthical07/goRelay/jwt"
	"github.com/MrEthical07/goRelay/permission"
	"github.com/MrEthical07/goRelay/session"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

type bridgeState int

const (
	stateIdle bridgeState = iota
	stateRunning
	stateClosed
)

// Bridge relays bus envelopes to authenticated WebSocket sessions.
//
// A Bridge owns its session registry, bus subscription and listener. Build one
// with [New]; Start and Shutdown may each be called once.
type Bridge struct {
	config   Config
	logger   *slog.Logger
	now      func() time.Time
	verifier *jwt.Verifier
	matcher  permission.Matcher
	registry *session.Registry
	upgrader websocket.Upgrader
	origins  map[string]struct{}

	redis      redis.UniversalClient
	ownsRedis  bool
	subscriber *bus.Subscriber
	limiter    *rate.Limiter
	events     *audit.Dispatcher
	metrics    *Metrics

	metricsHandler http.Handler

	mu            sync.Mutex
	state         bridgeState
	closing       bool
	listener      net.Listener
	server        *http.Server
	metricsServer *http.Server
	serveErr      chan error
	conns         sync.WaitGroup
}

// Handler returns the HTTP routes of the bridge: the WebSocket endpoint at the
// configured path, /healthz and, when a metrics handler is configured without
// a separate listener, /metrics.
func (b *Bridge) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", b.serveHealth)
	if b.metricsHandler != nil && b.config.Metrics.ListenAddr == "" {
		r.Method(http.MethodGet, "/metrics", b.metricsHandler)
	}
	r.Get(b.config.Listener.Path, b.ServeHTTP)
	return r
}

func (b *Bridge) serveHealth(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	running := b.state == stateRunning && !b.closing
	b.mu.Unlock()

	if !running {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "ok sessions=%d\n", b.registry.Len())
}

// Start binds the listener, confirms the bus connection and subscription and
// begins serving. Every failure wraps [ErrStartup] and leaves nothing running.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateRunning:
		return ErrAlreadyStarted
	case stateClosed:
		return ErrBridgeClosed
	}

	if err := b.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis ping: %w", ErrStartup, err)
	}

	ln, err := net.Listen("tcp", b.config.Listener.Addr)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %w", ErrStartup, b.config.Listener.Addr, err)
	}

	if err := b.subscriber.Start(ctx, b.handleBusMessage); err != nil {
		_ = ln.Close()
		return fmt.Errorf("%w: %w", ErrStartup, err)
	}

	var metricsLn net.Listener
	if b.metricsHandler != nil && b.config.Metrics.ListenAddr != "" {
		metricsLn, err = net.Listen("tcp", b.config.Metrics.ListenAddr)
		if err != nil {
			_ = ln.Close()
			_ = b.subscriber.Close(ctx)
			return fmt.Errorf("%w: metrics listen %s: %w", ErrStartup, b.config.Metrics.ListenAddr, err)
		}
	}

	b.listener = ln
	b.server = &http.Server{
		Handler:           b.Handler(),
		ReadHeaderTimeout: b.config.Listener.ReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(b.logger.Handler(), slog.LevelWarn),
	}
	b.serveErr = make(chan error, 2)
	go b.serve(b.server, ln)

	if metricsLn != nil {
		mux := chi.NewRouter()
		mux.Method(http.MethodGet, "/metrics", b.metricsHandler)
		b.metricsServer = &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: b.config.Listener.ReadHeaderTimeout,
		}
		go b.serve(b.metricsServer, metricsLn)
	}

	b.state = stateRunning
	b.logger.Info("bridge listening",
		"addr", ln.Addr().String(),
		"path", b.config.Listener.Path,
		"bus_pattern", b.config.Bus.Pattern,
		"keepalive", b.config.Session.KeepaliveInterval,
	)
	return nil
}

func (b *Bridge) serve(srv *http.Server, ln net.Listener) {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		b.logger.Error("listener failed", "addr", ln.Addr().String(), "error", err)
		b.serveErr <- err
	}
}

// Addr returns the bound listener address, or nil before Start.
func (b *Bridge) Addr() net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// Shutdown stops the bridge in two concurrent phases and returns only after
// both have finished: the listener phase closes the listener, evicts every
// session and waits for their read loops; the bus phase unsubscribes and
// closes the bus connection. Errors from both phases are joined.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	prev := b.state
	b.state = stateClosed
	b.closing = true
	b.mu.Unlock()

	if prev != stateRunning {
		if prev == stateIdle {
			b.releaseIdle(ctx)
		}
		return nil
	}

	var listenerErr, busErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		listenerErr = b.shutdownListener(ctx)
	}()
	go func() {
		defer wg.Done()
		busErr = b.shutdownBus(ctx)
	}()
	wg.Wait()

	eventsErr := b.events.Close(ctx)

	err := errors.Join(listenerErr, busErr, eventsErr)
	if err != nil {
		b.logger.Warn("bridge stopped with errors", "error", err)
	} else {
		b.logger.Info("bridge stopped")
	}
	return err
}

func (b *Bridge) shutdownListener(ctx context.Context) error {
	var errs []error
	if err := b.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("listener shutdown: %w", err))
	}
	if b.metricsServer != nil {
		if err := b.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics listener shutdown: %w", err))
		}
	}

	n := b.registry.EvictAll()
	b.logger.Debug("evicted sessions on shutdown", "sessions", n)

	done := make(chan struct{})
	go func() {
		b.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("wait for sessions: %w", ctx.Err()))
	}

	b.logger.Debug("listener phase complete")
	return errors.Join(errs...)
}

func (b *Bridge) shutdownBus(ctx context.Context) error {
	var errs []error
	if err := b.subscriber.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("bus unsubscribe: %w", err))
	}
	if b.ownsRedis {
		if err := b.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("bus close: %w", err))
		}
	}

	b.logger.Debug("bus phase complete")
	return errors.Join(errs...)
}

func (b *Bridge) releaseIdle(ctx context.Context) {
	_ = b.events.Close(ctx)
	if b.ownsRedis {
		_ = b.redis.Close()
	}
}

// Run starts the bridge, blocks until ctx is done or the listener fails, then
// shuts down within shutdownTimeout.
func (b *Bridge) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	if err := b.Start(ctx); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-b.serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return errors.Join(runErr, b.Shutdown(shutdownCtx))
}

// trackConn registers a read loop unless shutdown has begun.
func (b *Bridge) trackConn() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closing {
		return false
	}
	b.conns.Add(1)
	return true
}

func (b *Bridge) isClosing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closing
}

// ActiveSessions returns the number of registered sessions.
func (b *Bridge) ActiveSessions() int {
	return b.registry.Len()
}

// MetricsSnapshot returns the current metric values.
func (b *Bridge) MetricsSnapshot() MetricsSnapshot {
	return b.metrics.Snapshot()
}

// EventsDropped returns the number of lifecycle events dropped by the dispatcher.
func (b *Bridge) EventsDropped() uint64 {
	return b.events.Dropped()
}

// Config returns a copy of the active configuration.
func (b *Bridge) Config() Config {
	return cloneConfig(b.config)
}
