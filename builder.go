package goRelay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/goRelay/bus"
	"github.com/MrEthical07/goRelay/internal/audit"
	"github.com/MrEthical07/goRelay/internal/rate"
	"github.com/MrEthical07/goRelay/jwt"
	"github.com/MrEthical07/goRelay/permission"
	"github.com/MrEthical07/goRelay/session"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

// MetricsHandlerFunc builds the /metrics handler once the Bridge exists.
type MetricsHandlerFunc func(*Bridge) (http.Handler, error)

// Builder defines a public type used by goRelay APIs.
//
// Builder instances are single-use: Build may be called once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	logger *slog.Logger
	sink   EventSink
	now    func() time.Time

	metricsHandler MetricsHandlerFunc

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the bus client. Without it Build dials Config.Bus and the
// Bridge closes that client on Shutdown; a supplied client is left open.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the structured logger. Default slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithEventSink sets where lifecycle events are delivered.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.sink = sink
	return b
}

// WithMetricsHandler mounts the handler returned by fn at /metrics.
func (b *Builder) WithMetricsHandler(fn MetricsHandlerFunc) *Builder {
	b.metricsHandler = fn
	return b
}

// WithClock overrides time.Now for freshness checks and event timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build validates the configuration, constructs every component and returns a
// Bridge that has not started. Configuration errors wrap [ErrStartup].
func (b *Builder) Build() (*Bridge, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartup, err)
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, w := range cfg.Lint().BySeverity(LintWarn) {
		logger.Warn("config lint", "code", w.Code, "severity", w.Severity.String(), "detail", w.Message)
	}

	// -------- TOKEN VERIFIER --------
	verifier, err := jwt.NewVerifier(jwt.Config{
		Secret:         cfg.Token.Secret,
		Algorithms:     cfg.Token.Algorithms,
		MaxAge:         cfg.Token.MaxAge,
		ClockTolerance: cfg.Token.ClockTolerance,
		Now:            now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartup, err)
	}

	// -------- BUS CLIENT --------
	client := b.redis
	ownsRedis := false
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr:        cfg.Bus.Addr,
			Password:    cfg.Bus.Password,
			DB:          cfg.Bus.DB,
			DialTimeout: cfg.Bus.DialTimeout,
		})
		ownsRedis = true
	}

	bridge := &Bridge{
		config:   cfg,
		logger:   logger.With("component", "bridge"),
		now:      now,
		verifier: verifier,
		matcher:  permission.Matcher{Mode: cfg.Permission.Mode},
		origins:  make(map[string]struct{}, len(cfg.Admission.AllowedOrigins)),
		redis:    client,

		ownsRedis: ownsRedis,
		metrics:   NewMetrics(cfg.Metrics),
		events: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Events.Enabled,
			BufferSize: cfg.Events.BufferSize,
			DropIfFull: cfg.Events.DropIfFull,
		}, b.sink),
	}
	for _, origin := range cfg.Admission.AllowedOrigins {
		bridge.origins[origin] = struct{}{}
	}

	// -------- SESSION REGISTRY --------
	bridge.registry = session.NewRegistry(session.Config{
		KeepaliveInterval: cfg.Session.KeepaliveInterval,
		SendQueueSize:     cfg.Session.SendQueueSize,
		WriteTimeout:      cfg.Session.WriteTimeout,
		Now:               now,
		OnWriteError: func(id string, err error) {
			bridge.metrics.Inc(MetricSendFailed)
			bridge.logger.Debug("session write failed", "session_id", id, "error", fmt.Errorf("%w: %w", ErrTransport, err))
		},
		OnKeepalive: func(string) {
			bridge.metrics.Inc(MetricKeepaliveSent)
		},
	})

	bridge.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.Listener.ReadBufferSize,
		WriteBufferSize: cfg.Listener.WriteBufferSize,
		// Origin is checked against the allow-list before Upgrade.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	// -------- BUS SUBSCRIBER --------
	bridge.subscriber = bus.NewSubscriber(client, bus.Options{
		Pattern:     cfg.Bus.Pattern,
		ChannelSize: cfg.Bus.ChannelSize,
		Logger:      logger.With("component", "bus"),
		OnDrop:      bridge.handleBusDrop,
	})

	// -------- HANDSHAKE LIMITER --------
	if cfg.Admission.RateLimit.Enabled {
		bridge.limiter = rate.New(client, rate.Config{
			KeyPrefix:     cfg.Admission.RateLimit.KeyPrefix,
			MaxHandshakes: cfg.Admission.RateLimit.MaxHandshakes,
			Window:        cfg.Admission.RateLimit.Window,
		})
	}

	if b.metricsHandler != nil {
		h, err := b.metricsHandler(bridge)
		if err != nil {
			bridge.releaseIdle(context.Background())
			return nil, fmt.Errorf("%w: metrics handler: %w", ErrStartup, err)
		}
		bridge.metricsHandler = h
	}

	b.built = true
	return bridge, nil
}
