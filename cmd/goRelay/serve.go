package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/goRelay"
	"github.com/MrEthical07/goRelay/metrics/export/prometheus"
	"github.com/MrEthical07/goRelay/permission"
)

type serveCommand struct {
	app *app

	Addr           string        `long:"addr" env:"GORELAY_ADDR" default:":8080" description:"WebSocket listen address"`
	Path           string        `long:"path" env:"GORELAY_PATH" default:"/" description:"WebSocket endpoint path"`
	Origins        []string      `long:"origin" env:"GORELAY_ORIGINS" env-delim:"," description:"Allowed Origin (repeatable)"`
	MaxAge         time.Duration `long:"max-age" env:"GORELAY_MAX_AGE" description:"Reject credentials issued longer ago (0 disables)"`
	ClockTolerance time.Duration `long:"clock-tolerance" env:"GORELAY_CLOCK_TOLERANCE" default:"0s" description:"Tolerance applied to credential time claims"`
	Pattern        string        `long:"pattern" env:"GORELAY_PATTERN" default:"*" description:"Bus channel pattern to subscribe to"`
	Keepalive      time.Duration `long:"keepalive" env:"GORELAY_KEEPALIVE" default:"30s" description:"Keepalive frame interval (0 disables)"`
	SendQueue      int           `long:"send-queue" env:"GORELAY_SEND_QUEUE" default:"256" description:"Per-session outbound queue size"`
	PermissionMode string        `long:"permission-mode" env:"GORELAY_PERMISSION_MODE" default:"all" choice:"all" choice:"any" description:"How user and group constraints combine"`

	RateLimit       bool          `long:"rate-limit" env:"GORELAY_RATE_LIMIT" description:"Throttle handshakes per remote IP"`
	RateLimitMax    int           `long:"rate-limit-max" env:"GORELAY_RATE_LIMIT_MAX" default:"30" description:"Handshakes allowed per window"`
	RateLimitWindow time.Duration `long:"rate-limit-window" env:"GORELAY_RATE_LIMIT_WINDOW" default:"1m" description:"Rate limit window"`

	Events      string `long:"events" env:"GORELAY_EVENTS" default:"log" choice:"none" choice:"log" choice:"json" description:"Lifecycle event sink"`
	MetricsAddr string `long:"metrics-addr" env:"GORELAY_METRICS_ADDR" description:"Serve /metrics on a separate listener"`
	NoMetrics   bool   `long:"no-metrics" env:"GORELAY_NO_METRICS" description:"Disable metrics"`

	Verbosity       int           `short:"v" long:"verbosity" env:"GORELAY_VERBOSITY" default:"1" description:"Log verbosity 0-4"`
	LogFormat       string        `long:"log-format" env:"GORELAY_LOG_FORMAT" default:"text" choice:"text" choice:"json" description:"Log output format"`
	ShutdownTimeout time.Duration `long:"shutdown-timeout" env:"GORELAY_SHUTDOWN_TIMEOUT" default:"10s" description:"Grace period for shutdown"`
	Strict          bool          `long:"strict" env:"GORELAY_STRICT" description:"Refuse to start on high-severity config warnings"`

	Token tokenOptions `group:"Credentials"`
	Bus   busOptions   `group:"Bus"`
}

func (c *serveCommand) config() (goRelay.Config, error) {
	mode, err := permission.ParseMode(c.PermissionMode)
	if err != nil {
		return goRelay.Config{}, fmt.Errorf("permission mode %q: %w", c.PermissionMode, err)
	}

	cfg := goRelay.DefaultConfig()
	cfg.Listener.Addr = c.Addr
	cfg.Listener.Path = c.Path
	cfg.Token.Secret = []byte(c.Token.Secret)
	cfg.Token.Algorithms = c.Token.Algorithms
	cfg.Token.MaxAge = c.MaxAge
	cfg.Token.ClockTolerance = c.ClockTolerance
	cfg.Session.KeepaliveInterval = c.Keepalive
	cfg.Session.SendQueueSize = c.SendQueue
	cfg.Bus.Addr = c.Bus.RedisAddr
	cfg.Bus.Password = c.Bus.RedisPassword
	cfg.Bus.DB = c.Bus.RedisDB
	cfg.Bus.Pattern = c.Pattern
	cfg.Permission.Mode = mode
	cfg.Admission.AllowedOrigins = c.Origins
	cfg.Admission.RateLimit.Enabled = c.RateLimit
	cfg.Admission.RateLimit.MaxHandshakes = c.RateLimitMax
	cfg.Admission.RateLimit.Window = c.RateLimitWindow
	cfg.Events.Enabled = c.Events != "none"
	cfg.Metrics.Enabled = !c.NoMetrics
	cfg.Metrics.EnableLatencyHistograms = !c.NoMetrics
	cfg.Metrics.ListenAddr = c.MetricsAddr
	cfg.Verbosity = c.Verbosity

	if err := cfg.Validate(); err != nil {
		return goRelay.Config{}, err
	}
	if c.Strict {
		if err := cfg.Lint().AsError(goRelay.LintHigh); err != nil {
			return goRelay.Config{}, fmt.Errorf("strict mode: %w", err)
		}
	}
	return cfg, nil
}

func (c *serveCommand) Execute([]string) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	logger := newLogger(c.app.stderr, c.LogFormat, cfg.Verbosity)

	builder := goRelay.New().WithConfig(cfg).WithLogger(logger)
	switch c.Events {
	case "log":
		builder.WithEventSink(goRelay.SlogSink{Logger: logger.With("component", "events"), Level: slog.LevelDebug})
	case "json":
		builder.WithEventSink(goRelay.NewJSONWriterSink(c.app.stdout))
	}
	if cfg.Metrics.Enabled {
		builder.WithMetricsHandler(func(b *goRelay.Bridge) (http.Handler, error) {
			return prometheus.Handler(b)
		})
	}

	bridge, err := builder.Build()
	if err != nil {
		return err
	}

	err = bridge.Run(c.app.ctx, c.ShutdownTimeout)
	if errors.Is(err, goRelay.ErrStartup) {
		logger.Error("bridge failed to start", "error", err)
	}
	return err
}
