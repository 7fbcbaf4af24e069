package goRelay

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goRelay/jwt"
	"github.com/MrEthical07/goRelay/permission"
)

// Config defines a public type used by goRelay APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Listener   ListenerConfig
	Token      TokenConfig
	Session    SessionConfig
	Bus        BusConfig
	Permission PermissionConfig
	Admission  AdmissionConfig
	Events     EventsConfig
	Metrics    MetricsConfig
	// Verbosity grades log output from 0 (warnings only) to 4 (per-broadcast detail).
	Verbosity int
}

/*
====================================
LISTENER CONFIG
====================================
*/

// ListenerConfig controls the WebSocket HTTP listener.
type ListenerConfig struct {
	// Addr is the TCP listen address, e.g. ":8080".
	Addr string
	// Path is the route the WebSocket endpoint is mounted on.
	Path              string
	ReadHeaderTimeout time.Duration
	// MaxMessageSize bounds inbound control frames in bytes.
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls credential verification.
type TokenConfig struct {
	Secret     []byte
	Algorithms []string
	// MaxAge rejects credentials issued longer ago; zero disables the check.
	MaxAge         time.Duration
	ClockTolerance time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls per-session resources.
type SessionConfig struct {
	// KeepaliveInterval <= 0 disables keepalive frames.
	KeepaliveInterval time.Duration
	SendQueueSize     int
	WriteTimeout      time.Duration
}

/*
====================================
BUS CONFIG
====================================
*/

// BusConfig controls the Redis pub/sub connection.
type BusConfig struct {
	Addr        string
	Password    string
	DB          int
	Pattern     string
	ChannelSize int
	DialTimeout time.Duration
}

// PermissionConfig selects how user and group constraints combine.
type PermissionConfig struct {
	Mode permission.Mode
}

/*
====================================
ADMISSION CONFIG
====================================
*/

// AdmissionConfig controls which handshakes are accepted.
type AdmissionConfig struct {
	// AllowedOrigins is the static allow-list matched against the Origin header.
	AllowedOrigins []string
	RateLimit      RateLimitConfig
}

// RateLimitConfig throttles handshakes per remote IP through Redis.
type RateLimitConfig struct {
	Enabled       bool
	MaxHandshakes int
	Window        time.Duration
	KeyPrefix     string
}

// EventsConfig controls the asynchronous lifecycle event dispatcher.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
	// ListenAddr, when set, serves /metrics on a separate listener.
	ListenAddr string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a configuration with every optional field set. Secret
// and AllowedOrigins have no usable default and must be provided.
func DefaultConfig() Config {
	return Config{
		Listener: ListenerConfig{
			Addr:              ":8080",
			Path:              "/",
			ReadHeaderTimeout: 10 * time.Second,
			MaxMessageSize:    64 * 1024,
			ReadBufferSize:    4096,
			WriteBufferSize:   4096,
		},
		Token: TokenConfig{
			Algorithms:     []string{"HS256"},
			ClockTolerance: 0,
		},
		Session: SessionConfig{
			KeepaliveInterval: 30 * time.Second,
			SendQueueSize:     256,
			WriteTimeout:      10 * time.Second,
		},
		Bus: BusConfig{
			Addr:        "127.0.0.1:6379",
			Pattern:     "*",
			ChannelSize: 1024,
			DialTimeout: 5 * time.Second,
		},
		Permission: PermissionConfig{
			Mode: permission.ModeAll,
		},
		Admission: AdmissionConfig{
			RateLimit: RateLimitConfig{
				Enabled:       false,
				MaxHandshakes: 30,
				Window:        time.Minute,
				KeyPrefix:     "gorelay:",
			},
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Verbosity: 1,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	out.Token.Algorithms = append([]string(nil), cfg.Token.Algorithms...)
	out.Admission.AllowedOrigins = append([]string(nil), cfg.Admission.AllowedOrigins...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the whole configuration surface once. Any error is fatal at
// startup.
func (c *Config) Validate() error {
	// Listener
	if _, _, err := net.SplitHostPort(c.Listener.Addr); err != nil {
		return fmt.Errorf("Listener Addr is invalid: %w", err)
	}
	if !strings.HasPrefix(c.Listener.Path, "/") {
		return errors.New("Listener Path must start with '/'")
	}
	if c.Listener.MaxMessageSize <= 0 {
		return errors.New("Listener MaxMessageSize must be > 0")
	}
	if c.Listener.ReadHeaderTimeout < 0 {
		return errors.New("Listener ReadHeaderTimeout must be >= 0")
	}
	if c.Listener.ReadBufferSize < 0 || c.Listener.WriteBufferSize < 0 {
		return errors.New("Listener buffer sizes must be >= 0")
	}

	// Token
	if len(c.Token.Secret) == 0 {
		return errors.New("Token Secret is required")
	}
	if len(c.Token.Algorithms) == 0 {
		return errors.New("Token Algorithms must not be empty")
	}
	if c.Token.MaxAge < 0 {
		return errors.New("Token MaxAge must be >= 0")
	}
	if c.Token.ClockTolerance < 0 || c.Token.ClockTolerance > jwt.MaxClockTolerance {
		return fmt.Errorf("Token ClockTolerance must be between 0 and %s", jwt.MaxClockTolerance)
	}

	// Session
	if c.Session.SendQueueSize <= 0 {
		return errors.New("Session SendQueueSize must be > 0")
	}
	if c.Session.WriteTimeout < 0 {
		return errors.New("Session WriteTimeout must be >= 0")
	}

	// Bus
	if _, _, err := net.SplitHostPort(c.Bus.Addr); err != nil {
		return fmt.Errorf("Bus Addr is invalid: %w", err)
	}
	if c.Bus.DB < 0 {
		return errors.New("Bus DB must be >= 0")
	}
	if c.Bus.Pattern == "" {
		return errors.New("Bus Pattern must not be empty")
	}
	if c.Bus.ChannelSize <= 0 {
		return errors.New("Bus ChannelSize must be > 0")
	}

	// Permission
	if c.Permission.Mode != permission.ModeAll && c.Permission.Mode != permission.ModeAny {
		return errors.New("Permission Mode is invalid")
	}

	// Admission
	if len(c.Admission.AllowedOrigins) == 0 {
		return errors.New("Admission AllowedOrigins must not be empty")
	}
	for _, origin := range c.Admission.AllowedOrigins {
		if err := validateOrigin(origin); err != nil {
			return err
		}
	}
	if c.Admission.RateLimit.Enabled {
		if c.Admission.RateLimit.MaxHandshakes <= 0 {
			return errors.New("Admission RateLimit MaxHandshakes must be > 0")
		}
		if c.Admission.RateLimit.Window <= 0 {
			return errors.New("Admission RateLimit Window must be > 0")
		}
	}

	// Events
	if c.Events.Enabled && c.Events.BufferSize <= 0 {
		return errors.New("Events BufferSize must be > 0 when enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}
	if c.Metrics.ListenAddr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.ListenAddr); err != nil {
			return fmt.Errorf("Metrics ListenAddr is invalid: %w", err)
		}
	}

	if c.Verbosity < 0 || c.Verbosity > 4 {
		return errors.New("Verbosity must be between 0 and 4")
	}

	return nil
}

func validateOrigin(origin string) error {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" || u.Path != "" || u.RawQuery != "" {
		return fmt.Errorf("Admission AllowedOrigins entry %q must be scheme://host[:port]", origin)
	}
	return nil
}
