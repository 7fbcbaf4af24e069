package goRelay

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/MrEthical07/goRelay/permission"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = testSecret
	cfg.Admission.AllowedOrigins = []string{testOrigin}
	return cfg
}

func TestDefaultConfigNeedsSecretAndOrigins(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected default config without secret to fail")
	}
	cfg = validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{name: "listener addr missing port", mutate: func(c *Config) { c.Listener.Addr = "localhost" }},
		{name: "listener path relative", mutate: func(c *Config) { c.Listener.Path = "ws" }},
		{name: "listener path nested", mutate: func(c *Config) { c.Listener.Path = "/relay/ws" }, wantValid: true},
		{name: "message size zero", mutate: func(c *Config) { c.Listener.MaxMessageSize = 0 }},
		{name: "algorithms empty", mutate: func(c *Config) { c.Token.Algorithms = nil }},
		{name: "max age negative", mutate: func(c *Config) { c.Token.MaxAge = -time.Second }},
		{name: "tolerance negative", mutate: func(c *Config) { c.Token.ClockTolerance = -time.Second }},
		{name: "tolerance too large", mutate: func(c *Config) { c.Token.ClockTolerance = time.Hour }},
		{name: "tolerance moderate", mutate: func(c *Config) { c.Token.ClockTolerance = 10 * time.Second }, wantValid: true},
		{name: "send queue zero", mutate: func(c *Config) { c.Session.SendQueueSize = 0 }},
		{name: "keepalive disabled", mutate: func(c *Config) { c.Session.KeepaliveInterval = 0 }, wantValid: true},
		{name: "bus addr invalid", mutate: func(c *Config) { c.Bus.Addr = "redis" }},
		{name: "bus db negative", mutate: func(c *Config) { c.Bus.DB = -1 }},
		{name: "bus pattern empty", mutate: func(c *Config) { c.Bus.Pattern = "" }},
		{name: "bus pattern prefix", mutate: func(c *Config) { c.Bus.Pattern = "forum.*" }, wantValid: true},
		{name: "permission mode any", mutate: func(c *Config) { c.Permission.Mode = permission.ModeAny }, wantValid: true},
		{name: "permission mode unknown", mutate: func(c *Config) { c.Permission.Mode = permission.Mode(7) }},
		{name: "origins empty", mutate: func(c *Config) { c.Admission.AllowedOrigins = nil }},
		{name: "origin with path", mutate: func(c *Config) { c.Admission.AllowedOrigins = []string{"https://forum.example/app"} }},
		{name: "origin without scheme", mutate: func(c *Config) { c.Admission.AllowedOrigins = []string{"forum.example"} }},
		{name: "origin with port", mutate: func(c *Config) { c.Admission.AllowedOrigins = []string{"http://localhost:3000"} }, wantValid: true},
		{name: "rate limit zero max", mutate: func(c *Config) {
			c.Admission.RateLimit.Enabled = true
			c.Admission.RateLimit.MaxHandshakes = 0
		}},
		{name: "rate limit zero window ignored when disabled", mutate: func(c *Config) { c.Admission.RateLimit.Window = 0 }, wantValid: true},
		{name: "events buffer zero", mutate: func(c *Config) { c.Events.BufferSize = 0 }},
		{name: "events disabled buffer zero", mutate: func(c *Config) {
			c.Events.Enabled = false
			c.Events.BufferSize = 0
		}, wantValid: true},
		{name: "histograms without metrics", mutate: func(c *Config) { c.Metrics.Enabled = false }},
		{name: "metrics listen addr invalid", mutate: func(c *Config) { c.Metrics.ListenAddr = "9090" }},
		{name: "metrics listen addr", mutate: func(c *Config) { c.Metrics.ListenAddr = ":9090" }, wantValid: true},
		{name: "verbosity too high", mutate: func(c *Config) { c.Verbosity = 5 }},
		{name: "verbosity trace", mutate: func(c *Config) { c.Verbosity = 4 }, wantValid: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestBuildConfigImmutableAgainstCallerMutation(t *testing.T) {
	cfg := testConfig()
	cfg.Token.Secret = append([]byte(nil), testSecret...)
	b, err := New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer b.releaseIdle(context.Background())

	cfg.Token.Secret[0] = 'X'
	cfg.Admission.AllowedOrigins[0] = "https://evil.example"

	got := b.Config()
	if got.Token.Secret[0] == 'X' {
		t.Fatalf("bridge secret aliased caller slice")
	}
	if got.Admission.AllowedOrigins[0] != testOrigin {
		t.Fatalf("bridge origins aliased caller slice")
	}

	got.Admission.AllowedOrigins[0] = "https://other.example"
	if b.Config().Admission.AllowedOrigins[0] != testOrigin {
		t.Fatalf("Config returned shared slice")
	}
}

func TestLevelForVerbosity(t *testing.T) {
	tests := []struct {
		v    int
		want slog.Level
	}{
		{-1, slog.LevelWarn},
		{0, slog.LevelWarn},
		{1, slog.LevelInfo},
		{2, slog.LevelDebug},
		{3, slog.LevelDebug},
		{4, LevelTrace},
		{9, LevelTrace},
	}
	for _, tc := range tests {
		if got := LevelForVerbosity(tc.v); got != tc.want {
			t.Fatalf("LevelForVerbosity(%d) = %v, want %v", tc.v, got, tc.want)
		}
	}
}
