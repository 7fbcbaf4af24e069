package goRelay

import (
	"testing"
	"time"

	"github.com/MrEthical07/goRelay/permission"
)

func TestLint_ValidConfigHasNoHighWarnings(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Lint().AsError(LintHigh); err != nil {
		t.Errorf("valid config should not fail AsError(LintHigh): %v", err)
	}
}

func TestLint_ShortSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Token.Secret = []byte("short")
	ws := cfg.Lint()
	if !containsCode(ws.Codes(), "hmac_secret_short") {
		t.Fatal("expected hmac_secret_short warning")
	}
	for _, w := range ws {
		if w.Code == "hmac_secret_short" && w.Severity != LintHigh {
			t.Errorf("hmac_secret_short should be HIGH, got %s", w.Severity)
		}
	}
	if err := ws.AsError(LintHigh); err == nil {
		t.Error("expected AsError(LintHigh) to return error")
	}
}

func TestLint_LargeTolerance(t *testing.T) {
	cfg := validConfig()
	cfg.Token.ClockTolerance = 45 * time.Second
	if !containsCode(cfg.Lint().Codes(), "tolerance_large") {
		t.Error("expected tolerance_large warning")
	}
}

func TestLint_RateLimitDisabled(t *testing.T) {
	cfg := validConfig()
	if !containsCode(cfg.Lint().Codes(), "rate_limit_disabled") {
		t.Error("expected rate_limit_disabled warning by default")
	}
	cfg.Admission.RateLimit.Enabled = true
	if containsCode(cfg.Lint().Codes(), "rate_limit_disabled") {
		t.Error("should not warn when rate limit is enabled")
	}
}

func TestLint_InsecureOrigin(t *testing.T) {
	cfg := validConfig()
	cfg.Admission.AllowedOrigins = []string{"http://localhost:3000", "http://127.0.0.1"}
	if containsCode(cfg.Lint().Codes(), "origin_insecure") {
		t.Error("loopback origins should not warn")
	}
	cfg.Admission.AllowedOrigins = append(cfg.Admission.AllowedOrigins, "http://forum.example")
	if !containsCode(cfg.Lint().Codes(), "origin_insecure") {
		t.Error("expected origin_insecure warning")
	}
}

func TestLint_PermissionModeAny(t *testing.T) {
	cfg := validConfig()
	cfg.Permission.Mode = permission.ModeAny
	if !containsCode(cfg.Lint().Codes(), "permission_mode_any") {
		t.Error("expected permission_mode_any warning")
	}
}

func TestLint_KeepaliveDisabled(t *testing.T) {
	cfg := validConfig()
	cfg.Session.KeepaliveInterval = 0
	if !containsCode(cfg.Lint().Codes(), "keepalive_disabled") {
		t.Error("expected keepalive_disabled warning")
	}
}

func TestLint_BySeverity(t *testing.T) {
	cfg := validConfig()
	cfg.Token.Secret = []byte("short")
	cfg.Events.Enabled = false
	ws := cfg.Lint()

	if !containsCode(ws.Codes(), "events_disabled") {
		t.Fatal("expected events_disabled info warning")
	}
	for _, w := range ws.BySeverity(LintWarn) {
		if w.Severity < LintWarn {
			t.Errorf("BySeverity(LintWarn) returned warning with severity %s", w.Severity)
		}
	}
	if containsCode(ws.BySeverity(LintWarn).Codes(), "events_disabled") {
		t.Error("info warnings should be filtered at LintWarn")
	}
}

// helpers

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
