package goRelay

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goRelay/permission"
)

// LintSeverity grades a configuration warning.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "info"
	case LintWarn:
		return "warn"
	case LintHigh:
		return "high"
	default:
		return "unknown"
	}
}

// LintWarning is a configuration that validates but is probably not what an
// operator wants in production.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintWarnings is the ordered result of [Config.Lint].
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns the warnings at or above min.
func (ws LintWarnings) BySeverity(min LintSeverity) LintWarnings {
	var out LintWarnings
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError joins the warnings at or above min into a single error, or returns
// nil when there are none.
func (ws LintWarnings) AsError(min LintSeverity) error {
	var errs []error
	for _, w := range ws.BySeverity(min) {
		errs = append(errs, fmt.Errorf("%s [%s]: %s", w.Code, w.Severity, w.Message))
	}
	return errors.Join(errs...)
}

const (
	lintToleranceLimit = 30 * time.Second
	lintMinHMACSecret  = 32
	lintMinSendQueue   = 8
)

// Lint reports questionable settings. It never fails; call [Config.Validate]
// for hard errors.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code string, sev LintSeverity, format string, args ...any) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	for _, alg := range c.Token.Algorithms {
		if strings.HasPrefix(strings.ToUpper(alg), "HS") && len(c.Token.Secret) < lintMinHMACSecret {
			add("hmac_secret_short", LintHigh, "%s secret is %d bytes; use at least %d", alg, len(c.Token.Secret), lintMinHMACSecret)
			break
		}
	}
	if c.Token.ClockTolerance > lintToleranceLimit {
		add("tolerance_large", LintWarn, "clock tolerance %s keeps expired credentials alive", c.Token.ClockTolerance)
	}
	if c.Token.MaxAge == 0 {
		add("max_age_unset", LintInfo, "credentials are accepted regardless of issue time")
	}

	if !c.Admission.RateLimit.Enabled {
		add("rate_limit_disabled", LintWarn, "handshakes are not rate limited")
	}
	for _, origin := range c.Admission.AllowedOrigins {
		if u, err := url.Parse(origin); err == nil && u.Scheme == "http" && !isLoopbackHost(u.Hostname()) {
			add("origin_insecure", LintWarn, "origin %s is not served over TLS", origin)
		}
	}

	if c.Permission.Mode == permission.ModeAny {
		add("permission_mode_any", LintWarn, "messages reach users matching either the user list or the group clauses")
	}

	if c.Session.KeepaliveInterval <= 0 {
		add("keepalive_disabled", LintWarn, "idle sessions receive no keepalive frames")
	}
	if c.Session.SendQueueSize < lintMinSendQueue {
		add("send_queue_small", LintInfo, "send queue of %d drops frames under bursts", c.Session.SendQueueSize)
	}

	if !c.Events.Enabled {
		add("events_disabled", LintInfo, "lifecycle events are not recorded")
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		add("metrics_shared_listener", LintInfo, "/metrics is served on the public listener")
	}

	return ws
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
