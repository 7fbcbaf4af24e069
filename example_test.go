package goRelay_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/MrEthical07/goRelay"
	"github.com/MrEthical07/goRelay/metrics/export/prometheus"
	"github.com/MrEthical07/goRelay/middleware"
	"github.com/MrEthical07/goRelay/permission"
	"github.com/redis/go-redis/v9"
)

// ExampleNew demonstrates bridge construction with production-style dependencies.
func ExampleNew() {
	cfg := goRelay.DefaultConfig()
	cfg.Token.Secret = []byte(os.Getenv("GORELAY_SECRET"))
	cfg.Admission.AllowedOrigins = []string{"https://forum.example"}
	cfg.Admission.RateLimit.Enabled = true

	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	bridge, err := goRelay.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(slog.Default()).
		WithEventSink(goRelay.SlogSink{Level: slog.LevelDebug}).
		WithMetricsHandler(func(b *goRelay.Bridge) (http.Handler, error) {
			return prometheus.Handler(b)
		}).
		Build()
	if err != nil {
		return
	}
	_ = bridge
}

// ExampleBridge_Run shows the process entrypoint: Run blocks until ctx is
// canceled, then shuts down within the grace period.
func ExampleBridge_Run() {
	var bridge *goRelay.Bridge
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if bridge != nil {
		_ = bridge.Run(ctx, 10*time.Second)
	}
}

// ExampleBridge_Broadcast delivers a message directly, bypassing the bus.
func ExampleBridge_Broadcast() {
	var bridge *goRelay.Bridge
	moderators := permission.Set{GroupClauses: permission.Clauses{{100}}}
	if bridge != nil {
		_ = bridge.Broadcast("announcements", moderators, json.RawMessage(`{"text":"maintenance"}`))
	}
}

func ExampleConfig_Lint() {
	cfg := goRelay.DefaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Admission.AllowedOrigins = []string{"https://forum.example"}
	cfg.Admission.RateLimit.Enabled = true

	for _, w := range cfg.Lint() {
		fmt.Println(w.Code, w.Severity)
	}
	// Output:
	// max_age_unset info
	// metrics_shared_listener info
}

// This test guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = goRelay.New
	_ = goRelay.DefaultConfig

	var _ *goRelay.Bridge
	var _ goRelay.Config
	var _ goRelay.MetricsSnapshot
	var _ goRelay.Event
	var _ goRelay.EventSink = goRelay.NoOpSink{}
	var _ http.Handler = (*goRelay.Bridge)(nil)

	var _ error = goRelay.ErrAdmissionRejected
	var _ error = goRelay.ErrOriginNotAllowed
	var _ error = goRelay.ErrCredentialRejected
	var _ error = goRelay.ErrProtocolMalformed
	var _ error = goRelay.ErrStaleSession
	var _ error = goRelay.ErrStartup

	var _ func(*goRelay.Bridge, string, permission.Set, json.RawMessage) int = (*goRelay.Bridge).Broadcast
	var _ func(*goRelay.Bridge, string, []byte) error = (*goRelay.Bridge).HandleMessage
	var _ func(*goRelay.Bridge, context.Context) error = (*goRelay.Bridge).Start
	var _ func(*goRelay.Bridge, context.Context) error = (*goRelay.Bridge).Shutdown
	var _ func(*goRelay.Bridge, context.Context, time.Duration) error = (*goRelay.Bridge).Run

	var _ prometheus.MetricsSource = (*goRelay.Bridge)(nil)
	_ = middleware.Guard
}
