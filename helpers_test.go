package goRelay

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goRelay/jwt"
	"github.com/MrEthical07/goRelay/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

const testOrigin = "https://forum.example"

type testClock struct {
	now atomic.Int64
}

func newTestClock() *testClock {
	c := &testClock{}
	c.now.Store(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC).UnixNano())
	return c
}

func (c *testClock) Now() time.Time { return time.Unix(0, c.now.Load()).UTC() }

func (c *testClock) Advance(d time.Duration) { c.now.Add(int64(d)) }

type testBridge struct {
	*Bridge
	clock  *testClock
	issuer *jwt.Issuer
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	events *ChannelSink
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Listener.Addr = "127.0.0.1:0"
	cfg.Token.Secret = testSecret
	cfg.Token.ClockTolerance = 5 * time.Second
	cfg.Admission.AllowedOrigins = []string{testOrigin}
	cfg.Session.KeepaliveInterval = 0
	cfg.Events.BufferSize = 256
	return cfg
}

func newTestBridge(t testing.TB, mutate func(*Config)) *testBridge {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	clock := newTestClock()
	events := NewChannelSink(256)
	b, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithEventSink(events).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = b.registry.EvictAll() })

	issuer, err := jwt.NewIssuer(jwt.IssuerConfig{Secret: testSecret, TTL: time.Hour, Now: clock.Now})
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	return &testBridge{Bridge: b, clock: clock, issuer: issuer, mr: mr, rdb: rdb, events: events}
}

func (tb *testBridge) credential(t testing.TB, userID int64, groups ...int64) string {
	t.Helper()
	raw, err := tb.issuer.Issue(userID, groups)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return raw
}

func (tb *testBridge) token(t testing.TB, userID int64, groups ...int64) *jwt.Token {
	t.Helper()
	tok, err := tb.verifier.Verify(tb.credential(t, userID, groups...))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	return tok
}

// connect registers a session over a fake transport, bypassing the handshake.
func (tb *testBridge) connect(t testing.TB, userID int64, groups []int64, channels ...string) (*session.Session, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	sess, err := tb.registry.Register(conn, sessionHandshake(), tb.token(t, userID, groups...))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if len(channels) > 0 {
		if err := tb.registry.AddChannels(sess.ID(), channels); err != nil {
			t.Fatalf("AddChannels: %v", err)
		}
	}
	return sess, conn
}

func sessionHandshake() session.Handshake {
	return session.Handshake{RemoteAddr: "10.0.0.1", Origin: testOrigin}
}

type fakeConn struct {
	mu      sync.Mutex
	frames  []string
	closed  bool
	fail    bool
	written chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{written: make(chan struct{}, 256)}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	if c.fail || c.closed {
		c.mu.Unlock()
		return errors.New("write on dead connection")
	}
	c.frames = append(c.frames, string(data))
	c.mu.Unlock()
	select {
	case c.written <- struct{}{}:
	default:
	}
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Frames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.frames...)
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) waitFrames(t testing.TB, n int) []string {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if got := c.Frames(); len(got) >= n {
			return got
		}
		select {
		case <-c.written:
		case <-deadline:
			t.Fatalf("timed out waiting for %d frames, got %v", n, c.Frames())
		}
	}
}

// settle waits until every queued frame has been written by session writers.
func settle() {
	time.Sleep(20 * time.Millisecond)
}

func waitFor(t testing.TB, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
