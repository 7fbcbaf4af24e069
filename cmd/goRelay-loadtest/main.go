// Command goRelay-loadtest measures fan-out latency: it starts a bridge,
// connects many WebSocket clients, publishes timestamped envelopes on the bus
// and reports how long each delivery took.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goRelay"
	"github.com/MrEthical07/goRelay/bus"
	"github.com/MrEthical07/goRelay/jwt"
	"github.com/MrEthical07/goRelay/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	flags "github.com/jessevdk/go-flags"
	"github.com/redis/go-redis/v9"
)

type options struct {
	Clients     int           `long:"clients" default:"500" description:"number of WebSocket clients"`
	Messages    int           `long:"messages" default:"200" description:"messages to publish"`
	Interval    time.Duration `long:"interval" default:"5ms" description:"delay between publishes"`
	Groups      int           `long:"groups" default:"4" description:"clients are spread over this many groups; every other message targets group 0"`
	Concurrency int           `long:"concurrency" default:"64" description:"parallel dials"`
	RedisAddr   string        `long:"redis-addr" env:"REDIS_ADDR" description:"redis address; miniredis is used when empty"`
	Channel     string        `long:"channel" default:"load" description:"bus channel"`
}

type sample struct {
	Seq  int   `json:"seq"`
	Sent int64 `json:"sent"`
}

const loadSecret = "goRelay-loadtest-secret-0123456789"

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if opts.Clients <= 0 || opts.Messages <= 0 || opts.Concurrency <= 0 || opts.Groups <= 0 {
		fmt.Fprintln(os.Stderr, "clients, messages, concurrency and groups must be > 0")
		os.Exit(2)
	}

	if err := runLoad(context.Background(), opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runLoad(ctx context.Context, opts options, out io.Writer) error {
	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if opts.RedisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("failed to start miniredis: %w", err)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{opts.RedisAddr}})
		cleanup = func() { _ = client.Close() }
		fmt.Fprintf(out, "using redis at %s\n", opts.RedisAddr)
	}
	defer cleanup()

	cfg := goRelay.DefaultConfig()
	cfg.Listener.Addr = "127.0.0.1:0"
	cfg.Token.Secret = []byte(loadSecret)
	cfg.Admission.AllowedOrigins = []string{"http://loadtest.local"}
	cfg.Session.KeepaliveInterval = 0
	cfg.Bus.Pattern = opts.Channel
	cfg.Events.Enabled = false
	cfg.Verbosity = 0

	bridge, err := goRelay.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		return err
	}
	if err := bridge.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = bridge.Shutdown(shutdownCtx)
	}()

	issuer, err := jwt.NewIssuer(jwt.IssuerConfig{Secret: []byte(loadSecret), TTL: time.Hour})
	if err != nil {
		return err
	}

	url := "ws://" + bridge.Addr().String() + "/"
	fmt.Fprintf(out, "connecting %d clients...\n", opts.Clients)
	startDial := time.Now()
	conns, err := dialClients(url, issuer, opts)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}()
	fmt.Fprintf(out, "connected in %s\n", time.Since(startDial).Round(time.Millisecond))

	// Subscriptions are applied asynchronously by each session's read loop.
	deadline := time.Now().Add(10 * time.Second)
	for bridge.ActiveSessions() < opts.Clients && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	stats := runFanout(ctx, client, conns, opts)

	snap := bridge.MetricsSnapshot()
	fmt.Fprintln(out, "---- results ----")
	printStats(out, "delivery", stats)
	fmt.Fprintf(out, "bridge: delivered=%d send_failed=%d bus_received=%d\n",
		snap.Counters[goRelay.MetricBroadcastDelivered],
		snap.Counters[goRelay.MetricSendFailed],
		snap.Counters[goRelay.MetricBusReceived],
	)
	return nil
}

func dialClients(url string, issuer *jwt.Issuer, opts options) ([]*websocket.Conn, error) {
	conns := make([]*websocket.Conn, opts.Clients)
	var (
		wg      sync.WaitGroup
		cursor  int64
		failErr atomic.Value
	)
	subscribe, _ := json.Marshal(map[string]any{
		"action": "add-channels",
		"data":   map[string]any{"channels": []string{opts.Channel}},
	})

	for w := 0; w < opts.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= opts.Clients {
					return
				}
				cred, err := issuer.Issue(int64(i+1), []int64{int64(i % opts.Groups)})
				if err != nil {
					failErr.Store(err)
					return
				}
				dialer := websocket.Dialer{Subprotocols: []string{cred}, HandshakeTimeout: 10 * time.Second}
				conn, _, err := dialer.Dial(url, map[string][]string{"Origin": {"http://loadtest.local"}})
				if err != nil {
					failErr.Store(fmt.Errorf("dial client %d: %w", i, err))
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, subscribe); err != nil {
					_ = conn.Close()
					failErr.Store(fmt.Errorf("subscribe client %d: %w", i, err))
					return
				}
				conns[i] = conn
			}
		}()
	}
	wg.Wait()

	if v := failErr.Load(); v != nil {
		for _, c := range conns {
			if c != nil {
				_ = c.Close()
			}
		}
		return nil, v.(error)
	}
	return conns, nil
}

// runFanout publishes opts.Messages samples. Even samples target everyone, odd
// samples only group 0, so the matcher is exercised on both paths.
func runFanout(ctx context.Context, client redis.UniversalClient, conns []*websocket.Conn, opts options) phaseStats {
	expected := 0
	for i := 0; i < opts.Messages; i++ {
		if i%2 == 0 {
			expected += len(conns)
		} else {
			expected += (len(conns) + opts.Groups - 1) / opts.Groups
		}
	}

	var (
		wg        sync.WaitGroup
		received  int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, expected)
	)
	for _, conn := range conns {
		wg.Add(1)
		go func(conn *websocket.Conn) {
			defer wg.Done()
			for {
				_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
				_, raw, err := conn.ReadMessage()
				if err != nil {
					return
				}
				var frame struct {
					Data sample `json:"data"`
				}
				if json.Unmarshal(raw, &frame) != nil || frame.Data.Sent == 0 {
					continue
				}
				d := time.Since(time.Unix(0, frame.Data.Sent))
				atomic.AddInt64(&received, 1)
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(conn)
	}

	pub := bus.NewPublisher(client)
	everyone := permission.Set{}
	groupZero := permission.Set{GroupClauses: permission.Clauses{{0}}}
	var failures int64

	start := time.Now()
	for i := 0; i < opts.Messages; i++ {
		set := everyone
		if i%2 == 1 {
			set = groupZero
		}
		if _, err := pub.Publish(ctx, opts.Channel, set, sample{Seq: i, Sent: time.Now().UnixNano()}); err != nil {
			failures++
		}
		if opts.Interval > 0 {
			time.Sleep(opts.Interval)
		}
	}
	wg.Wait()
	total := time.Since(start)

	missing := int64(expected) - atomic.LoadInt64(&received)
	if missing < 0 {
		missing = 0
	}
	return computeStats(total, latencies, failures+missing)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: frames=%d missing=%d total=%s frames/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
