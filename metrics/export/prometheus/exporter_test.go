package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goRelay "github.com/MrEthical07/goRelay"
	"github.com/prometheus/client_golang/prometheus"
)

type fakeSource struct {
	snapshot goRelay.MetricsSnapshot
	dropped  uint64
	active   int
}

func (f fakeSource) MetricsSnapshot() goRelay.MetricsSnapshot { return f.snapshot }
func (f fakeSource) EventsDropped() uint64                    { return f.dropped }
func (f fakeSource) ActiveSessions() int                      { return f.active }

func scrape(t *testing.T, src MetricsSource) string {
	t.Helper()
	h, err := Handler(src)
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, body)
	}
	return string(body)
}

func TestHandlerExposesCountersGaugeAndHistogram(t *testing.T) {
	out := scrape(t, fakeSource{
		snapshot: goRelay.MetricsSnapshot{
			Counters: map[goRelay.MetricID]uint64{
				goRelay.MetricSessionOpened:      7,
				goRelay.MetricBroadcastDelivered: 42,
			},
			Histograms: map[goRelay.MetricID][]uint64{
				goRelay.MetricBroadcastLatency: {1, 1, 0, 0, 0, 0, 0, 1},
			},
			HistogramSums: map[goRelay.MetricID]time.Duration{
				goRelay.MetricBroadcastLatency: 2 * time.Second,
			},
		},
		dropped: 3,
		active:  5,
	})

	for _, want := range []string{
		"gorelay_session_opened_total 7",
		"gorelay_broadcast_delivered_total 42",
		"gorelay_active_sessions 5",
		"gorelay_events_dropped_total 3",
		`gorelay_broadcast_latency_seconds_bucket{le="0.005"} 2`,
		`gorelay_broadcast_latency_seconds_bucket{le="+Inf"} 3`,
		"gorelay_broadcast_latency_seconds_sum 2",
		"gorelay_broadcast_latency_seconds_count 3",
		"go_goroutines",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("scrape output missing %q:\n%s", want, out)
		}
	}
}

func TestHistogramOmittedWhenLatencyDisabled(t *testing.T) {
	out := scrape(t, fakeSource{
		snapshot: goRelay.MetricsSnapshot{
			Counters:   map[goRelay.MetricID]uint64{},
			Histograms: map[goRelay.MetricID][]uint64{},
		},
	})
	if strings.Contains(out, "gorelay_broadcast_latency_seconds_bucket") {
		t.Fatalf("histogram should be absent:\n%s", out)
	}
	if !strings.Contains(out, "gorelay_session_opened_total 0") {
		t.Fatalf("counters should be exported as zero:\n%s", out)
	}
}

func TestCollectorDescribesEveryMetric(t *testing.T) {
	c := NewCollector(fakeSource{})
	ch := make(chan *prometheus.Desc, 64)
	c.Describe(ch)
	close(ch)

	n := 0
	for range ch {
		n++
	}
	if n < 4 {
		t.Fatalf("expected descriptors for counters, histogram and gauges, got %d", n)
	}
	if err := prometheus.NewPedanticRegistry().Register(c); err != nil {
		t.Fatalf("pedantic register: %v", err)
	}
}
