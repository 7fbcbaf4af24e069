package otel

import (
	"context"
	"sync"
	"testing"

	goRelay "github.com/MrEthical07/goRelay"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goRelay.MetricsSnapshot
	dropped  uint64
	active   int
}

func (f *fakeSource) MetricsSnapshot() goRelay.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goRelay.MetricsSnapshot{
		Counters:   make(map[goRelay.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goRelay.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) EventsDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func (f *fakeSource) ActiveSessions() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.active
}

func findInt64(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				return data.DataPoints[0].Value
			case metricdata.Gauge[int64]:
				return data.DataPoints[0].Value
			}
		}
	}
	t.Fatalf("metric %s not collected", name)
	return 0
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("gorelay-test")

	src := &fakeSource{
		snapshot: goRelay.MetricsSnapshot{
			Counters: map[goRelay.MetricID]uint64{
				goRelay.MetricSessionOpened: 3,
			},
			Histograms: map[goRelay.MetricID][]uint64{
				goRelay.MetricBroadcastLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
		active:  2,
	}

	exp, err := NewOTelExporter(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporter failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if got := findInt64(t, rm, "gorelay_session_opened_total"); got != 3 {
		t.Fatalf("session opened = %d, want 3", got)
	}
	if got := findInt64(t, rm, "gorelay_active_sessions"); got != 2 {
		t.Fatalf("active sessions = %d, want 2", got)
	}
	if got := findInt64(t, rm, "gorelay_broadcast_latency_seconds_count"); got != 8 {
		t.Fatalf("histogram count = %d, want 8", got)
	}
	if got := findInt64(t, rm, "gorelay_events_dropped_total"); got != 1 {
		t.Fatalf("events dropped = %d, want 1", got)
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("gorelay-test")

	if _, err := NewOTelExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporter(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("gorelay-test")

	src := &fakeSource{
		snapshot: goRelay.MetricsSnapshot{
			Counters: map[goRelay.MetricID]uint64{
				goRelay.MetricBroadcastDelivered: 1,
			},
			Histograms: map[goRelay.MetricID][]uint64{
				goRelay.MetricBroadcastLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporter(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporter failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goRelay.MetricBroadcastDelivered] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
