package goRelay

import (
	"sync/atomic"
	"time"
)

// MetricID defines a public type used by goRelay APIs.
//
// MetricID values are stable for the lifetime of a process and index both
// counters and histograms.
type MetricID uint16

const (
	// MetricSessionOpened counts admitted and registered sessions.
	MetricSessionOpened MetricID = iota
	// MetricSessionClosedClient counts sessions closed by the peer.
	MetricSessionClosedClient
	// MetricSessionClosedServer counts sessions closed by the bridge.
	MetricSessionClosedServer
	// MetricSessionEvictedStale counts lazy evictions of expired credentials.
	MetricSessionEvictedStale
	// MetricSessionEvictedClosed counts lazy evictions of dead transports.
	MetricSessionEvictedClosed
	// MetricHandshakeRejectedOrigin counts handshakes refused for their origin.
	MetricHandshakeRejectedOrigin
	// MetricHandshakeRejectedToken counts handshakes refused for their credential.
	MetricHandshakeRejectedToken
	// MetricHandshakeRateLimited counts handshakes refused by the rate limiter.
	MetricHandshakeRateLimited
	// MetricHandshakeFailed counts upgrade failures after admission.
	MetricHandshakeFailed
	// MetricTokenRefreshed counts accepted refresh-token requests.
	MetricTokenRefreshed
	// MetricTokenRefreshRejected counts refused refresh-token requests.
	MetricTokenRefreshRejected
	// MetricChannelsAdded counts channel names applied by add-channels.
	MetricChannelsAdded
	// MetricChannelsRemoved counts channel names applied by remove-channels.
	MetricChannelsRemoved
	// MetricControlMalformed counts dropped inbound control frames.
	MetricControlMalformed
	// MetricBusReceived counts valid envelopes consumed from the bus.
	MetricBusReceived
	// MetricBusMalformed counts bus payloads that were not JSON.
	MetricBusMalformed
	// MetricBusInvalidShape counts bus payloads that were not envelopes.
	MetricBusInvalidShape
	// MetricBusHandlerPanic counts recovered broadcast panics.
	MetricBusHandlerPanic
	// MetricBroadcastDelivered counts frames queued to sessions.
	MetricBroadcastDelivered
	// MetricSendFailed counts frames that could not be queued.
	MetricSendFailed
	// MetricKeepaliveSent counts keepalive frames written.
	MetricKeepaliveSent
	// MetricBroadcastLatency is the histogram of Broadcast durations.
	MetricBroadcastLatency
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricSessionOpened:           "session_opened",
	MetricSessionClosedClient:     "session_closed_client",
	MetricSessionClosedServer:     "session_closed_server",
	MetricSessionEvictedStale:     "session_evicted_stale",
	MetricSessionEvictedClosed:    "session_evicted_closed",
	MetricHandshakeRejectedOrigin: "handshake_rejected_origin",
	MetricHandshakeRejectedToken:  "handshake_rejected_token",
	MetricHandshakeRateLimited:    "handshake_rate_limited",
	MetricHandshakeFailed:         "handshake_failed",
	MetricTokenRefreshed:          "token_refreshed",
	MetricTokenRefreshRejected:    "token_refresh_rejected",
	MetricChannelsAdded:           "channels_added",
	MetricChannelsRemoved:         "channels_removed",
	MetricControlMalformed:        "control_malformed",
	MetricBusReceived:             "bus_received",
	MetricBusMalformed:            "bus_malformed",
	MetricBusInvalidShape:         "bus_invalid_shape",
	MetricBusHandlerPanic:         "bus_handler_panic",
	MetricBroadcastDelivered:      "broadcast_delivered",
	MetricSendFailed:              "send_failed",
	MetricKeepaliveSent:           "keepalive_sent",
	MetricBroadcastLatency:        "broadcast_latency",
}

// String returns the snake_case metric name.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// HistogramBucketBounds are the inclusive upper bounds of the first seven
// latency buckets; the eighth bucket is unbounded.
var HistogramBucketBounds = [histBucketCount - 1]time.Duration{
	time.Millisecond,
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
	sumNS   uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics defines a public type used by goRelay APIs.
//
// Metrics is lock-free: counters are cache-line padded atomics. A nil or
// disabled Metrics accepts every call and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot defines a public type used by goRelay APIs.
//
// Histograms hold per-bucket (non-cumulative) counts in HistogramBucketBounds order.
type MetricsSnapshot struct {
	Counters      map[MetricID]uint64
	Histograms    map[MetricID][]uint64
	HistogramSums map[MetricID]time.Duration
}

// NewMetrics returns a Metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments counter id by one.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add increments counter id by n.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in the histogram of id. Only latency metrics carry histograms.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricBroadcastLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
	if d > 0 {
		atomic.AddUint64(&m.histograms[id].sumNS, uint64(d))
	}
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot reads every counter atomically but not as one transaction; values
// recorded concurrently may or may not be included.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:      map[MetricID]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]time.Duration{},
		}
	}

	s := MetricsSnapshot{
		Counters:      make(map[MetricID]uint64, int(metricIDCount)),
		Histograms:    make(map[MetricID][]uint64, 1),
		HistogramSums: make(map[MetricID]time.Duration, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricBroadcastLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		h := &m.histograms[MetricBroadcastLatency]
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&h.buckets[i])
		}
		s.Histograms[MetricBroadcastLatency] = buckets
		s.HistogramSums[MetricBroadcastLatency] = time.Duration(atomic.LoadUint64(&h.sumNS))
	}

	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range HistogramBucketBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
