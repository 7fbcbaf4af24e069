package internaldefs

import (
	goRelay "github.com/MrEthical07/goRelay"
)

// CounterDef names one goRelay counter for exporters.
type CounterDef struct {
	ID   goRelay.MetricID
	Name string
	Help string
}

// HistogramDef names one goRelay latency histogram for exporters.
type HistogramDef struct {
	ID   goRelay.MetricID
	Name string
	Help string
}

// Names of the gauges and counters that do not come from the Metrics snapshot.
const (
	ActiveSessionsName = "gorelay_active_sessions"
	ActiveSessionsHelp = "Sessions currently registered."
	EventsDroppedName  = "gorelay_events_dropped_total"
	EventsDroppedHelp  = "Dropped lifecycle events due to dispatcher backpressure."
)

// CounterDefs lists every exported counter.
var CounterDefs = []CounterDef{
	{ID: goRelay.MetricSessionOpened, Name: "gorelay_session_opened_total", Help: "Admitted and registered sessions."},
	{ID: goRelay.MetricSessionClosedClient, Name: "gorelay_session_closed_client_total", Help: "Sessions closed by the peer."},
	{ID: goRelay.MetricSessionClosedServer, Name: "gorelay_session_closed_server_total", Help: "Sessions closed by the bridge."},
	{ID: goRelay.MetricSessionEvictedStale, Name: "gorelay_session_evicted_stale_total", Help: "Sessions evicted for an expired credential."},
	{ID: goRelay.MetricSessionEvictedClosed, Name: "gorelay_session_evicted_closed_total", Help: "Sessions evicted for a dead transport."},
	{ID: goRelay.MetricHandshakeRejectedOrigin, Name: "gorelay_handshake_rejected_origin_total", Help: "Handshakes refused for a disallowed origin."},
	{ID: goRelay.MetricHandshakeRejectedToken, Name: "gorelay_handshake_rejected_token_total", Help: "Handshakes refused for a missing or invalid credential."},
	{ID: goRelay.MetricHandshakeRateLimited, Name: "gorelay_handshake_rate_limited_total", Help: "Handshakes refused by the rate limiter."},
	{ID: goRelay.MetricHandshakeFailed, Name: "gorelay_handshake_failed_total", Help: "WebSocket upgrades that failed after admission."},
	{ID: goRelay.MetricTokenRefreshed, Name: "gorelay_token_refreshed_total", Help: "Accepted refresh-token requests."},
	{ID: goRelay.MetricTokenRefreshRejected, Name: "gorelay_token_refresh_rejected_total", Help: "Rejected refresh-token requests."},
	{ID: goRelay.MetricChannelsAdded, Name: "gorelay_channels_added_total", Help: "Channel names applied by add-channels."},
	{ID: goRelay.MetricChannelsRemoved, Name: "gorelay_channels_removed_total", Help: "Channel names applied by remove-channels."},
	{ID: goRelay.MetricControlMalformed, Name: "gorelay_control_malformed_total", Help: "Dropped inbound control frames."},
	{ID: goRelay.MetricBusReceived, Name: "gorelay_bus_received_total", Help: "Valid envelopes consumed from the bus."},
	{ID: goRelay.MetricBusMalformed, Name: "gorelay_bus_malformed_total", Help: "Bus payloads that were not valid JSON."},
	{ID: goRelay.MetricBusInvalidShape, Name: "gorelay_bus_invalid_shape_total", Help: "Bus payloads that were not envelopes."},
	{ID: goRelay.MetricBusHandlerPanic, Name: "gorelay_bus_handler_panic_total", Help: "Recovered panics while broadcasting."},
	{ID: goRelay.MetricBroadcastDelivered, Name: "gorelay_broadcast_delivered_total", Help: "Frames queued to sessions."},
	{ID: goRelay.MetricSendFailed, Name: "gorelay_send_failed_total", Help: "Frames that could not be queued to a session."},
	{ID: goRelay.MetricKeepaliveSent, Name: "gorelay_keepalive_sent_total", Help: "Keepalive frames written."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goRelay.MetricBroadcastLatency, Name: "gorelay_broadcast_latency_seconds", Help: "Broadcast fan-out latency."},
}

// HistogramBounds returns the finite bucket upper bounds in seconds.
func HistogramBounds() []float64 {
	out := make([]float64, len(goRelay.HistogramBucketBounds))
	for i, d := range goRelay.HistogramBucketBounds {
		out[i] = d.Seconds()
	}
	return out
}

// HistogramBoundSuffix names each bucket, including the unbounded one, for
// exporters that flatten a histogram into gauges.
var HistogramBoundSuffix = []string{
	"0_001",
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
