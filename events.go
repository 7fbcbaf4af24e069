package goRelay

import (
	"context"
	"io"

	"github.com/MrEthical07/goRelay/internal/audit"
	"github.com/MrEthical07/goRelay/session"
)

// Event is one session lifecycle record delivered to an [EventSink].
type Event = audit.Event

// EventSink receives lifecycle events from the dispatcher goroutine.
type EventSink = audit.Sink

// Built-in sinks.
type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	SlogSink       = audit.SlogSink
)

// Event types.
const (
	EventSessionOpened        = audit.EventSessionOpened
	EventSessionClosed        = audit.EventSessionClosed
	EventSessionEvicted       = audit.EventSessionEvicted
	EventHandshakeRejected    = audit.EventHandshakeRejected
	EventTokenRefreshed       = audit.EventTokenRefreshed
	EventTokenRefreshRejected = audit.EventTokenRefreshRejected
)

// NewChannelSink returns a sink that buffers events in a channel.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink that writes one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func (b *Bridge) emit(ctx context.Context, event Event) {
	if b.events == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = b.now()
	}
	b.events.Emit(ctx, event)
}

func sessionEvent(eventType string, sess *session.Session) Event {
	ev := Event{
		EventType: eventType,
		Success:   true,
	}
	if sess == nil {
		return ev
	}
	hs := sess.Handshake()
	ev.SessionID = sess.ID()
	ev.RemoteAddr = hs.RemoteAddr
	ev.Origin = hs.Origin
	if tok := sess.Token(); tok != nil {
		ev.UserID = tok.UserID
	}
	return ev
}
