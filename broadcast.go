package goRelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrEthical07/goRelay/bus"
	"github.com/MrEthical07/goRelay/permission"
	"github.com/MrEthical07/goRelay/protocol"
	"github.com/MrEthical07/goRelay/session"
)

// Broadcast delivers payload on channel to every open, fresh, subscribed
// session whose credential satisfies permissions, and returns how many
// sessions it was queued to.
//
// Sessions found closed or holding an expired credential are evicted on the
// way. A failed send to one session is counted and logged and never stops the
// loop.
func (b *Bridge) Broadcast(channel string, permissions permission.Set, payload json.RawMessage) int {
	start := b.now()

	frame, err := protocol.EncodeBroadcast(channel, payload)
	if err != nil {
		b.logger.Warn("cannot encode broadcast", "channel", channel, "error", err)
		return 0
	}

	sent := 0
	for _, sess := range b.registry.Snapshot() {
		if !sess.Open() {
			b.evict(sess, MetricSessionEvictedClosed, "closed")
			continue
		}

		tok, subscribed := sess.View(channel)
		if !b.verifier.IsFresh(tok, start) {
			b.evict(sess, MetricSessionEvictedStale, "stale")
			continue
		}
		if !subscribed || !b.matcher.Matches(permissions, tok.UserID, tok.GroupIDs) {
			continue
		}

		if err := sess.Send(frame); err != nil {
			b.metrics.Inc(MetricSendFailed)
			b.logger.Debug("broadcast send failed",
				"session_id", sess.ID(),
				"channel", channel,
				"error", fmt.Errorf("%w: %w", ErrTransport, err),
			)
			continue
		}
		sent++
	}

	b.metrics.Add(MetricBroadcastDelivered, uint64(sent))
	b.metrics.Observe(MetricBroadcastLatency, b.now().Sub(start))
	b.logger.Log(context.Background(), LevelTrace, "broadcast", "channel", channel, "sent", sent)
	return sent
}

func (b *Bridge) evict(sess *session.Session, id MetricID, reason string) {
	if !b.registry.Evict(sess.ID()) {
		return
	}
	b.metrics.Inc(id)

	ev := sessionEvent(EventSessionEvicted, sess)
	ev.Metadata = map[string]string{"reason": reason}
	if reason == "stale" {
		ev.Error = ErrStaleSession.Error()
	}
	b.emit(context.Background(), ev)
	b.logger.Info("session evicted", "session_id", sess.ID(), "reason", reason)
}

func (b *Bridge) handleBusMessage(_ context.Context, msg bus.Message) {
	b.metrics.Inc(MetricBusReceived)
	b.Broadcast(msg.Channel, msg.Permissions, msg.Data)
}

func (b *Bridge) handleBusDrop(channel string, err error) {
	switch {
	case errors.Is(err, bus.ErrMalformed):
		b.metrics.Inc(MetricBusMalformed)
	case errors.Is(err, bus.ErrInvalidShape):
		b.metrics.Inc(MetricBusInvalidShape)
	case errors.Is(err, bus.ErrHandlerPanic):
		b.metrics.Inc(MetricBusHandlerPanic)
	}
}
