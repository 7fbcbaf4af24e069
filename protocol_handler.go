package goRelay

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goRelay/protocol"
	"github.com/MrEthical07/goRelay/session"
)

// HandleMessage applies one inbound control frame from session id.
//
// Malformed frames and unknown actions are dropped and the session stays open.
// A refresh with a credential that does not verify leaves the current token in
// place. The returned error describes what was dropped; the read loop ignores it.
func (b *Bridge) HandleMessage(id string, raw []byte) error {
	sess, ok := b.registry.Lookup(id)
	if !ok {
		return session.ErrSessionNotFound
	}

	ctrl, err := protocol.ParseControl(raw)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownAction) {
			b.logger.Debug("ignoring control message", "session_id", id, "error", err)
			return err
		}
		b.metrics.Inc(MetricControlMalformed)
		err = fmt.Errorf("%w: %w", ErrProtocolMalformed, err)
		b.logger.Debug("dropping control message", "session_id", id, "bytes", len(raw), "error", err)
		return err
	}

	switch c := ctrl.(type) {
	case protocol.RefreshToken:
		return b.refreshToken(sess, c.Token)
	case protocol.AddChannels:
		if err := b.registry.AddChannels(id, c.Channels); err != nil {
			return err
		}
		b.metrics.Add(MetricChannelsAdded, uint64(len(c.Channels)))
		b.logger.Debug("channels added", "session_id", id, "channels", c.Channels, "skipped", c.Skipped)
	case protocol.RemoveChannels:
		if err := b.registry.RemoveChannels(id, c.Channels); err != nil {
			return err
		}
		b.metrics.Add(MetricChannelsRemoved, uint64(len(c.Channels)))
		b.logger.Debug("channels removed", "session_id", id, "channels", c.Channels, "skipped", c.Skipped)
	}
	return nil
}

func (b *Bridge) refreshToken(sess *session.Session, raw string) error {
	tok, err := b.verifier.Verify(raw)
	if err == nil && !b.verifier.IsFresh(tok, b.now()) {
		err = ErrStaleSession
	}
	if err != nil {
		b.metrics.Inc(MetricTokenRefreshRejected)
		ev := sessionEvent(EventTokenRefreshRejected, sess)
		ev.Success = false
		ev.Error = err.Error()
		b.emit(context.Background(), ev)
		b.logger.Info("token refresh rejected", "session_id", sess.ID(), "error", err)
		return fmt.Errorf("%w: %w", ErrCredentialRejected, err)
	}

	if err := b.registry.UpdateToken(sess.ID(), tok); err != nil {
		return err
	}
	b.metrics.Inc(MetricTokenRefreshed)
	b.emit(context.Background(), sessionEvent(EventTokenRefreshed, sess))
	b.logger.Info("token refreshed", "session_id", sess.ID(), "user_id", tok.UserID, "expires_at", tok.ExpiresAt)
	return nil
}

// handleClose runs once per session when its read loop ends, whichever side
// closed the transport.
func (b *Bridge) handleClose(sess *session.Session) {
	b.registry.Remove(sess.ID())

	initiator := "client"
	id := MetricSessionClosedClient
	if sess.ClosingByServer() {
		initiator = "server"
		id = MetricSessionClosedServer
	}
	b.metrics.Inc(id)

	ev := sessionEvent(EventSessionClosed, sess)
	ev.Metadata = map[string]string{"initiator": initiator}
	b.emit(context.Background(), ev)
	b.logger.Info("session closed",
		"session_id", sess.ID(),
		"initiator", initiator,
		"sessions", b.registry.Len(),
	)
}
