package goRelay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/goRelay/internal/rate"
	"github.com/MrEthical07/goRelay/jwt"
	"github.com/MrEthical07/goRelay/session"
	"github.com/gorilla/websocket"
)

// ServeHTTP admits a WebSocket handshake and then runs the session read loop
// on the request goroutine until the connection closes.
//
// Admission requires an allow-listed Origin and a credential in the first
// Sec-WebSocket-Protocol value that verifies and has not expired. Rejections
// are plain HTTP errors written before any upgrade.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	hs := session.Handshake{
		Key:        r.Header.Get("Sec-WebSocket-Key"),
		Origin:     r.Header.Get("Origin"),
		RemoteAddr: remoteIP(r),
		UserAgent:  r.UserAgent(),
	}

	tok, credential, err := b.admit(r.Context(), r, hs)
	if err != nil {
		b.rejectHandshake(r.Context(), w, hs, err)
		return
	}

	if !b.trackConn() {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	defer b.conns.Done()

	// Browsers fail the handshake unless the offered protocol is echoed back.
	header := http.Header{"Sec-Websocket-Protocol": []string{credential}}
	conn, err := b.upgrader.Upgrade(w, r, header)
	if err != nil {
		b.metrics.Inc(MetricHandshakeFailed)
		b.logger.Debug("websocket upgrade failed", "remote_addr", hs.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(b.config.Listener.MaxMessageSize)

	sess, ok := b.openSession(r.Context(), conn, hs, tok)
	if !ok {
		return
	}
	b.readLoop(sess, conn)
}

// openSession registers an upgraded connection. A connection that lands after
// shutdown began is evicted at once and never reported as opened.
func (b *Bridge) openSession(ctx context.Context, conn session.Conn, hs session.Handshake, tok *jwt.Token) (*session.Session, bool) {
	sess, err := b.registry.Register(conn, hs, tok)
	if err != nil {
		b.metrics.Inc(MetricHandshakeFailed)
		b.logger.Warn("session registration failed", "remote_addr", hs.RemoteAddr, "error", err)
		_ = conn.Close()
		return nil, false
	}

	if b.isClosing() {
		b.registry.Evict(sess.ID())
		b.logger.Debug("session evicted during shutdown", "session_id", sess.ID(), "remote_addr", hs.RemoteAddr)
		return nil, false
	}

	b.metrics.Inc(MetricSessionOpened)
	b.emit(ctx, sessionEvent(EventSessionOpened, sess))
	b.logger.Info("session opened",
		"session_id", sess.ID(),
		"user_id", tok.UserID,
		"remote_addr", hs.RemoteAddr,
		"sessions", b.registry.Len(),
	)
	return sess, true
}

func (b *Bridge) admit(ctx context.Context, r *http.Request, hs session.Handshake) (*jwt.Token, string, error) {
	if _, ok := b.origins[hs.Origin]; !ok {
		return nil, "", rejectAdmission(ErrOriginNotAllowed, nil)
	}

	if b.limiter != nil {
		if err := b.limiter.CheckHandshake(ctx, hs.RemoteAddr); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				return nil, "", rejectAdmission(ErrHandshakeRateLimited, nil)
			}
			b.logger.Warn("handshake rate limiter unavailable, admitting", "error", err)
		}
	}

	credential := firstSubprotocol(r)
	if credential == "" {
		return nil, "", rejectAdmission(ErrCredentialRejected, errors.New("no credential offered"))
	}
	tok, err := b.verifier.Verify(credential)
	if err != nil {
		return nil, "", rejectAdmission(ErrCredentialRejected, err)
	}
	if !b.verifier.IsFresh(tok, b.now()) {
		return nil, "", rejectAdmission(ErrCredentialRejected, ErrStaleSession)
	}
	return tok, credential, nil
}

func (b *Bridge) rejectHandshake(ctx context.Context, w http.ResponseWriter, hs session.Handshake, err error) {
	status := http.StatusUnauthorized
	switch {
	case errors.Is(err, ErrOriginNotAllowed):
		status = http.StatusForbidden
		b.metrics.Inc(MetricHandshakeRejectedOrigin)
	case errors.Is(err, ErrHandshakeRateLimited):
		status = http.StatusTooManyRequests
		b.metrics.Inc(MetricHandshakeRateLimited)
	default:
		b.metrics.Inc(MetricHandshakeRejectedToken)
	}

	b.emit(ctx, Event{
		EventType:  EventHandshakeRejected,
		RemoteAddr: hs.RemoteAddr,
		Origin:     hs.Origin,
		Success:    false,
		Error:      err.Error(),
	})
	b.logger.Info("handshake rejected", "remote_addr", hs.RemoteAddr, "origin", hs.Origin, "status", status, "error", err)

	http.Error(w, http.StatusText(status), status)
}

func (b *Bridge) readLoop(sess *session.Session, conn *websocket.Conn) {
	defer b.handleClose(sess)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) && !sess.ClosingByServer() {
				b.logger.Debug("session read failed", "session_id", sess.ID(), "error", err)
			}
			return
		}
		_ = b.HandleMessage(sess.ID(), data)
	}
}

func firstSubprotocol(r *http.Request) string {
	for _, p := range websocket.Subprotocols(r) {
		if p = strings.TrimSpace(p); p != "" {
			return p
		}
	}
	return ""
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
