package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goRelay/jwt"
)

var (
	// ErrSessionNotFound is returned when an id is not registered.
	ErrSessionNotFound = errors.New("session not found")
	// ErrDuplicateSession is returned when a new connection maps to an id that is
	// already registered. The newer connection is rejected.
	ErrDuplicateSession = errors.New("duplicate session id")
	// ErrSessionClosed is returned by Send after teardown or a write failure.
	ErrSessionClosed = errors.New("session closed")
	// ErrQueueFull is returned by Send when the outbound queue is saturated.
	ErrQueueFull = errors.New("session send queue full")
)

// TextMessage is the WebSocket text frame opcode (RFC 6455 section 11.8).
const TextMessage = 1

// KeepaliveFrame is the application-level liveness envelope.
var KeepaliveFrame = []byte(`{"keepalive":"1"}`)

// Conn is the transport a session writes to. *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Handshake is the admission metadata recorded for a session.
type Handshake struct {
	Key        string
	Origin     string
	RemoteAddr string
	UserAgent  string
}

// Session is one admitted connection and its mutable state.
//
// The token and channel set are guarded by the session lock and read through
// [Session.View] as one consistent snapshot.
type Session struct {
	id        string
	handshake Handshake
	openedAt  time.Time
	conn      Conn
	cfg       Config

	mu       sync.RWMutex
	token    *jwt.Token
	channels map[string]struct{}

	send       chan []byte
	done       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once
	open       atomic.Bool
	byServer   atomic.Bool
}

func newSession(id string, conn Conn, hs Handshake, token *jwt.Token, cfg Config) *Session {
	s := &Session{
		id:         id,
		handshake:  hs,
		openedAt:   cfg.Now(),
		conn:       conn,
		cfg:        cfg,
		token:      token,
		channels:   make(map[string]struct{}),
		send:       make(chan []byte, cfg.SendQueueSize),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
	s.open.Store(true)
	go s.writeLoop()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Handshake returns the admission metadata.
func (s *Session) Handshake() Handshake { return s.handshake }

// OpenedAt returns the registration time.
func (s *Session) OpenedAt() time.Time { return s.openedAt }

// Open reports whether the transport is still usable.
func (s *Session) Open() bool { return s.open.Load() }

// ClosingByServer reports whether teardown was initiated by the bridge.
func (s *Session) ClosingByServer() bool { return s.byServer.Load() }

// Token returns the current credential.
func (s *Session) Token() *jwt.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// View returns the current credential and whether the session is subscribed
// to channel, read under one lock acquisition.
func (s *Session) View(channel string) (*jwt.Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.channels[channel]
	return s.token, ok
}

// Channels returns a copy of the subscribed channel names.
func (s *Session) Channels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.channels))
	for name := range s.channels {
		out = append(out, name)
	}
	return out
}

// Subscribed reports whether the session listens on channel.
func (s *Session) Subscribed(channel string) bool {
	_, ok := s.View(channel)
	return ok
}

func (s *Session) setToken(token *jwt.Token) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *Session) addChannels(names []string) {
	s.mu.Lock()
	for _, name := range names {
		s.channels[name] = struct{}{}
	}
	s.mu.Unlock()
}

func (s *Session) removeChannels(names []string) {
	s.mu.Lock()
	for _, name := range names {
		delete(s.channels, name)
	}
	s.mu.Unlock()
}

// Send enqueues payload for the writer goroutine. It never blocks.
func (s *Session) Send(payload []byte) error {
	if !s.open.Load() {
		return ErrSessionClosed
	}
	if s.closed() {
		return ErrSessionClosed
	}
	select {
	case s.send <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

// writeLoop is the only goroutine that writes to conn. It also owns the
// keepalive ticker, so the ticker cannot outlive the session.
func (s *Session) writeLoop() {
	defer close(s.writerDone)

	var tick <-chan time.Time
	if s.cfg.KeepaliveInterval > 0 {
		ticker := time.NewTicker(s.cfg.KeepaliveInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-s.done:
			return
		case payload := <-s.send:
			if s.closed() || !s.write(payload) {
				return
			}
		case <-tick:
			if s.closed() || !s.write(KeepaliveFrame) {
				return
			}
			if s.cfg.OnKeepalive != nil {
				s.cfg.OnKeepalive(s.id)
			}
		}
	}
}

// write sends one frame. Transport deadlines are wall-clock; cfg.Now only
// dates the session and never reaches the socket.
func (s *Session) write(payload []byte) bool {
	if s.cfg.WriteTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	if err := s.conn.WriteMessage(TextMessage, payload); err != nil {
		s.byServer.Store(true)
		s.open.Store(false)
		_ = s.conn.Close()
		if s.closed() {
			return false
		}
		if s.cfg.OnWriteError != nil {
			s.cfg.OnWriteError(s.id, err)
		}
		return false
	}
	return true
}

func (s *Session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// teardown signals the writer to stop, which cancels keepalive, and closes the
// transport. It runs at most once per session and never waits for the writer,
// so it is safe to call from OnWriteError.
func (s *Session) teardown(byServer bool) {
	s.closeOnce.Do(func() {
		if byServer {
			s.byServer.Store(true)
		}
		s.open.Store(false)
		close(s.done)
		_ = s.conn.Close()
	})
}

// Wait blocks until the writer goroutine has exited.
func (s *Session) Wait() { <-s.writerDone }
