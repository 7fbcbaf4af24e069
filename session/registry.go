package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/goRelay/jwt"
	"github.com/google/uuid"
)

// Config controls per-session resources.
type Config struct {
	// KeepaliveInterval is the cadence of keepalive frames; <= 0 disables them.
	KeepaliveInterval time.Duration
	// SendQueueSize bounds the outbound queue of each session.
	SendQueueSize int
	// WriteTimeout is the deadline applied to every frame write; 0 disables it.
	WriteTimeout time.Duration

	// NewID allocates session ids; nil means random UUIDv4.
	NewID func(Handshake) string
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
	// OnWriteError is invoked from the writer goroutine after a failed write.
	OnWriteError func(id string, err error)
	// OnKeepalive is invoked after each keepalive frame is written.
	OnKeepalive func(id string)
}

// Registry is the authoritative table of live sessions.
//
// All map access is serialized by the registry lock. Teardown happens outside
// the lock and at most once per session, whichever of eviction or close
// handling removes the entry first.
type Registry struct {
	cfg Config

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry(cfg Config) *Registry {
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = 1
	}
	if cfg.NewID == nil {
		cfg.NewID = func(Handshake) string { return uuid.NewString() }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Register admits conn with its verified token and returns the new session.
// The channel set starts empty. A colliding id rejects the newer connection
// with [ErrDuplicateSession]; conn is left open for the caller to close.
func (r *Registry) Register(conn Conn, hs Handshake, token *jwt.Token) (*Session, error) {
	if conn == nil {
		return nil, fmt.Errorf("register session: nil transport")
	}
	id := r.cfg.NewID(hs)

	r.mu.Lock()
	if _, exists := r.sessions[id]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSession, id)
	}
	s := newSession(id, conn, hs, token, r.cfg)
	r.sessions[id] = s
	r.mu.Unlock()

	return s, nil
}

// Lookup returns the session registered under id.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// UpdateToken replaces the credential of session id.
func (r *Registry) UpdateToken(id string, token *jwt.Token) error {
	s, ok := r.Lookup(id)
	if !ok {
		return ErrSessionNotFound
	}
	s.setToken(token)
	return nil
}

// AddChannels subscribes session id to names. Existing names are kept as is.
func (r *Registry) AddChannels(id string, names []string) error {
	s, ok := r.Lookup(id)
	if !ok {
		return ErrSessionNotFound
	}
	s.addChannels(names)
	return nil
}

// RemoveChannels unsubscribes session id from names. Unknown names are ignored.
func (r *Registry) RemoveChannels(id string, names []string) error {
	s, ok := r.Lookup(id)
	if !ok {
		return ErrSessionNotFound
	}
	s.removeChannels(names)
	return nil
}

// Evict removes session id, marks it as closed by the server, cancels its
// keepalive and closes the transport. It reports whether this call removed the
// entry; evicting an unknown id is a no-op.
func (r *Registry) Evict(id string) bool {
	s, ok := r.take(id)
	if !ok {
		return false
	}
	s.teardown(true)
	return true
}

// Remove deletes session id after its transport reported closure and releases
// its resources. The returned session is the removed entry, if any.
func (r *Registry) Remove(id string) (*Session, bool) {
	s, ok := r.take(id)
	if !ok {
		return nil, false
	}
	s.teardown(false)
	return s, true
}

// EvictAll evicts every registered session and returns how many were removed.
func (r *Registry) EvictAll() int {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range all {
		s.teardown(true)
	}
	return len(all)
}

// Snapshot returns the sessions registered at call time.
func (r *Registry) Snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) take(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	return s, ok
}
