package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrHandlerPanic is reported through Options.OnDrop when a handler panics.
	ErrHandlerPanic = errors.New("bus handler panic")
	// ErrSubscriberStarted is returned by a second call to Start.
	ErrSubscriberStarted = errors.New("bus subscriber already started")
)

// Handler receives every valid envelope, in bus order, on the dispatch goroutine.
type Handler func(ctx context.Context, msg Message)

// Options configures a [Subscriber].
type Options struct {
	// Pattern is the PSUBSCRIBE pattern. Default "*".
	Pattern string
	// ChannelSize is the go-redis delivery buffer. Default 100.
	ChannelSize int
	Logger      *slog.Logger
	// OnDrop is called for every payload that does not reach the handler, and
	// for handler panics.
	OnDrop func(channel string, err error)
}

// Subscriber consumes the whole bus namespace and dispatches envelopes.
type Subscriber struct {
	client redis.UniversalClient
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	pubsub  *redis.PubSub
	done    chan struct{}
	started bool
}

// NewSubscriber returns a Subscriber bound to client. Nothing is subscribed
// until Start.
func NewSubscriber(client redis.UniversalClient, opts Options) *Subscriber {
	if opts.Pattern == "" {
		opts.Pattern = "*"
	}
	if opts.ChannelSize <= 0 {
		opts.ChannelSize = 100
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{
		client: client,
		opts:   opts,
		logger: logger,
	}
}

// Start issues PSUBSCRIBE, waits for the server confirmation and starts the
// dispatch goroutine. A confirmation failure is returned and nothing keeps
// running.
func (s *Subscriber) Start(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("bus subscriber: nil handler")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrSubscriberStarted
	}

	ps := s.client.PSubscribe(ctx, s.opts.Pattern)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("psubscribe %q: %w", s.opts.Pattern, err)
	}

	s.pubsub = ps
	s.done = make(chan struct{})
	s.started = true

	msgs := ps.Channel(redis.WithChannelSize(s.opts.ChannelSize))
	go s.dispatch(context.WithoutCancel(ctx), msgs, handler)

	s.logger.Debug("bus subscribed", "pattern", s.opts.Pattern)
	return nil
}

func (s *Subscriber) dispatch(ctx context.Context, msgs <-chan *redis.Message, handler Handler) {
	defer close(s.done)

	for m := range msgs {
		msg, err := ParseEnvelope(m.Channel, []byte(m.Payload))
		if err != nil {
			if errors.Is(err, ErrMalformed) {
				s.logger.Warn("dropping malformed bus payload", "channel", m.Channel, "bytes", len(m.Payload))
			} else {
				s.logger.Debug("dropping bus payload", "channel", m.Channel, "error", err)
			}
			s.drop(m.Channel, err)
			continue
		}
		s.deliver(ctx, msg, handler)
	}
}

func (s *Subscriber) deliver(ctx context.Context, msg Message, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrHandlerPanic, r)
			s.logger.Error("bus handler failed", "channel", msg.Channel, "error", err)
			s.drop(msg.Channel, err)
		}
	}()
	handler(ctx, msg)
}

func (s *Subscriber) drop(channel string, err error) {
	if s.opts.OnDrop != nil {
		s.opts.OnDrop(channel, err)
	}
}

// Close unsubscribes, closes the pub/sub connection and waits for the dispatch
// goroutine to drain or ctx to expire. Closing a subscriber that never started
// is a no-op.
func (s *Subscriber) Close(ctx context.Context) error {
	s.mu.Lock()
	ps, done := s.pubsub, s.done
	s.pubsub = nil
	s.mu.Unlock()

	if ps == nil {
		return nil
	}

	var errs []error
	if err := ps.PUnsubscribe(ctx, s.opts.Pattern); err != nil {
		errs = append(errs, fmt.Errorf("punsubscribe: %w", err))
	}
	if err := ps.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pubsub: %w", err))
	}

	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("wait for bus dispatch: %w", ctx.Err()))
	}

	return errors.Join(errs...)
}
