package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	// KeyPrefix namespaces limiter keys in a shared Redis.
	KeyPrefix string
	// MaxHandshakes is the number of handshakes allowed per IP per Window.
	MaxHandshakes int
	Window        time.Duration
}

// Limiter enforces per-IP handshake budgets using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckHandshake records a handshake attempt from ip and returns
// [ErrRateLimited] once the window budget is exceeded. Redis failures are
// returned wrapped in [ErrRedisUnavailable].
func (l *Limiter) CheckHandshake(ctx context.Context, ip string) error {
	if ip == "" {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, l.handshakeKey(ip), l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxHandshakes) {
		return ErrRateLimited
	}

	return nil
}

// Attempts returns the current counter for ip. Missing keys return zero.
func (l *Limiter) Attempts(ctx context.Context, ip string) (int, error) {
	count, err := l.redis.Get(ctx, l.handshakeKey(ip)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Reset clears the counter for ip.
func (l *Limiter) Reset(ctx context.Context, ip string) error {
	if err := l.redis.Del(ctx, l.handshakeKey(ip)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) handshakeKey(ip string) string {
	return l.config.KeyPrefix + "hs:" + ip
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
