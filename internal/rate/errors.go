package rate

import "errors"

var (
	// ErrRateLimited is returned when the caller exceeded the window budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis command failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
