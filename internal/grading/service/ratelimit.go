// Package service implements the grading pipeline: admission, the worker
// pool that drains the queue, the supervisory sweep, and status fan-out.
package service

import (
	"context"
	"fmt"
	"time"

	"dezolver/internal/common/cache"
	appErr "dezolver/pkg/errors"
)

const rateLimitKeyPrefix = "grading:ratelimit:"

// RateLimiter enforces a fixed-window per-user submission cap. The counter
// lives in the cache so every API instance shares the same window.
type RateLimiter struct {
	cache  cache.Cache
	limit  int64
	window time.Duration
}

// NewRateLimiter creates a limiter allowing limit admissions per window.
func NewRateLimiter(c cache.Cache, limit int64, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{cache: c, limit: limit, window: window}
}

// Allow consumes one admission slot for the user. It returns RateLimited once
// the user has exhausted the current window. The counter is incremented before
// any other admission work so rejected requests still count against the user.
func (l *RateLimiter) Allow(ctx context.Context, userID int64) error {
	key := fmt.Sprintf("%s%d", rateLimitKeyPrefix, userID)

	count, err := l.cache.Incr(ctx, key)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "rate limit counter failed")
	}
	if count == 1 {
		// First hit in this window; start the clock. If Expire fails the key
		// eventually leaks a window, which only makes limiting stricter.
		if err := l.cache.Expire(ctx, key, l.window); err != nil {
			return appErr.Wrapf(err, appErr.CacheError, "rate limit expire failed")
		}
	}
	if count > l.limit {
		return appErr.New(appErr.RateLimited).
			WithDetail("limit", l.limit).
			WithDetail("window_seconds", int64(l.window.Seconds()))
	}
	return nil
}
