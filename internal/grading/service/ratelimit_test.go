package service_test

import (
	"context"
	"testing"
	"time"

	"dezolver/internal/grading/service"
	appErr "dezolver/pkg/errors"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	c, mr := newTestCache(t)
	limiter := service.NewRateLimiter(c, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.Allow(ctx, 42); err != nil {
			t.Fatalf("allow %d: %v", i+1, err)
		}
	}
	if err := limiter.Allow(ctx, 42); !appErr.Is(err, appErr.RateLimited) {
		t.Fatalf("got %v, want RateLimited", err)
	}

	// Independent windows per user.
	if err := limiter.Allow(ctx, 43); err != nil {
		t.Fatalf("other user: %v", err)
	}

	// The window resets once the counter expires.
	mr.FastForward(2 * time.Minute)
	if err := limiter.Allow(ctx, 42); err != nil {
		t.Fatalf("allow after window: %v", err)
	}
}

func TestRateLimiterRejectionsStillCount(t *testing.T) {
	c, _ := newTestCache(t)
	limiter := service.NewRateLimiter(c, 1, time.Minute)
	ctx := context.Background()

	if err := limiter.Allow(ctx, 1); err != nil {
		t.Fatalf("first allow: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := limiter.Allow(ctx, 1); !appErr.Is(err, appErr.RateLimited) {
			t.Fatalf("attempt %d: got %v, want RateLimited", i+2, err)
		}
	}
}
