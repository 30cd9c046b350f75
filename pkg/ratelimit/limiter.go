// Package ratelimit paces outbound requests so adapters stay inside the
// budgets venues publish. It wraps Uber's token bucket limiter behind a
// small interface so the rate source can be swapped in tests.
//
// The shared HTTP client (pkg/common) takes one token per request; per-venue
// budgets come from configuration.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/ratelimit"
)

// Rate is a budget of Limit operations per Interval.
type Rate struct {
	Limit    int
	Interval time.Duration
}

// PerSecond converts the budget to operations per second, flooring at 1 so
// a non-empty budget never rounds down to an unusable zero.
func (r Rate) PerSecond() int {
	if r.Limit <= 0 || r.Interval <= 0 {
		return 1
	}
	rps := int(float64(r.Limit) / r.Interval.Seconds())
	if rps < 1 {
		rps = 1
	}
	return rps
}

// RateLimiter gates operations to a configured budget.
type RateLimiter interface {
	// Wait blocks until the next operation is permitted or the context is
	// cancelled.
	Wait(ctx context.Context) error

	// SetLimit replaces the budget at runtime.
	SetLimit(rate Rate) error
}

type uberLimiter struct {
	mu      sync.Mutex
	limiter ratelimit.Limiter
	rate    Rate
}

// NewTokenBucketLimiter creates a token bucket limiter for the given budget.
func NewTokenBucketLimiter(rate Rate) RateLimiter {
	return &uberLimiter{
		limiter: ratelimit.New(rate.PerSecond()),
		rate:    rate,
	}
}

func (l *uberLimiter) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limit wait cancelled: %w", ctx.Err())
	default:
	}

	l.mu.Lock()
	limiter := l.limiter
	l.mu.Unlock()

	limiter.Take()
	return nil
}

func (l *uberLimiter) SetLimit(rate Rate) error {
	if rate.Limit <= 0 || rate.Interval <= 0 {
		return fmt.Errorf("invalid rate limit: %+v", rate)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiter = ratelimit.New(rate.PerSecond())
	l.rate = rate
	return nil
}
