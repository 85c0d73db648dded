/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucketLimiter adapts golang.org/x/time/rate to the Limiter interface.
// Tokens refill continuously at Count/Duration, up to maxBurst.
type TokenBucketLimiter struct {
	lim *rate.Limiter
}

// NewTokenBucketLimiter creates a new token bucket rate limiter.
func NewTokenBucketLimiter(maxRate Rate, maxBurst int) (*TokenBucketLimiter, error) {
	if maxRate.Count <= 0 {
		return nil, fmt.Errorf("rate count must be greater than 0")
	}
	if maxRate.Duration <= 0 {
		return nil, fmt.Errorf("rate duration must be greater than 0")
	}
	if maxBurst <= 0 {
		return nil, fmt.Errorf("max burst must be greater than 0")
	}
	limit := rate.Limit(float64(maxRate.Count) / maxRate.Duration.Seconds())
	return &TokenBucketLimiter{lim: rate.NewLimiter(limit, maxBurst)}, nil
}

// Allow checks if one more invocation should be allowed based on the rate limit.
func (l *TokenBucketLimiter) Allow(_ context.Context) (allow bool, retryAfter time.Duration, err error) {
	res := l.lim.ReserveN(time.Now(), 1)
	if !res.OK() {
		return false, 0, fmt.Errorf("reservation exceeds limiter burst capacity")
	}
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		return false, delay, nil
	}
	return true, 0, nil
}
