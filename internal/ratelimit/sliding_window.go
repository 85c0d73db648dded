/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/RussellLuo/slidingwindow"
)

// SlidingWindowLimiter implements an approximating sliding window rate limiting algorithm.
// It weights the previous window's count instead of remembering individual timestamps,
// so it needs constant memory at the price of slightly coarse admission decisions.
type SlidingWindowLimiter struct {
	lim     *slidingwindow.Limiter
	maxRate Rate
}

// NewSlidingWindowLimiter creates a new sliding window rate limiter.
func NewSlidingWindowLimiter(maxRate Rate) (*SlidingWindowLimiter, error) {
	if maxRate.Count <= 0 {
		return nil, fmt.Errorf("rate count must be greater than 0")
	}
	if maxRate.Duration <= 0 {
		return nil, fmt.Errorf("rate duration must be greater than 0")
	}
	lim, _ := slidingwindow.NewLimiter(
		maxRate.Duration, int64(maxRate.Count), func() (slidingwindow.Window, slidingwindow.StopFunc) {
			return slidingwindow.NewLocalWindow()
		})
	return &SlidingWindowLimiter{lim: lim, maxRate: maxRate}, nil
}

// Allow checks if one more invocation should be allowed based on the rate limit.
func (l *SlidingWindowLimiter) Allow(_ context.Context) (allow bool, retryAfter time.Duration, err error) {
	if l.lim.Allow() {
		return true, 0, nil
	}
	now := time.Now()
	retryAfter = now.Truncate(l.maxRate.Duration).Add(l.maxRate.Duration).Sub(now)
	return false, retryAfter, nil
}
