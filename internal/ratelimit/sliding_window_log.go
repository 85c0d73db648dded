/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SlidingWindowLogLimiter keeps a log of invocation timestamps and admits a new
// invocation while the number of timestamps within the last window is below quota.
// Unlike the approximating algorithms, it gives an exact per-timestamp answer:
// the next invocation is allowed precisely when the oldest logged timestamp
// leaves the window.
type SlidingWindowLogLimiter struct {
	maxRate Rate

	mu  sync.Mutex
	log []time.Time
}

// NewSlidingWindowLogLimiter creates a new sliding window log rate limiter.
func NewSlidingWindowLogLimiter(maxRate Rate) (*SlidingWindowLogLimiter, error) {
	if maxRate.Count <= 0 {
		return nil, fmt.Errorf("rate count must be greater than 0")
	}
	if maxRate.Duration <= 0 {
		return nil, fmt.Errorf("rate duration must be greater than 0")
	}
	return &SlidingWindowLogLimiter{
		maxRate: maxRate,
		log:     make([]time.Time, 0, maxRate.Count),
	}, nil
}

// Allow checks if one more invocation fits into the window.
// Timestamps older than now-duration are pruned on every check.
func (l *SlidingWindowLogLimiter) Allow(_ context.Context) (allow bool, retryAfter time.Duration, err error) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	windowStart := now.Add(-l.maxRate.Duration)
	pruned := 0
	for pruned < len(l.log) && !l.log[pruned].After(windowStart) {
		pruned++
	}
	if pruned > 0 {
		l.log = append(l.log[:0], l.log[pruned:]...)
	}

	if len(l.log) < l.maxRate.Count {
		l.log = append(l.log, now)
		return true, 0, nil
	}
	return false, l.log[0].Add(l.maxRate.Duration).Sub(now), nil
}
