/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"time"
)

// Rate describes the frequency of actual invocations of a memoized function:
// no more than Count invocations per Duration.
type Rate struct {
	Count    int
	Duration time.Duration
}

// Limiter interface defines the rate limiting contract.
// Allow reports whether one more invocation may proceed right now.
// When it may not, retryAfter estimates how long the caller should wait
// before asking again.
type Limiter interface {
	Allow(ctx context.Context) (allow bool, retryAfter time.Duration, err error)
}
