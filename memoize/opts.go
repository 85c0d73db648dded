/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package memoize

import (
	"fmt"
	"time"

	"github.com/acronis/go-memoize/log"
)

// RateLimitAlg represents a type for specifying rate-limiting algorithm.
type RateLimitAlg int

// Supported rate-limiting algorithms.
const (
	// RateLimitAlgSlidingWindowLog keeps a log of invocation timestamps within
	// the window. It is exact (the next invocation is admitted precisely when
	// the oldest one leaves the window) at the price of O(Calls) memory.
	RateLimitAlgSlidingWindowLog RateLimitAlg = iota

	// RateLimitAlgSlidingWindow approximates the window by weighting the
	// previous window's count. Constant memory.
	RateLimitAlgSlidingWindow

	// RateLimitAlgLeakyBucket is GCRA, a leaky bucket variant.
	RateLimitAlgLeakyBucket

	// RateLimitAlgTokenBucket refills quota continuously at Calls/Period.
	RateLimitAlgTokenBucket
)

// RateLimitPolicy determines what happens with an invocation when the rate limit is exceeded.
type RateLimitPolicy int

// Supported policies.
const (
	// RateLimitPolicyWait blocks the call until the quota frees up. This is the
	// default: the point of limiting the call rate is smoothing it, not failing.
	RateLimitPolicyWait RateLimitPolicy = iota

	// RateLimitPolicyReject makes the call fail immediately with *RateLimitExceededError.
	RateLimitPolicyReject
)

// Opts represents options for a Memoizer. The zero value is valid and means:
// unbounded cache, no expiry, no rate limiting.
type Opts struct {
	// MaxSize limits the number of cache entries; the least recently used entry
	// is evicted when the limit is exceeded. Zero means the cache may grow
	// without bound.
	MaxSize int

	// TTL is the duration after which a stored entry is considered stale and is
	// recomputed on the next call. Please note that expired entries are not
	// removed immediately, but only when they are accessed or during periodic
	// cleanup (see Memoizer.RunPeriodicCleanup). Zero means entries never expire.
	TTL time.Duration

	// Typed caches arguments of different dynamic types separately.
	// For example, Do(ctx, 3) and Do(ctx, 3.0) will be treated as distinct
	// calls with distinct results.
	Typed bool

	// Calls and Period limit the rate of actual invocations of the wrapped
	// function to no more than Calls invocations per Period.
	// Both must be provided together.
	Calls  int
	Period time.Duration

	// CacheAware documents that calls served from the cache must not consume
	// rate limit quota. Dispatch always works this way (a cache hit never
	// reaches the limiter); the flag exists to make that intent explicit and
	// requires Calls and Period to be set.
	CacheAware bool

	// RateLimitAlg selects the rate-limiting algorithm.
	RateLimitAlg RateLimitAlg

	// RateLimitPolicy selects what happens when the rate limit is exceeded.
	RateLimitPolicy RateLimitPolicy

	// MaxBurst is used by the leaky bucket and token bucket algorithms.
	// Zero picks a default consistent with Calls per Period
	// (Calls-1 for leaky bucket, Calls for token bucket).
	MaxBurst int

	// DisableCaching turns the cache off entirely: every call invokes the
	// wrapped function and is gated by the rate limit when one is configured.
	DisableCaching bool

	// SingleFlight collapses concurrent calls with the same key into a single
	// invocation of the wrapped function.
	SingleFlight bool

	// MetricsCollector is used to collect statistics about cache and rate limit usage.
	// It can be nil, in this case metrics will be disabled.
	MetricsCollector MetricsCollector

	// Logger, if not nil, records rate limit waits/rejections and periodic
	// cleanup results at debug level. The memoizer never logs errors of the
	// wrapped function; they are propagated to the caller instead.
	Logger log.FieldLogger
}

// Validate checks that the options are complete and consistent.
func (o *Opts) Validate() error {
	if o.MaxSize < 0 {
		return fmt.Errorf("maxSize must be greater or equal to 0 (unbounded)")
	}
	if o.TTL < 0 {
		return fmt.Errorf("ttl must be greater or equal to 0 (no expiration)")
	}
	if o.Calls < 0 {
		return fmt.Errorf("calls must be greater or equal to 0")
	}
	if o.Period < 0 {
		return fmt.Errorf("period must be greater or equal to 0")
	}
	if o.MaxBurst < 0 {
		return fmt.Errorf("maxBurst must be greater or equal to 0")
	}
	if (o.Calls > 0) != (o.Period > 0) {
		return fmt.Errorf("calls and period must be provided together to enable rate limiting")
	}
	if o.CacheAware && o.Calls == 0 {
		return fmt.Errorf("cacheAware requires both calls and period to be provided")
	}
	switch o.RateLimitAlg {
	case RateLimitAlgSlidingWindowLog, RateLimitAlgSlidingWindow, RateLimitAlgLeakyBucket, RateLimitAlgTokenBucket:
	default:
		return fmt.Errorf("unknown rate limit alg")
	}
	switch o.RateLimitPolicy {
	case RateLimitPolicyWait, RateLimitPolicyReject:
	default:
		return fmt.Errorf("unknown rate limit policy")
	}
	return nil
}
