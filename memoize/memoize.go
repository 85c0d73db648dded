/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package memoize

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.uber.org/atomic"

	"github.com/acronis/go-memoize/internal/ratelimit"
	"github.com/acronis/go-memoize/log"
)

// RateLimitExceededError is returned by Do under RateLimitPolicyReject
// when the rate limit is exceeded.
type RateLimitExceededError = ratelimit.ExceededError

// RateLimitWaitError is returned by Do under RateLimitPolicyWait
// when waiting for a free quota slot is interrupted by the context.
type RateLimitWaitError = ratelimit.WaitError

// Func is a function that can be memoized. The context is passed through to
// the wrapped function and also bounds the waiting on the rate limit.
// Arguments must be hashable (comparable); see NonHashableArgError.
type Func[V any] func(ctx context.Context, args ...any) (V, error)

// Memoizer wraps a function with an LRU+TTL result cache and an optional
// cache-aware rate limit: calls served from the cache never consume quota,
// only actual invocations of the wrapped function do.
//
// All state (cache entries, rate limit bookkeeping, counters) is owned by the
// Memoizer instance; there is no process-wide shared state. A Memoizer may be
// used from multiple goroutines.
type Memoizer[V any] struct {
	fn    Func[V]
	typed bool

	store    *entryStore[V]      // nil when caching is disabled
	admitter *ratelimit.Admitter // nil when rate limiting is not configured

	group *singleFlightGroup[Key, V] // nil unless single flight is enabled

	maxSize int
	hits    atomic.Int64
	misses  atomic.Int64

	logger log.FieldLogger
	id     string
}

// New creates a new Memoizer around fn with default options:
// unbounded cache, no expiry, no rate limiting.
func New[V any](fn Func[V]) (*Memoizer[V], error) {
	return NewWithOpts(fn, Opts{})
}

// NewWithOpts creates a new Memoizer around fn with the provided options.
// Options are validated once, here; an invalid combination makes construction
// fail and no Memoizer is returned.
func NewWithOpts[V any](fn Func[V], opts Opts) (*Memoizer[V], error) {
	if fn == nil {
		return nil, fmt.Errorf("fn must not be nil")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	metricsCollector := opts.MetricsCollector
	if metricsCollector == nil {
		metricsCollector = disabledMetricsCollector
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDisabledLogger()
	}

	m := &Memoizer[V]{
		fn:      fn,
		typed:   opts.Typed,
		maxSize: opts.MaxSize,
		id:      xid.New().String(),
	}
	m.logger = logger.With(log.String("memoizer_id", m.id))

	if !opts.DisableCaching {
		m.store = newEntryStore[V](opts.MaxSize, opts.TTL, metricsCollector)
	}

	if opts.Calls > 0 {
		limiter, err := makeLimiter(opts)
		if err != nil {
			return nil, err
		}
		m.admitter = ratelimit.NewAdmitter(limiter, ratelimit.AdmitterOpts{
			Policy: convertPolicy(opts.RateLimitPolicy),
			OnWait: func(retryAfter time.Duration) {
				metricsCollector.IncRateLimitWaits()
				m.logger.Debug("rate limit quota exhausted, waiting",
					log.Duration("retry_after", retryAfter))
			},
			OnReject: func(retryAfter time.Duration) {
				metricsCollector.IncRateLimitRejects()
				m.logger.Debug("rate limit quota exhausted, rejecting",
					log.Duration("retry_after", retryAfter))
			},
		})
	}

	if opts.SingleFlight {
		m.group = &singleFlightGroup[Key, V]{}
	}

	return m, nil
}

// MustNewWithOpts is a version of NewWithOpts that panics if an error occurs.
func MustNewWithOpts[V any](fn Func[V], opts Opts) *Memoizer[V] {
	m, err := NewWithOpts(fn, opts)
	if err != nil {
		panic(err)
	}
	return m
}

// Do invokes the wrapped function with the given arguments, serving the result
// from the cache when a valid entry exists. A cached result never reaches the
// rate limiter; on a miss the limiter (when configured) is consulted before
// the wrapped function runs and may delay or reject the call.
//
// Errors of the wrapped function are propagated verbatim and never cached:
// a subsequent call with the same arguments invokes the function again.
// The quota slot consumed by a failed invocation stays consumed.
func (m *Memoizer[V]) Do(ctx context.Context, args ...any) (V, error) {
	var zero V
	key, err := makeKey(m.typed, args)
	if err != nil {
		return zero, err
	}

	if m.store != nil {
		if value, ok := m.store.Get(key); ok {
			m.hits.Inc()
			return value, nil
		}
	}

	if m.group != nil {
		return m.group.Do(key, func() (V, error) {
			return m.invoke(ctx, key, args)
		})
	}
	return m.invoke(ctx, key, args)
}

func (m *Memoizer[V]) invoke(ctx context.Context, key Key, args []any) (V, error) {
	var zero V
	if m.admitter != nil {
		if err := m.admitter.Admit(ctx); err != nil {
			return zero, err
		}
	}
	value, err := m.fn(ctx, args...)
	if err != nil {
		return zero, err
	}
	if m.store != nil {
		m.store.Add(key, value)
	}
	m.misses.Inc()
	return value, nil
}

// Stats returns a snapshot of the hit/miss counters and the cache size.
func (m *Memoizer[V]) Stats() Stats {
	s := Stats{Hits: m.hits.Load(), Misses: m.misses.Load(), MaxSize: m.maxSize}
	if m.store != nil {
		s.CurrSize = m.store.Len()
	}
	return s
}

// Len returns the current number of cache entries.
func (m *Memoizer[V]) Len() int {
	if m.store == nil {
		return 0
	}
	return m.store.Len()
}

// Purge clears the cache and resets the hit/miss counters.
// The rate limit bookkeeping is not touched: invocations that already
// happened still count against the quota.
func (m *Memoizer[V]) Purge() {
	if m.store != nil {
		m.store.Purge()
	}
	m.hits.Store(0)
	m.misses.Store(0)
}

// Wrapped returns the wrapped function.
func (m *Memoizer[V]) Wrapped() Func[V] {
	return m.fn
}

// RunPeriodicCleanup runs a cycle of periodic cleanup of expired cache entries.
// Lazy expiry at lookup time works without it; the cleanup only frees capacity
// held by entries that are never looked up again.
// It's supposed to be run in a separate goroutine.
func (m *Memoizer[V]) RunPeriodicCleanup(ctx context.Context, cleanupInterval time.Duration) {
	if m.store == nil {
		return
	}
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.store.RemoveExpired(time.Now()); removed > 0 {
				m.logger.Debug("removed expired cache entries", log.Int("removed_entries", removed))
			}
		}
	}
}

func makeLimiter(opts Opts) (ratelimit.Limiter, error) {
	maxRate := ratelimit.Rate{Count: opts.Calls, Duration: opts.Period}
	switch opts.RateLimitAlg {
	case RateLimitAlgSlidingWindowLog:
		return ratelimit.NewSlidingWindowLogLimiter(maxRate)
	case RateLimitAlgSlidingWindow:
		return ratelimit.NewSlidingWindowLimiter(maxRate)
	case RateLimitAlgLeakyBucket:
		maxBurst := opts.MaxBurst
		if maxBurst == 0 {
			maxBurst = opts.Calls - 1
		}
		return ratelimit.NewLeakyBucketLimiter(maxRate, maxBurst)
	case RateLimitAlgTokenBucket:
		maxBurst := opts.MaxBurst
		if maxBurst == 0 {
			maxBurst = opts.Calls
		}
		return ratelimit.NewTokenBucketLimiter(maxRate, maxBurst)
	}
	return nil, fmt.Errorf("unknown rate limit alg")
}

func convertPolicy(policy RateLimitPolicy) ratelimit.Policy {
	if policy == RateLimitPolicyReject {
		return ratelimit.PolicyReject
	}
	return ratelimit.PolicyWait
}
