/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewSlidingWindowLogLimiterValidation(t *testing.T) {
	_, err := NewSlidingWindowLogLimiter(Rate{Count: 0, Duration: time.Second})
	require.Error(t, err)
	_, err = NewSlidingWindowLogLimiter(Rate{Count: 1, Duration: 0})
	require.Error(t, err)
}

func TestSlidingWindowLogLimiterAllow(t *testing.T) {
	limiter, err := NewSlidingWindowLogLimiter(Rate{Count: 3, Duration: 200 * time.Millisecond})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		allow, retryAfter, allowErr := limiter.Allow(ctx)
		require.NoError(t, allowErr)
		require.True(t, allow, "call %d should fit into the quota", i)
		require.Equal(t, time.Duration(0), retryAfter)
	}

	allow, retryAfter, err := limiter.Allow(ctx)
	require.NoError(t, err)
	require.False(t, allow)
	require.Greater(t, retryAfter, time.Duration(0))
	require.LessOrEqual(t, retryAfter, 200*time.Millisecond)
}

func TestSlidingWindowLogLimiterWindowSlides(t *testing.T) {
	limiter, err := NewSlidingWindowLogLimiter(Rate{Count: 2, Duration: 100 * time.Millisecond})
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		allow, _, allowErr := limiter.Allow(ctx)
		require.NoError(t, allowErr)
		require.True(t, allow)
	}
	allow, _, err := limiter.Allow(ctx)
	require.NoError(t, err)
	require.False(t, allow)

	// After the window slides past the logged timestamps, the quota is free again.
	time.Sleep(150 * time.Millisecond)
	allow, _, err = limiter.Allow(ctx)
	require.NoError(t, err)
	require.True(t, allow)
}

func TestSlidingWindowLogLimiterRetryAfterIsExact(t *testing.T) {
	limiter, err := NewSlidingWindowLogLimiter(Rate{Count: 1, Duration: time.Minute})
	require.NoError(t, err)

	ctx := context.Background()
	allow, _, err := limiter.Allow(ctx)
	require.NoError(t, err)
	require.True(t, allow)

	_, retryAfter, err := limiter.Allow(ctx)
	require.NoError(t, err)
	// The oldest timestamp leaves the window one minute after it was logged.
	require.InDelta(t, time.Minute, retryAfter, float64(5*time.Second))
}
