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
	"go.uber.org/atomic"
)

func TestAdmitterWaitPolicy(t *testing.T) {
	limiter, err := NewSlidingWindowLogLimiter(Rate{Count: 1, Duration: 100 * time.Millisecond})
	require.NoError(t, err)

	var waits atomic.Int64
	admitter := NewAdmitter(limiter, AdmitterOpts{
		OnWait: func(retryAfter time.Duration) { waits.Inc() },
	})

	ctx := context.Background()
	start := time.Now()
	require.NoError(t, admitter.Admit(ctx))
	require.NoError(t, admitter.Admit(ctx), "second admission should block, then succeed")
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	require.Equal(t, int64(1), waits.Load())
}

func TestAdmitterWaitCanceledByContext(t *testing.T) {
	limiter, err := NewSlidingWindowLogLimiter(Rate{Count: 1, Duration: time.Minute})
	require.NoError(t, err)
	admitter := NewAdmitter(limiter, AdmitterOpts{})

	require.NoError(t, admitter.Admit(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = admitter.Admit(ctx)
	var waitErr *WaitError
	require.ErrorAs(t, err, &waitErr)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAdmitterRejectPolicy(t *testing.T) {
	limiter, err := NewSlidingWindowLogLimiter(Rate{Count: 1, Duration: time.Minute})
	require.NoError(t, err)

	var rejects atomic.Int64
	admitter := NewAdmitter(limiter, AdmitterOpts{
		Policy:   PolicyReject,
		OnReject: func(retryAfter time.Duration) { rejects.Inc() },
	})

	ctx := context.Background()
	require.NoError(t, admitter.Admit(ctx))

	err = admitter.Admit(ctx)
	var exceededErr *ExceededError
	require.ErrorAs(t, err, &exceededErr)
	require.Greater(t, exceededErr.RetryAfter, time.Duration(0))
	require.Equal(t, int64(1), rejects.Load())
}
