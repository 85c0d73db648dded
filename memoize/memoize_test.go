/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package memoize

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/acronis/go-memoize/log/logtest"
)

func newCountingFunc() (*atomic.Int64, Func[string]) {
	var callCount atomic.Int64
	return &callCount, func(ctx context.Context, args ...any) (string, error) {
		callCount.Inc()
		return fmt.Sprint(args...), nil
	}
}

func TestMemoizerServesRepeatedCallsFromCache(t *testing.T) {
	callCount, fn := newCountingFunc()
	m, err := New(fn)
	require.NoError(t, err)

	ctx := context.Background()
	got1, err := m.Do(ctx, "a", 1)
	require.NoError(t, err)
	got2, err := m.Do(ctx, "a", 1)
	require.NoError(t, err)

	require.Equal(t, got1, got2)
	require.Equal(t, int64(1), callCount.Load(), "second call should be served from the cache")

	_, err = m.Do(ctx, "a", 2)
	require.NoError(t, err)
	require.Equal(t, int64(2), callCount.Load())

	stats := m.Stats()
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(2), stats.Misses)
	require.Equal(t, 2, stats.CurrSize)
	require.Equal(t, 0, stats.MaxSize)
}

func TestMemoizerNilFunc(t *testing.T) {
	_, err := New[string](nil)
	require.Error(t, err)
}

func TestMemoizerInvalidOpts(t *testing.T) {
	_, fn := newCountingFunc()
	_, err := NewWithOpts(fn, Opts{Calls: 5})
	require.Error(t, err)

	require.Panics(t, func() {
		MustNewWithOpts(fn, Opts{MaxSize: -1})
	})
}

func TestMemoizerTypedMode(t *testing.T) {
	callCount, fn := newCountingFunc()
	m := MustNewWithOpts(fn, Opts{Typed: true})

	ctx := context.Background()
	_, err := m.Do(ctx, 1)
	require.NoError(t, err)
	_, err = m.Do(ctx, 1.0)
	require.NoError(t, err)
	require.Equal(t, int64(2), callCount.Load(), "int and float arguments must be cached separately")

	_, err = m.Do(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), callCount.Load())
}

func TestMemoizerUntypedModeFoldsNumericArgs(t *testing.T) {
	callCount, fn := newCountingFunc()
	m, err := New(fn)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = m.Do(ctx, 1)
	require.NoError(t, err)
	_, err = m.Do(ctx, 1.0)
	require.NoError(t, err)
	require.Equal(t, int64(1), callCount.Load(), "1 and 1.0 must share a cache entry")
}

func TestMemoizerNonHashableArg(t *testing.T) {
	callCount, fn := newCountingFunc()
	m, err := New(fn)
	require.NoError(t, err)

	_, err = m.Do(context.Background(), []int{1, 2})
	var nonHashableErr *NonHashableArgError
	require.ErrorAs(t, err, &nonHashableErr)
	require.Equal(t, int64(0), callCount.Load(), "wrapped function must not run on key errors")
}

func TestMemoizerLRUEviction(t *testing.T) {
	callCount, fn := newCountingFunc()
	m := MustNewWithOpts(fn, Opts{MaxSize: 2})

	ctx := context.Background()
	_, err := m.Do(ctx, "a")
	require.NoError(t, err)
	_, err = m.Do(ctx, "b")
	require.NoError(t, err)

	// Touch "a" so that "b" is the LRU entry.
	_, err = m.Do(ctx, "a")
	require.NoError(t, err)

	_, err = m.Do(ctx, "c")
	require.NoError(t, err)
	require.Equal(t, 2, m.Len())

	_, err = m.Do(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, int64(4), callCount.Load(), "evicted entry must be recomputed")
}

func TestMemoizerTTLExpiry(t *testing.T) {
	callCount, fn := newCountingFunc()
	m := MustNewWithOpts(fn, Opts{TTL: 50 * time.Millisecond})

	ctx := context.Background()
	_, err := m.Do(ctx, "a")
	require.NoError(t, err)
	_, err = m.Do(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, int64(1), callCount.Load())

	time.Sleep(100 * time.Millisecond)

	_, err = m.Do(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, int64(2), callCount.Load(), "stale entry must be recomputed")
}

func TestMemoizerErrorsAreNotCached(t *testing.T) {
	var callCount atomic.Int64
	wantErr := errors.New("transient failure")
	m, err := New(func(ctx context.Context, args ...any) (string, error) {
		if callCount.Inc() == 1 {
			return "", wantErr
		}
		return "ok", nil
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = m.Do(ctx, "a")
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, 0, m.Len(), "failed result must not be cached")

	got, err := m.Do(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "ok", got)
	require.Equal(t, int64(2), callCount.Load())

	stats := m.Stats()
	require.Equal(t, int64(1), stats.Misses, "failed invocations are not counted as misses")
}

func TestMemoizerRateLimitDelaysInvocations(t *testing.T) {
	callCount, fn := newCountingFunc()
	m := MustNewWithOpts(fn, Opts{Calls: 2, Period: 250 * time.Millisecond})

	ctx := context.Background()
	start := time.Now()
	_, err := m.Do(ctx, "a")
	require.NoError(t, err)
	_, err = m.Do(ctx, "b")
	require.NoError(t, err)
	require.Less(t, time.Since(start), 200*time.Millisecond, "calls within quota must not be delayed")

	// Third distinct call exceeds the quota and must wait for the window to slide.
	_, err = m.Do(ctx, "c")
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)
	require.Equal(t, int64(3), callCount.Load())
}

func TestMemoizerCacheHitsDoNotConsumeQuota(t *testing.T) {
	callCount, fn := newCountingFunc()
	m := MustNewWithOpts(fn, Opts{Calls: 1, Period: time.Minute, CacheAware: true})

	ctx := context.Background()
	start := time.Now()
	_, err := m.Do(ctx, "a")
	require.NoError(t, err)

	// With calls=1 per minute the quota is fully consumed, but repeated calls
	// are served from the cache and must return immediately.
	for i := 0; i < 10; i++ {
		_, err = m.Do(ctx, "a")
		require.NoError(t, err)
	}
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, int64(1), callCount.Load())
	require.Equal(t, int64(10), m.Stats().Hits)
}

func TestMemoizerRateLimitWaitCanceledByContext(t *testing.T) {
	_, fn := newCountingFunc()
	m := MustNewWithOpts(fn, Opts{Calls: 1, Period: time.Minute})

	_, err := m.Do(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = m.Do(ctx, "b")
	var waitErr *RateLimitWaitError
	require.ErrorAs(t, err, &waitErr)
	require.ErrorIs(t, waitErr.Inner, context.DeadlineExceeded)
}

func TestMemoizerRateLimitRejectPolicy(t *testing.T) {
	logRecorder := logtest.NewRecorder()
	_, fn := newCountingFunc()
	m := MustNewWithOpts(fn, Opts{
		Calls:           1,
		Period:          time.Minute,
		RateLimitPolicy: RateLimitPolicyReject,
		Logger:          logRecorder,
	})

	ctx := context.Background()
	_, err := m.Do(ctx, "a")
	require.NoError(t, err)

	_, err = m.Do(ctx, "b")
	var exceededErr *RateLimitExceededError
	require.ErrorAs(t, err, &exceededErr)
	require.Greater(t, exceededErr.RetryAfter, time.Duration(0))

	// A cached call still succeeds with the quota exhausted.
	_, err = m.Do(ctx, "a")
	require.NoError(t, err)

	_, found := logRecorder.FindEntry("rate limit quota exhausted, rejecting")
	require.True(t, found)
}

func TestMemoizerDisableCaching(t *testing.T) {
	callCount, fn := newCountingFunc()
	m := MustNewWithOpts(fn, Opts{DisableCaching: true})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := m.Do(ctx, "a")
		require.NoError(t, err)
	}
	require.Equal(t, int64(3), callCount.Load())
	require.Equal(t, 0, m.Len())
	require.Equal(t, int64(0), m.Stats().Hits)
}

func TestMemoizerSingleFlight(t *testing.T) {
	var callCount atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})
	m := MustNewWithOpts(func(ctx context.Context, args ...any) (int, error) {
		callCount.Inc()
		close(started)
		<-release
		return 42, nil
	}, Opts{SingleFlight: true})

	ctx := context.Background()
	done := make(chan int, 2)
	go func() {
		got, _ := m.Do(ctx, "a")
		done <- got
	}()
	<-started
	go func() {
		got, _ := m.Do(ctx, "a")
		done <- got
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)
	require.Equal(t, 42, <-done)
	require.Equal(t, 42, <-done)
	require.Equal(t, int64(1), callCount.Load(), "concurrent duplicate calls must be collapsed")
}

func TestMemoizerPurge(t *testing.T) {
	callCount, fn := newCountingFunc()
	m, err := New(fn)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = m.Do(ctx, "a")
	require.NoError(t, err)
	_, err = m.Do(ctx, "a")
	require.NoError(t, err)

	m.Purge()
	require.Equal(t, 0, m.Len())
	require.Equal(t, Stats{}, m.Stats())

	_, err = m.Do(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, int64(2), callCount.Load(), "purged entry must be recomputed")
}

func TestMemoizerWrapped(t *testing.T) {
	callCount, fn := newCountingFunc()
	m, err := New(fn)
	require.NoError(t, err)

	got, err := m.Wrapped()(context.Background(), "direct")
	require.NoError(t, err)
	require.Equal(t, "direct", got)
	require.Equal(t, int64(1), callCount.Load())
	require.Equal(t, 0, m.Len(), "direct calls must bypass the cache")
}

func TestMemoizerRunPeriodicCleanup(t *testing.T) {
	logRecorder := logtest.NewRecorder()
	_, fn := newCountingFunc()
	m := MustNewWithOpts(fn, Opts{TTL: 30 * time.Millisecond, Logger: logRecorder})

	_, err := m.Do(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cleanupDone := make(chan struct{})
	go func() {
		m.RunPeriodicCleanup(ctx, 20*time.Millisecond)
		close(cleanupDone)
	}()

	require.Eventually(t, func() bool {
		return m.Len() == 0
	}, time.Second, 10*time.Millisecond, "expired entry should be removed without lookups")

	cancel()
	<-cleanupDone

	_, found := logRecorder.FindEntry("removed expired cache entries")
	require.True(t, found)
}

func TestMemoizerConcurrentAccess(t *testing.T) {
	callCount, fn := newCountingFunc()
	m := MustNewWithOpts(fn, Opts{MaxSize: 8})

	ctx := context.Background()
	done := make(chan struct{})
	for g := 0; g < 4; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				_, err := m.Do(ctx, i%16)
				require.NoError(t, err)
			}
		}(g)
	}
	for g := 0; g < 4; g++ {
		<-done
	}
	require.GreaterOrEqual(t, callCount.Load(), int64(16))
}
