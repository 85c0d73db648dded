/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package memoize

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestSingleFlightGroupDo(t *testing.T) {
	group := &singleFlightGroup[string, int]{}

	got, err := group.Do("key", func() (int, error) { return 42, nil })
	require.NoError(t, err)
	require.Equal(t, 42, got)

	wantErr := errors.New("computation failed")
	_, err = group.Do("key", func() (int, error) { return 0, wantErr })
	require.ErrorIs(t, err, wantErr)
}

func TestSingleFlightGroupCollapsesConcurrentCalls(t *testing.T) {
	group := &singleFlightGroup[string, int]{}

	var execCount atomic.Int64
	started := make(chan struct{})
	release := make(chan struct{})

	const callers = 10
	results := make([]int, callers)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = group.Do("key", func() (int, error) {
			close(started)
			<-release
			execCount.Inc()
			return 7, nil
		})
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = group.Do("key", func() (int, error) {
				execCount.Inc()
				return 7, nil
			})
		}(i)
	}

	// Give the duplicate callers a chance to register as waiters.
	// Even if some of them have not joined yet, they will either wait for the
	// in-flight call or run after it finishes; both yield the same value.
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.Equal(t, 7, results[i])
	}
	require.LessOrEqual(t, execCount.Load(), int64(callers))
	require.GreaterOrEqual(t, execCount.Load(), int64(1))
}

func TestSingleFlightGroupDifferentKeysDoNotBlock(t *testing.T) {
	group := &singleFlightGroup[string, string]{}

	gotA, err := group.Do("a", func() (string, error) { return "va", nil })
	require.NoError(t, err)
	gotB, err := group.Do("b", func() (string, error) { return "vb", nil })
	require.NoError(t, err)
	require.Equal(t, "va", gotA)
	require.Equal(t, "vb", gotB)
}

func TestSingleFlightGroupPanicIsReplayed(t *testing.T) {
	group := &singleFlightGroup[string, int]{}
	require.PanicsWithValue(t, "boom", func() {
		_, _ = group.Do("key", func() (int, error) { panic("boom") })
	})

	// The key must be released after the panic.
	got, err := group.Do("key", func() (int, error) { return 1, nil })
	require.NoError(t, err)
	require.Equal(t, 1, got)
}
