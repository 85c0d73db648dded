/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package memoize

// Stats is a snapshot of memoizer counters.
type Stats struct {
	// Hits is the number of calls served from the cache.
	Hits int64

	// Misses is the number of calls that invoked the wrapped function.
	Misses int64

	// MaxSize is the configured cache capacity; 0 means the cache is unbounded.
	MaxSize int

	// CurrSize is the current number of cache entries,
	// including expired entries that have not been evicted yet.
	CurrSize int
}
