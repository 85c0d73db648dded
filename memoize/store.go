/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package memoize

import (
	"container/list"
	"sync"
	"time"
)

type cacheEntry[V any] struct {
	key       Key
	value     V
	expiresAt time.Time
}

// entryStore is an LRU+TTL mapping from call keys to computed results.
// Entries are immutable once created: a new result always produces a new entry.
// maxEntries == 0 means the store may grow without bound.
type entryStore[V any] struct {
	maxEntries int
	ttl        time.Duration

	mu      sync.Mutex
	lruList *list.List
	entries map[Key]*list.Element

	metricsCollector MetricsCollector
}

func newEntryStore[V any](maxEntries int, ttl time.Duration, metricsCollector MetricsCollector) *entryStore[V] {
	return &entryStore[V]{
		maxEntries:       maxEntries,
		ttl:              ttl,
		lruList:          list.New(),
		entries:          make(map[Key]*list.Element),
		metricsCollector: metricsCollector,
	}
}

// Get returns the stored value for key. An entry past its TTL is evicted and
// reported as a miss (lazy expiry, no background sweeper is required).
// A genuine hit marks the entry most recently used.
func (s *entryStore[V]) Get(key Key) (value V, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, hit := s.entries[key]
	if !hit {
		s.metricsCollector.IncMisses()
		return value, false
	}
	entry := elem.Value.(*cacheEntry[V])
	if !entry.expiresAt.IsZero() && entry.expiresAt.Before(time.Now()) {
		s.removeElement(elem)
		s.metricsCollector.SetAmount(len(s.entries))
		s.metricsCollector.IncMisses()
		return value, false
	}
	s.lruList.MoveToFront(elem)
	s.metricsCollector.IncHits()
	return entry.value, true
}

// Add inserts or replaces the entry for key, marks it most recently used, and
// evicts the least recently used entry if the store went over capacity.
func (s *entryStore[V]) Add(key Key, value V) {
	var expiresAt time.Time
	if s.ttl > 0 {
		expiresAt = time.Now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[key]; ok {
		s.lruList.MoveToFront(elem)
		elem.Value = &cacheEntry[V]{key: key, value: value, expiresAt: expiresAt}
		return
	}
	s.entries[key] = s.lruList.PushFront(&cacheEntry[V]{key: key, value: value, expiresAt: expiresAt})
	if s.maxEntries <= 0 || len(s.entries) <= s.maxEntries {
		s.metricsCollector.SetAmount(len(s.entries))
		return
	}
	if s.removeOldest() != nil {
		s.metricsCollector.SetAmount(len(s.entries))
		s.metricsCollector.AddEvictions(1)
	}
}

// Len returns the number of stored entries, including not yet evicted expired ones.
func (s *entryStore[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Purge clears the store.
// All removed entries will not be counted as evictions.
func (s *entryStore[V]) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metricsCollector.SetAmount(0)
	s.entries = make(map[Key]*list.Element)
	s.lruList.Init()
}

// RemoveExpired removes all entries past their TTL and returns how many were removed.
func (s *entryStore[V]) RemoveExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, elem := range s.entries {
		entry := elem.Value.(*cacheEntry[V])
		if !entry.expiresAt.IsZero() && entry.expiresAt.Before(now) {
			s.removeElement(elem)
			removed++
		}
	}
	if removed > 0 {
		s.metricsCollector.SetAmount(len(s.entries))
	}
	return removed
}

func (s *entryStore[V]) removeOldest() *cacheEntry[V] {
	elem := s.lruList.Back()
	if elem == nil {
		return nil
	}
	entry := elem.Value.(*cacheEntry[V])
	s.removeElement(elem)
	return entry
}

func (s *entryStore[V]) removeElement(elem *list.Element) {
	s.lruList.Remove(elem)
	delete(s.entries, elem.Value.(*cacheEntry[V]).key)
}
