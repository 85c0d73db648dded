/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package memoize provides function-call memoization with LRU eviction,
// time-based entry expiry, and cache-aware rate limiting
// (calls served from the cache do not consume rate limit quota).
package memoize
