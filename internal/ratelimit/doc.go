/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ratelimit provides rate limiting algorithms and a blocking admitter
// that gate actual (cache-missing) invocations of a memoized function.
package ratelimit
