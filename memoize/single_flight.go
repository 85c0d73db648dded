/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package memoize

import (
	"sync"
)

type singleFlightCall[V any] struct {
	wg         sync.WaitGroup
	val        V
	err        error
	panicked   bool
	panicValue any
}

// singleFlightGroup suppresses duplicate concurrent invocations:
// only one execution is in-flight for a given key at a time.
type singleFlightGroup[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*singleFlightCall[V]
}

// Do executes and returns the result of fn, making sure that only one
// execution is in-flight for the given key at a time. Duplicate callers wait
// for the original to complete and receive the same result. A panic in fn is
// replayed on every waiting caller.
func (g *singleFlightGroup[K, V]) Do(key K, fn func() (V, error)) (V, error) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*singleFlightCall[V])
	}
	if c, ok := g.m[key]; ok {
		g.mu.Unlock()
		c.wg.Wait()
		if c.panicked {
			panic(c.panicValue)
		}
		return c.val, c.err
	}
	c := &singleFlightCall[V]{}
	c.wg.Add(1)
	g.m[key] = c
	g.mu.Unlock()

	defer func() {
		c.wg.Done()
		g.mu.Lock()
		delete(g.m, key)
		g.mu.Unlock()
	}()

	func() {
		defer func() {
			if r := recover(); r != nil {
				c.panicked = true
				c.panicValue = r
			}
		}()
		c.val, c.err = fn()
	}()

	if c.panicked {
		panic(c.panicValue)
	}
	return c.val, c.err
}
