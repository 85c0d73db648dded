/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package memoize

import (
	"fmt"
	"math"
	"reflect"
)

// Key is a canonical, comparable representation of a call's argument list.
// Calls that produce equal keys are served by the same cache entry.
type Key struct {
	v any
}

// keyPair is a cons cell; an argument list becomes a chain of pairs, which is
// comparable as long as every element is, and needs no encoding of the values.
type keyPair struct {
	head any
	tail any
}

// NonHashableArgError is returned when a cache key cannot be built because one
// of the arguments is not hashable (not comparable in Go terms: slices, maps,
// functions, or composite values containing them).
type NonHashableArgError struct {
	ArgIndex int
	ArgType  reflect.Type
}

func (e *NonHashableArgError) Error() string {
	return fmt.Sprintf("argument #%d of type %s is not hashable", e.ArgIndex, e.ArgType)
}

// makeKey builds a Key from the argument list.
//
// When typed is true, the dynamic type of every argument becomes part of the
// key, so Do(ctx, 1) and Do(ctx, 1.0) are cached separately. When typed is
// false, built-in numeric arguments are canonicalized first, so integral
// values of different numeric types share a cache entry.
func makeKey(typed bool, args []any) (Key, error) {
	var v any
	for i := len(args) - 1; i >= 0; i-- {
		arg := args[i]
		if arg != nil && !reflect.ValueOf(arg).Comparable() {
			return Key{}, &NonHashableArgError{ArgIndex: i, ArgType: reflect.TypeOf(arg)}
		}
		if typed {
			v = keyPair{head: reflect.TypeOf(arg), tail: v}
			v = keyPair{head: arg, tail: v}
		} else {
			v = keyPair{head: canonicalizeArg(arg), tail: v}
		}
	}
	return Key{v: v}, nil
}

// canonicalizeArg folds built-in numeric types into a common representation.
// Named types keep their identity and are not folded.
func canonicalizeArg(arg any) any {
	switch v := arg.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint:
		return canonicalizeUint(uint64(v))
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return canonicalizeUint(v)
	case uintptr:
		return canonicalizeUint(uint64(v))
	case float32:
		return canonicalizeFloat(float64(v))
	case float64:
		return canonicalizeFloat(v)
	}
	return arg
}

func canonicalizeUint(v uint64) any {
	if v <= math.MaxInt64 {
		return int64(v)
	}
	return v
}

// canonicalizeFloat maps integral floats into the int64 space so that 1 and
// 1.0 produce the same key.
func canonicalizeFloat(f float64) any {
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return int64(f)
	}
	return f
}
