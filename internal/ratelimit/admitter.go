/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Policy determines what Admitter does when the limiter reports that the quota is exhausted.
type Policy int

// Supported policies.
const (
	// PolicyWait blocks the calling goroutine until the quota frees up
	// (or the context is canceled).
	PolicyWait Policy = iota

	// PolicyReject returns *ExceededError immediately.
	PolicyReject
)

// AdmitterOpts represents options for Admitter.
type AdmitterOpts struct {
	Policy Policy

	// OnWait, if not nil, is called each time an invocation is about to be
	// delayed because the quota is exhausted.
	OnWait func(retryAfter time.Duration)

	// OnReject, if not nil, is called each time an invocation is rejected
	// under PolicyReject.
	OnReject func(retryAfter time.Duration)
}

// Admitter gates invocations with a Limiter according to the configured policy.
// It holds no lock of its own while waiting, so concurrent cache hits are never
// starved by a blocked admission.
type Admitter struct {
	limiter  Limiter
	policy   Policy
	onWait   func(retryAfter time.Duration)
	onReject func(retryAfter time.Duration)
}

// NewAdmitter creates a new Admitter over the given limiter.
func NewAdmitter(limiter Limiter, opts AdmitterOpts) *Admitter {
	return &Admitter{
		limiter:  limiter,
		policy:   opts.Policy,
		onWait:   opts.OnWait,
		onReject: opts.OnReject,
	}
}

// Admit consumes one quota slot, blocking until one is available under
// PolicyWait. The consumed slot is not returned even if the invocation it
// admitted fails afterwards: the invocation did execute.
func (a *Admitter) Admit(ctx context.Context) error {
	allow, retryAfter, err := a.limiter.Allow(ctx)
	if err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	if allow {
		return nil
	}

	if a.policy == PolicyReject {
		if a.onReject != nil {
			a.onReject(retryAfter)
		}
		return &ExceededError{RetryAfter: retryAfter}
	}

	if a.onWait != nil {
		a.onWait(retryAfter)
	}

	retryTimer := time.NewTimer(retryAfter)
	defer retryTimer.Stop()

	for {
		select {
		case <-retryTimer.C:
			// Will do another check of the rate limit.
		case <-ctx.Done():
			return &WaitError{Inner: ctx.Err()}
		}

		if allow, retryAfter, err = a.limiter.Allow(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
		if allow {
			return nil
		}

		if !retryTimer.Stop() {
			select {
			case <-retryTimer.C:
			default:
			}
		}
		retryTimer.Reset(retryAfter)
	}
}

// ExceededError is returned by Admit under PolicyReject when the rate limit is exceeded.
type ExceededError struct {
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// WaitError is returned by Admit when waiting for a free quota slot is interrupted.
type WaitError struct {
	Inner error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("wait for rate limit quota: %s", e.Inner.Error())
}

// Unwrap returns the next error in the error chain.
func (e *WaitError) Unwrap() error {
	return e.Inner
}
