/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package concurrency

import (
	"context"
	"sync/atomic"
)

const (
	resultUnclaimed int32 = iota
	resultClaimed
	resultPublished
)

// ClaimableResult is a single-assignment result slot for work that may be picked up by more than one goroutine.
// The first goroutine to Claim() the slot must Publish() the result; everybody else waits for it.
type ClaimableResult[T any] struct {
	state atomic.Int32
	done  chan struct{}
	value T
}

func NewClaimableResult[T any]() *ClaimableResult[T] {
	return &ClaimableResult[T]{
		done: make(chan struct{}),
	}
}

// Claim returns true if the caller is the one goroutine that owns producing the result.
func (cr *ClaimableResult[T]) Claim() bool {
	return cr.state.CompareAndSwap(resultUnclaimed, resultClaimed)
}

// Publish stores the result and wakes up all waiters. Must be called exactly once, by the claimer.
func (cr *ClaimableResult[T]) Publish(value T) {
	switch cr.state.Load() {
	case resultUnclaimed:
		panic("ClaimableResult published before it was claimed")
	case resultPublished:
		panic("ClaimableResult published more than once")
	}

	cr.value = value
	cr.state.Store(resultPublished)
	close(cr.done)
}

// Done returns a channel that is closed when the result has been published.
func (cr *ClaimableResult[T]) Done() <-chan struct{} {
	return cr.done
}

func (cr *ClaimableResult[T]) IsPublished() bool {
	return cr.state.Load() == resultPublished
}

// Value blocks until the result is published.
func (cr *ClaimableResult[T]) Value() T {
	<-cr.done
	return cr.value
}

// ValueContext blocks until the result is published or the context is done.
func (cr *ClaimableResult[T]) ValueContext(ctx context.Context) (T, error) {
	select {
	case <-cr.done:
		return cr.value, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
