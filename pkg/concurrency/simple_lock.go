/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package concurrency

import (
	"context"
	"sync"
)

// SimpleLock is a binary "parked" flag guarded by its own monitor.
// The monitor (Lock/Unlock) protects the flag: every other method must be called while holding it.
// Goroutines that need to block until the flag is cleared call WaitWhileLocked(),
// exactly like waiting on a condition variable.
//
// SimpleLock does not track ownership, so the flag can be set by one goroutine and cleared by another.
type SimpleLock struct {
	mu     sync.Mutex
	cond   *sync.Cond
	locked bool
}

func NewSimpleLock() *SimpleLock {
	sl := &SimpleLock{}
	sl.cond = sync.NewCond(&sl.mu)
	return sl
}

// Lock enters the monitor.
func (sl *SimpleLock) Lock() {
	sl.mu.Lock()
}

// Unlock leaves the monitor.
func (sl *SimpleLock) Unlock() {
	sl.mu.Unlock()
}

// Acquire marks the lock as locked. Acquiring a locked lock has no effect.
func (sl *SimpleLock) Acquire() {
	sl.locked = true
}

func (sl *SimpleLock) IsLocked() bool {
	return sl.locked
}

// ReleaseAndNotify clears the flag and wakes up all waiters.
func (sl *SimpleLock) ReleaseAndNotify() {
	sl.locked = false
	sl.cond.Broadcast()
}

// Wait releases the monitor, blocks until the lock is released with ReleaseAndNotify() or the context is done,
// and re-enters the monitor before returning.
//
// Like any condition variable wait, Wait() can return without the flag having changed,
// so callers should re-check their predicate in a loop.
// Wait returns the context error if the context was done when the wait ended.
func (sl *SimpleLock) Wait(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	stop := context.AfterFunc(ctx, func() {
		sl.mu.Lock()
		defer sl.mu.Unlock()
		sl.cond.Broadcast()
	})
	defer stop()

	sl.cond.Wait()
	return ctx.Err()
}

// WaitWhileLocked blocks until the flag is cleared or the context is done.
func (sl *SimpleLock) WaitWhileLocked(ctx context.Context) error {
	for sl.locked {
		if waitErr := sl.Wait(ctx); waitErr != nil {
			return waitErr
		}
	}
	return nil
}
