/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package jdwp

import (
	"sync"
)

// ThreadSuspension is the suspend-count ledger for guest threads.
//
// Individual operations are atomic, but the ledger does not serialize sequences of operations.
// Callers that read-then-modify a count must hold the thread's suspend lock.
type ThreadSuspension struct {
	lock          *sync.Mutex
	counts        map[Thread]int
	hardSuspended map[Thread]struct{}
}

func NewThreadSuspension() *ThreadSuspension {
	return &ThreadSuspension{
		lock:          &sync.Mutex{},
		counts:        make(map[Thread]int),
		hardSuspended: make(map[Thread]struct{}),
	}
}

// SuspendThread increments the suspension count of the thread.
func (ts *ThreadSuspension) SuspendThread(t Thread) {
	ts.lock.Lock()
	defer ts.lock.Unlock()
	ts.counts[t]++
}

// ResumeThread decrements the suspension count of the thread. The count never goes below zero.
func (ts *ThreadSuspension) ResumeThread(t Thread) {
	ts.lock.Lock()
	defer ts.lock.Unlock()

	if ts.counts[t] > 0 {
		ts.counts[t]--
	}
}

// GetSuspensionCount returns the suspension count of the thread (zero for unknown threads).
func (ts *ThreadSuspension) GetSuspensionCount(t Thread) int {
	ts.lock.Lock()
	defer ts.lock.Unlock()
	return ts.counts[t]
}

// AddHardSuspendedThread marks the thread as suspended without confirmation from the engine.
func (ts *ThreadSuspension) AddHardSuspendedThread(t Thread) {
	ts.lock.Lock()
	defer ts.lock.Unlock()
	ts.hardSuspended[t] = struct{}{}
}

// RemoveHardSuspendedThread clears the hard-suspended mark.
func (ts *ThreadSuspension) RemoveHardSuspendedThread(t Thread) {
	ts.lock.Lock()
	defer ts.lock.Unlock()
	delete(ts.hardSuspended, t)
}

func (ts *ThreadSuspension) IsHardSuspended(t Thread) bool {
	ts.lock.Lock()
	defer ts.lock.Unlock()
	_, found := ts.hardSuspended[t]
	return found
}

// HardSuspendedThreads returns a snapshot of the threads that are waiting for suspend confirmation.
func (ts *ThreadSuspension) HardSuspendedThreads() []Thread {
	ts.lock.Lock()
	defer ts.lock.Unlock()

	retval := make([]Thread, 0, len(ts.hardSuspended))
	for t := range ts.hardSuspended {
		retval = append(retval, t)
	}
	return retval
}
