/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package jdwp

import (
	"sync/atomic"
)

// SuspendedInfoKind tells whether a SuspendedInfo carries real frames.
type SuspendedInfoKind uint8

const (
	// SuspendedInfoUnknown is a placeholder stored when a suspend request was sent to the engine,
	// but the engine has not called back yet. It has no frames.
	SuspendedInfoUnknown SuspendedInfoKind = iota

	// SuspendedInfoKnown carries frames captured at a real suspension point.
	SuspendedInfoKnown
)

func (k SuspendedInfoKind) String() string {
	if k == SuspendedInfoKnown {
		return "known"
	}
	return "unknown"
}

// SuspendedInfo is the snapshot of a suspended thread.
type SuspendedInfo struct {
	Kind   SuspendedInfoKind
	Thread Thread

	// The remaining fields are only meaningful for SuspendedInfoKnown.

	// Event is nil for frames captured before the thread entered a blocking region.
	Event       SuspendedEvent
	StackFrames []*CallFrame
	// CallerFrame is the frame below the top frame, used for step-out bookkeeping.
	CallerFrame *CallFrame
	// MonitorEntryCounts maps each owned monitor to its recursive entry count.
	MonitorEntryCounts map[any]int

	forceEarlyReturnInProgress atomic.Bool
}

func newUnknownSuspendedInfo(t Thread) *SuspendedInfo {
	return &SuspendedInfo{
		Kind:   SuspendedInfoUnknown,
		Thread: t,
	}
}

func newKnownSuspendedInfo(t Thread, event SuspendedEvent, frames []*CallFrame, monitorEntryCounts map[any]int) *SuspendedInfo {
	si := &SuspendedInfo{
		Kind:               SuspendedInfoKnown,
		Thread:             t,
		Event:              event,
		StackFrames:        frames,
		MonitorEntryCounts: monitorEntryCounts,
	}
	if len(frames) > 1 {
		si.CallerFrame = frames[1]
	}
	return si
}

// IsKnown returns true if the info carries real frames captured at a suspension point.
func (si *SuspendedInfo) IsKnown() bool {
	return si != nil && si.Kind == SuspendedInfoKnown
}

// hasEvent returns true if the info was captured by the suspended callback
// (and thus can be used to prepare stepping or frame unwinding).
func (si *SuspendedInfo) hasEvent() bool {
	return si.IsKnown() && si.Event != nil
}

// TopFrame returns the top frame, or nil if no frames are available.
func (si *SuspendedInfo) TopFrame() *CallFrame {
	if !si.IsKnown() || len(si.StackFrames) == 0 {
		return nil
	}
	return si.StackFrames[0]
}

func (si *SuspendedInfo) SetForceEarlyReturnInProgress() {
	si.forceEarlyReturnInProgress.Store(true)
}

func (si *SuspendedInfo) IsForceEarlyReturnInProgress() bool {
	return si.forceEarlyReturnInProgress.Load()
}
