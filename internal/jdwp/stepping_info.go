/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package jdwp

import (
	"sync"
)

// SteppingInfo is the pending step (or pop-frames/force-early-return) request for a thread.
// It is consumed by the next suspended callback on that thread.
type SteppingInfo struct {
	CommandRequestID   int
	SuspendPolicy      SuspendPolicy
	IsPopFrames        bool
	IsForceEarlyReturn bool
	StepKind           StepKind

	// The step-out target is recorded from a command goroutine and read by the guest thread.
	lock            *sync.Mutex
	hasStepOut      bool
	stepOutKlassID  int64
	stepOutMethodID int64
	stepOutBCI      int64
}

func NewSteppingInfo(
	commandRequestID int,
	suspendPolicy SuspendPolicy,
	isPopFrames bool,
	isForceEarlyReturn bool,
	stepKind StepKind,
) *SteppingInfo {
	return &SteppingInfo{
		CommandRequestID:   commandRequestID,
		SuspendPolicy:      suspendPolicy,
		IsPopFrames:        isPopFrames,
		IsForceEarlyReturn: isForceEarlyReturn,
		StepKind:           stepKind,
		lock:               &sync.Mutex{},
		stepOutBCI:         -1,
	}
}

// SetStepOutBCI records the location the thread lands on when the pending step out completes.
func (si *SteppingInfo) SetStepOutBCI(klassID, methodID, bci int64) {
	si.lock.Lock()
	defer si.lock.Unlock()

	si.hasStepOut = true
	si.stepOutKlassID = klassID
	si.stepOutMethodID = methodID
	si.stepOutBCI = bci
}

// IsStepOutFrame returns true if a step-out target was recorded for the given method.
func (si *SteppingInfo) IsStepOutFrame(methodID, klassID int64) bool {
	si.lock.Lock()
	defer si.lock.Unlock()
	return si.hasStepOut && si.stepOutMethodID == methodID && si.stepOutKlassID == klassID
}

// StepOutBCI returns the recorded step-out bytecode index, or -1 if none was recorded.
func (si *SteppingInfo) StepOutBCI() int64 {
	si.lock.Lock()
	defer si.lock.Unlock()
	return si.stepOutBCI
}

// RequiresStepDirective reports whether resuming with this stepping info must arm
// a stepping directive in the engine.
func (si *SteppingInfo) RequiresStepDirective() bool {
	switch si.StepKind {
	case StepInto, StepOver, StepOut:
		return true
	default:
		return false
	}
}

// prepareStep arms the stepping directive of the given kind on the suspended event.
func prepareStep(event SuspendedEvent, kind StepKind) {
	switch kind {
	case StepInto:
		event.PrepareStepInto()
	case StepOver:
		event.PrepareStepOver()
	case StepOut:
		event.PrepareStepOut()
	}
}
