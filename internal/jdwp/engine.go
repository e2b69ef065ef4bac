/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package jdwp

import "context"

// ExecutionEngine is the interpreter that runs guest code on behalf of the debugger.
//
// Suspension is cooperative: RequestSuspend() asks the engine to stop the thread at its next
// safepoint, at which point the engine calls the suspended callback (Controller.OnSuspend)
// on the goroutine that runs the guest thread. The callback may arrive arbitrarily late
// (or never) for threads that are blocked in native code or waiting on a monitor.
type ExecutionEngine interface {
	// AllGuestThreads returns a snapshot of live guest threads.
	AllGuestThreads() []Thread

	// RequestSuspend asks the engine to suspend the thread at its next safepoint.
	// Returns an error if the thread cannot be suspended (e.g. it has already terminated).
	RequestSuspend(t Thread) error

	// RequestResume cancels any pending suspension request for the thread.
	RequestResume(t Thread) error

	// InstallBreakpoint arms a breakpoint. Returns ErrNoSuchSourceLine if a line breakpoint
	// refers to a location that does not exist.
	InstallBreakpoint(bp *Breakpoint) error

	// DisposeBreakpoint disarms a previously installed breakpoint.
	DisposeBreakpoint(bp *Breakpoint)

	// CaptureStackFrames snapshots the call stack of the thread, top frame first.
	// Must be called on the goroutine that runs the guest thread.
	CaptureStackFrames(t Thread) ([]StackFrame, error)

	// OwnedMonitors returns the monitors owned by the thread across the given frames.
	OwnedMonitors(t Thread, frames []*CallFrame) []MonitorInfo

	// MonitorEntryCount returns the recursive entry count of the monitor.
	MonitorEntryCount(monitor any) int

	// NextBCI predicts the bytecode index execution will continue at when control returns to the frame,
	// or -1 if it cannot be determined.
	NextBCI(frame StackFrame) int64

	// IsInstanceOf reports whether the guest object is an instance of the class.
	IsInstanceOf(object any, klass KlassRef) bool

	// CloseSession tears down the debugging session. Subsequent resume requests will fail.
	CloseSession() error
}

// SuspendedEvent is handed to the suspended callback when a guest thread stops at a safepoint.
type SuspendedEvent interface {
	// Thread is the guest thread that stopped. The callback runs on that thread's goroutine.
	Thread() Thread

	// Description returns a human-readable description of the suspension location.
	Description() string

	// Breakpoints returns the breakpoints that fired at this location, if any.
	Breakpoints() []*Breakpoint

	// StackFrames returns the call stack of the thread, top frame first.
	StackFrames() []StackFrame

	// RawException returns the guest exception object for exception breakpoints.
	// The second return value is false if the exception is not available.
	RawException() (any, bool)

	// PrepareStepInto, PrepareStepOver and PrepareStepOut arm one-shot stepping directives
	// that take effect when the thread continues.
	PrepareStepInto()
	PrepareStepOver()
	PrepareStepOut()

	// PrepareUnwindFrame arranges for the given frame to be popped when the thread continues.
	PrepareUnwindFrame(frame StackFrame) error

	// PrepareForceEarlyReturn arranges for the given frame to return the value to its caller
	// when the thread continues. Execution lands in the caller without a further suspension.
	PrepareForceEarlyReturn(frame StackFrame, returnValue any) error
}

// SuspendedCallback is the signature of Controller.OnSuspend.
// The context carries the lifetime of the guest thread; cancelling it interrupts a parked thread.
type SuspendedCallback func(ctx context.Context, event SuspendedEvent) error

// EventListener receives debugger events once suspension bookkeeping is consistent.
// Implementations typically encode them into protocol packets and send them to the debugger client.
type EventListener interface {
	BreakpointHit(info *BreakpointInfo, frame *CallFrame, thread Thread) error
	StepCompleted(info *SteppingInfo, frame *CallFrame) error
	ExceptionThrown(info *BreakpointInfo, thread Thread, exception any, frames []*CallFrame) error
	FieldAccessBreakpointHit(event *FieldBreakpointEvent, thread Thread, frame *CallFrame) error
	FieldModificationBreakpointHit(event *FieldBreakpointEvent, thread Thread, frame *CallFrame) error
	MethodBreakpointHit(event *MethodBreakpointEvent, thread Thread, frame *CallFrame) error
	VMDied() error
}
