/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package jdwp

import (
	"context"
	"fmt"
	"reflect"

	"github.com/wiltonlazary/jdwpcore/pkg/resiliency"
)

// eventJob sends one event to the debugger.
type eventJob = func() error

type eventClassification struct {
	policy          SuspendPolicy
	jobs            []eventJob
	breakpointFired bool
	// Nothing but a suspend request of the debugger stopped the thread.
	suspendRequestOnly bool
}

// OnSuspend is the suspended callback of the execution engine. It runs on the goroutine
// of the guest thread that stopped and returns when the thread may continue.
//
// Cancelling the context interrupts a parked thread: it continues running, and the suspension
// count is left as is.
func (c *Controller) OnSuspend(ctx context.Context, event SuspendedEvent) error {
	thread := event.Thread()
	c.threadLog.V(1).Info("Suspended callback", "Thread", thread.Name(), "Location", event.Description())

	steppingInfo, _ := c.commandRequestIDs.LoadAndDelete(thread)
	if steppingInfo != nil {
		if steppingInfo.IsForceEarlyReturn {
			c.stepLog.V(1).Info("Not suspending after force early return", "Thread", thread.Name())
			return nil
		}

		if c.checkExclusionFilters(event, thread, steppingInfo) {
			c.stepLog.V(1).Info("Not suspending at filtered location", "Thread", thread.Name(), "Location", event.Description())
			return nil
		}
	}

	callFrames := c.createCallFrames(thread.ID(), event.StackFrames(), -1, steppingInfo)
	c.suspendedInfos.Store(thread, newKnownSuspendedInfo(thread, event, callFrames, nil))

	classification, suspend := c.classifyEvent(event, thread, callFrames, steppingInfo)
	if !suspend {
		c.suspendedInfos.Delete(thread)
		return nil
	}

	return c.suspendAndNotify(ctx, thread, classification.policy, classification.jobs, classification.suspendRequestOnly)
}

// classifyEvent determines the effective suspend policy and the events to send for a suspended callback.
// Returns false if the thread should not be suspended at all.
func (c *Controller) classifyEvent(
	event SuspendedEvent,
	thread Thread,
	callFrames []*CallFrame,
	steppingInfo *SteppingInfo,
) (eventClassification, bool) {
	var topFrame *CallFrame
	if len(callFrames) > 0 {
		topFrame = callFrames[0]
	}

	var cls eventClassification
	policy := SuspendPolicyNone
	sawBreakpoint := false
	handledLineBreakpoint := false
	handled := make(map[*Breakpoint]struct{})

	for _, bp := range event.Breakpoints() {
		if _, seen := handled[bp]; seen {
			continue
		}
		handled[bp] = struct{}{}

		info, found := c.breakpointInfos.Load(bp)
		if !found {
			// Cleared while the thread was on its way to the callback.
			continue
		}
		policy = policy.Stronger(info.SuspendPolicy)
		sawBreakpoint = true

		switch {
		case info.IsLineBreakpoint():
			// Only one line breakpoint is reported per location.
			if handledLineBreakpoint {
				continue
			}
			handledLineBreakpoint = true
			cls.breakpointFired = true

			if info.Thread == nil || info.Thread == thread {
				cls.jobs = append(cls.jobs, func() error {
					return c.listener.BreakpointHit(info, topFrame, thread)
				})
			}

		case info.IsExceptionBreakpoint():
			exception, available := event.RawException()
			if !available {
				c.log.Info("Unable to retrieve raw exception, not suspending", "Thread", thread.Name(), "Location", event.Description())
				return eventClassification{}, false
			}

			if !c.exceptionMatches(info, exception, topFrame) {
				c.stepLog.V(1).Info("Exception does not match breakpoint filters, not suspending", "Thread", thread.Name(), "RequestID", info.RequestID)
				return eventClassification{}, false
			}

			cls.breakpointFired = true
			cls.jobs = append(cls.jobs, func() error {
				return c.listener.ExceptionThrown(info, thread, exception, callFrames)
			})
		}
	}

	if fieldEvent, found := c.fieldBreakpointExpected.LoadAndDelete(thread); found && fieldEvent != nil && fieldEvent.Info != nil {
		if fieldEvent.Info.BreakpointInfo != nil {
			policy = policy.Stronger(fieldEvent.Info.SuspendPolicy)
			sawBreakpoint = true
		}
		switch {
		case fieldEvent.Info.IsAccessBreakpoint():
			cls.jobs = append(cls.jobs, func() error {
				return c.listener.FieldAccessBreakpointHit(fieldEvent, thread, topFrame)
			})
		case fieldEvent.Info.IsModificationBreakpoint():
			cls.jobs = append(cls.jobs, func() error {
				return c.listener.FieldModificationBreakpointHit(fieldEvent, thread, topFrame)
			})
		}
	}

	if methodEvent, found := c.methodBreakpointExpected.LoadAndDelete(thread); found && methodEvent != nil {
		if methodEvent.Info != nil {
			policy = policy.Stronger(methodEvent.Info.SuspendPolicy)
			sawBreakpoint = true
		}
		cls.jobs = append(cls.jobs, func() error {
			return c.listener.MethodBreakpointHit(methodEvent, thread, topFrame)
		})
	}

	if !sawBreakpoint {
		policy = SuspendPolicyEventThread
		if steppingInfo != nil {
			policy = policy.Stronger(steppingInfo.SuspendPolicy)
		}
	}

	if steppingInfo != nil && !cls.breakpointFired {
		cls.jobs = append(cls.jobs, func() error {
			c.stepLog.V(1).Info("Step completed", "Thread", thread.Name(), "RequestID", steppingInfo.CommandRequestID)
			return c.listener.StepCompleted(steppingInfo, topFrame)
		})
	}

	cls.policy = policy
	cls.suspendRequestOnly = !sawBreakpoint && steppingInfo == nil && len(cls.jobs) == 0
	return cls, true
}

func (c *Controller) exceptionMatches(info *BreakpointInfo, exception any, topFrame *CallFrame) bool {
	if info.Klass != nil && !c.engine.IsInstanceOf(exception, info.Klass) {
		return false
	}
	if topFrame == nil || topFrame.Klass == nil {
		return true
	}

	throwLocation := JavaName(topFrame.Klass.Name())
	filter := info.Filter
	if len(filter.IncludePatterns) > 0 && !MatchesAnyClassPattern(filter.IncludePatterns, throwLocation) {
		return false
	}
	return !MatchesAnyClassPattern(filter.ExcludePatterns, throwLocation)
}

// suspendAndNotify accounts the suspension of the current (guest) thread, sends the events
// and parks the thread according to the suspend policy.
func (c *Controller) suspendAndNotify(
	ctx context.Context,
	thread Thread,
	policy SuspendPolicy,
	jobs []eventJob,
	suspendRequestOnly bool,
) error {
	if policy == SuspendPolicyNone {
		c.suspendedInfos.Delete(thread)
		return c.runJobs(jobs)
	}

	lock := c.suspendLock(thread)
	lock.Lock()
	count := c.threadSuspension.GetSuspensionCount(thread)
	switch {
	case suspendRequestOnly && count == 0:
		// The debugger resumed the thread before it reached the safepoint.
		c.suspendedInfos.Delete(thread)
		lock.Unlock()
		c.threadLog.V(1).Info("Suspend request was withdrawn, not suspending", "Thread", thread.Name())
		return nil

	case suspendRequestOnly && c.threadSuspension.IsHardSuspended(thread):
		// The debugger already counted this suspension when it asked the engine to suspend the thread.
		c.threadSuspension.RemoveHardSuspendedThread(thread)

	default:
		// An event stops the thread on top of any suspension the debugger asked for.
		c.threadSuspension.SuspendThread(thread)
		c.threadSuspension.RemoveHardSuspendedThread(thread)
	}
	// Locked before any event is sent: a resume sent in response to the event must find it locked.
	lock.Acquire()
	lock.Unlock()

	switch policy {
	case SuspendPolicyAll:
		c.threadLog.V(1).Info("Suspending all threads", "EventThread", thread.Name())
		enqueueErr := c.suspendAllQueue.Enqueue(func(_ context.Context) {
			// Events must not be sent before every other thread is accounted as suspended.
			for _, other := range c.engine.AllGuestThreads() {
				if other != thread {
					c.Suspend(other)
				}
			}
			if err := c.runJobs(jobs); err != nil {
				c.reportFatal(err)
			}
		})
		if enqueueErr != nil {
			c.undoSuspension(thread)
			return fmt.Errorf("%w: controller has stopped: %w", ErrEventDeliveryFailed, enqueueErr)
		}

	default:
		if err := c.runJobs(jobs); err != nil {
			if !c.undoSuspension(thread) {
				// The debugger suspended the thread on its own as well.
				c.lockThread(ctx, thread)
			}
			return err
		}
	}

	if c.hooks.beforePark != nil {
		c.hooks.beforePark(thread)
	}
	c.lockThread(ctx, thread)
	return nil
}

// undoSuspension takes back the suspension of the thread when the debugger could not be told about it.
// Returns true if the thread may continue.
func (c *Controller) undoSuspension(thread Thread) bool {
	running, err := c.Resume(thread, false)
	if err != nil {
		c.reportFatal(err)
		return true
	}
	return running
}

func (c *Controller) runJobs(jobs []eventJob) error {
	for _, job := range jobs {
		if err := resiliency.CallCatchingPanic(c.log, job); err != nil {
			return fmt.Errorf("%w: %w", ErrEventDeliveryFailed, err)
		}
		c.metrics.eventsDelivered.Add(c.lifetimeCtx, 1)
	}
	return nil
}

// checkExclusionFilters returns true if the step request filters veto stopping at the current location.
// In that case the step is re-armed and the pending stepping info is kept.
func (c *Controller) checkExclusionFilters(event SuspendedEvent, thread Thread, steppingInfo *SteppingInfo) bool {
	filter := c.eventFilters.GetRequestFilter(steppingInfo.CommandRequestID)
	if filter == nil || filter.StepInfo == nil {
		return false
	}

	frames := c.createCallFrames(thread.ID(), event.StackFrames(), 2, steppingInfo)
	if len(frames) == 0 {
		return false
	}
	top := frames[0]

	excluded := (filter.ThisFilter != nil && !sameObject(top.ThisValue(), filter.ThisFilter)) ||
		filter.IsKlassExcluded(top.Klass)
	if !excluded {
		return false
	}

	c.commandRequestIDs.Store(thread, steppingInfo)
	c.continueStepping(event, thread, steppingInfo, frames)
	return true
}

func (c *Controller) continueStepping(event SuspendedEvent, thread Thread, steppingInfo *SteppingInfo, frames []*CallFrame) {
	switch steppingInfo.StepKind {
	case StepInto:
		// Stepped into filtered code: get out of it and try again.
		event.PrepareStepOut()
		event.PrepareStepInto()
	case StepOver:
		prepareStep(event, StepOver)
	case StepOut:
		prepareStep(event, StepOut)
		if len(frames) > 1 {
			c.doStepOut(thread, frames[1])
		}
	}
}

// createCallFrames converts engine frames to call frames, skipping frames without a method.
// A negative limit means no limit. The top frame reports the recorded step-out index, if it matches.
func (c *Controller) createCallFrames(threadID int64, stackFrames []StackFrame, limit int, steppingInfo *SteppingInfo) []*CallFrame {
	var callFrames []*CallFrame

	for _, frame := range stackFrames {
		if limit >= 0 && len(callFrames) >= limit {
			break
		}

		method := frame.Method()
		if method == nil || method.DeclaringKlass() == nil {
			continue
		}
		klass := method.DeclaringKlass()

		codeIndex := frame.CodeIndex()
		if len(callFrames) == 0 && steppingInfo != nil && steppingInfo.IsStepOutFrame(method.ID(), klass.ID()) {
			codeIndex = steppingInfo.StepOutBCI()
		}

		callFrames = append(callFrames, newCallFrame(threadID, frame, codeIndex))
	}

	return callFrames
}

// sameObject compares guest object references without panicking on non-comparable values.
func sameObject(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}
