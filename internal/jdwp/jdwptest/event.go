/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package jdwptest

import (
	"fmt"

	"github.com/wiltonlazary/jdwpcore/internal/jdwp"
)

// Event is a scripted jdwp.SuspendedEvent.
type Event struct {
	engine       *Engine
	thread       jdwp.Thread
	frames       []jdwp.StackFrame
	breakpoints  []*jdwp.Breakpoint
	exception    any
	hasException bool
}

// WithBreakpoints sets the breakpoints that fired at the event location.
func (ev *Event) WithBreakpoints(bps ...*jdwp.Breakpoint) *Event {
	ev.breakpoints = bps
	return ev
}

// WithException sets the raw exception of the event. A nil exception means the exception is not available.
func (ev *Event) WithException(exception any) *Event {
	ev.exception = exception
	ev.hasException = exception != nil
	return ev
}

func (ev *Event) Thread() jdwp.Thread {
	return ev.thread
}

func (ev *Event) Description() string {
	if len(ev.frames) == 0 || ev.frames[0].Method() == nil {
		return "<no frames>"
	}
	top := ev.frames[0]
	return fmt.Sprintf("%s@%d", top.Method().Name(), top.CodeIndex())
}

func (ev *Event) Breakpoints() []*jdwp.Breakpoint {
	return ev.breakpoints
}

func (ev *Event) StackFrames() []jdwp.StackFrame {
	return ev.frames
}

func (ev *Event) RawException() (any, bool) {
	return ev.exception, ev.hasException
}

func (ev *Event) PrepareStepInto() {
	ev.engine.record("step-into:%s", ev.thread.Name())
}

func (ev *Event) PrepareStepOver() {
	ev.engine.record("step-over:%s", ev.thread.Name())
}

func (ev *Event) PrepareStepOut() {
	ev.engine.record("step-out:%s", ev.thread.Name())
}

func (ev *Event) PrepareUnwindFrame(frame jdwp.StackFrame) error {
	ev.engine.record("unwind:%s:%s", ev.thread.Name(), frame.Method().Name())
	return nil
}

func (ev *Event) PrepareForceEarlyReturn(frame jdwp.StackFrame, returnValue any) error {
	ev.engine.record("early-return:%s:%s=%v", ev.thread.Name(), frame.Method().Name(), returnValue)
	return nil
}

var _ jdwp.SuspendedEvent = (*Event)(nil)
