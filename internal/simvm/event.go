/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package simvm

import (
	"fmt"

	"github.com/wiltonlazary/jdwpcore/internal/jdwp"
)

// stackFrame is an immutable snapshot of a live frame.
type stackFrame struct {
	method *Method
	pc     int
	depth  int
}

func (f *stackFrame) Method() jdwp.MethodRef {
	return f.method
}

func (f *stackFrame) CodeIndex() int64 {
	return int64(f.pc) * bytecodesPerLine
}

// This always returns nil: simulated methods are static.
func (f *stackFrame) This() any {
	return nil
}

type event struct {
	thread       *Thread
	frames       []jdwp.StackFrame
	breakpoints  []*jdwp.Breakpoint
	exception    any
	hasException bool
}

func (ev *event) Thread() jdwp.Thread {
	return ev.thread
}

func (ev *event) Description() string {
	if len(ev.frames) == 0 {
		return "<no frames>"
	}
	top := ev.frames[0].(*stackFrame)
	return fmt.Sprintf("%s.%s:%d", jdwp.JavaName(top.method.class.name), top.method.name, top.method.firstLine+top.pc)
}

func (ev *event) Breakpoints() []*jdwp.Breakpoint {
	return ev.breakpoints
}

func (ev *event) StackFrames() []jdwp.StackFrame {
	return ev.frames
}

func (ev *event) RawException() (any, bool) {
	return ev.exception, ev.hasException
}

func (ev *event) PrepareStepInto() {
	ev.thread.arm(directiveStepInto)
}

func (ev *event) PrepareStepOver() {
	ev.thread.arm(directiveStepOver)
}

func (ev *event) PrepareStepOut() {
	ev.thread.arm(directiveStepOut)
}

func (ev *event) PrepareUnwindFrame(frame jdwp.StackFrame) error {
	sf, isSimFrame := frame.(*stackFrame)
	if !isSimFrame {
		return fmt.Errorf("cannot unwind a frame that does not belong to the simulated VM")
	}
	return ev.thread.prepareUnwind(sf)
}

// PrepareForceEarlyReturn unwinds the frame. Simulated methods have no results, so the value is dropped.
func (ev *event) PrepareForceEarlyReturn(frame jdwp.StackFrame, returnValue any) error {
	ev.thread.vm.log.V(1).Info("Forcing early return", "Thread", ev.thread.name, "Value", fmt.Sprint(returnValue))
	return ev.PrepareUnwindFrame(frame)
}

var (
	_ jdwp.SuspendedEvent = (*event)(nil)
	_ jdwp.StackFrame     = (*stackFrame)(nil)
)
