/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package simvm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wiltonlazary/jdwpcore/internal/jdwp"
)

const noUnwind = -1

type directiveKind uint8

const (
	directiveNone directiveKind = iota
	directiveStepInto
	directiveStepOver
	directiveStepOut
)

// stepDirective is a one-shot request to stop at a later safepoint.
// Depth is the depth of the frame the step was armed in (0 is the bottom frame).
type stepDirective struct {
	kind  directiveKind
	depth int
}

func (d stepDirective) matches(depth int) bool {
	switch d.kind {
	case directiveStepInto:
		return true
	case directiveStepOver:
		return depth <= d.depth
	case directiveStepOut:
		return depth < d.depth
	default:
		return false
	}
}

type liveFrame struct {
	method *Method
	pc     int
}

// Thread is a simulated guest thread, running on its own goroutine.
type Thread struct {
	id               int64
	name             string
	vm               *VM
	suspendRequested atomic.Bool
	done             chan struct{}

	lock        *sync.Mutex
	frames      []*liveFrame // Bottom frame first.
	directive   stepDirective
	unwindDepth int
	monitors    map[*Monitor]int
}

func (t *Thread) ID() int64 {
	return t.id
}

func (t *Thread) Name() string {
	return t.name
}

// Done returns a channel that is closed when the thread has finished.
func (t *Thread) Done() <-chan struct{} {
	return t.done
}

func (t *Thread) run(ctx context.Context, entry *Method, iterations int) {
	for i := 0; iterations <= 0 || i < iterations; i++ {
		if ctx.Err() != nil {
			return
		}
		t.invoke(ctx, entry)
	}
}

func (t *Thread) invoke(ctx context.Context, m *Method) {
	depth := t.push(m)
	defer t.pop(depth)

	for pc, stmt := range m.body {
		t.setPC(depth, pc)
		if !t.delay(ctx) {
			return
		}

		t.safepoint(ctx, nil)
		if ctx.Err() != nil || t.unwinding(depth) {
			return
		}

		switch stmt.Op {
		case OpCall:
			t.invoke(ctx, stmt.Callee)
		case OpThrow:
			t.safepoint(ctx, t.vm.newObject(stmt.Exception))
		case OpMonitorEnter:
			t.enterMonitor(stmt.Monitor)
		case OpMonitorExit:
			t.exitMonitor(stmt.Monitor)
		}

		if ctx.Err() != nil || t.unwinding(depth) {
			return
		}
	}
}

func (t *Thread) delay(ctx context.Context) bool {
	if t.vm.statementDelay <= 0 {
		return true
	}
	timer := time.NewTimer(t.vm.statementDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// safepoint calls the suspended callback if a breakpoint fired, a suspend was requested,
// or a pending step completed at the current location.
func (t *Thread) safepoint(ctx context.Context, exception *Object) {
	callback := t.vm.suspendedCallback()
	if callback == nil {
		return
	}

	source, line, depth := t.location()
	hits := t.vm.breakpointsHit(source, line, exception)
	requested := t.suspendRequested.Swap(false)
	stepped := t.takeDirective(depth)
	if len(hits) == 0 && !requested && !stepped {
		return
	}

	ev := &event{
		thread:      t,
		frames:      t.snapshot(),
		breakpoints: hits,
	}
	if exception != nil {
		ev.exception = exception
		ev.hasException = true
	}

	if err := callback(ctx, ev); err != nil {
		t.vm.log.Error(err, "Suspended callback failed", "Thread", t.name, "Location", ev.Description())
	}
}

func (t *Thread) push(m *Method) int {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.frames = append(t.frames, &liveFrame{method: m})
	return len(t.frames) - 1
}

func (t *Thread) pop(depth int) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.frames = t.frames[:depth]

	if t.unwindDepth == depth {
		// Unwinding is complete: stop in the caller.
		t.unwindDepth = noUnwind
		t.directive = stepDirective{kind: directiveStepInto}
	}
}

func (t *Thread) setPC(depth int, pc int) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.frames[depth].pc = pc
}

func (t *Thread) unwinding(depth int) bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.unwindDepth != noUnwind && depth >= t.unwindDepth
}

func (t *Thread) location() (string, int, int) {
	t.lock.Lock()
	defer t.lock.Unlock()
	top := t.frames[len(t.frames)-1]
	return top.method.source, top.method.firstLine + top.pc, len(t.frames) - 1
}

func (t *Thread) takeDirective(depth int) bool {
	t.lock.Lock()
	defer t.lock.Unlock()
	if !t.directive.matches(depth) {
		return false
	}
	t.directive = stepDirective{}
	return true
}

func (t *Thread) arm(kind directiveKind) {
	t.lock.Lock()
	defer t.lock.Unlock()

	// Step out followed by step into leaves the current method first.
	if kind == directiveStepInto && t.directive.kind == directiveStepOut {
		return
	}
	t.directive = stepDirective{kind: kind, depth: len(t.frames) - 1}
}

func (t *Thread) prepareUnwind(frame *stackFrame) error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if frame.depth >= len(t.frames) || t.frames[frame.depth].method != frame.method {
		return fmt.Errorf("frame %s.%s is not on the stack of thread %s", frame.method.class.name, frame.method.name, t.name)
	}
	t.unwindDepth = frame.depth
	t.directive = stepDirective{}
	return nil
}

// snapshot returns the frames of the thread, top frame first.
func (t *Thread) snapshot() []jdwp.StackFrame {
	t.lock.Lock()
	defer t.lock.Unlock()

	retval := make([]jdwp.StackFrame, 0, len(t.frames))
	for depth := len(t.frames) - 1; depth >= 0; depth-- {
		f := t.frames[depth]
		retval = append(retval, &stackFrame{method: f.method, pc: f.pc, depth: depth})
	}
	return retval
}

func (t *Thread) enterMonitor(m *Monitor) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.monitors[m]++
}

func (t *Thread) exitMonitor(m *Monitor) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.monitors[m] <= 1 {
		delete(t.monitors, m)
		return
	}
	t.monitors[m]--
}

func (t *Thread) ownedMonitors() []jdwp.MonitorInfo {
	t.lock.Lock()
	defer t.lock.Unlock()

	retval := make([]jdwp.MonitorInfo, 0, len(t.monitors))
	for m := range t.monitors {
		retval = append(retval, jdwp.MonitorInfo{Monitor: m, StackDepth: 0})
	}
	return retval
}

func (t *Thread) monitorEntryCount(m *Monitor) int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.monitors[m]
}

var _ jdwp.Thread = (*Thread)(nil)
