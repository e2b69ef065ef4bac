/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package jdwptest

import (
	"fmt"
	"slices"
	"sync"

	"github.com/wiltonlazary/jdwpcore/internal/jdwp"
)

// Engine is a scripted jdwp.ExecutionEngine. It does not run guest code: tests drive
// suspended callbacks directly and use the engine to observe what the controller asked for.
type Engine struct {
	lock            *sync.Mutex
	threads         []jdwp.Thread
	suspendRequests map[jdwp.Thread]int
	resumeRequests  map[jdwp.Thread]int
	suspendErrs     map[jdwp.Thread]error
	resumeErr       error
	rejectedLines   map[jdwp.SourceLocation]bool
	installed       []*jdwp.Breakpoint
	disposed        []*jdwp.Breakpoint
	frames          map[jdwp.Thread][]jdwp.StackFrame
	monitors        map[jdwp.Thread][]jdwp.MonitorInfo
	monitorEntries  map[any]int
	nextBCIs        map[jdwp.StackFrame]int64
	instanceOf      map[any][]jdwp.KlassRef
	closeCount      int
	ops             []string
}

func NewEngine(threads ...jdwp.Thread) *Engine {
	return &Engine{
		lock:            &sync.Mutex{},
		threads:         threads,
		suspendRequests: make(map[jdwp.Thread]int),
		resumeRequests:  make(map[jdwp.Thread]int),
		suspendErrs:     make(map[jdwp.Thread]error),
		rejectedLines:   make(map[jdwp.SourceLocation]bool),
		frames:          make(map[jdwp.Thread][]jdwp.StackFrame),
		monitors:        make(map[jdwp.Thread][]jdwp.MonitorInfo),
		monitorEntries:  make(map[any]int),
		nextBCIs:        make(map[jdwp.StackFrame]int64),
		instanceOf:      make(map[any][]jdwp.KlassRef),
	}
}

// NewEvent creates a suspended event for the thread. Step directives armed on the event
// are recorded in the engine operation log.
func (e *Engine) NewEvent(t jdwp.Thread, frames ...jdwp.StackFrame) *Event {
	return &Event{
		engine: e,
		thread: t,
		frames: frames,
	}
}

func (e *Engine) record(op string, args ...any) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.ops = append(e.ops, fmt.Sprintf(op, args...))
}

// Operations returns the log of resume requests and step directives, in order.
func (e *Engine) Operations() []string {
	e.lock.Lock()
	defer e.lock.Unlock()
	return slices.Clone(e.ops)
}

func (e *Engine) SetFrames(t jdwp.Thread, frames ...jdwp.StackFrame) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.frames[t] = frames
}

func (e *Engine) SetMonitor(t jdwp.Thread, monitor any, depth int, entryCount int) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.monitors[t] = append(e.monitors[t], jdwp.MonitorInfo{Monitor: monitor, StackDepth: depth})
	e.monitorEntries[monitor] = entryCount
}

func (e *Engine) SetNextBCI(frame jdwp.StackFrame, bci int64) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.nextBCIs[frame] = bci
}

func (e *Engine) SetInstanceOf(object any, klasses ...jdwp.KlassRef) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.instanceOf[object] = klasses
}

func (e *Engine) FailSuspend(t jdwp.Thread, err error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.suspendErrs[t] = err
}

func (e *Engine) FailResume(err error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.resumeErr = err
}

// RejectLine makes line breakpoints at the location fail with jdwp.ErrNoSuchSourceLine.
func (e *Engine) RejectLine(source string, line int) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.rejectedLines[jdwp.SourceLocation{Source: source, Line: line}] = true
}

func (e *Engine) SuspendRequests(t jdwp.Thread) int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.suspendRequests[t]
}

func (e *Engine) ResumeRequests(t jdwp.Thread) int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.resumeRequests[t]
}

func (e *Engine) Installed() []*jdwp.Breakpoint {
	e.lock.Lock()
	defer e.lock.Unlock()
	return slices.Clone(e.installed)
}

func (e *Engine) Disposed() []*jdwp.Breakpoint {
	e.lock.Lock()
	defer e.lock.Unlock()
	return slices.Clone(e.disposed)
}

func (e *Engine) CloseCount() int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.closeCount
}

func (e *Engine) AllGuestThreads() []jdwp.Thread {
	e.lock.Lock()
	defer e.lock.Unlock()
	return slices.Clone(e.threads)
}

func (e *Engine) RequestSuspend(t jdwp.Thread) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if err := e.suspendErrs[t]; err != nil {
		return err
	}
	e.suspendRequests[t]++
	return nil
}

func (e *Engine) RequestResume(t jdwp.Thread) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.resumeErr != nil {
		return e.resumeErr
	}
	e.resumeRequests[t]++
	e.ops = append(e.ops, "resume:"+t.Name())
	return nil
}

func (e *Engine) InstallBreakpoint(bp *jdwp.Breakpoint) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if bp.Kind == jdwp.LineBreakpoint && e.rejectedLines[jdwp.SourceLocation{Source: bp.Source, Line: bp.Line}] {
		return fmt.Errorf("%w: %s:%d", jdwp.ErrNoSuchSourceLine, bp.Source, bp.Line)
	}
	e.installed = append(e.installed, bp)
	return nil
}

func (e *Engine) DisposeBreakpoint(bp *jdwp.Breakpoint) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.disposed = append(e.disposed, bp)
}

func (e *Engine) CaptureStackFrames(t jdwp.Thread) ([]jdwp.StackFrame, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	frames, found := e.frames[t]
	if !found {
		return nil, fmt.Errorf("%w: no frames for thread %s", jdwp.ErrEngineUnavailable, t.Name())
	}
	return slices.Clone(frames), nil
}

func (e *Engine) OwnedMonitors(t jdwp.Thread, _ []*jdwp.CallFrame) []jdwp.MonitorInfo {
	e.lock.Lock()
	defer e.lock.Unlock()
	return slices.Clone(e.monitors[t])
}

func (e *Engine) MonitorEntryCount(monitor any) int {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.monitorEntries[monitor]
}

func (e *Engine) NextBCI(frame jdwp.StackFrame) int64 {
	e.lock.Lock()
	defer e.lock.Unlock()
	if bci, found := e.nextBCIs[frame]; found {
		return bci
	}
	return -1
}

func (e *Engine) IsInstanceOf(object any, klass jdwp.KlassRef) bool {
	e.lock.Lock()
	defer e.lock.Unlock()
	return slices.Contains(e.instanceOf[object], klass)
}

func (e *Engine) CloseSession() error {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.closeCount++
	return nil
}

var _ jdwp.ExecutionEngine = (*Engine)(nil)
