/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

// Package simvm is a small cooperative virtual machine that runs simulated guest threads
// under the control of the JDWP debugger controller.
package simvm

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/wiltonlazary/jdwpcore/internal/jdwp"
)

type Config struct {
	Logger logr.Logger

	// StatementDelay slows down execution of every statement.
	StatementDelay time.Duration

	// ThreadStarted, if set, runs on every new guest thread before it executes its entry method.
	ThreadStarted func(ctx context.Context, t *Thread)
}

type breakpointState struct {
	bp   *jdwp.Breakpoint
	hits int
}

// VM is a jdwp.ExecutionEngine that runs simulated methods line by line.
// Every line is a safepoint: suspend requests, breakpoints and step directives take effect there.
type VM struct {
	log            logr.Logger
	statementDelay time.Duration
	threadStarted  func(ctx context.Context, t *Thread)
	nextID         atomic.Int64
	threadsDone    *sync.WaitGroup

	lock        *sync.Mutex
	callback    jdwp.SuspendedCallback
	classes     []*Class
	threads     []*Thread
	breakpoints map[*jdwp.Breakpoint]*breakpointState
	closed      bool
}

func New(config Config) *VM {
	log := config.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	return &VM{
		log:            log,
		statementDelay: config.StatementDelay,
		threadStarted:  config.ThreadStarted,
		threadsDone:    &sync.WaitGroup{},
		lock:           &sync.Mutex{},
		breakpoints:    make(map[*jdwp.Breakpoint]*breakpointState),
	}
}

// SetSuspendedCallback sets the callback invoked when a thread stops at a safepoint.
// Without a callback threads never stop.
func (vm *VM) SetSuspendedCallback(cb jdwp.SuspendedCallback) {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	vm.callback = cb
}

func (vm *VM) suspendedCallback() jdwp.SuspendedCallback {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	return vm.callback
}

// DefineClass creates a class. The superclass may be nil.
func (vm *VM) DefineClass(name string, super *Class) *Class {
	c := &Class{id: vm.nextID.Add(1), name: name, super: super}
	vm.lock.Lock()
	defer vm.lock.Unlock()
	vm.classes = append(vm.classes, c)
	return c
}

func (vm *VM) newObject(c *Class) *Object {
	return &Object{ID: vm.nextID.Add(1), Class: c}
}

// StartThread starts a guest thread that runs the entry method the given number of times
// (forever if iterations is not positive), or until the context is done.
func (vm *VM) StartThread(ctx context.Context, name string, entry *Method, iterations int) *Thread {
	t := &Thread{
		id:          vm.nextID.Add(1),
		name:        name,
		vm:          vm,
		lock:        &sync.Mutex{},
		unwindDepth: noUnwind,
		monitors:    make(map[*Monitor]int),
		done:        make(chan struct{}),
	}

	vm.lock.Lock()
	vm.threads = append(vm.threads, t)
	vm.lock.Unlock()

	vm.threadsDone.Add(1)
	go func() {
		defer vm.threadsDone.Done()
		defer vm.removeThread(t)
		defer close(t.done)
		if vm.threadStarted != nil {
			vm.threadStarted(ctx, t)
		}
		t.run(ctx, entry, iterations)
	}()

	vm.log.V(1).Info("Guest thread started", "Thread", name, "Entry", entry.Name())
	return t
}

// Wait blocks until all guest threads have finished.
func (vm *VM) Wait() {
	vm.threadsDone.Wait()
}

func (vm *VM) removeThread(t *Thread) {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	vm.threads = slices.DeleteFunc(vm.threads, func(other *Thread) bool { return other == t })
	vm.log.V(1).Info("Guest thread finished", "Thread", t.name)
}

func (vm *VM) isAlive(t jdwp.Thread) bool {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	return slices.ContainsFunc(vm.threads, func(other *Thread) bool { return jdwp.Thread(other) == t })
}

// breakpointsHit returns the breakpoints that fire at the location, honoring ignore counts.
func (vm *VM) breakpointsHit(source string, line int, exception *Object) []*jdwp.Breakpoint {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	var hits []*jdwp.Breakpoint
	for _, state := range vm.breakpoints {
		bp := state.bp
		switch {
		case exception == nil && bp.Kind == jdwp.LineBreakpoint && bp.Source == source && bp.Line == line:
		case exception != nil && bp.Kind == jdwp.ExceptionBreakpoint && bp.Caught:
		default:
			continue
		}

		state.hits++
		if state.hits > bp.IgnoreCount {
			hits = append(hits, bp)
		}
	}

	slices.SortFunc(hits, func(a, b *jdwp.Breakpoint) int { return int(a.ID - b.ID) })
	return hits
}

func (vm *VM) AllGuestThreads() []jdwp.Thread {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	retval := make([]jdwp.Thread, 0, len(vm.threads))
	for _, t := range vm.threads {
		retval = append(retval, t)
	}
	return retval
}

func (vm *VM) RequestSuspend(t jdwp.Thread) error {
	thread, isSimThread := t.(*Thread)
	if !isSimThread || !vm.isAlive(t) {
		return fmt.Errorf("%w: thread %s is not running", jdwp.ErrEngineUnavailable, t.Name())
	}
	thread.suspendRequested.Store(true)
	return nil
}

func (vm *VM) RequestResume(t jdwp.Thread) error {
	vm.lock.Lock()
	closed := vm.closed
	vm.lock.Unlock()
	if closed {
		return fmt.Errorf("%w: session is closed", jdwp.ErrEngineUnavailable)
	}

	if thread, isSimThread := t.(*Thread); isSimThread {
		thread.suspendRequested.Store(false)
	}
	return nil
}

func (vm *VM) InstallBreakpoint(bp *jdwp.Breakpoint) error {
	vm.lock.Lock()
	defer vm.lock.Unlock()

	if bp.Kind == jdwp.LineBreakpoint {
		found := slices.ContainsFunc(vm.classes, func(c *Class) bool {
			return slices.ContainsFunc(c.methods, func(m *Method) bool { return m.hasLine(bp.Source, bp.Line) })
		})
		if !found {
			return fmt.Errorf("%w: %s:%d", jdwp.ErrNoSuchSourceLine, bp.Source, bp.Line)
		}
	}

	vm.breakpoints[bp] = &breakpointState{bp: bp}
	return nil
}

func (vm *VM) DisposeBreakpoint(bp *jdwp.Breakpoint) {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	delete(vm.breakpoints, bp)
}

func (vm *VM) CaptureStackFrames(t jdwp.Thread) ([]jdwp.StackFrame, error) {
	thread, isSimThread := t.(*Thread)
	if !isSimThread {
		return nil, fmt.Errorf("%w: unknown thread %s", jdwp.ErrEngineUnavailable, t.Name())
	}
	return thread.snapshot(), nil
}

func (vm *VM) OwnedMonitors(t jdwp.Thread, _ []*jdwp.CallFrame) []jdwp.MonitorInfo {
	thread, isSimThread := t.(*Thread)
	if !isSimThread {
		return nil
	}
	return thread.ownedMonitors()
}

func (vm *VM) MonitorEntryCount(monitor any) int {
	m, isMonitor := monitor.(*Monitor)
	if !isMonitor {
		return 0
	}

	vm.lock.Lock()
	threads := slices.Clone(vm.threads)
	vm.lock.Unlock()

	for _, t := range threads {
		if count := t.monitorEntryCount(m); count > 0 {
			return count
		}
	}
	return 0
}

func (vm *VM) NextBCI(frame jdwp.StackFrame) int64 {
	sf, isSimFrame := frame.(*stackFrame)
	if !isSimFrame {
		return -1
	}
	next := sf.pc + 1
	if next >= len(sf.method.body) {
		return -1
	}
	return int64(next) * bytecodesPerLine
}

func (vm *VM) IsInstanceOf(object any, klass jdwp.KlassRef) bool {
	obj, isObject := object.(*Object)
	c, isClass := klass.(*Class)
	if !isObject || !isClass {
		return false
	}
	return obj.Class.isSubclassOf(c)
}

func (vm *VM) CloseSession() error {
	vm.lock.Lock()
	defer vm.lock.Unlock()
	vm.closed = true
	return nil
}

var _ jdwp.ExecutionEngine = (*VM)(nil)
