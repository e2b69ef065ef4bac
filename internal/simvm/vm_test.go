/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package simvm_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wiltonlazary/jdwpcore/internal/jdwp"
	"github.com/wiltonlazary/jdwpcore/internal/jdwp/jdwptest"
	"github.com/wiltonlazary/jdwpcore/internal/simvm"
	"github.com/wiltonlazary/jdwpcore/pkg/testutil"
)

const (
	testTimeout = 20 * time.Second
	source      = "Main.java"
)

type fixture struct {
	ctx      context.Context
	vm       *simvm.VM
	ctrl     *jdwp.Controller
	listener *jdwptest.Listener

	runtimeException *simvm.Class
	stateException   *simvm.Class
	lock             *simvm.Monitor

	work    *simvm.Method // lines 10-12
	main    *simvm.Method // lines 20-22
	idle    *simvm.Method // lines 30-31
	guarded *simvm.Method // lines 40-42
}

func newFixture(t *testing.T, statementDelay time.Duration) *fixture {
	ctx, cancel := testutil.GetTestContext(t, testTimeout)
	t.Cleanup(cancel)

	log := testutil.NewLogForTesting(t.Name())
	vm := simvm.New(simvm.Config{Logger: log, StatementDelay: statementDelay})
	listener := jdwptest.NewListener()
	ctrl, err := jdwp.NewController(ctx, jdwp.Config{
		Engine:   vm,
		Listener: listener,
		Logger:   log,
		FatalErrorHandler: func(err error) {
			assert.Fail(t, "unexpected fatal error", err.Error())
		},
	})
	require.NoError(t, err)
	vm.SetSuspendedCallback(ctrl.OnSuspend)

	f := &fixture{ctx: ctx, vm: vm, ctrl: ctrl, listener: listener, lock: &simvm.Monitor{Name: "lock"}}

	mainClass := vm.DefineClass("com/example/Main", nil)
	f.runtimeException = vm.DefineClass("java/lang/RuntimeException", nil)
	f.stateException = vm.DefineClass("java/lang/IllegalStateException", f.runtimeException)

	f.work = mainClass.DefineMethod(1, "work", source, 10).
		SetBody(simvm.Nop(), simvm.Throw(f.stateException), simvm.Nop())
	f.main = mainClass.DefineMethod(2, "main", source, 20).
		SetBody(simvm.Nop(), simvm.Call(f.work), simvm.Nop())
	f.idle = mainClass.DefineMethod(3, "idle", source, 30).
		SetBody(simvm.Nop(), simvm.Nop())
	f.guarded = mainClass.DefineMethod(4, "guarded", source, 40).
		SetBody(simvm.MonitorEnter(f.lock), simvm.Nop(), simvm.MonitorExit(f.lock))

	return f
}

func (f *fixture) lineBreakpoint(t *testing.T, line int, policy jdwp.SuspendPolicy) *jdwp.BreakpointInfo {
	info := jdwp.NewBreakpointInfo(jdwp.NewRequestFilter(line), jdwp.LineBreakpoint, policy)
	f.ctrl.SubmitLineBreakpoint(jdwp.DebuggerCommand{
		Kind:           jdwp.SubmitLineBreakpoint,
		SourceLocation: jdwp.SourceLocation{Source: source, Line: line},
		Info:           info,
	})
	require.Len(t, info.Breakpoints(), 1)
	return info
}

func (f *fixture) waitForEvents(t *testing.T, kind jdwptest.EventKind, count int) jdwptest.RecordedEvent {
	testutil.WaitFor(t, f.ctx, string(kind)+" event", func() bool {
		return len(f.listener.EventsOfKind(kind)) >= count
	})
	return f.listener.EventsOfKind(kind)[count-1]
}

func (f *fixture) resume(t *testing.T, thread jdwp.Thread) {
	resumed, err := f.ctrl.Resume(thread, false)
	require.NoError(t, err)
	require.True(t, resumed)
}

func (f *fixture) waitForExit(t *testing.T, thread *simvm.Thread) {
	select {
	case <-thread.Done():
	case <-f.ctx.Done():
		require.Fail(t, "thread did not finish", thread.Name())
	}
}

func TestBreakpointStopsSimulatedThread(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	info := f.lineBreakpoint(t, 21, jdwp.SuspendPolicyEventThread)
	thread := f.vm.StartThread(f.ctx, "main", f.main, 1)

	hit := f.waitForEvents(t, jdwptest.BreakpointHitEvent, 1)
	require.Same(t, info, hit.Info)
	require.Same(t, thread, hit.Thread)
	require.Equal(t, f.main.ID(), hit.Frame.MethodID)
	require.Equal(t, int64(10), hit.Frame.CodeIndex)
	require.Equal(t, 1, f.ctrl.ThreadSuspension().GetSuspensionCount(thread))

	testutil.EnsureNever(t, f.ctx, 100*time.Millisecond, "thread finished while suspended", func() bool {
		select {
		case <-thread.Done():
			return true
		default:
			return false
		}
	})

	f.resume(t, thread)
	f.waitForExit(t, thread)
	require.Len(t, f.listener.Events(), 1)
}

func TestStepOverAndStepOut(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	f.lineBreakpoint(t, 10, jdwp.SuspendPolicyEventThread)
	thread := f.vm.StartThread(f.ctx, "main", f.main, 1)
	f.waitForEvents(t, jdwptest.BreakpointHitEvent, 1)

	f.ctrl.SetCommandRequestID(thread, 5, jdwp.SuspendPolicyEventThread, false, false, jdwp.StepOver)
	f.resume(t, thread)

	step := f.waitForEvents(t, jdwptest.StepCompletedEvent, 1)
	require.Equal(t, 5, step.Stepping.CommandRequestID)
	require.Equal(t, f.work.ID(), step.Frame.MethodID)
	require.Equal(t, int64(10), step.Frame.CodeIndex)

	filter := jdwp.NewRequestFilter(6)
	filter.StepInfo = &jdwp.StepInfo{Thread: thread}
	f.ctrl.EventFilters().AddRequestFilter(filter)
	f.ctrl.SetCommandRequestID(thread, 6, jdwp.SuspendPolicyEventThread, false, false, jdwp.StepOut)
	f.ctrl.StepOut(filter)
	require.Equal(t, int64(20), f.ctrl.GetSteppingInfo(thread).StepOutBCI())
	f.resume(t, thread)

	step = f.waitForEvents(t, jdwptest.StepCompletedEvent, 2)
	require.Equal(t, 6, step.Stepping.CommandRequestID)
	require.Equal(t, f.main.ID(), step.Frame.MethodID)
	require.Equal(t, int64(20), step.Frame.CodeIndex)

	f.resume(t, thread)
	f.waitForExit(t, thread)
}

func TestExceptionBreakpointOnSimulatedThread(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	info := jdwp.NewBreakpointInfo(jdwp.NewRequestFilter(1), jdwp.ExceptionBreakpoint, jdwp.SuspendPolicyEventThread)
	info.Klass = f.runtimeException
	info.Caught = true
	f.ctrl.SubmitExceptionBreakpoint(jdwp.DebuggerCommand{Kind: jdwp.SubmitExceptionBreakpoint, Info: info})

	thread := f.vm.StartThread(f.ctx, "main", f.main, 1)
	thrown := f.waitForEvents(t, jdwptest.ExceptionThrownEvent, 1)

	exception, isObject := thrown.Exception.(*simvm.Object)
	require.True(t, isObject)
	require.Same(t, f.stateException, exception.Class)
	require.Equal(t, f.work.ID(), thrown.Frame.MethodID)

	f.resume(t, thread)
	f.waitForExit(t, thread)
}

func TestSuspendAllStopsEveryThread(t *testing.T) {
	t.Parallel()

	f := newFixture(t, time.Millisecond)
	threadsCtx, stopThreads := context.WithCancel(f.ctx)
	defer stopThreads()

	idler := f.vm.StartThread(threadsCtx, "idler", f.idle, 0)
	f.lineBreakpoint(t, 21, jdwp.SuspendPolicyAll)
	worker := f.vm.StartThread(threadsCtx, "worker", f.main, 0)

	f.waitForEvents(t, jdwptest.BreakpointHitEvent, 1)
	testutil.WaitFor(t, f.ctx, "idler parked", func() bool {
		return f.ctrl.ThreadSuspension().GetSuspensionCount(idler) == 1 &&
			!f.ctrl.ThreadSuspension().IsHardSuspended(idler) &&
			f.ctrl.GetSuspendedInfo(idler).IsKnown()
	})
	require.Equal(t, 1, f.ctrl.ThreadSuspension().GetSuspensionCount(worker))

	require.NoError(t, f.ctrl.ResumeAll(false))
	f.waitForEvents(t, jdwptest.BreakpointHitEvent, 2)

	// Interrupting the guest threads releases them wherever they are parked.
	stopThreads()
	f.vm.Wait()
	require.Empty(t, f.vm.AllGuestThreads())
}

func TestPopFramesOnSimulatedThread(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	f.lineBreakpoint(t, 11, jdwp.SuspendPolicyEventThread)
	thread := f.vm.StartThread(f.ctx, "main", f.main, 1)
	f.waitForEvents(t, jdwptest.BreakpointHitEvent, 1)

	top := f.ctrl.GetSuspendedInfo(thread).TopFrame()
	require.Equal(t, f.work.ID(), top.MethodID)
	popped, err := f.ctrl.PopFrames(thread, top, 9)
	require.NoError(t, err)
	require.True(t, popped)

	step := f.waitForEvents(t, jdwptest.StepCompletedEvent, 1)
	require.Equal(t, 9, step.Stepping.CommandRequestID)
	require.Equal(t, f.main.ID(), step.Frame.MethodID)
	require.Equal(t, int64(20), step.Frame.CodeIndex)

	f.resume(t, thread)
	f.waitForExit(t, thread)
}

func TestForceEarlyReturnOnSimulatedThread(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	f.lineBreakpoint(t, 11, jdwp.SuspendPolicyEventThread)
	thread := f.vm.StartThread(f.ctx, "main", f.main, 1)
	f.waitForEvents(t, jdwptest.BreakpointHitEvent, 1)

	top := f.ctrl.GetSuspendedInfo(thread).TopFrame()
	returned, err := f.ctrl.ForceEarlyReturn(thread, top, nil)
	require.NoError(t, err)
	require.True(t, returned)

	f.resume(t, thread)
	f.waitForExit(t, thread)
	require.Empty(t, f.listener.EventsOfKind(jdwptest.StepCompletedEvent))
	require.Equal(t, 0, f.ctrl.ThreadSuspension().GetSuspensionCount(thread))
}

func TestThreadJobCapturesMonitors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	f.lineBreakpoint(t, 41, jdwp.SuspendPolicyEventThread)
	thread := f.vm.StartThread(f.ctx, "main", f.guarded, 1)
	f.waitForEvents(t, jdwptest.BreakpointHitEvent, 1)

	job := jdwp.NewThreadJob(thread, jdwp.SuspendPolicyEventThread, func() ([]*jdwp.CallFrame, error) {
		return f.ctrl.CaptureCallFramesBeforeBlocking(thread), nil
	})
	f.ctrl.PostJobForThread(job)

	res, err := job.ResultContext(f.ctx)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.Len(t, res.Value, 1)
	require.Equal(t, int64(10), res.Value[0].CodeIndex)
	require.Equal(t, 1, f.ctrl.GetSuspendedInfo(thread).MonitorEntryCounts[f.lock])

	f.resume(t, thread)
	f.waitForExit(t, thread)
}

func TestEngineRejectsUnknownLinesAndFinishedThreads(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 0)
	info := jdwp.NewBreakpointInfo(jdwp.NewRequestFilter(1), jdwp.LineBreakpoint, jdwp.SuspendPolicyEventThread)
	f.ctrl.SubmitLineBreakpoint(jdwp.DebuggerCommand{
		Kind:           jdwp.SubmitLineBreakpoint,
		SourceLocation: jdwp.SourceLocation{Source: source, Line: 99},
		Info:           info,
	})
	require.Empty(t, info.Breakpoints())

	thread := f.vm.StartThread(f.ctx, "main", f.idle, 1)
	f.waitForExit(t, thread)
	testutil.WaitFor(t, f.ctx, "thread removed", func() bool {
		return len(f.vm.AllGuestThreads()) == 0
	})

	f.ctrl.Suspend(thread)
	require.Equal(t, 0, f.ctrl.ThreadSuspension().GetSuspensionCount(thread))
}
