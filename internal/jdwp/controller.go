/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package jdwp

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/wiltonlazary/jdwpcore/internal/telemetry"
	"github.com/wiltonlazary/jdwpcore/pkg/concurrency"
	"github.com/wiltonlazary/jdwpcore/pkg/resiliency"
	"github.com/wiltonlazary/jdwpcore/pkg/syncmap"
)

// Config holds the dependencies of a Controller.
type Config struct {
	Engine   ExecutionEngine
	Listener EventListener
	Options  Options

	// Logger defaults to logr.Discard().
	Logger logr.Logger

	// Meter is used to create the controller metrics. Metrics are not recorded if nil.
	Meter metric.Meter

	// FatalErrorHandler is called with fatal errors that happen on goroutines owned by the controller
	// (e.g. event delivery by the suspend-all helper). Defaults to logging the error.
	FatalErrorHandler func(err error)

	// SuspendWorkers is the maximum number of concurrently running suspend-all helpers.
	// Zero means one per CPU.
	SuspendWorkers uint8
}

type controllerMetrics struct {
	suspendRequests metric.Int64Counter
	resumes         metric.Int64Counter
	eventsDelivered metric.Int64Counter
	threadJobs      metric.Int64Counter
	parkedThreads   metric.Int64UpDownCounter
}

func newControllerMetrics(meter metric.Meter) controllerMetrics {
	meter = telemetry.MeterOrNoop(meter)
	return controllerMetrics{
		suspendRequests: telemetry.NewInt64Counter(meter, "jdwp.suspend.requests", "Number of suspend requests sent to the execution engine"),
		resumes:         telemetry.NewInt64Counter(meter, "jdwp.resumes", "Number of threads that were resumed"),
		eventsDelivered: telemetry.NewInt64Counter(meter, "jdwp.events.delivered", "Number of events delivered to the debugger"),
		threadJobs:      telemetry.NewInt64Counter(meter, "jdwp.thread_jobs", "Number of jobs run on suspended threads"),
		parkedThreads:   telemetry.NewInt64UpDownCounter(meter, "jdwp.threads.parked", "Number of guest threads currently parked by the debugger"),
	}
}

// testHooks lets tests inject delays at points where races with debugger commands are possible.
type testHooks struct {
	beforePark func(t Thread)
}

// Controller coordinates suspension and resumption of guest threads on behalf of a JDWP debugger.
//
// Every guest thread has a suspend lock (a SimpleLock). A thread that must stay suspended
// parks on its lock inside the suspended callback (OnSuspend), on its own goroutine.
// Debugger commands run on other goroutines and wake parked threads by releasing their lock.
// All compound operations on the state of a single thread happen while holding the monitor of its lock.
type Controller struct {
	lifetimeCtx context.Context
	cancel      context.CancelFunc
	sessionID   string

	engine            ExecutionEngine
	listener          EventListener
	options           Options
	fatalErrorHandler func(err error)

	log       logr.Logger
	threadLog logr.Logger
	stepLog   logr.Logger

	suspendLocks             syncmap.Map[Thread, *concurrency.SimpleLock]
	suspendedInfos           syncmap.Map[Thread, *SuspendedInfo]
	commandRequestIDs        syncmap.Map[Thread, *SteppingInfo]
	threadJobs               syncmap.Map[Thread, Job]
	fieldBreakpointExpected  syncmap.Map[Thread, *FieldBreakpointEvent]
	methodBreakpointExpected syncmap.Map[Thread, *MethodBreakpointEvent]
	breakpointInfos          syncmap.Map[*Breakpoint, *BreakpointInfo]

	threadSuspension *ThreadSuspension
	eventFilters     *EventFilters
	suspendAllQueue  *resiliency.WorkQueue

	sessionClosed atomic.Bool
	metrics       controllerMetrics
	hooks         testHooks
}

// NewController creates a controller for a debugging session.
// The controller stops its background work when the lifetime context is done.
func NewController(lifetimeCtx context.Context, config Config) (*Controller, error) {
	if config.Engine == nil {
		return nil, fmt.Errorf("execution engine must be provided")
	}
	if config.Listener == nil {
		return nil, fmt.Errorf("event listener must be provided")
	}

	log := config.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	ctx, cancel := context.WithCancel(lifetimeCtx)
	sessionID := uuid.New().String()
	log = log.WithValues("SessionID", sessionID)

	c := &Controller{
		lifetimeCtx:       ctx,
		cancel:            cancel,
		sessionID:         sessionID,
		engine:            config.Engine,
		listener:          config.Listener,
		options:           config.Options,
		fatalErrorHandler: config.FatalErrorHandler,
		log:               log,
		threadLog:         log.WithName("thread"),
		stepLog:           log.WithName("stepping"),
		threadSuspension:  NewThreadSuspension(),
		eventFilters:      NewEventFilters(),
		suspendAllQueue:   resiliency.NewWorkQueue(ctx, config.SuspendWorkers, log),
		metrics:           newControllerMetrics(config.Meter),
	}

	if c.fatalErrorHandler == nil {
		c.fatalErrorHandler = func(err error) {
			c.log.Error(err, "Fatal debugger error")
		}
	}

	return c, nil
}

func (c *Controller) SessionID() string {
	return c.sessionID
}

func (c *Controller) Options() Options {
	return c.options
}

func (c *Controller) IsSuspend() bool {
	return c.options.Suspend
}

func (c *Controller) IsServer() bool {
	return c.options.Server
}

func (c *Controller) ListeningPort() int {
	return c.options.Port
}

func (c *Controller) Host() string {
	return c.options.Host
}

func (c *Controller) ThreadSuspension() *ThreadSuspension {
	return c.threadSuspension
}

func (c *Controller) EventFilters() *EventFilters {
	return c.eventFilters
}

// GetSuspendedInfo returns the snapshot of the suspended thread, or nil if the thread is not suspended.
func (c *Controller) GetSuspendedInfo(thread Thread) *SuspendedInfo {
	info, _ := c.suspendedInfos.Load(thread)
	return info
}

// GetSteppingInfo returns the pending step request for the thread, or nil.
func (c *Controller) GetSteppingInfo(thread Thread) *SteppingInfo {
	info, _ := c.commandRequestIDs.Load(thread)
	return info
}

func (c *Controller) IsStepping(thread Thread) bool {
	_, found := c.commandRequestIDs.Load(thread)
	return found
}

func (c *Controller) suspendLock(thread Thread) *concurrency.SimpleLock {
	lock, _ := c.suspendLocks.LoadOrStoreNew(thread, concurrency.NewSimpleLock)
	return lock
}

func (c *Controller) reportFatal(err error) {
	if err != nil {
		c.fatalErrorHandler(err)
	}
}

// Suspend increments the suspension count of the thread. If the thread is running,
// the engine is asked to suspend it at the next safepoint and the thread is marked as hard-suspended
// until the engine calls back.
func (c *Controller) Suspend(thread Thread) {
	lock := c.suspendLock(thread)
	lock.Lock()
	defer lock.Unlock()
	c.suspendLocked(thread)
}

func (c *Controller) suspendLocked(thread Thread) {
	count := c.threadSuspension.GetSuspensionCount(thread)
	c.threadLog.V(1).Info("Suspend thread", "Thread", thread.Name(), "SuspensionCount", count)

	if count > 0 {
		// Already suspended, just bump the count.
		c.threadSuspension.SuspendThread(thread)
		return
	}

	if err := c.engine.RequestSuspend(thread); err != nil {
		if IsTransient(err) {
			c.threadLog.V(1).Info("Thread cannot be suspended", "Thread", thread.Name(), "Error", err.Error())
		} else {
			c.threadLog.Info("Not able to suspend thread", "Thread", thread.Name(), "Error", err.Error())
		}
		return
	}
	c.metrics.suspendRequests.Add(c.lifetimeCtx, 1)

	c.threadSuspension.SuspendThread(thread)
	c.threadSuspension.AddHardSuspendedThread(thread)
	// Frames captured before the thread blocked stay available.
	c.suspendedInfos.LoadOrStoreNew(thread, func() *SuspendedInfo {
		return newUnknownSuspendedInfo(thread)
	})
}

// SuspendAll suspends every live guest thread.
func (c *Controller) SuspendAll() {
	c.threadLog.V(1).Info("Suspend all threads")
	for _, thread := range c.engine.AllGuestThreads() {
		c.Suspend(thread)
	}
}

// Resume decrements the suspension count of the thread. When the count reaches zero the thread
// is let go: a pending step is armed (if any), the suspended info is cleared and a parked thread is woken.
//
// Returns true if the thread is running after the call. An error means the engine failed to resume
// the thread, which is fatal for the session.
func (c *Controller) Resume(thread Thread, sessionClosed bool) (bool, error) {
	lock := c.suspendLock(thread)
	lock.Lock()
	defer lock.Unlock()
	return c.resumeLocked(thread, lock, sessionClosed)
}

func (c *Controller) resumeLocked(thread Thread, lock *concurrency.SimpleLock, sessionClosed bool) (bool, error) {
	count := c.threadSuspension.GetSuspensionCount(thread)
	c.threadLog.V(1).Info("Resume thread", "Thread", thread.Name(), "SuspensionCount", count)

	if count == 0 {
		return true, nil
	}

	c.threadSuspension.ResumeThread(thread)
	if c.threadSuspension.GetSuspensionCount(thread) > 0 {
		return false, nil
	}

	suspendedInfo, _ := c.suspendedInfos.Load(thread)
	steppingInfo, stepping := c.commandRequestIDs.Load(thread)

	switch {
	case !stepping:
		if !sessionClosed {
			if err := c.engine.RequestResume(thread); err != nil {
				return false, fmt.Errorf("%w %s: %w", ErrResumeFailed, thread.Name(), err)
			}
		}

	case steppingInfo.RequiresStepDirective() && suspendedInfo.hasEvent() && !suspendedInfo.IsForceEarlyReturnInProgress():
		// Force early return needs no step directive: unwinding already lands in the caller.
		prepareStep(suspendedInfo.Event, steppingInfo.StepKind)
		c.stepLog.V(1).Info("Armed step", "Thread", thread.Name(), "StepKind", steppingInfo.StepKind.String(), "RequestID", steppingInfo.CommandRequestID)
	}

	c.suspendedInfos.Delete(thread)
	c.threadSuspension.RemoveHardSuspendedThread(thread)
	lock.ReleaseAndNotify()
	c.metrics.resumes.Add(c.lifetimeCtx, 1)

	return true, nil
}

// resumeCompletely resumes the thread regardless of nesting and returns how many times
// the suspension count was decremented.
func (c *Controller) resumeCompletely(thread Thread, sessionClosed bool) (int, error) {
	lock := c.suspendLock(thread)
	lock.Lock()
	defer lock.Unlock()

	initialCount := c.threadSuspension.GetSuspensionCount(thread)
	for {
		resumed, err := c.resumeLocked(thread, lock, sessionClosed)
		if err != nil {
			return initialCount - c.threadSuspension.GetSuspensionCount(thread), err
		}
		if resumed {
			return initialCount, nil
		}
	}
}

// ResumeAll resumes every guest thread regardless of its suspension count.
// Threads with a pending step are resumed last, so that the other threads are already running
// when the step completes.
func (c *Controller) ResumeAll(sessionClosed bool) error {
	c.threadLog.V(1).Info("Resume all threads", "SessionClosed", sessionClosed)

	var stepping []Thread
	var errs []error

	for _, thread := range c.engine.AllGuestThreads() {
		if c.IsStepping(thread) {
			stepping = append(stepping, thread)
			continue
		}
		if _, err := c.resumeCompletely(thread, sessionClosed); err != nil {
			errs = append(errs, err)
		}
	}

	for _, thread := range stepping {
		if _, err := c.resumeCompletely(thread, sessionClosed); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// SetCommandRequestID records a pending step (or a frame pop / force early return) for the thread.
// It is consumed by the next suspended callback on that thread.
func (c *Controller) SetCommandRequestID(
	thread Thread,
	commandRequestID int,
	suspendPolicy SuspendPolicy,
	isPopFrames bool,
	isForceEarlyReturn bool,
	stepKind StepKind,
) *SteppingInfo {
	c.stepLog.V(1).Info("Adding step command request",
		"Thread", thread.Name(),
		"RequestID", commandRequestID,
		"StepKind", stepKind.String(),
		"SuspendPolicy", suspendPolicy.String())

	info := NewSteppingInfo(commandRequestID, suspendPolicy, isPopFrames, isForceEarlyReturn, stepKind)
	c.commandRequestIDs.Store(thread, info)
	return info
}

// ClearStepCommand removes the pending step for the thread created by the given request.
func (c *Controller) ClearStepCommand(filter *RequestFilter) {
	if filter == nil || filter.StepInfo == nil {
		return
	}
	thread := filter.StepInfo.Thread
	if info, found := c.commandRequestIDs.Load(thread); found && info.CommandRequestID == filter.RequestID {
		c.stepLog.V(1).Info("Clearing step command", "Thread", thread.Name(), "RequestID", filter.RequestID)
		c.commandRequestIDs.Delete(thread)
	}
}

// StepOut records where the thread lands when the pending step out completes.
func (c *Controller) StepOut(filter *RequestFilter) {
	if filter == nil || filter.StepInfo == nil {
		return
	}
	thread := filter.StepInfo.Thread
	info := c.GetSuspendedInfo(thread)
	if info.IsKnown() {
		c.doStepOut(thread, info.CallerFrame)
	}
}

func (c *Controller) doStepOut(thread Thread, callerFrame *CallFrame) {
	if callerFrame == nil || callerFrame.Frame == nil {
		return
	}
	steppingInfo, found := c.commandRequestIDs.Load(thread)
	if !found {
		return
	}

	stepOutBCI := c.engine.NextBCI(callerFrame.Frame)
	if stepOutBCI == -1 {
		return
	}
	steppingInfo.SetStepOutBCI(callerFrame.KlassID, callerFrame.MethodID, stepOutBCI)
	c.stepLog.V(1).Info("Recorded step out target", "Thread", thread.Name(), "Frame", callerFrame.String(), "BCI", stepOutBCI)
}

// PopFrames pops the given frame (and all frames above it) and resumes the thread.
// The thread stops again in the caller. Returns false if the thread has not reported its frames yet.
func (c *Controller) PopFrames(thread Thread, frame *CallFrame, packetID int) (bool, error) {
	info := c.GetSuspendedInfo(thread)
	if !info.hasEvent() {
		return false, nil
	}

	if err := info.Event.PrepareUnwindFrame(frame.Frame); err != nil {
		return false, fmt.Errorf("could not pop frame %s on thread %s: %w", frame.String(), thread.Name(), err)
	}
	c.SetCommandRequestID(thread, packetID, SuspendPolicyEventThread, true, false, SpecialStep)

	if _, err := c.Resume(thread, false); err != nil {
		return false, err
	}
	return true, nil
}

// ForceEarlyReturn makes the frame return the value to its caller when the thread is resumed.
// Returns false if the thread has not reported its frames yet.
func (c *Controller) ForceEarlyReturn(thread Thread, frame *CallFrame, returnValue any) (bool, error) {
	info := c.GetSuspendedInfo(thread)
	if !info.hasEvent() {
		return false, nil
	}

	if err := info.Event.PrepareForceEarlyReturn(frame.Frame, returnValue); err != nil {
		return false, fmt.Errorf("could not force early return from %s on thread %s: %w", frame.String(), thread.Name(), err)
	}
	info.SetForceEarlyReturnInProgress()
	// The marker makes the callback that follows the unwind return without suspending.
	c.SetCommandRequestID(thread, -1, SuspendPolicyNone, false, true, SpecialStep)
	return true, nil
}

// SubmitLineBreakpoint installs a line breakpoint. A breakpoint at a line that does not exist is logged and ignored.
func (c *Controller) SubmitLineBreakpoint(command DebuggerCommand) {
	location := command.SourceLocation
	bp := newLineBreakpoint(location.Source, location.Line)
	c.installBreakpoint(bp, command.Info)
}

// SubmitExceptionBreakpoint installs an exception breakpoint.
func (c *Controller) SubmitExceptionBreakpoint(command DebuggerCommand) {
	bp := newExceptionBreakpoint(command.Info.Caught, command.Info.Uncaught)
	c.installBreakpoint(bp, command.Info)
}

// SubmitMethodEntryBreakpoint installs a breakpoint on the first line of every method
// of the classes selected by the request filter.
func (c *Controller) SubmitMethodEntryBreakpoint(command DebuggerCommand) {
	info := command.Info
	for _, klass := range info.Filter.KlassRefPatterns {
		for _, method := range klass.DeclaredMethods() {
			bp := newLineBreakpoint(method.Source(), method.FirstLine())
			c.installBreakpoint(bp, info)
		}
	}
}

func (c *Controller) installBreakpoint(bp *Breakpoint, info *BreakpointInfo) {
	bp.IgnoreCount = info.Filter.IgnoreCount

	if err := c.engine.InstallBreakpoint(bp); err != nil {
		if errors.Is(err, ErrNoSuchSourceLine) {
			c.log.Info("Failed submitting breakpoint at non-existing location", "Breakpoint", bp.String())
		} else {
			c.log.Error(err, "Failed submitting breakpoint", "Breakpoint", bp.String())
		}
		return
	}

	info.addBreakpoint(bp)
	c.breakpointInfos.Store(bp, info)
	c.log.V(1).Info("Submitted breakpoint", "Breakpoint", bp.String(), "RequestID", info.RequestID, "SuspendPolicy", info.SuspendPolicy.String())
}

// ClearBreakpoints disposes all installed breakpoints.
func (c *Controller) ClearBreakpoints() {
	for _, bp := range c.breakpointInfos.Keys() {
		c.engine.DisposeBreakpoint(bp)
		c.breakpointInfos.Delete(bp)
	}
}

// RemoveBreakpointRequest disposes the breakpoints installed for the request.
func (c *Controller) RemoveBreakpointRequest(info *BreakpointInfo) {
	for _, bp := range info.Breakpoints() {
		c.engine.DisposeBreakpoint(bp)
		c.breakpointInfos.Delete(bp)
	}
	c.eventFilters.RemoveRequestFilter(info.RequestID)
}

// PrepareFieldBreakpoint records a field access or modification that the next suspended callback
// on the thread reports to the debugger.
func (c *Controller) PrepareFieldBreakpoint(thread Thread, event *FieldBreakpointEvent) {
	c.fieldBreakpointExpected.Store(thread, event)
}

// PrepareMethodBreakpoint records a method entry or exit that the next suspended callback
// on the thread reports to the debugger.
func (c *Controller) PrepareMethodBreakpoint(thread Thread, event *MethodBreakpointEvent) {
	c.methodBreakpointExpected.Store(thread, event)
}

// PostJobForThread schedules the job to run on the goroutine of its (suspended) thread.
// If the thread is parked, it wakes up, runs the job and parks again. Use the job's
// Done() or Result() methods to wait for the result.
func (c *Controller) PostJobForThread(job Job) {
	thread := job.Thread()
	lock := c.suspendLock(thread)
	lock.Lock()
	defer lock.Unlock()

	c.threadJobs.Store(thread, job)
	lock.ReleaseAndNotify()
}

// lockThread parks the current (guest) goroutine until the thread is resumed or the context is done.
// Jobs posted for the thread run while it is parked.
func (c *Controller) lockThread(ctx context.Context, thread Thread) {
	lock := c.suspendLock(thread)
	c.metrics.parkedThreads.Add(c.lifetimeCtx, 1)
	defer c.metrics.parkedThreads.Add(c.lifetimeCtx, -1)

	lock.Lock()
	defer lock.Unlock()

	c.threadLog.V(1).Info("Thread parked", "Thread", thread.Name())
	for {
		// Posting a job releases the lock, so a job posted before parking is found right away.
		if waitErr := lock.WaitWhileLocked(ctx); waitErr != nil {
			c.threadLog.Info("Parked thread interrupted", "Thread", thread.Name(), "Reason", waitErr.Error())
			break
		}

		job, found := c.threadJobs.LoadAndDelete(thread)
		if !found {
			break
		}

		lock.Unlock()
		c.runThreadJob(thread, job)
		lock.Lock()

		// Park again, unless the thread was resumed or got another job while the job ran.
		_, jobPending := c.threadJobs.Load(thread)
		if !jobPending && c.threadSuspension.GetSuspensionCount(thread) > 0 {
			lock.Acquire()
		}
	}
	c.threadLog.V(1).Info("Thread unparked", "Thread", thread.Name())
}

func (c *Controller) runThreadJob(thread Thread, job Job) {
	c.metrics.threadJobs.Add(c.lifetimeCtx, 1)

	if job.SuspensionStrategy() != SuspendPolicyAll {
		c.logJobResult(thread, job.run(c.threadLog))
		return
	}

	// Let every other thread run for the duration of the job, then restore the exact suspension counts.
	resumed := make(map[Thread]int)
	for _, other := range c.engine.AllGuestThreads() {
		if other == thread {
			continue
		}
		decrements, err := c.resumeCompletely(other, false)
		if decrements > 0 {
			resumed[other] = decrements
		}
		c.reportFatal(err)
	}

	c.logJobResult(thread, job.run(c.threadLog))

	for other, decrements := range resumed {
		for range decrements {
			c.Suspend(other)
		}
	}
}

func (c *Controller) logJobResult(thread Thread, err error) {
	if err != nil {
		c.threadLog.Error(err, "Thread job failed", "Thread", thread.Name())
		c.reportFatal(err)
	}
}

// ImmediateSuspend suspends the current (guest) thread in place, e.g. when a class is prepared.
// The callback (typically sending the event) runs once the thread is accounted as suspended.
// With SuspendPolicyAll all other threads are suspended first.
func (c *Controller) ImmediateSuspend(ctx context.Context, eventThread Thread, policy SuspendPolicy, callback func() error) error {
	switch policy {
	case SuspendPolicyAll:
		c.threadLog.V(1).Info("Immediately suspending all threads", "EventThread", eventThread.Name())
		for _, thread := range c.engine.AllGuestThreads() {
			if thread != eventThread {
				c.Suspend(thread)
			}
		}
		fallthrough

	case SuspendPolicyEventThread:
		c.threadLog.V(1).Info("Immediately suspending event thread", "EventThread", eventThread.Name())
		if !c.GetSuspendedInfo(eventThread).IsKnown() {
			c.CaptureCallFramesBeforeBlocking(eventThread)
		}
		return c.suspendAndNotify(ctx, eventThread, SuspendPolicyEventThread, []eventJob{callback}, false)

	default:
		return c.runJobs([]eventJob{callback})
	}
}

// CaptureCallFramesBeforeBlocking records the frames of the current (guest) thread before it enters
// a region where it cannot reach a safepoint (e.g. Object.wait()), so that the debugger can inspect
// the thread while it is blocked.
func (c *Controller) CaptureCallFramesBeforeBlocking(thread Thread) []*CallFrame {
	stackFrames, err := c.engine.CaptureStackFrames(thread)
	if err != nil {
		c.threadLog.Info("Could not capture frames before blocking", "Thread", thread.Name(), "Error", err.Error())
		return nil
	}

	callFrames := make([]*CallFrame, 0, len(stackFrames))
	for _, frame := range stackFrames {
		method := frame.Method()
		if method == nil {
			continue
		}

		codeIndex := frame.CodeIndex()
		if codeIndex == -1 {
			codeIndex = 0
		}
		// The engine may report an index past the last line for frames that are about to return.
		if lastLine := method.LastLine(); lastLine != -1 {
			if lastLineBCI := method.BCIFromLine(lastLine); lastLineBCI >= 0 && codeIndex > lastLineBCI {
				codeIndex = lastLineBCI
			}
		}

		callFrames = append(callFrames, newCallFrame(thread.ID(), frame, codeIndex))
	}

	monitorEntryCounts := make(map[any]int)
	for _, monitor := range c.engine.OwnedMonitors(thread, callFrames) {
		monitorEntryCounts[monitor.Monitor] = c.engine.MonitorEntryCount(monitor.Monitor)
	}

	c.suspendedInfos.Store(thread, newKnownSuspendedInfo(thread, nil, callFrames, monitorEntryCounts))
	return callFrames
}

// CancelBlockingCallFrames forgets the frames captured before the thread blocked.
func (c *Controller) CancelBlockingCallFrames(thread Thread) {
	c.suspendedInfos.Delete(thread)
}

// EndSession closes the debugging session. Calling it more than once has no effect.
func (c *Controller) EndSession() {
	if !c.sessionClosed.CompareAndSwap(false, true) {
		return
	}
	c.log.Info("Ending debugging session")
	if err := c.engine.CloseSession(); err != nil {
		c.log.Info("Error closing debugging session", "Error", err.Error())
	}
}

func (c *Controller) IsSessionClosed() bool {
	return c.sessionClosed.Load()
}

// DisposeDebugger tells the debugger the VM is going away and lets every thread run.
// With prepareReconnect the session stays open for another debugger to attach;
// otherwise the session is ended and the controller stops.
// The returned channel is closed when disposal is complete.
func (c *Controller) DisposeDebugger(prepareReconnect bool) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		defer close(done)

		if err := resiliency.CallCatchingPanic(c.log, c.listener.VMDied); err != nil {
			c.log.Error(err, "Could not notify the debugger that the VM died")
		}

		c.ClearBreakpoints()
		c.eventFilters.Clear()
		c.commandRequestIDs.Clear()
		c.fieldBreakpointExpected.Clear()
		c.methodBreakpointExpected.Clear()

		if prepareReconnect {
			c.reportFatal(c.ResumeAll(false))
			return
		}

		c.EndSession()
		c.reportFatal(c.ResumeAll(true))
		c.cancel()
	}()

	return done
}
