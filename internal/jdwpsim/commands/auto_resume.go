/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package commands

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/wiltonlazary/jdwpcore/internal/dapevents"
	"github.com/wiltonlazary/jdwpcore/internal/jdwp"
	"github.com/wiltonlazary/jdwpcore/pkg/resiliency"
	"github.com/wiltonlazary/jdwpcore/pkg/syncmap"
)

const firstStepRequestID = 100

// autoResumer plays the part of the user at the debugger front end: every thread that stops
// is resumed after a delay. After a breakpoint hit the thread first steps over the given number of lines.
type autoResumer struct {
	*dapevents.Listener

	ctrl   *jdwp.Controller
	engine jdwp.ExecutionEngine
	log    logr.Logger
	delay  time.Duration
	steps  int
	queue  *resiliency.WorkQueue

	stepsLeft     syncmap.Map[jdwp.Thread, int]
	nextRequestID atomic.Int32
}

func newAutoResumer(
	ctx context.Context,
	listener *dapevents.Listener,
	engine jdwp.ExecutionEngine,
	delay time.Duration,
	steps int,
	log logr.Logger,
) *autoResumer {
	r := &autoResumer{
		Listener: listener,
		engine:   engine,
		log:      log,
		delay:    delay,
		steps:    steps,
		queue:    resiliency.NewWorkQueue(ctx, resiliency.DefaultConcurrency, log),
	}
	r.nextRequestID.Store(firstStepRequestID - 1)
	return r
}

// attach must be called before any guest thread runs.
func (r *autoResumer) attach(ctrl *jdwp.Controller) {
	r.ctrl = ctrl
}

func (r *autoResumer) ThreadEntry(thread jdwp.Thread) error {
	if err := r.Listener.ThreadEntry(thread); err != nil {
		return err
	}
	r.schedule(thread, false)
	return nil
}

func (r *autoResumer) BreakpointHit(info *jdwp.BreakpointInfo, frame *jdwp.CallFrame, thread jdwp.Thread) error {
	if err := r.Listener.BreakpointHit(info, frame, thread); err != nil {
		return err
	}
	all := info.SuspendPolicy == jdwp.SuspendPolicyAll
	if !all {
		r.stepsLeft.Store(thread, r.steps)
	}
	r.schedule(thread, all)
	return nil
}

func (r *autoResumer) StepCompleted(info *jdwp.SteppingInfo, frame *jdwp.CallFrame) error {
	if err := r.Listener.StepCompleted(info, frame); err != nil {
		return err
	}
	if thread := r.threadByID(frame.ThreadID); thread != nil {
		r.schedule(thread, info.SuspendPolicy == jdwp.SuspendPolicyAll)
	}
	return nil
}

func (r *autoResumer) ExceptionThrown(info *jdwp.BreakpointInfo, thread jdwp.Thread, exception any, frames []*jdwp.CallFrame) error {
	if err := r.Listener.ExceptionThrown(info, thread, exception, frames); err != nil {
		return err
	}
	r.schedule(thread, info.SuspendPolicy == jdwp.SuspendPolicyAll)
	return nil
}

func (r *autoResumer) threadByID(id int64) jdwp.Thread {
	for _, thread := range r.engine.AllGuestThreads() {
		if thread.ID() == id {
			return thread
		}
	}
	return nil
}

func (r *autoResumer) schedule(thread jdwp.Thread, all bool) {
	err := r.queue.Enqueue(func(ctx context.Context) {
		timer := time.NewTimer(r.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		r.resume(thread, all)
	})
	if err != nil {
		r.log.V(1).Info("Not resuming thread, shutting down", "Thread", thread.Name())
	}
}

func (r *autoResumer) resume(thread jdwp.Thread, all bool) {
	if left, _ := r.stepsLeft.Load(thread); left > 0 {
		r.stepsLeft.Store(thread, left-1)
		requestID := int(r.nextRequestID.Add(1))
		r.ctrl.SetCommandRequestID(thread, requestID, jdwp.SuspendPolicyEventThread, false, false, jdwp.StepOver)
		r.log.V(1).Info("Stepping over", "Thread", thread.Name(), "RequestID", requestID)
	}

	// The front end must see the thread continue before it sees the next stop.
	if notifyErr := r.Listener.ThreadResumed(thread, all); notifyErr != nil && !dapevents.IsConnectionError(notifyErr) {
		r.log.Error(notifyErr, "Could not report resumed thread", "Thread", thread.Name())
	}

	var err error
	if all {
		err = r.ctrl.ResumeAll(false)
	} else {
		_, err = r.ctrl.Resume(thread, false)
	}
	if err != nil {
		r.log.Error(err, "Could not resume", "Thread", thread.Name(), "All", all)
	}
}

var _ jdwp.EventListener = (*autoResumer)(nil)
