/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dapevents

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/go-dap"
	"github.com/smallnest/chanx"

	"github.com/wiltonlazary/jdwpcore/internal/jdwp"
)

const (
	outboundInitialCapacity = 16

	reasonEntry              = "entry"
	reasonBreakpoint         = "breakpoint"
	reasonStep               = "step"
	reasonException          = "exception"
	reasonDataBreakpoint     = "data breakpoint"
	reasonFunctionBreakpoint = "function breakpoint"
)

// Listener renders debugger controller events as Debug Adapter Protocol events.
//
// Events are queued and written by a dedicated goroutine, so reporting an event never blocks
// the guest thread on the network. A write failure is sticky: all later events fail with it.
type Listener struct {
	transport Transport
	log       logr.Logger
	ctx       context.Context
	outbound  *chanx.UnboundedChan[dap.Message]
	pumpDone  chan struct{}

	// Protects the fields below and orders sequence numbers with the outbound queue.
	lock     *sync.Mutex
	seq      int
	closed   bool
	writeErr error
}

func NewListener(ctx context.Context, transport Transport, log logr.Logger) *Listener {
	l := &Listener{
		transport: transport,
		log:       log,
		ctx:       ctx,
		outbound:  chanx.NewUnboundedChan[dap.Message](ctx, outboundInitialCapacity),
		pumpDone:  make(chan struct{}),
		lock:      &sync.Mutex{},
	}
	go l.pump()
	return l
}

func (l *Listener) pump() {
	defer close(l.pumpDone)

	for msg := range l.outbound.Out {
		if writeErr := l.transport.WriteMessage(msg); writeErr != nil {
			l.log.Error(writeErr, "Could not send event to debugger front end")
			l.lock.Lock()
			if l.writeErr == nil {
				l.writeErr = writeErr
			}
			l.lock.Unlock()
		}
	}
}

func (l *Listener) enqueue(makeMessage func(event dap.Event) dap.Message, eventName string) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.closed {
		return ErrListenerClosed
	}
	if l.writeErr != nil {
		return fmt.Errorf("%w: %w", ErrTransportClosed, l.writeErr)
	}

	l.seq++
	msg := makeMessage(dap.Event{
		ProtocolMessage: dap.ProtocolMessage{Seq: l.seq, Type: "event"},
		Event:           eventName,
	})

	select {
	case l.outbound.In <- msg:
		return nil
	case <-l.ctx.Done():
		return l.ctx.Err()
	}
}

// Close sends the events that are still queued and closes the transport.
func (l *Listener) Close() error {
	l.lock.Lock()
	if l.closed {
		l.lock.Unlock()
		return nil
	}
	l.closed = true
	close(l.outbound.In)
	l.lock.Unlock()

	<-l.pumpDone
	return l.transport.Close()
}

func (l *Listener) stopped(thread jdwp.Thread, reason string, allThreads bool, description string, text string, hitIDs []int) error {
	return l.enqueue(func(event dap.Event) dap.Message {
		return &dap.StoppedEvent{
			Event: event,
			Body: dap.StoppedEventBody{
				Reason:            reason,
				Description:       description,
				ThreadId:          threadID(thread),
				AllThreadsStopped: allThreads,
				Text:              text,
				HitBreakpointIds:  hitIDs,
			},
		}
	}, "stopped")
}

// ThreadEntry reports a thread that was suspended before it ran any guest code.
func (l *Listener) ThreadEntry(thread jdwp.Thread) error {
	return l.stopped(thread, reasonEntry, false, "Paused on entry", "", nil)
}

func (l *Listener) BreakpointHit(info *jdwp.BreakpointInfo, frame *jdwp.CallFrame, thread jdwp.Thread) error {
	return l.stopped(thread, reasonBreakpoint, info.SuspendPolicy == jdwp.SuspendPolicyAll, frameDescription(frame), "", []int{info.RequestID})
}

func (l *Listener) StepCompleted(info *jdwp.SteppingInfo, frame *jdwp.CallFrame) error {
	var threadID int64
	if frame != nil {
		threadID = frame.ThreadID
	}
	return l.enqueue(func(event dap.Event) dap.Message {
		return &dap.StoppedEvent{
			Event: event,
			Body: dap.StoppedEventBody{
				Reason:            reasonStep,
				Description:       frameDescription(frame),
				ThreadId:          int(threadID),
				AllThreadsStopped: info.SuspendPolicy == jdwp.SuspendPolicyAll,
			},
		}
	}, "stopped")
}

func (l *Listener) ExceptionThrown(info *jdwp.BreakpointInfo, thread jdwp.Thread, exception any, frames []*jdwp.CallFrame) error {
	var top *jdwp.CallFrame
	if len(frames) > 0 {
		top = frames[0]
	}
	return l.stopped(thread, reasonException, info.SuspendPolicy == jdwp.SuspendPolicyAll, frameDescription(top), fmt.Sprint(exception), []int{info.RequestID})
}

func (l *Listener) FieldAccessBreakpointHit(event *jdwp.FieldBreakpointEvent, thread jdwp.Thread, frame *jdwp.CallFrame) error {
	info := event.Info
	return l.stopped(thread, reasonDataBreakpoint, info.SuspendPolicy == jdwp.SuspendPolicyAll, frameDescription(frame),
		fmt.Sprintf("read of field '%s'", info.FieldName), []int{info.RequestID})
}

func (l *Listener) FieldModificationBreakpointHit(event *jdwp.FieldBreakpointEvent, thread jdwp.Thread, frame *jdwp.CallFrame) error {
	info := event.Info
	return l.stopped(thread, reasonDataBreakpoint, info.SuspendPolicy == jdwp.SuspendPolicyAll, frameDescription(frame),
		fmt.Sprintf("field '%s' set to %v", info.FieldName, event.Value), []int{info.RequestID})
}

func (l *Listener) MethodBreakpointHit(event *jdwp.MethodBreakpointEvent, thread jdwp.Thread, frame *jdwp.CallFrame) error {
	text := ""
	if event.Method != nil {
		text = event.Method.Name()
	}
	return l.stopped(thread, reasonFunctionBreakpoint, event.Info.SuspendPolicy == jdwp.SuspendPolicyAll, frameDescription(frame), text, []int{event.Info.RequestID})
}

func (l *Listener) VMDied() error {
	exitedErr := l.enqueue(func(event dap.Event) dap.Message {
		return &dap.ExitedEvent{Event: event, Body: dap.ExitedEventBody{ExitCode: 0}}
	}, "exited")
	if exitedErr != nil {
		return exitedErr
	}
	return l.enqueue(func(event dap.Event) dap.Message {
		return &dap.TerminatedEvent{Event: event}
	}, "terminated")
}

// ThreadResumed tells the front end that the thread (or all threads) continued running.
func (l *Listener) ThreadResumed(thread jdwp.Thread, allThreads bool) error {
	return l.enqueue(func(event dap.Event) dap.Message {
		return &dap.ContinuedEvent{
			Event: event,
			Body: dap.ContinuedEventBody{
				ThreadId:            threadID(thread),
				AllThreadsContinued: allThreads,
			},
		}
	}, "continued")
}

func threadID(thread jdwp.Thread) int {
	if thread == nil {
		return 0
	}
	return int(thread.ID())
}

func frameDescription(frame *jdwp.CallFrame) string {
	if frame == nil {
		return ""
	}
	return frame.String()
}

var _ jdwp.EventListener = (*Listener)(nil)
