/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dapevents

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/go-dap"
	"github.com/stretchr/testify/require"

	"github.com/wiltonlazary/jdwpcore/internal/jdwp"
	"github.com/wiltonlazary/jdwpcore/internal/jdwp/jdwptest"
	"github.com/wiltonlazary/jdwpcore/pkg/testutil"
)

const testTimeout = 10 * time.Second

type pipeFixture struct {
	ctx      context.Context
	listener *Listener
	frontEnd Transport
	conn     net.Conn
}

func newPipeFixture(t *testing.T) *pipeFixture {
	ctx, cancel := testutil.GetTestContext(t, testTimeout)
	t.Cleanup(cancel)

	client, server := net.Pipe()
	require.NoError(t, client.SetReadDeadline(time.Now().Add(testTimeout)))

	listener := NewListener(ctx, NewConnTransport(server), testutil.NewLogForTesting(t.Name()))
	frontEnd := NewConnTransport(client)
	t.Cleanup(func() {
		_ = frontEnd.Close()
		_ = listener.Close()
	})

	return &pipeFixture{ctx: ctx, listener: listener, frontEnd: frontEnd, conn: client}
}

func (f *pipeFixture) read(t *testing.T) dap.Message {
	msg, err := f.frontEnd.ReadMessage()
	require.NoError(t, err)
	return msg
}

func TestStoppedEvents(t *testing.T) {
	t.Parallel()

	f := newPipeFixture(t)
	thread := jdwptest.NewThread(7, "main")
	frame := &jdwp.CallFrame{ThreadID: 7, CodeIndex: 20}

	filter := jdwp.NewRequestFilter(3)
	info := jdwp.NewBreakpointInfo(filter, jdwp.LineBreakpoint, jdwp.SuspendPolicyAll)
	require.NoError(t, f.listener.BreakpointHit(info, frame, thread))

	stopped, ok := f.read(t).(*dap.StoppedEvent)
	require.True(t, ok)
	require.Equal(t, 1, stopped.Seq)
	require.Equal(t, "stopped", stopped.Event.Event)
	require.Equal(t, reasonBreakpoint, stopped.Body.Reason)
	require.Equal(t, 7, stopped.Body.ThreadId)
	require.True(t, stopped.Body.AllThreadsStopped)
	require.Equal(t, []int{3}, stopped.Body.HitBreakpointIds)
	require.Equal(t, frame.String(), stopped.Body.Description)

	stepping := jdwp.NewSteppingInfo(4, jdwp.SuspendPolicyEventThread, false, false, jdwp.StepOver)
	require.NoError(t, f.listener.StepCompleted(stepping, frame))

	stopped, ok = f.read(t).(*dap.StoppedEvent)
	require.True(t, ok)
	require.Equal(t, 2, stopped.Seq)
	require.Equal(t, reasonStep, stopped.Body.Reason)
	require.Equal(t, 7, stopped.Body.ThreadId)
	require.False(t, stopped.Body.AllThreadsStopped)

	exceptionInfo := jdwp.NewBreakpointInfo(jdwp.NewRequestFilter(5), jdwp.ExceptionBreakpoint, jdwp.SuspendPolicyEventThread)
	require.NoError(t, f.listener.ExceptionThrown(exceptionInfo, thread, "java.lang.IllegalStateException", []*jdwp.CallFrame{frame}))

	stopped, ok = f.read(t).(*dap.StoppedEvent)
	require.True(t, ok)
	require.Equal(t, reasonException, stopped.Body.Reason)
	require.Equal(t, "java.lang.IllegalStateException", stopped.Body.Text)

	fieldInfo := &jdwp.FieldBreakpointInfo{
		BreakpointInfo: jdwp.NewBreakpointInfo(jdwp.NewRequestFilter(6), jdwp.FieldBreakpoint, jdwp.SuspendPolicyEventThread),
		FieldName:      "counter",
		Modification:   true,
	}
	require.NoError(t, f.listener.FieldModificationBreakpointHit(&jdwp.FieldBreakpointEvent{Info: fieldInfo, Value: 12}, thread, frame))

	stopped, ok = f.read(t).(*dap.StoppedEvent)
	require.True(t, ok)
	require.Equal(t, reasonDataBreakpoint, stopped.Body.Reason)
	require.Equal(t, "field 'counter' set to 12", stopped.Body.Text)
}

func TestVMDiedSendsExitedAndTerminated(t *testing.T) {
	t.Parallel()

	f := newPipeFixture(t)
	require.NoError(t, f.listener.VMDied())

	exited, ok := f.read(t).(*dap.ExitedEvent)
	require.True(t, ok)
	require.Equal(t, 0, exited.Body.ExitCode)

	_, ok = f.read(t).(*dap.TerminatedEvent)
	require.True(t, ok)
}

func TestThreadResumed(t *testing.T) {
	t.Parallel()

	f := newPipeFixture(t)
	require.NoError(t, f.listener.ThreadResumed(jdwptest.NewThread(2, "worker"), true))

	continued, ok := f.read(t).(*dap.ContinuedEvent)
	require.True(t, ok)
	require.Equal(t, 2, continued.Body.ThreadId)
	require.True(t, continued.Body.AllThreadsContinued)
}

func TestThreadEntry(t *testing.T) {
	t.Parallel()

	f := newPipeFixture(t)
	require.NoError(t, f.listener.ThreadEntry(jdwptest.NewThread(3, "main")))

	stopped, ok := f.read(t).(*dap.StoppedEvent)
	require.True(t, ok)
	require.Equal(t, reasonEntry, stopped.Body.Reason)
	require.Equal(t, 3, stopped.Body.ThreadId)
	require.Empty(t, stopped.Body.HitBreakpointIds)
}

func TestWriteFailureIsSticky(t *testing.T) {
	t.Parallel()

	f := newPipeFixture(t)
	require.NoError(t, f.conn.Close())

	thread := jdwptest.NewThread(1, "main")
	var lastErr error
	testutil.WaitFor(t, f.ctx, "event delivery fails", func() bool {
		lastErr = f.listener.ThreadResumed(thread, false)
		return lastErr != nil
	})
	require.True(t, IsConnectionError(lastErr))
}

func TestClosedListenerRejectsEvents(t *testing.T) {
	t.Parallel()

	f := newPipeFixture(t)
	go func() {
		// Drain whatever is still queued so that Close() can finish.
		for {
			if _, err := f.frontEnd.ReadMessage(); err != nil {
				return
			}
		}
	}()

	require.NoError(t, f.listener.ThreadResumed(jdwptest.NewThread(1, "main"), false))
	require.NoError(t, f.listener.Close())
	require.NoError(t, f.listener.Close())

	err := f.listener.VMDied()
	require.ErrorIs(t, err, ErrListenerClosed)
}
