/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dapevents

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/google/go-dap"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/nettest"

	"github.com/wiltonlazary/jdwpcore/pkg/testutil"
)

func TestDialConnectsToFrontEnd(t *testing.T) {
	t.Parallel()

	ctx, cancel := testutil.GetTestContext(t, testTimeout)
	defer cancel()

	ln, listenErr := nettest.NewLocalListener("tcp")
	require.NoError(t, listenErr)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, acceptErr := ln.Accept()
		if acceptErr == nil {
			accepted <- conn
		}
	}()

	transport, dialErr := Dial(ctx, ln.Addr().String(), testutil.NewLogForTesting(t.Name()))
	require.NoError(t, dialErr)
	defer transport.Close()

	var serverConn net.Conn
	select {
	case serverConn = <-accepted:
	case <-ctx.Done():
		require.Fail(t, "connection was not accepted")
	}
	frontEnd := NewConnTransport(serverConn)
	defer frontEnd.Close()

	event := &dap.InitializedEvent{
		Event: dap.Event{
			ProtocolMessage: dap.ProtocolMessage{Seq: 1, Type: "event"},
			Event:           "initialized",
		},
	}
	require.NoError(t, transport.WriteMessage(event))

	msg, readErr := frontEnd.ReadMessage()
	require.NoError(t, readErr)
	require.IsType(t, &dap.InitializedEvent{}, msg)
}

func TestDialGivesUpWhenContextIsDone(t *testing.T) {
	t.Parallel()

	ln, listenErr := nettest.NewLocalListener("tcp")
	require.NoError(t, listenErr)
	address := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, dialErr := Dial(ctx, address, testutil.NewLogForTesting(t.Name()))
	require.ErrorIs(t, dialErr, ErrDialFailed)
	require.True(t, IsConnectionError(dialErr))
}

func TestClosedTransport(t *testing.T) {
	t.Parallel()

	stdinReader, stdinWriter := io.Pipe()
	stdoutReader, stdoutWriter := io.Pipe()
	defer stdinWriter.Close()
	defer stdoutReader.Close()

	transport := NewStdioTransport(stdinReader, stdoutWriter)
	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())

	_, readErr := transport.ReadMessage()
	require.ErrorIs(t, readErr, ErrTransportClosed)
	require.ErrorIs(t, transport.WriteMessage(&dap.TerminatedEvent{}), ErrTransportClosed)
}
