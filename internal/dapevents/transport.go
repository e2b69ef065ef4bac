/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dapevents

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
	"github.com/google/go-dap"

	"github.com/wiltonlazary/jdwpcore/pkg/resiliency"
)

// Transport carries DAP messages to and from a debugger front end.
// Writes are serialized; ReadMessage must not be called concurrently with itself.
type Transport interface {
	ReadMessage() (dap.Message, error)
	WriteMessage(msg dap.Message) error
	Close() error
}

// streamTransport frames DAP messages over a pair of byte streams (a network connection, or stdin/stdout).
type streamTransport struct {
	reader  *bufio.Reader
	writer  *bufio.Writer
	closers []io.Closer

	writeLock *sync.Mutex
	stateLock *sync.Mutex
	closed    bool
}

// NewConnTransport creates a transport backed by a network connection.
func NewConnTransport(conn net.Conn) Transport {
	return newStreamTransport(conn, conn, conn)
}

// NewStdioTransport creates a transport backed by standard streams of the process (or any pair of streams).
func NewStdioTransport(stdin io.ReadCloser, stdout io.WriteCloser) Transport {
	return newStreamTransport(stdin, stdout, stdin, stdout)
}

func newStreamTransport(r io.Reader, w io.Writer, closers ...io.Closer) *streamTransport {
	return &streamTransport{
		reader:    bufio.NewReader(r),
		writer:    bufio.NewWriter(w),
		closers:   closers,
		writeLock: &sync.Mutex{},
		stateLock: &sync.Mutex{},
	}
}

func (t *streamTransport) isClosed() bool {
	t.stateLock.Lock()
	defer t.stateLock.Unlock()
	return t.closed
}

func (t *streamTransport) ReadMessage() (dap.Message, error) {
	if t.isClosed() {
		return nil, ErrTransportClosed
	}

	msg, readErr := dap.ReadProtocolMessage(t.reader)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read DAP message: %w", readErr)
	}
	return msg, nil
}

func (t *streamTransport) WriteMessage(msg dap.Message) error {
	if t.isClosed() {
		return ErrTransportClosed
	}

	t.writeLock.Lock()
	defer t.writeLock.Unlock()

	if writeErr := dap.WriteProtocolMessage(t.writer, msg); writeErr != nil {
		return fmt.Errorf("failed to write DAP message: %w", writeErr)
	}
	if flushErr := t.writer.Flush(); flushErr != nil {
		return fmt.Errorf("failed to flush DAP message: %w", flushErr)
	}
	return nil
}

func (t *streamTransport) Close() error {
	t.stateLock.Lock()
	defer t.stateLock.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	var errs []error
	for _, closer := range t.closers {
		if closeErr := closer.Close(); closeErr != nil {
			errs = append(errs, closeErr)
		}
	}
	return errors.Join(errs...)
}

// Dial connects to a debugger front end listening on the address, retrying with exponential back-off
// until the connection succeeds or the context is done.
func Dial(ctx context.Context, address string, log logr.Logger) (Transport, error) {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(dialInitialInterval),
		backoff.WithMaxInterval(dialMaxInterval),
		backoff.WithMaxElapsedTime(0), // Bounded by the context.
	)

	conn, err := resiliency.RetryGet(ctx, b, func() (net.Conn, error) {
		var d net.Dialer
		conn, dialErr := d.DialContext(ctx, "tcp", address)
		if dialErr != nil {
			log.V(1).Info("Debugger front end not reachable yet", "Address", address, "Error", dialErr.Error())
			return nil, dialErr
		}
		return conn, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDialFailed, address, err)
	}

	log.Info("Connected to debugger front end", "Address", address)
	return NewConnTransport(conn), nil
}

var _ Transport = (*streamTransport)(nil)
