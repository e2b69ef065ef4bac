/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package dapevents

import (
	"errors"
	"time"
)

const (
	dialInitialInterval = 50 * time.Millisecond
	dialMaxInterval     = time.Second
)

var (
	// ErrTransportClosed is returned when reading from or writing to a closed transport.
	ErrTransportClosed = errors.New("transport is closed")

	// ErrDialFailed is returned when the connection to the debugger front end could not be established.
	ErrDialFailed = errors.New("could not connect to debugger front end")

	// ErrListenerClosed is returned for events reported after the listener was closed.
	ErrListenerClosed = errors.New("event listener is closed")
)

// IsConnectionError returns true if the error means the debugger front end is gone.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrTransportClosed) ||
		errors.Is(err, ErrDialFailed) ||
		errors.Is(err, ErrListenerClosed)
}
