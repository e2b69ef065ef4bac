/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package jdwp

import (
	"errors"
)

var (
	// ErrEngineUnavailable is returned by engines when a thread cannot be suspended or resumed
	// because it has terminated or the session has been closed.
	ErrEngineUnavailable = errors.New("execution engine unavailable")

	// ErrNoSuchSourceLine is returned by engines when a line breakpoint refers to a line that does not exist.
	ErrNoSuchSourceLine = errors.New("no such source line")

	// ErrResumeFailed is returned when the engine fails to resume a thread.
	// The controller and the engine no longer agree on the state of the thread.
	ErrResumeFailed = errors.New("failed to resume thread")

	// ErrEventDeliveryFailed is returned when an event could not be sent to the debugger.
	ErrEventDeliveryFailed = errors.New("failed to send event to debugger")

	// ErrThreadJobFailed is returned when a job posted for a suspended thread fails.
	ErrThreadJobFailed = errors.New("thread job failed")

	// ErrInvalidOptions is returned when the JDWP agent options cannot be parsed.
	ErrInvalidOptions = errors.New("invalid JDWP options")
)

// IsFatal returns true if the error means the controller and the engine have desynchronized
// and continuing the debugging session is unsafe.
func IsFatal(err error) bool {
	return errors.Is(err, ErrResumeFailed) ||
		errors.Is(err, ErrEventDeliveryFailed) ||
		errors.Is(err, ErrThreadJobFailed)
}

// IsTransient returns true if the error is a benign engine condition that is treated as a no-op.
func IsTransient(err error) bool {
	return errors.Is(err, ErrEngineUnavailable) ||
		errors.Is(err, ErrNoSuchSourceLine)
}
