/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package resiliency

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
)

// MakePanicError turns a recovered panic value into a permanent error and logs it with the stack.
// Returns nil if nothing panicked.
func MakePanicError(recovered any, log logr.Logger) error {
	if recovered == nil {
		return nil
	}

	err, isError := recovered.(error)
	if !isError {
		err = fmt.Errorf("panic: %v", recovered)
	}
	var permanent *backoff.PermanentError
	if !errors.As(err, &permanent) {
		err = Permanent(err)
	}

	log.Error(err, "Recovered from panic", "Stack", string(debug.Stack()))
	return err
}

// CallCatchingPanic runs fn and returns its error, or the panic it raised as an error.
func CallCatchingPanic(log logr.Logger, fn func() error) (err error) {
	defer func() {
		if panicErr := MakePanicError(recover(), log); panicErr != nil {
			err = panicErr
		}
	}()
	return fn()
}
