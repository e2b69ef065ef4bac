/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package resiliency

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryGet calls the factory until it returns a value, returns a permanent error,
// or the back-off policy (or the context) gives up.
// When the context ends the retries, the error of the last attempt is joined to the context error.
func RetryGet[T any](ctx context.Context, b backoff.BackOff, factory func() (T, error)) (T, error) {
	var lastAttemptErr error
	recordAttempt := func(err error, _ time.Duration) {
		lastAttemptErr = err
	}

	value, err := backoff.RetryNotifyWithData(factory, backoff.WithContext(b, ctx), recordAttempt)
	if err == nil {
		return value, nil
	}

	var zero T
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return zero, errors.Join(lastAttemptErr, err)
	}
	return zero, err
}

// Permanent wraps the error so that RetryGet stops immediately when it sees it.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
