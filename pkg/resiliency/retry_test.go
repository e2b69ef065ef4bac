// Copyright (c) Microsoft Corporation. All rights reserved.

package resiliency_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"

	"github.com/wiltonlazary/jdwpcore/pkg/resiliency"
	"github.com/wiltonlazary/jdwpcore/pkg/testutil"
)

func TestRetryGetSucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	attempts := 0
	val, err := resiliency.RetryGet(ctx, backoff.NewConstantBackOff(time.Millisecond), func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("not yet")
		}
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, val)
	require.Equal(t, 3, attempts)
}

func TestRetryGetStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	ctx, cancel := testutil.GetTestContext(t, 10*time.Second)
	defer cancel()

	attempts := 0
	permanentErr := errors.New("will never work")
	_, err := resiliency.RetryGet(ctx, backoff.NewConstantBackOff(time.Millisecond), func() (string, error) {
		attempts++
		return "", resiliency.Permanent(permanentErr)
	})
	require.ErrorIs(t, err, permanentErr)
	require.Equal(t, 1, attempts)
}

func TestRetryGetReportsLastAttemptErrorOnCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	attemptErr := errors.New("connection refused")
	_, err := resiliency.RetryGet(ctx, backoff.NewConstantBackOff(5*time.Millisecond), func() (int, error) {
		return 0, attemptErr
	})
	require.ErrorIs(t, err, attemptErr)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCallCatchingPanicReturnsError(t *testing.T) {
	t.Parallel()

	err := resiliency.CallCatchingPanic(testutil.NewLogForTesting(t.Name()), func() error {
		panic("kaboom")
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "kaboom")
}
