// Copyright (c) Microsoft Corporation. All rights reserved.

package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/wait"
)

const (
	waitPollInterval = 10 * time.Millisecond
	pollImmediately  = true
)

// WaitFor polls the condition until it returns true, failing the test if the context is done first.
func WaitFor(t *testing.T, ctx context.Context, description string, condition func() bool) {
	t.Helper()

	err := wait.PollUntilContextCancel(ctx, waitPollInterval, pollImmediately, func(_ context.Context) (bool, error) {
		return condition(), nil
	})
	require.NoError(t, err, "timed out waiting for: %s", description)
}

// EnsureNever polls the condition for the given duration, failing the test if it ever returns true.
func EnsureNever(t *testing.T, ctx context.Context, duration time.Duration, description string, condition func() bool) {
	t.Helper()

	checkCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	err := wait.PollUntilContextCancel(checkCtx, waitPollInterval, pollImmediately, func(_ context.Context) (bool, error) {
		return condition(), nil
	})
	require.Error(t, err, "unexpected: %s", description)
}
