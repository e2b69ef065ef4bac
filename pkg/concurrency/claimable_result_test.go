/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClaimableResultOnlyOneClaimer(t *testing.T) {
	t.Parallel()

	cr := NewClaimableResult[string]()
	const contenders = 16
	var claimed atomic.Int32
	var wg sync.WaitGroup

	for range contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cr.Claim() {
				claimed.Add(1)
				cr.Publish("done")
			}
			require.Equal(t, "done", cr.Value())
		}()
	}

	wg.Wait()
	require.Equal(t, int32(1), claimed.Load())
	require.True(t, cr.IsPublished())
}

func TestClaimableResultPublishRequiresClaim(t *testing.T) {
	t.Parallel()

	cr := NewClaimableResult[int]()
	require.Panics(t, func() { cr.Publish(1) })

	require.True(t, cr.Claim())
	require.False(t, cr.IsPublished())
	cr.Publish(1)
	require.Panics(t, func() { cr.Publish(2) })
	require.Equal(t, 1, cr.Value())
}

func TestClaimableResultValueContext(t *testing.T) {
	t.Parallel()

	cr := NewClaimableResult[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := cr.ValueContext(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.True(t, cr.Claim())
	cr.Publish(7)
	select {
	case <-cr.Done():
	default:
		require.Fail(t, "done channel should be closed after publishing")
	}

	value, err := cr.ValueContext(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7, value)
}
