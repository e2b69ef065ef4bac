/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package resiliency

import (
	"context"
	"math"
	"runtime"

	"github.com/go-logr/logr"
	"github.com/smallnest/chanx"
)

// DefaultConcurrency makes NewWorkQueue start one worker per CPU.
const DefaultConcurrency uint8 = 0

type WorkQueueItem = func(ctx context.Context)

// WorkQueue runs work items on a fixed set of worker goroutines.
// Enqueue() never blocks: items wait in an unbounded backlog until a worker is free.
// Workers stop when the lifetime context is done; items still in the backlog are dropped.
type WorkQueue struct {
	lifetimeCtx context.Context
	log         logr.Logger
	backlog     *chanx.UnboundedChan[WorkQueueItem]
}

func NewWorkQueue(lifetimeCtx context.Context, workers uint8, log logr.Logger) *WorkQueue {
	if workers == DefaultConcurrency {
		workers = uint8(min(runtime.NumCPU(), math.MaxUint8))
	}

	wq := &WorkQueue{
		lifetimeCtx: lifetimeCtx,
		log:         log,
		backlog:     chanx.NewUnboundedChan[WorkQueueItem](lifetimeCtx, int(workers)),
	}
	for range workers {
		go wq.worker()
	}
	return wq
}

func (wq *WorkQueue) Enqueue(work WorkQueueItem) error {
	if err := wq.lifetimeCtx.Err(); err != nil {
		return err
	}

	select {
	case wq.backlog.In <- work:
		return nil
	case <-wq.lifetimeCtx.Done():
		return wq.lifetimeCtx.Err()
	}
}

func (wq *WorkQueue) worker() {
	for {
		select {
		case <-wq.lifetimeCtx.Done():
			return

		case work, isOpen := <-wq.backlog.Out:
			if !isOpen || wq.lifetimeCtx.Err() != nil {
				return
			}
			wq.run(work)
		}
	}
}

func (wq *WorkQueue) run(work WorkQueueItem) {
	defer func() {
		_ = MakePanicError(recover(), wq.log)
	}()
	work(wq.lifetimeCtx)
}
