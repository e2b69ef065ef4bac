/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package jdwp

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/wiltonlazary/jdwpcore/pkg/concurrency"
	"github.com/wiltonlazary/jdwpcore/pkg/resiliency"
)

// ThreadJobResult is the outcome of a job that ran on a suspended thread.
type ThreadJobResult[T any] struct {
	Value T
	Err   error
}

// Job is the type-erased view of a ThreadJob, as accepted by Controller.PostJobForThread().
type Job interface {
	Thread() Thread
	SuspensionStrategy() SuspendPolicy
	run(log logr.Logger) error
}

// ThreadJob is work that must run on the goroutine of a specific suspended guest thread,
// e.g. a method invocation requested by the debugger. The thread runs the job
// and then parks again; running the job does not count as a resume.
type ThreadJob[T any] struct {
	thread   Thread
	strategy SuspendPolicy
	work     func() (T, error)
	result   *concurrency.ClaimableResult[ThreadJobResult[T]]
}

// NewThreadJob creates a job for the thread.
// The strategy tells how other threads are treated while the job runs: with SuspendPolicyAll,
// all other threads are resumed for the duration of the job (so that the job cannot deadlock
// on a monitor held by another suspended thread) and suspended again afterwards.
func NewThreadJob[T any](thread Thread, strategy SuspendPolicy, work func() (T, error)) *ThreadJob[T] {
	return &ThreadJob[T]{
		thread:   thread,
		strategy: strategy,
		work:     work,
		result:   concurrency.NewClaimableResult[ThreadJobResult[T]](),
	}
}

func (j *ThreadJob[T]) Thread() Thread {
	return j.thread
}

func (j *ThreadJob[T]) SuspensionStrategy() SuspendPolicy {
	return j.strategy
}

// Done returns a channel that is closed when the job has completed.
func (j *ThreadJob[T]) Done() <-chan struct{} {
	return j.result.Done()
}

// Result waits for the job to complete and returns its result.
func (j *ThreadJob[T]) Result() ThreadJobResult[T] {
	return j.result.Value()
}

// ResultContext waits for the job to complete, or for the context to be done.
func (j *ThreadJob[T]) ResultContext(ctx context.Context) (ThreadJobResult[T], error) {
	return j.result.ValueContext(ctx)
}

func (j *ThreadJob[T]) run(log logr.Logger) error {
	if !j.result.Claim() {
		return nil
	}

	var res ThreadJobResult[T]
	func() {
		defer func() {
			if panicErr := resiliency.MakePanicError(recover(), log); panicErr != nil {
				res.Err = panicErr
			}
		}()
		res.Value, res.Err = j.work()
	}()

	if res.Err != nil {
		res.Err = fmt.Errorf("%w on thread %s: %w", ErrThreadJobFailed, j.thread.Name(), res.Err)
	}
	j.result.Publish(res)
	return res.Err
}

var _ Job = (*ThreadJob[any])(nil)
