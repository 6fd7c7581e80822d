// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package igzip

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// pool is the worker pool adaptor: submit(job) hands back a handle, and
// handle.wait() blocks the submitting goroutine until that job's result is
// ready. Results are delivered exactly once per handle over a buffered,
// single-value channel, so waiting is safe from the owner goroutine alone.
//
// The pool does not reorder results: pipelines rely on the owner popping
// handles from its own FIFO in submission order, not on completion order,
// so a job that finishes late simply makes wait() block a little longer.
type pool[In any, Out any] struct {
	sem  *semaphore.Weighted
	g    *errgroup.Group
	work func(In) (Out, error)
}

// handle is returned by pool.submit. Exactly one wait() call should be
// made per handle.
type handle[Out any] struct {
	result chan jobResult[Out]
}

type jobResult[Out any] struct {
	value Out
	err   error
}

// newPool creates a pool with a fixed number of worker slots. threads <= 0
// selects runtime.NumCPU(), matching spec.md's "0 => default" rule.
func newPool[In any, Out any](threads int, work func(In) (Out, error)) *pool[In, Out] {
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	return &pool[In, Out]{
		sem:  semaphore.NewWeighted(int64(threads)),
		g:    new(errgroup.Group),
		work: work,
	}
}

// submit blocks until a worker slot is free, then dispatches in on its own
// goroutine and returns immediately with a handle for the result.
func (p *pool[In, Out]) submit(ctx context.Context, in In) (*handle[Out], error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	h := &handle[Out]{result: make(chan jobResult[Out], 1)}
	p.g.Go(func() error {
		defer p.sem.Release(1)
		v, err := p.work(in)
		h.result <- jobResult[Out]{value: v, err: err}
		return err
	})
	return h, nil
}

// wait blocks until the job behind h has completed and returns its result.
func (h *handle[Out]) wait() (Out, error) {
	r := <-h.result
	return r.value, r.err
}

// close waits for every goroutine the pool has ever spawned to finish and
// returns the first error any of them returned. Callers are expected to
// have already drained every handle they submitted; this is a defensive
// backstop against goroutine leaks, not the primary error-reporting path.
func (p *pool[In, Out]) close() error {
	return p.g.Wait()
}
