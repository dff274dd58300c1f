package runner

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/ethereum-optimism/infra/op-testengine/types"
)

// Job is one child scheduled by a Dispatcher.
type Job struct {
	// Begin runs on the dispatching goroutine, in declaration order, right
	// before the child runs. It reports false when the child reached a
	// terminal state without running (skipped or cancelled).
	Begin func(ctx context.Context) bool
	// Execute runs the child to a terminal state.
	Execute func(ctx context.Context)
	// Pooled jobs hold a token of the session-wide pool while executing.
	Pooled bool
}

// Dispatcher launches the children of one suite and returns once all of
// them reached a terminal state.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobs []Job)
}

// NewDispatcher returns the dispatcher implementing a compartment. pool may
// be nil, in which case parallel jobs are bounded by the compartment only.
func NewDispatcher(c types.Compartment, pool *semaphore.Weighted) Dispatcher {
	if c.IsSequential() {
		return sequentialDispatcher{}
	}
	return &parallelDispatcher{limit: c.Limit, pool: pool}
}

// sequentialDispatcher runs children one at a time on the calling goroutine;
// each child is terminal before the next begins.
type sequentialDispatcher struct{}

func (sequentialDispatcher) Dispatch(ctx context.Context, jobs []Job) {
	for _, job := range jobs {
		if job.Begin(ctx) {
			job.Execute(ctx)
		}
	}
}

// parallelDispatcher runs children concurrently. With a limit, at most limit
// children are running at any time; the remaining ones wait for a slot in
// declaration order.
type parallelDispatcher struct {
	limit int
	pool  *semaphore.Weighted
}

func (p *parallelDispatcher) Dispatch(ctx context.Context, jobs []Job) {
	var slots *semaphore.Weighted
	if p.limit > 0 {
		slots = semaphore.NewWeighted(int64(p.limit))
	}

	var wg sync.WaitGroup
	for _, job := range jobs {
		release := p.acquire(ctx, slots, job.Pooled)
		// Begin observes the cancellation when acquiring failed.
		if !job.Begin(ctx) {
			release()
			continue
		}
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			defer release()
			job.Execute(ctx)
		}(job)
	}
	wg.Wait()
}

// acquire blocks until the job may run and returns the matching release.
// On cancellation it returns with nothing held.
func (p *parallelDispatcher) acquire(ctx context.Context, slots *semaphore.Weighted, pooled bool) func() {
	var held []*semaphore.Weighted
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Release(1)
		}
	}
	for _, sem := range []*semaphore.Weighted{slots, p.poolFor(pooled)} {
		if sem == nil {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			release()
			return func() {}
		}
		held = append(held, sem)
	}
	return release
}

func (p *parallelDispatcher) poolFor(pooled bool) *semaphore.Weighted {
	if !pooled {
		return nil
	}
	return p.pool
}
