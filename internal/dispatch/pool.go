// Package dispatch runs watch-triggered state advances off the coordination
// client's own callback goroutine, so a lock object's state machine never
// makes a blocking coordination-client call while a watch callback is still
// on the stack (the teacher's watch-dispatch reentrancy concern).
package dispatch

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of concurrently in-flight state-advance tasks
// spawned from watch callbacks across every lock object sharing it.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a pool that runs at most maxConcurrent tasks at once.
func NewPool(maxConcurrent int64) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Pool{sem: semaphore.NewWeighted(maxConcurrent)}
}

// Go queues fn to run on its own goroutine once a slot is free. It never
// blocks the caller: the spawned goroutine waits for the semaphore slot and
// then runs fn. If ctx is done before a slot is acquired, fn does not run.
func (p *Pool) Go(ctx context.Context, fn func()) {
	go func() {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		fn()
	}()
}
