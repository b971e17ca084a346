package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGoRunsEveryTask(t *testing.T) {
	p := NewPool(4)
	var n int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		p.Go(context.Background(), func() {
			defer wg.Done()
			atomic.AddInt32(&n, 1)
		})
	}
	wg.Wait()
	assert.EqualValues(t, 20, atomic.LoadInt32(&n))
}

func TestGoBoundsConcurrency(t *testing.T) {
	p := NewPool(2)
	var current, max int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		p.Go(context.Background(), func() {
			defer wg.Done()
			c := atomic.AddInt32(&current, 1)
			mu.Lock()
			if c > max {
				max = c
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&current, -1)
		})
	}
	wg.Wait()
	assert.LessOrEqual(t, int(max), 2)
}

func TestGoAbortsOnCancelledContext(t *testing.T) {
	p := NewPool(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := make(chan struct{}, 1)
	p.Go(ctx, func() { ran <- struct{}{} })

	select {
	case <-ran:
		t.Fatal("task should not have run with an already-cancelled context")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNewPoolDefaultsNonPositiveToOne(t *testing.T) {
	p := NewPool(0)
	assert.NotNil(t, p.sem)
	assert.True(t, p.sem.TryAcquire(1))
	assert.False(t, p.sem.TryAcquire(1))
}
