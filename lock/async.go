package lock

import (
	"context"
	"sync"
	"time"

	"github.com/vitessio/zlock/internal/zkclient"
	"github.com/vitessio/zlock/internal/zkpath"
)

// AsyncLock is the non-blocking lock API: Acquire and Release initiate work
// and return immediately, driven to completion on a background worker from
// the shared dispatch pool; WaitForAcquire/WaitForRelease are the only
// methods that block the caller. It corresponds to ZkAsyncLock.
type AsyncLock struct {
	base *baseLock

	mu     sync.Mutex
	cancel context.CancelFunc
	failed bool
	err    error
}

// NewAsyncLock creates an asynchronous exclusive lock named name under
// root. Async read/write variants are not provided: the distilled protocol
// only specifies an asynchronous exclusive lock.
func NewAsyncLock(client *zkclient.Client, root, name string, opts ...ExclusiveOption) *AsyncLock {
	b := newBaseLock(client, nil, nil, nil, root, name, zkpath.Exclusive)
	for _, opt := range opts {
		opt(b)
	}
	return &AsyncLock{base: b}
}

// Acquire initiates acquisition and returns immediately. Progress is driven
// by the background worker; observe it via Acquired, CandidateCreated, or
// block with WaitForAcquire.
func (l *AsyncLock) Acquire() {
	l.mu.Lock()
	l.failed = false
	l.err = nil
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.mu.Unlock()

	l.base.pool.Go(ctx, func() {
		ok, err := l.base.acquireSync(ctx, nil, AcquireOptions{})
		if !ok {
			l.mu.Lock()
			l.failed = true
			l.err = err
			l.mu.Unlock()
			l.base.mu.Lock()
			l.base.cond.Broadcast()
			l.base.mu.Unlock()
		}
	})
}

// Release initiates release and returns immediately. If an Acquire is still
// in flight, it is cancelled first so Release does not have to wait for a
// predecessor watch to fire.
func (l *AsyncLock) Release() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	l.base.pool.Go(context.Background(), func() {
		_, _ = l.base.release(context.Background())
	})
}

// WaitForAcquire blocks until Acquired transitions to true or the attempt
// fails. timeout == nil waits indefinitely; if timeout elapses first, it
// returns ErrTimeout.
func (l *AsyncLock) WaitForAcquire(timeout *time.Duration) error {
	ctx, cancel := contextFor(timeout)
	defer cancel()

	if err := l.base.waitUntil(ctx, func() bool {
		return l.base.acquired || l.isFailed()
	}); err != nil {
		return ErrTimeout
	}
	if l.isFailed() {
		return l.lastErr()
	}
	return nil
}

// WaitForRelease blocks until Acquired transitions to false, returning
// ErrTimeout if timeout elapses first.
func (l *AsyncLock) WaitForRelease(timeout *time.Duration) error {
	ctx, cancel := contextFor(timeout)
	defer cancel()

	if err := l.base.waitUntil(ctx, func() bool {
		return !l.base.acquired
	}); err != nil {
		return ErrTimeout
	}
	return nil
}

// AcquireScoped combines Acquire and WaitForAcquire on entry, and returns a
// Session whose Release combines Release and WaitForRelease, mirroring the
// teacher's context-manager form of the asynchronous lock.
func (l *AsyncLock) AcquireScoped(timeout *time.Duration) (*Session, error) {
	l.Acquire()
	if err := l.WaitForAcquire(timeout); err != nil {
		return nil, err
	}
	return &Session{release: func() error {
		l.Release()
		return l.WaitForRelease(nil)
	}}, nil
}

// Acquired reports whether the lock is currently held.
func (l *AsyncLock) Acquired() bool { return l.base.HasLock() }

// CandidateCreated reports whether the current attempt's ephemeral node has
// been created.
func (l *AsyncLock) CandidateCreated() bool { return l.base.CandidateCreated() }

// Revoked reports whether this holder has observed a revocation request.
func (l *AsyncLock) Revoked() bool { return l.base.IsRevoked() }

func (l *AsyncLock) isFailed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failed
}

func (l *AsyncLock) lastErr() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func contextFor(timeout *time.Duration) (context.Context, context.CancelFunc) {
	if timeout == nil {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), *timeout)
}
