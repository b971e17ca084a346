package lock

import (
	"context"
	"time"

	"github.com/vitessio/zlock/internal/zkclient"
	"github.com/vitessio/zlock/internal/zkpath"
)

// ReadLock is a shared lock: any number of readers may hold it
// simultaneously as long as no lower-sequenced writer is waiting or held.
// It corresponds to ZkReadLock.
type ReadLock struct {
	base *baseLock
}

// WriteLock is a shared-exclusive lock: it behaves like ExclusiveLock for
// ordering (blocked by the nearest lower-sequenced candidate of any kind)
// but is created under the "write-" prefix so readers can distinguish it
// from a plain exclusive lock when deciding what blocks them. It
// corresponds to ZkWriteLock.
type WriteLock struct {
	base *baseLock
}

// NewReadLock creates a read lock named name under root.
func NewReadLock(client *zkclient.Client, root, name string, opts ...ExclusiveOption) *ReadLock {
	b := newBaseLock(client, nil, nil, nil, root, name, zkpath.Read)
	for _, opt := range opts {
		opt(b)
	}
	return &ReadLock{base: b}
}

// NewWriteLock creates a write lock named name under root.
func NewWriteLock(client *zkclient.Client, root, name string, opts ...ExclusiveOption) *WriteLock {
	b := newBaseLock(client, nil, nil, nil, root, name, zkpath.Write)
	for _, opt := range opts {
		opt(b)
	}
	return &WriteLock{base: b}
}

// Acquire blocks until the lock is acquired, timeout elapses, or a
// permanent failure occurs, applying opts.Revoke as described on
// AcquireOptions.
func (l *ReadLock) Acquire(ctx context.Context, timeout *time.Duration, opts AcquireOptions) (bool, error) {
	return l.base.acquireSync(ctx, timeout, opts)
}

// Release releases the lock if held, or returns ErrNotHeld if it is not.
func (l *ReadLock) Release(ctx context.Context) (bool, error) { return l.base.release(ctx) }

// AcquireScoped acquires the lock with opts and returns a Session whose
// Release guarantees the candidate is released on every exit path.
func (l *ReadLock) AcquireScoped(ctx context.Context, timeout *time.Duration, opts AcquireOptions) (*Session, bool, error) {
	ok, err := l.Acquire(ctx, timeout, opts)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &Session{release: func() error {
		_, err := l.Release(context.Background())
		return err
	}}, true, nil
}

// HasLock reports whether this instance currently holds the lock.
func (l *ReadLock) HasLock() bool { return l.base.HasLock() }

// Revoked reports whether this holder has observed a revocation request.
func (l *ReadLock) Revoked() bool { return l.base.IsRevoked() }

// Clear removes the lock parent and all children.
func (l *ReadLock) Clear(ctx context.Context) error { return l.base.clear(ctx) }

// RevokeAll raises the gentle revocation flag.
func (l *ReadLock) RevokeAll(ctx context.Context) error { return l.base.revokeAll(ctx) }

// Acquire blocks until the lock is acquired, timeout elapses, or a
// permanent failure occurs, applying opts.Revoke as described on
// AcquireOptions.
func (l *WriteLock) Acquire(ctx context.Context, timeout *time.Duration, opts AcquireOptions) (bool, error) {
	return l.base.acquireSync(ctx, timeout, opts)
}

// Release releases the lock if held, or returns ErrNotHeld if it is not.
func (l *WriteLock) Release(ctx context.Context) (bool, error) { return l.base.release(ctx) }

// AcquireScoped acquires the lock with opts and returns a Session whose
// Release guarantees the candidate is released on every exit path.
func (l *WriteLock) AcquireScoped(ctx context.Context, timeout *time.Duration, opts AcquireOptions) (*Session, bool, error) {
	ok, err := l.Acquire(ctx, timeout, opts)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &Session{release: func() error {
		_, err := l.Release(context.Background())
		return err
	}}, true, nil
}

// HasLock reports whether this instance currently holds the lock.
func (l *WriteLock) HasLock() bool { return l.base.HasLock() }

// Revoked reports whether this holder has observed a revocation request.
func (l *WriteLock) Revoked() bool { return l.base.IsRevoked() }

// Clear removes the lock parent and all children.
func (l *WriteLock) Clear(ctx context.Context) error { return l.base.clear(ctx) }

// RevokeAll raises the gentle revocation flag.
func (l *WriteLock) RevokeAll(ctx context.Context) error { return l.base.revokeAll(ctx) }
