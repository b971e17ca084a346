package lock

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vitessio/zlock/internal/dispatch"
	"github.com/vitessio/zlock/internal/zkclient"
	"github.com/vitessio/zlock/internal/zkpath"
)

// ExclusiveLock is a mutual-exclusion lock: at most one holder at a time,
// regardless of any other candidate's kind. It corresponds to ZkLock in the
// source protocol.
type ExclusiveLock struct {
	base *baseLock
}

// ExclusiveOption configures an ExclusiveLock at construction time.
type ExclusiveOption func(*baseLock)

// WithLogger attaches a zap logger to a lock instance.
func WithLogger(logger *zap.Logger) ExclusiveOption {
	return func(b *baseLock) { b.logger = logger.With(zap.String("lock", b.name), zap.String("kind", b.kind.String())) }
}

// WithMetrics attaches a Metrics recorder to a lock instance.
func WithMetrics(m *Metrics) ExclusiveOption {
	return func(b *baseLock) { b.metrics = m }
}

// WithDispatchPool overrides the bounded worker pool used to run
// watch-triggered state advances off the ZK callback goroutine.
func WithDispatchPool(p *dispatch.Pool) ExclusiveOption {
	return func(b *baseLock) { b.pool = p }
}

// NewExclusiveLock creates an exclusive lock named name under root (or
// zkpath.DefaultLockRoot if root is empty). The lock parent is created
// lazily on first Acquire, not here.
func NewExclusiveLock(client *zkclient.Client, root, name string, opts ...ExclusiveOption) *ExclusiveLock {
	b := newBaseLock(client, nil, nil, nil, root, name, zkpath.Exclusive)
	for _, opt := range opts {
		opt(b)
	}
	return &ExclusiveLock{base: b}
}

// Acquire blocks until the lock is acquired, timeout elapses, or a
// permanent failure occurs. timeout == nil waits indefinitely; a zero
// duration is a non-blocking probe that only succeeds if immediately
// acquirable.
func (l *ExclusiveLock) Acquire(ctx context.Context, timeout *time.Duration) (bool, error) {
	return l.base.acquireSync(ctx, timeout, AcquireOptions{})
}

// Release releases the lock if held. It returns true if release completed
// (including when the holder was already gone due to session loss), or
// false with ErrNotHeld if the lock was not held.
func (l *ExclusiveLock) Release(ctx context.Context) (bool, error) {
	return l.base.release(ctx)
}

// AcquireScoped acquires the lock and returns a Session whose Release
// guarantees the candidate is released on every exit path:
//
//	sess, ok, err := l.AcquireScoped(ctx, nil)
//	if err != nil { return err }
//	if !ok { return lock.ErrTimeout }
//	defer sess.Release()
func (l *ExclusiveLock) AcquireScoped(ctx context.Context, timeout *time.Duration) (*Session, bool, error) {
	ok, err := l.Acquire(ctx, timeout)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &Session{release: func() error {
		_, err := l.Release(context.Background())
		return err
	}}, true, nil
}

// HasLock reports whether this instance currently holds the lock.
func (l *ExclusiveLock) HasLock() bool { return l.base.HasLock() }

// Revoked reports whether this holder has observed a revocation request.
func (l *ExclusiveLock) Revoked() bool { return l.base.IsRevoked() }

// Clear removes the lock parent and all children. Intended for tests and
// administrative resets, not normal release.
func (l *ExclusiveLock) Clear(ctx context.Context) error { return l.base.clear(ctx) }

// RevokeAll raises the gentle revocation flag, asking every current holder
// to release voluntarily. It does not itself force release.
func (l *ExclusiveLock) RevokeAll(ctx context.Context) error { return l.base.revokeAll(ctx) }
