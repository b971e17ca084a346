package lock

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/z-division/go-zookeeper/zk"
	"go.uber.org/zap"

	"github.com/vitessio/zlock/internal/candidate"
	"github.com/vitessio/zlock/internal/dispatch"
	"github.com/vitessio/zlock/internal/revoke"
	"github.com/vitessio/zlock/internal/zkclient"
	"github.com/vitessio/zlock/internal/zkpath"
)

// baseLock holds the state and logic shared by ExclusiveLock, ReadLock, and
// WriteLock: candidate lifecycle driving, revocation-flag observation, and
// the broadcast condition variable that publishes acquired/revoked
// transitions to waiters, per the teacher's mutex-plus-condition-variable
// contract for state shared between caller threads and watch callbacks.
type baseLock struct {
	client  *zkclient.Client
	pool    *dispatch.Pool
	logger  *zap.Logger
	metrics *Metrics

	root string
	name string
	kind zkpath.Kind

	mu               sync.Mutex
	cond             *sync.Cond
	attempt          *candidate.Attempt
	acquired         bool
	candidateCreated bool
	revoked          bool
	stopRevokeWatch  chan struct{}
}

// defaultPool bounds background revocation-watch and async-dispatch work
// for lock instances that do not supply their own pool.
var defaultPool = dispatch.NewPool(16)

func newBaseLock(client *zkclient.Client, pool *dispatch.Pool, logger *zap.Logger, metrics *Metrics, root, name string, kind zkpath.Kind) *baseLock {
	if root == "" {
		root = zkpath.DefaultLockRoot
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if pool == nil {
		pool = defaultPool
	}
	b := &baseLock{
		client: client,
		pool:   pool,
		logger: logger.With(zap.String("lock", name), zap.String("kind", kind.String())),
		metrics: metrics,
		root:    root,
		name:    name,
		kind:    kind,
	}
	b.cond = sync.NewCond(&b.mu)
	b.attempt = candidate.New(client, b.parent(), kind)
	return b
}

func (b *baseLock) parent() string {
	return zkpath.ParentPath(b.root, b.name)
}

// HasLock reports whether this instance currently holds the lock.
func (b *baseLock) HasLock() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.acquired
}

// IsRevoked reports whether this holder has observed a revocation request
// addressed to it.
func (b *baseLock) IsRevoked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.revoked
}

// CandidateCreated reports whether the current attempt's ephemeral node has
// been created, regardless of whether it has gone on to acquire the lock.
func (b *baseLock) CandidateCreated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.candidateCreated
}

func (b *baseLock) setAcquired(v bool) {
	b.mu.Lock()
	if b.acquired != v {
		b.acquired = v
		b.cond.Broadcast()
	}
	b.mu.Unlock()
}

func (b *baseLock) setCandidateCreated(v bool) {
	b.mu.Lock()
	b.candidateCreated = v
	b.mu.Unlock()
}

func (b *baseLock) setRevoked(v bool) {
	b.mu.Lock()
	if b.revoked != v {
		b.revoked = v
		b.cond.Broadcast()
	}
	b.mu.Unlock()
}

// waitUntil blocks on the condition variable until cond() is true or ctx is
// done. It does not poll: a helper goroutine broadcasts on the condition
// variable once ctx is done, so a timeout or cancellation wakes the waiter
// promptly.
func (b *baseLock) waitUntil(ctx context.Context, cond func() bool) error {
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
		close(done)
	}()

	b.mu.Lock()
	defer b.mu.Unlock()
	for !cond() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.cond.Wait()
	}
	return nil
}

// clear removes the lock parent and every child, including the revocation
// flag. It is an administrative/test reset, not part of normal release.
func (b *baseLock) clear(ctx context.Context) error {
	parent := b.parent()
	children, err := b.client.Children(ctx, parent)
	if err != nil {
		if zkclient.IsNoNode(err) {
			return nil
		}
		return err
	}
	for _, child := range children {
		if err := b.client.Delete(ctx, parent+"/"+child); err != nil {
			return err
		}
	}
	return b.client.Delete(ctx, parent)
}

// revokeAll raises the gentle revocation flag for this lock's parent,
// independent of any in-flight acquisition.
func (b *baseLock) revokeAll(ctx context.Context) error {
	parent := b.parent()
	if err := b.client.EnsurePath(ctx, b.root); err != nil {
		return err
	}
	if err := b.client.EnsurePath(ctx, parent); err != nil {
		return err
	}
	return revoke.RequestGentle(ctx, b.client, parent)
}

// watchRevocation probes the revocation flag once (atomically with
// installing a watch) and, if already held, applies the result immediately.
// It then spawns a background task — run through the dispatch pool so it
// never executes inline on a ZK watch callback goroutine — that keeps
// re-installing the one-shot watch until release.
func (b *baseLock) watchRevocation(parent string) {
	b.mu.Lock()
	b.stopRevokeWatch = make(chan struct{})
	stop := b.stopRevokeWatch
	b.mu.Unlock()

	ctx := context.Background()
	status, ch, err := revoke.Watch(ctx, b.client, parent)
	if err != nil {
		b.logger.Warn("failed to install revocation watch", zap.Error(err))
		return
	}
	if status.Requested {
		b.setRevoked(true)
		if b.metrics != nil {
			b.metrics.revocationObserved(b.name, b.kind)
		}
	}

	b.pool.Go(ctx, func() {
		b.revocationLoop(ctx, parent, ch, stop)
	})
}

func (b *baseLock) revocationLoop(ctx context.Context, parent string, ch <-chan zk.Event, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			status, next, err := revoke.Watch(ctx, b.client, parent)
			if err != nil {
				b.logger.Warn("failed to re-install revocation watch", zap.Error(err))
				return
			}
			if status.Requested {
				b.setRevoked(true)
				if b.metrics != nil {
					b.metrics.revocationObserved(b.name, b.kind)
				}
			}
			ch = next
		}
	}
}

// stopRevocationWatch tears down the background revocation watcher started
// by watchRevocation, if any.
func (b *baseLock) stopRevocationWatch() {
	b.mu.Lock()
	stop := b.stopRevokeWatch
	b.stopRevokeWatch = nil
	b.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

// release deletes the current candidate node and clears local state. It
// returns true if release completed (including when the holder was already
// gone), or false with ErrNotHeld if the lock was not held.
func (b *baseLock) release(ctx context.Context) (bool, error) {
	b.mu.Lock()
	wasHeld := b.acquired || b.candidateCreated
	b.mu.Unlock()
	if !wasHeld {
		return false, ErrNotHeld
	}

	b.stopRevocationWatch()

	err := b.attempt.Release(ctx)
	b.setAcquired(false)
	b.setCandidateCreated(false)
	b.setRevoked(false)
	if err != nil {
		// The error is reported to the caller, and Session.Release
		// returns it as well; a bare deferred sess.Release() discards it,
		// so it never replaces an error the caller is already returning.
		return true, errors.Wrapf(err, "lock: release %s", b.parent())
	}
	return true, nil
}
