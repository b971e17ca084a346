package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitessio/zlock/internal/zkclient"
	"github.com/vitessio/zlock/internal/zktest"
)

func newTestClient() *zkclient.Client {
	return zkclient.New(zktest.NewFakeConn(), nil)
}

func TestExclusiveLockBasicAcquireRelease(t *testing.T) {
	ctx := context.Background()
	client := newTestClient()
	l := NewExclusiveLock(client, "", "widgets")

	ok, err := l.Acquire(ctx, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, l.HasLock())

	ok, err = l.Release(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, l.HasLock())
}

func TestExclusiveLockSequentialHandoff(t *testing.T) {
	ctx := context.Background()
	client := newTestClient()

	l1 := NewExclusiveLock(client, "", "widgets")
	ok, err := l1.Acquire(ctx, nil)
	require.NoError(t, err)
	require.True(t, ok)

	l2 := NewExclusiveLock(client, "", "widgets")
	acquired2 := make(chan struct{})
	go func() {
		ok, err := l2.Acquire(ctx, nil)
		require.NoError(t, err)
		require.True(t, ok)
		close(acquired2)
	}()

	select {
	case <-acquired2:
		t.Fatal("l2 acquired before l1 released")
	case <-time.After(50 * time.Millisecond):
	}

	_, err = l1.Release(ctx)
	require.NoError(t, err)

	select {
	case <-acquired2:
	case <-time.After(2 * time.Second):
		t.Fatal("l2 never acquired after l1 released")
	}
}

func TestExclusiveLockProbeDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	client := newTestClient()

	l1 := NewExclusiveLock(client, "", "widgets")
	ok, err := l1.Acquire(ctx, nil)
	require.NoError(t, err)
	require.True(t, ok)

	l2 := NewExclusiveLock(client, "", "widgets")
	zero := time.Duration(0)
	done := make(chan bool, 1)
	go func() {
		ok, err := l2.Acquire(ctx, &zero)
		require.NoError(t, err)
		done <- ok
	}()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("probe acquire did not return promptly")
	}
	assert.False(t, l2.HasLock())
}

func TestExclusiveLockTimeoutGivesUp(t *testing.T) {
	ctx := context.Background()
	client := newTestClient()

	l1 := NewExclusiveLock(client, "", "widgets")
	ok, err := l1.Acquire(ctx, nil)
	require.NoError(t, err)
	require.True(t, ok)

	l2 := NewExclusiveLock(client, "", "widgets")
	timeout := 50 * time.Millisecond
	ok, err = l2.Acquire(ctx, &timeout)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, l2.HasLock())
}

func TestExclusiveLockAcquireScopedReleasesOnExit(t *testing.T) {
	ctx := context.Background()
	client := newTestClient()
	l := NewExclusiveLock(client, "", "widgets")

	func() {
		sess, ok, err := l.AcquireScoped(ctx, nil)
		require.NoError(t, err)
		require.True(t, ok)
		defer sess.Release()
		assert.True(t, l.HasLock())
	}()

	assert.False(t, l.HasLock())
}

func TestExclusiveLockAtMostOneHolderUnderContention(t *testing.T) {
	ctx := context.Background()
	client := newTestClient()

	const n = 8
	var mu sync.Mutex
	holders := 0
	maxHolders := 0
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			l := NewExclusiveLock(client, "", "widgets")
			ok, err := l.Acquire(ctx, nil)
			require.NoError(t, err)
			require.True(t, ok)

			mu.Lock()
			holders++
			if holders > maxHolders {
				maxHolders = holders
			}
			order = append(order, id)
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()

			_, err = l.Release(ctx)
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, maxHolders)
	assert.Len(t, order, n)
}

func TestExclusiveLockGentleRevocationIsObservedNotForced(t *testing.T) {
	ctx := context.Background()
	client := newTestClient()

	holder := NewExclusiveLock(client, "", "widgets")
	ok, err := holder.Acquire(ctx, nil)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, holder.RevokeAll(ctx))

	require.Eventually(t, func() bool {
		return holder.Revoked()
	}, time.Second, 5*time.Millisecond)

	assert.True(t, holder.HasLock())
}

func TestExclusiveLockReleaseWithoutAcquireReturnsErrNotHeld(t *testing.T) {
	ctx := context.Background()
	client := newTestClient()
	l := NewExclusiveLock(client, "", "widgets")

	ok, err := l.Release(ctx)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrNotHeld))
}

func TestExclusiveLockDoubleReleaseReturnsErrNotHeld(t *testing.T) {
	ctx := context.Background()
	client := newTestClient()
	l := NewExclusiveLock(client, "", "widgets")

	ok, err := l.Acquire(ctx, nil)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Release(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Release(ctx)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrNotHeld))
}

func TestExclusiveLockClearRemovesParentAndChildren(t *testing.T) {
	ctx := context.Background()
	client := newTestClient()
	l := NewExclusiveLock(client, "", "widgets")

	ok, err := l.Acquire(ctx, nil)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = l.Release(ctx)
	require.NoError(t, err)

	require.NoError(t, l.Clear(ctx))

	_, err = client.Children(ctx, "/ZktoolsLocks/widgets")
	assert.True(t, zkclient.IsNoNode(err))
}
