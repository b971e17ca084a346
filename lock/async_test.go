package lock

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncLockAcquireAndRelease(t *testing.T) {
	client := newTestClient()
	l := NewAsyncLock(client, "", "widgets")

	l.Acquire()
	require.NoError(t, l.WaitForAcquire(nil))
	assert.True(t, l.Acquired())

	l.Release()
	require.NoError(t, l.WaitForRelease(nil))
	assert.False(t, l.Acquired())
}

func TestAsyncLockCandidateCreatedBeforeAcquired(t *testing.T) {
	ctx := context.Background()
	client := newTestClient()

	blocker := NewExclusiveLock(client, "", "widgets")
	ok, err := blocker.Acquire(ctx, nil)
	require.NoError(t, err)
	require.True(t, ok)

	l := NewAsyncLock(client, "", "widgets")
	l.Acquire()

	require.Eventually(t, func() bool {
		return l.CandidateCreated()
	}, time.Second, 5*time.Millisecond)
	assert.False(t, l.Acquired())

	_, err = blocker.Release(ctx)
	require.NoError(t, err)

	require.NoError(t, l.WaitForAcquire(nil))
	assert.True(t, l.Acquired())

	l.Release()
	require.NoError(t, l.WaitForRelease(nil))
}

func TestAsyncLockWaitForAcquireTimesOut(t *testing.T) {
	ctx := context.Background()
	client := newTestClient()

	blocker := NewExclusiveLock(client, "", "widgets")
	ok, err := blocker.Acquire(ctx, nil)
	require.NoError(t, err)
	require.True(t, ok)

	l := NewAsyncLock(client, "", "widgets")
	l.Acquire()

	timeout := 50 * time.Millisecond
	err = l.WaitForAcquire(&timeout)
	assert.True(t, errors.Is(err, ErrTimeout))

	l.Release()
}

func TestAsyncLockWaitForReleaseTimesOut(t *testing.T) {
	client := newTestClient()
	l := NewAsyncLock(client, "", "widgets")

	l.Acquire()
	require.NoError(t, l.WaitForAcquire(nil))

	timeout := 10 * time.Millisecond
	err := l.WaitForRelease(&timeout)
	assert.True(t, errors.Is(err, ErrTimeout))

	l.Release()
	require.NoError(t, l.WaitForRelease(nil))
}

func TestAsyncLockAcquireScopedReleasesOnExit(t *testing.T) {
	client := newTestClient()
	l := NewAsyncLock(client, "", "widgets")

	func() {
		sess, err := l.AcquireScoped(nil)
		require.NoError(t, err)
		defer sess.Release()
		assert.True(t, l.Acquired())
	}()

	assert.False(t, l.Acquired())
}
