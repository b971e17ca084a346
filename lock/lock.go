// Package lock implements the distributed lock APIs layered on the
// candidate lifecycle in internal/candidate: a synchronous exclusive lock,
// synchronous shared read/write locks, and a non-blocking asynchronous
// lock, all cooperating with the revocation protocol in internal/revoke.
package lock

import (
	"github.com/pkg/errors"
)

// RevokeMode selects how an acquire request treats incumbent holders that
// currently block it.
type RevokeMode int

const (
	// RevokeNone requests nothing; the caller simply waits its turn.
	RevokeNone RevokeMode = iota
	// RevokeGentle raises the revocation flag so incumbents are asked to
	// yield voluntarily; the requester still waits normally.
	RevokeGentle
	// RevokeImmediate raises the flag and additionally deletes every
	// candidate currently blocking the requester.
	RevokeImmediate
)

func (m RevokeMode) String() string {
	switch m {
	case RevokeNone:
		return "none"
	case RevokeGentle:
		return "gentle"
	case RevokeImmediate:
		return "immediate"
	default:
		return "unknown"
	}
}

// AcquireOptions configures one acquisition attempt. It replaces the
// dynamic "lock(revoke=...)" callable with an explicit value passed to
// AcquireScoped.
type AcquireOptions struct {
	Revoke RevokeMode
}

// ErrNotHeld is returned by Release when the lock is not currently held.
var ErrNotHeld = errors.New("lock: not held")

// ErrTimeout is returned by WaitForAcquire/WaitForRelease (async API) when
// the wait's own timeout elapses before the awaited transition happens.
var ErrTimeout = errors.New("lock: wait timed out")

// Session is a scoped acquisition returned by AcquireScoped: Release
// guarantees the underlying candidate is released exactly once, mirroring
// the teacher's context-manager-on-exit guarantee across every exit path,
// including a panic unwinding through a deferred Release call.
type Session struct {
	release func() error
}

// Release releases the scoped acquisition. Safe to call more than once.
func (s *Session) Release() error {
	if s == nil || s.release == nil {
		return nil
	}
	return s.release()
}
