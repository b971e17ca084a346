package lock

import (
	"context"
	"time"

	"github.com/vitessio/zlock/internal/revoke"
)

// acquireSync drives the candidate lifecycle state table to completion: it
// loops create → list/compute-position → watch-predecessor → wait,
// recomputing on every predecessor-deleted event, restarting transparently
// on session loss, and giving up after timeout elapses. timeout == nil
// blocks indefinitely (bounded only by ctx); *timeout == 0 is a
// non-blocking probe.
func (b *baseLock) acquireSync(ctx context.Context, timeout *time.Duration, opts AcquireOptions) (bool, error) {
	parent := b.parent()
	if err := b.client.EnsurePath(ctx, b.root); err != nil {
		return false, err
	}
	if err := b.client.EnsurePath(ctx, parent); err != nil {
		return false, err
	}

	probe := timeout != nil && *timeout == 0
	var deadline time.Time
	hasDeadline := timeout != nil && *timeout > 0
	if hasDeadline {
		deadline = time.Now().Add(*timeout)
	}

	if opts.Revoke == RevokeGentle {
		if err := revoke.RequestGentle(ctx, b.client, parent); err != nil {
			return false, err
		}
	} else if opts.Revoke == RevokeImmediate {
		if err := revoke.RequestImmediate(ctx, b.client, parent); err != nil {
			return false, err
		}
	}

	immediateApplied := false

	if b.metrics != nil {
		b.metrics.acquireAttempt(b.name, b.kind)
	}

	for {
		if b.attempt.Path() == "" {
			if err := b.attempt.Create(ctx); err != nil {
				return false, err
			}
			b.setCandidateCreated(true)
		}

		if opts.Revoke == RevokeImmediate && !immediateApplied {
			blockers, err := b.attempt.BlockingCandidates(ctx)
			if err == nil {
				for _, blocker := range blockers {
					// Best effort: deletion errors here never fail the
					// caller's own acquisition; the normal wait loop below
					// still converges if a delete is lost to a race.
					_ = b.client.Delete(ctx, blocker)
				}
			}
			immediateApplied = true
		}

		result, err := b.attempt.Reconcile(ctx)
		if err != nil {
			return false, err
		}
		if result.SessionLost {
			b.attempt.Reset()
			b.setCandidateCreated(false)
			if b.metrics != nil {
				b.metrics.sessionRestart(b.name, b.kind)
			}
			continue
		}
		if !result.Blocked {
			b.attempt.MarkHeld()
			b.setAcquired(true)
			b.watchRevocation(parent)
			if b.metrics != nil {
				b.metrics.acquireSuccess(b.name, b.kind)
			}
			return true, nil
		}

		if probe {
			_ = b.attempt.Release(ctx)
			b.setCandidateCreated(false)
			return false, nil
		}

		exists, ch, err := b.client.ExistsW(ctx, result.BlockingPath)
		if err != nil {
			return false, err
		}
		if !exists {
			b.attempt.MarkWaiting()
			continue
		}

		waitCtx := ctx
		var cancel context.CancelFunc
		if hasDeadline {
			waitCtx, cancel = context.WithDeadline(ctx, deadline)
		}

		select {
		case _, ok := <-ch:
			if cancel != nil {
				cancel()
			}
			b.attempt.MarkWaiting()
			if !ok {
				continue
			}
			continue
		case <-waitCtx.Done():
			if cancel != nil {
				cancel()
			}
			timedOut := hasDeadline && !time.Now().Before(deadline)
			_ = b.attempt.Release(ctx)
			b.setCandidateCreated(false)
			if timedOut {
				if b.metrics != nil {
					b.metrics.acquireTimeout(b.name, b.kind)
				}
				return false, nil
			}
			return false, ctx.Err()
		}
	}
}
