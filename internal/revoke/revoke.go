// Package revoke implements the revocation flag-node protocol shared by
// every lock kind: a requester raises a persistent "revoked" child of the
// lock parent, gently or immediately; holders watch it and set a local flag
// when it appears. The flag is never auto-cleared — a lock parent that has
// ever been revoked stays revoked for every future holder until Clear is
// called, matching the documented open question in the source protocol.
package revoke

import (
	"context"

	"github.com/pkg/errors"
	"github.com/z-division/go-zookeeper/zk"

	"github.com/vitessio/zlock/internal/zkclient"
	"github.com/vitessio/zlock/internal/zkpath"
)

// immediatePayload is the sentinel data value that upgrades a revocation
// request from gentle to immediate.
const immediatePayload = "immediate"
const gentlePayload = "gentle"

// Status reports the current state of a lock parent's revocation flag.
type Status struct {
	Requested bool
	Immediate bool
}

// RequestGentle raises the revocation flag, asking current holders to yield
// voluntarily. It does not touch any candidate node.
func RequestGentle(ctx context.Context, client *zkclient.Client, parent string) error {
	return client.CreateOrSet(ctx, zkpath.RevokedPath(parent), []byte(gentlePayload))
}

// RequestImmediate raises the revocation flag with the immediate sentinel.
// Callers are responsible for also deleting the blocking candidates; this
// function only manages the flag node.
func RequestImmediate(ctx context.Context, client *zkclient.Client, parent string) error {
	return client.CreateOrSet(ctx, zkpath.RevokedPath(parent), []byte(immediatePayload))
}

// Clear removes the revocation flag and nothing else. The lock types' Clear
// methods do not call it; they delete the flag together with every other
// child of the lock parent.
func Clear(ctx context.Context, client *zkclient.Client, parent string) error {
	return client.Delete(ctx, zkpath.RevokedPath(parent))
}

// Watch installs a watch on the revocation flag and reports its current
// status, atomically with the watch install: a fresh holder that never saw
// the flag created must still observe it if it already existed at
// acquisition time.
func Watch(ctx context.Context, client *zkclient.Client, parent string) (Status, <-chan zk.Event, error) {
	path := zkpath.RevokedPath(parent)
	exists, ch, err := client.ExistsW(ctx, path)
	if err != nil {
		return Status{}, nil, err
	}
	if !exists {
		return Status{}, ch, nil
	}

	data, dataCh, err := client.GetW(ctx, path)
	if err != nil {
		// The flag vanished between ExistsW and GetW (cleared concurrently);
		// treat as not-yet-requested and let the caller re-watch on its own
		// next read if it cares.
		if errors.Cause(err) == zk.ErrNoNode {
			return Status{}, ch, nil
		}
		return Status{}, nil, err
	}
	return Status{Requested: true, Immediate: string(data) == immediatePayload}, dataCh, nil
}
