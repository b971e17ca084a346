// Package zkclient adapts a raw ZooKeeper connection into the handful of
// idempotent, retrying operations the lock packages need: ensure-path,
// create-sequential, delete-is-success-on-no-node, and create-or-set. Apart
// from dialing in cmd/zlock, it is the only package in this module that
// calls the coordination-service client's operations; other packages import
// the client package only for its event and error types.
package zkclient

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/z-division/go-zookeeper/zk"
	"go.uber.org/zap"
)

// Conn is the subset of *zk.Conn this package depends on. Tests substitute a
// fake implementing the same surface.
type Conn interface {
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Delete(path string, version int32) error
	Children(path string) ([]string, *zk.Stat, error)
	ChildrenW(path string) ([]string, *zk.Stat, <-chan zk.Event, error)
	Exists(path string) (bool, *zk.Stat, error)
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
	Get(path string) ([]byte, *zk.Stat, error)
	GetW(path string) ([]byte, *zk.Stat, <-chan zk.Event, error)
	Set(path string, data []byte, version int32) (*zk.Stat, error)
	SessionID() int64
}

// Client wraps a Conn with retry-with-backoff for transient transport
// errors, structured logging, and the idempotent path helpers the lock
// state machine relies on.
type Client struct {
	conn     Conn
	logger   *zap.Logger
	identity string
	retry    RetryPolicy
}

// Option configures a Client.
type Option func(*Client)

// WithRetryPolicy overrides the default bounded backoff used to retry
// retryable transport errors.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// New wraps conn. logger may be nil, in which case a no-op logger is used.
func New(conn Conn, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		conn:     conn,
		logger:   logger.With(zap.String("component", "zkclient")),
		identity: uuid.NewString(),
		retry:    DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Identity is a per-process UUID written into candidate payloads so a
// candidate node can be traced back to the process that created it; it has
// no bearing on lock semantics.
func (c *Client) Identity() string { return c.identity }

// SessionID returns the current coordination-service session id.
func (c *Client) SessionID() int64 { return c.conn.SessionID() }

// Retryable classifies errors the teacher's connection layer retries locally
// rather than surfacing: connection loss, operation timeout, and session
// moved. Session expiry is deliberately excluded — it is fatal to the
// current candidate and handled one layer up.
func Retryable(err error) bool {
	switch errors.Cause(err) {
	case zk.ErrConnectionClosed, zk.ErrOperationTimeout, zk.ErrSessionMoved:
		return true
	default:
		return false
	}
}

// withRetry runs op, retrying while Retryable(err) and the retry budget
// allows, backing off between attempts. ctx cancellation aborts the retry
// loop immediately.
func (c *Client) withRetry(ctx context.Context, op string, path string, fn func() error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !Retryable(lastErr) || !c.retry.shouldRetry(attempt) {
			return lastErr
		}
		c.logger.Debug("retrying after transient error",
			zap.String("op", op), zap.String("path", path),
			zap.Int("attempt", attempt), zap.Error(lastErr))
		select {
		case <-time.After(c.retry.backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// EnsurePath creates path and every missing ancestor as persistent znodes.
// NODE_EXISTS at any level is treated as success, matching "mkdir -p"
// semantics for both the lock root and a lock's parent node.
func (c *Client) EnsurePath(ctx context.Context, path string) error {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	current := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		current += "/" + part
		err := c.withRetry(ctx, "create-parent", current, func() error {
			_, err := c.conn.Create(current, nil, 0, zk.WorldACL(zk.PermAll))
			return err
		})
		if err != nil && errors.Cause(err) != zk.ErrNodeExists {
			return errors.Wrapf(err, "zkclient: ensure path %s", current)
		}
	}
	return nil
}

// CreateSequential creates an ephemeral-sequential candidate node under
// prefix, retrying transient failures, and returns the full path the
// coordination service assigned.
func (c *Client) CreateSequential(ctx context.Context, prefix string, data []byte) (string, error) {
	var full string
	err := c.withRetry(ctx, "create-sequential", prefix, func() error {
		var err error
		full, err = c.conn.Create(prefix, data, zk.FlagEphemeral|zk.FlagSequence, zk.WorldACL(zk.PermAll))
		return err
	})
	if err != nil {
		return "", errors.Wrapf(err, "zkclient: create candidate under %s", prefix)
	}
	return full, nil
}

// Delete removes path, treating NO_NODE as success: the session may already
// have expired and taken the ephemeral node with it.
func (c *Client) Delete(ctx context.Context, path string) error {
	err := c.withRetry(ctx, "delete", path, func() error {
		return c.conn.Delete(path, -1)
	})
	if err != nil && errors.Cause(err) != zk.ErrNoNode {
		return errors.Wrapf(err, "zkclient: delete %s", path)
	}
	return nil
}

// CreateOrSet creates path with data, or sets data on it if it already
// exists — the idempotent "upsert" pattern used to write the revocation
// flag without caring whether a previous requester already raised it.
func (c *Client) CreateOrSet(ctx context.Context, path string, data []byte) error {
	err := c.withRetry(ctx, "create-or-set", path, func() error {
		_, err := c.conn.Create(path, data, 0, zk.WorldACL(zk.PermAll))
		return err
	})
	if err == nil {
		return nil
	}
	if errors.Cause(err) != zk.ErrNodeExists {
		return errors.Wrapf(err, "zkclient: create %s", path)
	}
	err = c.withRetry(ctx, "set", path, func() error {
		_, err := c.conn.Set(path, data, -1)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "zkclient: set %s", path)
	}
	return nil
}

// Children lists the children of path, retrying transient failures.
func (c *Client) Children(ctx context.Context, path string) ([]string, error) {
	var children []string
	err := c.withRetry(ctx, "children", path, func() error {
		var err error
		children, _, err = c.conn.Children(path)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "zkclient: list children of %s", path)
	}
	return children, nil
}

// Exists reports whether path currently exists, without installing a watch.
func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	var exists bool
	err := c.withRetry(ctx, "exists", path, func() error {
		var err error
		exists, _, err = c.conn.Exists(path)
		return err
	})
	if err != nil {
		return false, errors.Wrapf(err, "zkclient: check %s", path)
	}
	return exists, nil
}

// IsNoNode reports whether err (possibly wrapped) is zk.ErrNoNode.
func IsNoNode(err error) bool {
	return errors.Cause(err) == zk.ErrNoNode
}

// IsNodeExists reports whether err (possibly wrapped) is zk.ErrNodeExists.
func IsNodeExists(err error) bool {
	return errors.Cause(err) == zk.ErrNodeExists
}

// ExistsW installs a watch on path and reports its current existence
// atomically with the watch install, per the teacher's exists-with-watch
// contract. It does not read the node's data; use GetW for that.
func (c *Client) ExistsW(ctx context.Context, path string) (exists bool, ch <-chan zk.Event, err error) {
	err = c.withRetry(ctx, "exists-w", path, func() error {
		var innerErr error
		exists, _, ch, innerErr = c.conn.ExistsW(path)
		return innerErr
	})
	if err != nil {
		return false, nil, errors.Wrapf(err, "zkclient: watch %s", path)
	}
	return exists, ch, nil
}

// GetW reads data and installs a watch on path atomically.
func (c *Client) GetW(ctx context.Context, path string) (data []byte, ch <-chan zk.Event, err error) {
	err = c.withRetry(ctx, "get-w", path, func() error {
		var innerErr error
		data, _, ch, innerErr = c.conn.GetW(path)
		return innerErr
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "zkclient: watch data of %s", path)
	}
	return data, ch, nil
}
