// Package candidate implements one acquisition attempt's lifecycle: create
// the ephemeral-sequenced node, enumerate siblings, compute the blocking
// predecessor for a given lock kind, and release. It is shared by both the
// synchronous and asynchronous lock APIs in package lock, which layer
// waiting, timeouts, and revocation on top.
package candidate

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/vitessio/zlock/internal/zkclient"
	"github.com/vitessio/zlock/internal/zkpath"
)

// State is this attempt's position in the candidate lifecycle state table.
type State int

const (
	// Idle: no candidate node exists yet.
	Idle State = iota
	// Creating: a create-candidate call is in flight or about to be retried.
	Creating
	// Waiting: the candidate exists and a predecessor watch is installed.
	Waiting
	// Held: no blocking predecessor remains; the candidate owns the lock.
	Held
	// Releasing: a delete-candidate call is in flight.
	Releasing
	// Failed: a non-retryable error ended the attempt.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Creating:
		return "creating"
	case Waiting:
		return "waiting"
	case Held:
		return "held"
	case Releasing:
		return "releasing"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Attempt is one acquisition attempt's candidate node plus enough state to
// answer "am I blocked, and by whom".
type Attempt struct {
	Client *zkclient.Client
	Parent string
	Kind   zkpath.Kind

	mu      sync.Mutex
	path    string
	state   State
	lastErr error
}

// New creates an Attempt bound to a lock parent path and kind. Parent must
// already exist (callers call Client.EnsurePath first).
func New(client *zkclient.Client, parent string, kind zkpath.Kind) *Attempt {
	return &Attempt{Client: client, Parent: parent, Kind: kind, state: Idle}
}

// Path returns the candidate's full znode path, or "" if none exists.
func (a *Attempt) Path() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.path
}

// State returns the attempt's current lifecycle state.
func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Err returns the error that moved this attempt to Failed, if any.
func (a *Attempt) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// Create creates the ephemeral-sequenced candidate node. It is a no-op if a
// candidate already exists for this attempt.
func (a *Attempt) Create(ctx context.Context) error {
	a.mu.Lock()
	if a.path != "" {
		a.mu.Unlock()
		return nil
	}
	a.state = Creating
	a.mu.Unlock()

	prefix := zkpath.CandidatePrefix(a.Parent, a.Kind)
	full, err := a.Client.CreateSequential(ctx, prefix, []byte(a.Client.Identity()))

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.state = Failed
		a.lastErr = err
		return err
	}
	a.path = full
	a.state = Waiting
	return nil
}

// Release deletes the candidate node, treating NO_NODE as success (the
// session may have expired already). Release clears local state so the
// Attempt can be reused for a fresh acquisition.
func (a *Attempt) Release(ctx context.Context) error {
	a.mu.Lock()
	path := a.path
	a.state = Releasing
	a.mu.Unlock()

	if path == "" {
		a.mu.Lock()
		a.state = Idle
		a.mu.Unlock()
		return nil
	}

	err := a.Client.Delete(ctx, path)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.state = Failed
		a.lastErr = err
		return err
	}
	a.path = ""
	a.state = Idle
	return nil
}

// ReconcileResult is the outcome of recomputing an attempt's position
// against the lock parent's current children.
type ReconcileResult struct {
	// SessionLost is true when this attempt's own candidate node no longer
	// appears among the parent's children — the session that created it
	// must have expired, taking the ephemeral node with it.
	SessionLost bool
	// Blocked is true when a lower-sequenced candidate still blocks this
	// attempt under its kind's rule.
	Blocked bool
	// BlockingPath is the path of the blocking candidate when Blocked.
	BlockingPath string
}

// Reconcile lists the lock parent's children and computes this attempt's
// position: exclusive/write locks are blocked by the highest lower-
// sequenced candidate of any kind; read locks are blocked only by the
// highest lower-sequenced write/exclusive candidate. It also detects
// session loss by checking that this attempt's own candidate is still
// present among the children.
func (a *Attempt) Reconcile(ctx context.Context) (ReconcileResult, error) {
	mySeq, myName, err := a.sequenceAndName()
	if err != nil {
		return ReconcileResult{}, err
	}

	children, err := a.Client.Children(ctx, a.Parent)
	if err != nil {
		return ReconcileResult{}, errors.Wrapf(err, "candidate: list %s", a.Parent)
	}

	found := false
	var bestSeq int64 = -1
	var bestName string
	for _, child := range children {
		if child == myName {
			found = true
			continue
		}
		if child == zkpath.RevokedNodeName {
			continue
		}
		seq, err := zkpath.Sequence(child)
		if err != nil {
			continue
		}
		if seq >= mySeq {
			continue
		}
		if a.Kind == zkpath.Read && !zkpath.BlocksEverything(child) {
			continue
		}
		if seq > bestSeq {
			bestSeq = seq
			bestName = child
		}
	}
	if !found {
		return ReconcileResult{SessionLost: true}, nil
	}
	if bestName == "" {
		return ReconcileResult{}, nil
	}
	return ReconcileResult{Blocked: true, BlockingPath: a.Parent + "/" + bestName}, nil
}

// BlockingCandidates returns the full paths of every candidate currently
// blocking this attempt, ordered by ascending sequence. It is used by
// immediate revocation, which must displace every blocker, not only the
// nearest one.
func (a *Attempt) BlockingCandidates(ctx context.Context) ([]string, error) {
	mySeq, myName, err := a.sequenceAndName()
	if err != nil {
		return nil, err
	}
	children, err := a.Client.Children(ctx, a.Parent)
	if err != nil {
		return nil, errors.Wrapf(err, "candidate: list %s", a.Parent)
	}

	type seqPath struct {
		seq  int64
		path string
	}
	var blockers []seqPath
	for _, child := range children {
		if child == zkpath.RevokedNodeName || child == myName {
			continue
		}
		seq, err := zkpath.Sequence(child)
		if err != nil || seq >= mySeq {
			continue
		}
		if a.Kind == zkpath.Read && !zkpath.BlocksEverything(child) {
			continue
		}
		blockers = append(blockers, seqPath{seq, a.Parent + "/" + child})
	}
	for i := 1; i < len(blockers); i++ {
		for j := i; j > 0 && blockers[j-1].seq > blockers[j].seq; j-- {
			blockers[j-1], blockers[j] = blockers[j], blockers[j-1]
		}
	}
	paths := make([]string, len(blockers))
	for i, b := range blockers {
		paths[i] = b.path
	}
	return paths, nil
}

// MarkHeld transitions the attempt to Held once the caller has confirmed no
// blocking predecessor remains.
func (a *Attempt) MarkHeld() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = Held
}

// MarkWaiting transitions the attempt back to Waiting after a predecessor
// watch fires and the position is recomputed.
func (a *Attempt) MarkWaiting() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Failed {
		a.state = Waiting
	}
}

// Reset clears local state after session loss destroys the candidate node
// out from under the attempt, so the caller can start a fresh Create.
func (a *Attempt) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.path = ""
	a.state = Idle
	a.lastErr = nil
}

func (a *Attempt) sequenceAndName() (seq int64, name string, err error) {
	a.mu.Lock()
	path := a.path
	a.mu.Unlock()
	if path == "" {
		return 0, "", errors.New("candidate: no candidate node created yet")
	}
	name = zkpath.Base(path)
	seq, err = zkpath.Sequence(name)
	if err != nil {
		return 0, "", err
	}
	return seq, name, nil
}
