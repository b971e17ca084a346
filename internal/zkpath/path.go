// Package zkpath defines the znode layout used by the lock packages: where a
// named lock's parent node lives, how candidate children are named per lock
// kind, and how the trailing sequence number is parsed back out.
package zkpath

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultLockRoot is the root path under which every named lock's parent
// node is created when the caller does not override it.
const DefaultLockRoot = "/ZktoolsLocks"

// RevokedNodeName is the persistent child of a lock parent that carries the
// revocation protocol flag.
const RevokedNodeName = "revoked"

// Kind identifies what a candidate node contends for.
type Kind int

const (
	// Exclusive candidates block every other candidate, regardless of kind.
	Exclusive Kind = iota
	// Write candidates behave like Exclusive for ordering purposes but are
	// created by ZkWriteLock-equivalent holders.
	Write
	// Read candidates only block on a lower-sequenced Write or Exclusive
	// candidate; they never block each other.
	Read
)

// Prefix returns the znode name prefix the coordination service appends a
// 10-digit sequence number to.
func (k Kind) Prefix() string {
	switch k {
	case Exclusive:
		return "lock-"
	case Write:
		return "write-"
	case Read:
		return "read-"
	default:
		panic(fmt.Sprintf("zkpath: unknown lock kind %d", k))
	}
}

func (k Kind) String() string {
	switch k {
	case Exclusive:
		return "exclusive"
	case Write:
		return "write"
	case Read:
		return "read"
	default:
		return "unknown"
	}
}

// ParentPath returns the persistent parent node for a named lock under root.
func ParentPath(root, name string) string {
	return root + "/" + name
}

// CandidatePrefix returns the full path prefix (parent + kind prefix) passed
// to the coordination service's sequential-create call.
func CandidatePrefix(parent string, kind Kind) string {
	return parent + "/" + kind.Prefix()
}

// RevokedPath returns the path of the revocation flag node for a lock
// parent.
func RevokedPath(parent string) string {
	return parent + "/" + RevokedNodeName
}

// Base returns the last path segment, mirroring path.Base without pulling in
// the generic path package's "." handling for empty input.
func Base(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

// seqWidth is the fixed width of the sequence suffix the coordination
// service assigns to SEQUENCE nodes.
const seqWidth = 10

// Sequence extracts the trailing 10-digit sequence number from a candidate
// node name (not a full path). Ordering among candidates is purely by this
// number, independent of the kind prefix.
func Sequence(nodeName string) (int64, error) {
	if len(nodeName) < seqWidth {
		return 0, fmt.Errorf("zkpath: node name %q is shorter than the %d-digit sequence suffix", nodeName, seqWidth)
	}
	suffix := nodeName[len(nodeName)-seqWidth:]
	seq, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("zkpath: node name %q has a non-numeric sequence suffix: %w", nodeName, err)
	}
	return seq, nil
}

// HasKind reports whether nodeName was created for the given kind.
func HasKind(nodeName string, kind Kind) bool {
	return strings.HasPrefix(nodeName, kind.Prefix())
}

// BlocksEverything reports whether nodeName belongs to a kind that blocks
// every other candidate regardless of kind (exclusive or write).
func BlocksEverything(nodeName string) bool {
	return HasKind(nodeName, Exclusive) || HasKind(nodeName, Write)
}
