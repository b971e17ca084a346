// Package zktest provides an in-memory fake satisfying zkclient.Conn, used
// by the lock package's scenario tests in place of a live ZooKeeper
// ensemble — mirroring the teacher's own suite_test.go harness idiom of
// standing up a throwaway server for its tests, adapted here to a
// process-local double since no ensemble is available in this environment.
package zktest

import (
	"sort"
	"strings"
	"sync"

	"github.com/z-division/go-zookeeper/zk"
)

type fakeNode struct {
	data      []byte
	ephemeral bool

	existsWatches   []chan zk.Event
	dataWatches     []chan zk.Event
	childrenWatches []chan zk.Event
}

// FakeConn is a minimal, single-process ZooKeeper double. It implements
// enough of the protocol — sequential ephemeral creation, one-shot watches,
// children listing, and session-loss simulation via ExpireSession — to
// drive every scenario in the lock package's tests.
type FakeConn struct {
	mu          sync.Mutex
	nodes       map[string]*fakeNode
	seqCounters map[string]int64
	sessionID   int64
}

// NewFakeConn returns a fake with an empty tree and session id 1.
func NewFakeConn() *FakeConn {
	return &FakeConn{
		nodes:       make(map[string]*fakeNode),
		seqCounters: make(map[string]int64),
		sessionID:   1,
	}
}

func dirOf(path string) string {
	if i := strings.LastIndexByte(path, '/'); i > 0 {
		return path[:i]
	}
	return ""
}

func (f *FakeConn) exists(path string) bool {
	_, ok := f.nodes[path]
	return ok || path == ""
}

// Create implements zkclient.Conn.
func (f *FakeConn) Create(path string, data []byte, flags int32, _ []zk.ACL) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parent := dirOf(path)
	if !f.exists(parent) {
		return "", zk.ErrNoNode
	}

	full := path
	if flags&zk.FlagSequence != 0 {
		seq := f.seqCounters[parent]
		f.seqCounters[parent] = seq + 1
		full = path + pad10(seq)
	} else if f.exists(path) {
		return "", zk.ErrNodeExists
	}

	f.nodes[full] = &fakeNode{data: data, ephemeral: flags&zk.FlagEphemeral != 0}
	f.fireChildrenLocked(parent)
	f.fireExistsLocked(full)
	return full, nil
}

// Delete implements zkclient.Conn. It treats a missing node as ErrNoNode,
// matching real ZooKeeper.
func (f *FakeConn) Delete(path string, _ int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteLocked(path)
}

func (f *FakeConn) deleteLocked(path string) error {
	if _, ok := f.nodes[path]; !ok {
		return zk.ErrNoNode
	}
	f.fireExistsAndDataLocked(path)
	delete(f.nodes, path)
	f.fireChildrenLocked(dirOf(path))
	return nil
}

// Children implements zkclient.Conn.
func (f *FakeConn) Children(path string) ([]string, *zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.exists(path) {
		return nil, nil, zk.ErrNoNode
	}
	return f.childrenLocked(path), &zk.Stat{}, nil
}

// ChildrenW implements zkclient.Conn.
func (f *FakeConn) ChildrenW(path string) ([]string, *zk.Stat, <-chan zk.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.exists(path) {
		return nil, nil, nil, zk.ErrNoNode
	}
	node := f.nodes[path]
	ch := make(chan zk.Event, 1)
	if node != nil {
		node.childrenWatches = append(node.childrenWatches, ch)
	}
	return f.childrenLocked(path), &zk.Stat{}, ch, nil
}

func (f *FakeConn) childrenLocked(path string) []string {
	prefix := path + "/"
	var out []string
	for p := range f.nodes {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := p[len(prefix):]
		if strings.Contains(rest, "/") {
			continue
		}
		out = append(out, rest)
	}
	sort.Strings(out)
	return out
}

// Exists implements zkclient.Conn.
func (f *FakeConn) Exists(path string) (bool, *zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.nodes[path]
	return ok, &zk.Stat{}, nil
}

// ExistsW implements zkclient.Conn.
func (f *FakeConn) ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan zk.Event, 1)
	node, ok := f.nodes[path]
	if ok {
		node.existsWatches = append(node.existsWatches, ch)
	} else {
		f.pendingExists(path, ch)
	}
	return ok, &zk.Stat{}, ch, nil
}

// pendingExists tracks a watch on a path that does not exist yet, firing it
// when the node is eventually created. We key these off a synthetic node so
// the watch-list machinery stays uniform.
func (f *FakeConn) pendingExists(path string, ch chan zk.Event) {
	node, ok := f.nodes["\x00pending\x00"+path]
	if !ok {
		node = &fakeNode{}
		f.nodes["\x00pending\x00"+path] = node
	}
	node.existsWatches = append(node.existsWatches, ch)
}

func (f *FakeConn) fireExistsLocked(path string) {
	if node, ok := f.nodes[path]; ok {
		for _, ch := range node.existsWatches {
			ch <- zk.Event{Type: zk.EventNodeCreated, Path: path}
			close(ch)
		}
		node.existsWatches = nil
	}
	pendingKey := "\x00pending\x00" + path
	if node, ok := f.nodes[pendingKey]; ok {
		for _, ch := range node.existsWatches {
			ch <- zk.Event{Type: zk.EventNodeCreated, Path: path}
			close(ch)
		}
		delete(f.nodes, pendingKey)
	}
}

func (f *FakeConn) fireExistsAndDataLocked(path string) {
	if node, ok := f.nodes[path]; ok {
		for _, ch := range node.existsWatches {
			ch <- zk.Event{Type: zk.EventNodeDeleted, Path: path}
			close(ch)
		}
		for _, ch := range node.dataWatches {
			ch <- zk.Event{Type: zk.EventNodeDeleted, Path: path}
			close(ch)
		}
	}
}

func (f *FakeConn) fireChildrenLocked(parent string) {
	node, ok := f.nodes[parent]
	if !ok {
		return
	}
	for _, ch := range node.childrenWatches {
		ch <- zk.Event{Type: zk.EventNodeChildrenChanged, Path: parent}
		close(ch)
	}
	node.childrenWatches = nil
}

// Get implements zkclient.Conn.
func (f *FakeConn) Get(path string) ([]byte, *zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.nodes[path]
	if !ok {
		return nil, nil, zk.ErrNoNode
	}
	return node.data, &zk.Stat{}, nil
}

// GetW implements zkclient.Conn.
func (f *FakeConn) GetW(path string) ([]byte, *zk.Stat, <-chan zk.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.nodes[path]
	if !ok {
		return nil, nil, nil, zk.ErrNoNode
	}
	ch := make(chan zk.Event, 1)
	node.dataWatches = append(node.dataWatches, ch)
	return node.data, &zk.Stat{}, ch, nil
}

// Set implements zkclient.Conn.
func (f *FakeConn) Set(path string, data []byte, _ int32) (*zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	node, ok := f.nodes[path]
	if !ok {
		return nil, zk.ErrNoNode
	}
	node.data = data
	for _, ch := range node.dataWatches {
		ch <- zk.Event{Type: zk.EventNodeDataChanged, Path: path}
		close(ch)
	}
	node.dataWatches = nil
	return &zk.Stat{}, nil
}

// SessionID implements zkclient.Conn.
func (f *FakeConn) SessionID() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessionID
}

// ExpireSession simulates session expiry: every ephemeral node is deleted,
// as the real coordination service would do, and the session id advances so
// callers relying on SessionID() to detect the expiry observe the change.
func (f *FakeConn) ExpireSession() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionID++
	for path, node := range f.nodes {
		if node.ephemeral {
			_ = f.deleteLocked(path)
		}
	}
}

func pad10(n int64) string {
	const digits = "0123456789"
	buf := [10]byte{}
	for i := 9; i >= 0; i-- {
		buf[i] = digits[n%10]
		n /= 10
	}
	return string(buf[:])
}
