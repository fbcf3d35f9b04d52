package imfs

import (
	"time"

	"github.com/lind-project/lind-wasm-sub000/imfs/errno"
)

// nodeStore is the bounded pool of nodes described in spec.md §4.2. It is
// always accessed with fs.mu held.
type nodeStore struct {
	nodes    []Node
	next     NodeIndex
	freeList []NodeIndex // LIFO: most recently freed first
}

func newNodeStore(capacity int) *nodeStore {
	return &nodeStore{
		nodes: make([]Node, capacity),
	}
}

// allocate reserves a slot for a new node, preferring the most recently
// freed slot so the high-water mark of the pool stays low.
func (s *nodeStore) allocate(name string, kind NodeKind, mode uint32, now func() time.Time) (*Node, error) {
	var idx NodeIndex
	if n := len(s.freeList); n > 0 {
		idx = s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
	} else if int(s.next) < len(s.nodes) {
		idx = s.next
		s.next++
	} else {
		return nil, errno.ENOMEM
	}

	if len(name) > MaxNodeName {
		return nil, errno.ENAMETOOLONG
	}

	n := &s.nodes[idx]
	*n = Node{
		kind:      kind,
		index:     idx,
		name:      name,
		mode:      mode,
		openCount: 0,
		doomed:    false,
	}
	t := now()
	n.atime, n.mtime, n.ctime, n.btime = t, t, t, t
	return n, nil
}

// free returns a slot to the free list. Callers must ensure openCount == 0.
func (s *nodeStore) free(idx NodeIndex) {
	s.nodes[idx] = Node{kind: KindFree, index: idx}
	s.freeList = append(s.freeList, idx)
}

func (s *nodeStore) get(idx NodeIndex) (*Node, error) {
	if idx < 0 || int(idx) >= len(s.nodes) {
		return nil, errno.EBADF
	}
	n := &s.nodes[idx]
	if n.kind == KindFree {
		return nil, errno.EBADF
	}
	return n, nil
}
