package imfs

import (
	"github.com/lind-project/lind-wasm-sub000/imfs/errno"
)

// fdTable is one cage's array of file descriptors, per spec.md §4.3. It is
// always accessed with fs.mu held.
type fdTable struct {
	fds      []FileDesc
	next     FDIndex
	freeList []FDIndex // LIFO
}

func newFDTable(capacity int) *fdTable {
	t := &fdTable{
		fds:  make([]FileDesc, capacity),
		next: FirstUserFD,
	}
	return t
}

// allocate reserves a free slot (the most recently released slot from the
// LIFO free list first, else next++) and binds it to nodeIndex. The slot
// returned is not necessarily the lowest-numbered free one.
func (t *fdTable) allocate(nodeIndex NodeIndex, flags int) (FDIndex, error) {
	var idx FDIndex
	if n := len(t.freeList); n > 0 {
		idx = t.freeList[n-1]
		t.freeList = t.freeList[:n-1]
	} else if int(t.next) < len(t.fds) {
		idx = t.next
		t.next++
	} else {
		return -1, errno.EMFILE
	}

	t.fds[idx] = FileDesc{
		live:      true,
		nodeIndex: nodeIndex,
		flags:     flags,
	}
	return idx, nil
}

func (t *fdTable) get(idx FDIndex) (*FileDesc, error) {
	if idx < 0 || int(idx) >= len(t.fds) {
		return nil, errno.EBADF
	}
	fd := &t.fds[idx]
	if !fd.live {
		return nil, errno.EBADF
	}
	return fd, nil
}

// resolve follows the dup link chain (at most one hop deep, since links
// always point at a terminal slot) and returns the terminal slot's index
// and record.
func (t *fdTable) resolve(idx FDIndex) (FDIndex, *FileDesc, error) {
	fd, err := t.get(idx)
	if err != nil {
		return -1, nil, err
	}
	if fd.hasLink {
		target, err := t.get(fd.link)
		if err != nil {
			return -1, nil, err
		}
		return fd.link, target, nil
	}
	return idx, fd, nil
}

// releaseSlot marks idx free for reuse, pushing it onto the LIFO free list.
func (t *fdTable) releaseSlot(idx FDIndex) {
	t.fds[idx] = FileDesc{}
	t.freeList = append(t.freeList, idx)
}
