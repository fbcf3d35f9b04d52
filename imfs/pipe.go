package imfs

import (
	"time"

	"github.com/lind-project/lind-wasm-sub000/imfs/errno"
)

// Pipe implements spec.md §4.5: allocate one Pipe-kind node and two
// descriptors referencing it, read end at fd[0], write end at fd[1].
func (fs *FS) Pipe(cage CageID) (readFD, writeFD FDIndex, err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.nodes.allocate("", KindPipe, uint32(0o600), fs.now)
	if err != nil {
		return -1, -1, err
	}
	n.pipe = &pipeState{}

	table, err := fs.fdTableFor(cage)
	if err != nil {
		fs.nodes.free(n.index)
		return -1, -1, err
	}

	rfd, err := table.allocate(n.index, ORdOnly)
	if err != nil {
		fs.nodes.free(n.index)
		return -1, -1, err
	}
	n.openCount++

	wfd, err := table.allocate(n.index, OWrOnly)
	if err != nil {
		fs.closeLocked(table, rfd, &table.fds[rfd])
		return -1, -1, err
	}
	n.openCount++

	n.pipe.readFD = rfd
	n.pipe.writeFD = wfd
	n.pipe.hasRead = true
	n.pipe.hasWrite = true

	return rfd, wfd, nil
}

// pipeWriteLocked implements spec.md §4.5's write: memcpy at the current
// write offset and advance it. The core does not handle wrap or
// buffer-full (spec.md §9 open question #4); writes past the buffer are
// rejected with ENOSPC-equivalent EINVAL rather than silently corrupting
// memory, which is the one point where this core deliberately diverges
// from the unchecked original to stay memory-safe.
func (fs *FS) pipeWriteLocked(n *Node, buf []byte) (int, error) {
	p := n.pipe
	if p.writeOff+len(buf) > PipeBufSize {
		return 0, errno.EINVAL
	}
	copy(p.buf[p.writeOff:p.writeOff+len(buf)], buf)
	p.writeOff += len(buf)
	n.mtime = fs.now()
	return len(buf), nil
}

// pipeReadLocked implements spec.md §4.5's read: busy-wait while the
// writer is live and the buffer is empty, then move up to len(buf)
// buffered bytes into buf; bytes that do not fit stay buffered, in order,
// for the next read. Unlocks and relocks fs.mu while
// waiting so a concurrent writer can make progress.
func (fs *FS) pipeReadLocked(n *Node, buf []byte) (int, error) {
	p := n.pipe
	for p.writeOff == 0 && p.hasWrite {
		fs.mu.Unlock()
		time.Sleep(time.Millisecond)
		fs.mu.Lock()
	}

	if p.writeOff == 0 {
		return 0, nil // EOF: writer closed, buffer empty
	}

	n2 := p.writeOff
	if n2 > len(buf) {
		n2 = len(buf)
	}
	copy(buf[:n2], p.buf[:n2])
	copy(p.buf[:], p.buf[n2:p.writeOff])
	p.writeOff -= n2
	n.atime = fs.now()

	return n2, nil
}
