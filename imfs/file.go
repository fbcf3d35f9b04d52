package imfs

import (
	"github.com/lind-project/lind-wasm-sub000/imfs/errno"
	"github.com/lind-project/lind-wasm-sub000/internal/logger"
)

// Stat mirrors the fields spec.md §4.4 requires stat/lstat/fstat to fill.
// Constant uid/gid/dev fields match the GET_UID/GET_GID/GET_DEV stubs in
// imfs.h.
type Stat struct {
	Ino     uint64
	Mode    uint32
	Size    int64
	Blksize int32
	Blocks  int64
	Uid     uint32
	Gid     uint32
	Dev     uint64
	Atime, Mtime, Ctime, Btime int64 // unix nanoseconds
}

const (
	statUID = 501
	statGID = 20
	statDev = 1
)

// OpenAt implements spec.md §4.4's openat.
func (fs *FS) OpenAt(cage CageID, dirFd FDIndex, path string, flags int, mode uint32) (FDIndex, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentIdx, name, err := fs.resolveParent(cage, dirFd, path)
	if err != nil {
		return -1, errno.ENOTDIR
	}
	if _, err := fs.checkNodeIsDir(parentIdx); err != nil {
		return -1, errno.ENOTDIR
	}

	existing, resolveErr := fs.resolve(cage, dirFd, path)
	if resolveErr == nil {
		n, err := fs.nodes.get(existing)
		if err != nil {
			return -1, err
		}
		if flags&OCreat != 0 {
			// The source treats O_CREAT as implicitly exclusive regardless
			// of O_EXCL; see spec.md §9 open question #1. We preserve that
			// observed behavior rather than following POSIX.
			return -1, errno.EEXIST
		}
		if n.kind == KindDirectory && flags&ODirectory == 0 {
			return -1, errno.EISDIR
		}
		if err := checkAccess(n.mode, flags); err != nil {
			return -1, err
		}
		return fs.openExisting(cage, n, flags)
	}

	if flags&OCreat == 0 {
		return -1, errno.ENOENT
	}

	parent, _ := fs.nodes.get(parentIdx)
	n, err := fs.nodes.allocate(name, KindRegular, uint32(SIfreg)|(mode&0o777), fs.now)
	if err != nil {
		return -1, err
	}
	n.parentIndex = parentIdx
	parent.children = append(parent.children, dirEnt{name: name, child: n.index})

	return fs.openExisting(cage, n, flags)
}

// Open resolves path against the root, equivalent to OpenAt with
// AT_FDCWD.
func (fs *FS) Open(cage CageID, path string, flags int, mode uint32) (FDIndex, error) {
	return fs.OpenAt(cage, AtFDCwd, path, flags, mode)
}

func checkAccess(mode uint32, flags int) error {
	switch flags & OAccmode {
	case ORdOnly:
		if mode&permOtherRead == 0 {
			return errno.EACCES
		}
	case OWrOnly:
		if mode&permOtherWrite == 0 {
			return errno.EACCES
		}
	case ORdWr:
		if mode&permOtherRead == 0 || mode&permOtherWrite == 0 {
			return errno.EACCES
		}
	}
	return nil
}

func (fs *FS) openExisting(cage CageID, n *Node, flags int) (FDIndex, error) {
	table, err := fs.fdTableFor(cage)
	if err != nil {
		return -1, err
	}
	idx, err := table.allocate(n.index, flags)
	if err != nil {
		return -1, err
	}
	n.openCount++
	if flags&OAccmode != OWrOnly {
		n.atime = fs.now()
	}
	return idx, nil
}

// Close implements spec.md §4.3's close: following the link chain, freeing
// a link slot outright, and reclaiming a doomed terminal node once its
// open_count hits zero.
func (fs *FS) Close(cage CageID, fdIdx FDIndex) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	table, err := fs.fdTableFor(cage)
	if err != nil {
		return err
	}
	fd, err := table.get(fdIdx)
	if err != nil {
		return err
	}

	fs.closeLocked(table, fdIdx, fd)
	return nil
}

// Dup implements spec.md §4.3's dup: a new slot whose link points at the
// old slot, taking the most recently released fd from the free list, else
// the next unused one.
func (fs *FS) Dup(cage CageID, oldFd FDIndex) (FDIndex, error) {
	return fs.duplicate(cage, oldFd, -1)
}

// Dup2 implements dup2, closing an existing newFd first if live.
func (fs *FS) Dup2(cage CageID, oldFd, newFd FDIndex) (FDIndex, error) {
	return fs.duplicate(cage, oldFd, newFd)
}

func (fs *FS) duplicate(cage CageID, oldFd, newFd FDIndex) (FDIndex, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	table, err := fs.fdTableFor(cage)
	if err != nil {
		return -1, err
	}
	termOld, _, err := table.resolve(oldFd)
	if err != nil {
		return -1, err
	}

	if newFd >= 0 {
		if existing, err := table.get(newFd); err == nil {
			fs.closeLocked(table, newFd, existing)
		}
		if int(newFd) >= len(table.fds) {
			return -1, errno.EMFILE
		}
		if newFd+1 > table.next {
			table.next = newFd + 1
		}
		table.fds[newFd] = FileDesc{live: true, link: termOld, hasLink: true}
		return newFd, nil
	}

	var idx FDIndex
	if n := len(table.freeList); n > 0 {
		idx = table.freeList[n-1]
		table.freeList = table.freeList[:n-1]
	} else if int(table.next) < len(table.fds) {
		idx = table.next
		table.next++
	} else {
		return -1, errno.EMFILE
	}
	table.fds[idx] = FileDesc{live: true, link: termOld, hasLink: true}
	return idx, nil
}

func (fs *FS) closeLocked(table *fdTable, fdIdx FDIndex, fd *FileDesc) {
	if fd.hasLink {
		table.releaseSlot(fdIdx)
		return
	}
	n, err := fs.nodes.get(fd.nodeIndex)
	table.releaseSlot(fdIdx)
	if err != nil {
		return
	}
	if n.kind == KindPipe && n.pipe != nil {
		switch fdIdx {
		case n.pipe.writeFD:
			n.pipe.hasWrite = false
		case n.pipe.readFD:
			n.pipe.hasRead = false
		}
	}
	n.openCount--
	if n.doomed && n.openCount == 0 {
		fs.nodes.free(n.index)
	}
}

// Write implements spec.md §4.4's write for regular files and pipes.
func (fs *FS) Write(cage CageID, fdIdx FDIndex, buf []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, fd, n, err := fs.resolveFD(cage, fdIdx)
	if err != nil {
		return 0, err
	}

	switch n.kind {
	case KindPipe:
		return fs.pipeWriteLocked(n, buf)
	case KindRegular:
		written := fs.writeChunksLocked(n, fd.offset, buf)
		fd.offset += int64(written)
		n.mtime = fs.now()
		return written, nil
	default:
		return 0, errno.EISDIR
	}
}

// PWrite implements pwrite: identical to Write but at a caller-supplied
// offset, never advancing the descriptor's offset.
func (fs *FS) PWrite(cage CageID, fdIdx FDIndex, buf []byte, offset int64) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, _, n, err := fs.resolveFD(cage, fdIdx)
	if err != nil {
		return 0, err
	}
	if n.kind != KindRegular {
		return 0, errno.EISDIR
	}
	written := fs.writeChunksLocked(n, offset, buf)
	n.mtime = fs.now()
	return written, nil
}

func (fs *FS) writeChunksLocked(n *Node, offset int64, buf []byte) int {
	if len(buf) == 0 {
		if offset+int64(len(buf)) > n.totalSize {
			n.totalSize = offset + int64(len(buf))
		}
		return 0
	}

	// Walk (or grow) the chunk list until we reach the chunk containing
	// offset, then copy forward, allocating new chunks as needed.
	var prev *chunk
	cur := n.chunkHead
	chunkStart := int64(0)
	for chunkStart+ChunkSize <= offset {
		if cur == nil {
			cur = &chunk{}
			if prev == nil {
				n.chunkHead = cur
			} else {
				prev.next = cur
			}
			n.chunkTail = cur
		}
		prev = cur
		cur = cur.next
		chunkStart += ChunkSize
	}

	written := 0
	remaining := buf
	posInChunk := int(offset - chunkStart)

	for len(remaining) > 0 {
		if cur == nil {
			cur = &chunk{}
			if prev == nil {
				n.chunkHead = cur
			} else {
				prev.next = cur
			}
			n.chunkTail = cur
		}

		space := ChunkSize - posInChunk
		n2 := len(remaining)
		if n2 > space {
			n2 = space
		}
		copy(cur.data[posInChunk:posInChunk+n2], remaining[:n2])
		if posInChunk+n2 > cur.used {
			cur.used = posInChunk + n2
		}

		remaining = remaining[n2:]
		written += n2
		posInChunk = 0
		prev = cur
		cur = cur.next
	}

	if end := offset + int64(len(buf)); end > n.totalSize {
		n.totalSize = end
	}
	return written
}

// Read implements spec.md §4.4's read for regular files; pipe reads are
// handled in pipe.go.
func (fs *FS) Read(cage CageID, fdIdx FDIndex, buf []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, fd, n, err := fs.resolveFD(cage, fdIdx)
	if err != nil {
		return 0, err
	}

	switch n.kind {
	case KindPipe:
		return fs.pipeReadLocked(n, buf)
	case KindRegular:
		read := fs.readChunksLocked(n, fd.offset, buf)
		fd.offset += int64(read)
		n.atime = fs.now()
		return read, nil
	default:
		return 0, errno.EISDIR
	}
}

// PRead implements pread: identical to Read but at a caller-supplied
// offset, never advancing the descriptor's offset.
func (fs *FS) PRead(cage CageID, fdIdx FDIndex, buf []byte, offset int64) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, _, n, err := fs.resolveFD(cage, fdIdx)
	if err != nil {
		return 0, err
	}
	if n.kind != KindRegular {
		return 0, errno.EISDIR
	}
	read := fs.readChunksLocked(n, offset, buf)
	n.atime = fs.now()
	return read, nil
}

func (fs *FS) readChunksLocked(n *Node, offset int64, buf []byte) int {
	if offset >= n.totalSize {
		return 0
	}
	avail := n.totalSize - offset
	want := int64(len(buf))
	if want > avail {
		want = avail
	}

	cur := n.chunkHead
	chunkStart := int64(0)
	for chunkStart+ChunkSize <= offset && cur != nil {
		cur = cur.next
		chunkStart += ChunkSize
	}

	read := int64(0)
	posInChunk := offset - chunkStart
	for read < want && cur != nil {
		avail := int64(cur.used) - posInChunk
		if avail <= 0 {
			cur = cur.next
			chunkStart += ChunkSize
			posInChunk = 0
			continue
		}
		n2 := want - read
		if n2 > avail {
			n2 = avail
		}
		copy(buf[read:read+n2], cur.data[posInChunk:posInChunk+n2])
		read += n2
		posInChunk += n2
		if posInChunk >= ChunkSize {
			cur = cur.next
			chunkStart += ChunkSize
			posInChunk = 0
		}
	}
	return int(read)
}

// resolveFD follows a descriptor's dup link and returns the terminal slot
// plus its node.
func (fs *FS) resolveFD(cage CageID, fdIdx FDIndex) (FDIndex, *FileDesc, *Node, error) {
	table, err := fs.fdTableFor(cage)
	if err != nil {
		return -1, nil, nil, err
	}
	termIdx, fd, err := table.resolve(fdIdx)
	if err != nil {
		return -1, nil, nil, err
	}
	n, err := fs.nodes.get(fd.nodeIndex)
	if err != nil {
		return -1, nil, nil, err
	}
	return termIdx, fd, n, nil
}

// Lseek implements spec.md §4.4's lseek. SEEK_HOLE/SEEK_DATA are rejected
// with EINVAL, per spec.md §9 open question #3: the source's
// implementation is not meaningful for chunked storage and is treated
// here as an explicit stub rather than silently reimplemented.
func (fs *FS) Lseek(cage CageID, fdIdx FDIndex, offset int64, whence int) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, fd, n, err := fs.resolveFD(cage, fdIdx)
	if err != nil {
		return -1, err
	}

	var base int64
	switch whence {
	case SeekSet:
		base = 0
	case SeekCur:
		base = fd.offset
	case SeekEnd:
		base = n.totalSize
	case SeekHole, SeekData:
		return -1, errno.EINVAL
	default:
		return -1, errno.EINVAL
	}

	newOffset := base + offset
	if newOffset < 0 {
		return -1, errno.EINVAL
	}
	fd.offset = newOffset
	return newOffset, nil
}

// ReadV / WriteV / PReadV / PWriteV loop over an iovec-equivalent slice of
// byte slices, propagating the first error, per spec.md §4.4.

func (fs *FS) ReadV(cage CageID, fdIdx FDIndex, iov [][]byte) (int, error) {
	total := 0
	for _, buf := range iov {
		n, err := fs.Read(cage, fdIdx, buf)
		total += n
		if err != nil {
			return total, err
		}
		if n < len(buf) {
			break
		}
	}
	return total, nil
}

func (fs *FS) WriteV(cage CageID, fdIdx FDIndex, iov [][]byte) (int, error) {
	total := 0
	for _, buf := range iov {
		n, err := fs.Write(cage, fdIdx, buf)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (fs *FS) PReadV(cage CageID, fdIdx FDIndex, iov [][]byte, offset int64) (int, error) {
	total := 0
	off := offset
	for _, buf := range iov {
		n, err := fs.PRead(cage, fdIdx, buf, off)
		total += n
		off += int64(n)
		if err != nil {
			return total, err
		}
		if n < len(buf) {
			break
		}
	}
	return total, nil
}

func (fs *FS) PWriteV(cage CageID, fdIdx FDIndex, iov [][]byte, offset int64) (int, error) {
	total := 0
	off := offset
	for _, buf := range iov {
		n, err := fs.PWrite(cage, fdIdx, buf, off)
		total += n
		off += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func statFromNode(n *Node) Stat {
	return Stat{
		Ino:     uint64(n.index),
		Mode:    n.mode,
		Size:    n.totalSize,
		Blksize: 512,
		Blocks:  n.totalSize / 512,
		Uid:     statUID,
		Gid:     statGID,
		Dev:     statDev,
		Atime:   n.atime.UnixNano(),
		Mtime:   n.mtime.UnixNano(),
		Ctime:   n.ctime.UnixNano(),
		Btime:   n.btime.UnixNano(),
	}
}

// Stat follows symlinks; Lstat does not. Both implement spec.md §4.4.
func (fs *FS) Stat(cage CageID, path string) (Stat, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	idx, err := fs.resolve(cage, AtFDCwd, path)
	if err != nil {
		return Stat{}, err
	}
	n, err := fs.nodes.get(idx)
	if err != nil {
		return Stat{}, err
	}
	return statFromNode(n), nil
}

// Lstat resolves the last path component without following a trailing
// symlink.
func (fs *FS) Lstat(cage CageID, path string) (Stat, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentIdx, name, err := fs.resolveParent(cage, AtFDCwd, path)
	if err != nil {
		return Stat{}, err
	}
	parent, err := fs.nodes.get(parentIdx)
	if err != nil {
		return Stat{}, err
	}
	child, ok := lookupChild(parent, name)
	if !ok {
		return Stat{}, errno.ENOENT
	}
	n, err := fs.nodes.get(child)
	if err != nil {
		return Stat{}, err
	}
	return statFromNode(n), nil
}

func (fs *FS) Fstat(cage CageID, fdIdx FDIndex) (Stat, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, _, n, err := fs.resolveFD(cage, fdIdx)
	if err != nil {
		return Stat{}, err
	}
	return statFromNode(n), nil
}

// Mkdir implements spec.md §4.4's mkdir, attaching all of self/"."/".."
// atomically or not at all, resolving spec.md §9 open question #5.
// Calling it twice with the same path succeeds both times per spec.md
// §8's P6: a name already occupied by a directory is not an error,
// matching imfs_mkdirat's own "if(node) return 0" short-circuit. Only a
// non-directory occupying the name is EEXIST.
func (fs *FS) Mkdir(cage CageID, path string, mode uint32) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentIdx, name, err := fs.resolveParent(cage, AtFDCwd, path)
	if err != nil {
		return errno.ENOTDIR
	}
	if name == "." || name == ".." {
		return errno.EEXIST
	}
	parent, err := fs.checkNodeIsDir(parentIdx)
	if err != nil {
		return err
	}

	if existing, ok := lookupChild(parent, name); ok {
		existingNode, err := fs.nodes.get(existing)
		if err != nil {
			return err
		}
		if existingNode.kind == KindDirectory {
			return nil // idempotent: the directory already exists
		}
		return errno.EEXIST
	}

	n, err := fs.nodes.allocate(name, KindDirectory, uint32(SIfdir)|(mode&0o777), fs.now)
	if err != nil {
		return err
	}
	n.parentIndex = parentIdx
	attachDotEntries(n, n.index)
	parent.children = append(parent.children, dirEnt{name: name, child: n.index})
	return nil
}

// Link and Symlink both create a symlink-kind node pointing at the
// target, matching the observed source behavior in spec.md §9 open
// question #2 rather than implementing true hard links.
func (fs *FS) Link(cage CageID, oldPath, newPath string) error {
	return fs.symlink(cage, oldPath, newPath)
}

func (fs *FS) Symlink(cage CageID, oldPath, newPath string) error {
	return fs.symlink(cage, oldPath, newPath)
}

func (fs *FS) symlink(cage CageID, oldPath, newPath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	targetIdx, err := fs.resolve(cage, AtFDCwd, oldPath)
	if err != nil {
		return err
	}
	parentIdx, name, err := fs.resolveParent(cage, AtFDCwd, newPath)
	if err != nil {
		return err
	}
	parent, err := fs.checkNodeIsDir(parentIdx)
	if err != nil {
		return err
	}
	if _, ok := lookupChild(parent, name); ok {
		return errno.EEXIST
	}

	n, err := fs.nodes.allocate(name, KindSymlink, uint32(SIflnk)|0o777, fs.now)
	if err != nil {
		return err
	}
	n.parentIndex = parentIdx
	n.target = targetIdx
	parent.children = append(parent.children, dirEnt{name: name, child: n.index})
	return nil
}

// Unlink, Rmdir, and Remove all find the node, detach it from its parent,
// mark it doomed, and free it immediately if nothing still has it open.
func (fs *FS) Unlink(cage CageID, path string) error {
	return fs.unlinkCommon(cage, path, false)
}

func (fs *FS) Rmdir(cage CageID, path string) error {
	return fs.unlinkCommon(cage, path, true)
}

func (fs *FS) Remove(cage CageID, path string) error {
	return fs.unlinkCommon(cage, path, false)
}

func (fs *FS) unlinkCommon(cage CageID, path string, requireDir bool) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentIdx, name, err := fs.resolveParent(cage, AtFDCwd, path)
	if err != nil {
		return err
	}
	parent, err := fs.nodes.get(parentIdx)
	if err != nil {
		return err
	}

	childIdx, ok := lookupChild(parent, name)
	if !ok {
		return errno.ENOENT
	}
	n, err := fs.nodes.get(childIdx)
	if err != nil {
		return err
	}

	if requireDir {
		if n.kind != KindDirectory {
			return errno.ENOTDIR
		}
		if len(n.children) > 2 {
			return errno.EBUSY
		}
	} else if n.kind == KindDirectory {
		return errno.EISDIR
	}

	removeChild(parent, name)
	n.doomed = true
	if n.openCount == 0 {
		fs.nodes.free(n.index)
	}
	return nil
}

func removeChild(dir *Node, name string) {
	for i, e := range dir.children {
		if e.name == name {
			dir.children = append(dir.children[:i], dir.children[i+1:]...)
			return
		}
	}
}

// Rename attaches path's node to newPath's parent under newPath's name and
// detaches it from its old parent, implementing spec.md §9 open question
// #6 by actually performing the rename (rather than leaving it a no-op).
func (fs *FS) Rename(cage CageID, oldPath, newPath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	oldParentIdx, oldName, err := fs.resolveParent(cage, AtFDCwd, oldPath)
	if err != nil {
		return err
	}
	oldParent, err := fs.nodes.get(oldParentIdx)
	if err != nil {
		return err
	}
	childIdx, ok := lookupChild(oldParent, oldName)
	if !ok {
		return errno.ENOENT
	}

	newParentIdx, newName, err := fs.resolveParent(cage, AtFDCwd, newPath)
	if err != nil {
		return err
	}
	newParent, err := fs.checkNodeIsDir(newParentIdx)
	if err != nil {
		return err
	}
	if _, exists := lookupChild(newParent, newName); exists {
		return errno.EEXIST
	}

	removeChild(oldParent, oldName)
	newParent.children = append(newParent.children, dirEnt{name: newName, child: childIdx})

	n, err := fs.nodes.get(childIdx)
	if err == nil {
		n.parentIndex = newParentIdx
		n.name = newName
	}
	return nil
}

// Chown is a documented no-op per spec.md §9 open question #6's first
// option: the core has no notion of ownership beyond the constant
// uid/gid stat fields, so this simply reports success.
func (fs *FS) Chown(cage CageID, path string, uid, gid uint32) error {
	if _, err := fs.Stat(cage, path); err != nil {
		return err
	}
	return nil
}

// Chmod replaces the low 9 permission bits of the node at path, preserving
// the type bits.
func (fs *FS) Chmod(cage CageID, path string, mode uint32) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	idx, err := fs.resolve(cage, AtFDCwd, path)
	if err != nil {
		return err
	}
	n, err := fs.nodes.get(idx)
	if err != nil {
		return err
	}
	n.mode = (n.mode &^ 0o777) | (mode & 0o777)
	return nil
}

func (fs *FS) Fchmod(cage CageID, fdIdx FDIndex, mode uint32) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, _, n, err := fs.resolveFD(cage, fdIdx)
	if err != nil {
		return err
	}
	n.mode = (n.mode &^ 0o777) | (mode & 0o777)
	return nil
}

// Fcntl implements only F_GETFL, returning the descriptor's stored flags,
// per spec.md §4.4.
func (fs *FS) Fcntl(cage CageID, fdIdx FDIndex, op int, arg int) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_, fd, _, err := fs.resolveFD(cage, fdIdx)
	if err != nil {
		return -1, err
	}
	if op != FGetFL {
		logger.Debugf("imfs: fcntl op %d not implemented", op)
		return -1, errno.ENOSYS
	}
	return fd.flags, nil
}
