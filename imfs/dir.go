package imfs

import (
	"github.com/lind-project/lind-wasm-sub000/imfs/errno"
)

// DirStream is the Go-native analogue of imfs.h's I_DIR: a handle returned
// by OpenDir that snapshots a directory's child list at open time and
// tracks how much of it ReadDir has consumed. Snapshotting (rather than
// reading fs.nodes live on every call) means a concurrent mkdir/unlink in
// the same directory never shifts indices out from under an in-progress
// readdir loop.
type DirStream struct {
	fd      FDIndex
	dirNode NodeIndex
	entries []DirEntry
	offset  int
}

// DirEntry is one entry yielded by ReadDir: a (name, inode, type) triple,
// matching struct dirent's d_name/d_ino/d_type fields.
type DirEntry struct {
	Name  string
	Inode NodeIndex
	Kind  NodeKind
}

// OpenDir implements spec.md §4.6's opendir: resolve path to a directory,
// open it O_DIRECTORY-style, and snapshot its current children.
func (fs *FS) OpenDir(cage CageID, path string) (*DirStream, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fd, err := fs.openDirLocked(cage, path)
	if err != nil {
		return nil, err
	}

	table, err := fs.fdTableFor(cage)
	if err != nil {
		return nil, err
	}
	_, desc, err := table.resolve(fd)
	if err != nil {
		return nil, err
	}
	n, err := fs.nodes.get(desc.nodeIndex)
	if err != nil {
		return nil, err
	}

	snapshot := make([]DirEntry, 0, len(n.children))
	for _, ent := range n.children {
		kind := KindDirectory
		if child, err := fs.nodes.get(ent.child); err == nil {
			kind = child.kind
		}
		snapshot = append(snapshot, DirEntry{Name: ent.name, Inode: ent.child, Kind: kind})
	}

	return &DirStream{fd: fd, dirNode: n.index, entries: snapshot}, nil
}

func (fs *FS) openDirLocked(cage CageID, path string) (FDIndex, error) {
	idx, err := fs.resolve(cage, AtFDCwd, path)
	if err != nil {
		return -1, err
	}
	n, err := fs.nodes.get(idx)
	if err != nil {
		return -1, err
	}
	if n.kind != KindDirectory {
		return -1, errno.ENOTDIR
	}

	table, err := fs.fdTableFor(cage)
	if err != nil {
		return -1, err
	}
	fd, err := table.allocate(n.index, ORdOnly|ODirectory)
	if err != nil {
		return -1, err
	}
	n.openCount++
	return fd, nil
}

// ReadDir implements spec.md §4.6's readdir: yield the next snapshotted
// entry, or (nil, nil) at end-of-stream (mirrors readdir's NULL-without-
// errno-change return).
func (ds *DirStream) ReadDir() (*DirEntry, error) {
	if ds.offset >= len(ds.entries) {
		return nil, nil
	}
	ent := ds.entries[ds.offset]
	ds.offset++
	return &ent, nil
}

// Rewind resets the stream to its first entry without re-reading the
// directory's current children (matching rewinddir's snapshot-preserving
// behavior in this implementation).
func (ds *DirStream) Rewind() {
	ds.offset = 0
}

// CloseDir releases the fd backing the stream, per closedir.
func (fs *FS) CloseDir(cage CageID, ds *DirStream) error {
	return fs.Close(cage, ds.fd)
}

// Pathconf name constants, matching the PC_CONSTS index order from
// imfs.h (_PC_LINK_MAX .. _PC_SYNC_IO). golang.org/x/sys/unix does not
// expose these — they are libc confname.h constants, not syscall
// numbers — so they are reproduced here as plain POSIX literals.
const (
	PCLinkMax = iota
	PCMaxCanon
	PCMaxInput
	PCNameMax
	PCPathMax
	PCPipeBuf
	PCChownRestricted
	PCNoTrunc
	PCVDisable
	PCSyncIO
)

// pathconfTable mirrors imfs.h's PC_CONSTS array: fixed per-filesystem
// limits reported to fpathconf/pathconf callers. NAME_MAX excludes the
// node's null terminator; PATH_MAX bounds a fully resolved path through
// MaxDepth levels of MaxNodeName-byte components.
var pathconfTable = [...]int{
	PCLinkMax:         10,
	PCMaxCanon:        10,
	PCMaxInput:        10,
	PCNameMax:         MaxNodeName,
	PCPathMax:         MaxDepth * MaxNodeName,
	PCPipeBuf:         PipeBufSize,
	PCChownRestricted: 10,
	PCNoTrunc:         10,
	PCVDisable:        10,
	PCSyncIO:          10,
}

// Pathconf implements spec.md §4.6's pathconf: resolve path, then return
// the fixed limit associated with name. The resolve is only there to
// surface ENOENT/ENOTDIR for a bad path; the returned value never
// actually depends on which node was found, matching imfs_pathconf's
// table lookup.
func (fs *FS) Pathconf(cage CageID, path string, name int) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, err := fs.resolve(cage, AtFDCwd, path); err != nil {
		return -1, err
	}
	return pathconfValue(name)
}

// Fpathconf implements spec.md §4.6's fpathconf: resolve fd to a live
// node, then return the fixed limit.
func (fs *FS) Fpathconf(cage CageID, fdIdx FDIndex, name int) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, _, _, err := fs.resolveFD(cage, fdIdx); err != nil {
		return -1, err
	}
	return pathconfValue(name)
}

func pathconfValue(name int) (int, error) {
	if name < 0 || name >= len(pathconfTable) {
		return -1, errno.EINVAL
	}
	return pathconfTable[name], nil
}
