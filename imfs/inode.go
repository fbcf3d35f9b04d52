package imfs

import "github.com/lind-project/lind-wasm-sub000/imfs/errno"

// The operations in this file address nodes directly by NodeIndex rather
// than by path or fd. They exist for imfsfuse, whose jacobsa/fuse and
// bazil.org/fuse front ends are themselves inode-addressed (a kernel
// FUSE request carries an inode number, never a path), unlike the rest
// of this package's POSIX-style path/fd surface.

// StatNode fills a Stat for an arbitrary live node index, without
// resolving a path.
func (fs *FS) StatNode(idx NodeIndex) (Stat, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.nodes.get(idx)
	if err != nil {
		return Stat{}, err
	}
	return statFromNode(n), nil
}

// LookupChild resolves one path component under dirIdx, the inode-only
// analogue of path.go's lookupChild for callers that already hold a
// parent NodeIndex (as a FUSE LookUpInode request does) rather than a
// full path string.
func (fs *FS) LookupChild(dirIdx NodeIndex, name string) (NodeIndex, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir, err := fs.nodes.get(dirIdx)
	if err != nil {
		return 0, err
	}
	if dir.kind != KindDirectory {
		return 0, errno.ENOTDIR
	}
	child, ok := lookupChild(dir, name)
	if !ok {
		return 0, errno.ENOENT
	}
	return child, nil
}

// PathOf reconstructs an absolute path for idx, for callers (imfsfuse)
// that only hold an inode-style NodeIndex and need a path to drive the
// path-addressed operations in file.go.
func (fs *FS) PathOf(idx NodeIndex) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.pathOfLocked(idx)
}

// ReadLinkNode returns a symlink node's target path, reconstructed from
// its target NodeIndex by walking back up via parentIndex. This core
// stores a symlink's target as a resolved NodeIndex rather than a
// string (see types.go's Node.target), so rendering it back out as a
// path is only needed at this FUSE-facing boundary.
func (fs *FS) ReadLinkNode(idx NodeIndex) (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.nodes.get(idx)
	if err != nil {
		return "", err
	}
	if n.kind != KindSymlink {
		return "", errno.EINVAL
	}
	return fs.pathOfLocked(n.target)
}

// pathOfLocked reconstructs an absolute path for idx by walking
// parentIndex back to the root. Called with fs.mu already held.
func (fs *FS) pathOfLocked(idx NodeIndex) (string, error) {
	var parts []string
	cur := idx
	for {
		n, err := fs.nodes.get(cur)
		if err != nil {
			return "", err
		}
		if n.parentIndex == cur {
			break // root
		}
		parts = append([]string{n.name}, parts...)
		cur = n.parentIndex
	}
	if len(parts) == 0 {
		return "/", nil
	}
	path := ""
	for _, p := range parts {
		path += "/" + p
	}
	return path, nil
}

// Children returns idx's directory entries, the inode-addressed
// counterpart of DirStream used by imfsfuse's ReadDir.
func (fs *FS) Children(idx NodeIndex) ([]DirEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, err := fs.nodes.get(idx)
	if err != nil {
		return nil, err
	}
	if n.kind != KindDirectory {
		return nil, errno.ENOTDIR
	}

	out := make([]DirEntry, 0, len(n.children))
	for _, ent := range n.children {
		kind := KindDirectory
		if child, err := fs.nodes.get(ent.child); err == nil {
			kind = child.kind
		}
		out = append(out, DirEntry{Name: ent.name, Inode: ent.child, Kind: kind})
	}
	return out, nil
}

// Root returns the filesystem's root node index (always 0, but named
// for readability at call sites).
func (fs *FS) Root() NodeIndex {
	return 0
}
